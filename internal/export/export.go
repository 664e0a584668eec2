// Package export renders aggregated rows as CSV, JSON or XLSX files.
//
// Header text and column order are fixed; downstream spreadsheets depend on
// them.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tealeg/xlsx/v3"

	"github.com/emilianohg/internhub/internal/aggregate"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

var (
	ApplicantsHeader = []string{"氏名", "大学", "学部", "求人", "ステータス", "応募日"}
	FeedbacksHeader  = []string{"学生名", "大学", "求人", "テンプレート", "総合評価", "総合コメント", "作成日"}
	StudentsHeader   = []string{"氏名", "大学", "学部", "応募数", "内定数", "登録日"}
)

// Table is one export: a tabular rendering for CSV and XLSX plus the
// original records for JSON.
type Table struct {
	Kind    string
	Sheet   string
	Header  []string
	Rows    [][]string
	Records any
}

func Applicants(rows []aggregate.ApplicantRow) Table {
	t := Table{Kind: "applicants", Sheet: "応募者一覧", Header: ApplicantsHeader, Records: nonNil(rows)}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Name, r.University, r.Faculty, r.JobTitle, r.Status, r.AppliedOn})
	}
	return t
}

func Feedbacks(rows []aggregate.FeedbackRow) Table {
	t := Table{Kind: "feedbacks", Sheet: "フィードバック一覧", Header: FeedbacksHeader, Records: nonNil(rows)}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.StudentName, r.University, r.JobTitle, r.TemplateName,
			strconv.Itoa(r.OverallRating), r.OverallComment, r.CreatedOn,
		})
	}
	return t
}

func Students(rows []aggregate.StudentRow) Table {
	t := Table{Kind: "students", Sheet: "学生一覧", Header: StudentsHeader, Records: nonNil(rows)}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.Name, r.University, r.Faculty,
			strconv.Itoa(r.ApplicationCount), strconv.Itoa(r.HireCount), r.RegisteredOn,
		})
	}
	return t
}

// nonNil keeps an empty export as [] rather than null in JSON.
func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

func Write(w io.Writer, t Table, f Format) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, t)
	case FormatJSON:
		return writeJSON(w, t)
	case FormatXLSX:
		return writeXLSX(w, t)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func writeCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return errors.Wrap(err, "write csv rows")
	}
	return nil
}

func writeJSON(w io.Writer, t Table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return errors.Wrap(enc.Encode(t.Records), "write json")
}

func writeXLSX(w io.Writer, t Table) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(t.Sheet)
	if err != nil {
		return errors.Wrap(err, "add sheet")
	}

	headerRow := sheet.AddRow()
	for _, h := range t.Header {
		headerRow.AddCell().Value = h
	}
	for _, r := range t.Rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().Value = v
		}
	}

	return errors.Wrap(file.Write(w), "write xlsx")
}

// FileName returns <kind>_<yyyymmdd>_<8 hex>.<ext>.
func FileName(kind string, f Format, now time.Time) string {
	return kind + "_" + now.Format("20060102") + "_" + uuid.New().String()[:8] + "." + string(f)
}

// WriteFile writes t into dir and returns the created path.
func WriteFile(dir string, t Table, f Format, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "create export directory")
	}
	path := filepath.Join(dir, FileName(t.Kind, f, now))

	out, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create export file")
	}
	if err := Write(out, t, f); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrap(err, "close export file")
	}
	return path, nil
}
