// Package listview filters, sorts and pages already-aggregated rows in memory.
// Nothing here touches the store, and identical inputs give identical output.
package listview

import (
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// All is the categorical filter value meaning "no filter".
const All = "all"

const DefaultPageSize = 20

type SortKind int

const (
	SortDateDesc SortKind = iota
	SortDateAsc
	SortNumberDesc
	SortNumberAsc
	SortStringAsc
)

var sortNames = map[SortKind]string{
	SortDateDesc:   "date_desc",
	SortDateAsc:    "date_asc",
	SortNumberDesc: "number_desc",
	SortNumberAsc:  "number_asc",
	SortStringAsc:  "string_asc",
}

func (k SortKind) String() string {
	if s, ok := sortNames[k]; ok {
		return s
	}
	return sortNames[SortDateDesc]
}

// ParseSort maps a query-string name to a sort. Unknown names give the default.
func ParseSort(s string) SortKind {
	for k, name := range sortNames {
		if name == s {
			return k
		}
	}
	return SortDateDesc
}

// Next cycles through the sorts, for UIs with a single sort key.
func (k SortKind) Next() SortKind {
	return (k + 1) % SortKind(len(sortNames))
}

// Schema tells the layer which fields of T each criterion reads.
type Schema[T any] struct {
	// Search holds the one to three text fields matched by Query.
	Search     []func(T) string
	Categories map[string]func(T) string
	Date       func(T) time.Time
	Number     func(T) float64
	String     func(T) string
}

// Criteria is the UI-bound filter state.
type Criteria struct {
	Query   string
	Filters map[string]string
	// From and To bound Date by whole days in Location. A zero To with a
	// non-zero From selects the single day From.
	From     time.Time
	To       time.Time
	Location *time.Location
	Sort     SortKind
	Page     int
	PageSize int
}

// Equal compares criteria for memoization.
func (c Criteria) Equal(o Criteria) bool {
	if c.Query != o.Query || c.Sort != o.Sort || c.Page != o.Page || c.PageSize != o.PageSize {
		return false
	}
	if !c.From.Equal(o.From) || !c.To.Equal(o.To) || c.Location != o.Location {
		return false
	}
	if len(c.Filters) != len(o.Filters) {
		return false
	}
	for k, v := range c.Filters {
		if ov, ok := o.Filters[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Apply returns the filtered and sorted subset of rows. rows is not modified.
func Apply[T any](rows []T, s Schema[T], c Criteria) []T {
	fold := cases.Fold()
	query := fold.String(strings.TrimSpace(c.Query))
	lo, hi, dated := dayRange(c.From, c.To, c.Location)

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if query != "" && !matchesQuery(r, s.Search, query, fold) {
			continue
		}
		if !matchesFilters(r, s.Categories, c.Filters) {
			continue
		}
		if dated && s.Date != nil {
			t := s.Date(r)
			if t.IsZero() || t.Before(lo) || !t.Before(hi) {
				continue
			}
		}
		out = append(out, r)
	}

	sortRows(out, s, c.Sort)
	return out
}

func matchesQuery[T any](r T, fields []func(T) string, query string, fold cases.Caser) bool {
	for _, f := range fields {
		if strings.Contains(fold.String(f(r)), query) {
			return true
		}
	}
	return false
}

func matchesFilters[T any](r T, categories map[string]func(T) string, filters map[string]string) bool {
	for name, want := range filters {
		if want == "" || want == All {
			continue
		}
		field, ok := categories[name]
		if !ok {
			continue
		}
		if field(r) != want {
			return false
		}
	}
	return true
}

// dayRange converts the chosen dates into [lo, hi) spanning whole days.
func dayRange(from, to time.Time, loc *time.Location) (time.Time, time.Time, bool) {
	if from.IsZero() && to.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	var lo, hi time.Time
	if !from.IsZero() {
		lo = startOfDay(from, loc)
	}
	switch {
	case !to.IsZero():
		hi = startOfDay(to, loc).AddDate(0, 0, 1)
	default:
		hi = lo.AddDate(0, 0, 1)
	}
	return lo, hi, true
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func sortRows[T any](rows []T, s Schema[T], kind SortKind) {
	var less func(a, b T) bool
	switch kind {
	case SortDateDesc:
		if s.Date != nil {
			less = func(a, b T) bool { return s.Date(a).After(s.Date(b)) }
		}
	case SortDateAsc:
		if s.Date != nil {
			less = func(a, b T) bool { return s.Date(a).Before(s.Date(b)) }
		}
	case SortNumberDesc:
		if s.Number != nil {
			less = func(a, b T) bool { return s.Number(a) > s.Number(b) }
		}
	case SortNumberAsc:
		if s.Number != nil {
			less = func(a, b T) bool { return s.Number(a) < s.Number(b) }
		}
	case SortStringAsc:
		if s.String != nil {
			col := collate.New(language.Japanese)
			less = func(a, b T) bool { return col.CompareString(s.String(a), s.String(b)) < 0 }
		}
	}
	if less == nil {
		return
	}
	// Stable so ties keep the primary fetch order.
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}

type Page[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	TotalPages int
	Total      int
}

// Paginate slices one page out of rows. page is clamped into [1, TotalPages]
// so an out-of-range request lands on the nearest valid page.
func Paginate[T any](rows []T, page, size int) Page[T] {
	if size < 1 {
		size = DefaultPageSize
	}
	total := len(rows)
	pages := (total + size - 1) / size
	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * size
	end := min(start+size, total)
	var items []T
	if start < total {
		items = slices.Clone(rows[start:end])
	}
	return Page[T]{Items: items, Page: page, PageSize: size, TotalPages: pages, Total: total}
}
