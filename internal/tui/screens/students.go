package screens

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilianohg/internhub/internal/aggregate"
	"github.com/emilianohg/internhub/internal/export"
	"github.com/emilianohg/internhub/internal/listview"
)

// Students is the admin view of every registered student.
type Students struct {
	deps   Deps
	width  int
	height int

	list         *list[aggregate.StudentRow, int64]
	universities []string
	message      string
	notice       string
}

func NewStudents(deps Deps) *Students {
	return &Students{
		deps:         deps,
		list:         newList(aggregate.StudentSchema, func(r aggregate.StudentRow) int64 { return r.ID }, deps),
		universities: []string{listview.All},
	}
}

func (s *Students) SetSize(width, height int) {
	s.width = width
	s.height = height
}

type studentsDataMsg struct {
	rows []aggregate.StudentRow
	err  error
}

func (s *Students) Init() tea.Cmd {
	s.list.loading = s.list.rows.Len() == 0
	s.message = ""
	s.notice = ""
	return s.loadData
}

func (s *Students) loadData() tea.Msg {
	rows, err := s.deps.Reader.Students(context.Background())
	return studentsDataMsg{rows: rows, err: err}
}

func (s *Students) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case studentsDataMsg:
		if msg.err != nil {
			s.deps.logRead("load students", msg.err)
		}
		if s.list.load(msg.rows, msg.err) {
			s.universities = universities(msg.rows)
		}
		return nil

	case exportDoneMsg:
		if msg.err != nil {
			s.notice = s.deps.writeNotice("export students", msg.err)
			return nil
		}
		s.message = "出力しました: " + msg.path
		return nil

	case RefreshMsg:
		return s.Init()

	case tea.KeyMsg:
		if cmd, ok := s.list.handleKey(msg); ok {
			return cmd
		}
		switch msg.String() {
		case "u":
			s.list.setFilter(aggregate.FilterUniversity, cycle(s.universities, s.list.filter(aggregate.FilterUniversity)))
		case "x":
			rows := s.list.view.Filtered()
			dir := s.deps.ExportDir
			now := s.deps.now().In(s.deps.Location)
			return func() tea.Msg {
				path, err := export.WriteFile(dir, export.Students(rows), export.FormatCSV, now)
				return exportDoneMsg{path: path, err: err}
			}
		case "r":
			return s.Init()
		case "q", "esc":
			return Navigate("companies")
		}
		return nil
	}

	return s.list.updateInput(msg)
}

// universities lists the distinct non-empty universities, first seen first,
// behind the "all" entry.
func universities(rows []aggregate.StudentRow) []string {
	out := []string{listview.All}
	seen := map[string]bool{}
	for _, r := range rows {
		if r.University != "" && !seen[r.University] {
			seen[r.University] = true
			out = append(out, r.University)
		}
	}
	return out
}

func (s *Students) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("学生一覧"))
	b.WriteString("\n\n")

	if s.list.loading {
		b.WriteString("読み込み中...\n")
		return b.String()
	}

	if s.notice != "" {
		b.WriteString(ErrorStyle.Render(s.notice))
		b.WriteString("\n\n")
	}
	if s.message != "" {
		b.WriteString(SuccessStyle.Render(s.message))
		b.WriteString("\n\n")
	}

	b.WriteString(DimStyle.Render("大学: " + filterLabel(s.list.filter(aggregate.FilterUniversity))))
	b.WriteString("\n")
	b.WriteString(s.list.status())
	b.WriteString("\n\n")

	if len(s.list.page.Items) == 0 {
		b.WriteString(DimStyle.Render("学生はいません。"))
		b.WriteString("\n")
	} else {
		b.WriteString(s.list.rowLines(func(r aggregate.StudentRow) string {
			return fmt.Sprintf("%s  %s %s  応募 %d / 内定 %d  %s",
				nameOrDash(r.Name), r.University, r.Faculty, r.ApplicationCount, r.HireCount, r.RegisteredOn)
		}))
	}

	help := "[/] 検索  [u] 大学  [s] 並び替え  [←→] ページ  [x] CSV出力  [q] 戻る"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}
