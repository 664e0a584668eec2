package screens

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilianohg/internhub/internal/aggregate"
	"github.com/emilianohg/internhub/internal/listview"
	"github.com/emilianohg/internhub/internal/mutation"
)

var interviewTypeLabels = map[string]string{
	mutation.InterviewOnline:   "オンライン",
	mutation.InterviewInPerson: "対面",
	mutation.InterviewPhone:    "電話",
}

type Interviews struct {
	deps   Deps
	width  int
	height int

	companyID int64
	list      *list[aggregate.InterviewRow, int64]
}

func NewInterviews(deps Deps) *Interviews {
	return &Interviews{
		deps: deps,
		list: newList(aggregate.InterviewSchema, func(r aggregate.InterviewRow) int64 { return r.ID }, deps),
	}
}

func (v *Interviews) SetSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *Interviews) SetCompany(companyID int64) {
	if v.companyID != companyID {
		v.list = newList(aggregate.InterviewSchema, func(r aggregate.InterviewRow) int64 { return r.ID }, v.deps)
	}
	v.companyID = companyID
}

type interviewsDataMsg struct {
	rows []aggregate.InterviewRow
	err  error
}

func (v *Interviews) Init() tea.Cmd {
	v.list.loading = v.list.rows.Len() == 0
	return v.loadData
}

func (v *Interviews) loadData() tea.Msg {
	rows, err := v.deps.Reader.Interviews(context.Background(), v.companyID)
	return interviewsDataMsg{rows: rows, err: err}
}

func (v *Interviews) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case interviewsDataMsg:
		if msg.err != nil {
			v.deps.logRead("load interviews", msg.err, "company_id", v.companyID)
		}
		v.list.load(msg.rows, msg.err)
		return nil

	case RefreshMsg:
		return v.Init()

	case tea.KeyMsg:
		if cmd, ok := v.list.handleKey(msg); ok {
			return cmd
		}
		switch msg.String() {
		case "t":
			types := []string{listview.All, mutation.InterviewOnline, mutation.InterviewInPerson, mutation.InterviewPhone}
			v.list.setFilter(aggregate.FilterType, cycle(types, v.list.filter(aggregate.FilterType)))
		case "r":
			return v.Init()
		case "q", "esc":
			return NavigateWithCompany("dashboard", v.companyID)
		}
		return nil
	}

	return v.list.updateInput(msg)
}

func (v *Interviews) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("面談一覧"))
	b.WriteString("\n\n")

	if v.list.loading {
		b.WriteString("読み込み中...\n")
		return b.String()
	}

	typ := v.list.filter(aggregate.FilterType)
	if label, ok := interviewTypeLabels[typ]; ok {
		typ = label
	}
	b.WriteString(DimStyle.Render("形式: " + filterLabel(typ)))
	b.WriteString("\n")
	b.WriteString(v.list.status())
	b.WriteString("\n\n")

	if len(v.list.page.Items) == 0 {
		b.WriteString(DimStyle.Render("予定されている面談はありません。"))
		b.WriteString("\n")
	} else {
		b.WriteString(v.list.rowLines(func(r aggregate.InterviewRow) string {
			when := r.ScheduledDate
			if !r.ScheduledAt.IsZero() {
				when = r.ScheduledAt.In(v.deps.Location).Format(aggregate.TimeLayout)
			}
			place := interviewTypeLabels[r.InterviewType]
			if r.Location != "" {
				place += " " + r.Location
			}
			return fmt.Sprintf("%s  %s  %s  %s", when, nameOrDash(r.StudentName), r.JobTitle, place)
		}))
	}

	help := "[/] 検索  [t] 形式  [s] 並び替え  [←→] ページ  [q] 戻る"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}
