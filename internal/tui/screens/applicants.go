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

type Applicants struct {
	deps   Deps
	width  int
	height int

	companyID int64
	list      *list[aggregate.ApplicantRow, int64]
	message   string
	notice    string
}

func NewApplicants(deps Deps) *Applicants {
	return &Applicants{
		deps: deps,
		list: newList(aggregate.ApplicantSchema, func(r aggregate.ApplicantRow) int64 { return r.ID }, deps),
	}
}

func (a *Applicants) SetSize(width, height int) {
	a.width = width
	a.height = height
}

func (a *Applicants) SetCompany(companyID int64) {
	if a.companyID != companyID {
		a.list = newList(aggregate.ApplicantSchema, func(r aggregate.ApplicantRow) int64 { return r.ID }, a.deps)
	}
	a.companyID = companyID
}

type applicantsDataMsg struct {
	rows []aggregate.ApplicantRow
	err  error
}

type statusChangedMsg struct {
	applicationID int64
	change        *mutation.StatusChange
	err           error
}

func (a *Applicants) Init() tea.Cmd {
	a.list.loading = a.list.rows.Len() == 0
	a.message = ""
	a.notice = ""
	return a.loadData
}

func (a *Applicants) loadData() tea.Msg {
	rows, err := a.deps.Reader.Applicants(context.Background(), aggregate.ApplicantQuery{CompanyID: a.companyID})
	return applicantsDataMsg{rows: rows, err: err}
}

func (a *Applicants) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case applicantsDataMsg:
		if msg.err != nil {
			a.deps.logRead("load applicants", msg.err, "company_id", a.companyID)
		}
		a.list.load(msg.rows, msg.err)
		return nil

	case statusChangedMsg:
		return a.applyStatusChange(msg)

	case RefreshMsg:
		return a.Init()

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a.list.updateInput(msg)
}

// applyStatusChange patches the one affected row in place.
func (a *Applicants) applyStatusChange(msg statusChangedMsg) tea.Cmd {
	if msg.err != nil {
		a.notice = a.deps.writeNotice("change application status", msg.err, "application_id", msg.applicationID)
		return nil
	}

	if msg.change.Row != nil {
		a.list.rows.Upsert(*msg.change.Row)
	} else if row, ok := a.list.rows.Find(msg.applicationID); ok {
		row.Status = msg.change.Status
		row.Version = msg.change.Version
		a.list.rows.Upsert(row)
	}
	a.list.recompute()
	a.message = fmt.Sprintf("ステータスを「%s」に変更しました", msg.change.Status)
	return nil
}

func (a *Applicants) handleKey(msg tea.KeyMsg) tea.Cmd {
	if cmd, ok := a.list.handleKey(msg); ok {
		return cmd
	}

	switch msg.String() {
	case "f":
		statuses := append([]string{listview.All}, mutation.ApplicationWorkflow.Statuses()...)
		a.list.setFilter(aggregate.FilterStatus, cycle(statuses, a.list.filter(aggregate.FilterStatus)))
	case "enter":
		if row, ok := a.list.selected(); ok {
			return NavigateWithApplication("chat", row.ID)
		}
	case "r":
		return a.Init()
	case "q", "esc":
		return NavigateWithCompany("dashboard", a.companyID)
	default:
		return a.handleAction(msg.String())
	}
	return nil
}

// handleAction maps the number keys to the actions the selected row's
// current status allows.
func (a *Applicants) handleAction(key string) tea.Cmd {
	row, ok := a.list.selected()
	if !ok || len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return nil
	}
	actions := mutation.ApplicationWorkflow.Actions(row.Status)
	i := int(key[0] - '1')
	if i >= len(actions) {
		return nil
	}

	action := actions[i]
	a.message = ""
	a.notice = ""
	return func() tea.Msg {
		change, err := a.deps.Writer.ChangeApplicationStatus(context.Background(), row.ID, row.Status, action)
		return statusChangedMsg{applicationID: row.ID, change: change, err: err}
	}
}

func (a *Applicants) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("応募者一覧"))
	b.WriteString("\n\n")

	if a.list.loading {
		b.WriteString("読み込み中...\n")
		return b.String()
	}

	if a.notice != "" {
		b.WriteString(ErrorStyle.Render(a.notice + " [r] 再読み込み"))
		b.WriteString("\n\n")
	}
	if a.message != "" {
		b.WriteString(SuccessStyle.Render(a.message))
		b.WriteString("\n\n")
	}

	b.WriteString(DimStyle.Render("ステータス: " + filterLabel(a.list.filter(aggregate.FilterStatus))))
	b.WriteString("\n")
	b.WriteString(a.list.status())
	b.WriteString("\n\n")

	if len(a.list.page.Items) == 0 {
		b.WriteString(DimStyle.Render("該当する応募者はいません。"))
		b.WriteString("\n")
	} else {
		b.WriteString(a.list.rowLines(func(r aggregate.ApplicantRow) string {
			return fmt.Sprintf("%s  %s  %s  [%s]  %s", nameOrDash(r.Name), r.University, r.JobTitle, r.Status, r.AppliedOn)
		}))
	}

	if row, ok := a.list.selected(); ok {
		var actions []string
		for i, action := range mutation.ApplicationWorkflow.Actions(row.Status) {
			actions = append(actions, fmt.Sprintf("[%d] %s", i+1, action.Label()))
		}
		if len(actions) > 0 {
			b.WriteString("\n")
			b.WriteString(strings.Join(actions, "  "))
			b.WriteString("\n")
		}
	}

	help := "[/] 検索  [f] ステータス  [s] 並び替え  [←→] ページ  [enter] メッセージ  [q] 戻る"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}

func nameOrDash(name string) string {
	if name == "" {
		return "(未登録)"
	}
	return name
}
