package screens

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilianohg/internhub/internal/models"
	"github.com/emilianohg/internhub/internal/mutation"
)

var jobStatusLabels = map[string]string{
	models.JobDraft:     "下書き",
	models.JobPublished: "公開中",
	models.JobPaused:    "停止中",
	models.JobExpired:   "終了",
}

type Jobs struct {
	deps   Deps
	width  int
	height int

	companyID    int64
	jobs         []models.Job
	statusFilter string
	cursor       int
	loading      bool
	busy         bool
	message      string
	notice       string
}

func NewJobs(deps Deps) *Jobs {
	return &Jobs{deps: deps}
}

func (p *Jobs) SetSize(width, height int) {
	p.width = width
	p.height = height
}

func (p *Jobs) SetCompany(companyID int64) {
	if p.companyID != companyID {
		p.jobs = nil
		p.cursor = 0
	}
	p.companyID = companyID
}

type jobsDataMsg struct {
	jobs []models.Job
	err  error
}

type jobChangedMsg struct {
	jobID  int64
	change *mutation.JobChange
	err    error
}

func (p *Jobs) Init() tea.Cmd {
	p.loading = p.jobs == nil
	p.message = ""
	p.notice = ""
	return p.loadData
}

func (p *Jobs) loadData() tea.Msg {
	ctx, cancel := p.deps.bound()
	defer cancel()
	jobs, err := p.deps.Jobs.GetByCompanyID(ctx, p.companyID, p.statusFilter)
	return jobsDataMsg{jobs: jobs, err: err}
}

func (p *Jobs) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case jobsDataMsg:
		p.loading = false
		if msg.err != nil {
			p.deps.logRead("load jobs", msg.err, "company_id", p.companyID)
			return nil
		}
		p.jobs = msg.jobs
		if p.jobs == nil {
			p.jobs = []models.Job{}
		}
		if p.cursor >= len(p.jobs) {
			p.cursor = max(0, len(p.jobs)-1)
		}
		return nil

	case jobChangedMsg:
		p.busy = false
		if msg.err != nil {
			p.notice = p.deps.writeNotice("change job status", msg.err, "job_id", msg.jobID)
			return nil
		}
		for i := range p.jobs {
			if p.jobs[i].ID == msg.jobID {
				p.jobs[i].Status = msg.change.Status
				if msg.change.Job != nil {
					p.jobs[i] = *msg.change.Job
				}
			}
		}
		p.message = fmt.Sprintf("求人を「%s」にしました", jobStatusLabels[msg.change.Status])
		return nil

	case RefreshMsg:
		return p.Init()

	case tea.KeyMsg:
		return p.handleKey(msg)
	}

	return nil
}

func (p *Jobs) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.jobs)-1 {
			p.cursor++
		}
	case "f":
		p.statusFilter = cycle(append([]string{""}, mutation.JobWorkflow.Statuses()...), p.statusFilter)
		p.cursor = 0
		return p.loadData
	case "r":
		return p.Init()
	case "q", "esc":
		return NavigateWithCompany("dashboard", p.companyID)
	default:
		return p.handleAction(msg.String())
	}
	return nil
}

func (p *Jobs) handleAction(key string) tea.Cmd {
	if p.busy || len(p.jobs) == 0 || len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return nil
	}
	job := p.jobs[p.cursor]
	actions := mutation.JobWorkflow.Actions(job.Status)
	i := int(key[0] - '1')
	if i >= len(actions) {
		return nil
	}

	action := actions[i]
	p.busy = true
	p.message = ""
	p.notice = ""
	return func() tea.Msg {
		change, err := p.deps.Writer.ChangeJobStatus(context.Background(), job.ID, job.Status, action)
		return jobChangedMsg{jobID: job.ID, change: change, err: err}
	}
}

func (p *Jobs) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("求人一覧"))
	b.WriteString("\n\n")

	if p.loading {
		b.WriteString("読み込み中...\n")
		return b.String()
	}

	if p.notice != "" {
		b.WriteString(ErrorStyle.Render(p.notice + " [r] 再読み込み"))
		b.WriteString("\n\n")
	}
	if p.message != "" {
		b.WriteString(SuccessStyle.Render(p.message))
		b.WriteString("\n\n")
	}

	filter := "すべて"
	if p.statusFilter != "" {
		filter = jobStatusLabels[p.statusFilter]
	}
	b.WriteString(DimStyle.Render("状態: " + filter))
	b.WriteString("\n\n")

	if len(p.jobs) == 0 {
		b.WriteString(DimStyle.Render("求人はありません。"))
		b.WriteString("\n")
	} else {
		for i, job := range p.jobs {
			cursor := "  "
			style := NormalStyle
			if i == p.cursor {
				cursor = "> "
				style = SelectedStyle
			}
			line := fmt.Sprintf("%s%s [%s] 閲覧 %d / 応募 %d / 面談 %d / 採用 %d",
				cursor,
				job.Title,
				jobStatusLabels[job.Status],
				job.ViewCount,
				job.ApplicationCount,
				job.InterviewCount,
				job.HireCount,
			)
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}

		var actions []string
		for i, action := range mutation.JobWorkflow.Actions(p.jobs[p.cursor].Status) {
			actions = append(actions, fmt.Sprintf("[%d] %s", i+1, action.Label()))
		}
		if len(actions) > 0 {
			b.WriteString("\n")
			b.WriteString(strings.Join(actions, "  "))
			b.WriteString("\n")
		}
	}

	help := "[f] 状態  [r] 更新  [q] 戻る"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}
