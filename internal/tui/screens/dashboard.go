package screens

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilianohg/internhub/internal/aggregate"
	"github.com/emilianohg/internhub/internal/mutation"
)

// recentNotifications is how many notifications the dashboard lists.
const recentNotifications = 5

type Dashboard struct {
	deps   Deps
	width  int
	height int

	companyID   int64
	companyName string
	stats       *aggregate.Dashboard
	notes       []aggregate.NotificationRow
	notice      string
	loading     bool
}

func NewDashboard(deps Deps) *Dashboard {
	return &Dashboard{
		deps:    deps,
		loading: true,
	}
}

func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

func (d *Dashboard) SetCompany(companyID int64, name string) {
	if d.companyID != companyID {
		d.stats = nil
		d.notes = nil
	}
	d.companyID = companyID
	d.companyName = name
}

type dashboardDataMsg struct {
	stats    *aggregate.Dashboard
	err      error
	notes    []aggregate.NotificationRow
	notesErr error
}

type notificationsReadMsg struct {
	marked int
	err    error
}

func (d *Dashboard) Init() tea.Cmd {
	d.loading = d.stats == nil
	d.notice = ""
	return d.loadData
}

func (d *Dashboard) loadData() tea.Msg {
	ctx := context.Background()
	stats, err := d.deps.Reader.Dashboard(ctx, d.companyID)
	notes, notesErr := d.deps.Reader.Notifications(ctx, d.companyID, recentNotifications)
	return dashboardDataMsg{stats: stats, err: err, notes: notes, notesErr: notesErr}
}

func (d *Dashboard) markAllRead() tea.Msg {
	n, err := d.deps.Writer.MarkAllNotificationsRead(context.Background(), d.companyID)
	return notificationsReadMsg{marked: n, err: err}
}

func (d *Dashboard) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.loading = false
		if msg.notesErr != nil {
			d.deps.logRead("load notifications", msg.notesErr, "company_id", d.companyID)
		} else {
			d.notes = msg.notes
		}
		if msg.err != nil {
			d.deps.logRead("load dashboard", msg.err, "company_id", d.companyID)
			return nil
		}
		d.stats = msg.stats
		return nil

	case notificationsReadMsg:
		if msg.err != nil {
			d.notice = d.deps.writeNotice("mark notifications read", msg.err, "company_id", d.companyID)
			return nil
		}
		return d.loadData

	case RefreshMsg:
		return d.Init()

	case tea.KeyMsg:
		switch msg.String() {
		case "j":
			return NavigateWithCompany("jobs", d.companyID)
		case "a":
			return NavigateWithCompany("applicants", d.companyID)
		case "i":
			return NavigateWithCompany("interviews", d.companyID)
		case "f":
			return NavigateWithCompany("feedbacks", d.companyID)
		case "r":
			return d.Init()
		case "m":
			return d.markAllRead
		case "c", "esc":
			return Navigate("companies")
		}
	}

	return nil
}

func (d *Dashboard) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("INTERNHUB"))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render(d.companyName))
	b.WriteString("\n\n")

	if d.loading {
		b.WriteString("読み込み中...\n")
		return b.String()
	}

	if d.stats == nil {
		b.WriteString(DimStyle.Render("データを取得できませんでした。[r] で再読み込みしてください。"))
		b.WriteString("\n")
	} else {
		statsContent := fmt.Sprintf(
			"公開中の求人: %d\n応募総数: %d\n書類選考中: %s\n今後の面談: %d\n評価: %d\n未読の通知: %d",
			d.stats.PublishedJobs,
			d.stats.TotalApplications,
			d.formatScreening(),
			d.stats.UpcomingInterviews,
			d.stats.Feedbacks,
			d.stats.UnreadNotifications,
		)
		b.WriteString(BoxStyle.Render(statsContent))
		b.WriteString("\n")
	}

	if len(d.notes) > 0 {
		b.WriteString("\n最近の通知\n")
		for _, n := range d.notes {
			line := notificationLine(n)
			if n.Read {
				b.WriteString(DimStyle.Render("  " + line))
			} else {
				b.WriteString(NormalStyle.Render("● " + line))
			}
			b.WriteString("\n")
		}
	}

	if d.notice != "" {
		b.WriteString(ErrorStyle.Render(d.notice))
		b.WriteString("\n")
	}

	help := "[j] 求人  [a] 応募者  [i] 面談  [f] 評価  [m] 通知を既読  [c] 企業選択  [q] 終了"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}

func (d *Dashboard) formatScreening() string {
	if d.stats.Screening == 0 {
		return SuccessStyle.Render("0")
	}
	return WarningStyle.Render(fmt.Sprintf("%d", d.stats.Screening))
}

func notificationLine(n aggregate.NotificationRow) string {
	var text string
	switch n.Type {
	case mutation.EventNewApplication:
		text = "新しい応募: " + n.Text("job_title")
	case mutation.EventNewMessage:
		text = "新着メッセージ: " + n.Text("preview")
	default:
		text = n.Type
	}
	return n.ReceivedAt + "  " + text
}
