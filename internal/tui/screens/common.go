package screens

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/emilianohg/internhub/internal/aggregate"
	"github.com/emilianohg/internhub/internal/apperr"
	"github.com/emilianohg/internhub/internal/logging"
	"github.com/emilianohg/internhub/internal/models"
	"github.com/emilianohg/internhub/internal/mutation"
	"github.com/emilianohg/internhub/internal/repository"
)

// NavigateMsg is sent when navigation to another screen is requested
type NavigateMsg struct {
	Screen        string
	CompanyID     *int64
	ApplicationID *int64
}

func Navigate(screen string) tea.Cmd {
	return func() tea.Msg {
		return NavigateMsg{Screen: screen}
	}
}

func NavigateWithCompany(screen string, companyID int64) tea.Cmd {
	return func() tea.Msg {
		return NavigateMsg{Screen: screen, CompanyID: &companyID}
	}
}

func NavigateWithApplication(screen string, applicationID int64) tea.Cmd {
	return func() tea.Msg {
		return NavigateMsg{Screen: screen, ApplicationID: &applicationID}
	}
}

// RefreshMsg is sent when data should be refreshed
type RefreshMsg struct{}

func Refresh() tea.Cmd {
	return func() tea.Msg {
		return RefreshMsg{}
	}
}

type Reader interface {
	Applicants(ctx context.Context, q aggregate.ApplicantQuery) ([]aggregate.ApplicantRow, error)
	Interviews(ctx context.Context, companyID int64) ([]aggregate.InterviewRow, error)
	Feedbacks(ctx context.Context, companyID int64) ([]aggregate.FeedbackRow, error)
	Students(ctx context.Context) ([]aggregate.StudentRow, error)
	Dashboard(ctx context.Context, companyID int64) (*aggregate.Dashboard, error)
	Thread(ctx context.Context, applicationID int64) ([]aggregate.MessageRow, error)
	Notifications(ctx context.Context, companyID int64, limit int) ([]aggregate.NotificationRow, error)
}

type Writer interface {
	SendMessage(ctx context.Context, in mutation.SendMessageInput) (*aggregate.MessageRow, error)
	ChangeApplicationStatus(ctx context.Context, applicationID int64, expected string, action mutation.Action) (*mutation.StatusChange, error)
	ChangeJobStatus(ctx context.Context, jobID int64, expected string, action mutation.Action) (*mutation.JobChange, error)
	CreateFeedback(ctx context.Context, d *mutation.FeedbackDraft) (*aggregate.FeedbackRow, error)
	MarkAllNotificationsRead(ctx context.Context, companyID int64) (int, error)
}

type CompanyStore interface {
	GetAllWithStats(ctx context.Context) ([]repository.CompanyWithStats, error)
	Create(ctx context.Context, name, industry string) (*models.Company, error)
	Update(ctx context.Context, id int64, name, industry string) error
	Delete(ctx context.Context, id int64) error
}

type JobLister interface {
	GetByCompanyID(ctx context.Context, companyID int64, status string) ([]models.Job, error)
}

type TemplateLister interface {
	GetByCompanyID(ctx context.Context, companyID int64) ([]models.FeedbackTemplate, error)
}

// Deps is everything a screen may read from or write to.
type Deps struct {
	Reader    Reader
	Writer    Writer
	Companies CompanyStore
	Jobs      JobLister
	Templates TemplateLister
	Logger    *slog.Logger
	Location  *time.Location
	PageSize  int
	Timeout   time.Duration
	ExportDir string
	Now       func() time.Time
}

// bound limits direct repository calls the way the aggregate and mutation
// layers limit theirs.
func (d Deps) bound() (context.Context, context.CancelFunc) {
	if d.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d.Timeout)
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// logRead records a failed read. Screens keep what they already show.
func (d Deps) logRead(op string, err error, attrs ...any) {
	logging.Error(d.Logger, op, apperr.Fetch(op, err), attrs...)
}

// writeNotice logs a failed write and returns the line shown to the user.
// Rejected input is shown but not logged.
func (d Deps) writeNotice(op string, err error, attrs ...any) string {
	if !apperr.Is(err, apperr.KindValidation) {
		logging.Error(d.Logger, op, err, attrs...)
	}
	if !apperr.Surfaced(err) {
		return ""
	}
	return apperr.UserMessage(err)
}

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginBottom(1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	SelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	NormalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)
