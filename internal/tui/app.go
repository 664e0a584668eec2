package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/emilianohg/internhub/internal/listview"
	"github.com/emilianohg/internhub/internal/tui/screens"
)

type Screen int

const (
	ScreenCompanies Screen = iota
	ScreenDashboard
	ScreenJobs
	ScreenApplicants
	ScreenInterviews
	ScreenFeedbacks
	ScreenChat
	ScreenStudents
)

type App struct {
	deps          screens.Deps
	currentScreen Screen
	width         int
	height        int

	// Screen models
	companies  *screens.Companies
	dashboard  *screens.Dashboard
	jobs       *screens.Jobs
	applicants *screens.Applicants
	interviews *screens.Interviews
	feedbacks  *screens.Feedbacks
	chat       *screens.Chat
	students   *screens.Students

	// Navigation context
	companyID   int64
	companyName string
}

func NewApp(deps screens.Deps) *App {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.PageSize < 1 {
		deps.PageSize = listview.DefaultPageSize
	}
	return &App{
		deps:          deps,
		currentScreen: ScreenCompanies,
		companies:     screens.NewCompanies(deps),
		dashboard:     screens.NewDashboard(deps),
		jobs:          screens.NewJobs(deps),
		applicants:    screens.NewApplicants(deps),
		interviews:    screens.NewInterviews(deps),
		feedbacks:     screens.NewFeedbacks(deps),
		chat:          screens.NewChat(deps),
		students:      screens.NewStudents(deps),
	}
}

func (a *App) Init() tea.Cmd {
	return a.companies.Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.currentScreen == ScreenDashboard || (a.currentScreen == ScreenCompanies && !a.companies.Typing()) {
				return a, tea.Quit
			}
			// Let individual screens handle 'q' for going back
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.companies.SetSize(msg.Width, msg.Height)
		a.dashboard.SetSize(msg.Width, msg.Height)
		a.jobs.SetSize(msg.Width, msg.Height)
		a.applicants.SetSize(msg.Width, msg.Height)
		a.interviews.SetSize(msg.Width, msg.Height)
		a.feedbacks.SetSize(msg.Width, msg.Height)
		a.chat.SetSize(msg.Width, msg.Height)
		a.students.SetSize(msg.Width, msg.Height)

	case screens.CompanySelectedMsg:
		a.companyID = msg.ID
		a.companyName = msg.Name
		return a.handleNavigation(screens.NavigateMsg{Screen: "dashboard", CompanyID: &msg.ID})

	case screens.NavigateMsg:
		return a.handleNavigation(msg)
	}

	// Update current screen
	var cmd tea.Cmd
	switch a.currentScreen {
	case ScreenCompanies:
		cmd = a.companies.Update(msg)
	case ScreenDashboard:
		cmd = a.dashboard.Update(msg)
	case ScreenJobs:
		cmd = a.jobs.Update(msg)
	case ScreenApplicants:
		cmd = a.applicants.Update(msg)
	case ScreenInterviews:
		cmd = a.interviews.Update(msg)
	case ScreenFeedbacks:
		cmd = a.feedbacks.Update(msg)
	case ScreenChat:
		cmd = a.chat.Update(msg)
	case ScreenStudents:
		cmd = a.students.Update(msg)
	}

	return a, cmd
}

func (a *App) handleNavigation(msg screens.NavigateMsg) (tea.Model, tea.Cmd) {
	if msg.CompanyID != nil {
		a.companyID = *msg.CompanyID
	}

	switch msg.Screen {
	case "companies":
		a.currentScreen = ScreenCompanies
		return a, a.companies.Init()
	case "dashboard":
		a.currentScreen = ScreenDashboard
		a.dashboard.SetCompany(a.companyID, a.companyName)
		return a, a.dashboard.Init()
	case "jobs":
		a.currentScreen = ScreenJobs
		a.jobs.SetCompany(a.companyID)
		return a, a.jobs.Init()
	case "applicants":
		a.currentScreen = ScreenApplicants
		a.applicants.SetCompany(a.companyID)
		return a, a.applicants.Init()
	case "interviews":
		a.currentScreen = ScreenInterviews
		a.interviews.SetCompany(a.companyID)
		return a, a.interviews.Init()
	case "feedbacks":
		a.currentScreen = ScreenFeedbacks
		a.feedbacks.SetCompany(a.companyID)
		return a, a.feedbacks.Init()
	case "chat":
		if msg.ApplicationID == nil {
			return a, nil
		}
		a.currentScreen = ScreenChat
		a.chat.SetThread(a.companyID, *msg.ApplicationID)
		return a, a.chat.Init()
	case "students":
		a.currentScreen = ScreenStudents
		return a, a.students.Init()
	}
	return a, nil
}

func (a *App) View() string {
	var content string

	switch a.currentScreen {
	case ScreenCompanies:
		content = a.companies.View()
	case ScreenDashboard:
		content = a.dashboard.View()
	case ScreenJobs:
		content = a.jobs.View()
	case ScreenApplicants:
		content = a.applicants.View()
	case ScreenInterviews:
		content = a.interviews.View()
	case ScreenFeedbacks:
		content = a.feedbacks.View()
	case ScreenChat:
		content = a.chat.View()
	case ScreenStudents:
		content = a.students.View()
	}

	return lipgloss.NewStyle().
		Width(a.width).
		Height(a.height).
		Render(content)
}

func Run(deps screens.Deps) error {
	app := NewApp(deps)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
