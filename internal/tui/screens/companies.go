package screens

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilianohg/internhub/internal/repository"
)

type companiesMode int

const (
	companiesModeList companiesMode = iota
	companiesModeAdd
	companiesModeEdit
	companiesModeDelete
)

// CompanySelectedMsg tells the app which company the company-scoped screens
// now act for.
type CompanySelectedMsg struct {
	ID   int64
	Name string
}

type Companies struct {
	deps   Deps
	width  int
	height int

	companies []repository.CompanyWithStats
	cursor    int
	mode      companiesMode
	name      textinput.Model
	industry  textinput.Model
	loading   bool
	message   string
	notice    string
}

func NewCompanies(deps Deps) *Companies {
	name := textinput.New()
	name.Placeholder = "企業名"
	name.CharLimit = 100
	name.Width = 40

	industry := textinput.New()
	industry.Placeholder = "業種"
	industry.CharLimit = 100
	industry.Width = 40

	return &Companies{
		deps:     deps,
		name:     name,
		industry: industry,
	}
}

func (c *Companies) SetSize(width, height int) {
	c.width = width
	c.height = height
}

// Typing reports whether a text field has focus.
func (c *Companies) Typing() bool {
	return c.mode == companiesModeAdd || c.mode == companiesModeEdit
}

type companiesDataMsg struct {
	companies []repository.CompanyWithStats
	err       error
}

type companySavedMsg struct {
	message string
	err     error
}

func (c *Companies) Init() tea.Cmd {
	c.loading = c.companies == nil
	c.mode = companiesModeList
	return c.loadData
}

func (c *Companies) loadData() tea.Msg {
	ctx, cancel := c.deps.bound()
	defer cancel()
	companies, err := c.deps.Companies.GetAllWithStats(ctx)
	return companiesDataMsg{companies: companies, err: err}
}

func (c *Companies) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case companiesDataMsg:
		c.loading = false
		if msg.err != nil {
			c.deps.logRead("load companies", msg.err)
			return nil
		}
		c.companies = msg.companies
		if c.companies == nil {
			c.companies = []repository.CompanyWithStats{}
		}
		if c.cursor >= len(c.companies) {
			c.cursor = max(0, len(c.companies)-1)
		}
		return nil

	case companySavedMsg:
		if msg.err != nil {
			c.notice = c.deps.writeNotice("save company", msg.err)
			return nil
		}
		c.message = msg.message
		return c.loadData

	case RefreshMsg:
		return c.Init()

	case tea.KeyMsg:
		return c.handleKey(msg)
	}

	if c.mode == companiesModeAdd || c.mode == companiesModeEdit {
		return c.updateInputs(msg)
	}

	return nil
}

func (c *Companies) updateInputs(msg tea.Msg) tea.Cmd {
	var cmds [2]tea.Cmd
	c.name, cmds[0] = c.name.Update(msg)
	c.industry, cmds[1] = c.industry.Update(msg)
	return tea.Batch(cmds[:]...)
}

func (c *Companies) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch c.mode {
	case companiesModeList:
		return c.handleListKey(msg)
	case companiesModeAdd, companiesModeEdit:
		return c.handleInputKey(msg)
	case companiesModeDelete:
		return c.handleDeleteKey(msg)
	}
	return nil
}

func (c *Companies) handleListKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if c.cursor > 0 {
			c.cursor--
		}
	case "down", "j":
		if c.cursor < len(c.companies)-1 {
			c.cursor++
		}
	case "a":
		c.mode = companiesModeAdd
		c.name.SetValue("")
		c.industry.SetValue("")
		c.industry.Blur()
		return c.name.Focus()
	case "e":
		if len(c.companies) > 0 {
			c.mode = companiesModeEdit
			c.name.SetValue(c.companies[c.cursor].Name)
			c.industry.SetValue(c.companies[c.cursor].Industry)
			c.industry.Blur()
			return c.name.Focus()
		}
	case "d":
		if len(c.companies) > 0 {
			c.mode = companiesModeDelete
		}
	case "s":
		return Navigate("students")
	case "enter":
		if len(c.companies) > 0 {
			company := c.companies[c.cursor]
			return func() tea.Msg {
				return CompanySelectedMsg{ID: company.ID, Name: company.Name}
			}
		}
	}
	return nil
}

func (c *Companies) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "shift+tab":
		if c.name.Focused() {
			c.name.Blur()
			return c.industry.Focus()
		}
		c.industry.Blur()
		return c.name.Focus()

	case "enter":
		name := strings.TrimSpace(c.name.Value())
		industry := strings.TrimSpace(c.industry.Value())
		mode := c.mode
		c.mode = companiesModeList
		c.name.Blur()
		c.industry.Blur()
		if name == "" {
			return nil
		}
		c.message = ""
		c.notice = ""

		var id int64
		if mode == companiesModeEdit {
			id = c.companies[c.cursor].ID
		}
		return func() tea.Msg {
			ctx, cancel := c.deps.bound()
			defer cancel()
			if mode == companiesModeAdd {
				_, err := c.deps.Companies.Create(ctx, name, industry)
				return companySavedMsg{message: fmt.Sprintf("「%s」を登録しました", name), err: err}
			}
			err := c.deps.Companies.Update(ctx, id, name, industry)
			return companySavedMsg{message: fmt.Sprintf("「%s」を更新しました", name), err: err}
		}

	case "esc":
		c.mode = companiesModeList
		c.name.Blur()
		c.industry.Blur()
		return nil
	}
	return c.updateInputs(msg)
}

func (c *Companies) handleDeleteKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y":
		company := c.companies[c.cursor]
		c.mode = companiesModeList
		c.message = ""
		c.notice = ""
		return func() tea.Msg {
			ctx, cancel := c.deps.bound()
			defer cancel()
			err := c.deps.Companies.Delete(ctx, company.ID)
			return companySavedMsg{message: fmt.Sprintf("「%s」を削除しました", company.Name), err: err}
		}

	case "n", "N", "esc":
		c.mode = companiesModeList
	}
	return nil
}

func (c *Companies) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("企業"))
	b.WriteString("\n\n")

	if c.loading {
		b.WriteString("読み込み中...\n")
		return b.String()
	}

	if c.notice != "" {
		b.WriteString(ErrorStyle.Render(c.notice))
		b.WriteString("\n\n")
	}
	if c.message != "" {
		b.WriteString(SuccessStyle.Render(c.message))
		b.WriteString("\n\n")
	}

	if c.mode == companiesModeAdd || c.mode == companiesModeEdit {
		if c.mode == companiesModeAdd {
			b.WriteString("新しい企業:\n")
		} else {
			b.WriteString("企業の編集:\n")
		}
		b.WriteString(c.name.View())
		b.WriteString("\n")
		b.WriteString(c.industry.View())
		b.WriteString("\n\n")
		b.WriteString(HelpStyle.Render("[tab] 項目切替  [enter] 保存  [esc] キャンセル"))
		return b.String()
	}

	if c.mode == companiesModeDelete && len(c.companies) > 0 {
		b.WriteString(WarningStyle.Render(fmt.Sprintf(
			"「%s」を削除しますか? 求人と応募もすべて削除されます。(y/n)",
			c.companies[c.cursor].Name,
		)))
		b.WriteString("\n")
		return b.String()
	}

	if len(c.companies) == 0 {
		b.WriteString(DimStyle.Render("企業はまだ登録されていません。"))
		b.WriteString("\n\n")
	} else {
		for i, company := range c.companies {
			cursor := "  "
			style := NormalStyle
			if i == c.cursor {
				cursor = "> "
				style = SelectedStyle
			}

			line := fmt.Sprintf("%s%s %s (求人 %d件、公開中 %d件、応募 %d件)",
				cursor,
				company.Name,
				DimStyle.Render(company.Industry),
				company.JobCount,
				company.PublishedJobs,
				company.ApplicationCount,
			)
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	help := "[a] 追加  [e] 編集  [d] 削除  [enter] 選択  [s] 学生一覧  [q] 終了"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}
