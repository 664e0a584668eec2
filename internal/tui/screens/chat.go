package screens

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilianohg/internhub/internal/aggregate"
	"github.com/emilianohg/internhub/internal/listview"
	"github.com/emilianohg/internhub/internal/models"
	"github.com/emilianohg/internhub/internal/mutation"
)

// Chat shows one application's thread and sends as the selected company.
type Chat struct {
	deps   Deps
	width  int
	height int

	companyID     int64
	applicationID int64
	messages      *listview.Rows[aggregate.MessageRow, int64]
	input         textinput.Model
	loading       bool
	sending       bool
	notice        string
}

func NewChat(deps Deps) *Chat {
	ti := textinput.New()
	ti.Placeholder = "メッセージを入力"
	ti.CharLimit = mutation.MaxMessageLength
	ti.Width = 60

	return &Chat{
		deps:     deps,
		messages: listview.NewRows(func(m aggregate.MessageRow) int64 { return m.ID }),
		input:    ti,
	}
}

func (c *Chat) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.input.Width = max(20, width-10)
}

func (c *Chat) SetThread(companyID, applicationID int64) {
	if c.applicationID != applicationID {
		c.messages = listview.NewRows(func(m aggregate.MessageRow) int64 { return m.ID })
		c.input.SetValue("")
	}
	c.companyID = companyID
	c.applicationID = applicationID
}

type chatDataMsg struct {
	rows []aggregate.MessageRow
	err  error
}

type messageSentMsg struct {
	row *aggregate.MessageRow
	err error
}

func (c *Chat) Init() tea.Cmd {
	c.loading = c.messages.Len() == 0
	c.notice = ""
	c.input.Focus()
	return tea.Batch(c.loadData, textinput.Blink)
}

func (c *Chat) loadData() tea.Msg {
	rows, err := c.deps.Reader.Thread(context.Background(), c.applicationID)
	return chatDataMsg{rows: rows, err: err}
}

func (c *Chat) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case chatDataMsg:
		c.loading = false
		if msg.err != nil {
			c.deps.logRead("load thread", msg.err, "application_id", c.applicationID)
		}
		c.messages.Load(msg.rows, msg.err)
		return nil

	case messageSentMsg:
		c.sending = false
		if msg.err != nil {
			// Keep the draft so it can be resent.
			c.notice = c.deps.writeNotice("send message", msg.err, "application_id", c.applicationID)
			return nil
		}
		c.messages.Append(*msg.row)
		c.input.SetValue("")
		return nil

	case RefreshMsg:
		return c.Init()

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			c.input.Blur()
			return NavigateWithCompany("applicants", c.companyID)
		case "enter":
			return c.send()
		case "ctrl+r":
			return c.loadData
		}
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return cmd
}

func (c *Chat) send() tea.Cmd {
	if c.sending {
		return nil
	}
	in := mutation.SendMessageInput{
		ApplicationID: c.applicationID,
		SenderType:    models.PartyCompany,
		SenderID:      strconv.FormatInt(c.companyID, 10),
		Content:       c.input.Value(),
	}
	c.sending = true
	c.notice = ""
	return func() tea.Msg {
		row, err := c.deps.Writer.SendMessage(context.Background(), in)
		return messageSentMsg{row: row, err: err}
	}
}

func (c *Chat) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("メッセージ"))
	b.WriteString("\n\n")

	if c.loading {
		b.WriteString("読み込み中...\n")
		return b.String()
	}

	items := c.messages.Items()
	if len(items) == 0 {
		b.WriteString(DimStyle.Render("まだメッセージはありません。"))
		b.WriteString("\n")
	}
	// Show the tail that fits above the composer.
	if limit := c.height - 10; limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	for _, m := range items {
		name := NormalStyle.Render(m.SenderName)
		if m.SenderType == models.PartyCompany {
			name = SelectedStyle.Render(m.SenderName)
		}
		b.WriteString(fmt.Sprintf("%s %s\n  %s\n", DimStyle.Render(m.SentAt), name, m.Content))
	}

	b.WriteString("\n")
	if c.notice != "" {
		b.WriteString(ErrorStyle.Render(c.notice))
		b.WriteString("\n")
	}
	b.WriteString(c.input.View())
	b.WriteString("\n")

	help := "[enter] 送信  [ctrl+r] 更新  [esc] 戻る"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}
