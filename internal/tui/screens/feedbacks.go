package screens

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilianohg/internhub/internal/aggregate"
	"github.com/emilianohg/internhub/internal/export"
	"github.com/emilianohg/internhub/internal/listview"
	"github.com/emilianohg/internhub/internal/models"
	"github.com/emilianohg/internhub/internal/mutation"
)

var exportFormats = []string{string(export.FormatCSV), string(export.FormatXLSX), string(export.FormatJSON)}

// The overall rating is edited as one more line after the template's
// categories.
const overallLine = "総合評価"

type Feedbacks struct {
	deps   Deps
	width  int
	height int

	companyID int64
	list      *list[aggregate.FeedbackRow, int64]
	format    string
	message   string
	notice    string

	// Creation wizard; nil while browsing.
	draft      *mutation.FeedbackDraft
	templates  []models.FeedbackTemplate
	candidates []aggregate.ApplicantRow
	pick       int
	commenting bool
	comment    textinput.Model
	submitting bool
}

func NewFeedbacks(deps Deps) *Feedbacks {
	ti := textinput.New()
	ti.Placeholder = "コメント"
	ti.CharLimit = 500
	ti.Width = 50

	return &Feedbacks{
		deps:    deps,
		list:    newList(aggregate.FeedbackSchema, func(r aggregate.FeedbackRow) int64 { return r.ID }, deps),
		format:  string(export.FormatCSV),
		comment: ti,
	}
}

func (f *Feedbacks) SetSize(width, height int) {
	f.width = width
	f.height = height
}

func (f *Feedbacks) SetCompany(companyID int64) {
	if f.companyID != companyID {
		f.list = newList(aggregate.FeedbackSchema, func(r aggregate.FeedbackRow) int64 { return r.ID }, f.deps)
	}
	f.companyID = companyID
}

type feedbacksDataMsg struct {
	rows []aggregate.FeedbackRow
	err  error
}

type wizardDataMsg struct {
	templates  []models.FeedbackTemplate
	candidates []aggregate.ApplicantRow
	err        error
}

type feedbackCreatedMsg struct {
	row *aggregate.FeedbackRow
	err error
}

type exportDoneMsg struct {
	path string
	err  error
}

func (f *Feedbacks) Init() tea.Cmd {
	f.list.loading = f.list.rows.Len() == 0
	f.draft = nil
	f.message = ""
	f.notice = ""
	return f.loadData
}

func (f *Feedbacks) loadData() tea.Msg {
	rows, err := f.deps.Reader.Feedbacks(context.Background(), f.companyID)
	return feedbacksDataMsg{rows: rows, err: err}
}

func (f *Feedbacks) loadWizard() tea.Msg {
	ctx, cancel := f.deps.bound()
	defer cancel()

	templates, err := f.deps.Templates.GetByCompanyID(ctx, f.companyID)
	if err != nil {
		return wizardDataMsg{err: err}
	}
	candidates, err := f.deps.Reader.Applicants(context.Background(), aggregate.ApplicantQuery{CompanyID: f.companyID})
	if err != nil {
		return wizardDataMsg{err: err}
	}
	return wizardDataMsg{templates: templates, candidates: candidates}
}

func (f *Feedbacks) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case feedbacksDataMsg:
		if msg.err != nil {
			f.deps.logRead("load feedbacks", msg.err, "company_id", f.companyID)
		}
		f.list.load(msg.rows, msg.err)
		return nil

	case wizardDataMsg:
		if msg.err != nil {
			f.deps.logRead("load feedback wizard", msg.err, "company_id", f.companyID)
			f.message = "評価の作成に必要なデータを読み込めませんでした"
			return nil
		}
		if len(msg.templates) == 0 {
			f.message = "評価テンプレートがありません"
			return nil
		}
		f.templates = msg.templates
		f.candidates = msg.candidates
		f.draft = mutation.NewFeedbackDraft(f.companyID)
		f.pick = 0
		return nil

	case feedbackCreatedMsg:
		f.submitting = false
		if msg.err != nil {
			f.notice = f.deps.writeNotice("create feedback", msg.err, "company_id", f.companyID)
			return nil
		}
		f.list.rows.Upsert(*msg.row)
		f.list.recompute()
		f.draft = nil
		f.message = fmt.Sprintf("%sさんの評価を登録しました", nameOrDash(msg.row.StudentName))
		return nil

	case exportDoneMsg:
		if msg.err != nil {
			f.notice = f.deps.writeNotice("export feedbacks", msg.err)
			return nil
		}
		f.message = "出力しました: " + msg.path
		return nil

	case RefreshMsg:
		return f.Init()

	case tea.KeyMsg:
		if f.draft != nil {
			return f.handleWizardKey(msg)
		}
		return f.handleListKey(msg)
	}

	if f.commenting {
		var cmd tea.Cmd
		f.comment, cmd = f.comment.Update(msg)
		return cmd
	}
	return f.list.updateInput(msg)
}

func (f *Feedbacks) handleListKey(msg tea.KeyMsg) tea.Cmd {
	if cmd, ok := f.list.handleKey(msg); ok {
		return cmd
	}

	switch msg.String() {
	case "f":
		ratings := []string{listview.All}
		for r := mutation.MaxRating; r >= mutation.MinRating; r-- {
			ratings = append(ratings, strconv.Itoa(r))
		}
		f.list.setFilter(aggregate.FilterRating, cycle(ratings, f.list.filter(aggregate.FilterRating)))
	case "o":
		f.format = cycle(exportFormats, f.format)
	case "x":
		return f.export()
	case "n":
		f.message = ""
		f.notice = ""
		return f.loadWizard
	case "r":
		return f.Init()
	case "q", "esc":
		return NavigateWithCompany("dashboard", f.companyID)
	}
	return nil
}

// export writes every row matching the current filters, not just the page.
func (f *Feedbacks) export() tea.Cmd {
	rows := f.list.view.Filtered()
	format := export.Format(f.format)
	dir := f.deps.ExportDir
	now := f.deps.now().In(f.deps.Location)
	return func() tea.Msg {
		path, err := export.WriteFile(dir, export.Feedbacks(rows), format, now)
		return exportDoneMsg{path: path, err: err}
	}
}

// wizardLines are the rows the ratings step edits.
func (f *Feedbacks) wizardLines() []string {
	if f.draft == nil || f.draft.Template == nil {
		return nil
	}
	return append(append([]string{}, f.draft.Template.Categories...), overallLine)
}

func (f *Feedbacks) handleWizardKey(msg tea.KeyMsg) tea.Cmd {
	if f.submitting {
		return nil
	}
	if f.commenting {
		return f.handleCommentKey(msg)
	}

	key := msg.String()
	if key == "esc" {
		f.notice = ""
		if f.draft.Step() == mutation.StepTemplate {
			f.draft = nil
			return nil
		}
		f.draft.Back()
		f.pick = 0
		return nil
	}

	var options int
	switch f.draft.Step() {
	case mutation.StepTemplate:
		options = len(f.templates)
	case mutation.StepStudent:
		options = len(f.candidates)
	default:
		options = len(f.wizardLines())
	}

	switch key {
	case "up", "k":
		if f.pick > 0 {
			f.pick--
		}
		return nil
	case "down", "j":
		if f.pick < options-1 {
			f.pick++
		}
		return nil
	}

	var err error
	switch f.draft.Step() {
	case mutation.StepTemplate:
		if key == "enter" && f.pick < len(f.templates) {
			err = f.draft.SelectTemplate(f.templates[f.pick])
			f.pick = 0
		}
	case mutation.StepStudent:
		if key == "enter" && f.pick < len(f.candidates) {
			c := f.candidates[f.pick]
			err = f.draft.SelectStudent(c.UserID, c.JobID)
			f.pick = 0
		}
	default:
		err = f.handleRatingKey(key)
		if err == nil && key == "enter" && f.draft.Step() == mutation.StepSubmit {
			return f.submit()
		}
	}
	if err != nil {
		f.notice = f.deps.writeNotice("feedback draft", err)
	} else {
		f.notice = ""
	}
	return nil
}

func (f *Feedbacks) handleRatingKey(key string) error {
	lines := f.wizardLines()
	if f.pick >= len(lines) {
		return nil
	}
	line := lines[f.pick]

	switch {
	case len(key) == 1 && key[0] >= '1' && key[0] <= '9':
		score := int(key[0] - '0')
		if line == overallLine {
			return f.draft.SetOverall(score, f.draft.OverallComment)
		}
		return f.draft.Rate(line, score)
	case key == "c":
		f.commenting = true
		if line == overallLine {
			f.comment.SetValue(f.draft.OverallComment)
		} else {
			f.comment.SetValue(f.draft.Comments[line])
		}
		f.comment.Focus()
	}
	return nil
}

func (f *Feedbacks) handleCommentKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		line := f.wizardLines()[f.pick]
		text := f.comment.Value()
		var err error
		if line == overallLine {
			f.draft.OverallComment = strings.TrimSpace(text)
		} else {
			err = f.draft.Comment(line, text)
		}
		if err != nil {
			f.notice = f.deps.writeNotice("feedback draft", err)
		}
		f.commenting = false
		f.comment.Blur()
		return nil
	case "esc":
		f.commenting = false
		f.comment.Blur()
		return nil
	}
	var cmd tea.Cmd
	f.comment, cmd = f.comment.Update(msg)
	return cmd
}

func (f *Feedbacks) submit() tea.Cmd {
	draft := f.draft
	f.submitting = true
	return func() tea.Msg {
		row, err := f.deps.Writer.CreateFeedback(context.Background(), draft)
		return feedbackCreatedMsg{row: row, err: err}
	}
}

func (f *Feedbacks) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("評価一覧"))
	b.WriteString("\n\n")

	if f.list.loading {
		b.WriteString("読み込み中...\n")
		return b.String()
	}

	if f.notice != "" {
		b.WriteString(ErrorStyle.Render(f.notice))
		b.WriteString("\n\n")
	}
	if f.message != "" {
		b.WriteString(SuccessStyle.Render(f.message))
		b.WriteString("\n\n")
	}

	if f.draft != nil {
		b.WriteString(f.wizardView())
		return b.String()
	}

	b.WriteString(DimStyle.Render(fmt.Sprintf("総合評価: %s  出力形式: %s",
		filterLabel(f.list.filter(aggregate.FilterRating)), f.format)))
	b.WriteString("\n")
	b.WriteString(f.list.status())
	b.WriteString("\n\n")

	if len(f.list.page.Items) == 0 {
		b.WriteString(DimStyle.Render("評価はまだありません。"))
		b.WriteString("\n")
	} else {
		b.WriteString(f.list.rowLines(func(r aggregate.FeedbackRow) string {
			return fmt.Sprintf("%s  %s  %s  %s  %s",
				nameOrDash(r.StudentName), r.JobTitle, r.TemplateName, stars(r.OverallRating), r.CreatedOn)
		}))
	}

	help := "[/] 検索  [f] 評価  [s] 並び替え  [←→] ページ  [n] 新規  [o] 形式  [x] 出力  [q] 戻る"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}

func (f *Feedbacks) wizardView() string {
	var b strings.Builder
	step := f.draft.Step()

	b.WriteString(SubtitleStyle.Render("評価の作成: " + step.String()))
	b.WriteString("\n")

	option := func(i int, text string) {
		cursor := "  "
		style := NormalStyle
		if i == f.pick {
			cursor = "> "
			style = SelectedStyle
		}
		b.WriteString(style.Render(cursor + text))
		b.WriteString("\n")
	}

	switch step {
	case mutation.StepTemplate:
		for i, t := range f.templates {
			option(i, fmt.Sprintf("%s (%s)", t.Name, strings.Join(t.Categories, "・")))
		}
		b.WriteString(HelpStyle.Render("[enter] 選択  [esc] 中止"))
	case mutation.StepStudent:
		if len(f.candidates) == 0 {
			b.WriteString(DimStyle.Render("応募者がいません。"))
			b.WriteString("\n")
		}
		for i, c := range f.candidates {
			option(i, fmt.Sprintf("%s  %s", nameOrDash(c.Name), c.JobTitle))
		}
		b.WriteString(HelpStyle.Render("[enter] 選択  [esc] 戻る"))
	default:
		for i, line := range f.wizardLines() {
			score, comment := f.draft.Ratings[line], f.draft.Comments[line]
			if line == overallLine {
				score, comment = f.draft.OverallRating, f.draft.OverallComment
			}
			text := fmt.Sprintf("%s  %s", line, stars(score))
			if comment != "" {
				text += "  " + DimStyle.Render(comment)
			}
			option(i, text)
		}
		if f.commenting {
			b.WriteString("\n")
			b.WriteString(f.comment.View())
			b.WriteString("\n")
		}
		help := "[1-5] 評価  [c] コメント  [esc] 戻る"
		if step == mutation.StepSubmit {
			help += "  [enter] 登録"
		}
		b.WriteString(HelpStyle.Render(help))
	}
	return b.String()
}

func stars(n int) string {
	if n <= 0 {
		return DimStyle.Render("未評価")
	}
	return strings.Repeat("★", n) + strings.Repeat("☆", max(mutation.MaxRating-n, 0))
}
