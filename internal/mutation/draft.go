package mutation

import (
	"fmt"
	"strings"

	"github.com/emilianohg/internhub/internal/apperr"
	"github.com/emilianohg/internhub/internal/models"
)

type DraftStep int

const (
	StepTemplate DraftStep = iota
	StepStudent
	StepRatings
	StepSubmit
)

func (s DraftStep) String() string {
	switch s {
	case StepTemplate:
		return "テンプレート選択"
	case StepStudent:
		return "学生選択"
	case StepRatings:
		return "評価入力"
	default:
		return "確認"
	}
}

const (
	MinRating = 1
	MaxRating = 5
)

// FeedbackDraft collects a feedback across the creation steps: template,
// then student, then ratings. The current step is derived from what has been
// filled in, so going back simply clears a selection.
type FeedbackDraft struct {
	CompanyID      int64
	Template       *models.FeedbackTemplate
	StudentID      string
	JobID          int64
	Ratings        map[string]int
	Comments       map[string]string
	OverallComment string
	OverallRating  int
}

func NewFeedbackDraft(companyID int64) *FeedbackDraft {
	return &FeedbackDraft{
		CompanyID: companyID,
		Ratings:   map[string]int{},
		Comments:  map[string]string{},
	}
}

func (d *FeedbackDraft) Step() DraftStep {
	switch {
	case d.Template == nil:
		return StepTemplate
	case d.StudentID == "" || d.JobID == 0:
		return StepStudent
	case !d.ratingsComplete():
		return StepRatings
	default:
		return StepSubmit
	}
}

// SelectTemplate picks the template. Ratings from a previous template are
// dropped because its categories may differ.
func (d *FeedbackDraft) SelectTemplate(t models.FeedbackTemplate) error {
	if t.CompanyID != d.CompanyID {
		return apperr.Validation("template_id", "このテンプレートは選択できません")
	}
	d.Template = &t
	d.Ratings = map[string]int{}
	d.Comments = map[string]string{}
	return nil
}

func (d *FeedbackDraft) SelectStudent(userID string, jobID int64) error {
	if d.Template == nil {
		return apperr.Validation("template_id", "先にテンプレートを選択してください")
	}
	if strings.TrimSpace(userID) == "" || jobID <= 0 {
		return apperr.Validation("student_id", "学生を選択してください")
	}
	d.StudentID = userID
	d.JobID = jobID
	return nil
}

func (d *FeedbackDraft) Rate(category string, score int) error {
	if d.Step() < StepRatings {
		return apperr.Validation("student_id", "先に学生を選択してください")
	}
	if !d.hasCategory(category) {
		return apperr.Validation("ratings", fmt.Sprintf("評価項目「%s」はテンプレートにありません", category))
	}
	if score < MinRating || score > MaxRating {
		return apperr.Validation("ratings", fmt.Sprintf("評価は%dから%dで入力してください", MinRating, MaxRating))
	}
	d.Ratings[category] = score
	return nil
}

func (d *FeedbackDraft) Comment(category, text string) error {
	if !d.hasCategory(category) {
		return apperr.Validation("comments", fmt.Sprintf("評価項目「%s」はテンプレートにありません", category))
	}
	d.Comments[category] = strings.TrimSpace(text)
	return nil
}

func (d *FeedbackDraft) SetOverall(rating int, comment string) error {
	if rating < MinRating || rating > MaxRating {
		return apperr.Validation("overall_rating", fmt.Sprintf("総合評価は%dから%dで入力してください", MinRating, MaxRating))
	}
	d.OverallRating = rating
	d.OverallComment = strings.TrimSpace(comment)
	return nil
}

// Back undoes the most recent completed step.
func (d *FeedbackDraft) Back() {
	switch d.Step() {
	case StepSubmit, StepRatings:
		if len(d.Ratings) > 0 || d.OverallRating != 0 {
			d.Ratings = map[string]int{}
			d.Comments = map[string]string{}
			d.OverallRating = 0
			d.OverallComment = ""
			return
		}
		d.StudentID, d.JobID = "", 0
	case StepStudent:
		d.Template = nil
	}
}

// Validate checks the draft is ready to submit.
func (d *FeedbackDraft) Validate() error {
	if d.CompanyID <= 0 {
		return apperr.Validation("company_id", "企業が選択されていません")
	}
	if d.Template == nil {
		return apperr.Validation("template_id", "テンプレートを選択してください")
	}
	if d.StudentID == "" || d.JobID <= 0 {
		return apperr.Validation("student_id", "学生を選択してください")
	}
	for _, c := range d.Template.Categories {
		if score := d.Ratings[c]; score < MinRating || score > MaxRating {
			return apperr.Validation("ratings", fmt.Sprintf("「%s」の評価を入力してください", c))
		}
	}
	if d.OverallRating < MinRating || d.OverallRating > MaxRating {
		return apperr.Validation("overall_rating", "総合評価を入力してください")
	}
	return nil
}

// Feedback converts a validated draft into the row to insert.
func (d *FeedbackDraft) Feedback() models.Feedback {
	f := models.Feedback{
		StudentID:      d.StudentID,
		CompanyID:      d.CompanyID,
		JobID:          d.JobID,
		Ratings:        make(map[string]int, len(d.Ratings)),
		Comments:       make(map[string]string, len(d.Comments)),
		OverallComment: d.OverallComment,
		OverallRating:  d.OverallRating,
	}
	if d.Template != nil {
		f.TemplateID = d.Template.ID
	}
	for k, v := range d.Ratings {
		f.Ratings[k] = v
	}
	for k, v := range d.Comments {
		if v != "" {
			f.Comments[k] = v
		}
	}
	return f
}

func (d *FeedbackDraft) hasCategory(category string) bool {
	if d.Template == nil {
		return false
	}
	for _, c := range d.Template.Categories {
		if c == category {
			return true
		}
	}
	return false
}

func (d *FeedbackDraft) ratingsComplete() bool {
	for _, c := range d.Template.Categories {
		if d.Ratings[c] == 0 {
			return false
		}
	}
	return d.OverallRating != 0
}
