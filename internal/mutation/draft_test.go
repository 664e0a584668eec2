package mutation

import (
	"context"
	"testing"

	"github.com/emilianohg/internhub/internal/apperr"
	"github.com/emilianohg/internhub/internal/models"
)

type fakeFeedbacks struct {
	rec *recorder
	got *models.Feedback
}

func (f *fakeFeedbacks) Create(ctx context.Context, fb models.Feedback) (*models.Feedback, error) {
	f.rec.record("feedbacks.create")
	fb.ID = 42
	f.got = &fb
	return &fb, nil
}

func template() models.FeedbackTemplate {
	return models.FeedbackTemplate{ID: 3, CompanyID: 7, Name: "標準評価", Categories: []string{"技術力", "協調性"}}
}

func TestFeedbackDraftSteps(t *testing.T) {
	d := NewFeedbackDraft(7)
	if d.Step() != StepTemplate {
		t.Fatalf("start at %v", d.Step())
	}

	if err := d.SelectStudent("u1", 10); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("student before template should fail, got %v", err)
	}
	if err := d.SelectTemplate(template()); err != nil {
		t.Fatalf("template: %v", err)
	}
	if d.Step() != StepStudent {
		t.Fatalf("expected student step, got %v", d.Step())
	}

	if err := d.SelectStudent("u1", 10); err != nil {
		t.Fatalf("student: %v", err)
	}
	if d.Step() != StepRatings {
		t.Fatalf("expected ratings step, got %v", d.Step())
	}

	if err := d.Rate("技術力", 6); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("rating out of range accepted: %v", err)
	}
	if err := d.Rate("営業力", 3); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("unknown category accepted: %v", err)
	}
	for _, c := range []string{"技術力", "協調性"} {
		if err := d.Rate(c, 4); err != nil {
			t.Fatalf("rate %s: %v", c, err)
		}
	}
	if err := d.Validate(); !apperr.Is(err, apperr.KindValidation) || apperr.FieldOf(err) != "overall_rating" {
		t.Fatalf("missing overall rating should fail, got %v", err)
	}
	if err := d.SetOverall(5, " とても良い "); err != nil {
		t.Fatalf("overall: %v", err)
	}
	if d.Step() != StepSubmit {
		t.Fatalf("expected submit step, got %v", d.Step())
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestFeedbackDraftBack(t *testing.T) {
	d := NewFeedbackDraft(7)
	d.SelectTemplate(template())
	d.SelectStudent("u1", 10)
	d.Rate("技術力", 2)

	d.Back()
	if len(d.Ratings) != 0 || d.Step() != StepRatings {
		t.Fatalf("back from ratings should clear them: %+v", d)
	}
	d.Back()
	if d.Step() != StepStudent {
		t.Fatalf("expected student step, got %v", d.Step())
	}
	d.Back()
	if d.Step() != StepTemplate {
		t.Fatalf("expected template step, got %v", d.Step())
	}
}

func TestFeedbackDraftRejectsForeignTemplate(t *testing.T) {
	d := NewFeedbackDraft(8)
	if err := d.SelectTemplate(template()); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("template of another company accepted: %v", err)
	}
}

func TestCreateFeedback(t *testing.T) {
	f := newFixture()
	feedbacks := &fakeFeedbacks{rec: f.rec}
	f.svc.store.Feedbacks = feedbacks

	d := NewFeedbackDraft(7)
	d.SelectTemplate(template())
	d.SelectStudent("u1", 10)
	d.Rate("技術力", 4)
	d.Rate("協調性", 3)
	d.Comment("技術力", "Goの理解が深い")
	d.SetOverall(4, "")

	row, err := f.svc.CreateFeedback(context.Background(), d)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if row.ID != 42 || row.StudentName != "田中" || row.TemplateName != "標準評価" || row.JobTitle != "開発インターン" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if feedbacks.got.TemplateID != 3 || feedbacks.got.Ratings["協調性"] != 3 {
		t.Fatalf("unexpected insert: %+v", feedbacks.got)
	}
	if f.rec.index("feedbacks.create") > f.rec.index("sink.publish") {
		t.Fatalf("notification before insert: %v", f.rec.calls)
	}
	if e := f.sink.events[0]; e.Type != EventFeedbackReceived || e.RecipientID != "u1" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestCreateFeedbackIncompleteDraftMakesNoStoreCall(t *testing.T) {
	f := newFixture()
	f.svc.store.Feedbacks = &fakeFeedbacks{rec: f.rec}

	d := NewFeedbackDraft(7)
	d.SelectTemplate(template())
	_, err := f.svc.CreateFeedback(context.Background(), d)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.rec.calls) != 0 {
		t.Fatalf("store touched: %v", f.rec.calls)
	}
}
