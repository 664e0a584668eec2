package mutation

import (
	"context"
	"testing"

	"github.com/emilianohg/internhub/internal/apperr"
	"github.com/emilianohg/internhub/internal/models"
)

type fakeInterviews struct {
	rec *recorder
}

func (f *fakeInterviews) Create(ctx context.Context, iv models.Interview) (*models.Interview, error) {
	f.rec.record("interviews.create")
	iv.ID = 9
	iv.Status = "scheduled"
	return &iv, nil
}

func validInterview() ScheduleInterviewInput {
	return ScheduleInterviewInput{
		CompanyID: 7, UserID: "u1", JobID: 10,
		Date: "2024-06-10", Time: "14:00", InterviewType: InterviewOnline,
	}
}

func TestScheduleInterview(t *testing.T) {
	f := newFixture()
	f.svc.store.Interviews = &fakeInterviews{rec: f.rec}

	row, err := f.svc.ScheduleInterview(context.Background(), validInterview())
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if row.ID != 9 || row.StudentName != "田中" || row.ScheduledAt.IsZero() {
		t.Fatalf("unexpected row: %+v", row)
	}
	if f.rec.index("interviews.create") > f.rec.index("sink.publish") {
		t.Fatalf("notification before insert: %v", f.rec.calls)
	}
	if e := f.sink.events[0]; e.Type != EventInterviewScheduled || e.RecipientID != "u1" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestScheduleInterviewValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*ScheduleInterviewInput)
		field string
	}{
		{"bad date", func(in *ScheduleInterviewInput) { in.Date = "2024/06/10" }, "scheduled_date"},
		{"bad time", func(in *ScheduleInterviewInput) { in.Time = "25:00" }, "scheduled_time"},
		{"bad type", func(in *ScheduleInterviewInput) { in.InterviewType = "video" }, "interview_type"},
		{"in person without place", func(in *ScheduleInterviewInput) { in.InterviewType = InterviewInPerson }, "location"},
		{"no student", func(in *ScheduleInterviewInput) { in.UserID = "" }, "user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.svc.store.Interviews = &fakeInterviews{rec: f.rec}
			in := validInterview()
			tt.edit(&in)

			_, err := f.svc.ScheduleInterview(context.Background(), in)
			if !apperr.Is(err, apperr.KindValidation) || apperr.FieldOf(err) != tt.field {
				t.Fatalf("expected validation on %s, got %v", tt.field, err)
			}
			if len(f.rec.calls) != 0 {
				t.Fatalf("store touched: %v", f.rec.calls)
			}
		})
	}
}

func TestToggleBookmark(t *testing.T) {
	f := newFixture()
	on, err := f.svc.ToggleBookmark(context.Background(), "u1", 10)
	if err != nil || !on {
		t.Fatalf("toggle: on=%v err=%v", on, err)
	}
	if _, err := f.svc.ToggleBookmark(context.Background(), "", 10); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
}
