package aggregate

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/emilianohg/internhub/internal/apperr"
	"github.com/emilianohg/internhub/internal/db"
	"github.com/emilianohg/internhub/internal/models"
	"github.com/emilianohg/internhub/internal/repository"
)

type fakeApplications struct {
	rows []models.Application
	err  error
}

func (f *fakeApplications) List(ctx context.Context, _ repository.ApplicationFilter) ([]models.Application, error) {
	return f.rows, f.err
}

func (f *fakeApplications) Count(ctx context.Context, _ repository.ApplicationFilter) (int, error) {
	return len(f.rows), f.err
}

func (f *fakeApplications) CountsByUser(ctx context.Context, _ []string) (map[string]repository.ApplicationCounts, error) {
	return nil, f.err
}

type fakeProfiles struct {
	rows  []models.Profile
	err   error
	calls [][]string
	block bool
}

func (f *fakeProfiles) GetByUserIDs(ctx context.Context, userIDs []string) ([]models.Profile, error) {
	f.calls = append(f.calls, userIDs)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.rows, f.err
}

type fakeJobs struct {
	rows  []models.Job
	err   error
	calls int
}

func (f *fakeJobs) GetByIDs(ctx context.Context, _ []int64) ([]models.Job, error) {
	f.calls++
	return f.rows, f.err
}

func (f *fakeJobs) Count(ctx context.Context, _ int64, _ string) (int, error) {
	return len(f.rows), f.err
}

func applicantsAggregator(apps []models.Application, profiles *fakeProfiles, jobs *fakeJobs) *Aggregator {
	return New(Sources{
		Applications: &fakeApplications{rows: apps},
		Profiles:     profiles,
		Jobs:         jobs,
	}, time.UTC)
}

func TestApplicantsFallbackName(t *testing.T) {
	apps := []models.Application{
		{ID: 1, UserID: "u1", JobID: 10},
		{ID: 2, UserID: "u2", JobID: 10},
	}
	profiles := &fakeProfiles{rows: []models.Profile{{UserID: "u1", FullName: "田中"}}}
	agg := applicantsAggregator(apps, profiles, &fakeJobs{})

	rows, err := agg.Applicants(context.Background(), ApplicantQuery{CompanyID: 1})
	if err != nil {
		t.Fatalf("Applicants: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ID != 1 || rows[0].Name != "田中" {
		t.Errorf("row 0: got id=%d name=%q", rows[0].ID, rows[0].Name)
	}
	if rows[1].ID != 2 || rows[1].Name != "" {
		t.Errorf("row 1: got id=%d name=%q, want fallback empty name", rows[1].ID, rows[1].Name)
	}
}

func TestApplicantsJoinUsesOneFetchPerTable(t *testing.T) {
	apps := []models.Application{
		{ID: 1, UserID: "A", JobID: 10},
		{ID: 2, UserID: "B", JobID: 11},
		{ID: 3, UserID: "C", JobID: 10},
		{ID: 4, UserID: "A", JobID: 12},
	}
	profiles := &fakeProfiles{rows: []models.Profile{
		{UserID: "A", FullName: "Aさん", University: "京都大学"},
		{UserID: "C", FullName: "Cさん"},
	}}
	jobs := &fakeJobs{rows: []models.Job{{ID: 10, Title: "企画"}, {ID: 12, Title: "営業"}}}
	agg := applicantsAggregator(apps, profiles, jobs)

	rows, err := agg.Applicants(context.Background(), ApplicantQuery{CompanyID: 1})
	if err != nil {
		t.Fatalf("Applicants: %v", err)
	}

	if len(profiles.calls) != 1 || jobs.calls != 1 {
		t.Fatalf("expected one in-set fetch per table, got profiles=%d jobs=%d", len(profiles.calls), jobs.calls)
	}
	if got := profiles.calls[0]; len(got) != 3 {
		t.Fatalf("expected distinct user ids [A B C], got %v", got)
	}

	want := []struct {
		id    int64
		name  string
		title string
	}{
		{1, "Aさん", "企画"},
		{2, "", ""},
		{3, "Cさん", "企画"},
		{4, "Aさん", "営業"},
	}
	for i, w := range want {
		if rows[i].ID != w.id || rows[i].Name != w.name || rows[i].JobTitle != w.title {
			t.Errorf("row %d: got (%d, %q, %q), want (%d, %q, %q)",
				i, rows[i].ID, rows[i].Name, rows[i].JobTitle, w.id, w.name, w.title)
		}
	}
}

func TestApplicantsSecondaryFailureReturnsNoRows(t *testing.T) {
	apps := []models.Application{{ID: 1, UserID: "u1", JobID: 10}}
	agg := applicantsAggregator(apps, &fakeProfiles{}, &fakeJobs{err: errors.New("connection reset")})

	rows, err := agg.Applicants(context.Background(), ApplicantQuery{CompanyID: 1})
	if rows != nil {
		t.Fatalf("expected no partial rows, got %v", rows)
	}
	if !apperr.Is(err, apperr.KindFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if apperr.Surfaced(err) {
		t.Fatal("fetch errors must not be surfaced")
	}
}

func TestApplicantsTimeout(t *testing.T) {
	apps := []models.Application{{ID: 1, UserID: "u1", JobID: 10}}
	agg := New(Sources{
		Applications: &fakeApplications{rows: apps},
		Profiles:     &fakeProfiles{block: true},
		Jobs:         &fakeJobs{},
	}, time.UTC, WithTimeout(10*time.Millisecond))

	_, err := agg.Applicants(context.Background(), ApplicantQuery{CompanyID: 1})
	if !apperr.Is(err, apperr.KindTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestApplicantsEmptyPrimarySkipsLookups(t *testing.T) {
	profiles := &fakeProfiles{}
	jobs := &fakeJobs{}
	agg := applicantsAggregator(nil, profiles, jobs)

	rows, err := agg.Applicants(context.Background(), ApplicantQuery{CompanyID: 1})
	if err != nil {
		t.Fatalf("Applicants: %v", err)
	}
	if len(rows) != 0 || len(profiles.calls) != 0 || jobs.calls != 0 {
		t.Fatalf("expected no lookups for an empty primary set")
	}
}

func TestFormatDateUsesDisplayZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// 2024-03-31 16:00 UTC is already April 1st in Tokyo.
	ts := time.Date(2024, 3, 31, 16, 0, 0, 0, time.UTC)
	if got := FormatDate(ts, tokyo); got != "2024/4/1" {
		t.Fatalf("got %q, want 2024/4/1", got)
	}
	if got := FormatDate(time.Time{}, tokyo); got != "" {
		t.Fatalf("zero time should format empty, got %q", got)
	}
}

func TestParseSchedule(t *testing.T) {
	got := ParseSchedule("2024-05-10", "14:30", time.UTC)
	if !got.Equal(time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)) {
		t.Fatalf("got %v", got)
	}
	if got := ParseSchedule("2024-05-10", "", time.UTC); got.Hour() != 0 || got.Day() != 10 {
		t.Fatalf("date-only: got %v", got)
	}
	if got := ParseSchedule("not a date", "", time.UTC); !got.IsZero() {
		t.Fatalf("expected zero time, got %v", got)
	}
}

func TestAggregationsAgainstSQLite(t *testing.T) {
	database, err := db.OpenAndMigrate(filepath.Join(t.TempDir(), "agg.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()
	ctx := context.Background()

	company, err := repository.NewCompanyRepo(database).Create(ctx, "株式会社サンプル", "IT")
	if err != nil {
		t.Fatalf("company: %v", err)
	}
	job, err := repository.NewJobRepo(database).Create(ctx, company.ID, "Web開発", models.JobPublished, time.Time{})
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	students := repository.NewStudentRepo(database)
	profiles := repository.NewProfileRepo(database)
	for _, u := range []string{"u1", "u2"} {
		if _, err := students.Create(ctx, u, u+"@example.com", time.Time{}); err != nil {
			t.Fatalf("student: %v", err)
		}
	}
	if err := profiles.Upsert(ctx, models.Profile{UserID: "u1", FullName: "田中", University: "大阪大学"}); err != nil {
		t.Fatalf("profile: %v", err)
	}

	apps := repository.NewApplicationRepo(database)
	first, err := apps.Create(ctx, models.Application{UserID: "u1", JobID: job.ID, CompanyID: company.ID, Status: models.StatusAccepted})
	if err != nil {
		t.Fatalf("application: %v", err)
	}
	if _, err := apps.Create(ctx, models.Application{UserID: "u2", JobID: job.ID, CompanyID: company.ID}); err != nil {
		t.Fatalf("application: %v", err)
	}
	if _, err := repository.NewMessageRepo(database).Create(ctx, models.Message{
		ChatRoomID: "r1", ApplicationID: first.ID, SenderType: models.PartyCompany,
		SenderID: strconv.FormatInt(company.ID, 10), Content: "面談の候補日です",
	}); err != nil {
		t.Fatalf("message: %v", err)
	}
	if _, err := repository.NewMessageRepo(database).Create(ctx, models.Message{
		ChatRoomID: "r1", ApplicationID: first.ID, SenderType: models.PartyStudent, SenderID: "u1", Content: "ありがとうございます",
	}); err != nil {
		t.Fatalf("message: %v", err)
	}

	if _, err := repository.NewInterviewRepo(database).Create(ctx, models.Interview{
		CompanyID: company.ID, UserID: "u2", JobID: job.ID,
		ScheduledDate: "2099-05-10", ScheduledTime: "10:00", InterviewType: "online",
	}); err != nil {
		t.Fatalf("interview: %v", err)
	}
	tmpl, err := repository.NewFeedbackTemplateRepo(database).Create(ctx, company.ID, "一次面談", []string{"技術力"})
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if _, err := repository.NewFeedbackRepo(database).Create(ctx, models.Feedback{
		StudentID: "u1", CompanyID: company.ID, JobID: job.ID, TemplateID: tmpl.ID,
		Ratings: map[string]int{"技術力": 4}, OverallRating: 4,
	}); err != nil {
		t.Fatalf("feedback: %v", err)
	}

	agg := New(SourcesFromDB(database), time.UTC, WithTimeout(5*time.Second))

	studentRows, err := agg.Students(ctx)
	if err != nil {
		t.Fatalf("Students: %v", err)
	}
	byUser := map[string]StudentRow{}
	for _, r := range studentRows {
		byUser[r.UserID] = r
	}
	if r := byUser["u1"]; r.Name != "田中" || r.ApplicationCount != 1 || r.HireCount != 1 {
		t.Errorf("u1: %+v", r)
	}
	if r := byUser["u2"]; r.Name != "" || r.ApplicationCount != 1 || r.HireCount != 0 {
		t.Errorf("u2: %+v", r)
	}

	interviews, err := agg.Interviews(ctx, company.ID)
	if err != nil {
		t.Fatalf("Interviews: %v", err)
	}
	if len(interviews) != 1 {
		t.Fatalf("interviews: %+v", interviews)
	}
	if iv := interviews[0]; iv.StudentName != "" || iv.JobTitle != "Web開発" ||
		!iv.ScheduledAt.Equal(time.Date(2099, 5, 10, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("interview row: %+v", iv)
	}

	feedbacks, err := agg.Feedbacks(ctx, company.ID)
	if err != nil {
		t.Fatalf("Feedbacks: %v", err)
	}
	if len(feedbacks) != 1 {
		t.Fatalf("feedbacks: %+v", feedbacks)
	}
	if fb := feedbacks[0]; fb.StudentName != "田中" || fb.TemplateName != "一次面談" || fb.Ratings["技術力"] != 4 {
		t.Errorf("feedback row: %+v", fb)
	}

	dash, err := agg.Dashboard(ctx, company.ID)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if dash.PublishedJobs != 1 || dash.TotalApplications != 2 || dash.Screening != 1 ||
		dash.UpcomingInterviews != 1 || dash.Feedbacks != 1 {
		t.Errorf("dashboard: %+v", dash)
	}

	thread, err := agg.Thread(ctx, first.ID)
	if err != nil {
		t.Fatalf("Thread: %v", err)
	}
	if len(thread) != 2 || thread[0].SenderName != company.Name || thread[1].SenderName != "田中" {
		t.Fatalf("thread: %+v", thread)
	}

	notifications := repository.NewNotificationRepo(database)
	for _, title := range []string{"古い通知", "新しい通知"} {
		if _, err := notifications.Create(ctx, models.Notification{
			RecipientType: models.PartyCompany, RecipientID: strconv.FormatInt(company.ID, 10),
			Type: "new_application", ResourceType: "application", ResourceID: first.ID,
			Payload: []byte(`{"job_title":"` + title + `","job_id":3}`),
		}); err != nil {
			t.Fatalf("notification: %v", err)
		}
	}
	if _, err := notifications.Create(ctx, models.Notification{
		RecipientType: models.PartyStudent, RecipientID: "u1", Type: "job_published",
		ResourceType: "job", ResourceID: job.ID,
	}); err != nil {
		t.Fatalf("notification: %v", err)
	}
	recent, err := agg.Notifications(ctx, company.ID, 1)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(recent) != 1 || recent[0].Text("job_title") != "新しい通知" || recent[0].Read {
		t.Fatalf("notifications: %+v", recent)
	}
	if got := recent[0].Text("job_id"); got != "3" {
		t.Errorf("numeric payload text = %q, want 3", got)
	}
	all, err := agg.Notifications(ctx, company.ID, 0)
	if err != nil || len(all) != 2 {
		t.Errorf("all notifications: %d %v", len(all), err)
	}
}

func TestNotificationRowBadPayload(t *testing.T) {
	row := NewNotificationRow(models.Notification{ID: 1, Type: "new_message", Payload: []byte("not json")}, time.UTC)
	if row.Payload == nil || len(row.Payload) != 0 || row.Text("preview") != "" {
		t.Errorf("bad payload should decode to an empty map: %+v", row)
	}
}

func TestFeedbackRowTemplateFallback(t *testing.T) {
	row := NewFeedbackRow(models.Feedback{ID: 1, TemplateID: 42, StudentID: "u9"}, nil, nil, nil, time.UTC)
	if row.TemplateName != "42" {
		t.Errorf("TemplateName = %q, want raw id", row.TemplateName)
	}
	if row.StudentName != "" || row.JobTitle != "" {
		t.Errorf("missing lookups should leave empty fields: %+v", row)
	}
}
