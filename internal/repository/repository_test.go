package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/emilianohg/internhub/internal/db"
	"github.com/emilianohg/internhub/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenAndMigrate(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func seedCompanyJob(t *testing.T, database *sql.DB) (*models.Company, *models.Job) {
	t.Helper()
	ctx := context.Background()
	company, err := NewCompanyRepo(database).Create(ctx, "テスト株式会社", "IT")
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	job, err := NewJobRepo(database).Create(ctx, company.ID, "バックエンド開発インターン", models.JobPublished, time.Time{})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return company, job
}

func TestApplicationListOrderAndFilter(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	company, job := seedCompanyJob(t, database)
	repo := NewApplicationRepo(database)

	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	for i, user := range []string{"u1", "u2", "u3"} {
		status := models.StatusScreening
		if user == "u2" {
			status = models.StatusAccepted
		}
		_, err := repo.Create(ctx, models.Application{
			UserID: user, JobID: job.ID, CompanyID: company.ID,
			Status: status, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("create application %s: %v", user, err)
		}
	}

	apps, err := repo.List(ctx, ApplicationFilter{CompanyID: company.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var users []string
	for _, a := range apps {
		users = append(users, a.UserID)
	}
	if len(users) != 3 || users[0] != "u3" || users[2] != "u1" {
		t.Fatalf("expected newest first [u3 u2 u1], got %v", users)
	}

	n, err := repo.Count(ctx, ApplicationFilter{CompanyID: company.ID, Status: models.StatusScreening})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 in screening, got %d", n)
	}

	limited, err := repo.List(ctx, ApplicationFilter{CompanyID: company.ID, Limit: 1})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 row with limit, got %d", len(limited))
	}
}

func TestApplicationCompareAndSetStatus(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	company, job := seedCompanyJob(t, database)
	repo := NewApplicationRepo(database)

	app, err := repo.Create(ctx, models.Application{UserID: "u1", JobID: job.ID, CompanyID: company.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if app.Status != models.StatusScreening {
		t.Fatalf("expected default status %s, got %s", models.StatusScreening, app.Status)
	}

	ok, err := repo.CompareAndSetStatus(ctx, app.ID, models.StatusScreening, models.StatusInterview, time.Time{})
	if err != nil || !ok {
		t.Fatalf("first transition: ok=%v err=%v", ok, err)
	}

	// A second writer still believing the old status loses.
	ok, err = repo.CompareAndSetStatus(ctx, app.ID, models.StatusScreening, models.StatusRejected, time.Time{})
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if ok {
		t.Fatal("expected stale transition to be rejected")
	}

	got, err := repo.GetByID(ctx, app.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusInterview || got.Version != app.Version+1 {
		t.Fatalf("unexpected row after CAS: %+v", got)
	}
}

func TestApplicationFindActive(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	company, job := seedCompanyJob(t, database)
	repo := NewApplicationRepo(database)

	rejected, err := repo.Create(ctx, models.Application{UserID: "u1", JobID: job.ID, CompanyID: company.ID, Status: models.StatusRejected})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	active, err := repo.FindActive(ctx, "u1", job.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if active != nil {
		t.Fatalf("rejected application %d must not count as active", rejected.ID)
	}

	if _, err := repo.Create(ctx, models.Application{UserID: "u1", JobID: job.ID, CompanyID: company.ID}); err != nil {
		t.Fatalf("create: %v", err)
	}
	active, err = repo.FindActive(ctx, "u1", job.ID)
	if err != nil || active == nil {
		t.Fatalf("expected active application, got %v err=%v", active, err)
	}
}

func TestApplicationCountsByUser(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	company, job := seedCompanyJob(t, database)
	repo := NewApplicationRepo(database)

	for _, a := range []models.Application{
		{UserID: "u1", Status: models.StatusAccepted},
		{UserID: "u1", Status: models.StatusScreening},
		{UserID: "u2", Status: models.StatusRejected},
	} {
		a.JobID, a.CompanyID = job.ID, company.ID
		if _, err := repo.Create(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	counts, err := repo.CountsByUser(ctx, []string{"u1", "u2", "u3"})
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["u1"] != (ApplicationCounts{Applications: 2, Hires: 1}) {
		t.Errorf("u1: got %+v", counts["u1"])
	}
	if counts["u2"] != (ApplicationCounts{Applications: 1, Hires: 0}) {
		t.Errorf("u2: got %+v", counts["u2"])
	}
	if _, ok := counts["u3"]; ok {
		t.Errorf("u3 has no applications and should be absent")
	}

	empty, err := repo.CountsByUser(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty set: %v %v", empty, err)
	}
}

func TestProfilesInSetFetch(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	repo := NewProfileRepo(database)

	if err := repo.Upsert(ctx, models.Profile{UserID: "u1", FullName: "田中", University: "東京大学"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(ctx, models.Profile{UserID: "u1", FullName: "田中 太郎", University: "東京大学"}); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	profiles, err := repo.GetByUserIDs(ctx, []string{"u1", "missing"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(profiles) != 1 || profiles[0].FullName != "田中 太郎" {
		t.Fatalf("unexpected profiles: %+v", profiles)
	}

	none, err := repo.GetByUserIDs(ctx, nil)
	if err != nil || none != nil {
		t.Fatalf("empty key set should return nil without error, got %v %v", none, err)
	}
}

func TestJobCompareAndSetStatus(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	company, _ := seedCompanyJob(t, database)
	repo := NewJobRepo(database)

	job, err := repo.Create(ctx, company.ID, "データ分析", "", time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Status != models.JobDraft {
		t.Fatalf("expected draft, got %s", job.Status)
	}

	ok, err := repo.CompareAndSetStatus(ctx, job.ID, models.JobPaused, models.JobPublished)
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
	ok, err = repo.CompareAndSetStatus(ctx, job.ID, models.JobDraft, models.JobPublished)
	if err != nil || !ok {
		t.Fatalf("expected publish, ok=%v err=%v", ok, err)
	}

	n, err := repo.Count(ctx, company.ID, models.JobPublished)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 published jobs, got %d", n)
	}
}

func TestFeedbackJSONColumns(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	company, job := seedCompanyJob(t, database)

	tmpl, err := NewFeedbackTemplateRepo(database).Create(ctx, company.ID, "標準評価", []string{"技術力", "コミュニケーション"})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if len(tmpl.Categories) != 2 || tmpl.Categories[0] != "技術力" {
		t.Fatalf("unexpected categories: %v", tmpl.Categories)
	}

	repo := NewFeedbackRepo(database)
	fb, err := repo.Create(ctx, models.Feedback{
		StudentID: "u1", CompanyID: company.ID, JobID: job.ID, TemplateID: tmpl.ID,
		Ratings:       map[string]int{"技術力": 4, "コミュニケーション": 5},
		Comments:      map[string]string{"技術力": "Go が書ける"},
		OverallRating: 4,
	})
	if err != nil {
		t.Fatalf("create feedback: %v", err)
	}
	if fb.Ratings["コミュニケーション"] != 5 || fb.Comments["技術力"] != "Go が書ける" {
		t.Fatalf("json columns lost data: %+v", fb)
	}

	n, err := repo.Count(ctx, company.ID)
	if err != nil || n != 1 {
		t.Fatalf("count: %d %v", n, err)
	}
}

func TestMessagesAndNotifications(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	company, job := seedCompanyJob(t, database)

	app, err := NewApplicationRepo(database).Create(ctx, models.Application{UserID: "u1", JobID: job.ID, CompanyID: company.ID})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}

	messages := NewMessageRepo(database)
	first, err := messages.Create(ctx, models.Message{
		ChatRoomID: "room", ApplicationID: app.ID, SenderType: models.PartyCompany, SenderID: "1", Content: "こんにちは",
		CreatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	if _, err := messages.Create(ctx, models.Message{
		ChatRoomID: "room", ApplicationID: app.ID, SenderType: models.PartyStudent, SenderID: "u1", Content: "よろしくお願いします",
		CreatedAt: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("create message: %v", err)
	}
	thread, err := messages.GetByApplicationID(ctx, app.ID)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(thread) != 2 || thread[0].ID != first.ID {
		t.Fatalf("expected oldest first, got %+v", thread)
	}

	_, err = messages.Create(ctx, models.Message{ChatRoomID: "room", ApplicationID: app.ID, SenderType: "admin", SenderID: "x", Content: "?"})
	if err == nil {
		t.Fatal("expected check constraint to reject unknown sender type")
	}

	notifications := NewNotificationRepo(database)
	id, err := notifications.Create(ctx, models.Notification{
		RecipientType: models.PartyStudent, RecipientID: "u1", Type: "new_message",
		ResourceType: "message", ResourceID: first.ID, Payload: []byte(`{"preview":"こんにちは"}`),
	})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}
	unread, err := notifications.CountUnread(ctx, models.PartyStudent, "u1")
	if err != nil || unread != 1 {
		t.Fatalf("unread: %d %v", unread, err)
	}
	if ok, err := notifications.MarkRead(ctx, models.PartyStudent, "u2", id); err != nil || ok {
		t.Fatalf("another recipient marked the notification: %v %v", ok, err)
	}
	if ok, err := notifications.MarkRead(ctx, models.PartyStudent, "u1", id); err != nil || !ok {
		t.Fatalf("mark read: %v %v", ok, err)
	}
	// Marking again is idempotent and still finds the row.
	if ok, err := notifications.MarkRead(ctx, models.PartyStudent, "u1", id); err != nil || !ok {
		t.Fatalf("mark read twice: %v %v", ok, err)
	}
	list, err := notifications.GetByRecipient(ctx, models.PartyStudent, "u1", 10)
	if err != nil || len(list) != 1 || list[0].ReadAt == nil {
		t.Fatalf("expected read notification, got %+v err=%v", list, err)
	}

	for i := 0; i < 2; i++ {
		if _, err := notifications.Create(ctx, models.Notification{
			RecipientType: models.PartyCompany, RecipientID: "7", Type: "new_application",
			ResourceType: "application", ResourceID: first.ID,
		}); err != nil {
			t.Fatalf("create notification: %v", err)
		}
	}
	n, err := notifications.MarkAllRead(ctx, models.PartyCompany, "7")
	if err != nil || n != 2 {
		t.Fatalf("mark all read: %d %v", n, err)
	}
	if unread, _ := notifications.CountUnread(ctx, models.PartyCompany, "7"); unread != 0 {
		t.Errorf("unread after mark all = %d", unread)
	}
	if unread, _ := notifications.CountUnread(ctx, models.PartyStudent, "u1"); unread != 0 {
		t.Errorf("student notification changed: unread %d", unread)
	}
	if n, _ := notifications.MarkAllRead(ctx, models.PartyCompany, "7"); n != 0 {
		t.Errorf("second mark all changed %d rows", n)
	}
}

func TestBookmarkUniqueness(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	_, job := seedCompanyJob(t, database)
	repo := NewBookmarkRepo(database)

	for i := 0; i < 2; i++ {
		if err := repo.Create(ctx, "u1", job.ID); err != nil {
			t.Fatalf("create #%d: %v", i, err)
		}
	}
	users, err := repo.UserIDsByJobID(ctx, job.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected one bookmark per (user, job), got %v", users)
	}

	if err := repo.Delete(ctx, "u1", job.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	exists, err := repo.Exists(ctx, "u1", job.ID)
	if err != nil || exists {
		t.Fatalf("expected bookmark gone, exists=%v err=%v", exists, err)
	}
}

func TestCompaniesWithStats(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	company, job := seedCompanyJob(t, database)

	if _, err := NewJobRepo(database).Create(ctx, company.ID, "下書き求人", models.JobDraft, time.Time{}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, err := NewApplicationRepo(database).Create(ctx, models.Application{UserID: "u1", JobID: job.ID, CompanyID: company.ID}); err != nil {
		t.Fatalf("create application: %v", err)
	}

	stats, err := NewCompanyRepo(database).GetAllWithStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 company, got %d", len(stats))
	}
	s := stats[0]
	if s.JobCount != 2 || s.PublishedJobs != 1 || s.ApplicationCount != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
