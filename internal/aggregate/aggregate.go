// Package aggregate composes several store fetches into display-ready rows.
//
// Every operation follows the same steps: fetch the primary rows, collect the
// distinct foreign keys, fetch each referenced table once with an in-set
// query, index the results by key, then map over the primary rows attaching
// looked-up fields. A lookup miss degrades to a fallback value. Any fetch
// error aborts the operation and no rows are returned.
package aggregate

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/emilianohg/internhub/internal/apperr"
	"github.com/emilianohg/internhub/internal/models"
	"github.com/emilianohg/internhub/internal/repository"
)

type ApplicationSource interface {
	List(ctx context.Context, f repository.ApplicationFilter) ([]models.Application, error)
	Count(ctx context.Context, f repository.ApplicationFilter) (int, error)
	CountsByUser(ctx context.Context, userIDs []string) (map[string]repository.ApplicationCounts, error)
}

type ProfileSource interface {
	GetByUserIDs(ctx context.Context, userIDs []string) ([]models.Profile, error)
}

type JobSource interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.Job, error)
	Count(ctx context.Context, companyID int64, status string) (int, error)
}

type InterviewSource interface {
	GetByCompanyID(ctx context.Context, companyID int64) ([]models.Interview, error)
	CountUpcoming(ctx context.Context, companyID int64, fromDate string) (int, error)
}

type FeedbackSource interface {
	GetByCompanyID(ctx context.Context, companyID int64) ([]models.Feedback, error)
	Count(ctx context.Context, companyID int64) (int, error)
}

type TemplateSource interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.FeedbackTemplate, error)
}

type StudentSource interface {
	List(ctx context.Context, limit int) ([]models.Student, error)
}

type CompanySource interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.Company, error)
}

type MessageSource interface {
	GetByApplicationID(ctx context.Context, applicationID int64) ([]models.Message, error)
}

type NotificationSource interface {
	CountUnread(ctx context.Context, recipientType, recipientID string) (int, error)
	GetByRecipient(ctx context.Context, recipientType, recipientID string, limit int) ([]models.Notification, error)
}

// Sources groups the tables the aggregations read from.
type Sources struct {
	Applications  ApplicationSource
	Profiles      ProfileSource
	Jobs          JobSource
	Interviews    InterviewSource
	Feedbacks     FeedbackSource
	Templates     TemplateSource
	Students      StudentSource
	Companies     CompanySource
	Messages      MessageSource
	Notifications NotificationSource
}

// SourcesFromDB wires every source to its SQLite repository.
func SourcesFromDB(db *sql.DB) Sources {
	return Sources{
		Applications:  repository.NewApplicationRepo(db),
		Profiles:      repository.NewProfileRepo(db),
		Jobs:          repository.NewJobRepo(db),
		Interviews:    repository.NewInterviewRepo(db),
		Feedbacks:     repository.NewFeedbackRepo(db),
		Templates:     repository.NewFeedbackTemplateRepo(db),
		Students:      repository.NewStudentRepo(db),
		Companies:     repository.NewCompanyRepo(db),
		Messages:      repository.NewMessageRepo(db),
		Notifications: repository.NewNotificationRepo(db),
	}
}

type Aggregator struct {
	src     Sources
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Aggregator)

// WithTimeout bounds each operation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func New(src Sources, loc *time.Location, opts ...Option) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	a := &Aggregator{src: src, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Location() *time.Location { return a.loc }

func (a *Aggregator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// ApplicantQuery narrows Applicants. Zero values mean no filter.
type ApplicantQuery struct {
	CompanyID int64
	JobID     int64
	Status    string
}

func (a *Aggregator) Applicants(ctx context.Context, q ApplicantQuery) ([]ApplicantRow, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	apps, err := a.src.Applications.List(ctx, repository.ApplicationFilter{
		CompanyID: q.CompanyID,
		JobID:     q.JobID,
		Status:    q.Status,
	})
	if err != nil {
		return nil, apperr.Fetch("fetch applications", err)
	}

	profiles, err := a.profilesFor(ctx, distinct(apps, func(x models.Application) string { return x.UserID }))
	if err != nil {
		return nil, err
	}
	jobs, err := a.jobsFor(ctx, distinct(apps, func(x models.Application) int64 { return x.JobID }))
	if err != nil {
		return nil, err
	}

	rows := make([]ApplicantRow, 0, len(apps))
	for _, app := range apps {
		rows = append(rows, NewApplicantRow(app, lookup(profiles, app.UserID), lookup(jobs, app.JobID), a.loc))
	}
	return rows, nil
}

func (a *Aggregator) Interviews(ctx context.Context, companyID int64) ([]InterviewRow, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	interviews, err := a.src.Interviews.GetByCompanyID(ctx, companyID)
	if err != nil {
		return nil, apperr.Fetch("fetch interviews", err)
	}

	profiles, err := a.profilesFor(ctx, distinct(interviews, func(x models.Interview) string { return x.UserID }))
	if err != nil {
		return nil, err
	}
	jobs, err := a.jobsFor(ctx, distinct(interviews, func(x models.Interview) int64 { return x.JobID }))
	if err != nil {
		return nil, err
	}

	rows := make([]InterviewRow, 0, len(interviews))
	for _, iv := range interviews {
		rows = append(rows, NewInterviewRow(iv, lookup(profiles, iv.UserID), lookup(jobs, iv.JobID), a.loc))
	}
	return rows, nil
}

func (a *Aggregator) Feedbacks(ctx context.Context, companyID int64) ([]FeedbackRow, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	feedbacks, err := a.src.Feedbacks.GetByCompanyID(ctx, companyID)
	if err != nil {
		return nil, apperr.Fetch("fetch feedbacks", err)
	}

	profiles, err := a.profilesFor(ctx, distinct(feedbacks, func(x models.Feedback) string { return x.StudentID }))
	if err != nil {
		return nil, err
	}
	jobs, err := a.jobsFor(ctx, distinct(feedbacks, func(x models.Feedback) int64 { return x.JobID }))
	if err != nil {
		return nil, err
	}

	var templates map[int64]models.FeedbackTemplate
	if ids := distinct(feedbacks, func(x models.Feedback) int64 { return x.TemplateID }); len(ids) > 0 {
		found, err := a.src.Templates.GetByIDs(ctx, ids)
		if err != nil {
			return nil, apperr.Fetch("fetch feedback templates", err)
		}
		templates = index(found, func(t models.FeedbackTemplate) int64 { return t.ID })
	}

	rows := make([]FeedbackRow, 0, len(feedbacks))
	for _, f := range feedbacks {
		rows = append(rows, NewFeedbackRow(f,
			lookup(profiles, f.StudentID), lookup(jobs, f.JobID), lookup(templates, f.TemplateID), a.loc))
	}
	return rows, nil
}

// Students lists active students with their application and hire counts.
// Counts come from one grouped query over the whole page of students.
func (a *Aggregator) Students(ctx context.Context) ([]StudentRow, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	students, err := a.src.Students.List(ctx, 0)
	if err != nil {
		return nil, apperr.Fetch("fetch students", err)
	}

	userIDs := distinct(students, func(s models.Student) string { return s.UserID })
	profiles, err := a.profilesFor(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	counts := map[string]repository.ApplicationCounts{}
	if len(userIDs) > 0 {
		counts, err = a.src.Applications.CountsByUser(ctx, userIDs)
		if err != nil {
			return nil, apperr.Fetch("count applications by student", err)
		}
	}

	rows := make([]StudentRow, 0, len(students))
	for _, s := range students {
		row := StudentRow{
			ID:               s.ID,
			UserID:           s.UserID,
			Email:            s.Email,
			ApplicationCount: counts[s.UserID].Applications,
			HireCount:        counts[s.UserID].Hires,
			CreatedAt:        s.CreatedAt,
			RegisteredOn:     FormatDate(s.CreatedAt, a.loc),
		}
		if p := lookup(profiles, s.UserID); p != nil {
			row.Name = p.FullName
			row.University = p.University
			row.Faculty = p.Faculty
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (a *Aggregator) Dashboard(ctx context.Context, companyID int64) (*Dashboard, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	var d Dashboard
	var err error

	if d.PublishedJobs, err = a.src.Jobs.Count(ctx, companyID, models.JobPublished); err != nil {
		return nil, apperr.Fetch("count published jobs", err)
	}
	if d.TotalApplications, err = a.src.Applications.Count(ctx, repository.ApplicationFilter{CompanyID: companyID}); err != nil {
		return nil, apperr.Fetch("count applications", err)
	}
	if d.Screening, err = a.src.Applications.Count(ctx, repository.ApplicationFilter{
		CompanyID: companyID,
		Status:    models.StatusScreening,
	}); err != nil {
		return nil, apperr.Fetch("count screening applications", err)
	}
	today := a.now().In(a.loc).Format("2006-01-02")
	if d.UpcomingInterviews, err = a.src.Interviews.CountUpcoming(ctx, companyID, today); err != nil {
		return nil, apperr.Fetch("count upcoming interviews", err)
	}
	if d.Feedbacks, err = a.src.Feedbacks.Count(ctx, companyID); err != nil {
		return nil, apperr.Fetch("count feedbacks", err)
	}
	if d.UnreadNotifications, err = a.src.Notifications.CountUnread(ctx, models.PartyCompany, strconv.FormatInt(companyID, 10)); err != nil {
		return nil, apperr.Fetch("count unread notifications", err)
	}
	return &d, nil
}

// Notifications lists the company's most recent notifications, newest first.
// A non-positive limit returns all of them.
func (a *Aggregator) Notifications(ctx context.Context, companyID int64, limit int) ([]NotificationRow, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	found, err := a.src.Notifications.GetByRecipient(ctx, models.PartyCompany, strconv.FormatInt(companyID, 10), limit)
	if err != nil {
		return nil, apperr.Fetch("fetch notifications", err)
	}
	rows := make([]NotificationRow, 0, len(found))
	for _, n := range found {
		rows = append(rows, NewNotificationRow(n, a.loc))
	}
	return rows, nil
}

// Thread returns an application's chat oldest first. Company senders are
// named after the company and student senders after their profile.
func (a *Aggregator) Thread(ctx context.Context, applicationID int64) ([]MessageRow, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	messages, err := a.src.Messages.GetByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, apperr.Fetch("fetch messages", err)
	}

	var studentIDs []string
	var companyIDs []int64
	seenStudent := map[string]bool{}
	seenCompany := map[int64]bool{}
	for _, m := range messages {
		switch m.SenderType {
		case models.PartyStudent:
			if !seenStudent[m.SenderID] {
				seenStudent[m.SenderID] = true
				studentIDs = append(studentIDs, m.SenderID)
			}
		case models.PartyCompany:
			id, err := strconv.ParseInt(m.SenderID, 10, 64)
			if err == nil && !seenCompany[id] {
				seenCompany[id] = true
				companyIDs = append(companyIDs, id)
			}
		}
	}

	profiles, err := a.profilesFor(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	var companies map[int64]models.Company
	if len(companyIDs) > 0 {
		found, err := a.src.Companies.GetByIDs(ctx, companyIDs)
		if err != nil {
			return nil, apperr.Fetch("fetch companies", err)
		}
		companies = index(found, func(c models.Company) int64 { return c.ID })
	}

	rows := make([]MessageRow, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, NewMessageRow(m, a.senderName(m, profiles, companies), a.loc))
	}
	return rows, nil
}

func (a *Aggregator) senderName(m models.Message, profiles map[string]models.Profile, companies map[int64]models.Company) string {
	switch m.SenderType {
	case models.PartyStudent:
		if p := lookup(profiles, m.SenderID); p != nil {
			return p.FullName
		}
	case models.PartyCompany:
		id, err := strconv.ParseInt(m.SenderID, 10, 64)
		if err != nil {
			return ""
		}
		if c := lookup(companies, id); c != nil {
			return c.Name
		}
	}
	return ""
}

func (a *Aggregator) profilesFor(ctx context.Context, userIDs []string) (map[string]models.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	found, err := a.src.Profiles.GetByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, apperr.Fetch("fetch profiles", err)
	}
	return index(found, func(p models.Profile) string { return p.UserID }), nil
}

func (a *Aggregator) jobsFor(ctx context.Context, ids []int64) (map[int64]models.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := a.src.Jobs.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Fetch("fetch jobs", err)
	}
	return index(found, func(j models.Job) int64 { return j.ID }), nil
}
