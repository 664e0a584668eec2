// Package mutation performs user-triggered writes and their side effects.
//
// Each operation validates its input without touching the store, issues one
// primary write, and only after that write succeeds publishes the dependent
// notification event. Resolving the notification recipient and publishing
// the event fail soft: errors are logged and never reach the caller. The
// returned display row is what the caller patches into its local list.
package mutation

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/emilianohg/internhub/internal/aggregate"
	"github.com/emilianohg/internhub/internal/apperr"
	"github.com/emilianohg/internhub/internal/logging"
	"github.com/emilianohg/internhub/internal/models"
	"github.com/emilianohg/internhub/internal/repository"
)

type ApplicationStore interface {
	Create(ctx context.Context, a models.Application) (*models.Application, error)
	GetByID(ctx context.Context, id int64) (*models.Application, error)
	FindActive(ctx context.Context, userID string, jobID int64) (*models.Application, error)
	CompareAndSetStatus(ctx context.Context, id int64, expected, next string, at time.Time) (bool, error)
}

type JobStore interface {
	GetByID(ctx context.Context, id int64) (*models.Job, error)
	GetByIDs(ctx context.Context, ids []int64) ([]models.Job, error)
	CompareAndSetStatus(ctx context.Context, id int64, expected, next string) (bool, error)
}

type MessageWriter interface {
	Create(ctx context.Context, m models.Message) (*models.Message, error)
}

type InterviewWriter interface {
	Create(ctx context.Context, iv models.Interview) (*models.Interview, error)
}

type FeedbackWriter interface {
	Create(ctx context.Context, f models.Feedback) (*models.Feedback, error)
}

type ProfileReader interface {
	GetByUserIDs(ctx context.Context, userIDs []string) ([]models.Profile, error)
}

type CompanyReader interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.Company, error)
}

type BookmarkStore interface {
	Exists(ctx context.Context, userID string, jobID int64) (bool, error)
	Create(ctx context.Context, userID string, jobID int64) error
	Delete(ctx context.Context, userID string, jobID int64) error
	UserIDsByJobID(ctx context.Context, jobID int64) ([]string, error)
}

type NotificationStore interface {
	MarkRead(ctx context.Context, recipientType, recipientID string, id int64) (bool, error)
	MarkAllRead(ctx context.Context, recipientType, recipientID string) (int, error)
}

type Store struct {
	Applications  ApplicationStore
	Jobs          JobStore
	Messages      MessageWriter
	Interviews    InterviewWriter
	Feedbacks     FeedbackWriter
	Profiles      ProfileReader
	Companies     CompanyReader
	Bookmarks     BookmarkStore
	Notifications NotificationStore
}

func StoreFromDB(db *sql.DB) Store {
	return Store{
		Applications:  repository.NewApplicationRepo(db),
		Jobs:          repository.NewJobRepo(db),
		Messages:      repository.NewMessageRepo(db),
		Interviews:    repository.NewInterviewRepo(db),
		Feedbacks:     repository.NewFeedbackRepo(db),
		Profiles:      repository.NewProfileRepo(db),
		Companies:     repository.NewCompanyRepo(db),
		Bookmarks:     repository.NewBookmarkRepo(db),
		Notifications: repository.NewNotificationRepo(db),
	}
}

type Service struct {
	store   Store
	sink    Sink
	logger  *slog.Logger
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func New(store Store, sink Sink, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Service{store: store, sink: sink, logger: logger, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// publish delivers a dependent event. Failures are logged only.
func (s *Service) publish(ctx context.Context, e Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Publish(ctx, e); err != nil {
		logging.Error(s.logger, "publish "+e.Type, apperr.Dependent("publish "+e.Type, err),
			"resource_type", e.ResourceType, "resource_id", e.ResourceID, "recipient_id", e.RecipientID)
	}
}

// softFail logs a failed recipient lookup and tells the caller to skip the
// dependent write.
func (s *Service) softFail(op string, err error, attrs ...any) {
	logging.Error(s.logger, op, apperr.Dependent(op, err), attrs...)
}

const MaxMessageLength = 2000

type SendMessageInput struct {
	ApplicationID int64
	ChatRoomID    string
	SenderType    string
	SenderID      string
	Content       string
}

func (in SendMessageInput) validate() error {
	if in.ApplicationID <= 0 {
		return apperr.Validation("application_id", "応募が選択されていません")
	}
	if in.SenderType != models.PartyCompany && in.SenderType != models.PartyStudent {
		return apperr.Validation("sender_type", "送信者の種別が不正です")
	}
	if strings.TrimSpace(in.SenderID) == "" {
		return apperr.Validation("sender_id", "送信者が不明です")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return apperr.Validation("content", "メッセージを入力してください")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return apperr.Validation("content", "メッセージは2000文字以内で入力してください")
	}
	return nil
}

// ChatRoomID is the room key used when a message names none.
func ChatRoomID(applicationID int64) string {
	return "application-" + strconv.FormatInt(applicationID, 10)
}

// SendMessage stores a chat message and notifies the other party. The
// recipient is resolved from the application row after the insert.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*aggregate.MessageRow, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	room := in.ChatRoomID
	if room == "" {
		room = ChatRoomID(in.ApplicationID)
	}
	msg, err := s.store.Messages.Create(ctx, models.Message{
		ChatRoomID:    room,
		ApplicationID: in.ApplicationID,
		SenderType:    in.SenderType,
		SenderID:      strings.TrimSpace(in.SenderID),
		Content:       strings.TrimSpace(in.Content),
		CreatedAt:     s.now(),
	})
	if err != nil {
		return nil, apperr.Write("send message", err)
	}

	s.notifyMessage(ctx, msg)

	row := aggregate.NewMessageRow(*msg, s.senderName(ctx, msg), s.loc)
	return &row, nil
}

func (s *Service) notifyMessage(ctx context.Context, msg *models.Message) {
	app, err := s.store.Applications.GetByID(ctx, msg.ApplicationID)
	if err != nil {
		s.softFail("resolve message recipient", err, "message_id", msg.ID, "application_id", msg.ApplicationID)
		return
	}
	if app == nil {
		s.softFail("resolve message recipient", errMissing("application", msg.ApplicationID),
			"message_id", msg.ID, "application_id", msg.ApplicationID)
		return
	}

	recipientType, recipientID := models.PartyStudent, app.UserID
	if msg.SenderType == models.PartyStudent {
		recipientType, recipientID = models.PartyCompany, strconv.FormatInt(app.CompanyID, 10)
	}
	s.publish(ctx, newEvent(EventNewMessage, recipientType, recipientID, "message", msg.ID, map[string]any{
		"application_id": msg.ApplicationID,
		"chat_room_id":   msg.ChatRoomID,
		"preview":        preview(msg.Content),
	}, msg.CreatedAt))
}

func (s *Service) senderName(ctx context.Context, msg *models.Message) string {
	switch msg.SenderType {
	case models.PartyCompany:
		id, err := strconv.ParseInt(msg.SenderID, 10, 64)
		if err != nil {
			return ""
		}
		companies, err := s.store.Companies.GetByIDs(ctx, []int64{id})
		if err != nil || len(companies) == 0 {
			return ""
		}
		return companies[0].Name
	default:
		if p := s.profile(ctx, msg.SenderID); p != nil {
			return p.FullName
		}
		return ""
	}
}

func preview(content string) string {
	const max = 50
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	return string([]rune(content)[:max]) + "…"
}

// StatusChange reports a committed status transition. Row is nil when the
// changed record could not be re-read; callers then patch Status alone.
type StatusChange struct {
	ID      int64
	Status  string
	Version int64
	Row     *aggregate.ApplicantRow
}

// ChangeApplicationStatus applies action to an application currently in
// expected. The update is a compare-and-swap on the status column.
func (s *Service) ChangeApplicationStatus(ctx context.Context, applicationID int64, expected string, action Action) (*StatusChange, error) {
	next, ok := ApplicationWorkflow.Next(expected, action)
	if !ok {
		return nil, apperr.Validation("action", "この操作は現在のステータスでは実行できません")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	swapped, err := s.store.Applications.CompareAndSetStatus(ctx, applicationID, expected, next, s.now())
	if err != nil {
		return nil, apperr.Write("update application status", err)
	}
	if !swapped {
		return nil, s.classifyMiss(ctx, applicationID)
	}

	change := &StatusChange{ID: applicationID, Status: next}
	app, err := s.store.Applications.GetByID(ctx, applicationID)
	if err != nil || app == nil {
		if err == nil {
			err = errMissing("application", applicationID)
		}
		logging.Error(s.logger, "refetch application", apperr.Fetch("refetch application", err), "application_id", applicationID)
		return change, nil
	}
	change.Version = app.Version

	job := s.job(ctx, app.JobID)
	row := aggregate.NewApplicantRow(*app, s.profile(ctx, app.UserID), job, s.loc)
	change.Row = &row

	s.publish(ctx, newEvent(EventApplicationStatus, models.PartyStudent, app.UserID, "application", app.ID, map[string]any{
		"status":    app.Status,
		"previous":  expected,
		"job_title": row.JobTitle,
	}, s.now()))
	return change, nil
}

func (s *Service) classifyMiss(ctx context.Context, applicationID int64) error {
	current, err := s.store.Applications.GetByID(ctx, applicationID)
	if err == nil && current == nil {
		return apperr.NotFound("update application status", "応募が見つかりません")
	}
	return apperr.Conflict("update application status", conflictMessage)
}

const conflictMessage = "他のユーザーが先に更新しました。最新の状態を読み込んでから再度お試しください。"

type JobChange struct {
	ID     int64
	Status string
	Job    *models.Job
}

// ChangeJobStatus applies action to a job currently in expected. Publishing
// notifies every student who bookmarked the job.
func (s *Service) ChangeJobStatus(ctx context.Context, jobID int64, expected string, action Action) (*JobChange, error) {
	next, ok := JobWorkflow.Next(expected, action)
	if !ok {
		return nil, apperr.Validation("action", "この操作は現在のステータスでは実行できません")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	swapped, err := s.store.Jobs.CompareAndSetStatus(ctx, jobID, expected, next)
	if err != nil {
		return nil, apperr.Write("update job status", err)
	}
	if !swapped {
		current, err := s.store.Jobs.GetByID(ctx, jobID)
		if err == nil && current == nil {
			return nil, apperr.NotFound("update job status", "求人が見つかりません")
		}
		return nil, apperr.Conflict("update job status", conflictMessage)
	}

	change := &JobChange{ID: jobID, Status: next}
	job, err := s.store.Jobs.GetByID(ctx, jobID)
	if err != nil || job == nil {
		if err == nil {
			err = errMissing("job", jobID)
		}
		logging.Error(s.logger, "refetch job", apperr.Fetch("refetch job", err), "job_id", jobID)
	} else {
		change.Job = job
	}

	if next == models.JobPublished {
		s.notifyBookmarkers(ctx, jobID, change.Job)
	}
	return change, nil
}

func (s *Service) notifyBookmarkers(ctx context.Context, jobID int64, job *models.Job) {
	userIDs, err := s.store.Bookmarks.UserIDsByJobID(ctx, jobID)
	if err != nil {
		s.softFail("resolve job bookmarkers", err, "job_id", jobID)
		return
	}
	title := ""
	if job != nil {
		title = job.Title
	}
	at := s.now()
	for _, userID := range userIDs {
		s.publish(ctx, newEvent(EventJobPublished, models.PartyStudent, userID, "job", jobID, map[string]any{
			"job_title": title,
		}, at))
	}
}

// Interview types.
const (
	InterviewOnline   = "online"
	InterviewInPerson = "in_person"
	InterviewPhone    = "phone"
)

var InterviewTypes = []string{InterviewOnline, InterviewInPerson, InterviewPhone}

type ScheduleInterviewInput struct {
	CompanyID     int64
	UserID        string
	JobID         int64
	Date          string // YYYY-MM-DD
	Time          string // HH:MM
	InterviewType string
	Location      string
}

func (in ScheduleInterviewInput) validate() error {
	if in.CompanyID <= 0 {
		return apperr.Validation("company_id", "企業が選択されていません")
	}
	if strings.TrimSpace(in.UserID) == "" {
		return apperr.Validation("user_id", "学生を選択してください")
	}
	if in.JobID <= 0 {
		return apperr.Validation("job_id", "求人を選択してください")
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return apperr.Validation("scheduled_date", "日付はYYYY-MM-DD形式で入力してください")
	}
	if _, err := time.Parse("15:04", in.Time); err != nil {
		return apperr.Validation("scheduled_time", "時刻はHH:MM形式で入力してください")
	}
	valid := false
	for _, t := range InterviewTypes {
		if in.InterviewType == t {
			valid = true
		}
	}
	if !valid {
		return apperr.Validation("interview_type", "面接形式を選択してください")
	}
	if in.InterviewType == InterviewInPerson && strings.TrimSpace(in.Location) == "" {
		return apperr.Validation("location", "対面面接の場所を入力してください")
	}
	return nil
}

func (s *Service) ScheduleInterview(ctx context.Context, in ScheduleInterviewInput) (*aggregate.InterviewRow, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	iv, err := s.store.Interviews.Create(ctx, models.Interview{
		CompanyID:     in.CompanyID,
		UserID:        strings.TrimSpace(in.UserID),
		JobID:         in.JobID,
		ScheduledDate: in.Date,
		ScheduledTime: in.Time,
		InterviewType: in.InterviewType,
		Location:      strings.TrimSpace(in.Location),
		CreatedAt:     s.now(),
	})
	if err != nil {
		return nil, apperr.Write("schedule interview", err)
	}

	s.publish(ctx, newEvent(EventInterviewScheduled, models.PartyStudent, iv.UserID, "interview", iv.ID, map[string]any{
		"scheduled_date": iv.ScheduledDate,
		"scheduled_time": iv.ScheduledTime,
		"interview_type": iv.InterviewType,
	}, iv.CreatedAt))

	row := aggregate.NewInterviewRow(*iv, s.profile(ctx, iv.UserID), s.job(ctx, iv.JobID), s.loc)
	return &row, nil
}

// CreateFeedback submits a completed draft.
func (s *Service) CreateFeedback(ctx context.Context, d *FeedbackDraft) (*aggregate.FeedbackRow, error) {
	if d == nil {
		return nil, apperr.Validation("draft", "入力内容がありません")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	f := d.Feedback()
	f.CreatedAt = s.now()
	created, err := s.store.Feedbacks.Create(ctx, f)
	if err != nil {
		return nil, apperr.Write("create feedback", err)
	}

	s.publish(ctx, newEvent(EventFeedbackReceived, models.PartyStudent, created.StudentID, "feedback", created.ID, map[string]any{
		"company_id":     created.CompanyID,
		"overall_rating": created.OverallRating,
	}, created.CreatedAt))

	row := aggregate.NewFeedbackRow(*created, s.profile(ctx, created.StudentID), s.job(ctx, created.JobID), d.Template, s.loc)
	return &row, nil
}

// ToggleBookmark flips the bookmark and reports whether it is now set.
func (s *Service) ToggleBookmark(ctx context.Context, userID string, jobID int64) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, apperr.Validation("user_id", "ログインが必要です")
	}
	if jobID <= 0 {
		return false, apperr.Validation("job_id", "求人を選択してください")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	exists, err := s.store.Bookmarks.Exists(ctx, userID, jobID)
	if err != nil {
		return false, apperr.Write("toggle bookmark", err)
	}
	if exists {
		if err := s.store.Bookmarks.Delete(ctx, userID, jobID); err != nil {
			return true, apperr.Write("remove bookmark", err)
		}
		return false, nil
	}
	if err := s.store.Bookmarks.Create(ctx, userID, jobID); err != nil {
		return false, apperr.Write("add bookmark", err)
	}
	return true, nil
}

// MarkNotificationRead marks one of the company's notifications read.
func (s *Service) MarkNotificationRead(ctx context.Context, companyID, notificationID int64) error {
	if companyID <= 0 || notificationID <= 0 {
		return apperr.Validation("id", "IDが不正です")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	found, err := s.store.Notifications.MarkRead(ctx, models.PartyCompany, strconv.FormatInt(companyID, 10), notificationID)
	if err != nil {
		return apperr.Write("mark notification read", err)
	}
	if !found {
		return apperr.NotFound("mark notification read", "通知が見つかりません")
	}
	return nil
}

// MarkAllNotificationsRead clears the company's unread notifications and
// returns how many there were.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, companyID int64) (int, error) {
	if companyID <= 0 {
		return 0, apperr.Validation("company_id", "企業を選択してください")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.store.Notifications.MarkAllRead(ctx, models.PartyCompany, strconv.FormatInt(companyID, 10))
	if err != nil {
		return 0, apperr.Write("mark notifications read", err)
	}
	return n, nil
}

// CreateApplication applies userID to a published job. A second application
// while an earlier one is still active is refused.
func (s *Service) CreateApplication(ctx context.Context, userID string, jobID int64) (*aggregate.ApplicantRow, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Validation("user_id", "ログインが必要です")
	}
	if jobID <= 0 {
		return nil, apperr.Validation("job_id", "求人を選択してください")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	job, err := s.store.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, apperr.Write("load job", err)
	}
	if job == nil {
		return nil, apperr.NotFound("create application", "求人が見つかりません")
	}
	if job.Status != models.JobPublished {
		return nil, apperr.Validation("job_id", "この求人は現在募集していません")
	}

	active, err := s.store.Applications.FindActive(ctx, userID, jobID)
	if err != nil {
		return nil, apperr.Write("check existing application", err)
	}
	if active != nil {
		return nil, apperr.Conflict("create application", "この求人にはすでに応募済みです")
	}

	app, err := s.store.Applications.Create(ctx, models.Application{
		UserID:    userID,
		JobID:     jobID,
		CompanyID: job.CompanyID,
		Status:    models.StatusScreening,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, apperr.Write("create application", err)
	}

	s.publish(ctx, newEvent(EventNewApplication, models.PartyCompany, strconv.FormatInt(app.CompanyID, 10), "application", app.ID, map[string]any{
		"user_id":   app.UserID,
		"job_id":    app.JobID,
		"job_title": job.Title,
	}, app.CreatedAt))

	row := aggregate.NewApplicantRow(*app, s.profile(ctx, app.UserID), job, s.loc)
	return &row, nil
}

// profile is a soft lookup for display rows; a miss or error gives nil.
func (s *Service) profile(ctx context.Context, userID string) *models.Profile {
	if userID == "" {
		return nil
	}
	profiles, err := s.store.Profiles.GetByUserIDs(ctx, []string{userID})
	if err != nil {
		logging.Error(s.logger, "lookup profile", apperr.Fetch("lookup profile", err), "user_id", userID)
		return nil
	}
	if len(profiles) == 0 {
		return nil
	}
	return &profiles[0]
}

func (s *Service) job(ctx context.Context, jobID int64) *models.Job {
	jobs, err := s.store.Jobs.GetByIDs(ctx, []int64{jobID})
	if err != nil {
		logging.Error(s.logger, "lookup job", apperr.Fetch("lookup job", err), "job_id", jobID)
		return nil
	}
	if len(jobs) == 0 {
		return nil
	}
	return &jobs[0]
}

func errMissing(entity string, id int64) error {
	return errors.Errorf("%s %d not found", entity, id)
}
