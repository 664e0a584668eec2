package aggregate

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/emilianohg/internhub/internal/models"
)

// DateLayout is the display format for dates on every list.
const DateLayout = "2006/1/2"

// TimeLayout is used where the time of day matters, such as chat messages.
const TimeLayout = "2006/1/2 15:04"

// FormatDate renders t as a display date in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateLayout)
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(TimeLayout)
}

type ApplicantRow struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	JobID      int64     `json:"job_id"`
	CompanyID  int64     `json:"company_id"`
	Name       string    `json:"name"`
	AvatarURL  string    `json:"avatar_url"`
	University string    `json:"university"`
	Faculty    string    `json:"faculty"`
	JobTitle   string    `json:"job_title"`
	Status     string    `json:"status"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	AppliedOn  string    `json:"applied_on"`
}

// NewApplicantRow joins an application with its looked-up profile and job.
// Nil lookups fall back to empty strings.
func NewApplicantRow(a models.Application, p *models.Profile, j *models.Job, loc *time.Location) ApplicantRow {
	row := ApplicantRow{
		ID:        a.ID,
		UserID:    a.UserID,
		JobID:     a.JobID,
		CompanyID: a.CompanyID,
		Status:    a.Status,
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		AppliedOn: FormatDate(a.CreatedAt, loc),
	}
	if p != nil {
		row.Name = p.FullName
		row.AvatarURL = p.AvatarURL
		row.University = p.University
		row.Faculty = p.Faculty
	}
	if j != nil {
		row.JobTitle = j.Title
	}
	return row
}

type InterviewRow struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	JobID         int64     `json:"job_id"`
	StudentName   string    `json:"student_name"`
	University    string    `json:"university"`
	JobTitle      string    `json:"job_title"`
	ScheduledDate string    `json:"scheduled_date"`
	ScheduledTime string    `json:"scheduled_time"`
	ScheduledAt   time.Time `json:"scheduled_at"` // zero when the stored date does not parse
	InterviewType string    `json:"interview_type"`
	Location      string    `json:"location"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedOn     string    `json:"created_on"`
}

func NewInterviewRow(iv models.Interview, p *models.Profile, j *models.Job, loc *time.Location) InterviewRow {
	row := InterviewRow{
		ID:            iv.ID,
		UserID:        iv.UserID,
		JobID:         iv.JobID,
		ScheduledDate: iv.ScheduledDate,
		ScheduledTime: iv.ScheduledTime,
		ScheduledAt:   ParseSchedule(iv.ScheduledDate, iv.ScheduledTime, loc),
		InterviewType: iv.InterviewType,
		Location:      iv.Location,
		Status:        iv.Status,
		CreatedAt:     iv.CreatedAt,
		CreatedOn:     FormatDate(iv.CreatedAt, loc),
	}
	if p != nil {
		row.StudentName = p.FullName
		row.University = p.University
	}
	if j != nil {
		row.JobTitle = j.Title
	}
	return row
}

// ParseSchedule combines a YYYY-MM-DD date and an optional HH:MM time in loc.
func ParseSchedule(date, clock string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if clock != "" {
		if t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc); err == nil {
			return t
		}
	}
	t, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

type FeedbackRow struct {
	ID             int64             `json:"id"`
	StudentID      string            `json:"student_id"`
	StudentName    string            `json:"student_name"`
	University     string            `json:"university"`
	JobID          int64             `json:"job_id"`
	JobTitle       string            `json:"job_title"`
	TemplateID     int64             `json:"template_id"`
	TemplateName   string            `json:"template_name"`
	Ratings        map[string]int    `json:"ratings"`
	Comments       map[string]string `json:"comments"`
	OverallComment string            `json:"overall_comment"`
	OverallRating  int               `json:"overall_rating"`
	CreatedAt      time.Time         `json:"created_at"`
	CreatedOn      string            `json:"created_on"`
}

// NewFeedbackRow joins a feedback with its lookups. A missing template falls
// back to its raw id.
func NewFeedbackRow(f models.Feedback, p *models.Profile, j *models.Job, t *models.FeedbackTemplate, loc *time.Location) FeedbackRow {
	row := FeedbackRow{
		ID:             f.ID,
		StudentID:      f.StudentID,
		JobID:          f.JobID,
		TemplateID:     f.TemplateID,
		TemplateName:   strconv.FormatInt(f.TemplateID, 10),
		Ratings:        f.Ratings,
		Comments:       f.Comments,
		OverallComment: f.OverallComment,
		OverallRating:  f.OverallRating,
		CreatedAt:      f.CreatedAt,
		CreatedOn:      FormatDate(f.CreatedAt, loc),
	}
	if p != nil {
		row.StudentName = p.FullName
		row.University = p.University
	}
	if j != nil {
		row.JobTitle = j.Title
	}
	if t != nil {
		row.TemplateName = t.Name
	}
	return row
}

type StudentRow struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	University       string    `json:"university"`
	Faculty          string    `json:"faculty"`
	ApplicationCount int       `json:"application_count"`
	HireCount        int       `json:"hire_count"`
	CreatedAt        time.Time `json:"created_at"`
	RegisteredOn     string    `json:"registered_on"`
}

type Dashboard struct {
	PublishedJobs       int `json:"published_jobs"`
	TotalApplications   int `json:"total_applications"`
	Screening           int `json:"screening"`
	UpcomingInterviews  int `json:"upcoming_interviews"`
	Feedbacks           int `json:"feedbacks"`
	UnreadNotifications int `json:"unread_notifications"`
}

type MessageRow struct {
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"application_id"`
	SenderType    string    `json:"sender_type"`
	SenderID      string    `json:"sender_id"`
	SenderName    string    `json:"sender_name"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	SentAt        string    `json:"sent_at"`
}

// NewMessageRow builds a chat line. An empty name falls back to the raw sender id.
func NewMessageRow(m models.Message, senderName string, loc *time.Location) MessageRow {
	if senderName == "" {
		senderName = m.SenderID
	}
	return MessageRow{
		ID:            m.ID,
		ApplicationID: m.ApplicationID,
		SenderType:    m.SenderType,
		SenderID:      m.SenderID,
		SenderName:    senderName,
		Content:       m.Content,
		CreatedAt:     m.CreatedAt,
		SentAt:        formatTime(m.CreatedAt, loc),
	}
}

type NotificationRow struct {
	ID           int64          `json:"id"`
	Type         string         `json:"type"`
	ResourceType string         `json:"resource_type"`
	ResourceID   int64          `json:"resource_id"`
	Payload      map[string]any `json:"payload"`
	Read         bool           `json:"read"`
	CreatedAt    time.Time      `json:"created_at"`
	ReceivedAt   string         `json:"received_at"`
}

// NewNotificationRow decodes the stored payload. A payload that does not
// decode leaves an empty map rather than dropping the row.
func NewNotificationRow(n models.Notification, loc *time.Location) NotificationRow {
	payload := map[string]any{}
	if len(n.Payload) > 0 {
		if err := json.Unmarshal(n.Payload, &payload); err != nil {
			payload = map[string]any{}
		}
	}
	return NotificationRow{
		ID:           n.ID,
		Type:         n.Type,
		ResourceType: n.ResourceType,
		ResourceID:   n.ResourceID,
		Payload:      payload,
		Read:         n.ReadAt != nil,
		CreatedAt:    n.CreatedAt,
		ReceivedAt:   formatTime(n.CreatedAt, loc),
	}
}

// Text returns a payload value as a string, or "" when absent.
func (r NotificationRow) Text(key string) string {
	switch v := r.Payload[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
