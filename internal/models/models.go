package models

import "time"

// Application statuses. The set is a free-text workflow label in storage;
// these are the labels the workflow recognises.
const (
	StatusScreening = "書類選考中"
	StatusInterview = "面談予定"
	StatusAccepted  = "合格"
	StatusRejected  = "不合格"
)

// Job statuses.
const (
	JobDraft     = "draft"
	JobPublished = "published"
	JobPaused    = "paused"
	JobExpired   = "expired"
)

// Message and notification parties.
const (
	PartyCompany = "company"
	PartyStudent = "student"
)

type Company struct {
	ID        int64
	Name      string
	Industry  string
	CreatedAt time.Time
}

type Student struct {
	ID        int64
	UserID    string
	Email     string
	Status    string
	CreatedAt time.Time
}

// Profile is keyed by the auth user id, not by students.id.
type Profile struct {
	UserID     string
	FullName   string
	AvatarURL  string
	University string
	Faculty    string
	UpdatedAt  time.Time
}

type Job struct {
	ID               int64
	CompanyID        int64
	Title            string
	Status           string
	ViewCount        int
	ApplicationCount int
	InterviewCount   int
	HireCount        int
	Version          int64
	CreatedAt        time.Time
}

type Application struct {
	ID        int64
	UserID    string
	JobID     int64
	CompanyID int64
	Status    string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Interview struct {
	ID            int64
	CompanyID     int64
	UserID        string
	JobID         int64
	ScheduledDate string // YYYY-MM-DD
	ScheduledTime string // HH:MM
	InterviewType string
	Location      string
	Status        string
	CreatedAt     time.Time
}

type FeedbackTemplate struct {
	ID         int64
	CompanyID  int64
	Name       string
	Categories []string
	CreatedAt  time.Time
}

type Feedback struct {
	ID             int64
	StudentID      string // profile user id
	CompanyID      int64
	JobID          int64
	TemplateID     int64
	Ratings        map[string]int
	Comments       map[string]string
	OverallComment string
	OverallRating  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Message struct {
	ID            int64
	ChatRoomID    string
	ApplicationID int64
	SenderType    string
	SenderID      string
	Content       string
	CreatedAt     time.Time
}

type Notification struct {
	ID            int64
	RecipientType string
	RecipientID   string
	Type          string
	ResourceType  string
	ResourceID    int64
	Payload       []byte // JSON
	ReadAt        *time.Time
	CreatedAt     time.Time
}

type Bookmark struct {
	ID        int64
	UserID    string
	JobID     int64
	CreatedAt time.Time
}
