package aggregate

import (
	"strconv"
	"time"

	"github.com/emilianohg/internhub/internal/listview"
)

// Filter names shared by the HTTP query string and the terminal screens.
const (
	FilterStatus     = "status"
	FilterJob        = "job"
	FilterType       = "type"
	FilterTemplate   = "template"
	FilterRating     = "rating"
	FilterUniversity = "university"
)

var ApplicantSchema = listview.Schema[ApplicantRow]{
	Search: []func(ApplicantRow) string{
		func(r ApplicantRow) string { return r.Name },
		func(r ApplicantRow) string { return r.University },
		func(r ApplicantRow) string { return r.JobTitle },
	},
	Categories: map[string]func(ApplicantRow) string{
		FilterStatus: func(r ApplicantRow) string { return r.Status },
		FilterJob:    func(r ApplicantRow) string { return strconv.FormatInt(r.JobID, 10) },
	},
	Date:   func(r ApplicantRow) time.Time { return r.CreatedAt },
	String: func(r ApplicantRow) string { return r.Name },
}

var InterviewSchema = listview.Schema[InterviewRow]{
	Search: []func(InterviewRow) string{
		func(r InterviewRow) string { return r.StudentName },
		func(r InterviewRow) string { return r.JobTitle },
		func(r InterviewRow) string { return r.Location },
	},
	Categories: map[string]func(InterviewRow) string{
		FilterType:   func(r InterviewRow) string { return r.InterviewType },
		FilterStatus: func(r InterviewRow) string { return r.Status },
	},
	Date:   func(r InterviewRow) time.Time { return r.ScheduledAt },
	String: func(r InterviewRow) string { return r.StudentName },
}

var FeedbackSchema = listview.Schema[FeedbackRow]{
	Search: []func(FeedbackRow) string{
		func(r FeedbackRow) string { return r.StudentName },
		func(r FeedbackRow) string { return r.JobTitle },
		func(r FeedbackRow) string { return r.TemplateName },
	},
	Categories: map[string]func(FeedbackRow) string{
		FilterTemplate: func(r FeedbackRow) string { return strconv.FormatInt(r.TemplateID, 10) },
		FilterRating:   func(r FeedbackRow) string { return strconv.Itoa(r.OverallRating) },
	},
	Date:   func(r FeedbackRow) time.Time { return r.CreatedAt },
	Number: func(r FeedbackRow) float64 { return float64(r.OverallRating) },
	String: func(r FeedbackRow) string { return r.StudentName },
}

var StudentSchema = listview.Schema[StudentRow]{
	Search: []func(StudentRow) string{
		func(r StudentRow) string { return r.Name },
		func(r StudentRow) string { return r.University },
		func(r StudentRow) string { return r.Email },
	},
	Categories: map[string]func(StudentRow) string{
		FilterUniversity: func(r StudentRow) string { return r.University },
	},
	Date:   func(r StudentRow) time.Time { return r.CreatedAt },
	Number: func(r StudentRow) float64 { return float64(r.ApplicationCount) },
	String: func(r StudentRow) string { return r.Name },
}
