package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emilianohg/internhub/internal/aggregate"
	"github.com/emilianohg/internhub/internal/apperr"
	"github.com/emilianohg/internhub/internal/export"
	"github.com/emilianohg/internhub/internal/listview"
	"github.com/emilianohg/internhub/internal/mutation"
)

const dayLayout = "2006-01-02"

func idParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(name, "IDが不正です")
	}
	return id, nil
}

// criteria reads q, sort, page, from and to, plus the named categorical
// filters keyed by query parameter.
func (s *Server) criteria(c *gin.Context, filters map[string]string) (listview.Criteria, error) {
	cr := listview.Criteria{
		Query:    c.Query("q"),
		Filters:  map[string]string{},
		Location: s.opts.Location,
		Sort:     listview.ParseSort(c.Query("sort")),
		Page:     1,
		PageSize: s.opts.PageSize,
	}
	for param, filter := range filters {
		if v := c.Query(param); v != "" {
			cr.Filters[filter] = v
		}
	}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cr, apperr.Validation("page", "ページ番号が不正です")
		}
		cr.Page = n
	}
	for _, b := range []struct {
		param string
		dst   *time.Time
	}{{"from", &cr.From}, {"to", &cr.To}} {
		v := c.Query(b.param)
		if v == "" {
			continue
		}
		t, err := time.ParseInLocation(dayLayout, v, s.opts.Location)
		if err != nil {
			return cr, apperr.Validation(b.param, "日付はYYYY-MM-DD形式で入力してください")
		}
		*b.dst = t
	}
	return cr, nil
}

func pageJSON[T any](p listview.Page[T]) gin.H {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	return gin.H{
		"items":       items,
		"page":        p.Page,
		"page_size":   p.PageSize,
		"total_pages": p.TotalPages,
		"total":       p.Total,
	}
}

func (s *Server) getDashboard(c *gin.Context) {
	companyID, err := idParam(c, "companyId")
	if err != nil {
		s.respondError(c, "dashboard", err)
		return
	}
	d, err := s.reader.Dashboard(c.Request.Context(), companyID)
	if err != nil {
		s.respondError(c, "dashboard", err)
		return
	}
	ok(c, http.StatusOK, d)
}

func (s *Server) listApplicants(c *gin.Context) {
	companyID, err := idParam(c, "companyId")
	if err != nil {
		s.respondError(c, "list applicants", err)
		return
	}
	q := aggregate.ApplicantQuery{CompanyID: companyID}
	if v := c.Query("status"); v != listview.All {
		q.Status = v
	}
	if v := c.Query("job_id"); v != "" {
		if q.JobID, err = strconv.ParseInt(v, 10, 64); err != nil {
			s.respondError(c, "list applicants", apperr.Validation("job_id", "求人IDが不正です"))
			return
		}
	}
	cr, err := s.criteria(c, nil)
	if err != nil {
		s.respondError(c, "list applicants", err)
		return
	}

	rows, err := s.reader.Applicants(c.Request.Context(), q)
	if err != nil {
		s.respondError(c, "list applicants", err)
		return
	}
	filtered := listview.Apply(rows, aggregate.ApplicantSchema, cr)
	ok(c, http.StatusOK, pageJSON(listview.Paginate(filtered, cr.Page, cr.PageSize)))
}

func (s *Server) listInterviews(c *gin.Context) {
	companyID, err := idParam(c, "companyId")
	if err != nil {
		s.respondError(c, "list interviews", err)
		return
	}
	cr, err := s.criteria(c, map[string]string{"type": aggregate.FilterType, "status": aggregate.FilterStatus})
	if err != nil {
		s.respondError(c, "list interviews", err)
		return
	}

	rows, err := s.reader.Interviews(c.Request.Context(), companyID)
	if err != nil {
		s.respondError(c, "list interviews", err)
		return
	}
	filtered := listview.Apply(rows, aggregate.InterviewSchema, cr)
	ok(c, http.StatusOK, pageJSON(listview.Paginate(filtered, cr.Page, cr.PageSize)))
}

type scheduleInterviewRequest struct {
	UserID        string `json:"user_id"`
	JobID         int64  `json:"job_id"`
	Date          string `json:"scheduled_date"`
	Time          string `json:"scheduled_time"`
	InterviewType string `json:"interview_type"`
	Location      string `json:"location"`
}

func (s *Server) scheduleInterview(c *gin.Context) {
	companyID, err := idParam(c, "companyId")
	if err != nil {
		s.respondError(c, "schedule interview", err)
		return
	}
	var req scheduleInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "schedule interview", apperr.Validation("body", "リクエストの形式が不正です"))
		return
	}

	row, err := s.writer.ScheduleInterview(c.Request.Context(), mutation.ScheduleInterviewInput{
		CompanyID:     companyID,
		UserID:        req.UserID,
		JobID:         req.JobID,
		Date:          req.Date,
		Time:          req.Time,
		InterviewType: req.InterviewType,
		Location:      req.Location,
	})
	if err != nil {
		s.respondError(c, "schedule interview", err)
		return
	}
	ok(c, http.StatusCreated, row)
}

// filteredFeedbacks is shared by the list and export endpoints so an export
// contains exactly what the list shows, across all pages.
func (s *Server) filteredFeedbacks(c *gin.Context) ([]aggregate.FeedbackRow, listview.Criteria, error) {
	companyID, err := idParam(c, "companyId")
	if err != nil {
		return nil, listview.Criteria{}, err
	}
	cr, err := s.criteria(c, map[string]string{"template_id": aggregate.FilterTemplate, "rating": aggregate.FilterRating})
	if err != nil {
		return nil, cr, err
	}
	rows, err := s.reader.Feedbacks(c.Request.Context(), companyID)
	if err != nil {
		return nil, cr, err
	}
	return listview.Apply(rows, aggregate.FeedbackSchema, cr), cr, nil
}

func (s *Server) listFeedbacks(c *gin.Context) {
	rows, cr, err := s.filteredFeedbacks(c)
	if err != nil {
		s.respondError(c, "list feedbacks", err)
		return
	}
	ok(c, http.StatusOK, pageJSON(listview.Paginate(rows, cr.Page, cr.PageSize)))
}

func (s *Server) exportFeedbacks(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		s.respondError(c, "export feedbacks", apperr.Validation("format", "出力形式はcsv、json、xlsxのいずれかです"))
		return
	}
	rows, _, err := s.filteredFeedbacks(c)
	if err != nil {
		s.respondError(c, "export feedbacks", err)
		return
	}

	// Buffered so a writer failure can still produce an error response.
	var buf bytes.Buffer
	if err := export.Write(&buf, export.Feedbacks(rows), format); err != nil {
		s.respondError(c, "export feedbacks", err)
		return
	}
	name := export.FileName("feedbacks", format, s.now().In(s.opts.Location))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

type createFeedbackRequest struct {
	TemplateID     int64             `json:"template_id"`
	UserID         string            `json:"user_id"`
	JobID          int64             `json:"job_id"`
	Ratings        map[string]int    `json:"ratings"`
	Comments       map[string]string `json:"comments"`
	OverallRating  int               `json:"overall_rating"`
	OverallComment string            `json:"overall_comment"`
}

// draft replays a submission through the same steps the terminal wizard
// takes, so both surfaces share one set of rules.
func (s *Server) draft(c *gin.Context, companyID int64, req createFeedbackRequest) (*mutation.FeedbackDraft, error) {
	d := mutation.NewFeedbackDraft(companyID)
	if req.TemplateID <= 0 {
		return nil, apperr.Validation("template_id", "評価テンプレートを選択してください")
	}
	templates, err := s.templates.GetByIDs(c.Request.Context(), []int64{req.TemplateID})
	if err != nil {
		return nil, apperr.Fetch("load template", err)
	}
	if len(templates) == 0 {
		return nil, apperr.NotFound("load template", "評価テンプレートが見つかりません")
	}
	if err := d.SelectTemplate(templates[0]); err != nil {
		return nil, err
	}
	if err := d.SelectStudent(req.UserID, req.JobID); err != nil {
		return nil, err
	}
	for category, score := range req.Ratings {
		if err := d.Rate(category, score); err != nil {
			return nil, err
		}
	}
	for category, text := range req.Comments {
		if err := d.Comment(category, text); err != nil {
			return nil, err
		}
	}
	if err := d.SetOverall(req.OverallRating, req.OverallComment); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Server) createFeedback(c *gin.Context) {
	companyID, err := idParam(c, "companyId")
	if err != nil {
		s.respondError(c, "create feedback", err)
		return
	}
	var req createFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "create feedback", apperr.Validation("body", "リクエストの形式が不正です"))
		return
	}
	d, err := s.draft(c, companyID, req)
	if err != nil {
		s.respondError(c, "create feedback", err)
		return
	}
	row, err := s.writer.CreateFeedback(c.Request.Context(), d)
	if err != nil {
		s.respondError(c, "create feedback", err)
		return
	}
	ok(c, http.StatusCreated, row)
}

type createApplicationRequest struct {
	UserID string `json:"user_id"`
	JobID  int64  `json:"job_id"`
}

func (s *Server) createApplication(c *gin.Context) {
	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "create application", apperr.Validation("body", "リクエストの形式が不正です"))
		return
	}
	row, err := s.writer.CreateApplication(c.Request.Context(), req.UserID, req.JobID)
	if err != nil {
		s.respondError(c, "create application", err)
		return
	}
	ok(c, http.StatusCreated, row)
}

type statusRequest struct {
	Expected string `json:"expected"`
	Action   string `json:"action"`
}

func (s *Server) changeApplicationStatus(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.respondError(c, "change application status", err)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "change application status", apperr.Validation("body", "リクエストの形式が不正です"))
		return
	}

	change, err := s.writer.ChangeApplicationStatus(c.Request.Context(), id, req.Expected, mutation.Action(req.Action))
	if err != nil {
		s.respondError(c, "change application status", err)
		return
	}
	// row is null when the re-read failed; the status change itself stands.
	ok(c, http.StatusOK, gin.H{
		"id":      change.ID,
		"status":  change.Status,
		"version": change.Version,
		"row":     change.Row,
	})
}

func (s *Server) changeJobStatus(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.respondError(c, "change job status", err)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "change job status", apperr.Validation("body", "リクエストの形式が不正です"))
		return
	}

	change, err := s.writer.ChangeJobStatus(c.Request.Context(), id, req.Expected, mutation.Action(req.Action))
	if err != nil {
		s.respondError(c, "change job status", err)
		return
	}
	data := gin.H{"id": change.ID, "status": change.Status}
	if change.Job != nil {
		data["title"] = change.Job.Title
		data["company_id"] = change.Job.CompanyID
	}
	ok(c, http.StatusOK, data)
}

// listNotifications returns the newest notifications, page_size of them
// unless limit says otherwise. limit=0 returns all.
func (s *Server) listNotifications(c *gin.Context) {
	companyID, err := idParam(c, "companyId")
	if err != nil {
		s.respondError(c, "list notifications", err)
		return
	}
	limit := s.opts.PageSize
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			s.respondError(c, "list notifications", apperr.Validation("limit", "件数が不正です"))
			return
		}
	}
	rows, err := s.reader.Notifications(c.Request.Context(), companyID, limit)
	if err != nil {
		s.respondError(c, "list notifications", err)
		return
	}
	if rows == nil {
		rows = []aggregate.NotificationRow{}
	}
	ok(c, http.StatusOK, rows)
}

type markReadRequest struct {
	ID int64 `json:"id"`
}

// markNotificationsRead marks the notification named by id, or all of the
// company's unread ones when the body is empty or id is omitted.
func (s *Server) markNotificationsRead(c *gin.Context) {
	companyID, err := idParam(c, "companyId")
	if err != nil {
		s.respondError(c, "mark notifications read", err)
		return
	}
	var req markReadRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			s.respondError(c, "mark notifications read", apperr.Validation("body", "リクエストの形式が不正です"))
			return
		}
	}

	if req.ID == 0 {
		n, err := s.writer.MarkAllNotificationsRead(c.Request.Context(), companyID)
		if err != nil {
			s.respondError(c, "mark notifications read", err)
			return
		}
		ok(c, http.StatusOK, gin.H{"marked": n})
		return
	}
	if err := s.writer.MarkNotificationRead(c.Request.Context(), companyID, req.ID); err != nil {
		s.respondError(c, "mark notification read", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"marked": 1})
}

func (s *Server) listMessages(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.respondError(c, "list messages", err)
		return
	}
	rows, err := s.reader.Thread(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, "list messages", err)
		return
	}
	if rows == nil {
		rows = []aggregate.MessageRow{}
	}
	ok(c, http.StatusOK, rows)
}

type sendMessageRequest struct {
	SenderType string `json:"sender_type"`
	SenderID   string `json:"sender_id"`
	Content    string `json:"content"`
}

func (s *Server) sendMessage(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.respondError(c, "send message", err)
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "send message", apperr.Validation("body", "リクエストの形式が不正です"))
		return
	}

	row, err := s.writer.SendMessage(c.Request.Context(), mutation.SendMessageInput{
		ApplicationID: id,
		SenderType:    req.SenderType,
		SenderID:      strings.TrimSpace(req.SenderID),
		Content:       req.Content,
	})
	if err != nil {
		s.respondError(c, "send message", err)
		return
	}
	ok(c, http.StatusCreated, row)
}

func (s *Server) listStudents(c *gin.Context) {
	cr, err := s.criteria(c, map[string]string{"university": aggregate.FilterUniversity})
	if err != nil {
		s.respondError(c, "list students", err)
		return
	}
	rows, err := s.reader.Students(c.Request.Context())
	if err != nil {
		s.respondError(c, "list students", err)
		return
	}
	filtered := listview.Apply(rows, aggregate.StudentSchema, cr)
	ok(c, http.StatusOK, pageJSON(listview.Paginate(filtered, cr.Page, cr.PageSize)))
}

func (s *Server) toggleBookmark(c *gin.Context) {
	jobID, err := idParam(c, "jobId")
	if err != nil {
		s.respondError(c, "toggle bookmark", err)
		return
	}
	on, err := s.writer.ToggleBookmark(c.Request.Context(), c.Param("userId"), jobID)
	if err != nil {
		s.respondError(c, "toggle bookmark", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"user_id": c.Param("userId"), "job_id": jobID, "bookmarked": on})
}
