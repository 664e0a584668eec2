// Package api exposes the aggregation and mutation layers over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/emilianohg/internhub/internal/aggregate"
	"github.com/emilianohg/internhub/internal/apperr"
	"github.com/emilianohg/internhub/internal/logging"
	"github.com/emilianohg/internhub/internal/models"
	"github.com/emilianohg/internhub/internal/mutation"
)

// Reader is satisfied by *aggregate.Aggregator.
type Reader interface {
	Applicants(ctx context.Context, q aggregate.ApplicantQuery) ([]aggregate.ApplicantRow, error)
	Interviews(ctx context.Context, companyID int64) ([]aggregate.InterviewRow, error)
	Feedbacks(ctx context.Context, companyID int64) ([]aggregate.FeedbackRow, error)
	Students(ctx context.Context) ([]aggregate.StudentRow, error)
	Dashboard(ctx context.Context, companyID int64) (*aggregate.Dashboard, error)
	Thread(ctx context.Context, applicationID int64) ([]aggregate.MessageRow, error)
	Notifications(ctx context.Context, companyID int64, limit int) ([]aggregate.NotificationRow, error)
}

// Writer is satisfied by *mutation.Service.
type Writer interface {
	SendMessage(ctx context.Context, in mutation.SendMessageInput) (*aggregate.MessageRow, error)
	ChangeApplicationStatus(ctx context.Context, applicationID int64, expected string, action mutation.Action) (*mutation.StatusChange, error)
	ChangeJobStatus(ctx context.Context, jobID int64, expected string, action mutation.Action) (*mutation.JobChange, error)
	ScheduleInterview(ctx context.Context, in mutation.ScheduleInterviewInput) (*aggregate.InterviewRow, error)
	CreateFeedback(ctx context.Context, d *mutation.FeedbackDraft) (*aggregate.FeedbackRow, error)
	ToggleBookmark(ctx context.Context, userID string, jobID int64) (bool, error)
	CreateApplication(ctx context.Context, userID string, jobID int64) (*aggregate.ApplicantRow, error)
	MarkNotificationRead(ctx context.Context, companyID, notificationID int64) error
	MarkAllNotificationsRead(ctx context.Context, companyID int64) (int, error)
}

// TemplateReader resolves the template named in a feedback submission.
type TemplateReader interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.FeedbackTemplate, error)
}

type Options struct {
	Location   *time.Location
	PageSize   int
	WriteRate  float64
	WriteBurst int
}

type Server struct {
	reader    Reader
	writer    Writer
	templates TemplateReader
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
	engine    *gin.Engine
}

func New(reader Reader, writer Writer, templates TemplateReader, logger *slog.Logger, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		reader:    reader,
		writer:    writer,
		templates: templates,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	r.Use(cors.New(corsConfig))

	limit := NewIPRateLimiter(s.opts.WriteRate, s.opts.WriteBurst).Middleware()

	api := r.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true, "data": gin.H{"status": "healthy"}})
		})

		company := api.Group("/companies/:companyId")
		company.GET("/dashboard", s.getDashboard)
		company.GET("/applicants", s.listApplicants)
		company.GET("/interviews", s.listInterviews)
		company.POST("/interviews", limit, s.scheduleInterview)
		company.GET("/feedbacks", s.listFeedbacks)
		company.POST("/feedbacks", limit, s.createFeedback)
		company.GET("/feedbacks/export", s.exportFeedbacks)
		company.GET("/notifications", s.listNotifications)
		company.POST("/notifications/read", limit, s.markNotificationsRead)

		api.POST("/applications", limit, s.createApplication)
		api.POST("/applications/:id/status", limit, s.changeApplicationStatus)
		api.GET("/applications/:id/messages", s.listMessages)
		api.POST("/applications/:id/messages", limit, s.sendMessage)

		api.POST("/jobs/:id/status", limit, s.changeJobStatus)

		api.GET("/students", s.listStudents)
		api.POST("/students/:userId/bookmarks/:jobId", limit, s.toggleBookmark)
	}

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"ok": true, "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "message": message})
}

const fetchFailedMessage = "データを取得できませんでした。時間をおいて再度お試しください。"

// respondError logs err and writes the matching status. Read failures never
// carry partial data.
func (s *Server) respondError(c *gin.Context, op string, err error) {
	logging.Error(s.logger, op, err, "path", c.FullPath())

	switch apperr.KindOf(err) {
	case apperr.KindFetch:
		fail(c, http.StatusServiceUnavailable, fetchFailedMessage)
	case apperr.KindValidation:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"ok":      false,
			"message": apperr.UserMessage(err),
			"field":   apperr.FieldOf(err),
		})
	case apperr.KindConflict:
		fail(c, http.StatusConflict, apperr.UserMessage(err))
	case apperr.KindNotFound:
		fail(c, http.StatusNotFound, apperr.UserMessage(err))
	case apperr.KindTimeout:
		fail(c, http.StatusGatewayTimeout, apperr.UserMessage(err))
	default:
		fail(c, http.StatusInternalServerError, apperr.UserMessage(err))
	}
}
