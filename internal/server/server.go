// Package server exposes the watcher's local HTTP surface: the live snapshot,
// connection status, activity feed, metrics, and passthrough submit/verify.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parsaabbasian/unispot-sync/internal/api"
	"github.com/parsaabbasian/unispot-sync/internal/models"
	"github.com/parsaabbasian/unispot-sync/internal/telemetry"
	"github.com/parsaabbasian/unispot-sync/pkg/errors"
	"github.com/parsaabbasian/unispot-sync/pkg/export"
	"github.com/parsaabbasian/unispot-sync/pkg/jobs"
	"github.com/parsaabbasian/unispot-sync/pkg/logger"
	"github.com/parsaabbasian/unispot-sync/pkg/middleware/cors"
	"github.com/parsaabbasian/unispot-sync/pkg/middleware/requestid"
	"github.com/parsaabbasian/unispot-sync/pkg/response"
)

// Board is the slice of the sync facade the HTTP layer needs.
type Board interface {
	Events() []models.Event
	Filtered(category, query string) []models.Event
	Find(id uint) (models.Event, bool)
	Status() models.ConnStatus
	Viewers() int
	Activity() []models.Change
	SubmitEvent(ctx context.Context, submit api.SubmitRequest) error
	VerifyEvent(ctx context.Context, id uint) error
	Refresh(ctx context.Context) error
}

// Server wires the board facade into a gin router.
type Server struct {
	board   Board
	metrics *telemetry.Metrics
	exports *jobs.Dispatcher
	logger  *zap.Logger
}

// New builds a server. exports may be nil when periodic export is disabled.
func New(board Board, metrics *telemetry.Metrics, exports *jobs.Dispatcher, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{board: board, metrics: metrics, exports: exports, logger: log}
}

// Router assembles the middleware chain and routes.
func (s *Server) Router(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(s.logger))
	r.Use(cors.New(allowedOrigins))
	r.Use(gin.Recovery())

	r.GET("/health", s.health)
	r.GET("/export.csv", s.exportCSV)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := r.Group("/api")
	{
		v1.GET("/events", s.listEvents)
		v1.GET("/events/:id", s.getEvent)
		v1.GET("/status", s.status)
		v1.GET("/activity", s.activity)
		v1.POST("/events", s.submitEvent)
		v1.POST("/events/:id/verify", s.verifyEvent)
		v1.POST("/refresh", s.refresh)
		v1.POST("/exports", s.requestExport)
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) listEvents(c *gin.Context) {
	category := c.DefaultQuery("category", "all")
	query := c.Query("q")

	events := s.board.Filtered(category, query)
	status := s.board.Status()

	response.JSON(c, http.StatusOK, events, map[string]interface{}{
		"count":      len(events),
		"viewers":    s.board.Viewers(),
		"connection": string(status.State),
	})
}

func (s *Server) getEvent(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, errors.Clone(errors.ErrValidation, "event id must be a positive integer"))
		return
	}

	event, ok := s.board.Find(id)
	if !ok {
		response.Error(c, errors.ErrNotFound)
		return
	}
	response.JSON(c, http.StatusOK, event)
}

func (s *Server) status(c *gin.Context) {
	st := s.board.Status()
	response.JSON(c, http.StatusOK, gin.H{
		"state":    string(st.State),
		"attempt":  st.Attempt,
		"retry_in": st.RetryIn.String(),
		"viewers":  s.board.Viewers(),
	})
}

func (s *Server) activity(c *gin.Context) {
	response.JSON(c, http.StatusOK, s.board.Activity())
}

func (s *Server) submitEvent(c *gin.Context) {
	var submit api.SubmitRequest
	if err := c.ShouldBindJSON(&submit); err != nil {
		response.Error(c, errors.Wrap(err, errors.ErrValidation.Code, errors.ErrValidation.Status, "malformed submission body"))
		return
	}

	if err := s.board.SubmitEvent(c.Request.Context(), submit); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"message": "event submitted"})
}

func (s *Server) verifyEvent(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, errors.Clone(errors.ErrValidation, "event id must be a positive integer"))
		return
	}

	if err := s.board.VerifyEvent(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "event verified"})
}

func (s *Server) refresh(c *gin.Context) {
	if err := s.board.Refresh(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": len(s.board.Events())})
}

// exportCSV renders the current snapshot inline, for ad-hoc downloads. The
// jobs queue handles the periodic variant.
func (s *Server) exportCSV(c *gin.Context) {
	data, err := export.NewCSVExporter().Render(export.EventsDataset(s.board.Events()))
	if err != nil {
		response.Error(c, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "failed to render export"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="events.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

type exportRequest struct {
	Format string `json:"format"`
}

func (s *Server) requestExport(c *gin.Context) {
	if s.exports == nil {
		response.Error(c, errors.Clone(errors.ErrRejected, "exports are disabled"))
		return
	}

	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, errors.Wrap(err, errors.ErrValidation.Code, errors.ErrValidation.Status, "malformed export request"))
		return
	}
	if req.Format == "" {
		req.Format = "csv"
	}
	if req.Format != "csv" && req.Format != "pdf" {
		response.Error(c, errors.Clone(errors.ErrValidation, "format must be csv or pdf"))
		return
	}

	if err := s.exports.Enqueue(jobs.Job{Format: req.Format}); err != nil {
		response.Error(c, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "export queue is full"))
		return
	}
	response.Accepted(c, gin.H{"format": req.Format})
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.ErrValidation
	}
	return uint(id), nil
}
