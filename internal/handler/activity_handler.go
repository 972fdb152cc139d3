package handler

import (
	"database/sql"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stridelab/runtracker-go/internal/analysis"
	"github.com/stridelab/runtracker-go/internal/repository"
	"github.com/stridelab/runtracker-go/pkg/response"
)

// ActivityHandler handles HTTP requests for stored activities
type ActivityHandler struct {
	db         *sql.DB
	activities *repository.ActivityRepository
	readings   *repository.ReadingRepository
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(db *sql.DB) *ActivityHandler {
	return &ActivityHandler{
		db:         db,
		activities: repository.NewActivityRepository(db),
		readings:   repository.NewReadingRepository(db),
	}
}

// List handles GET /api/v1/activities
func (h *ActivityHandler) List(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		response.BadRequest(c, "Invalid limit parameter")
		return
	}

	summaries, err := h.activities.List(limit)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, summaries)
}

// Get handles GET /api/v1/activities/:id
func (h *ActivityHandler) Get(c *gin.Context) {
	activity, err := h.activities.GetByID(c.Param("id"))
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	if activity == nil {
		response.NotFound(c, "Activity not found")
		return
	}
	response.Success(c, activity)
}

// GetReadings handles GET /api/v1/activities/:id/readings
func (h *ActivityHandler) GetReadings(c *gin.Context) {
	readings, err := h.readings.GetByActivity(c.Param("id"))
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, readings)
}

// Quality handles GET /api/v1/activities/:id/quality
func (h *ActivityHandler) Quality(c *gin.Context) {
	skill := c.DefaultQuery("analyzer", "gps_quality")
	analyzer := analysis.GetAnalyzer(skill, h.db)
	if analyzer == nil {
		response.BadRequest(c, "Unknown analyzer: "+skill)
		return
	}

	result, err := analyzer.Analyze(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, result)
}
