package handler

import (
	"encoding/base64"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stridelab/runtracker-go/internal/models"
	"github.com/stridelab/runtracker-go/internal/session"
	"github.com/stridelab/runtracker-go/pkg/response"
)

// SessionHandler exposes session lifecycle control and sample ingestion.
// The mobile shell drives the tracker through these endpoints.
type SessionHandler struct {
	tracker *session.Tracker
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(tracker *session.Tracker) *SessionHandler {
	return &SessionHandler{tracker: tracker}
}

// Prepare handles POST /api/v1/session/prepare
func (h *SessionHandler) Prepare(c *gin.Context) {
	if err := h.tracker.Prepare(c.Request.Context()); err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"state": h.tracker.State()})
}

// Start handles POST /api/v1/session/start
func (h *SessionHandler) Start(c *gin.Context) {
	if err := h.tracker.Start(); err != nil {
		response.Conflict(c, err.Error())
		return
	}
	response.Success(c, gin.H{"state": h.tracker.State()})
}

// Pause handles POST /api/v1/session/pause
func (h *SessionHandler) Pause(c *gin.Context) {
	if err := h.tracker.Pause(); err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"state": h.tracker.State()})
}

// Resume handles POST /api/v1/session/resume
func (h *SessionHandler) Resume(c *gin.Context) {
	if err := h.tracker.Resume(); err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"state": h.tracker.State()})
}

// End handles POST /api/v1/session/end
func (h *SessionHandler) End(c *gin.Context) {
	activity, err := h.tracker.End()
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	if activity == nil {
		response.Success(c, gin.H{"state": h.tracker.State(), "message": "no active session"})
		return
	}
	response.Success(c, activity)
}

// Discard handles POST /api/v1/session/discard
func (h *SessionHandler) Discard(c *gin.Context) {
	if err := h.tracker.Discard(); err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"state": h.tracker.State()})
}

// Live handles GET /api/v1/session
func (h *SessionHandler) Live(c *gin.Context) {
	response.Success(c, h.tracker.Live())
}

type gpsRequest struct {
	Latitude   float64 `json:"latitude" binding:"required"`
	Longitude  float64 `json:"longitude" binding:"required"`
	ElevationM float64 `json:"elevationM"`
	SpeedMps   float64 `json:"speedMps"`
	Timestamp  int64   `json:"timestamp"` // Unix millis; 0 means now
}

// IngestGPS handles POST /api/v1/session/gps
func (h *SessionHandler) IngestGPS(c *gin.Context) {
	var req gpsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid GPS sample")
		return
	}
	h.tracker.PushGPS(req.Latitude, req.Longitude, req.ElevationM, req.SpeedMps, sampleTime(req.Timestamp))
	response.Success(c, nil)
}

type sensorRequest struct {
	Source    string `json:"source" binding:"required"`
	Payload   string `json:"payload" binding:"required"` // base64 raw characteristic bytes
	Timestamp int64  `json:"timestamp"`
}

// IngestSensor handles POST /api/v1/session/sensor
func (h *SessionHandler) IngestSensor(c *gin.Context) {
	var req sensorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid sensor sample")
		return
	}

	source := models.SensorSource(req.Source)
	if source != models.SourceHRM && source != models.SourceFootpod {
		response.BadRequest(c, "Unknown sensor source")
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		response.BadRequest(c, "Payload is not valid base64")
		return
	}

	h.tracker.PushRawPayload(source, payload, sampleTime(req.Timestamp))
	response.Success(c, nil)
}

type motionRequest struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	PressurePa float64 `json:"pressurePa"`
	Steps      int     `json:"steps"`
	Timestamp  int64   `json:"timestamp"`
}

// IngestAccelerometer handles POST /api/v1/session/accelerometer
func (h *SessionHandler) IngestAccelerometer(c *gin.Context) {
	var req motionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid accelerometer sample")
		return
	}
	h.tracker.PushAccelerometer(req.X, req.Y, req.Z, sampleTime(req.Timestamp))
	response.Success(c, nil)
}

// IngestBarometer handles POST /api/v1/session/barometer
func (h *SessionHandler) IngestBarometer(c *gin.Context) {
	var req motionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid barometer sample")
		return
	}
	h.tracker.PushBarometer(req.PressurePa, sampleTime(req.Timestamp))
	response.Success(c, nil)
}

// IngestSteps handles POST /api/v1/session/steps
func (h *SessionHandler) IngestSteps(c *gin.Context) {
	var req motionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid step sample")
		return
	}
	h.tracker.PushStepCount(req.Steps, sampleTime(req.Timestamp))
	response.Success(c, nil)
}

func sampleTime(unixMillis int64) time.Time {
	if unixMillis <= 0 {
		return time.Now()
	}
	return time.UnixMilli(unixMillis)
}
