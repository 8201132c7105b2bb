package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"video-incident-service/config"
	"video-incident-service/incidents"
	"video-incident-service/models"
	"video-incident-service/session"
	ws "video-incident-service/websocket"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	manager *session.Manager
	hub     *ws.Hub
	cfg     *config.Config
}

// NewHandlers creates a new handlers instance
func NewHandlers(manager *session.Manager, hub *ws.Hub, cfg *config.Config) *Handlers {
	return &Handlers{
		manager: manager,
		hub:     hub,
		cfg:     cfg,
	}
}

// CreateSession handles POST /api/v1/sessions
func (h *Handlers) CreateSession(c *gin.Context) {
	s := h.manager.Create()
	c.JSON(http.StatusCreated, s.Snapshot())
}

// GetSession handles GET /api/v1/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// UploadVideo handles POST /api/v1/sessions/:id/video. The multipart
// form field is "video". The selection-time cap applies here; the
// stricter analysis cap is enforced by the analyzer itself.
func (h *Handlers) UploadVideo(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video file is required"})
		return
	}
	if fileHeader.Size > h.cfg.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "file exceeds the upload limit",
			"kind":  models.ErrKindFileTooLarge,
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
		return
	}

	mime := fileHeader.Header.Get("Content-Type")
	if err := s.AttachVideo(fileHeader.Filename, mime, data); err != nil {
		h.renderSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.Snapshot())
}

// StreamVideo handles GET /api/v1/sessions/:id/video and serves the
// preview bytes back to the player.
func (h *Handlers) StreamVideo(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	video := s.Video()
	if video == nil || len(video.Data) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no video uploaded"})
		return
	}

	c.Data(http.StatusOK, video.MIME, video.Data)
}

// StartAnalysis handles POST /api/v1/sessions/:id/analyze
func (h *Handlers) StartAnalysis(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := s.StartAnalysis(c.Request.Context()); err != nil {
		h.renderSessionError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, s.Snapshot())
}

// ToggleFilter handles POST /api/v1/sessions/:id/filters/toggle
func (h *Handlers) ToggleFilter(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var req models.ToggleFilterRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if err := s.ToggleSeverity(req.Severity); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.Snapshot())
}

// Seek handles POST /api/v1/sessions/:id/seek
func (h *Handlers) Seek(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var req models.SeekRequestBody
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	seek, err := s.RequestSeek(req.Seconds)
	if err != nil {
		h.renderSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, seek)
}

// PlaybackEvent handles POST /api/v1/sessions/:id/playback/events
func (h *Handlers) PlaybackEvent(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var req models.PlaybackEventRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	state, err := s.ApplyPlaybackEvent(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, state)
}

// ExportCSV handles GET /api/v1/sessions/:id/export/csv. The export
// covers the filtered incidents in sorted order under a fixed filename.
func (h *Handlers) ExportCSV(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	snap := s.Snapshot()
	body := incidents.CSV(snap.Filtered)

	c.Header("Content-Disposition", `attachment; filename="`+incidents.CSVFilename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(body))
}

// ExportText handles GET /api/v1/sessions/:id/export/text and returns
// the clipboard payload, one incident per line.
func (h *Handlers) ExportText(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	snap := s.Snapshot()
	c.String(http.StatusOK, incidents.ClipboardText(snap.Filtered))
}

// Reset handles POST /api/v1/sessions/:id/reset
func (h *Handlers) Reset(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := s.Reset(); err != nil {
		h.renderSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.Snapshot())
}

// Back handles POST /api/v1/sessions/:id/back, the error-screen retry
// path that keeps the selected file.
func (h *Handlers) Back(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := s.Back(); err != nil {
		h.renderSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.Snapshot())
}

// WebSocket upgrader
var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now
		// In production, you should implement proper origin checking
		return true
	},
}

// Listen handles GET /api/v1/sessions/:id/listen and upgrades to a
// WebSocket event stream for the session.
func (h *Handlers) Listen(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, s.ID)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	log.WithField("session", s.ID).Info("WebSocket connection established")
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := models.HealthResponse{
		Status:           "healthy",
		Service:          "video-incident-service",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ActiveSessions:   h.manager.Count(),
		ConnectedClients: h.hub.ConnectedClients(),
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handlers) lookup(c *gin.Context) (*session.Session, bool) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return s, true
}

// renderSessionError maps state machine and validation errors to HTTP
// responses. Validation failures leave the session phase unchanged.
func (h *Handlers) renderSessionError(c *gin.Context, err error) {
	var ae *models.AnalysisError
	switch {
	case errors.As(err, &ae):
		status := http.StatusBadRequest
		if ae.Kind == models.ErrKindFileTooLarge {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"error": ae.Message, "kind": ae.Kind})
	case errors.Is(err, session.ErrNoVideo):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
