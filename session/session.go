// Package session owns the application state machine. A session moves
// through upload -> analyzing -> results|error, and every mutation goes
// through a transition method under the session mutex. Subordinate
// views receive snapshots; nothing reaches into session fields.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"video-incident-service/incidents"
	"video-incident-service/intelligence"
	"video-incident-service/metrics"
	"video-incident-service/models"
	"video-incident-service/playback"
	ws "video-incident-service/websocket"

	"github.com/apex/log"
	"github.com/google/uuid"
)

var (
	// ErrInvalidTransition means the requested operation is not legal in
	// the session's current phase. The session state is left unchanged.
	ErrInvalidTransition = errors.New("operation not allowed in current phase")

	// ErrNoVideo means start-analysis was invoked without a validated
	// upload present. The session stays on the upload phase.
	ErrNoVideo = errors.New("no video has been uploaded")
)

// Session is one user's analysis workflow and all of its UI state.
type Session struct {
	ID string

	analyzer     intelligence.Analyzer
	hub          *ws.Hub
	activeWindow float64

	// Selection-time upload cap; looser than the analysis cap, which the
	// analyzer enforces itself before any network call.
	maxUploadBytes int64

	mu          sync.Mutex
	phase       models.Phase
	video       *models.VideoFile
	result      *models.AnalysisResult
	filters     models.FilterState
	pendingSeek *models.SeekRequest
	playback    *playback.Controller
	errMessage  string

	createdAt      time.Time
	lastActivityAt time.Time
}

func newSession(analyzer intelligence.Analyzer, hub *ws.Hub, activeWindow float64, maxUploadBytes int64) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:             uuid.NewString(),
		analyzer:       analyzer,
		hub:            hub,
		activeWindow:   activeWindow,
		maxUploadBytes: maxUploadBytes,
		phase:          models.PhaseUpload,
		filters:        models.DefaultFilters(),
		playback:       playback.NewController(),
		createdAt:      now,
		lastActivityAt: now,
	}
}

// Snapshot returns the full session view, with the filtered list and
// active incident re-derived from scratch.
func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() models.SessionSnapshot {
	snap := models.SessionSnapshot{
		ID:             s.ID,
		Phase:          s.phase,
		Filters:        s.filters.Clone(),
		Filtered:       []models.Incident{},
		Playback:       s.playback.State(),
		PendingSeek:    s.pendingSeek,
		ErrorMessage:   s.errMessage,
		CreatedAt:      s.createdAt,
		LastActivityAt: s.lastActivityAt,
	}
	if s.video != nil {
		// Bytes are stripped from snapshots; they stream separately.
		snap.Video = &models.VideoFile{Name: s.video.Name, MIME: s.video.MIME, Size: s.video.Size}
	}
	if s.result != nil {
		snap.Result = s.result
		snap.Filtered = incidents.Filtered(s.result.Incidents, s.filters)
		snap.Active = incidents.Active(s.result.Incidents, s.playback.State().CurrentTime, s.activeWindow)
	}
	return snap
}

// AttachVideo validates and stores an upload. Only legal on the upload
// phase; validation failures surface inline with no phase transition.
func (s *Session) AttachVideo(name, mime string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if s.phase != models.PhaseUpload {
		return ErrInvalidTransition
	}
	if !strings.HasPrefix(mime, "video/") {
		return models.NewAnalysisError(models.ErrKindInvalidFileType,
			fmt.Sprintf("file type %q is not a video", mime))
	}
	if int64(len(data)) > s.maxUploadBytes {
		return models.NewAnalysisError(models.ErrKindFileTooLarge,
			fmt.Sprintf("file is %d bytes, above the %d byte upload limit", len(data), s.maxUploadBytes))
	}

	s.video = &models.VideoFile{
		Name: name,
		MIME: mime,
		Size: int64(len(data)),
		Data: data,
	}
	metrics.UploadBytes.Observe(float64(len(data)))
	s.push("video-attached", models.VideoFile{Name: name, MIME: mime, Size: int64(len(data))})
	return nil
}

// Video returns the stored upload for preview streaming.
func (s *Session) Video() *models.VideoFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video
}

// StartAnalysis moves upload -> analyzing and submits the single
// analysis request in the background. Without a validated upload this
// is a no-op: the phase does not change. Re-entry while analyzing is
// refused, so there is never more than one in-flight analysis.
func (s *Session) StartAnalysis(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if s.phase != models.PhaseUpload {
		return ErrInvalidTransition
	}
	if s.video == nil {
		return ErrNoVideo
	}

	s.phase = models.PhaseAnalyzing
	s.push("phase", s.phase)

	// The analysis outlives the triggering request; once started there
	// is no user-facing cancellation, only resolution.
	video := s.video
	go s.runAnalysis(context.WithoutCancel(ctx), video)
	return nil
}

// runAnalysis performs the one analysis attempt and applies its
// resolution exactly once, strictly after the request completes.
func (s *Session) runAnalysis(ctx context.Context, video *models.VideoFile) {
	started := time.Now()
	result, err := s.analyzer.Analyze(ctx, video)
	elapsed := time.Since(started).Seconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != models.PhaseAnalyzing {
		// Cannot happen: analyzing has no exits besides this resolution.
		log.WithField("session", s.ID).Errorf("analysis resolved in phase %s", s.phase)
		return
	}

	if err != nil {
		kind := models.AnalysisKindOf(err)
		metrics.AnalysesTotal.WithLabelValues(string(kind)).Inc()
		metrics.AnalysisDurationSeconds.WithLabelValues(string(kind)).Observe(elapsed)
		s.phase = models.PhaseError
		s.errMessage = err.Error()
		log.WithField("session", s.ID).Errorf("analysis failed (%s): %v", kind, err)
		s.push("phase", s.phase)
		return
	}

	metrics.AnalysesTotal.WithLabelValues("success").Inc()
	metrics.AnalysisDurationSeconds.WithLabelValues("success").Observe(elapsed)
	s.phase = models.PhaseResults
	s.result = result
	log.WithField("session", s.ID).
		Infof("analysis complete: %d incidents", len(result.Incidents))
	s.push("results", s.snapshotLocked())
}

// ToggleSeverity flips one severity filter.
func (s *Session) ToggleSeverity(raw string) error {
	severity, err := models.ParseSeverity(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	s.filters[severity] = !s.filters[severity]
	s.push("filters", s.filters.Clone())
	return nil
}

// RequestSeek mints a nonce'd seek command from an incident row or
// timeline scrub and applies it to the playback controller. The nonce
// keeps a repeated click on the same row observable as a new event
// while making redelivery of the same command harmless.
func (s *Session) RequestSeek(seconds float64) (*models.SeekRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if s.phase != models.PhaseResults {
		return nil, ErrInvalidTransition
	}

	req := &models.SeekRequest{
		Target:   seconds,
		Nonce:    uuid.NewString(),
		IssuedAt: time.Now().UTC(),
	}
	s.pendingSeek = req
	s.playback.ApplySeekRequest(*req)
	metrics.SeekRequestsTotal.Inc()
	s.push("seek", req)
	return req, nil
}

// ApplyPlaybackEvent routes a reported player event to the controller.
func (s *Session) ApplyPlaybackEvent(ev models.PlaybackEventRequest) (models.PlaybackState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	switch ev.Type {
	case models.EventTimeAdvance:
		return s.playback.OnTimeAdvance(ev.Value), nil
	case models.EventMetadataReady:
		return s.playback.OnMetadataReady(ev.Value), nil
	case models.EventTogglePlay:
		return s.playback.TogglePlay(), nil
	case models.EventToggleMute:
		return s.playback.ToggleMute(), nil
	case models.EventSkip:
		return s.playback.Skip(ev.Value), nil
	case models.EventAutoplayBlocked:
		return s.playback.ReportAutoplayBlocked(), nil
	}
	return s.playback.State(), fmt.Errorf("unknown playback event type %q", ev.Type)
}

// Reset fully discards the workflow: the upload and its preview bytes,
// the analysis result, the error text, and any pending seek. Filters
// return to all-true. Not legal while an analysis is in flight.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if s.phase == models.PhaseAnalyzing {
		return ErrInvalidTransition
	}

	s.phase = models.PhaseUpload
	s.video = nil
	s.result = nil
	s.errMessage = ""
	s.pendingSeek = nil
	s.filters = models.DefaultFilters()
	s.playback.Reset()
	s.push("phase", s.phase)
	return nil
}

// Back is the secondary error -> upload path for a retry: the selected
// file stays attached and the error text is kept around, unlike Reset.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if s.phase != models.PhaseError {
		return ErrInvalidTransition
	}
	s.phase = models.PhaseUpload
	s.push("phase", s.phase)
	return nil
}

// releaseResources drops the preview bytes; called on expiry.
func (s *Session) releaseResources() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = nil
	s.result = nil
}

func (s *Session) touchLocked() {
	s.lastActivityAt = time.Now().UTC()
}

// idleSince reports the last activity time for the reaper.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

func (s *Session) push(eventType string, data interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToSession(s.ID, eventType, data)
}
