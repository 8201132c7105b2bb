package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the fixed risk ranking assigned to an incident.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Severities lists all severities in ranking order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh}

// ParseSeverity parses a severity value as returned by the analysis service.
func ParseSeverity(s string) (Severity, error) {
	switch strings.TrimSpace(s) {
	case string(SeverityLow):
		return SeverityLow, nil
	case string(SeverityMedium):
		return SeverityMedium, nil
	case string(SeverityHigh):
		return SeverityHigh, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Incident is a single detected moment of concern in the video.
// Incidents are immutable once assembled from the analysis response;
// ID is synthesized locally and is the identity key, not sequential.
type Incident struct {
	ID          string   `json:"id"`
	Timestamp   string   `json:"timestamp"` // "MM:SS"
	Seconds     int      `json:"seconds"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// AnalysisResult is the assembled output of one analysis call.
// It is created atomically on success and never partially populated.
type AnalysisResult struct {
	Summary   string     `json:"summary"`
	Incidents []Incident `json:"incidents"`
}

// FilterState maps each severity to whether it is visible in the list.
type FilterState map[Severity]bool

// DefaultFilters returns the initial filter state with every severity visible.
func DefaultFilters() FilterState {
	return FilterState{
		SeverityLow:    true,
		SeverityMedium: true,
		SeverityHigh:   true,
	}
}

// Clone returns an independent copy of the filter state.
func (f FilterState) Clone() FilterState {
	out := make(FilterState, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// SeekRequest is a one-shot command to move playback to a target time.
// The nonce makes two requests for the same second distinct events, so
// a repeated row click still re-triggers a seek.
type SeekRequest struct {
	Target   float64   `json:"target"`
	Nonce    string    `json:"nonce"`
	IssuedAt time.Time `json:"issued_at"`
}

// PlaybackState mirrors the browser media element for one session.
// CurrentTime advances with the element's own clock via reported events;
// the service observes it and only drives it on explicit seeks.
type PlaybackState struct {
	IsPlaying   bool    `json:"is_playing"`
	IsMuted     bool    `json:"is_muted"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Loaded      bool    `json:"loaded"`
}

// Phase is the screen the session is on.
type Phase string

const (
	PhaseUpload    Phase = "upload"
	PhaseAnalyzing Phase = "analyzing"
	PhaseResults   Phase = "results"
	PhaseError     Phase = "error"
)

// VideoFile is an uploaded video held in memory for the session's
// lifetime. The bytes double as the playback preview resource; the
// session releases them on reset or expiry.
type VideoFile struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
	Size int64  `json:"size"`
	Data []byte `json:"-"`
}

// SessionSnapshot is the full session view returned to the client.
type SessionSnapshot struct {
	ID             string          `json:"id"`
	Phase          Phase           `json:"phase"`
	Video          *VideoFile      `json:"video,omitempty"`
	Result         *AnalysisResult `json:"result,omitempty"`
	Filters        FilterState     `json:"filters"`
	Filtered       []Incident      `json:"filtered_incidents"`
	Active         *Incident       `json:"active_incident,omitempty"`
	Playback       PlaybackState   `json:"playback"`
	PendingSeek    *SeekRequest    `json:"pending_seek,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActivityAt time.Time       `json:"last_activity_at"`
}

// PlaybackEventType identifies a reported player event.
type PlaybackEventType string

const (
	EventTimeAdvance     PlaybackEventType = "time"
	EventMetadataReady   PlaybackEventType = "metadata"
	EventTogglePlay      PlaybackEventType = "toggle-play"
	EventToggleMute      PlaybackEventType = "toggle-mute"
	EventSkip            PlaybackEventType = "skip"
	EventAutoplayBlocked PlaybackEventType = "autoplay-blocked"
)

// PlaybackEventRequest is the payload for POST playback/events.
type PlaybackEventRequest struct {
	Type  PlaybackEventType `json:"type"`
	Value float64           `json:"value"`
}

// SeekRequestBody is the payload for POST seek.
type SeekRequestBody struct {
	Seconds float64 `json:"seconds"`
}

// ToggleFilterRequest is the payload for POST filters/toggle.
type ToggleFilterRequest struct {
	Severity string `json:"severity"`
}

// PushMessage is an event pushed to WebSocket listeners of a session.
type PushMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Timestamp        string `json:"timestamp"`
	ActiveSessions   int    `json:"active_sessions"`
	ConnectedClients int    `json:"connected_clients"`
}
