// Package playback models the browser media element for one session.
// The element itself lives in the browser; the controller tracks the
// intended transport state and applies nonce'd seek commands, while
// natural clock progress arrives as observed events.
package playback

import (
	"math"
	"sync"

	"video-incident-service/models"

	"github.com/apex/log"
)

// Controller owns play/pause/mute intent, current position, and
// duration for a single media element.
type Controller struct {
	mu    sync.Mutex
	state models.PlaybackState

	// lastSeekNonce makes ApplySeekRequest idempotent per nonce.
	lastSeekNonce string
}

func NewController() *Controller {
	return &Controller{}
}

// State returns a copy of the current playback state.
func (c *Controller) State() models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TogglePlay flips the play intent. No-op until metadata has loaded.
func (c *Controller) TogglePlay() models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Loaded {
		return c.state
	}
	c.state.IsPlaying = !c.state.IsPlaying
	return c.state
}

// ToggleMute flips the mute intent.
func (c *Controller) ToggleMute() models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsMuted = !c.state.IsMuted
	return c.state
}

// Seek moves playback to target seconds, clamped to [0, duration],
// and updates the position optimistically.
func (c *Controller) Seek(target float64) models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CurrentTime = c.clamp(target)
	return c.state
}

// Skip is a relative seek from the current position.
func (c *Controller) Skip(delta float64) models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CurrentTime = c.clamp(c.state.CurrentTime + delta)
	return c.state
}

// ApplySeekRequest handles a seek command from the incident list.
// A nonce that was already applied is ignored, so delivering the same
// request twice cannot double-trigger a seek. Seeking while paused
// starts playback; seeking while playing leaves it playing.
func (c *Controller) ApplySeekRequest(req models.SeekRequest) (models.PlaybackState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req.Nonce == "" || req.Nonce == c.lastSeekNonce {
		return c.state, false
	}
	c.lastSeekNonce = req.Nonce
	c.state.CurrentTime = c.clamp(req.Target)
	if !c.state.IsPlaying {
		c.state.IsPlaying = true
	}
	return c.state, true
}

// OnTimeAdvance records the position reported by the element's own
// clock. It mutates nothing else.
func (c *Controller) OnTimeAdvance(t float64) models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CurrentTime = t
	return c.state
}

// OnMetadataReady records the media duration once metadata is
// available. Incomplete metadata can report NaN; that propagates as 0,
// never as NaN.
func (c *Controller) OnMetadataReady(duration float64) models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if math.IsNaN(duration) || duration < 0 {
		duration = 0
	}
	c.state.Duration = duration
	c.state.Loaded = true
	return c.state
}

// ReportAutoplayBlocked records that the browser refused the play
// attempt. The intended playing state is kept; the indicator showing
// intent rather than reality is an accepted inconsistency.
func (c *Controller) ReportAutoplayBlocked() models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Warn("autoplay was blocked by the browser; keeping intended play state")
	return c.state
}

// Reset clears all playback state, including the applied seek nonce.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = models.PlaybackState{}
	c.lastSeekNonce = ""
}

func (c *Controller) clamp(t float64) float64 {
	if t < 0 {
		return 0
	}
	if c.state.Loaded && c.state.Duration > 0 && t > c.state.Duration {
		return c.state.Duration
	}
	return t
}
