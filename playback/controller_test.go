package playback

import (
	"math"
	"testing"

	"video-incident-service/models"
)

func loadedController(duration float64) *Controller {
	c := NewController()
	c.OnMetadataReady(duration)
	return c
}

func TestTogglePlayNoopBeforeLoad(t *testing.T) {
	c := NewController()

	state := c.TogglePlay()
	if state.IsPlaying {
		t.Fatal("toggle before metadata load must be a no-op")
	}

	c.OnMetadataReady(120)
	if state = c.TogglePlay(); !state.IsPlaying {
		t.Fatal("toggle after load should start playback")
	}
	if state = c.TogglePlay(); state.IsPlaying {
		t.Fatal("second toggle should pause")
	}
}

func TestMetadataNaNPropagatesZero(t *testing.T) {
	c := NewController()

	state := c.OnMetadataReady(math.NaN())
	if state.Duration != 0 {
		t.Fatalf("NaN duration must propagate as 0, got %v", state.Duration)
	}
	if !state.Loaded {
		t.Fatal("metadata event should mark the media loaded")
	}
}

func TestSeekClamps(t *testing.T) {
	c := loadedController(100)

	if state := c.Seek(150); state.CurrentTime != 100 {
		t.Errorf("seek past end: got %v, want 100", state.CurrentTime)
	}
	if state := c.Seek(-5); state.CurrentTime != 0 {
		t.Errorf("seek before start: got %v, want 0", state.CurrentTime)
	}
	if state := c.Seek(42); state.CurrentTime != 42 {
		t.Errorf("seek in range: got %v, want 42", state.CurrentTime)
	}
}

func TestSkipIsRelative(t *testing.T) {
	c := loadedController(100)
	c.Seek(50)

	if state := c.Skip(5); state.CurrentTime != 55 {
		t.Errorf("skip +5: got %v, want 55", state.CurrentTime)
	}
	if state := c.Skip(-60); state.CurrentTime != 0 {
		t.Errorf("skip -60 clamps to 0: got %v", state.CurrentTime)
	}
}

func TestApplySeekRequestIdempotentPerNonce(t *testing.T) {
	c := loadedController(100)

	req := models.SeekRequest{Target: 30, Nonce: "n1"}
	state, applied := c.ApplySeekRequest(req)
	if !applied {
		t.Fatal("first delivery of a nonce must apply")
	}
	if state.CurrentTime != 30 {
		t.Errorf("got position %v, want 30", state.CurrentTime)
	}

	c.OnTimeAdvance(40)
	if _, applied = c.ApplySeekRequest(req); applied {
		t.Fatal("re-delivery of the same nonce must not re-seek")
	}
	if state = c.State(); state.CurrentTime != 40 {
		t.Errorf("position changed on duplicate nonce: got %v", state.CurrentTime)
	}

	// Same target, new nonce: still a new event
	if _, applied = c.ApplySeekRequest(models.SeekRequest{Target: 30, Nonce: "n2"}); !applied {
		t.Fatal("same target under a fresh nonce must apply")
	}
}

func TestSeekRequestStartsPlaybackWhenPaused(t *testing.T) {
	c := loadedController(100)

	state, _ := c.ApplySeekRequest(models.SeekRequest{Target: 10, Nonce: "n1"})
	if !state.IsPlaying {
		t.Fatal("seek request while paused must start playback")
	}

	// Already playing: stays playing
	state, _ = c.ApplySeekRequest(models.SeekRequest{Target: 20, Nonce: "n2"})
	if !state.IsPlaying {
		t.Fatal("seek request while playing must leave it playing")
	}
}

func TestTimeAdvanceOnlyMovesClock(t *testing.T) {
	c := loadedController(100)
	c.TogglePlay()

	state := c.OnTimeAdvance(12.5)
	if state.CurrentTime != 12.5 {
		t.Errorf("got %v, want 12.5", state.CurrentTime)
	}
	if !state.IsPlaying {
		t.Error("time advance must not touch the play state")
	}
}

func TestAutoplayBlockedKeepsIntent(t *testing.T) {
	c := loadedController(100)
	c.TogglePlay()

	state := c.ReportAutoplayBlocked()
	if !state.IsPlaying {
		t.Fatal("blocked autoplay keeps the intended playing state")
	}
}

func TestResetClearsStateAndNonce(t *testing.T) {
	c := loadedController(100)
	c.ApplySeekRequest(models.SeekRequest{Target: 10, Nonce: "n1"})

	c.Reset()
	state := c.State()
	if state.Loaded || state.IsPlaying || state.CurrentTime != 0 || state.Duration != 0 {
		t.Fatalf("reset left state %+v", state)
	}

	// The applied-nonce memory must reset too
	c.OnMetadataReady(100)
	if _, applied := c.ApplySeekRequest(models.SeekRequest{Target: 10, Nonce: "n1"}); !applied {
		t.Fatal("nonce from before reset should apply again")
	}
}
