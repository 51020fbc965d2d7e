package playback

import (
	"github.com/samber/mo"
)

// LayoutMode is the externally selected screen mode.
type LayoutMode string

const (
	LayoutAuto       LayoutMode = "auto"
	LayoutFullscreen LayoutMode = "fullscreen"
	LayoutLBar       LayoutMode = "l-bar"
)

// Valid reports whether m is one of the known modes.
func (m LayoutMode) Valid() bool {
	switch m {
	case LayoutAuto, LayoutFullscreen, LayoutLBar:
		return true
	}
	return false
}

// Next cycles auto → fullscreen → l-bar → auto.
func (m LayoutMode) Next() LayoutMode {
	switch m {
	case LayoutAuto:
		return LayoutFullscreen
	case LayoutFullscreen:
		return LayoutLBar
	default:
		return LayoutAuto
	}
}

// Phase is the coarse lifecycle of the machine.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePlaying Phase = "playing"
	PhasePaused  Phase = "paused"
)

// State is the playback record owned by the Player.
type State struct {
	IsPlaying    bool
	CurrentIndex int
	CurrentID    mo.Option[string]
	IsMuted      bool
	IsShuffle    bool
	ShowTicker   bool
	Volume       int
	LayoutMode   LayoutMode
}

// Request is one entry of the request queue.
type Request struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Source tells why the current item was selected.
type Source string

const (
	SourceRequest    Source = "request"
	SourceShuffle    Source = "shuffle"
	SourceSequential Source = "sequential"
	SourceJump       Source = "jump"
	SourceReload     Source = "reload"
)

// Change summarizes what a transition touched so the caller knows which
// broadcasts and side effects to emit.
type Change struct {
	State  bool
	Queue  bool
	Reload bool
	// Advanced is set when the current item changed.
	Advanced bool
	Source   Source
	// Dropped holds request ids consumed without being found.
	Dropped []string
}

// Merge combines two changes; the later advance wins.
func (c Change) Merge(o Change) Change {
	c.State = c.State || o.State
	c.Queue = c.Queue || o.Queue
	c.Reload = c.Reload || o.Reload
	if o.Advanced {
		c.Advanced = true
		c.Source = o.Source
	}
	c.Dropped = append(c.Dropped, o.Dropped...)
	return c
}
