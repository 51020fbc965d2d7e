// Package surface is the contract between the Player loop and whatever draws
// the screen. Headless is a simulated surface that plays items on a clock.
package surface

import (
	"context"
	"sync"
	"time"

	"github.com/RanFeng/ilog"
	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"github.com/samber/mo"

	"tvcontrol/internal/adcycle"
	"tvcontrol/internal/media"
)

type EventKind string

const (
	EventEnded           EventKind = "ended"
	EventError           EventKind = "error"
	EventAutoplayBlocked EventKind = "autoplay_blocked"
)

// Event is a callback from the surface. Selection identifies which
// selection of ItemID it refers to, so stale callbacks can be ignored.
type Event struct {
	Kind      EventKind
	ItemID    string
	Selection uint64
}

// Frame is everything the surface needs to draw.
type Frame struct {
	Item mo.Option[media.ContentItem]
	// Selection increases every time an item is selected, including when
	// the same item is selected twice in a row.
	Selection    uint64
	Playing      bool
	Muted        bool
	Volume       int
	ShowTicker   bool
	Presentation adcycle.Presentation
	Logo         string
	News         string
	SoundPrompt  bool
}

type Surface interface {
	Render(ctx context.Context, f Frame)
	Events() <-chan Event
	Close()
}

type Options struct {
	Clock clock.Clock
	// Fallback is how long items without a known duration play.
	Fallback time.Duration
	// BlockAutoplay rejects the first unmuted playback, like a browser
	// autoplay policy does.
	BlockAutoplay bool
	// Broken lists item ids that fail to load.
	Broken []string
}

type Headless struct {
	opts   Options
	events chan Event

	mu        sync.Mutex
	itemID    string
	selection uint64
	playing   bool
	remaining time.Duration
	startedAt time.Time
	timer     *clock.Timer
	blocked   bool
	failed    bool
	last      Frame
	renders   int
	closed    bool
}

func NewHeadless(opts Options) *Headless {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Fallback <= 0 {
		opts.Fallback = 30 * time.Second
	}
	return &Headless{opts: opts, events: make(chan Event, 16)}
}

func (h *Headless) Events() <-chan Event {
	return h.events
}

// Render applies f. A new selection restarts playback from the beginning;
// a play/pause flip resumes or freezes the remaining time.
func (h *Headless) Render(ctx context.Context, f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last = f
	h.renders++

	item, ok := f.Item.Get()
	if !ok {
		h.stop()
		h.itemID = ""
		return
	}

	if item.ID != h.itemID || f.Selection != h.selection {
		h.stop()
		h.itemID = item.ID
		h.selection = f.Selection
		h.remaining = item.Dwell(h.opts.Fallback)
		h.failed = false
		ilog.EventInfo(ctx, "surface_item", "id", item.ID, "type", item.Type, "template", f.Presentation.Template, "selection", f.Selection)
	}

	if !f.Playing {
		h.pause()
		return
	}
	if h.playing {
		return
	}
	if lo.Contains(h.opts.Broken, item.ID) {
		if !h.failed {
			h.failed = true
			h.emit(ctx, Event{Kind: EventError, ItemID: item.ID, Selection: f.Selection})
		}
		return
	}
	if h.opts.BlockAutoplay && !h.blocked && !f.Muted {
		h.blocked = true
		h.emit(ctx, Event{Kind: EventAutoplayBlocked, ItemID: item.ID, Selection: f.Selection})
		return
	}

	h.playing = true
	h.startedAt = h.opts.Clock.Now()
	id, selection := item.ID, f.Selection
	h.timer = h.opts.Clock.AfterFunc(h.remaining, func() {
		h.ended(ctx, id, selection)
	})
}

// Last returns the most recent frame and how many frames were rendered.
func (h *Headless) Last() (Frame, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.renders
}

func (h *Headless) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stop()
	h.closed = true
}

func (h *Headless) ended(ctx context.Context, id string, selection uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || !h.playing || id != h.itemID || selection != h.selection {
		return
	}
	h.playing = false
	h.remaining = 0
	h.timer = nil
	h.emit(ctx, Event{Kind: EventEnded, ItemID: id, Selection: selection})
}

func (h *Headless) pause() {
	if !h.playing {
		return
	}
	h.remaining -= h.opts.Clock.Now().Sub(h.startedAt)
	if h.remaining < 0 {
		h.remaining = 0
	}
	h.stop()
}

func (h *Headless) stop() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.playing = false
}

func (h *Headless) emit(ctx context.Context, ev Event) {
	select {
	case h.events <- ev:
	default:
		ilog.EventInfo(ctx, "surface_event_dropped", "kind", ev.Kind, "id", ev.ItemID)
	}
}
