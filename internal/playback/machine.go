// Package playback implements the Player's state machine: which content item
// is on screen, the request queue and the shuffle order.
package playback

import (
	"github.com/samber/lo"
	"github.com/samber/mo"

	"tvcontrol/internal/media"
	"tvcontrol/internal/shuffle"
)

// Machine is not safe for concurrent use; the Player loop is its only caller.
type Machine struct {
	items          []media.ContentItem
	state          State
	requests       []Request
	order          *shuffle.Queue
	rng            shuffle.Rand
	requestSourced bool
}

func New(rng shuffle.Rand) *Machine {
	return &Machine{
		state: State{
			CurrentID:  mo.None[string](),
			ShowTicker: true,
			Volume:     100,
			LayoutMode: LayoutAuto,
		},
		order: shuffle.NewQueue(rng),
		rng:   rng,
	}
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) Phase() Phase {
	switch {
	case len(m.items) == 0:
		return PhaseIdle
	case m.state.IsPlaying:
		return PhasePlaying
	default:
		return PhasePaused
	}
}

func (m *Machine) Items() []media.ContentItem {
	return m.items
}

// Current returns the item on screen.
func (m *Machine) Current() (media.ContentItem, bool) {
	if len(m.items) == 0 {
		return media.ContentItem{}, false
	}
	return m.items[m.state.CurrentIndex], true
}

// Queue returns a copy of the request queue.
func (m *Machine) Queue() []Request {
	return append([]Request{}, m.requests...)
}

// RequestSourced reports whether the current item came from the request queue.
func (m *Machine) RequestSourced() bool {
	return m.requestSourced
}

// Replace swaps in a new content list. The playing item keeps playing at its
// new index when it survives; otherwise playback restarts at 0, or at a
// random index in shuffle mode. Either way a paused player resumes.
func (m *Machine) Replace(items []media.ContentItem) Change {
	if len(items) > 0 && media.SameIDs(media.IDs(m.items), media.IDs(items)) {
		m.items = append([]media.ContentItem(nil), items...)
		return Change{}
	}

	prevID, hadCurrent := m.state.CurrentID.Get()
	m.items = append([]media.ContentItem(nil), items...)
	m.order.Reset(len(items))

	if len(items) == 0 {
		if !hadCurrent && !m.state.IsPlaying {
			return Change{}
		}
		m.state.CurrentIndex = 0
		m.state.CurrentID = mo.None[string]()
		m.state.IsPlaying = false
		m.requestSourced = false
		return Change{State: true, Advanced: hadCurrent, Source: SourceReload}
	}

	if hadCurrent {
		if idx := media.IndexOf(items, prevID); idx >= 0 {
			m.state.CurrentIndex = idx
			m.state.IsPlaying = true
			return Change{State: true}
		}
	}

	idx := 0
	if m.state.IsShuffle {
		idx = m.rng.Intn(len(items))
	}
	return m.selectIndex(idx, SourceReload)
}

// Complete advances after the current item finished: request queue first,
// then shuffle order, then round-robin.
func (m *Machine) Complete() Change {
	if len(m.items) == 0 {
		return Change{}
	}

	var change Change
	if len(m.requests) > 0 {
		req := m.requests[0]
		m.requests = append([]Request{}, m.requests[1:]...)
		change.Queue = true
		if idx := media.IndexOf(m.items, req.ID); idx >= 0 {
			return change.Merge(m.selectIndex(idx, SourceRequest))
		}
		change.Dropped = append(change.Dropped, req.ID)
	}

	if m.state.IsShuffle {
		return change.Merge(m.selectIndex(m.order.Next(m.state.CurrentIndex), SourceShuffle))
	}
	next := (m.state.CurrentIndex + 1) % len(m.items)
	return change.Merge(m.selectIndex(next, SourceSequential))
}

// Next is the NEXT command; it follows the completion path.
func (m *Machine) Next() Change {
	return m.Complete()
}

// Prev steps back round-robin without touching the request queue.
func (m *Machine) Prev() Change {
	if len(m.items) == 0 {
		return Change{}
	}
	n := len(m.items)
	return m.selectIndex((m.state.CurrentIndex-1+n)%n, SourceJump)
}

// JumpTo selects the item with id. Unknown ids leave the state untouched.
func (m *Machine) JumpTo(id string) (Change, bool) {
	idx := media.IndexOf(m.items, id)
	if idx < 0 {
		return Change{}, false
	}
	return m.selectIndex(idx, SourceJump), true
}

func (m *Machine) Play() Change {
	if len(m.items) == 0 || m.state.IsPlaying {
		return Change{}
	}
	m.state.IsPlaying = true
	return Change{State: true}
}

func (m *Machine) Pause() Change {
	if !m.state.IsPlaying {
		return Change{}
	}
	m.state.IsPlaying = false
	return Change{State: true}
}

func (m *Machine) ToggleMute() Change {
	m.state.IsMuted = !m.state.IsMuted
	return Change{State: true}
}

// SetMuted forces the mute flag, used by the autoplay fallback.
func (m *Machine) SetMuted(muted bool) Change {
	if m.state.IsMuted == muted {
		return Change{}
	}
	m.state.IsMuted = muted
	return Change{State: true}
}

func (m *Machine) SetVolume(volume int) Change {
	volume = lo.Clamp(volume, 0, 100)
	if m.state.Volume == volume {
		return Change{}
	}
	m.state.Volume = volume
	return Change{State: true}
}

func (m *Machine) ToggleTicker() Change {
	m.state.ShowTicker = !m.state.ShowTicker
	return Change{State: true}
}

func (m *Machine) ToggleShuffle() Change {
	return m.SetShuffle(!m.state.IsShuffle)
}

// SetShuffle switches shuffle mode. Enabling it starts a fresh order.
func (m *Machine) SetShuffle(on bool) Change {
	if m.state.IsShuffle == on {
		return Change{}
	}
	m.state.IsShuffle = on
	m.order.Reset(len(m.items))
	return Change{State: true}
}

func (m *Machine) ToggleLayout() Change {
	return m.SetLayout(m.state.LayoutMode.Next())
}

func (m *Machine) SetLayout(mode LayoutMode) Change {
	if !mode.Valid() || m.state.LayoutMode == mode {
		return Change{}
	}
	m.state.LayoutMode = mode
	return Change{State: true}
}

// Request appends id to the request queue unless it is already queued.
func (m *Machine) Request(id, title string) (Change, bool) {
	if id == "" || lo.ContainsBy(m.requests, func(r Request) bool { return r.ID == id }) {
		return Change{}, false
	}
	m.requests = append(m.requests, Request{ID: id, Title: title})
	return Change{Queue: true}, true
}

// RemoveFromQueue deletes the entry at index; out of range is a no-op.
func (m *Machine) RemoveFromQueue(index int) Change {
	if index < 0 || index >= len(m.requests) {
		return Change{}
	}
	next := make([]Request, 0, len(m.requests)-1)
	next = append(next, m.requests[:index]...)
	m.requests = append(next, m.requests[index+1:]...)
	return Change{Queue: true}
}

func (m *Machine) ClearQueue() Change {
	if len(m.requests) == 0 {
		return Change{}
	}
	m.requests = nil
	return Change{Queue: true}
}

// Reload asks the caller to refresh the content list.
func (m *Machine) Reload() Change {
	return Change{Reload: true}
}

func (m *Machine) selectIndex(idx int, source Source) Change {
	m.state.CurrentIndex = idx
	m.state.CurrentID = mo.Some(m.items[idx].ID)
	m.state.IsPlaying = true
	m.requestSourced = source == SourceRequest
	return Change{State: true, Advanced: true, Source: source}
}
