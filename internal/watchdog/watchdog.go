// Package watchdog estimates whether the Player is alive from presence and
// broadcast traffic. It never round-trips; a missed heartbeat window is the
// only signal.
package watchdog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"tvcontrol/internal/protocol"
)

// Watchdog is safe for concurrent use: the tick loop and the frame handler
// run on different goroutines.
type Watchdog struct {
	clock     clock.Clock
	threshold time.Duration
	tick      time.Duration

	mu       sync.Mutex
	last     time.Time
	active   bool
	onChange func(active bool)
}

func New(clk clock.Clock, threshold, tick time.Duration) *Watchdog {
	return &Watchdog{clock: clk, threshold: threshold, tick: tick}
}

// OnChange registers a callback for active/inactive transitions.
func (w *Watchdog) OnChange(fn func(active bool)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// Beat records proof of life at the current time.
func (w *Watchdog) Beat() {
	w.mu.Lock()
	w.last = w.clock.Now()
	changed := !w.active
	w.active = true
	fn := w.onChange
	w.mu.Unlock()
	if changed && fn != nil {
		fn(true)
	}
}

// Observe beats when env proves the Player is alive: a join or sync that
// includes the player role, or any status/queue broadcast.
func (w *Watchdog) Observe(env protocol.InboundEnvelope) bool {
	if !IsHeartbeat(env) {
		return false
	}
	w.Beat()
	return true
}

// Check flips the flag to inactive once the last heartbeat is older than
// the threshold and returns the current estimate.
func (w *Watchdog) Check() bool {
	w.mu.Lock()
	stale := w.active && w.clock.Now().Sub(w.last) > w.threshold
	if stale {
		w.active = false
	}
	active := w.active
	fn := w.onChange
	w.mu.Unlock()
	if stale && fn != nil {
		fn(false)
	}
	return active
}

// Active reports the estimate as of now, without waiting for the next tick.
// Only Check reports transitions to OnChange.
func (w *Watchdog) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active && w.clock.Now().Sub(w.last) <= w.threshold
}

func (w *Watchdog) LastHeartbeat() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Run checks on every tick until ctx is done.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := w.clock.Ticker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// IsHeartbeat reports whether env counts as Player liveness.
func IsHeartbeat(env protocol.InboundEnvelope) bool {
	switch env.Type {
	case protocol.TypeBroadcast:
		return env.Event == protocol.EventStatusUpdate || env.Event == protocol.EventQueueUpdate
	case protocol.TypePresence:
		switch env.Event {
		case protocol.EventPresenceJoin:
			var diff protocol.PresenceDiffPayload
			if err := json.Unmarshal(env.Payload, &diff); err != nil {
				return false
			}
			return diff.Key == string(protocol.RolePlayer)
		case protocol.EventPresenceSync:
			var sync protocol.PresenceSyncPayload
			if err := json.Unmarshal(env.Payload, &sync); err != nil {
				return false
			}
			return len(sync.Presences[string(protocol.RolePlayer)]) > 0
		}
	}
	return false
}
