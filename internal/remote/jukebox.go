package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RanFeng/ilog"
	"github.com/benbjohnson/clock"
	"github.com/samber/lo"

	"tvcontrol/internal/config"
	"tvcontrol/internal/protocol"
)

var (
	ErrCooldown      = errors.New("requested too recently")
	ErrAlreadyQueued = errors.New("already queued")
)

// Analytics records jukebox requests. It is best-effort; the broadcast is
// what actually queues the item.
type Analytics interface {
	JukeboxRequest(ctx context.Context, id, title string) error
}

// Jukebox is the public request client. It only mirrors the request queue.
type Jukebox struct {
	*projection
	clock     clock.Clock
	cooldown  time.Duration
	timeout   time.Duration
	analytics Analytics

	reqMu     sync.Mutex
	requested map[string]time.Time
	wg        sync.WaitGroup
}

func NewJukebox(ch Channel, clk clock.Clock, cfg config.Engine, analytics Analytics) *Jukebox {
	return &Jukebox{
		projection: newProjection(protocol.RoleJukebox, ch, clk, cfg, protocol.GetQueueStatus{}),
		clock:      clk,
		cooldown:   cfg.JukeboxCooldown,
		timeout:    cfg.RequestTimeout,
		analytics:  analytics,
		requested:  make(map[string]time.Time),
	}
}

// Queued reports whether id is in the cached request queue.
func (j *Jukebox) Queued(id string) bool {
	return lo.ContainsBy(j.Queue(), func(e protocol.QueueEntry) bool { return e.ID == id })
}

// CooldownRemaining is how long until id may be requested again from this
// client.
func (j *Jukebox) CooldownRemaining(id string) time.Duration {
	j.reqMu.Lock()
	defer j.reqMu.Unlock()
	at, ok := j.requested[id]
	if !ok {
		return 0
	}
	left := j.cooldown - j.clock.Now().Sub(at)
	if left <= 0 {
		delete(j.requested, id)
		return 0
	}
	return left
}

// RequestVideo broadcasts a request for id and starts its cooldown. On an
// acking channel it waits for the hub to relay the request first.
func (j *Jukebox) RequestVideo(ctx context.Context, id, title string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", protocol.ErrMalformed)
	}
	if !j.PlayerActive() {
		return ErrPlayerInactive
	}
	if left := j.CooldownRemaining(id); left > 0 {
		return fmt.Errorf("%w: retry in %s", ErrCooldown, left.Round(time.Second))
	}
	if j.Queued(id) {
		return ErrAlreadyQueued
	}
	if err := j.deliver(ctx, protocol.RequestVideo{ID: id, Title: title}); err != nil {
		return err
	}

	j.reqMu.Lock()
	j.requested[id] = j.clock.Now()
	j.reqMu.Unlock()

	if j.analytics != nil {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.timeout)
			defer cancel()
			if err := j.analytics.JukeboxRequest(callCtx, id, title); err != nil {
				ilog.EventInfo(ctx, "jukebox_analytics_failed", "id", id, "error", err)
			}
		}()
	}
	return nil
}

// Wait blocks until pending analytics calls finished.
func (j *Jukebox) Wait() {
	j.wg.Wait()
}
