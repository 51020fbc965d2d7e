// Package remote holds the read-only projections the Remote and Jukebox
// clients keep of the Player's state, and the commands they may send.
package remote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RanFeng/ilog"
	"github.com/benbjohnson/clock"
	"github.com/samber/mo"

	"tvcontrol/internal/channel"
	"tvcontrol/internal/config"
	"tvcontrol/internal/metrics"
	"tvcontrol/internal/protocol"
	"tvcontrol/internal/watchdog"
)

var (
	ErrPlayerInactive = errors.New("player inactive")
)

type Channel interface {
	Publish(m protocol.Message) error
	Frames() <-chan protocol.InboundEnvelope
	Statuses() <-chan channel.Status
}

// AckChannel is a Channel that can wait for the hub to confirm it relayed a
// frame.
type AckChannel interface {
	PublishAck(ctx context.Context, m protocol.Message) error
}

// projection is a cache refreshed by full-replace broadcasts. It is never
// authoritative.
type projection struct {
	role     protocol.Role
	ch       Channel
	timeout  time.Duration
	watchdog *watchdog.Watchdog
	// greeting is sent once per transition to SUBSCRIBED.
	greeting protocol.Message

	mu         sync.RWMutex
	status     mo.Option[protocol.Status]
	queue      []protocol.QueueEntry
	subscribed bool
	updates    chan struct{}
}

func newProjection(role protocol.Role, ch Channel, clk clock.Clock, cfg config.Engine, greeting protocol.Message) *projection {
	p := &projection{
		role:     role,
		ch:       ch,
		timeout:  cfg.RequestTimeout,
		watchdog: watchdog.New(clk, cfg.WatchdogThreshold, cfg.WatchdogTick),
		greeting: greeting,
		updates:  make(chan struct{}, 1),
	}
	p.watchdog.OnChange(func(bool) { p.notify() })
	return p
}

// Run consumes the channel until ctx is done.
func (p *projection) Run(ctx context.Context) error {
	go p.watchdog.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-p.ch.Frames():
			p.handleFrame(ctx, env)
		case status := <-p.ch.Statuses():
			p.handleStatus(ctx, status)
		}
	}
}

// deliver publishes m and, when the channel supports acks, waits until the
// hub relayed it or the request timeout passed.
func (p *projection) deliver(ctx context.Context, m protocol.Message) error {
	acker, ok := p.ch.(AckChannel)
	if !ok {
		return p.ch.Publish(m)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return acker.PublishAck(ctx, m)
}

// Updates signals after every cache or liveness change.
func (p *projection) Updates() <-chan struct{} {
	return p.updates
}

func (p *projection) PlayerActive() bool {
	return p.watchdog.Active()
}

func (p *projection) Watchdog() *watchdog.Watchdog {
	return p.watchdog
}

func (p *projection) Subscribed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.subscribed
}

// Queue returns the last broadcast request queue.
func (p *projection) Queue() []protocol.QueueEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]protocol.QueueEntry{}, p.queue...)
}

func (p *projection) handleStatus(ctx context.Context, status channel.Status) {
	p.mu.Lock()
	greet := status == channel.StatusSubscribed && !p.subscribed
	p.subscribed = status == channel.StatusSubscribed
	p.mu.Unlock()

	ilog.EventInfo(ctx, "projection_channel_status", "role", p.role, "status", status)
	if !greet {
		return
	}
	if err := p.ch.Publish(p.greeting); err != nil {
		ilog.EventInfo(ctx, "projection_greeting_failed", "role", p.role, "event", p.greeting.Event(), "error", err)
	}
}

func (p *projection) handleFrame(ctx context.Context, env protocol.InboundEnvelope) {
	p.watchdog.Observe(env)
	if env.Type != protocol.TypeBroadcast {
		return
	}

	msg, err := protocol.Decode(env)
	if err != nil {
		metrics.MalformedMessages.WithLabelValues(string(p.role)).Inc()
		ilog.EventInfo(ctx, "malformed_message", "role", p.role, "event", env.Event, "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.StatusUpdate:
		p.mu.Lock()
		p.status = mo.Some(m.Status)
		p.queue = append([]protocol.QueueEntry{}, m.Status.Queue...)
		p.mu.Unlock()
		p.notify()
	case protocol.QueueUpdate:
		p.mu.Lock()
		p.queue = append([]protocol.QueueEntry{}, m.Queue...)
		p.mu.Unlock()
		p.notify()
	}
}

func (p *projection) notify() {
	select {
	case p.updates <- struct{}{}:
	default:
	}
}
