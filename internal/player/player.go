// Package player runs the Player process: one goroutine owns the playback
// machine and the ad cycle, and every input (channel frames, content
// snapshots, surface callbacks and timers) is handled as an event on it.
package player

import (
	"context"

	"github.com/RanFeng/ilog"
	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"github.com/samber/mo"

	"tvcontrol/internal/adcycle"
	"tvcontrol/internal/channel"
	"tvcontrol/internal/config"
	"tvcontrol/internal/loader"
	"tvcontrol/internal/media"
	"tvcontrol/internal/metrics"
	"tvcontrol/internal/playback"
	"tvcontrol/internal/protocol"
	"tvcontrol/internal/shuffle"
	"tvcontrol/internal/surface"
)

// Channel is the control channel as the Player uses it.
type Channel interface {
	Publish(m protocol.Message) error
	Frames() <-chan protocol.InboundEnvelope
	Statuses() <-chan channel.Status
}

// Feed delivers content snapshots.
type Feed interface {
	Snapshots() <-chan loader.Snapshot
	Refresh()
}

type Telemetry interface {
	Heartbeat(ctx context.Context, currentMedia string)
	Impression(ctx context.Context, ad media.AdItem)
}

type Deps struct {
	Clock     clock.Clock
	Rand      shuffle.Rand
	Channel   Channel
	Feed      Feed
	Surface   surface.Surface
	Telemetry Telemetry
}

type timerKind int

const (
	timerAd timerKind = iota
	timerMediaError
)

type timerEvent struct {
	kind timerKind
	gen  uint64
}

// Player is not safe for concurrent use; Run is its only goroutine.
type Player struct {
	cfg       config.Engine
	clock     clock.Clock
	machine   *playback.Machine
	ads       *adcycle.Controller
	ch        Channel
	feed      Feed
	surface   surface.Surface
	telemetry Telemetry

	timers chan timerEvent

	snapshot    loader.Snapshot
	loaded      bool
	selection   uint64
	soundPrompt bool

	adTimer  *clock.Timer
	adGen    uint64
	errTimer *clock.Timer
	errGen   uint64
}

func New(cfg config.Engine, deps Deps) *Player {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Rand == nil {
		deps.Rand = shuffle.NewRand()
	}
	return &Player{
		cfg:       cfg,
		clock:     deps.Clock,
		machine:   playback.New(deps.Rand),
		ads:       adcycle.New(cfg, deps.Rand),
		ch:        deps.Channel,
		feed:      deps.Feed,
		surface:   deps.Surface,
		telemetry: deps.Telemetry,
		timers:    make(chan timerEvent, 4),
		snapshot: loader.Snapshot{
			Layout: playback.LayoutAuto,
			Ratio:  cfg.ContentRatio,
		},
	}
}

// Run handles events until ctx is done, then stops every timer.
func (p *Player) Run(ctx context.Context) error {
	statusTicker := p.clock.Ticker(p.cfg.StatusInterval)
	defer statusTicker.Stop()
	heartbeat := p.clock.Ticker(p.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	defer p.teardown()

	ilog.EventInfo(ctx, "player_started", "status_interval", p.cfg.StatusInterval.String())
	p.apply(ctx, playback.Change{})

	for {
		select {
		case <-ctx.Done():
			ilog.EventInfo(ctx, "player_stopped")
			return ctx.Err()
		case env := <-p.ch.Frames():
			p.handleFrame(ctx, env)
		case status := <-p.ch.Statuses():
			p.handleStatus(ctx, status)
		case snap := <-p.feed.Snapshots():
			p.applySnapshot(ctx, snap)
		case ev := <-p.surface.Events():
			p.handleSurface(ctx, ev)
		case t := <-p.timers:
			p.handleTimer(ctx, t)
		case <-statusTicker.C:
			p.broadcastStatus(ctx)
		case <-heartbeat.C:
			p.telemetry.Heartbeat(ctx, p.currentID())
		}
	}
}

func (p *Player) handleStatus(ctx context.Context, status channel.Status) {
	ilog.EventInfo(ctx, "player_channel_status", "status", status)
	if status == channel.StatusSubscribed {
		p.broadcastStatus(ctx)
	}
}

func (p *Player) applySnapshot(ctx context.Context, snap loader.Snapshot) {
	first := !p.loaded
	prev := p.snapshot
	p.snapshot = snap
	p.loaded = true

	var change playback.Change
	if first || snap.Shuffle != prev.Shuffle {
		change = change.Merge(p.machine.SetShuffle(snap.Shuffle))
	}
	if first || snap.Layout != prev.Layout {
		change = change.Merge(p.machine.SetLayout(snap.Layout))
	}
	change = change.Merge(p.machine.Replace(snap.Items))
	p.apply(ctx, change)
}

func (p *Player) handleFrame(ctx context.Context, env protocol.InboundEnvelope) {
	switch env.Type {
	case protocol.TypeBroadcast:
	case protocol.TypeSystem:
		if env.Event == protocol.EventError {
			ilog.EventInfo(ctx, "channel_error_frame", "payload", string(env.Payload))
		}
		return
	default:
		return
	}

	msg, err := protocol.Decode(env)
	if err != nil {
		metrics.MalformedMessages.WithLabelValues(string(protocol.RolePlayer)).Inc()
		ilog.EventInfo(ctx, "malformed_message", "event", env.Event, "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.GetStatus:
		p.broadcastStatus(ctx)
	case protocol.GetQueueStatus:
		p.broadcastQueue(ctx)
	case protocol.ControlCommand:
		p.handleCommand(ctx, m.Command)
	case protocol.RequestVideo:
		change, ok := p.machine.Request(m.ID, m.Title)
		ilog.EventInfo(ctx, "video_requested", "id", m.ID, "queued", ok, "queue_len", len(p.machine.Queue()))
		p.apply(ctx, change)
	default:
		// status_update / queue_update from ourselves or a stale player
	}
}

func (p *Player) handleCommand(ctx context.Context, cmd protocol.CommandPayload) {
	ilog.EventInfo(ctx, "control_command", "action", cmd.Action)

	var change playback.Change
	switch cmd.Action {
	case protocol.ActionPlay:
		change = p.machine.Play()
	case protocol.ActionPause:
		change = p.machine.Pause()
	case protocol.ActionNext:
		change = p.machine.Next()
	case protocol.ActionPrev:
		change = p.machine.Prev()
	case protocol.ActionToggleMute:
		change = p.machine.ToggleMute()
		if !p.machine.State().IsMuted {
			p.soundPrompt = false
		}
	case protocol.ActionSetVolume:
		change = p.machine.SetVolume(lo.FromPtr(cmd.Volume))
	case protocol.ActionJumpTo:
		var ok bool
		change, ok = p.machine.JumpTo(cmd.ID)
		if !ok {
			ilog.EventInfo(ctx, "jump_ignored", "id", cmd.ID)
		}
	case protocol.ActionRemoveFromQueue:
		change = p.machine.RemoveFromQueue(lo.FromPtrOr(cmd.Index, -1))
	case protocol.ActionClearQueue:
		change = p.machine.ClearQueue()
	case protocol.ActionReload:
		change = p.machine.Reload()
	case protocol.ActionToggleTicker:
		change = p.machine.ToggleTicker()
	case protocol.ActionToggleShuffle:
		change = p.machine.ToggleShuffle()
	case protocol.ActionToggleLayout:
		change = p.machine.ToggleLayout()
	}
	p.apply(ctx, change)
}

func (p *Player) handleSurface(ctx context.Context, ev surface.Event) {
	cur, ok := p.machine.Current()
	if !ok || cur.ID != ev.ItemID || ev.Selection != p.selection {
		ilog.EventInfo(ctx, "surface_event_stale", "kind", ev.Kind, "id", ev.ItemID)
		return
	}

	switch ev.Kind {
	case surface.EventEnded:
		p.apply(ctx, p.machine.Complete())
	case surface.EventError:
		ilog.EventInfo(ctx, "media_error", "id", ev.ItemID, "retry_in", p.cfg.MediaErrorDelay.String())
		p.armMediaError(ctx)
	case surface.EventAutoplayBlocked:
		ilog.EventInfo(ctx, "autoplay_blocked", "id", ev.ItemID)
		p.soundPrompt = true
		p.apply(ctx, p.machine.SetMuted(true))
	}
}

func (p *Player) handleTimer(ctx context.Context, t timerEvent) {
	switch t.kind {
	case timerAd:
		if t.gen != p.adGen {
			return
		}
		p.adTimer = nil
		p.armAd(ctx, p.ads.Fire())
		p.recordImpression(ctx)
		p.render(ctx)
	case timerMediaError:
		if t.gen != p.errGen {
			return
		}
		p.errTimer = nil
		p.apply(ctx, p.machine.Complete())
	}
}

// apply emits the side effects of a transition, re-syncs the ad cycle and
// renders.
func (p *Player) apply(ctx context.Context, change playback.Change) {
	if change.Reload {
		p.feed.Refresh()
	}
	for _, id := range change.Dropped {
		ilog.EventInfo(ctx, "request_dropped", "id", id)
	}
	if change.Advanced {
		p.selection++
		p.cancelMediaError()
		metrics.Advances.WithLabelValues(string(change.Source)).Inc()
		ilog.EventInfo(ctx, "advance", "id", p.currentID(), "source", change.Source, "request", p.machine.RequestSourced())
	}
	if change.State || change.Queue {
		p.broadcastStatus(ctx)
	}
	if change.Queue {
		p.broadcastQueue(ctx)
	}

	state := p.machine.State()
	if timer, changed := p.ads.Sync(state.LayoutMode, p.snapshot.Ratio, p.snapshot.Ads); changed {
		p.armAd(ctx, timer)
		p.recordImpression(ctx)
	}
	p.render(ctx)
}

func (p *Player) armAd(ctx context.Context, t adcycle.Timer) {
	p.adGen++
	if p.adTimer != nil {
		p.adTimer.Stop()
		p.adTimer = nil
	}
	if !t.Set {
		return
	}
	gen := p.adGen
	p.adTimer = p.clock.AfterFunc(t.Delay, func() {
		p.post(ctx, timerEvent{kind: timerAd, gen: gen})
	})
}

func (p *Player) armMediaError(ctx context.Context) {
	p.cancelMediaError()
	gen := p.errGen
	p.errTimer = p.clock.AfterFunc(p.cfg.MediaErrorDelay, func() {
		p.post(ctx, timerEvent{kind: timerMediaError, gen: gen})
	})
}

func (p *Player) cancelMediaError() {
	p.errGen++
	if p.errTimer != nil {
		p.errTimer.Stop()
		p.errTimer = nil
	}
}

// post runs on the timer goroutine and hands the event to the loop.
func (p *Player) post(ctx context.Context, t timerEvent) {
	select {
	case p.timers <- t:
	case <-ctx.Done():
	}
}

func (p *Player) recordImpression(ctx context.Context) {
	ad, ok := p.ads.CurrentAd()
	if !ok {
		return
	}
	metrics.Impressions.WithLabelValues(string(ad.Layout)).Inc()
	p.telemetry.Impression(ctx, ad)
}

func (p *Player) render(ctx context.Context) {
	p.surface.Render(ctx, p.frame())
}

func (p *Player) frame() surface.Frame {
	st := p.machine.State()
	item := mo.None[media.ContentItem]()
	if cur, ok := p.machine.Current(); ok && st.CurrentID.IsPresent() {
		item = mo.Some(cur)
	}
	return surface.Frame{
		Item:         item,
		Selection:    p.selection,
		Playing:      st.IsPlaying,
		Muted:        st.IsMuted,
		Volume:       st.Volume,
		ShowTicker:   st.ShowTicker,
		Presentation: p.ads.Presentation(),
		Logo:         p.snapshot.Logo,
		News:         p.snapshot.News,
		SoundPrompt:  p.soundPrompt,
	}
}

func (p *Player) broadcastStatus(ctx context.Context) {
	p.publish(ctx, protocol.StatusUpdate{Status: StatusOf(p.machine.State(), p.machine.Queue())})
}

func (p *Player) broadcastQueue(ctx context.Context) {
	p.publish(ctx, protocol.QueueUpdate{Queue: QueueOf(p.machine.Queue())})
}

func (p *Player) publish(ctx context.Context, m protocol.Message) {
	if err := p.ch.Publish(m); err != nil {
		ilog.EventInfo(ctx, "publish_failed", "event", m.Event(), "error", err)
	}
}

func (p *Player) currentID() string {
	return p.machine.State().CurrentID.OrEmpty()
}

func (p *Player) teardown() {
	p.armAd(context.Background(), adcycle.Timer{})
	p.cancelMediaError()
	p.surface.Close()
}
