package remote

import (
	"context"

	"github.com/benbjohnson/clock"

	"tvcontrol/internal/config"
	"tvcontrol/internal/protocol"
)

// Remote is the remote-control client. It mirrors the full status and sends
// control commands.
type Remote struct {
	*projection
}

func NewRemote(ch Channel, clk clock.Clock, cfg config.Engine) *Remote {
	return &Remote{projection: newProjection(protocol.RoleRemote, ch, clk, cfg, protocol.GetStatus{})}
}

// Status returns the last status_update, if one arrived.
func (r *Remote) Status() (protocol.Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status.Get()
}

// Send publishes cmd after validating it. Commands are refused while the
// Player is considered inactive.
func (r *Remote) Send(cmd protocol.CommandPayload) error {
	if err := r.check(cmd); err != nil {
		return err
	}
	return r.ch.Publish(protocol.ControlCommand{Command: cmd})
}

// SendAck is Send for one-shot callers that exit right after sending: it
// returns once the hub relayed the command.
func (r *Remote) SendAck(ctx context.Context, cmd protocol.CommandPayload) error {
	if err := r.check(cmd); err != nil {
		return err
	}
	return r.deliver(ctx, protocol.ControlCommand{Command: cmd})
}

func (r *Remote) check(cmd protocol.CommandPayload) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if !r.PlayerActive() {
		return ErrPlayerInactive
	}
	return nil
}

// RequestVideo appends id to the Player's request queue.
func (r *Remote) RequestVideo(id, title string) error {
	if !r.PlayerActive() {
		return ErrPlayerInactive
	}
	return r.ch.Publish(protocol.RequestVideo{ID: id, Title: title})
}

func (r *Remote) Play() error  { return r.action(protocol.ActionPlay) }
func (r *Remote) Pause() error { return r.action(protocol.ActionPause) }
func (r *Remote) Next() error  { return r.action(protocol.ActionNext) }
func (r *Remote) Prev() error  { return r.action(protocol.ActionPrev) }

func (r *Remote) ToggleMute() error    { return r.action(protocol.ActionToggleMute) }
func (r *Remote) ToggleTicker() error  { return r.action(protocol.ActionToggleTicker) }
func (r *Remote) ToggleShuffle() error { return r.action(protocol.ActionToggleShuffle) }
func (r *Remote) ToggleLayout() error  { return r.action(protocol.ActionToggleLayout) }
func (r *Remote) ClearQueue() error    { return r.action(protocol.ActionClearQueue) }
func (r *Remote) Reload() error        { return r.action(protocol.ActionReload) }

func (r *Remote) SetVolume(volume int) error {
	return r.Send(protocol.CommandPayload{Action: protocol.ActionSetVolume, Volume: &volume})
}

func (r *Remote) JumpTo(id string) error {
	return r.Send(protocol.CommandPayload{Action: protocol.ActionJumpTo, ID: id})
}

func (r *Remote) RemoveFromQueue(index int) error {
	return r.Send(protocol.CommandPayload{Action: protocol.ActionRemoveFromQueue, Index: &index})
}

func (r *Remote) action(a protocol.Action) error {
	return r.Send(protocol.CommandPayload{Action: a})
}
