// Package protocol defines the control channel wire format and validates
// inbound frames into typed messages.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrMalformed    = errors.New("malformed payload")
)

// Action is a control_command verb.
type Action string

const (
	ActionPlay            Action = "PLAY"
	ActionPause           Action = "PAUSE"
	ActionNext            Action = "NEXT"
	ActionPrev            Action = "PREV"
	ActionToggleMute      Action = "TOGGLE_MUTE"
	ActionSetVolume       Action = "SET_VOLUME"
	ActionJumpTo          Action = "JUMP_TO"
	ActionRemoveFromQueue Action = "REMOVE_FROM_QUEUE"
	ActionClearQueue      Action = "CLEAR_QUEUE"
	ActionReload          Action = "RELOAD"
	ActionToggleTicker    Action = "TOGGLE_TICKER"
	ActionToggleShuffle   Action = "TOGGLE_SHUFFLE"
	ActionToggleLayout    Action = "TOGGLE_LAYOUT"
)

// Actions lists every known action.
var Actions = []Action{
	ActionPlay, ActionPause, ActionNext, ActionPrev, ActionToggleMute,
	ActionSetVolume, ActionJumpTo, ActionRemoveFromQueue, ActionClearQueue,
	ActionReload, ActionToggleTicker, ActionToggleShuffle, ActionToggleLayout,
}

// Message is a validated broadcast.
type Message interface {
	Event() string
}

type GetStatus struct{}

type GetQueueStatus struct{}

type StatusUpdate struct {
	Status Status
}

type QueueUpdate struct {
	Queue []QueueEntry
}

type ControlCommand struct {
	Command CommandPayload
}

type RequestVideo struct {
	ID    string
	Title string
}

func (GetStatus) Event() string      { return EventGetStatus }
func (GetQueueStatus) Event() string { return EventGetQueueStatus }
func (StatusUpdate) Event() string   { return EventStatusUpdate }
func (QueueUpdate) Event() string    { return EventQueueUpdate }
func (ControlCommand) Event() string { return EventControlCommand }
func (RequestVideo) Event() string   { return EventRequestVideo }

// Decode validates a broadcast frame. Frames of another type, unknown events
// and payloads that do not fit their event return an error wrapping
// ErrUnknownEvent or ErrMalformed.
func Decode(env InboundEnvelope) (Message, error) {
	if env.Type != TypeBroadcast {
		return nil, fmt.Errorf("%w: frame type %q", ErrUnknownEvent, env.Type)
	}
	switch env.Event {
	case EventGetStatus:
		return GetStatus{}, nil
	case EventGetQueueStatus:
		return GetQueueStatus{}, nil
	case EventStatusUpdate:
		var status Status
		if err := unmarshal(env.Payload, &status); err != nil {
			return nil, err
		}
		if status.CurrentIndex < 0 {
			return nil, fmt.Errorf("%w: negative currentIndex", ErrMalformed)
		}
		return StatusUpdate{Status: status}, nil
	case EventQueueUpdate:
		var payload QueuePayload
		if err := unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return QueueUpdate{Queue: payload.Queue}, nil
	case EventControlCommand:
		var cmd CommandPayload
		if err := unmarshal(env.Payload, &cmd); err != nil {
			return nil, err
		}
		if err := cmd.Validate(); err != nil {
			return nil, err
		}
		return ControlCommand{Command: cmd}, nil
	case EventRequestVideo:
		var req VideoRequestPayload
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		if req.ID == "" {
			return nil, fmt.Errorf("%w: request_video without id", ErrMalformed)
		}
		return RequestVideo{ID: req.ID, Title: req.Title}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// Validate checks the action and its required parameter.
func (c CommandPayload) Validate() error {
	switch c.Action {
	case ActionSetVolume:
		if c.Volume == nil {
			return fmt.Errorf("%w: %s requires volume", ErrMalformed, c.Action)
		}
	case ActionJumpTo:
		if c.ID == "" {
			return fmt.Errorf("%w: %s requires id", ErrMalformed, c.Action)
		}
	case ActionRemoveFromQueue:
		if c.Index == nil {
			return fmt.Errorf("%w: %s requires index", ErrMalformed, c.Action)
		}
	case ActionPlay, ActionPause, ActionNext, ActionPrev, ActionToggleMute,
		ActionClearQueue, ActionReload, ActionToggleTicker, ActionToggleShuffle, ActionToggleLayout:
	default:
		return fmt.Errorf("%w: action %q", ErrUnknownEvent, c.Action)
	}
	return nil
}

// Encode builds the outbound broadcast frame for m.
func Encode(m Message) Envelope {
	env := Envelope{Type: TypeBroadcast, Event: m.Event()}
	switch msg := m.(type) {
	case StatusUpdate:
		status := msg.Status
		status.Queue = nonNil(status.Queue)
		env.Payload = status
	case QueueUpdate:
		env.Payload = QueuePayload{Queue: nonNil(msg.Queue)}
	case ControlCommand:
		env.Payload = msg.Command
	case RequestVideo:
		env.Payload = VideoRequestPayload{ID: msg.ID, Title: msg.Title}
	default:
		env.Payload = struct{}{}
	}
	return env
}

func unmarshal(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func nonNil(q []QueueEntry) []QueueEntry {
	if q == nil {
		return []QueueEntry{}
	}
	return q
}
