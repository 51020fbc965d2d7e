package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/RanFeng/ilog"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"tvcontrol/internal/metrics"
	"tvcontrol/internal/protocol"
)

// TextMessage matches the websocket text frame opcode of both transports.
const TextMessage = 1

var (
	ErrParticipantClosed = errors.New("participant closed")
)

// Conn is the write side of a websocket connection. gorilla and
// hertz-contrib connections both satisfy it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Room is one channel topic and its present members.
type Room struct {
	id           string
	createdAt    time.Time
	participants map[string]*Participant
	mu           sync.RWMutex
}

type Participant struct {
	ID          string
	Role        protocol.Role
	connectedAt time.Time

	mu     sync.Mutex
	conn   Conn
	send   chan []byte
	closed bool
	room   *Room
}

func NewRoom(topic string, now time.Time) *Room {
	return &Room{
		id:           topic,
		createdAt:    now,
		participants: make(map[string]*Participant),
	}
}

// AttachParticipant registers a new member under role. It is not visible in
// presence until Announce.
func (r *Room) AttachParticipant(role protocol.Role, now time.Time) *Participant {
	p := &Participant{
		ID:          uuid.NewString(),
		Role:        role,
		connectedAt: now,
		send:        make(chan []byte, 32),
		room:        r,
	}
	r.mu.Lock()
	r.participants[p.ID] = p
	r.mu.Unlock()
	metrics.Members.WithLabelValues(string(role)).Inc()
	return p
}

// Announce confirms the subscription to p, hands it the full presence state
// and tells everyone else that p joined.
func (r *Room) Announce(p *Participant) {
	p.Send(protocol.Envelope{
		Type:    protocol.TypeSystem,
		Event:   protocol.EventSubscribed,
		Payload: protocol.SubscribedPayload{Topic: r.id, MemberID: p.ID},
	})
	p.Send(protocol.Envelope{
		Type:    protocol.TypePresence,
		Event:   protocol.EventPresenceSync,
		Payload: protocol.PresenceSyncPayload{Presences: r.PresenceState()},
	})
	r.Broadcast(protocol.Envelope{
		Type:  protocol.TypePresence,
		Event: protocol.EventPresenceJoin,
		Payload: protocol.PresenceDiffPayload{
			Key:       string(p.Role),
			Presences: []protocol.PresenceMeta{p.meta()},
		},
	}, p.ID)
}

// PresenceState groups present members by role.
func (r *Room) PresenceState() protocol.PresenceState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := protocol.PresenceState{}
	for _, p := range r.participants {
		state[string(p.Role)] = append(state[string(p.Role)], p.meta())
	}
	return state
}

// Broadcast fans env out to every member except exceptID. Slow members miss
// the frame rather than stalling the room.
func (r *Room) Broadcast(env protocol.Envelope, exceptID string) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, participant := range r.participants {
		if id == exceptID {
			continue
		}
		participant.sendRaw(data)
	}
}

// HandleFrame processes one frame read from p's connection.
func (r *Room) HandleFrame(ctx context.Context, p *Participant, data []byte) {
	var inbound protocol.InboundEnvelope
	if err := json.Unmarshal(data, &inbound); err != nil {
		ilog.EventInfo(ctx, "frame_unreadable", "topic", r.id, "member", p.ID, "error", err)
		return
	}

	switch inbound.Type {
	case protocol.TypeBroadcast:
		if inbound.Event == "" {
			p.sendError("invalid_frame", "broadcast without event")
			return
		}
		metrics.Broadcasts.WithLabelValues(inbound.Event).Inc()
		r.Broadcast(protocol.Envelope{
			Type:    protocol.TypeBroadcast,
			Event:   inbound.Event,
			Payload: inbound.Payload,
		}, p.ID)
		if inbound.Ack {
			p.Send(protocol.Envelope{
				Type:  protocol.TypeSystem,
				Event: protocol.EventAck,
				Ref:   inbound.Ref,
			})
		}
	default:
		p.sendError("unknown_type", "unsupported frame type")
	}
}

// DetachParticipant removes p and announces the leave.
func (r *Room) DetachParticipant(participantID string) {
	r.mu.Lock()
	participant, ok := r.participants[participantID]
	if ok {
		delete(r.participants, participantID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	participant.shutdown()
	metrics.Members.WithLabelValues(string(participant.Role)).Dec()
	r.Broadcast(protocol.Envelope{
		Type:  protocol.TypePresence,
		Event: protocol.EventPresenceLeave,
		Payload: protocol.PresenceDiffPayload{
			Key:       string(participant.Role),
			Presences: []protocol.PresenceMeta{participant.meta()},
		},
	}, "")
}

func (r *Room) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// Roles lists the distinct roles currently present.
func (r *Room) Roles() []protocol.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Uniq(lo.MapToSlice(r.participants, func(_ string, p *Participant) protocol.Role {
		return p.Role
	}))
}

func (r *Room) ID() string {
	return r.id
}

func (p *Participant) BindConnection(conn Conn) {
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
}

// SendLoop writes queued frames until the participant is detached or a
// write fails.
func (p *Participant) SendLoop() {
	defer p.Close()
	for msg := range p.send {
		conn := p.connection()
		if conn == nil {
			continue
		}
		if err := conn.WriteMessage(TextMessage, msg); err != nil {
			break
		}
	}
}

func (p *Participant) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *Participant) Send(env protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	p.sendRaw(data)
}

func (p *Participant) sendRaw(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.send <- data:
	default:
		metrics.DroppedFrames.Inc()
	}
}

func (p *Participant) sendError(code, message string) {
	p.Send(protocol.Envelope{
		Type:    protocol.TypeSystem,
		Event:   protocol.EventError,
		Payload: protocol.ErrorPayload{Code: code, Message: message},
	})
}

func (p *Participant) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.send)
}

func (p *Participant) connection() Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

func (p *Participant) meta() protocol.PresenceMeta {
	return protocol.PresenceMeta{MemberID: p.ID, OnlineAt: p.connectedAt}
}
