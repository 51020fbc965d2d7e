// Package rooms is the channel hub: one room per topic, presence tracking
// and broadcast fan-out between the Player, Remote and Jukebox clients.
package rooms

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RanFeng/ilog"

	"tvcontrol/internal/protocol"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrInvalidRole  = errors.New("invalid role")
	ErrInvalidTopic = errors.New("invalid topic")
)

type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	now   func() time.Time
}

// Session describes a member that just joined a topic.
type Session struct {
	Topic    string                 `json:"topic"`
	MemberID string                 `json:"memberId"`
	Role     protocol.Role          `json:"role"`
	Presence protocol.PresenceState `json:"presence"`
}

func NewManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Join attaches a member with role to topic, creating the room on demand.
func (m *Manager) Join(ctx context.Context, topic string, role protocol.Role) (*Room, *Participant, error) {
	if !ValidTopic(topic) {
		return nil, nil, ErrInvalidTopic
	}
	if !role.Valid() {
		return nil, nil, ErrInvalidRole
	}

	m.mu.Lock()
	room, ok := m.rooms[topic]
	if !ok {
		room = NewRoom(topic, m.now())
		m.rooms[topic] = room
	}
	participant := room.AttachParticipant(role, m.now())
	m.mu.Unlock()

	ilog.EventInfo(ctx, "member_joined", "topic", topic, "role", role, "member", participant.ID)
	return room, participant, nil
}

// Presence returns the presence state of topic.
func (m *Manager) Presence(topic string) (protocol.PresenceState, error) {
	m.mu.RLock()
	room, ok := m.rooms[topic]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room.PresenceState(), nil
}

// Topics lists the open topics in name order.
func (m *Manager) Topics() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	topics := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		topics = append(topics, id)
	}
	sort.Strings(topics)
	return topics
}

// Leave detaches the member and drops the room once it is empty.
func (m *Manager) Leave(ctx context.Context, room *Room, participantID string) {
	room.DetachParticipant(participantID)
	ilog.EventInfo(ctx, "member_left", "topic", room.ID(), "member", participantID)
	m.CleanupRoom(room)
}

func (m *Manager) CleanupRoom(room *Room) {
	if room == nil {
		return
	}
	if room.ParticipantCount() > 0 {
		return
	}
	roomID := room.ID()
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.rooms[roomID]
	if ok && current == room && room.ParticipantCount() == 0 {
		delete(m.rooms, roomID)
	}
}

// ValidTopic accepts tv-control and tv-control-{accountId}.
func ValidTopic(topic string) bool {
	if topic == protocol.Topic("") {
		return true
	}
	account := strings.TrimPrefix(topic, protocol.Topic("")+"-")
	return account != topic && account != "" && !strings.ContainsAny(account, "/ ")
}
