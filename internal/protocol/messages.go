package protocol

import (
	"encoding/json"
	"time"
)

// Frame types on the wire.
const (
	TypeBroadcast = "broadcast"
	TypePresence  = "presence"
	TypeSystem    = "system"
)

// Broadcast events.
const (
	EventGetStatus      = "get_status"
	EventStatusUpdate   = "status_update"
	EventQueueUpdate    = "queue_update"
	EventControlCommand = "control_command"
	EventRequestVideo   = "request_video"
	EventGetQueueStatus = "get_queue_status"
)

// Presence events.
const (
	EventPresenceSync  = "sync"
	EventPresenceJoin  = "join"
	EventPresenceLeave = "leave"
)

// System events.
const (
	EventSubscribed = "subscribed"
	EventAck        = "ack"
	EventError      = "error"
)

// Role is the presence key a client joins under.
type Role string

const (
	RolePlayer  Role = "tv-player"
	RoleRemote  Role = "remote-control"
	RoleJukebox Role = "jukebox"
)

func (r Role) Valid() bool {
	switch r {
	case RolePlayer, RoleRemote, RoleJukebox:
		return true
	}
	return false
}

// Envelope is an outbound frame.
type Envelope struct {
	Type    string      `json:"type"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
	Ref     string      `json:"ref,omitempty"`
	Ack     bool        `json:"ack,omitempty"`
}

// InboundEnvelope is a frame whose payload has not been decoded yet.
type InboundEnvelope struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ref     string          `json:"ref,omitempty"`
	Ack     bool            `json:"ack,omitempty"`
}

// QueueEntry is one request queue entry as broadcast.
type QueueEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Status is the full PlaybackState snapshot plus the request queue.
type Status struct {
	IsPlaying    bool         `json:"isPlaying"`
	CurrentIndex int          `json:"currentIndex"`
	CurrentID    *string      `json:"currentId"`
	IsMuted      bool         `json:"isMuted"`
	IsShuffle    bool         `json:"isShuffle"`
	ShowTicker   bool         `json:"showTicker"`
	Volume       int          `json:"volume"`
	LayoutMode   string       `json:"layoutMode"`
	Queue        []QueueEntry `json:"queue"`
}

type QueuePayload struct {
	Queue []QueueEntry `json:"queue"`
}

// CommandPayload carries a control_command. Only the parameter the action
// needs is set.
type CommandPayload struct {
	Action Action `json:"action"`
	Volume *int   `json:"volume,omitempty"`
	ID     string `json:"id,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

type VideoRequestPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PresenceMeta is one tracked presence of a member.
type PresenceMeta struct {
	MemberID string    `json:"member_id"`
	OnlineAt time.Time `json:"online_at"`
}

// PresenceState maps a presence key to its tracked metas.
type PresenceState map[string][]PresenceMeta

type PresenceSyncPayload struct {
	Presences PresenceState `json:"presences"`
}

type PresenceDiffPayload struct {
	Key       string         `json:"key"`
	Presences []PresenceMeta `json:"presences"`
}

type SubscribedPayload struct {
	Topic    string `json:"topic"`
	MemberID string `json:"member_id"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Topic returns the channel name for an account.
func Topic(accountID string) string {
	if accountID == "" {
		return "tv-control"
	}
	return "tv-control-" + accountID
}
