package watchdog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"tvcontrol/internal/protocol"
)

func frame(t *testing.T, typ, event string, payload interface{}) protocol.InboundEnvelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return protocol.InboundEnvelope{Type: typ, Event: event, Payload: raw}
}

func TestThresholdBoundary(t *testing.T) {
	mock := clock.NewMock()
	w := New(mock, 45*time.Second, 5*time.Second)

	if w.Check() {
		t.Fatal("player should be inactive before any heartbeat")
	}

	w.Observe(frame(t, protocol.TypeBroadcast, protocol.EventStatusUpdate, protocol.Status{}))
	mock.Add(44 * time.Second)
	if !w.Check() {
		t.Error("expected active at t=44s")
	}
	mock.Add(2 * time.Second)
	if w.Check() {
		t.Error("expected inactive at t=46s")
	}
}

func TestActiveBetweenTicks(t *testing.T) {
	mock := clock.NewMock()
	w := New(mock, 45*time.Second, 5*time.Second)
	var transitions []bool
	w.OnChange(func(active bool) { transitions = append(transitions, active) })

	w.Beat()
	mock.Add(45 * time.Second)
	if !w.Active() {
		t.Error("expected active at t=45s")
	}
	mock.Add(time.Second)
	if w.Active() {
		t.Error("expected inactive at t=46s before any check")
	}
	if len(transitions) != 1 {
		t.Errorf("transitions = %v, want only the first activation", transitions)
	}

	w.Beat()
	if !w.Active() {
		t.Error("expected active right after a heartbeat")
	}
}

func TestHeartbeatSources(t *testing.T) {
	tests := []struct {
		name string
		env  protocol.InboundEnvelope
		want bool
	}{
		{"status update", frame(t, protocol.TypeBroadcast, protocol.EventStatusUpdate, protocol.Status{}), true},
		{"queue update", frame(t, protocol.TypeBroadcast, protocol.EventQueueUpdate, protocol.QueuePayload{}), true},
		{"player join", frame(t, protocol.TypePresence, protocol.EventPresenceJoin, protocol.PresenceDiffPayload{Key: "tv-player"}), true},
		{"remote join", frame(t, protocol.TypePresence, protocol.EventPresenceJoin, protocol.PresenceDiffPayload{Key: "remote-control"}), false},
		{"sync with player", frame(t, protocol.TypePresence, protocol.EventPresenceSync, protocol.PresenceSyncPayload{
			Presences: protocol.PresenceState{"tv-player": {{MemberID: "p"}}},
		}), true},
		{"sync without player", frame(t, protocol.TypePresence, protocol.EventPresenceSync, protocol.PresenceSyncPayload{
			Presences: protocol.PresenceState{"jukebox": {{MemberID: "j"}}},
		}), false},
		{"player leave", frame(t, protocol.TypePresence, protocol.EventPresenceLeave, protocol.PresenceDiffPayload{Key: "tv-player"}), false},
		{"control command", frame(t, protocol.TypeBroadcast, protocol.EventControlCommand, protocol.CommandPayload{Action: protocol.ActionNext}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHeartbeat(tt.env); got != tt.want {
				t.Errorf("IsHeartbeat = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOnChange(t *testing.T) {
	mock := clock.NewMock()
	w := New(mock, 45*time.Second, 5*time.Second)
	var transitions []bool
	w.OnChange(func(active bool) { transitions = append(transitions, active) })

	w.Beat()
	w.Beat()
	mock.Add(50 * time.Second)
	w.Check()
	w.Check()
	w.Beat()

	want := []bool{true, false, true}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}
