package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func inbound(t *testing.T, raw string) InboundEnvelope {
	t.Helper()
	var env InboundEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return env
}

func TestDecodeValidMessages(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		event string
	}{
		{"get_status", `{"type":"broadcast","event":"get_status","payload":{}}`, EventGetStatus},
		{"get_queue_status", `{"type":"broadcast","event":"get_queue_status"}`, EventGetQueueStatus},
		{"status_update", `{"type":"broadcast","event":"status_update","payload":{"isPlaying":true,"currentIndex":2,"currentId":"b","queue":[{"id":"x","title":"X"}]}}`, EventStatusUpdate},
		{"queue_update", `{"type":"broadcast","event":"queue_update","payload":{"queue":[]}}`, EventQueueUpdate},
		{"control_command", `{"type":"broadcast","event":"control_command","payload":{"action":"NEXT"}}`, EventControlCommand},
		{"set_volume", `{"type":"broadcast","event":"control_command","payload":{"action":"SET_VOLUME","volume":40}}`, EventControlCommand},
		{"request_video", `{"type":"broadcast","event":"request_video","payload":{"id":"v1","title":"Song"}}`, EventRequestVideo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(inbound(t, tt.raw))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if msg.Event() != tt.event {
				t.Errorf("event = %s, want %s", msg.Event(), tt.event)
			}
		})
	}
}

func TestDecodeStatusFields(t *testing.T) {
	msg, err := Decode(inbound(t, `{"type":"broadcast","event":"status_update","payload":{"isPlaying":true,"currentIndex":2,"currentId":"b","isShuffle":true,"layoutMode":"l-bar","queue":[{"id":"x","title":"X"}]}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	status := msg.(StatusUpdate).Status
	if !status.IsPlaying || status.CurrentIndex != 2 || status.CurrentID == nil || *status.CurrentID != "b" {
		t.Errorf("unexpected status: %+v", status)
	}
	if len(status.Queue) != 1 || status.Queue[0].ID != "x" {
		t.Errorf("unexpected queue: %+v", status.Queue)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"presence frame", `{"type":"presence","event":"sync"}`, ErrUnknownEvent},
		{"unknown event", `{"type":"broadcast","event":"self_destruct","payload":{}}`, ErrUnknownEvent},
		{"unknown action", `{"type":"broadcast","event":"control_command","payload":{"action":"EJECT"}}`, ErrUnknownEvent},
		{"volume missing", `{"type":"broadcast","event":"control_command","payload":{"action":"SET_VOLUME"}}`, ErrMalformed},
		{"jump without id", `{"type":"broadcast","event":"control_command","payload":{"action":"JUMP_TO"}}`, ErrMalformed},
		{"remove without index", `{"type":"broadcast","event":"control_command","payload":{"action":"REMOVE_FROM_QUEUE"}}`, ErrMalformed},
		{"request without id", `{"type":"broadcast","event":"request_video","payload":{"title":"x"}}`, ErrMalformed},
		{"status wrong shape", `{"type":"broadcast","event":"status_update","payload":{"isPlaying":"yes"}}`, ErrMalformed},
		{"status negative index", `{"type":"broadcast","event":"status_update","payload":{"currentIndex":-1}}`, ErrMalformed},
		{"empty command", `{"type":"broadcast","event":"control_command"}`, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(inbound(t, tt.raw))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEncodeQueueNeverNull(t *testing.T) {
	data, err := json.Marshal(Encode(QueueUpdate{}))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"type":"broadcast","event":"queue_update","payload":{"queue":[]}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestTopic(t *testing.T) {
	if Topic("") != "tv-control" {
		t.Errorf("fallback topic = %s", Topic(""))
	}
	if Topic("acct") != "tv-control-acct" {
		t.Errorf("account topic = %s", Topic("acct"))
	}
}
