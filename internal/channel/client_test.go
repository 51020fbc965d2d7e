package channel

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tvcontrol/internal/httpapi"
	"tvcontrol/internal/protocol"
	"tvcontrol/internal/rooms"
)

func startHub(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(httpapi.NewServer(rooms.NewManager()).Router())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/channels"
}

func waitStatus(t *testing.T, c *Client, want Status) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-c.Statuses():
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("%s: timed out waiting for %s", c.Role(), want)
		}
	}
}

func waitFrame(t *testing.T, c *Client, typ, event string) protocol.InboundEnvelope {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case env := <-c.Frames():
			if env.Type == typ && env.Event == event {
				return env
			}
		case <-timeout:
			t.Fatalf("%s: timed out waiting for %s:%s", c.Role(), typ, event)
		}
	}
}

func TestBroadcastBetweenClients(t *testing.T) {
	url := startHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	player := New(Options{URL: url, Topic: protocol.Topic("acct"), Role: protocol.RolePlayer})
	remote := New(Options{URL: url, Topic: protocol.Topic("acct"), Role: protocol.RoleRemote})
	go player.Run(ctx)
	waitStatus(t, player, StatusSubscribed)
	go remote.Run(ctx)
	waitStatus(t, remote, StatusSubscribed)

	sync := waitFrame(t, remote, protocol.TypePresence, protocol.EventPresenceSync)
	if !strings.Contains(string(sync.Payload), string(protocol.RolePlayer)) {
		t.Errorf("presence sync should list the player: %s", sync.Payload)
	}
	waitFrame(t, player, protocol.TypePresence, protocol.EventPresenceJoin)

	if err := remote.Publish(protocol.ControlCommand{Command: protocol.CommandPayload{Action: protocol.ActionNext}}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	env := waitFrame(t, player, protocol.TypeBroadcast, protocol.EventControlCommand)
	msg, err := protocol.Decode(env)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.(protocol.ControlCommand).Command.Action != protocol.ActionNext {
		t.Errorf("unexpected command: %+v", msg)
	}

	ackCtx, ackCancel := context.WithTimeout(ctx, 5*time.Second)
	defer ackCancel()
	if err := player.PublishAck(ackCtx, protocol.QueueUpdate{}); err != nil {
		t.Fatalf("PublishAck failed: %v", err)
	}
	waitFrame(t, remote, protocol.TypeBroadcast, protocol.EventQueueUpdate)
}

func TestSendWithoutConnection(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/ws/channels", Topic: "tv-control", Role: protocol.RoleRemote})
	if err := c.Publish(protocol.GetStatus{}); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestRunReportsErrorAndStops(t *testing.T) {
	c := New(Options{
		URL:          "ws://127.0.0.1:1/ws/channels",
		Topic:        "tv-control",
		Role:         protocol.RoleJukebox,
		ReconnectMin: 10 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitStatus(t, c, StatusChannelError)
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestEmitKeepsLatestStatus(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/ws/channels", Topic: "tv-control", Role: protocol.RoleRemote})
	ctx := context.Background()
	for i := 0; i < cap(c.statuses); i++ {
		c.emit(ctx, StatusChannelError)
	}
	c.emit(ctx, StatusSubscribed)

	var last Status
	for len(c.statuses) > 0 {
		last = <-c.statuses
	}
	if last != StatusSubscribed {
		t.Errorf("last status = %s, want %s", last, StatusSubscribed)
	}
}

func TestEndpoint(t *testing.T) {
	c := New(Options{URL: "ws://hub:8080/ws/channels", Topic: "tv-control-42", Role: protocol.RoleJukebox})
	got, err := c.endpoint()
	if err != nil {
		t.Fatalf("endpoint failed: %v", err)
	}
	if got != "ws://hub:8080/ws/channels/tv-control-42?role=jukebox" {
		t.Errorf("endpoint = %s", got)
	}
}
