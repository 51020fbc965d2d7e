// Package channel is the client side of the control channel: it subscribes to
// a topic under a role, reconnects on failure and reports subscription status
// changes so callers can re-request state.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/RanFeng/ilog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tvcontrol/internal/protocol"
)

var (
	ErrNotConnected = errors.New("channel not connected")
)

// Status is the subscription state of the client.
type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusClosed       Status = "CLOSED"
	StatusChannelError Status = "CHANNEL_ERROR"
)

type Options struct {
	// URL is the hub endpoint without the topic, e.g. ws://host/ws/channels.
	URL          string
	Topic        string
	Role         protocol.Role
	PingInterval time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	Dialer       *websocket.Dialer
}

type Client struct {
	opts     Options
	frames   chan protocol.InboundEnvelope
	statuses chan Status

	mu       sync.Mutex
	conn     *websocket.Conn
	memberID string
	acks     map[string]chan struct{}

	writeMu sync.Mutex
}

func New(opts Options) *Client {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{
		opts:     opts,
		frames:   make(chan protocol.InboundEnvelope, 64),
		statuses: make(chan Status, 8),
		acks:     make(map[string]chan struct{}),
	}
}

// Frames delivers broadcast, presence and error frames in arrival order.
func (c *Client) Frames() <-chan protocol.InboundEnvelope {
	return c.frames
}

// Statuses delivers subscription status transitions.
func (c *Client) Statuses() <-chan Status {
	return c.statuses
}

func (c *Client) Role() protocol.Role {
	return c.opts.Role
}

// MemberID is the id the hub assigned on the current subscription.
func (c *Client) MemberID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memberID
}

// Run keeps the subscription alive until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.opts.ReconnectMin
	for {
		subscribed, err := c.session(ctx)
		if ctx.Err() != nil {
			c.emit(ctx, StatusClosed)
			return ctx.Err()
		}
		if subscribed {
			backoff = c.opts.ReconnectMin
		}
		ilog.EventInfo(ctx, "channel_disconnected", "topic", c.opts.Topic, "role", c.opts.Role, "error", err, "retry_in", backoff.String())
		c.emit(ctx, StatusChannelError)

		select {
		case <-ctx.Done():
			c.emit(ctx, StatusClosed)
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.opts.ReconnectMax {
			backoff = c.opts.ReconnectMax
		}
	}
}

// Publish encodes and sends a typed message.
func (c *Client) Publish(m protocol.Message) error {
	return c.write(protocol.Encode(m))
}

// PublishAck sends m and waits until the hub confirms it relayed the frame.
func (c *Client) PublishAck(ctx context.Context, m protocol.Message) error {
	env := protocol.Encode(m)
	env.Ref = uuid.NewString()
	env.Ack = true

	done := make(chan struct{})
	c.mu.Lock()
	c.acks[env.Ref] = done
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.acks, env.Ref)
		c.mu.Unlock()
	}()

	if err := c.write(env); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) session(ctx context.Context) (bool, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return false, err
	}
	conn, _, err := c.opts.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.mu.Lock()
		c.conn = nil
		c.memberID = ""
		c.mu.Unlock()
		_ = conn.Close()
	}()

	go c.pingLoop(sessionCtx, conn)
	go func() {
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	subscribed := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return subscribed, err
		}
		var env protocol.InboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			ilog.EventInfo(ctx, "channel_frame_unreadable", "topic", c.opts.Topic, "error", err)
			continue
		}

		if env.Type == protocol.TypeSystem {
			switch env.Event {
			case protocol.EventSubscribed:
				var payload protocol.SubscribedPayload
				_ = json.Unmarshal(env.Payload, &payload)
				c.mu.Lock()
				c.memberID = payload.MemberID
				c.mu.Unlock()
				subscribed = true
				ilog.EventInfo(ctx, "channel_subscribed", "topic", c.opts.Topic, "role", c.opts.Role, "member", payload.MemberID)
				c.emit(ctx, StatusSubscribed)
				continue
			case protocol.EventAck:
				c.resolveAck(env.Ref)
				continue
			}
		}

		select {
		case c.frames <- env:
		case <-ctx.Done():
			return subscribed, ctx.Err()
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) resolveAck(ref string) {
	c.mu.Lock()
	done, ok := c.acks[ref]
	delete(c.acks, ref)
	c.mu.Unlock()
	if ok {
		close(done)
	}
}

// emit never blocks. When the buffer is full the oldest transition gives way,
// so the latest status always reaches the consumer.
func (c *Client) emit(ctx context.Context, status Status) {
	for {
		select {
		case c.statuses <- status:
			return
		default:
		}
		select {
		case dropped := <-c.statuses:
			ilog.EventInfo(ctx, "channel_status_coalesced", "topic", c.opts.Topic, "dropped", dropped, "latest", status)
		default:
		}
	}
}

func (c *Client) endpoint() (string, error) {
	base, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", err
	}
	base = base.JoinPath(c.opts.Topic)
	q := base.Query()
	q.Set("role", string(c.opts.Role))
	base.RawQuery = q.Encode()
	return base.String(), nil
}
