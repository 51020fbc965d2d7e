// Package contentsvc talks to the external content service that owns
// playlists, ads, per-account configuration and analytics.
package contentsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"tvcontrol/internal/media"
	"tvcontrol/internal/metrics"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Config keys served under /config/{key}.
const (
	KeyTemplate = "template"
	KeyCycle    = "cycle"
	KeyLogo     = "logo"
	KeyNews     = "news"
)

type Settings struct {
	Shuffle bool `json:"shuffle"`
}

type Playlist struct {
	Items    []media.RawItem `json:"playlist"`
	Settings Settings        `json:"settings"`
}

type Impression struct {
	AdID         string       `json:"adId"`
	AdvertiserID string       `json:"advertiserId"`
	Layout       media.Layout `json:"layout"`
}

type Client struct {
	baseURL string
	token   string
	uid     string
	http    *client.Client
}

func New(baseURL, token, uid string, timeout time.Duration) (*Client, error) {
	c, err := client.NewClient(
		client.WithDialTimeout(timeout),
		client.WithClientReadTimeout(timeout),
	)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		uid:     uid,
		http:    c,
	}, nil
}

func (c *Client) ActivePlaylist(ctx context.Context) (Playlist, error) {
	var out Playlist
	err := c.get(ctx, "/playlist/active", &out)
	return out, err
}

// Config returns the value of one configuration key as text.
func (c *Client) Config(ctx context.Context, key string) (string, error) {
	var out struct {
		Value interface{} `json:"value"`
	}
	if err := c.get(ctx, "/config/"+key, &out); err != nil {
		return "", err
	}
	switch v := out.Value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		raw, err := json.Marshal(v)
		return string(raw), err
	}
}

func (c *Client) Advertisers(ctx context.Context) ([]media.RawAdvertiser, error) {
	var out struct {
		Advertisers []media.RawAdvertiser `json:"advertisers"`
	}
	err := c.get(ctx, "/advertisers", &out)
	return out.Advertisers, err
}

func (c *Client) Heartbeat(ctx context.Context, currentMedia string) error {
	return c.post(ctx, "/player/heartbeat", map[string]string{
		"uid":          c.uid,
		"currentMedia": currentMedia,
	})
}

func (c *Client) Impression(ctx context.Context, imp Impression) error {
	return c.post(ctx, "/player/impression", imp)
}

func (c *Client) JukeboxRequest(ctx context.Context, id, title string) error {
	return c.post(ctx, "/jukebox/request", map[string]string{"id": id, "title": title})
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	q := url.Values{}
	q.Set("uid", c.uid)
	body, err := c.do(ctx, consts.MethodGet, path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.FetchErrors.WithLabelValues(path).Inc()
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, consts.MethodPost, path, data)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer func() {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
	}()

	req.SetRequestURI(c.baseURL + path)
	req.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.SetContentTypeBytes([]byte("application/json"))
		req.SetBody(body)
	}

	endpoint := strings.SplitN(path, "?", 2)[0]
	if err := c.http.Do(ctx, req, resp); err != nil {
		metrics.FetchErrors.WithLabelValues(endpoint).Inc()
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		metrics.FetchErrors.WithLabelValues(endpoint).Inc()
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, method, endpoint, code)
	}
	return append([]byte(nil), resp.Body()...), nil
}
