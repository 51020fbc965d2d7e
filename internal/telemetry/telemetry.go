// Package telemetry sends heartbeats and ad impressions to the content
// service. Every call is fire-and-forget: failures are logged and dropped.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/RanFeng/ilog"

	"tvcontrol/internal/contentsvc"
	"tvcontrol/internal/media"
)

type Sink interface {
	Heartbeat(ctx context.Context, currentMedia string) error
	Impression(ctx context.Context, imp contentsvc.Impression) error
}

type Reporter struct {
	sink    Sink
	timeout time.Duration
	wg      sync.WaitGroup
}

func New(sink Sink, timeout time.Duration) *Reporter {
	return &Reporter{sink: sink, timeout: timeout}
}

// Heartbeat reports the media on screen; an empty id means nothing plays.
func (r *Reporter) Heartbeat(ctx context.Context, currentMedia string) {
	r.spawn(ctx, "heartbeat_failed", func(ctx context.Context) error {
		return r.sink.Heartbeat(ctx, currentMedia)
	})
}

// Impression records that ad was put on screen.
func (r *Reporter) Impression(ctx context.Context, ad media.AdItem) {
	imp := contentsvc.Impression{AdID: ad.ID, AdvertiserID: ad.AdvertiserID, Layout: ad.Layout}
	r.spawn(ctx, "impression_failed", func(ctx context.Context) error {
		return r.sink.Impression(ctx, imp)
	})
}

// Wait blocks until in-flight calls finished.
func (r *Reporter) Wait() {
	r.wg.Wait()
}

func (r *Reporter) spawn(ctx context.Context, event string, call func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// 调用方的 ctx 取消后仍然尽力发送
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		if err := call(callCtx); err != nil {
			ilog.EventInfo(ctx, event, "error", err)
		}
	}()
}
