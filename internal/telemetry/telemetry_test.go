package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tvcontrol/internal/contentsvc"
	"tvcontrol/internal/media"
)

type fakeSink struct {
	mu          sync.Mutex
	heartbeats  []string
	impressions []contentsvc.Impression
	err         error
	block       bool
}

func (f *fakeSink) Heartbeat(ctx context.Context, id string) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats = append(f.heartbeats, id)
	return f.err
}

func (f *fakeSink) Impression(_ context.Context, imp contentsvc.Impression) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.impressions = append(f.impressions, imp)
	return f.err
}

func TestReporterForwards(t *testing.T) {
	sink := &fakeSink{}
	r := New(sink, time.Second)

	r.Heartbeat(context.Background(), "a")
	r.Impression(context.Background(), media.AdItem{
		ContentItem:  media.ContentItem{ID: "m1"},
		Layout:       media.LayoutSidebar,
		AdvertiserID: "adv",
	})
	r.Wait()

	if len(sink.heartbeats) != 1 || sink.heartbeats[0] != "a" {
		t.Errorf("heartbeats = %v", sink.heartbeats)
	}
	want := contentsvc.Impression{AdID: "m1", AdvertiserID: "adv", Layout: media.LayoutSidebar}
	if len(sink.impressions) != 1 || sink.impressions[0] != want {
		t.Errorf("impressions = %+v", sink.impressions)
	}
}

func TestReporterSwallowsFailures(t *testing.T) {
	sink := &fakeSink{err: errors.New("boom")}
	r := New(sink, time.Second)
	r.Heartbeat(context.Background(), "a")
	r.Wait()
	if len(sink.heartbeats) != 1 {
		t.Errorf("expected the call to be attempted once, got %d", len(sink.heartbeats))
	}
}

func TestReporterTimesOut(t *testing.T) {
	sink := &fakeSink{block: true}
	r := New(sink, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	r.Heartbeat(ctx, "a")
	r.Wait()
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("heartbeat should run until its own timeout, took %v", elapsed)
	}
}
