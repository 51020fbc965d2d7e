package surface

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/mo"

	"tvcontrol/internal/media"
)

func item(id string, seconds float64) mo.Option[media.ContentItem] {
	return mo.Some(media.ContentItem{ID: id, Type: media.KindImage, URL: "https://cdn/" + id, Duration: seconds})
}

func expectEvent(t *testing.T, h *Headless, kind EventKind, id string) Event {
	t.Helper()
	select {
	case ev := <-h.Events():
		if ev.Kind != kind || ev.ItemID != id {
			t.Fatalf("got %s for %s, want %s for %s", ev.Kind, ev.ItemID, kind, id)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", kind)
	}
	return Event{}
}

func expectQuiet(t *testing.T, h *Headless) {
	t.Helper()
	select {
	case ev := <-h.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHeadlessPlaysToTheEnd(t *testing.T) {
	mock := clock.NewMock()
	h := NewHeadless(Options{Clock: mock})
	ctx := context.Background()

	h.Render(ctx, Frame{Item: item("a", 10), Selection: 1, Playing: true})
	mock.Add(9 * time.Second)
	expectQuiet(t, h)
	mock.Add(time.Second)
	ev := expectEvent(t, h, EventEnded, "a")
	if ev.Selection != 1 {
		t.Errorf("selection = %d, want 1", ev.Selection)
	}
}

func TestHeadlessPauseKeepsRemainingTime(t *testing.T) {
	mock := clock.NewMock()
	h := NewHeadless(Options{Clock: mock})
	ctx := context.Background()

	h.Render(ctx, Frame{Item: item("a", 10), Selection: 1, Playing: true})
	mock.Add(6 * time.Second)
	h.Render(ctx, Frame{Item: item("a", 10), Selection: 1, Playing: false})
	mock.Add(time.Minute)
	expectQuiet(t, h)

	h.Render(ctx, Frame{Item: item("a", 10), Selection: 1, Playing: true})
	mock.Add(3 * time.Second)
	expectQuiet(t, h)
	mock.Add(time.Second)
	expectEvent(t, h, EventEnded, "a")
}

func TestHeadlessReselectRestarts(t *testing.T) {
	mock := clock.NewMock()
	h := NewHeadless(Options{Clock: mock})
	ctx := context.Background()

	h.Render(ctx, Frame{Item: item("a", 10), Selection: 1, Playing: true})
	mock.Add(8 * time.Second)
	h.Render(ctx, Frame{Item: item("a", 10), Selection: 2, Playing: true})
	mock.Add(8 * time.Second)
	expectQuiet(t, h)
	mock.Add(2 * time.Second)
	ev := expectEvent(t, h, EventEnded, "a")
	if ev.Selection != 2 {
		t.Errorf("selection = %d, want 2", ev.Selection)
	}
}

func TestHeadlessFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("broken item", func(t *testing.T) {
		h := NewHeadless(Options{Clock: clock.NewMock(), Broken: []string{"bad"}})
		h.Render(ctx, Frame{Item: item("bad", 10), Selection: 1, Playing: true})
		expectEvent(t, h, EventError, "bad")
		h.Render(ctx, Frame{Item: item("bad", 10), Selection: 1, Playing: true, Volume: 50})
		expectQuiet(t, h)
	})

	t.Run("autoplay blocked once", func(t *testing.T) {
		mock := clock.NewMock()
		h := NewHeadless(Options{Clock: mock, BlockAutoplay: true})
		h.Render(ctx, Frame{Item: item("a", 10), Selection: 1, Playing: true})
		expectEvent(t, h, EventAutoplayBlocked, "a")

		h.Render(ctx, Frame{Item: item("a", 10), Selection: 1, Playing: true, Muted: true, SoundPrompt: true})
		mock.Add(10 * time.Second)
		expectEvent(t, h, EventEnded, "a")
	})
}

func TestHeadlessClose(t *testing.T) {
	mock := clock.NewMock()
	h := NewHeadless(Options{Clock: mock})
	ctx := context.Background()

	h.Render(ctx, Frame{Item: item("a", 1), Selection: 1, Playing: true})
	h.Close()
	mock.Add(time.Minute)
	expectQuiet(t, h)

	h.Render(ctx, Frame{Item: item("b", 1), Selection: 2, Playing: true})
	if _, renders := h.Last(); renders != 1 {
		t.Errorf("renders after close = %d, want 1", renders)
	}
}
