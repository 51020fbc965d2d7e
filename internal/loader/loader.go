// Package loader polls the content service and publishes a Snapshot of the
// content list, ad pool and account configuration whenever it changes.
package loader

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/RanFeng/ilog"
	"github.com/benbjohnson/clock"
	"github.com/samber/lo"

	"tvcontrol/internal/config"
	"tvcontrol/internal/contentsvc"
	"tvcontrol/internal/media"
	"tvcontrol/internal/playback"
)

// Source is the subset of the content service the loader reads.
type Source interface {
	ActivePlaylist(ctx context.Context) (contentsvc.Playlist, error)
	Config(ctx context.Context, key string) (string, error)
	Advertisers(ctx context.Context) ([]media.RawAdvertiser, error)
}

// Snapshot is one consistent view of everything the Player renders from.
type Snapshot struct {
	Items   []media.ContentItem
	Ads     []media.AdItem
	Shuffle bool
	Layout  playback.LayoutMode
	Ratio   float64
	Logo    string
	News    string
}

func (s Snapshot) fingerprint() string {
	return strings.Join([]string{
		media.Key(media.IDs(s.Items)),
		media.SetKey(media.AdIDs(s.Ads)),
		strconv.FormatBool(s.Shuffle),
		string(s.Layout),
		strconv.FormatFloat(s.Ratio, 'f', -1, 64),
		s.Logo,
		s.News,
	}, "\x1e")
}

type Loader struct {
	src   Source
	cfg   config.Engine
	clock clock.Clock

	out     chan Snapshot
	refresh chan struct{}

	last    Snapshot
	loaded  bool
	printed string
}

func New(src Source, cfg config.Engine, clk clock.Clock) *Loader {
	return &Loader{
		src:     src,
		cfg:     cfg,
		clock:   clk,
		out:     make(chan Snapshot, 1),
		refresh: make(chan struct{}, 1),
	}
}

// Snapshots delivers changed snapshots. An unread snapshot is replaced by a
// newer one, so readers only ever see the latest.
func (l *Loader) Snapshots() <-chan Snapshot {
	return l.out
}

// Refresh asks Run to fetch now instead of waiting for the next poll.
func (l *Loader) Refresh() {
	select {
	case l.refresh <- struct{}{}:
	default:
	}
}

// Run fetches immediately, then on every poll interval and refresh request,
// until ctx is done.
func (l *Loader) Run(ctx context.Context) error {
	ticker := l.clock.Ticker(l.cfg.ContentPollInterval)
	defer ticker.Stop()

	for {
		snap, changed, err := l.Fetch(ctx)
		if err != nil {
			ilog.EventInfo(ctx, "content_fetch_failed", "error", err, "keep_previous", l.loaded)
		} else if changed {
			ilog.EventInfo(ctx, "content_changed", "items", len(snap.Items), "ads", len(snap.Ads), "layout", snap.Layout, "ratio", snap.Ratio)
			l.publish(snap)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-l.refresh:
		}
	}
}

// Fetch loads a snapshot and reports whether it differs from the last one.
// The playlist is required; config keys and advertisers that fail to load
// keep their previous values.
func (l *Loader) Fetch(ctx context.Context) (Snapshot, bool, error) {
	playlist, err := l.src.ActivePlaylist(ctx)
	if err != nil {
		return l.last, false, fmt.Errorf("playlist: %w", err)
	}

	next := Snapshot{
		Items:   media.NormalizeContent(playlist.Items, l.cfg.ImageDuration),
		Shuffle: playlist.Settings.Shuffle,
		Ads:     l.last.Ads,
		Layout:  lo.Ternary(l.loaded, l.last.Layout, playback.LayoutAuto),
		Ratio:   lo.Ternary(l.loaded, l.last.Ratio, l.cfg.ContentRatio),
		Logo:    l.last.Logo,
		News:    l.last.News,
	}

	if advertisers, err := l.src.Advertisers(ctx); err != nil {
		ilog.EventInfo(ctx, "advertisers_fetch_failed", "error", err)
	} else {
		next.Ads = media.NormalizeAds(advertisers)
	}

	l.readConfig(ctx, contentsvc.KeyTemplate, func(v string) { next.Layout = LayoutFromTemplate(v) })
	l.readConfig(ctx, contentsvc.KeyCycle, func(v string) { next.Ratio = ParseRatio(v, l.cfg.ContentRatio) })
	l.readConfig(ctx, contentsvc.KeyLogo, func(v string) { next.Logo = v })
	l.readConfig(ctx, contentsvc.KeyNews, func(v string) { next.News = v })

	printed := next.fingerprint()
	changed := !l.loaded || printed != l.printed
	l.last = next
	l.loaded = true
	l.printed = printed
	return next, changed, nil
}

func (l *Loader) readConfig(ctx context.Context, key string, apply func(string)) {
	v, err := l.src.Config(ctx, key)
	if err != nil {
		ilog.EventInfo(ctx, "config_fetch_failed", "key", key, "error", err)
		return
	}
	apply(v)
}

func (l *Loader) publish(snap Snapshot) {
	for {
		select {
		case l.out <- snap:
			return
		default:
		}
		select {
		case <-l.out:
		default:
		}
	}
}

// LayoutFromTemplate maps the template config value to a layout mode.
func LayoutFromTemplate(v string) playback.LayoutMode {
	switch mode := playback.LayoutMode(strings.ToLower(strings.TrimSpace(v))); mode {
	case playback.LayoutFullscreen, playback.LayoutLBar:
		return mode
	}
	return playback.LayoutAuto
}

// ParseRatio reads the cycle config as a content percentage, clamped to
// 0–100. Empty or unparsable values yield def.
func ParseRatio(v string, def float64) float64 {
	r, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
	if err != nil || math.IsNaN(r) {
		return def
	}
	return lo.Clamp(r, 0, 100)
}
