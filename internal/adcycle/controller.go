// Package adcycle decides when the screen shows content alone and when it
// shares the screen with an ad batch.
//
// The controller is a pure state machine. Every transition returns the one
// timer the caller must arm next; arming it replaces whatever timer was
// pending, so at most one ad-cycle timer exists at a time.
package adcycle

import (
	"math"
	"time"

	"github.com/samber/lo"

	"tvcontrol/internal/config"
	"tvcontrol/internal/media"
	"tvcontrol/internal/playback"
	"tvcontrol/internal/shuffle"
)

// Template is what the screen actually shows.
type Template string

const (
	TemplateFullscreen Template = "fullscreen"
	TemplateLBar       Template = "l-bar"
)

// Timer is the next timer to arm. A zero Timer means none.
type Timer struct {
	Set   bool
	Delay time.Duration
}

func after(d time.Duration) Timer {
	return Timer{Set: true, Delay: d}
}

// Presentation is the rendering instruction derived from the cycle state.
type Presentation struct {
	Template Template
	Ad       *media.AdItem
	// Overlay is set when a fullscreen-format ad takes over the screen and
	// the content shrinks to a corner.
	Overlay bool
}

type Controller struct {
	cfg config.Engine
	rng shuffle.Rand

	mode     playback.LayoutMode
	ratio    float64
	eligible []media.AdItem
	poolKey  string
	started  bool

	displayed Template
	queue     []media.AdItem
	index     int
	batch     []media.AdItem
	pending   Timer
}

func New(cfg config.Engine, rng shuffle.Rand) *Controller {
	return &Controller{
		cfg:       cfg,
		rng:       rng,
		mode:      playback.LayoutAuto,
		ratio:     cfg.ContentRatio,
		displayed: TemplateFullscreen,
	}
}

// ContentDuration returns how long content runs alone before an ad batch of
// totalAd, so content and ads split screen time by ratio (0–100).
func ContentDuration(totalAd time.Duration, ratio float64, fallback time.Duration) time.Duration {
	if totalAd <= 0 {
		return fallback
	}
	r := lo.Clamp(ratio, 0, 100) / 100
	secs := totalAd.Seconds() / math.Max(1-r, 0.01) * r
	return time.Duration(math.Round(secs*1000)) * time.Millisecond
}

// Sync re-synchronizes the cycle with its inputs. When any input changed the
// cycle restarts and the returned timer replaces the pending one; otherwise
// changed is false and the pending timer stays armed.
func (c *Controller) Sync(mode playback.LayoutMode, ratio float64, pool []media.AdItem) (Timer, bool) {
	if !mode.Valid() {
		mode = playback.LayoutAuto
	}
	eligible := media.Eligible(pool)
	key := media.SetKey(media.AdIDs(eligible))
	if c.started && mode == c.mode && ratio == c.ratio && key == c.poolKey {
		return c.pending, false
	}

	c.started = true
	c.mode = mode
	c.ratio = ratio
	c.eligible = eligible
	c.poolKey = key
	return c.restart(), true
}

// Fire advances the cycle after the pending timer elapsed.
func (c *Controller) Fire() Timer {
	switch c.mode {
	case playback.LayoutFullscreen:
		c.pending = Timer{}
	case playback.LayoutLBar:
		if len(c.queue) == 0 {
			c.pending = Timer{}
			break
		}
		c.index++
		if c.index >= len(c.queue) {
			c.queue = c.shuffled()
			c.index = 0
		}
		c.pending = after(c.dwell(c.queue[c.index]))
	default:
		if c.displayed == TemplateFullscreen {
			if len(c.batch) == 0 {
				return c.beginContent()
			}
			c.displayed = TemplateLBar
			c.queue = c.batch
			c.batch = nil
			c.index = 0
			c.pending = after(c.dwell(c.queue[0]))
			break
		}
		c.index++
		if c.index >= len(c.queue) {
			return c.beginContent()
		}
		c.pending = after(c.dwell(c.queue[c.index]))
	}
	return c.pending
}

// Displayed is the template on screen.
func (c *Controller) Displayed() Template {
	return c.displayed
}

// Mode is the operating mode the controller last synced to.
func (c *Controller) Mode() playback.LayoutMode {
	return c.mode
}

// Pending is the timer the caller should currently have armed.
func (c *Controller) Pending() Timer {
	return c.pending
}

// CurrentAd returns the ad on screen, if any.
func (c *Controller) CurrentAd() (media.AdItem, bool) {
	if c.displayed != TemplateLBar || c.index >= len(c.queue) {
		return media.AdItem{}, false
	}
	return c.queue[c.index], true
}

// Queue returns the ads of the running batch.
func (c *Controller) Queue() []media.AdItem {
	return append([]media.AdItem(nil), c.queue...)
}

func (c *Controller) Presentation() Presentation {
	p := Presentation{Template: c.displayed}
	if ad, ok := c.CurrentAd(); ok {
		p.Ad = &ad
		p.Overlay = ad.Layout == media.LayoutFullscreen
	}
	return p
}

func (c *Controller) restart() Timer {
	c.queue = nil
	c.batch = nil
	c.index = 0
	switch c.mode {
	case playback.LayoutFullscreen:
		c.displayed = TemplateFullscreen
		c.pending = Timer{}
	case playback.LayoutLBar:
		c.displayed = TemplateLBar
		c.queue = c.shuffled()
		if len(c.queue) == 0 {
			c.pending = Timer{}
		} else {
			c.pending = after(c.dwell(c.queue[0]))
		}
	default:
		return c.beginContent()
	}
	return c.pending
}

// beginContent starts the content-only half of an auto cycle and draws the
// batch that follows it.
func (c *Controller) beginContent() Timer {
	c.displayed = TemplateFullscreen
	c.queue = nil
	c.index = 0
	if len(c.eligible) == 0 {
		c.batch = nil
		c.pending = Timer{}
		return c.pending
	}
	size := lo.Min([]int{c.cfg.AdBatchSize, len(c.eligible)})
	c.batch = c.shuffled()[:size]
	total := time.Duration(lo.SumBy(c.batch, func(ad media.AdItem) int64 {
		return int64(c.dwell(ad))
	}))
	c.pending = after(ContentDuration(total, c.ratio, c.cfg.ContentFallback))
	return c.pending
}

func (c *Controller) shuffled() []media.AdItem {
	order := shuffle.Shuffle(len(c.eligible), -1, c.rng)
	return lo.Map(order, func(i int, _ int) media.AdItem { return c.eligible[i] })
}

func (c *Controller) dwell(ad media.AdItem) time.Duration {
	return ad.Dwell(c.cfg.AdDuration)
}
