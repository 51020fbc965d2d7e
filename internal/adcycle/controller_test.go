package adcycle

import (
	"math/rand"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"tvcontrol/internal/config"
	"tvcontrol/internal/media"
	"tvcontrol/internal/playback"
)

func ad(id string, layout media.Layout, seconds float64) media.AdItem {
	return media.AdItem{
		ContentItem:  media.ContentItem{ID: id, Type: media.KindImage, URL: "https://cdn/" + id, Duration: seconds},
		Layout:       layout,
		AdvertiserID: "adv",
	}
}

func newController() *Controller {
	return New(config.Defaults(), rand.New(rand.NewSource(11)))
}

func TestContentDuration(t *testing.T) {
	Convey("ContentDuration", t, func() {
		Convey("Should match the screen-time ratio", func() {
			So(ContentDuration(30*time.Second, 70, 30*time.Second), ShouldEqual, 70*time.Second)
			So(ContentDuration(30*time.Second, 90, 30*time.Second), ShouldEqual, 270*time.Second)
			So(ContentDuration(30*time.Second, 50, 30*time.Second), ShouldEqual, 30*time.Second)
		})

		Convey("Should grow with the ratio for equal ad load", func() {
			prev := time.Duration(-1)
			for ratio := 0.0; ratio <= 100; ratio += 5 {
				d := ContentDuration(30*time.Second, ratio, 30*time.Second)
				So(d, ShouldBeGreaterThanOrEqualTo, prev)
				prev = d
			}
		})

		Convey("Should cap the divisor at 0.01 for a 100 ratio", func() {
			So(ContentDuration(30*time.Second, 100, 30*time.Second), ShouldEqual, 3000*time.Second)
		})

		Convey("Should fall back without ad time", func() {
			So(ContentDuration(0, 70, 30*time.Second), ShouldEqual, 30*time.Second)
		})
	})
}

func TestAutoCycle(t *testing.T) {
	Convey("Auto mode", t, func() {
		c := newController()
		pool := []media.AdItem{
			ad("a1", media.LayoutSidebar, 0),
			ad("a2", media.LayoutAll, 0),
			ad("a3", media.LayoutVertical, 0),
			ad("s1", media.LayoutStripe, 10),
		}

		Convey("Should start with content for the paired duration", func() {
			timer, changed := c.Sync(playback.LayoutAuto, 70, pool)
			So(changed, ShouldBeTrue)
			So(c.Displayed(), ShouldEqual, TemplateFullscreen)
			So(timer, ShouldResemble, Timer{Set: true, Delay: 70 * time.Second})

			Convey("Then play a batch of two ads at 15s each", func() {
				timer = c.Fire()
				So(c.Displayed(), ShouldEqual, TemplateLBar)
				So(c.Queue(), ShouldHaveLength, 2)
				So(timer.Delay, ShouldEqual, 15*time.Second)
				first, ok := c.CurrentAd()
				So(ok, ShouldBeTrue)
				So(first.Layout, ShouldNotEqual, media.LayoutStripe)

				timer = c.Fire()
				second, _ := c.CurrentAd()
				So(second.ID, ShouldNotEqual, first.ID)
				So(timer.Delay, ShouldEqual, 15*time.Second)

				Convey("Then return to fullscreen with a fresh batch", func() {
					timer = c.Fire()
					So(c.Displayed(), ShouldEqual, TemplateFullscreen)
					So(timer.Delay, ShouldEqual, 70*time.Second)
					_, ok := c.CurrentAd()
					So(ok, ShouldBeFalse)
				})
			})
		})

		Convey("Should not restart when nothing changed", func() {
			c.Sync(playback.LayoutAuto, 70, pool)
			c.Fire()
			_, changed := c.Sync(playback.LayoutAuto, 70, pool)
			So(changed, ShouldBeFalse)
			So(c.Displayed(), ShouldEqual, TemplateLBar)
		})

		Convey("Should not restart when the same pool arrives reordered", func() {
			first, _ := c.Sync(playback.LayoutAuto, 70, pool)
			reordered := []media.AdItem{pool[3], pool[2], pool[0], pool[1]}
			timer, changed := c.Sync(playback.LayoutAuto, 70, reordered)
			So(changed, ShouldBeFalse)
			So(timer, ShouldResemble, first)

			c.Fire()
			So(c.Displayed(), ShouldEqual, TemplateLBar)
			_, changed = c.Sync(playback.LayoutAuto, 70, pool)
			So(changed, ShouldBeFalse)
			So(c.Displayed(), ShouldEqual, TemplateLBar)
		})

		Convey("Should restart when the ratio changes", func() {
			c.Sync(playback.LayoutAuto, 70, pool)
			c.Fire()
			timer, changed := c.Sync(playback.LayoutAuto, 90, pool)
			So(changed, ShouldBeTrue)
			So(c.Displayed(), ShouldEqual, TemplateFullscreen)
			So(timer.Delay, ShouldEqual, 270*time.Second)
		})

		Convey("Should stay fullscreen without eligible ads", func() {
			timer, _ := c.Sync(playback.LayoutAuto, 70, []media.AdItem{ad("s1", media.LayoutStripe, 10)})
			So(timer.Set, ShouldBeFalse)
			So(c.Displayed(), ShouldEqual, TemplateFullscreen)
		})

		Convey("Should fall back to fullscreen when the pool empties mid batch", func() {
			c.Sync(playback.LayoutAuto, 70, pool)
			c.Fire()
			So(c.Displayed(), ShouldEqual, TemplateLBar)
			timer, changed := c.Sync(playback.LayoutAuto, 70, nil)
			So(changed, ShouldBeTrue)
			So(timer.Set, ShouldBeFalse)
			So(c.Displayed(), ShouldEqual, TemplateFullscreen)
		})

		Convey("Should batch a single ad when only one is eligible", func() {
			timer, _ := c.Sync(playback.LayoutAuto, 70, []media.AdItem{ad("solo", media.LayoutAll, 12)})
			So(timer.Delay, ShouldEqual, 28*time.Second)
			c.Fire()
			So(c.Queue(), ShouldHaveLength, 1)
		})
	})
}

func TestForcedModes(t *testing.T) {
	Convey("Forced modes", t, func() {
		c := newController()
		pool := []media.AdItem{ad("a1", media.LayoutAll, 5), ad("a2", media.LayoutFullscreen, 8)}

		Convey("Fullscreen never shows ads", func() {
			timer, _ := c.Sync(playback.LayoutFullscreen, 70, pool)
			So(timer.Set, ShouldBeFalse)
			So(c.Displayed(), ShouldEqual, TemplateFullscreen)
			So(c.Fire().Set, ShouldBeFalse)
			So(c.Presentation().Ad, ShouldBeNil)
		})

		Convey("L-bar loops through the pool forever", func() {
			timer, _ := c.Sync(playback.LayoutLBar, 70, pool)
			So(timer.Set, ShouldBeTrue)
			So(c.Displayed(), ShouldEqual, TemplateLBar)
			seen := map[string]int{}
			for i := 0; i < 10; i++ {
				current, ok := c.CurrentAd()
				So(ok, ShouldBeTrue)
				seen[current.ID]++
				So(c.Fire().Set, ShouldBeTrue)
				So(c.Displayed(), ShouldEqual, TemplateLBar)
			}
			So(seen["a1"], ShouldEqual, 5)
			So(seen["a2"], ShouldEqual, 5)
		})

		Convey("A fullscreen-format ad renders as an overlay", func() {
			c.Sync(playback.LayoutLBar, 70, []media.AdItem{ad("a2", media.LayoutFullscreen, 8)})
			p := c.Presentation()
			So(p.Template, ShouldEqual, TemplateLBar)
			So(p.Ad, ShouldNotBeNil)
			So(p.Overlay, ShouldBeTrue)
		})

		Convey("Switching mode restarts the cycle", func() {
			c.Sync(playback.LayoutLBar, 70, pool)
			timer, changed := c.Sync(playback.LayoutFullscreen, 70, pool)
			So(changed, ShouldBeTrue)
			So(timer.Set, ShouldBeFalse)
			So(c.Pending().Set, ShouldBeFalse)
		})
	})
}
