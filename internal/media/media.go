// Package media defines the playable items the engine schedules and the
// normalization applied to what the content service returns.
package media

import (
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Kind string

const (
	KindVideo   Kind = "video"
	KindImage   Kind = "image"
	KindYouTube Kind = "youtube"
)

type Layout string

const (
	LayoutAll        Layout = "all"
	LayoutSidebar    Layout = "sidebar"
	LayoutVertical   Layout = "vertical"
	LayoutPortrait   Layout = "portrait"
	LayoutStripe     Layout = "stripe"
	LayoutFullscreen Layout = "fullscreen"
)

// ContentItem is one entry of the content list. Duration is in seconds; zero
// means the item ends when the surface reports completion.
type ContentItem struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Type      Kind    `json:"type"`
	URL       string  `json:"url"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Duration  float64 `json:"duration"`
}

// AdItem is a ContentItem that lives in the ad pool.
type AdItem struct {
	ContentItem
	Layout       Layout `json:"layout"`
	AdvertiserID string `json:"advertiserId"`
}

// Dwell returns how long the item stays on screen, or def if unset.
func (c ContentItem) Dwell(def time.Duration) time.Duration {
	if c.Duration <= 0 {
		return def
	}
	return time.Duration(c.Duration * float64(time.Second))
}

func (k Kind) Valid() bool {
	switch k {
	case KindVideo, KindImage, KindYouTube:
		return true
	}
	return false
}

func (l Layout) Valid() bool {
	switch l {
	case LayoutAll, LayoutSidebar, LayoutVertical, LayoutPortrait, LayoutStripe, LayoutFullscreen:
		return true
	}
	return false
}

// IDs returns the ordered id list used to detect content changes.
func IDs(items []ContentItem) []string {
	return lo.Map(items, func(item ContentItem, _ int) string { return item.ID })
}

// AdIDs is IDs for the ad pool.
func AdIDs(ads []AdItem) []string {
	return lo.Map(ads, func(ad AdItem, _ int) string { return ad.ID })
}

// SameIDs reports whether both lists carry the same ids in the same order.
func SameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Key joins an id list into a comparable identity.
func Key(ids []string) string {
	return strings.Join(ids, "\x1f")
}

// SetKey is Key for lists whose order carries no meaning.
func SetKey(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return Key(sorted)
}

// IndexOf returns the position of id in items, or -1.
func IndexOf(items []ContentItem, id string) int {
	_, idx, ok := lo.FindIndexOf(items, func(item ContentItem) bool { return item.ID == id })
	if !ok {
		return -1
	}
	return idx
}

// Eligible returns the ads that can run in the side panel. Stripe ads belong
// to the ticker band and never enter a cycle.
func Eligible(pool []AdItem) []AdItem {
	return lo.Filter(pool, func(ad AdItem, _ int) bool { return ad.Layout != LayoutStripe })
}
