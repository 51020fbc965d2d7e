package media

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// RawItem is a playlist entry as the content service sends it. Ads merged
// into the playlist by the server carry IsAd or an advertiser id.
type RawItem struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Type         string  `json:"type"`
	URL          string  `json:"url"`
	Thumbnail    string  `json:"thumbnail,omitempty"`
	Duration     float64 `json:"duration"`
	IsAd         bool    `json:"isAd,omitempty"`
	AdvertiserID string  `json:"advertiserId,omitempty"`
	Layout       string  `json:"layout,omitempty"`
}

// RawAdvertiser is one entry of the advertisers response.
type RawAdvertiser struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Media []RawItem `json:"media"`
}

// NormalizeContent turns a raw playlist into the content list: ads and
// unplayable entries are dropped, ids are deduplicated keeping the first
// occurrence and images without a duration get imageDuration.
func NormalizeContent(raw []RawItem, imageDuration time.Duration) []ContentItem {
	seen := make(map[string]struct{}, len(raw))
	items := make([]ContentItem, 0, len(raw))
	for _, r := range raw {
		if r.IsAd || r.AdvertiserID != "" {
			continue
		}
		item, ok := toContent(r)
		if !ok {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		if item.Type == KindImage && item.Duration <= 0 {
			item.Duration = imageDuration.Seconds()
		}
		items = append(items, item)
	}
	return items
}

// NormalizeAds flattens the advertisers response into the ad pool.
func NormalizeAds(advertisers []RawAdvertiser) []AdItem {
	seen := make(map[string]struct{})
	var pool []AdItem
	for _, adv := range advertisers {
		for _, r := range adv.Media {
			item, ok := toContent(r)
			if !ok {
				continue
			}
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}

			layout := Layout(strings.ToLower(r.Layout))
			if !layout.Valid() {
				layout = LayoutAll
			}
			owner := r.AdvertiserID
			if owner == "" {
				owner = adv.ID
			}
			pool = append(pool, AdItem{ContentItem: item, Layout: layout, AdvertiserID: owner})
		}
	}
	return pool
}

func toContent(r RawItem) (ContentItem, bool) {
	id := strings.TrimSpace(r.ID)
	url := strings.TrimSpace(r.URL)
	if id == "" || url == "" {
		return ContentItem{}, false
	}
	kind := Kind(strings.ToLower(r.Type))
	if kind == "" {
		kind = guessKind(url)
	}
	if !kind.Valid() {
		return ContentItem{}, false
	}
	return ContentItem{
		ID:        id,
		Title:     lo.Ternary(r.Title != "", r.Title, id),
		Type:      kind,
		URL:       url,
		Thumbnail: r.Thumbnail,
		Duration:  lo.Max([]float64{r.Duration, 0}),
	}, true
}

func guessKind(url string) Kind {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "youtube.com/") || strings.Contains(lower, "youtu.be/"):
		return KindYouTube
	case lo.SomeBy([]string{".jpg", ".jpeg", ".png", ".gif", ".webp"}, func(ext string) bool {
		return strings.HasSuffix(lower, ext)
	}):
		return KindImage
	default:
		return KindVideo
	}
}
