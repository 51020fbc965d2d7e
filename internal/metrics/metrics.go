// Package metrics registers the prometheus collectors shared by the hub and
// the player.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Members = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tvcontrol",
		Name:      "channel_members",
		Help:      "Connected channel members by role.",
	}, []string{"role"})

	Broadcasts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tvcontrol",
		Name:      "channel_broadcasts_total",
		Help:      "Broadcast frames relayed by the hub, by event.",
	}, []string{"event"})

	DroppedFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tvcontrol",
		Name:      "channel_dropped_frames_total",
		Help:      "Frames dropped because a member's send buffer was full.",
	})

	MalformedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tvcontrol",
		Name:      "malformed_messages_total",
		Help:      "Inbound messages ignored at the channel boundary, by role.",
	}, []string{"role"})

	Advances = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tvcontrol",
		Name:      "player_advances_total",
		Help:      "Content item changes by selection source.",
	}, []string{"source"})

	Impressions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tvcontrol",
		Name:      "player_ad_impressions_total",
		Help:      "Ads put on screen, by layout.",
	}, []string{"layout"})

	FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tvcontrol",
		Name:      "content_fetch_errors_total",
		Help:      "Failed calls to the content service, by endpoint.",
	}, []string{"endpoint"})
)

func init() {
	prometheus.MustRegister(Members, Broadcasts, DroppedFrames, MalformedMessages, Advances, Impressions, FetchErrors)
}
