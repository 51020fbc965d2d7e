package player

import (
	"github.com/samber/lo"

	"tvcontrol/internal/playback"
	"tvcontrol/internal/protocol"
)

// StatusOf converts the playback record and request queue to the
// status_update payload.
func StatusOf(st playback.State, queue []playback.Request) protocol.Status {
	status := protocol.Status{
		IsPlaying:    st.IsPlaying,
		CurrentIndex: st.CurrentIndex,
		IsMuted:      st.IsMuted,
		IsShuffle:    st.IsShuffle,
		ShowTicker:   st.ShowTicker,
		Volume:       st.Volume,
		LayoutMode:   string(st.LayoutMode),
		Queue:        QueueOf(queue),
	}
	if id, ok := st.CurrentID.Get(); ok {
		status.CurrentID = &id
	}
	return status
}

func QueueOf(queue []playback.Request) []protocol.QueueEntry {
	return lo.Map(queue, func(r playback.Request, _ int) protocol.QueueEntry {
		return protocol.QueueEntry{ID: r.ID, Title: r.Title}
	})
}
