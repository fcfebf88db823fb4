package dashboard

import (
	"context"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
)

// batchResolution is how often the Hub lets a fresh Snapshot through to its
// subscribers; snapshots produced faster than this are coalesced, keeping
// only the latest, exactly as root_view's batchify coalesces same-id
// ele-updates within a window.
const batchResolution = time.Millisecond * 20

// Hub fans one simulation's snapshot stream out to any number of
// websocket clients (server.go calls Subscribe once per incoming /ws
// request), throttling the shared source so a burst of Step() calls
// collapses to one update per batchResolution.
type Hub struct {
	throttled <-chan Snapshot
	fanout    chan chan Snapshot
	done      <-chan struct{}
}

// NewHub starts the throttle and fan-out goroutines over source, which a
// simulation driver feeds one Snapshot into per tick (or per however often
// it wants the dashboard refreshed). source is never read again once ctx
// is cancelled.
func NewHub(ctx context.Context, source <-chan Snapshot) *Hub {
	h := &Hub{
		throttled: batchify(ctx.Done(), source, batchResolution),
		fanout:    make(chan chan Snapshot),
		done:      ctx.Done(),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	var subscribers []chan Snapshot
	for {
		select {
		case <-h.done:
			for _, sub := range subscribers {
				close(sub)
			}
			return
		case sub := <-h.fanout:
			subscribers = append(subscribers, sub)
		case snap, ok := <-h.throttled:
			if !ok {
				for _, sub := range subscribers {
					close(sub)
				}
				return
			}
			for _, sub := range subscribers {
				select {
				case sub <- snap:
				default:
					// A slow subscriber misses a frame rather than stalling
					// the whole hub; the next snapshot supersedes it anyway.
				}
			}
		}
	}
}

// Subscribe returns a new channel receiving the snapshots published after
// the call, buffered by one so a slow first read doesn't immediately drop
// the opening frame; a snapshot is skipped while that buffer is still full.
func (h *Hub) Subscribe() <-chan Snapshot {
	sub := make(chan Snapshot, 1)
	select {
	case h.fanout <- sub:
	case <-h.done:
		close(sub)
	}
	return sub
}

// batchify drops Snapshots arriving faster than rate, always keeping the
// most recent, mirroring root_view.go's batchify but over a single
// overwrite-everything value instead of a map of keyed ele-updates. Unlike
// root_view.go (fed a continuous training stream), a simulation may tick
// slower than rate, so a ticker flushes the pending snapshot on its own
// rather than waiting on the next arrival.
func batchify(done <-chan struct{}, source <-chan Snapshot, rate time.Duration) <-chan Snapshot {
	output := make(chan Snapshot)
	in := channerics.OrDone(done, source)
	ticker := channerics.NewTicker(done, rate)

	go func() {
		defer close(output)

		var pending Snapshot
		have := false
		for {
			select {
			case <-done:
				return
			case snap, ok := <-in:
				if !ok {
					return
				}
				pending = snap
				have = true
			case <-ticker:
				if !have {
					break
				}
				select {
				case output <- pending:
					have = false
				case <-done:
					return
				}
			}
		}
	}()

	return output
}
