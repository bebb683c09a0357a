package joinchan

import (
	"context"
	"time"
)

// pollInterval is how often Drain checks for new output once the source
// has nothing queued; the core engine has no blocking-wait primitive to
// hook into instead.
const pollInterval = 2 * time.Millisecond

// drainSource is the capability Drain needs from a block: its TryReceiveAll
// for atomic batches and its Done channel to know when to stop polling.
// joingroup.JoinMany and joingroup.BatchedJoinMany both satisfy it.
type drainSource[U any] interface {
	TryReceiveAll() ([]U, bool)
	Done() <-chan struct{}
}

// Drain copies every group out of source into the returned channel as it
// becomes available, closing the channel once ctx is cancelled or source's
// completion resolves and its queue has been fully drained.
func Drain[U any](ctx context.Context, source drainSource[U]) <-chan U {
	out := make(chan U)

	go func() {
		defer close(out)

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			if items, ok := source.TryReceiveAll(); ok {
				for _, it := range items {
					select {
					case out <- it:
					case <-ctx.Done():
						return
					}
				}
				continue
			}

			select {
			case <-ctx.Done():
				return
			case <-source.Done():
				if items, ok := source.TryReceiveAll(); ok {
					for _, it := range items {
						select {
						case out <- it:
						case <-ctx.Done():
							return
						}
					}
				}
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}
