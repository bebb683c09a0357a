package joingroup

// BatchedJoinMany accepts messages independently on N input targets until
// the combined count across all targets reaches batchSize (or until
// completion), then emits a length-N tuple of per-target sequences
// captured since the previous batch (spec.md §4.F, BatchedJoinAssembler).
//
// Non-greedy mode and BoundedCapacity are not supported: constructing with
// either returns an invalid-argument error naming the offending option.
type BatchedJoinMany[T any] struct {
	targets []*TargetEndpoint[T]
	source  *sourceCore[[][]T]
	coord   *sharedCoordinator[T, [][]T]
}

// NewBatchedJoinMany constructs a BatchedJoinMany block with n input
// targets and the given batch size. n and batchSize must each be at least
// 1.
func NewBatchedJoinMany[T any](n, batchSize int, opts Options) (*BatchedJoinMany[T], error) {
	if n < 1 {
		return nil, invalidArgumentf("BatchedJoinMany requires at least 1 target, got %d", n)
	}
	if batchSize < 1 {
		return nil, invalidArgumentf("BatchedJoinMany requires a batch size >= 1, got %d", batchSize)
	}
	if opts.Greedy != nil && !*opts.Greedy {
		return nil, invalidArgumentf("BatchedJoinMany does not support Greedy=false")
	}
	if opts.BoundedCapacity != 0 && opts.BoundedCapacity != Unbounded {
		return nil, invalidArgumentf("BatchedJoinMany does not support BoundedCapacity")
	}

	r := opts.resolve("BatchedJoinMany")

	assembler := newBatchedJoinAssembler[T](n, batchSize)
	coord := newSharedCoordinator[T, [][]T](n, r, assembler)
	src := newSourceCore[[][]T](r.executor, Unbounded)
	coord.attachSource(src)

	b := &BatchedJoinMany[T]{targets: coord.targets, source: src, coord: coord}

	if r.ctx != nil {
		select {
		case <-r.ctx.Done():
			coord.observeCancellation()
		default:
		}
	}

	return b, nil
}

// Target returns the i-th input endpoint, 0 <= i < N.
func (b *BatchedJoinMany[T]) Target(i int) *TargetEndpoint[T] { return b.targets[i] }

// NumTargets reports N.
func (b *BatchedJoinMany[T]) NumTargets() int { return len(b.targets) }

// LinkTo registers a downstream target for emitted batches.
func (b *BatchedJoinMany[T]) LinkTo(target Target[[][]T], opts LinkOptions[[][]T]) Link {
	return b.source.LinkTo(target, opts)
}

// TryReceive synchronously pops the head batch if it matches filter.
func (b *BatchedJoinMany[T]) TryReceive(filter func([][]T) bool) ([][]T, bool) {
	return b.source.TryReceive(filter)
}

// TryReceiveAll atomically drains every queued batch.
func (b *BatchedJoinMany[T]) TryReceiveAll() ([][][]T, bool) {
	return b.source.TryReceiveAll()
}

// OutputCount reports how many assembled batches are queued.
func (b *BatchedJoinMany[T]) OutputCount() int { return b.source.OutputCount() }

// Done returns a channel closed once the block reaches a terminal state.
func (b *BatchedJoinMany[T]) Done() <-chan struct{} { return b.source.Completion().Done() }

// Err returns the block's terminal resolution; see completionFuture.Err.
func (b *BatchedJoinMany[T]) Err() error { return b.source.Completion().Err() }
