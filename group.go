package joingroup

// groupAssembler is the pluggable policy behind SharedCoordinator's assembly
// loop (spec.md §4.F). T is the payload type accepted on every target; U is
// the type of one emitted group.
//
// step is called repeatedly from the greedy assembly loop. It inspects and
// drains whatever it needs from targets itself, since Join and BatchedJoin
// disagree about how many payloads make up one step: Join needs exactly one
// from every target, BatchedJoin drains a single payload from whichever
// target has one. progressed reports whether any payload was consumed, so
// the coordinator knows whether to keep looping; emitted reports whether
// emission holds a complete group.
//
// nonGreedyAssemble is only invoked by assemblers that support non-greedy
// mode, after the coordinator has already atomically reserved and consumed
// one payload per target.
//
// flush is called from terminal evaluation whenever a decliningPermanently
// block with drained queues completes normally (not on fault or
// cancellation), to give the assembler a chance to emit a final partial
// group. It can be called more than once and reports ok=false when there is
// nothing to emit.
type groupAssembler[T, U any] interface {
	step(targets []*TargetEndpoint[T]) (emission U, emitted bool, progressed bool)
	nonGreedyAssemble(payloads []T) (emission U, ok bool)
	supportsNonGreedy() bool
	flush() (emission U, ok bool)

	// requiresAllTargets reports whether one target going declining with no
	// pending work makes further groups impossible (true for Join, since
	// every group needs all N targets; false for BatchedJoin, whose targets
	// contribute independently).
	requiresAllTargets() bool
}

// joinAssembler implements the one-tuple-per-group policy: it waits until
// every target has at least one queued or postponed payload, then emits the
// N payloads together as an ordered tuple.
type joinAssembler[T any] struct {
	n int
}

func newJoinAssembler[T any](n int) *joinAssembler[T] {
	return &joinAssembler[T]{n: n}
}

func (a *joinAssembler[T]) step(targets []*TargetEndpoint[T]) (emission []T, emitted bool, progressed bool) {
	for _, t := range targets {
		if t.greedyEmpty() {
			return nil, false, false
		}
	}
	tuple := make([]T, a.n)
	for i, t := range targets {
		v, ok := t.greedyPop()
		if !ok {
			// Another goroutine could not race us here: incomingLock is held
			// for the whole step by the caller. Treat as a contract bug.
			panic("joingroup: target queue emptied under incomingLock")
		}
		tuple[i] = v
	}
	return tuple, true, true
}

func (a *joinAssembler[T]) nonGreedyAssemble(payloads []T) ([]T, bool) {
	tuple := make([]T, len(payloads))
	copy(tuple, payloads)
	return tuple, true
}

func (a *joinAssembler[T]) supportsNonGreedy() bool { return true }

func (a *joinAssembler[T]) flush() ([]T, bool) { return nil, false }

func (a *joinAssembler[T]) requiresAllTargets() bool { return true }

// batchedJoinAssembler implements the accumulate-until-batchSize policy. It
// only ever runs in greedy mode (supportsNonGreedy returns false).
type batchedJoinAssembler[T any] struct {
	n         int
	batchSize int
	acc       [][]T
	total     int
}

func newBatchedJoinAssembler[T any](n, batchSize int) *batchedJoinAssembler[T] {
	return &batchedJoinAssembler[T]{n: n, batchSize: batchSize, acc: make([][]T, n)}
}

func (a *batchedJoinAssembler[T]) step(targets []*TargetEndpoint[T]) (emission [][]T, emitted bool, progressed bool) {
	for _, t := range targets {
		if v, ok := t.greedyPop(); ok {
			i := t.Index()
			a.acc[i] = append(a.acc[i], v)
			a.total++
			if a.total == a.batchSize {
				return a.drain(), true, true
			}
			return nil, false, true
		}
	}
	return nil, false, false
}

func (a *batchedJoinAssembler[T]) nonGreedyAssemble([]T) ([][]T, bool) {
	// BatchedJoinMany forbids non-greedy construction; never reached.
	return nil, false
}

func (a *batchedJoinAssembler[T]) supportsNonGreedy() bool { return false }

func (a *batchedJoinAssembler[T]) flush() ([][]T, bool) {
	if a.total == 0 {
		return nil, false
	}
	return a.drain(), true
}

func (a *batchedJoinAssembler[T]) requiresAllTargets() bool { return false }

// drain snapshots the current accumulators as the emission and resets them.
func (a *batchedJoinAssembler[T]) drain() [][]T {
	out := make([][]T, a.n)
	for i, s := range a.acc {
		out[i] = s
	}
	a.acc = make([][]T, a.n)
	a.total = 0
	return out
}
