package joingroup

import (
	"context"
	"sync"

	"github.com/joingroup/joingroup/internal/executor"
)

// coordinatorHandle is the narrow view of sharedCoordinator that a
// TargetEndpoint needs. It is independent of the coordinator's output type
// U, so a TargetEndpoint[T] can hold one without itself being parameterised
// over U.
type coordinatorHandle interface {
	greedy() bool
	isDecliningPermanently() bool
	kick()
	reportException(err error)
	declinePermanently()
}

// sharedCoordinator implements the algorithm of spec.md §4.D: it owns
// incomingLock, decides when a group can be assembled via its
// groupAssembler, and drives the input-processing job.
type sharedCoordinator[T, U any] struct {
	targets   []*TargetEndpoint[T]
	source    *sourceCore[U]
	assembler groupAssembler[T, U]

	isGreedy           bool
	maxNumberOfGroups  int64 // Unbounded if < 0
	maxMessagesPerTask int   // Unbounded if < 0
	ctx                context.Context
	logger             Logger
	name               string

	mu                   sync.Mutex // incomingLock
	decliningPermanently bool
	hasExceptions        bool
	groupsCreated        int64
	exceptionBuffer      []error
	cancelled            bool

	job *executor.SerialJob
}

func newSharedCoordinator[T, U any](
	n int,
	opts resolved,
	assembler groupAssembler[T, U],
) *sharedCoordinator[T, U] {
	c := &sharedCoordinator[T, U]{
		assembler:          assembler,
		isGreedy:           opts.greedy,
		maxNumberOfGroups:  opts.maxNumberOfGroups,
		maxMessagesPerTask: opts.maxMessagesPerTask,
		ctx:                opts.ctx,
		logger:             opts.logger,
		name:               opts.name,
	}
	c.targets = make([]*TargetEndpoint[T], n)
	for i := range c.targets {
		c.targets[i] = newTargetEndpoint[T](i, c)
	}
	c.job = executor.NewSerialJob(opts.executor, c.runInputProcessing)
	return c
}

func (c *sharedCoordinator[T, U]) greedy() bool { return c.isGreedy }

func (c *sharedCoordinator[T, U]) isDecliningPermanently() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decliningPermanently
}

func (c *sharedCoordinator[T, U]) kick() { c.job.Kick() }

func (c *sharedCoordinator[T, U]) reportException(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.hasExceptions = true
	c.exceptionBuffer = append(c.exceptionBuffer, err)
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.Error("joingroup: producer or target error", "block", c.name, "error", err)
	}
}

func (c *sharedCoordinator[T, U]) declinePermanently() {
	c.mu.Lock()
	c.decliningPermanently = true
	c.mu.Unlock()
}

// attachSource wires the block's SourceCore, completing two-phase
// construction (targets need a coordinatorHandle before the source, which
// in turn needs the coordinator, can exist).
func (c *sharedCoordinator[T, U]) attachSource(s *sourceCore[U]) {
	c.source = s
	s.onItemRemoved = c.kick
}

// runInputProcessing is the body of the input-processing job described in
// spec.md §4.D. It is only ever invoked by c.job, which guarantees at most
// one concurrent run.
func (c *sharedCoordinator[T, U]) runInputProcessing() {
	if c.observeCancellation() {
		return
	}

	attempts := 0
	for {
		_, progressed := c.tryAssembleOne()
		if !progressed {
			break
		}
		attempts++
		if c.maxMessagesPerTask > 0 && attempts >= c.maxMessagesPerTask {
			c.kick()
			break
		}
	}

	c.evaluateTerminal()
}

// tryAssembleOne runs exactly one assembly attempt (greedy or non-greedy)
// under incomingLock and hands any emission to the source.
func (c *sharedCoordinator[T, U]) tryAssembleOne() (emitted bool, progressed bool) {
	c.mu.Lock()

	if c.decliningPermanently {
		c.mu.Unlock()
		return false, false
	}

	if c.maxNumberOfGroups >= 0 && c.groupsCreated >= c.maxNumberOfGroups {
		c.decliningPermanently = true
		c.mu.Unlock()
		return false, false
	}

	if c.source.atCapacity() {
		c.mu.Unlock()
		return false, false
	}

	var emission U
	var ok bool
	if c.isGreedy {
		emission, ok, progressed = c.assembler.step(c.targets)
	} else {
		emission, ok, progressed = c.tryNonGreedyAssemble()
	}

	if !ok {
		c.mu.Unlock()
		return false, progressed
	}

	c.groupsCreated++
	reachedMax := c.maxNumberOfGroups >= 0 && c.groupsCreated >= c.maxNumberOfGroups
	if reachedMax {
		c.decliningPermanently = true
	}
	c.mu.Unlock()

	c.source.addMessage(emission)
	return true, true
}

// tryNonGreedyAssemble implements the two-phase reserve/consume protocol of
// spec.md §4.D. Caller holds incomingLock.
func (c *sharedCoordinator[T, U]) tryNonGreedyAssemble() (emission U, ok bool, progressed bool) {
	offers := make([]postponedOffer[T], len(c.targets))
	for i, t := range c.targets {
		o, has := t.oldestPostponed()
		if !has {
			var zero U
			return zero, false, false
		}
		offers[i] = o
	}

	reserved := make([]bool, len(offers))
	failedAt := -1
	for i, o := range offers {
		if o.producer.Reserve(o.header) {
			reserved[i] = true
			continue
		}
		failedAt = i
		break
	}

	if failedAt >= 0 {
		for i := failedAt - 1; i >= 0; i-- {
			if reserved[i] {
				offers[i].producer.Release(offers[i].header)
			}
		}
		// progressed = false: the same offers are still the oldest postponed
		// ones on every target, so retrying immediately would just fail the
		// same reserve again. Wait for the next external kick (a new offer,
		// a release elsewhere) instead of busy-looping.
		var zero U
		return zero, false, false
	}

	payloads := make([]T, len(offers))
	for i, o := range offers {
		got, accepted, err := o.producer.Consume(o.header)
		if err != nil {
			c.releaseFrom(offers, i)
			c.removeOffers(offers)
			c.faultLocked(producerFailedf(err, "consume during non-greedy join on target %d", i))
			var zero U
			return zero, false, true
		}
		if !accepted {
			c.releaseFrom(offers, i)
			c.removeOffers(offers)
			c.faultLocked(ErrProducerContractViolation)
			var zero U
			return zero, false, true
		}
		payloads[i] = got
	}

	c.removeOffers(offers)

	emission, ok = c.assembler.nonGreedyAssemble(payloads)
	return emission, ok, true
}

// removeOffers drops each offer from its target's postponed list once the
// attempt that picked them is resolved (consumed, released, or abandoned),
// so a later evaluateTerminal sweep never re-releases the same offer.
func (c *sharedCoordinator[T, U]) removeOffers(offers []postponedOffer[T]) {
	for i, t := range c.targets {
		t.removePostponed(offers[i].header)
	}
}

// releaseFrom calls Release on every offer at index >= from, used when a
// later Consume in the sequential phase-2 loop fails: offers before it
// already transferred ownership and cannot be rolled back, but everything
// still reserved must give its reservation back.
func (c *sharedCoordinator[T, U]) releaseFrom(offers []postponedOffer[T], from int) {
	for i := from; i < len(offers); i++ {
		offers[i].producer.Release(offers[i].header)
	}
}

// faultLocked records a fault while incomingLock is already held.
func (c *sharedCoordinator[T, U]) faultLocked(err error) {
	c.hasExceptions = true
	c.exceptionBuffer = append(c.exceptionBuffer, err)
	c.decliningPermanently = true
	if c.logger != nil {
		c.logger.Error("joingroup: block faulted", "block", c.name, "error", err)
	}
}

// observeCancellation checks the construction context and, if it has just
// fired, declines the block permanently. Returns true if the block is (now
// or already) cancelled-terminal.
func (c *sharedCoordinator[T, U]) observeCancellation() bool {
	if c.ctx == nil {
		return false
	}
	select {
	case <-c.ctx.Done():
	default:
		return false
	}

	c.mu.Lock()
	already := c.cancelled
	c.cancelled = true
	c.decliningPermanently = true
	c.mu.Unlock()

	if !already {
		for _, t := range c.targets {
			t.releaseAllPostponed()
		}
		c.evaluateTerminal()
	}
	return true
}

// evaluateTerminal implements the terminal-evaluation rules of spec.md
// §4.D, run after every input-processing iteration and after every
// complete/fault.
func (c *sharedCoordinator[T, U]) evaluateTerminal() {
	c.mu.Lock()

	if !c.decliningPermanently {
		if c.anyTargetBlocksFurtherGroups() || c.allTargetsDeclining() {
			c.decliningPermanently = true
		}
	}

	declining := c.decliningPermanently
	hasExceptions := c.hasExceptions
	cancelled := c.cancelled
	var aggregate error
	if hasExceptions {
		aggregate = aggregateFailure(c.exceptionBuffer)
	}
	c.mu.Unlock()

	if !declining {
		return
	}

	for _, t := range c.targets {
		t.releaseAllPostponed()
	}

	// Once decliningPermanently, tryAssembleOne never runs again, so for an
	// assembler that needs every target to contribute (Join), anything still
	// sitting in another target's greedy inputQueue can never be paired and
	// would otherwise hold allQueuesEmpty false forever. Discard it, the same
	// way releaseAllPostponed discards postponed offers above. BatchedJoin
	// (requiresAllTargets() == false) never leaves orphans this way — its
	// step pops one target at a time regardless of the others — so this is a
	// no-op for it in practice.
	if c.assembler.requiresAllTargets() {
		for _, t := range c.targets {
			if n := t.discardInputQueue(); n > 0 && c.logger != nil {
				c.logger.Debug("joingroup: discarding unassemblable queued payloads", "block", c.name, "target", t.Index(), "count", n)
			}
		}
	}

	// Cancellation resolves immediately per spec.md §4.D "drains nothing to
	// downstream": whatever sits in a greedy target's inputQueue is simply
	// abandoned rather than waited on. A prior fault still wins over it.
	if !cancelled && !c.allQueuesEmpty() {
		return
	}

	switch {
	case hasExceptions:
		c.source.fault(aggregate)
	case cancelled:
		c.source.fault(ErrCancelled)
	default:
		if emission, ok := c.assembler.flush(); ok {
			c.source.addMessage(emission)
		}
		c.source.complete()
	}
}

// anyTargetBlocksFurtherGroups reports whether some target has gone
// declining with no pending work in a way that makes further groups
// impossible. For Join, one drained-and-declining target is enough, since
// every group needs all N. For BatchedJoin, targets contribute
// independently, so this never fires early; the block only winds down once
// every target is declining (see allTargetsDeclining). Caller holds
// incomingLock.
func (c *sharedCoordinator[T, U]) anyTargetBlocksFurtherGroups() bool {
	if !c.assembler.requiresAllTargets() {
		return false
	}
	for _, t := range c.targets {
		if t.isDeclining() && !t.hasPendingWork() {
			return true
		}
	}
	return false
}

// allTargetsDeclining reports whether every target has gone declining,
// regardless of whether it still has pending work to drain. Once true, no
// new offers can ever arrive, so the block can start winding down as soon
// as whatever is still queued finishes draining. Caller holds
// incomingLock.
func (c *sharedCoordinator[T, U]) allTargetsDeclining() bool {
	for _, t := range c.targets {
		if !t.isDeclining() {
			return false
		}
	}
	return true
}

// allQueuesEmpty reports whether every target has no queued or postponed
// work left. Per spec.md §4.D this is the only condition (alongside
// decliningPermanently) the coordinator needs before telling source to
// complete — individual targets need not themselves be declining, e.g. once
// MaxNumberOfGroups is reached the block completes even though no target
// ever called Complete. On cancellation evaluateTerminal skips this check.
func (c *sharedCoordinator[T, U]) allQueuesEmpty() bool {
	for _, t := range c.targets {
		if t.hasPendingWork() {
			return false
		}
	}
	return true
}
