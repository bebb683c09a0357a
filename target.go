package joingroup

import "sync"

// Target is the contract an input endpoint exposes to upstream producers.
// *TargetEndpoint[T] implements it; downstream blocks link to an upstream
// Source[U] through whatever Target[U] they expose, which may be a
// TargetEndpoint belonging to an entirely different block.
type Target[T any] interface {
	OfferMessage(h MessageHeader, payload T, producer SourceProducer[T], consumeToAccept bool) (DecisionCode, error)
	Post(payload T) bool
	Complete()
	Fault(err error)
}

// postponedOffer is one entry of a TargetEndpoint's postponed map: an offer
// that was recorded but not yet consumed or released.
type postponedOffer[T any] struct {
	header   MessageHeader
	producer SourceProducer[T]
}

// TargetEndpoint is one of a block's N input ports (spec.md §4.C).
type TargetEndpoint[T any] struct {
	index   int
	headers headerGenerator

	coordinator coordinatorHandle

	mu         sync.Mutex
	declining  bool
	reason     CompletionReason
	faultCause error

	// greedy mode
	inputQueue []T

	// non-greedy mode
	postponed []postponedOffer[T]
}

func newTargetEndpoint[T any](index int, coordinator coordinatorHandle) *TargetEndpoint[T] {
	return &TargetEndpoint[T]{index: index, coordinator: coordinator}
}

// Index returns this endpoint's 0-based position within its block.
func (t *TargetEndpoint[T]) Index() int { return t.index }

// OfferMessage implements the offer/postpone/accept protocol of spec.md
// §4.C. It never blocks and never calls back into user code while holding
// t.mu for longer than a slice append; the heavier non-greedy acquisition
// work happens later, from the coordinator's input-processing job.
func (t *TargetEndpoint[T]) OfferMessage(h MessageHeader, payload T, producer SourceProducer[T], consumeToAccept bool) (DecisionCode, error) {
	if !h.Valid() {
		return Declined, invalidHeaderf("header id must be >= 1, got %d", h.ID())
	}
	if consumeToAccept && producer == nil {
		return Declined, invalidHeaderf("consumeToAccept requires a non-nil producer")
	}

	greedy := t.coordinator.greedy()

	// Checked before t.mu is taken: isDecliningPermanently acquires
	// incomingLock, and the input-processing job acquires incomingLock
	// before ever touching a target's t.mu (tryAssembleOne, evaluateTerminal).
	// Taking t.mu first here would invert that order and deadlock against it.
	if t.coordinator.isDecliningPermanently() {
		return Declined, nil
	}

	t.mu.Lock()
	if t.declining {
		t.mu.Unlock()
		return Declined, nil
	}

	if greedy && !consumeToAccept {
		t.inputQueue = append(t.inputQueue, payload)
		t.mu.Unlock()
		t.coordinator.kick()
		return Accepted, nil
	}

	if greedy && consumeToAccept {
		t.mu.Unlock()
		got, accepted, err := producer.Consume(h)
		if err != nil {
			return Declined, producerFailedf(err, "consume during greedy accept on target %d", t.index)
		}
		if !accepted {
			return Declined, nil
		}
		t.mu.Lock()
		t.inputQueue = append(t.inputQueue, got)
		t.mu.Unlock()
		t.coordinator.kick()
		return Accepted, nil
	}

	// Non-greedy: postpone, remember the producer for later atomic
	// acquisition, and let the coordinator decide when to try assembling.
	if producer == nil {
		t.mu.Unlock()
		return Declined, invalidHeaderf("non-greedy target requires a non-nil producer")
	}
	t.postponed = append(t.postponed, postponedOffer[T]{header: h, producer: producer})
	t.mu.Unlock()
	t.coordinator.kick()
	return Postponed, nil
}

// Post offers payload with a freshly generated header and no external
// producer, wrapping it in a trivial single-value producer so the offer
// behaves correctly whether the target is greedy or not. It returns true
// if the target accepted or postponed the offer, false if declined.
func (t *TargetEndpoint[T]) Post(payload T) bool {
	h := t.headers.next()
	vp := newValueProducer(payload)
	decision, _ := t.OfferMessage(h, payload, vp, false)
	return decision == Accepted || decision == Postponed
}

// Complete marks this endpoint as declining further offers and notifies
// the coordinator to re-evaluate terminal state.
func (t *TargetEndpoint[T]) Complete() {
	t.mu.Lock()
	if !t.declining {
		t.declining = true
		if t.reason == NoneReason {
			t.reason = CompletedNormally
		}
	}
	t.mu.Unlock()
	t.coordinator.kick()
}

// Fault marks this endpoint as declining, records err, and forces the
// whole block to decline.
func (t *TargetEndpoint[T]) Fault(err error) {
	t.mu.Lock()
	t.declining = true
	t.reason = Faulted
	t.faultCause = err
	t.mu.Unlock()
	t.coordinator.reportException(err)
	t.coordinator.declinePermanently()
	t.coordinator.kick()
}

// Completion is intentionally unsupported: per-target completion is not
// observable, only the block-wide completion awaitable is.
func (t *TargetEndpoint[T]) Completion() (<-chan struct{}, error) {
	return nil, ErrNotSupported
}

func (t *TargetEndpoint[T]) isDeclining() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.declining
}

// greedyEmpty reports whether inputQueue currently has nothing queued.
func (t *TargetEndpoint[T]) greedyEmpty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inputQueue) == 0
}

func (t *TargetEndpoint[T]) greedyPop() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inputQueue) == 0 {
		var zero T
		return zero, false
	}
	v := t.inputQueue[0]
	t.inputQueue = t.inputQueue[1:]
	return v, true
}

// oldestPostponed returns the oldest postponed offer without removing it.
func (t *TargetEndpoint[T]) oldestPostponed() (postponedOffer[T], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.postponed) == 0 {
		return postponedOffer[T]{}, false
	}
	return t.postponed[0], true
}

// removePostponed drops the entry matching header, preserving the order of
// the remaining entries.
func (t *TargetEndpoint[T]) removePostponed(h MessageHeader) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.postponed {
		if e.header == h {
			t.postponed = append(t.postponed[:i:i], t.postponed[i+1:]...)
			return
		}
	}
}

// hasPendingWork reports whether this target still has anything that could
// become part of a future group: a queued greedy payload or a postponed
// offer.
func (t *TargetEndpoint[T]) hasPendingWork() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inputQueue) > 0 || len(t.postponed) > 0
}

// discardInputQueue drops every payload still sitting in inputQueue and
// reports how many were dropped. Used once the block is decliningPermanently
// with an assembler that requires every target to contribute: at that point
// no further group will ever be assembled, so whatever is still queued here
// can never pair with anything and would otherwise block completion forever.
func (t *TargetEndpoint[T]) discardInputQueue() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.inputQueue)
	t.inputQueue = nil
	return n
}

// releaseAllPostponed releases every postponed offer's reservation-less
// hold on its producer and clears the queue. Used on cancellation and on
// transition to decliningPermanently.
func (t *TargetEndpoint[T]) releaseAllPostponed() {
	t.mu.Lock()
	offers := t.postponed
	t.postponed = nil
	t.mu.Unlock()
	for _, o := range offers {
		o.producer.Release(o.header)
	}
}

// valueProducer is a trivial SourceProducer wrapping a single local value,
// used by Post so non-greedy targets have a real producer to reserve and
// consume against even when there is no external upstream.
type valueProducer[T any] struct {
	mu       sync.Mutex
	value    T
	consumed bool
}

func newValueProducer[T any](v T) *valueProducer[T] {
	return &valueProducer[T]{value: v}
}

func (p *valueProducer[T]) Reserve(MessageHeader) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.consumed
}

func (p *valueProducer[T]) Consume(MessageHeader) (T, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		var zero T
		return zero, false, nil
	}
	p.consumed = true
	return p.value, true, nil
}

func (p *valueProducer[T]) Release(MessageHeader) {
	// Single-value local producer: nothing to restore, the value was never
	// handed to anyone else.
}
