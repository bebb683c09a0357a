package joingroup

import (
	"sync"

	"github.com/joingroup/joingroup/internal/executor"
)

// queuedItem is one emitted group awaiting delivery to a downstream link.
type queuedItem[U any] struct {
	header MessageHeader
	value  U
}

// link is one registered downstream connection (spec.md §4.E).
type link[U any] struct {
	target              Target[U]
	filter              func(U) bool
	maxMessages         int // Unbounded if < 0
	sent                int
	propagateCompletion bool
	unlinked             bool
}

func (l *link[U]) accepts(v U) bool {
	if l.unlinked {
		return false
	}
	if l.maxMessages >= 0 && l.sent >= l.maxMessages {
		return false
	}
	if l.filter != nil && !l.filter(v) {
		return false
	}
	return true
}

// Link is a handle to a registered downstream connection. Calling Unlink
// stops further offers through it; already in-flight offers are
// unaffected.
type Link struct {
	unlink func()
}

// Unlink disconnects the link. Safe to call more than once.
func (l Link) Unlink() {
	if l.unlink != nil {
		l.unlink()
	}
}

// LinkOptions configures a single LinkTo call.
type LinkOptions[U any] struct {
	// Filter, if non-nil, is consulted before offering each item through
	// this link; items it rejects are offered to the next link instead.
	Filter func(U) bool
	// MaxMessages caps how many items this link will ever accept. Zero or
	// negative means unbounded.
	MaxMessages int
	// PropagateCompletion, if true, calls Complete/Fault on the downstream
	// target when this source completes or faults.
	PropagateCompletion bool
}

// completionFuture is a single-shot, multi-waiter resolution signal,
// matching spec.md §6 item 3.
type completionFuture struct {
	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	err    error
	cancel bool
}

func newCompletionFuture() *completionFuture {
	return &completionFuture{done: make(chan struct{})}
}

func (f *completionFuture) resolve(err error, cancelled bool) {
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		f.cancel = cancelled
		f.mu.Unlock()
		close(f.done)
	})
}

// Done returns a channel that is closed once the block reaches a terminal
// state.
func (f *completionFuture) Done() <-chan struct{} { return f.done }

// Err returns the resolution: nil for normal completion, ErrCancelled for
// cancellation, or an aggregate error (see errors.go) for a fault. It
// blocks until the future resolves.
func (f *completionFuture) Err() error {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// sourceCore is the output half of a block (spec.md §4.E): an ordered
// queue of emitted groups, a registry of downstream links, and the
// reserve/consume/release protocol that lets a downstream non-greedy
// target acquire a queued group atomically.
type sourceCore[U any] struct {
	headers headerGenerator
	exec    executor.Executor
	job     *executor.SerialJob

	mu              sync.Mutex
	queue           []queuedItem[U]
	links           []*link[U]
	reservedHeader  MessageHeader
	reservedLink    *link[U]
	faulted              bool
	completedFlag        bool
	completionPropagated bool
	boundedCapacity      int // Unbounded if < 0

	// onItemRemoved notifies the owning coordinator that an output slot
	// freed up, so it can resume producing groups once BoundedCapacity
	// had paused it.
	onItemRemoved func()

	completion *completionFuture
}

func newSourceCore[U any](exec executor.Executor, boundedCapacity int) *sourceCore[U] {
	s := &sourceCore[U]{exec: exec, completion: newCompletionFuture(), boundedCapacity: boundedCapacity}
	s.job = executor.NewSerialJob(exec, s.runOutputProcessing)
	return s
}

// atCapacity reports whether the output queue is at or above
// BoundedCapacity and should not accept another emitted group yet.
func (s *sourceCore[U]) atCapacity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundedCapacity >= 0 && len(s.queue) >= s.boundedCapacity
}

func (s *sourceCore[U]) notifyItemRemoved() {
	if s.onItemRemoved != nil {
		s.onItemRemoved()
	}
}

// LinkTo registers a downstream target. The returned Link unlinks it.
func (s *sourceCore[U]) LinkTo(target Target[U], opts LinkOptions[U]) Link {
	maxMessages := opts.MaxMessages
	if maxMessages == 0 {
		maxMessages = -1
	}
	ln := &link[U]{
		target:              target,
		filter:              opts.Filter,
		maxMessages:          maxMessages,
		propagateCompletion: opts.PropagateCompletion,
	}

	s.mu.Lock()
	s.links = append(s.links, ln)
	s.mu.Unlock()

	s.job.Kick()

	return Link{unlink: func() {
		s.mu.Lock()
		ln.unlinked = true
		s.mu.Unlock()
	}}
}

// TryReceive synchronously pops the head item if it matches filter (nil
// filter matches anything). It reports false if the queue is empty or the
// head does not match.
func (s *sourceCore[U]) TryReceive(filter func(U) bool) (item U, ok bool) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		var zero U
		return zero, false
	}
	head := s.queue[0]
	if filter != nil && !filter(head.value) {
		s.mu.Unlock()
		var zero U
		return zero, false
	}
	if s.reservedHeader == head.header {
		s.mu.Unlock()
		var zero U
		return zero, false
	}
	s.queue = s.queue[1:]
	s.mu.Unlock()
	s.notifyItemRemoved()
	return head.value, true
}

// TryReceiveAll atomically drains every queued item not currently
// reserved by a pending downstream acquisition.
func (s *sourceCore[U]) TryReceiveAll() (items []U, ok bool) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return nil, false
	}
	out := make([]U, 0, len(s.queue))
	var remaining []queuedItem[U]
	for _, it := range s.queue {
		if it.header == s.reservedHeader {
			remaining = append(remaining, it)
			continue
		}
		out = append(out, it.value)
	}
	s.queue = remaining
	s.mu.Unlock()
	if len(out) == 0 {
		return nil, false
	}
	s.notifyItemRemoved()
	return out, true
}

// OutputCount reports how many groups are currently queued.
func (s *sourceCore[U]) OutputCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Completion returns the block's single-shot terminal signal.
func (s *sourceCore[U]) Completion() *completionFuture { return s.completion }

// addMessage enqueues item with a freshly assigned header and kicks the
// output-processing job.
func (s *sourceCore[U]) addMessage(item U) {
	s.mu.Lock()
	if s.faulted || s.completedFlag {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, queuedItem[U]{header: s.headers.next(), value: item})
	s.mu.Unlock()
	s.job.Kick()
}

// complete marks the source as done producing. The block's own completion
// resolves immediately: spec.md's single-shot completion awaitable
// signals that the block is done assembling groups, independent of
// whether a downstream consumer has drained the output queue yet (callers
// may still TryReceive/TryReceiveAll after completion). The output job
// keeps running so any linked targets still get offered what remains and,
// once the queue empties, learn about completion themselves.
func (s *sourceCore[U]) complete() {
	s.mu.Lock()
	s.completedFlag = true
	s.mu.Unlock()
	s.completion.resolve(nil, false)
	s.job.Kick()
}

// fault discards the queue and resolves completion as faulted.
func (s *sourceCore[U]) fault(err error) {
	s.mu.Lock()
	s.faulted = true
	s.queue = nil
	links := append([]*link[U]{}, s.links...)
	s.mu.Unlock()

	for _, ln := range links {
		if ln.propagateCompletion {
			ln.target.Fault(err)
		}
	}

	cancelled := err == ErrCancelled
	s.completion.resolve(err, cancelled)
}

// runOutputProcessing offers the queue head to linked targets in
// registration order until it is accepted, postponed (at most one
// reservation outstanding), or no link can currently take it.
func (s *sourceCore[U]) runOutputProcessing() {
	for {
		s.mu.Lock()
		if s.faulted {
			s.mu.Unlock()
			return
		}
		if s.reservedHeader.Valid() {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			completed := s.completedFlag
			alreadyPropagated := s.completionPropagated
			if completed {
				s.completionPropagated = true
			}
			s.mu.Unlock()
			if completed && !alreadyPropagated {
				s.propagateCompletionToLinks()
			}
			return
		}
		head := s.queue[0]
		links := append([]*link[U]{}, s.links...)
		s.mu.Unlock()

		offered := false
		for _, ln := range links {
			if !ln.accepts(head.value) {
				continue
			}
			producer := &linkProducer[U]{source: s, link: ln}
			decision, err := ln.target.OfferMessage(head.header, head.value, producer, false)
			if err != nil {
				continue
			}
			switch decision {
			case Accepted:
				s.mu.Lock()
				if len(s.queue) > 0 && s.queue[0].header == head.header {
					s.queue = s.queue[1:]
				}
				s.mu.Unlock()
				ln.sent++
				offered = true
				s.notifyItemRemoved()
			case Postponed:
				s.mu.Lock()
				s.reservedHeader = head.header
				s.reservedLink = ln
				s.mu.Unlock()
				return
			}
			if offered {
				break
			}
		}

		if !offered {
			return
		}
	}
}

// propagateCompletionToLinks notifies every link that asked for
// PropagateCompletion once the queue has fully drained after complete().
func (s *sourceCore[U]) propagateCompletionToLinks() {
	s.mu.Lock()
	links := append([]*link[U]{}, s.links...)
	s.mu.Unlock()
	for _, ln := range links {
		if ln.propagateCompletion {
			ln.target.Complete()
		}
	}
}

// reserveMessage is the producer-side Reserve half of the downstream
// protocol: it succeeds only for the single outstanding reservation
// belonging to ln and header.
func (s *sourceCore[U]) reserveMessage(h MessageHeader, ln *link[U]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reservedHeader == h && s.reservedLink == ln
}

// consumeMessage transfers ownership of the reserved item to ln, resuming
// the output-processing job afterwards.
func (s *sourceCore[U]) consumeMessage(h MessageHeader, ln *link[U]) (value U, accepted bool) {
	s.mu.Lock()
	if s.reservedHeader != h || s.reservedLink != ln {
		s.mu.Unlock()
		var zero U
		return zero, false
	}
	if len(s.queue) == 0 || s.queue[0].header != h {
		s.mu.Unlock()
		var zero U
		return zero, false
	}
	v := s.queue[0].value
	s.queue = s.queue[1:]
	s.reservedHeader = MessageHeader{}
	s.reservedLink = nil
	ln.sent++
	s.mu.Unlock()
	s.job.Kick()
	s.notifyItemRemoved()
	return v, true
}

// releaseReservation drops ln's pending reservation on header, restoring
// the item to the head of the queue for re-offering.
func (s *sourceCore[U]) releaseReservation(h MessageHeader, ln *link[U]) {
	s.mu.Lock()
	if s.reservedHeader == h && s.reservedLink == ln {
		s.reservedHeader = MessageHeader{}
		s.reservedLink = nil
	}
	s.mu.Unlock()
	s.job.Kick()
}

// linkProducer adapts sourceCore's reserve/consume/release trio to the
// SourceProducer[U] contract a non-greedy downstream target needs, one
// instance per offer so each carries its own link identity.
type linkProducer[U any] struct {
	source *sourceCore[U]
	link   *link[U]
}

func (p *linkProducer[U]) Reserve(h MessageHeader) bool {
	return p.source.reserveMessage(h, p.link)
}

func (p *linkProducer[U]) Consume(h MessageHeader) (U, bool, error) {
	v, ok := p.source.consumeMessage(h, p.link)
	return v, ok, nil
}

func (p *linkProducer[U]) Release(h MessageHeader) {
	p.source.releaseReservation(h, p.link)
}
