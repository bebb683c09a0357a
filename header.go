package joingroup

import (
	"fmt"
	"sync/atomic"
)

// MessageHeader is an opaque, monotonically increasing identity for a
// message in transit through a single target. The zero value, 0, denotes
// "no header" and is never assigned to a real message. Headers are scoped
// to a (block, target) pair and need not be globally unique.
type MessageHeader struct {
	id int64
}

// NewMessageHeader wraps an externally generated positive identity. Callers
// implementing their own SourceProducer typically keep their own
// headerGenerator-equivalent and hand headers to targets through this.
func NewMessageHeader(id int64) MessageHeader { return MessageHeader{id: id} }

// ID returns the underlying positive identity, or 0 for the zero value.
func (h MessageHeader) ID() int64 { return h.id }

// Valid reports whether h identifies a real message (id >= 1).
func (h MessageHeader) Valid() bool { return h.id >= 1 }

func (h MessageHeader) String() string {
	if !h.Valid() {
		return "MessageHeader(none)"
	}
	return fmt.Sprintf("MessageHeader(%d)", h.id)
}

// headerGenerator produces a strictly increasing sequence of MessageHeader
// values for one (block, target) pair.
type headerGenerator struct {
	counter atomic.Int64
}

func (g *headerGenerator) next() MessageHeader {
	return MessageHeader{id: g.counter.Add(1)}
}
