package joingroup

// SourceProducer is the capability an upstream producer exposes to a
// Target so the target can postpone an offer and later acquire it
// atomically alongside offers from other targets (spec.md §4.B).
//
// Reserve must be non-blocking and side-effect-free beyond marking the
// message as held: on true, the producer guarantees the message stays
// available until Release or Consume is called for the same header.
// Consume atomically transfers ownership on success. Release drops a
// prior reservation, restoring the message to its normal consumable
// state for the original producer.
//
// Consume may fail by returning an error; during non-greedy acquisition the
// coordinator treats such an error, or a Consume that reports
// accepted=false after a successful Reserve, as a condition that faults the
// owning block. Release has no return value, so a failed release cannot be
// reported.
type SourceProducer[T any] interface {
	Reserve(h MessageHeader) bool
	Consume(h MessageHeader) (payload T, accepted bool, err error)
	Release(h MessageHeader)
}
