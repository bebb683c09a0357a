package joingroup

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Sentinel error kinds, matching spec.md §7. Use errors.Is against these;
// wrapped errors carry additional context via fmt.Errorf("%w: ...").
var (
	// ErrInvalidArgument covers N < 1, a batch size below 1, and option
	// combinations BatchedJoinMany forbids.
	ErrInvalidArgument = errors.New("joingroup: invalid argument")

	// ErrInvalidHeader covers OfferMessage called with header.ID() < 1, or
	// consumeToAccept=true with a nil producer.
	ErrInvalidHeader = errors.New("joingroup: invalid message header")

	// ErrProducerContractViolation is raised when a reserved message could
	// not be consumed during non-greedy acquisition.
	ErrProducerContractViolation = errors.New("joingroup: producer contract violation")

	// ErrProducerFailed wraps an error returned by a SourceProducer's
	// Consume. Reserve and Release have no error result, so their failures
	// are never reported through it.
	ErrProducerFailed = errors.New("joingroup: producer error")

	// ErrCancelled is the terminal state when the construction context is
	// cancelled and no exceptions have been recorded.
	ErrCancelled = errors.New("joingroup: cancelled")

	// ErrNotSupported covers per-target completion queries.
	ErrNotSupported = errors.New("joingroup: not supported")
)

// aggregateFailure combines zero or more causes into a single error value
// using go.uber.org/multierr, which preserves Unwrap() []error so errors.Is
// and errors.As still see through to the individual causes.
func aggregateFailure(causes []error) error {
	if len(causes) == 0 {
		return nil
	}
	return multierr.Combine(causes...)
}

func invalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func invalidHeaderf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidHeader, fmt.Sprintf(format, args...))
}

func producerFailedf(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrProducerFailed, fmt.Sprintf(format, args...), cause)
}
