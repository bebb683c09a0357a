package executor

// Sync runs jobs synchronously on the calling goroutine. It is the
// deterministic executor used by property and scenario tests: a Kick
// observably finishes its work before the call that triggered it returns,
// so tests never need to sleep or poll waiting for a background job.
type Sync struct{}

func (Sync) Go(job func()) { job() }
