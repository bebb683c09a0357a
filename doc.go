// Package joingroup implements the grouping half of a dataflow-block
// coordination engine: blocks that synchronize messages arriving on N
// parallel input targets and emit combined results downstream.
//
// Two block kinds are provided:
//
//   - [NewJoinMany] waits until each of its N targets has supplied exactly
//     one message, then emits those N messages as an ordered tuple.
//   - [NewBatchedJoinMany] accepts messages independently on N targets
//     until the combined count reaches a configured batch size, then
//     emits a tuple of per-target sequences.
//
// # Quick Start
//
//	j, _ := joingroup.NewJoinMany[int](2, joingroup.Options{})
//	j.Target(0).Post(1)
//	j.Target(1).Post(2)
//	j.Target(0).Complete()
//	j.Target(1).Complete()
//	<-j.Done() // the default executor assembles groups on a worker goroutine
//	tuple, _ := j.TryReceive(nil) // []int{1, 2}
//
// # Coordination model
//
// Every block exposes an array of [TargetEndpoint] values implementing the
// offer/postpone/accept protocol, and a source surface (LinkTo,
// TryReceive, TryReceiveAll, OutputCount, Done/Err) for consuming emitted
// groups. Upstream producers that want to postpone an offer rather than
// hand over a payload immediately implement [SourceProducer]; blocks
// themselves implement the same reserve/consume/release protocol on their
// output so blocks can be chained.
//
// Acceptance policy is controlled by [Options.Greedy]: greedy targets
// accept into a per-target queue as soon as an offer arrives; non-greedy
// targets postpone every offer and acquire a full group atomically once
// every target has something available.
//
// The block owns no threads directly: it schedules input- and
// output-processing work onto an [Options.Executor], defaulting to a
// shared worker pool.
package joingroup
