package joingroup

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/joingroup/joingroup/config"
)

// Unbounded is the sentinel value for options expressed as a capacity or
// count: BoundedCapacity, MaxNumberOfGroups, MaxMessagesPerTask.
const Unbounded = -1

// Options configures a JoinMany or BatchedJoinMany block (spec.md §4.G).
// The zero value is valid and selects every default.
type Options struct {
	// Greedy selects the acceptance policy: true accepts messages into a
	// per-target queue immediately; false postpones every offer and
	// acquires a full group atomically. Defaults to true.
	Greedy *bool

	// BoundedCapacity caps how many assembled groups may sit in the output
	// queue before backpressure applies. Unbounded (-1) by default.
	// BatchedJoinMany does not support a value other than Unbounded.
	BoundedCapacity int

	// MaxNumberOfGroups is a strict cap on groupsCreated; once reached the
	// block declines permanently. Unbounded (-1) by default.
	MaxNumberOfGroups int64

	// MaxMessagesPerTask bounds how many groups the input-processing job
	// assembles in one run before it ends the run and kicks itself again.
	// The follow-up run starts right away on the same executor goroutine;
	// that goroutine is not handed back to the executor in between.
	// Unbounded (-1) by default.
	MaxMessagesPerTask int

	// Context, when cancelled, drives the block to a cancelled terminal
	// state (fault still wins if one was already recorded). Defaults to
	// context.Background(), which never cancels.
	Context context.Context

	// Name is a user-facing debugging label, used in log fields and in
	// NameFormat expansion. Defaults to an implementation-chosen name.
	Name string

	// NameFormat templates Name for debugging output; "{0}" expands to
	// Name, "{1}" to a generated uuid. Defaults to "{0} #{1}".
	NameFormat string

	// Logger receives structured diagnostics from the block's internal
	// jobs. Defaults to a log/slog-backed Logger using slog.Default().
	Logger Logger

	// Executor runs the block's input- and output-processing jobs.
	// Defaults to a shared worker pool sized to runtime.NumCPU().
	Executor executorRunner
}

// executorRunner mirrors internal/executor.Executor without importing the
// internal package into this exported type's declaration.
type executorRunner interface {
	Go(job func())
}

// resolved is a defensively-copied, fully-defaulted view of Options. It is
// built once at construction so later mutation of the caller's Options
// value cannot affect a live block.
type resolved struct {
	greedy             bool
	boundedCapacity    int
	maxNumberOfGroups  int64
	maxMessagesPerTask int
	ctx                context.Context
	name               string
	logger             Logger
	executor           executorRunner
}

func (o Options) resolve(defaultName string) resolved {
	greedy := true
	if o.Greedy != nil {
		greedy = *o.Greedy
	}

	boundedCapacity := o.BoundedCapacity
	if boundedCapacity == 0 {
		boundedCapacity = Unbounded
	}

	maxNumberOfGroups := o.MaxNumberOfGroups
	if maxNumberOfGroups == 0 {
		maxNumberOfGroups = Unbounded
	}

	maxMessagesPerTask := o.MaxMessagesPerTask
	if maxMessagesPerTask == 0 {
		maxMessagesPerTask = Unbounded
	}

	ctx := o.Context
	if ctx == nil {
		ctx = context.Background()
	}

	name := o.Name
	if name == "" {
		name = defaultName
	}

	nameFormat := o.NameFormat
	if nameFormat == "" {
		nameFormat = "{0} #{1}"
	}
	name = strings.NewReplacer("{0}", name, "{1}", uuid.New().String()).Replace(nameFormat)

	logger := o.Logger
	if logger == nil {
		logger = defaultLogger()
	}

	exec := o.Executor
	if exec == nil {
		exec = defaultExecutor()
	}

	return resolved{
		greedy:             greedy,
		boundedCapacity:    boundedCapacity,
		maxNumberOfGroups:  maxNumberOfGroups,
		maxMessagesPerTask: maxMessagesPerTask,
		ctx:                ctx,
		name:               name,
		logger:             logger,
		executor:           exec,
	}
}

// BoolPtr is a small convenience so callers can write
// Options{Greedy: joingroup.BoolPtr(false)} without a local variable.
func BoolPtr(v bool) *bool { return &v }

// envOverlay mirrors the Options fields config.Loader knows how to parse
// (Greedy as a plain bool, not Options' tri-state *bool). Field order
// matters: ApplyEnv maps loader.Keys' output back onto Options by index.
type envOverlay struct {
	Greedy             bool
	BoundedCapacity    int
	MaxNumberOfGroups  int64
	MaxMessagesPerTask int
}

// ApplyEnv overlays Greedy, BoundedCapacity, MaxNumberOfGroups, and
// MaxMessagesPerTask from JOINGROUP_<stage>_* environment variables (or
// loader's own prefix) onto o, in place. A variable only takes effect if
// actually set; Options fields left untouched by the environment keep
// whatever the caller already put in o.
func (o *Options) ApplyEnv(loader config.Loader, stage string) error {
	keys := loader.Keys(stage, envOverlay{})

	overlay := envOverlay{
		BoundedCapacity:    o.BoundedCapacity,
		MaxNumberOfGroups:  o.MaxNumberOfGroups,
		MaxMessagesPerTask: o.MaxMessagesPerTask,
	}
	if o.Greedy != nil {
		overlay.Greedy = *o.Greedy
	}

	if err := loader.Load(stage, &overlay); err != nil {
		return err
	}

	if len(keys) > 0 {
		if _, ok := os.LookupEnv(keys[0]); ok {
			o.Greedy = BoolPtr(overlay.Greedy)
		}
	}
	o.BoundedCapacity = overlay.BoundedCapacity
	o.MaxNumberOfGroups = overlay.MaxNumberOfGroups
	o.MaxMessagesPerTask = overlay.MaxMessagesPerTask
	return nil
}
