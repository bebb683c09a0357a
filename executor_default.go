package joingroup

import (
	"runtime"
	"sync"

	"github.com/joingroup/joingroup/internal/executor"
)

var (
	defaultExecutorOnce sync.Once
	defaultExecutorVal  *executor.Pool
)

// defaultExecutor returns the process-wide shared worker pool every block
// uses unless Options.Executor overrides it.
func defaultExecutor() *executor.Pool {
	defaultExecutorOnce.Do(func() {
		defaultExecutorVal = executor.NewPool(runtime.NumCPU())
	})
	return defaultExecutorVal
}
