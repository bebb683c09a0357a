package joingroup_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joingroup/joingroup"
	"github.com/joingroup/joingroup/config"
)

func TestOptionsApplyEnv(t *testing.T) {
	t.Setenv("JOINGROUP_ORDERS_GREEDY", "false")
	t.Setenv("JOINGROUP_ORDERS_BOUNDED_CAPACITY", "7")
	t.Setenv("JOINGROUP_ORDERS_MAX_NUMBER_OF_GROUPS", "100")

	opts := joingroup.Options{MaxMessagesPerTask: 5}
	require.NoError(t, opts.ApplyEnv(config.Loader{}, "orders"))

	require.NotNil(t, opts.Greedy)
	require.False(t, *opts.Greedy)
	require.Equal(t, 7, opts.BoundedCapacity)
	require.Equal(t, int64(100), opts.MaxNumberOfGroups)
	require.Equal(t, 5, opts.MaxMessagesPerTask)
}

func TestOptionsApplyEnv_LeavesUnsetFieldsAlone(t *testing.T) {
	greedy := false
	opts := joingroup.Options{Greedy: &greedy, BoundedCapacity: 3}
	require.NoError(t, opts.ApplyEnv(config.Loader{}, "untouched"))

	require.NotNil(t, opts.Greedy)
	require.False(t, *opts.Greedy)
	require.Equal(t, 3, opts.BoundedCapacity)
}
