package joinchan_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joingroup/joingroup"
	"github.com/joingroup/joingroup/internal/executor"
	"github.com/joingroup/joingroup/joinchan"
)

func TestFeedPostsUntilChannelCloses(t *testing.T) {
	j, err := joingroup.NewJoinMany[int](1, joingroup.Options{Executor: executor.Sync{}})
	require.NoError(t, err)

	in := make(chan int, 3)
	in <- 1
	in <- 2
	in <- 3
	close(in)

	ctx := context.Background()
	result := joinchan.Feed[int](ctx, j.Target(0), in)
	require.NoError(t, <-result)
	require.Equal(t, 3, j.OutputCount())
}

func TestFeedStopsOnCancellation(t *testing.T) {
	j, err := joingroup.NewJoinMany[int](1, joingroup.Options{Executor: executor.Sync{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan int)
	result := joinchan.Feed[int](ctx, j.Target(0), in)
	cancel()
	require.ErrorIs(t, <-result, context.Canceled)
}

func TestDrainCopiesGroupsOutAndCloses(t *testing.T) {
	j, err := joingroup.NewJoinMany[int](1, joingroup.Options{Executor: executor.Sync{}})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		j.Target(0).Post(i)
	}
	j.Target(0).Complete()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out := joinchan.Drain[[]int](ctx, j)

	var got [][]int
	for v := range out {
		got = append(got, v)
	}
	require.Len(t, got, 5)
	for i, tup := range got {
		require.Equal(t, []int{i}, tup)
	}
}
