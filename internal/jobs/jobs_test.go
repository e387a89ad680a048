package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pcquote-api/internal/bundle"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/jobs"
	"github.com/noah-isme/pcquote-api/internal/lock"
)

type fakeClient struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type(), Queue: jobs.DefaultQueue}, nil
}

func TestEnqueueRecalculateTotals(t *testing.T) {
	client := &fakeClient{}
	id, err := jobs.Enqueuer{Client: client}.EnqueueRecalculateTotals(context.Background())
	require.NoError(t, err)
	require.Equal(t, "task-1", id)
	require.Len(t, client.tasks, 1)
	require.Equal(t, jobs.TypeRecalculateTotals, client.tasks[0].Type())

	client.err = asynq.ErrDuplicateTask
	_, err = jobs.Enqueuer{Client: client}.EnqueueRecalculateTotals(context.Background())
	require.True(t, common.HasCode(err, common.CodeConflict))

	_, err = jobs.Enqueuer{}.EnqueueRecalculateTotals(context.Background())
	require.Error(t, err)
}

type fakeRecalc struct {
	calls int
	err   error
}

func (f *fakeRecalc) RecalculateTotals(context.Context) (bundle.RecalcResult, error) {
	f.calls++
	return bundle.RecalcResult{Packages: 3, Updated: 1}, f.err
}

func TestRecalculateTotalsHandler(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	recalc := &fakeRecalc{}
	h := jobs.Handlers{Packages: recalc, Locker: lock.Locker{R: rdb, RetryBackoff: time.Millisecond}, LockTTL: time.Second}
	task := asynq.NewTask(jobs.TypeRecalculateTotals, nil)

	require.NoError(t, h.RecalculateTotals(context.Background(), task))
	require.Equal(t, 1, recalc.calls)
	require.False(t, mr.Exists("packages:recalculate"))

	recalc.err = errors.New("store down")
	err := h.RecalculateTotals(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)

	mux := asynq.NewServeMux()
	h.Register(mux)
	recalc.err = nil
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	require.Equal(t, 3, recalc.calls)
}
