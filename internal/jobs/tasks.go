package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/pcquote-api/internal/common"
)

// TypeRecalculateTotals refreshes package snapshots and totals from the catalog.
const TypeRecalculateTotals = "packages:recalculate_totals"

// DefaultQueue is the asynq queue the API enqueues into.
const DefaultQueue = "default"

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules background tasks.
type Enqueuer struct {
	Client    taskEnqueuer
	Queue     string
	UniqueFor time.Duration
}

// EnqueueRecalculateTotals schedules one recalculation. While one is
// pending another request is refused rather than queued twice. Failed runs
// are not retried.
func (e Enqueuer) EnqueueRecalculateTotals(ctx context.Context) (string, error) {
	if e.Client == nil {
		return "", errors.New("jobs: asynq client not configured")
	}
	queue := e.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	unique := e.UniqueFor
	if unique <= 0 {
		unique = 5 * time.Minute
	}
	info, err := e.Client.EnqueueContext(ctx, asynq.NewTask(TypeRecalculateTotals, nil),
		asynq.Queue(queue),
		asynq.MaxRetry(0),
		asynq.Unique(unique),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return "", common.Conflict("a recalculation is already scheduled", nil)
		}
		return "", fmt.Errorf("enqueue %s: %w", TypeRecalculateTotals, err)
	}
	return info.ID, nil
}
