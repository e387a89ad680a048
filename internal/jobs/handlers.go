package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pcquote-api/internal/bundle"
)

const recalcLockKey = "packages:recalculate"

type recalculator interface {
	RecalculateTotals(ctx context.Context) (bundle.RecalcResult, error)
}

type locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Handlers processes background tasks.
type Handlers struct {
	Packages recalculator
	Locker   locker
	LockTTL  time.Duration
	Logger   zerolog.Logger
}

// Register binds every task type to mux.
func (h Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeRecalculateTotals, h.RecalculateTotals)
}

// RecalculateTotals runs a recalculation under a cluster-wide lock so two
// workers never rewrite the same packages at once.
func (h Handlers) RecalculateTotals(ctx context.Context, task *asynq.Task) error {
	if h.Packages == nil {
		return fmt.Errorf("jobs: package service not configured: %w", asynq.SkipRetry)
	}
	ttl := h.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	run := func(ctx context.Context) error {
		res, err := h.Packages.RecalculateTotals(ctx)
		if err != nil {
			return err
		}
		h.Logger.Info().
			Str("task", task.Type()).
			Int("packages", res.Packages).
			Int("updated", res.Updated).
			Msg("recalculate_totals_done")
		return nil
	}
	var err error
	if h.Locker != nil {
		err = h.Locker.WithLock(ctx, recalcLockKey, ttl, run)
	} else {
		err = run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		h.Logger.Error().Err(err).Str("task", task.Type()).Msg("recalculate_totals_failed")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
