package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/iEdgir01/traffic-manager/ignition"
)

type BatchChecker interface {
	CheckAll(ctx context.Context, notify bool) ([]Result, error)
}

// TripRunner runs a notifying check of every route when a trip starts.
// Trips are handled one at a time in arrival order.
type TripRunner struct {
	checker BatchChecker
	grace   time.Duration
	logger  *slog.Logger
}

func NewTripRunner(checker BatchChecker, grace time.Duration, logger *slog.Logger) *TripRunner {
	return &TripRunner{checker: checker, grace: grace, logger: logger.With("component", "trips")}
}

// Run consumes trip events until trips is closed or ctx is done. A check in
// flight at shutdown keeps running for at most the grace period.
func (r *TripRunner) Run(ctx context.Context, trips <-chan ignition.TripEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case trip, ok := <-trips:
			if !ok {
				return
			}
			switch trip.Kind {
			case ignition.TripStarted:
				r.runChecks(ctx, trip)
			case ignition.TripEnded:
				r.logger.Info("trip ended", "at", trip.At)
			}
		}
	}
}

func (r *TripRunner) runChecks(parent context.Context, trip ignition.TripEvent) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	defer cancel()
	stop := context.AfterFunc(parent, func() {
		r.logger.Info("shutdown requested, waiting for in-flight checks", "grace", r.grace)
		timer := time.AfterFunc(r.grace, cancel)
		context.AfterFunc(ctx, func() { timer.Stop() })
	})
	defer stop()

	r.logger.Info("trip started, checking routes", "at", trip.At)
	results, err := r.checker.CheckAll(ctx, true)
	if err != nil {
		r.logger.Error("route check batch failed", "error", err)
		return
	}
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	r.logger.Info("trip checks finished", "routes", len(results), "failed", failed)
}
