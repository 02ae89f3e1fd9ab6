package results

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-console/internal/observability"
)

// Default detector timings.
const (
	DefaultPollInterval  = 3 * time.Second
	DefaultRetryInterval = 5 * time.Second
)

// ChangeHandler is invoked with the count reported by the backend whenever
// it differs from the last observed one. Returning an error keeps the
// previous baseline so the change is detected again.
type ChangeHandler func(ctx context.Context, count int64) error

// Detector polls an exam's activity count until its context is cancelled.
type Detector struct {
	source        ChangeSource
	examID        uint
	pollInterval  time.Duration
	retryInterval time.Duration
	logger        zerolog.Logger
}

// NewDetector builds a detector for one exam. Non-positive intervals fall
// back to the defaults.
func NewDetector(source ChangeSource, examID uint, pollInterval, retryInterval time.Duration, logger zerolog.Logger) *Detector {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	return &Detector{
		source:        source,
		examID:        examID,
		pollInterval:  pollInterval,
		retryInterval: retryInterval,
		logger:        logger.With().Str("component", "change_detector").Uint("exam_id", examID).Logger(),
	}
}

// Run polls until ctx is done, starting from lastCount. At most one request
// is in flight and onChange runs on the polling goroutine. Transport errors
// are retried forever on a fixed interval. Run returns ctx.Err().
func (d *Detector) Run(ctx context.Context, lastCount int64, onChange ChangeHandler) error {
	retry := backoff.WithContext(backoff.NewConstantBackOff(d.retryInterval), ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := d.source.Changes(ctx, d.examID, lastCount)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		wait := d.pollInterval
		switch {
		case err != nil:
			observability.ResultsPolls().WithLabelValues(observability.PollError).Inc()
			d.logger.Warn().Err(err).Int64("last_count", lastCount).Msg("change check failed")
			wait = retry.NextBackOff()
		case resp.HasChanges:
			observability.ResultsPolls().WithLabelValues(observability.PollChanged).Inc()
			d.logger.Debug().Int64("last_count", lastCount).Int64("count", resp.Count).Msg("activity detected")
			if handlerErr := onChange(ctx, resp.Count); handlerErr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				d.logger.Warn().Err(handlerErr).Msg("refresh after change failed")
				wait = retry.NextBackOff()
				break
			}
			lastCount = resp.Count
			retry.Reset()
		default:
			observability.ResultsPolls().WithLabelValues(observability.PollUnchanged).Inc()
			retry.Reset()
		}

		if wait == backoff.Stop {
			return ctx.Err()
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
