package capmux

import (
	"context"
	"errors"
	"time"
)

// ctxSleep suspends for d or until the context is cancelled. This is the only
// suspension primitive the polling state machine uses; concurrent solves are
// independent goroutines sharing nothing but the transport pool.
func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// waitForSolution drives Created → Polling → {Solved, TimedOut, Failed} for
// one task: an initial delay, then fetch attempts at a fixed interval.
// ErrSolutionNotReady keeps the loop going; any other fetch error terminates
// it immediately. Attempts for a single task are strictly sequential.
func (s *service) waitForSolution(ctx context.Context, task *CaptchaTask) (*solveOutcome, error) {
	settings := s.settingsFor(task.captcha.Kind())
	start := s.now()

	if err := s.sleep(ctx, settings.PollingDelay); err != nil {
		return nil, err
	}

	for {
		if s.now().Sub(start) > settings.SolutionTimeout {
			return nil, &SolutionTimeoutError{Timeout: settings.SolutionTimeout}
		}

		outcome, err := s.fetchResult(ctx, task)
		if err == nil {
			task.setResult(outcome)
			return outcome, nil
		}
		if !errors.Is(err, ErrSolutionNotReady) {
			return nil, err
		}

		if err := s.sleep(ctx, settings.PollingInterval); err != nil {
			return nil, err
		}
	}
}
