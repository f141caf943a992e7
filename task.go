package capmux

import (
	"context"
	"sync"
	"time"
)

// CaptchaTask is a pending solving request: the submitted descriptor, the
// owning service and the provider-assigned opaque task id. The result slot is
// set exactly once when a fetch succeeds.
type CaptchaTask struct {
	service *service
	captcha Captcha
	taskID  string
	extra   map[string]any

	mu     sync.Mutex
	result *solveOutcome
}

func newCaptchaTask(s *service, c Captcha, taskID string, extra map[string]any) *CaptchaTask {
	if extra == nil {
		extra = map[string]any{}
	}
	return &CaptchaTask{service: s, captcha: c, taskID: taskID, extra: extra}
}

// ID is the service-assigned task identifier.
func (t *CaptchaTask) ID() string { return t.taskID }

// Captcha returns the submitted task descriptor.
func (t *CaptchaTask) Captcha() Captcha { return t.captcha }

// Extra is the free-form side channel the submission response carried.
func (t *CaptchaTask) Extra() map[string]any { return t.extra }

// Done reports whether a solution has been recorded.
func (t *CaptchaTask) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result != nil
}

func (t *CaptchaTask) setResult(outcome *solveOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result == nil {
		t.result = outcome
	}
}

func (t *CaptchaTask) getResult() *solveOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// FetchSolution performs a single fetch attempt. It returns
// ErrSolutionNotReady while the service is still working; callers driving the
// lifecycle by hand are expected to pace themselves.
func (t *CaptchaTask) FetchSolution(ctx context.Context) (Solution, error) {
	if cached := t.getResult(); cached != nil {
		return cached.solution, nil
	}
	outcome, err := t.service.fetchResult(ctx, t)
	if err != nil {
		return nil, err
	}
	t.setResult(outcome)
	return outcome.solution, nil
}

// WaitForSolution polls until the task resolves, times out or fails, then
// wraps the result into a SolvedCaptcha.
func (t *CaptchaTask) WaitForSolution(ctx context.Context) (*SolvedCaptcha, error) {
	startTime := t.service.now()
	if _, err := t.service.waitForSolution(ctx, t); err != nil {
		return nil, err
	}
	return newSolvedCaptcha(t, t.getResult(), startTime, t.service.now())
}

// SolvedCaptcha is the terminal handle of a successfully solved task. It is
// only constructible once the task's result slot is filled.
type SolvedCaptcha struct {
	task      *CaptchaTask
	solution  Solution
	startTime time.Time
	endTime   time.Time
	cost      *float64
	cookies   map[string]string
	extra     map[string]any
}

func newSolvedCaptcha(task *CaptchaTask, outcome *solveOutcome, start, end time.Time) (*SolvedCaptcha, error) {
	if !task.Done() || outcome == nil {
		return nil, ErrNotSolved
	}
	cookies := outcome.cookies
	if cookies == nil {
		cookies = map[string]string{}
	}
	extra := outcome.extra
	if extra == nil {
		extra = map[string]any{}
	}
	return &SolvedCaptcha{
		task:      task,
		solution:  outcome.solution,
		startTime: start,
		endTime:   end,
		cost:      outcome.cost,
		cookies:   cookies,
		extra:     extra,
	}, nil
}

// ID is the captcha id at the service, the same as the task id.
func (s *SolvedCaptcha) ID() string { return s.task.taskID }

// Task returns the originating task.
func (s *SolvedCaptcha) Task() *CaptchaTask { return s.task }

// Solution is the kind-specific answer payload.
func (s *SolvedCaptcha) Solution() Solution { return s.solution }

// StartTime is when solving began (task submission).
func (s *SolvedCaptcha) StartTime() time.Time { return s.startTime }

// EndTime is when the solution arrived.
func (s *SolvedCaptcha) EndTime() time.Time { return s.endTime }

// Cost is the price the service charged, when reported.
func (s *SolvedCaptcha) Cost() *float64 { return s.cost }

// Cookies returns cookies the service captured while solving, if any.
func (s *SolvedCaptcha) Cookies() map[string]string { return s.cookies }

// Extra is the service's free-form side channel for this solution.
func (s *SolvedCaptcha) Extra() map[string]any { return s.extra }

// ReportGood tells the service the solution worked. Services without a
// feedback endpoint return a capability error.
func (s *SolvedCaptcha) ReportGood(ctx context.Context) error {
	return s.task.service.report(ctx, s, true)
}

// ReportBad flags the solution as wrong so the service can rescore the
// worker.
func (s *SolvedCaptcha) ReportBad(ctx context.Context) error {
	return s.task.service.report(ctx, s, false)
}
