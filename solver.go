package capmux

import "context"

// Solver is the single entry point of the library: it binds one solving
// service to one API key and exposes a solve method per CAPTCHA kind. The
// zero value is not usable; construct via NewSolver and release the
// underlying session with Close.
type Solver struct {
	svc *service
}

// NewSolver creates a solver for the given service.
func NewSolver(name ServiceName, apiKey string) (*Solver, error) {
	svc, err := newService(name, apiKey)
	if err != nil {
		return nil, err
	}
	return &Solver{svc: svc}, nil
}

// NewSolverFromName is NewSolver for a service identifier in string form,
// e.g. from configuration.
func NewSolverFromName(name, apiKey string) (*Solver, error) {
	parsed, err := ParseServiceName(name)
	if err != nil {
		return nil, err
	}
	return NewSolver(parsed, apiKey)
}

// Service reports which solving service this solver talks to.
func (s *Solver) Service() ServiceName { return s.svc.cfg.name }

// =============================================================================
// Solving
// =============================================================================

// Solve submits the descriptor and blocks until the service answers, the
// configured timeout elapses or ctx is cancelled.
func (s *Solver) Solve(ctx context.Context, c Captcha, opts ...SolveOption) (*SolvedCaptcha, error) {
	return s.svc.solveCaptcha(ctx, c, buildSolveOptions(opts))
}

// SolveResult is the outcome delivered on a SolveAsync channel. Exactly one
// of Solved and Err is set.
type SolveResult struct {
	Solved *SolvedCaptcha
	Err    error
}

// SolveAsync runs Solve in a goroutine and delivers the outcome on the
// returned channel. The channel is buffered; an abandoned result never leaks
// the goroutine.
func (s *Solver) SolveAsync(ctx context.Context, c Captcha, opts ...SolveOption) <-chan SolveResult {
	ch := make(chan SolveResult, 1)
	go func() {
		solved, err := s.Solve(ctx, c, opts...)
		ch <- SolveResult{Solved: solved, Err: err}
	}()
	return ch
}

func (s *Solver) SolveImage(ctx context.Context, c ImageCaptcha, opts ...SolveOption) (*SolvedCaptcha, error) {
	return s.Solve(ctx, c, opts...)
}

func (s *Solver) SolveRecaptchaV2(ctx context.Context, c RecaptchaV2, opts ...SolveOption) (*SolvedCaptcha, error) {
	return s.Solve(ctx, c, opts...)
}

func (s *Solver) SolveRecaptchaV3(ctx context.Context, c RecaptchaV3, opts ...SolveOption) (*SolvedCaptcha, error) {
	return s.Solve(ctx, c, opts...)
}

func (s *Solver) SolveText(ctx context.Context, c TextCaptcha, opts ...SolveOption) (*SolvedCaptcha, error) {
	return s.Solve(ctx, c, opts...)
}

func (s *Solver) SolveFunCaptcha(ctx context.Context, c FunCaptcha, opts ...SolveOption) (*SolvedCaptcha, error) {
	return s.Solve(ctx, c, opts...)
}

func (s *Solver) SolveKeyCaptcha(ctx context.Context, c KeyCaptcha, opts ...SolveOption) (*SolvedCaptcha, error) {
	return s.Solve(ctx, c, opts...)
}

func (s *Solver) SolveGeeTest(ctx context.Context, c GeeTest, opts ...SolveOption) (*SolvedCaptcha, error) {
	return s.Solve(ctx, c, opts...)
}

func (s *Solver) SolveGeeTestV4(ctx context.Context, c GeeTestV4, opts ...SolveOption) (*SolvedCaptcha, error) {
	return s.Solve(ctx, c, opts...)
}

func (s *Solver) SolveHCaptcha(ctx context.Context, c HCaptcha, opts ...SolveOption) (*SolvedCaptcha, error) {
	return s.Solve(ctx, c, opts...)
}

func (s *Solver) SolveCapy(ctx context.Context, c CapyPuzzle, opts ...SolveOption) (*SolvedCaptcha, error) {
	return s.Solve(ctx, c, opts...)
}

func (s *Solver) SolveTikTok(ctx context.Context, c TikTokCaptcha, opts ...SolveOption) (*SolvedCaptcha, error) {
	return s.Solve(ctx, c, opts...)
}

// =============================================================================
// Manual lifecycle and account surface
// =============================================================================

// CreateTask submits the descriptor and returns the pending task without
// waiting for a solution. Pair with task.FetchSolution or
// task.WaitForSolution.
func (s *Solver) CreateTask(ctx context.Context, c Captcha, opts ...SolveOption) (*CaptchaTask, error) {
	return s.svc.createTask(ctx, c, buildSolveOptions(opts))
}

// Balance returns the account balance at the service.
func (s *Solver) Balance(ctx context.Context) (float64, error) {
	return s.svc.balance(ctx)
}

// Status reports whether the service looks able to accept work right now.
func (s *Solver) Status(ctx context.Context) bool {
	return s.svc.status(ctx)
}

// Supports reports whether the service has a handler for the kind.
func (s *Solver) Supports(kind CaptchaKind) bool {
	return s.svc.supports(kind)
}

// SupportedKinds lists the kinds the service can solve, in kind order.
func (s *Solver) SupportedKinds() []CaptchaKind {
	return s.svc.supportedKinds()
}

// Settings returns the polling cadence for the kind.
func (s *Solver) Settings(kind CaptchaKind) Settings {
	return s.svc.settingsFor(kind)
}

// SetSettings overrides the polling cadence for the kind.
func (s *Solver) SetSettings(kind CaptchaKind, settings Settings) {
	s.svc.setSettings(kind, settings)
}

// Close releases the transport session. The solver must not be used after.
func (s *Solver) Close() {
	s.svc.close()
}
