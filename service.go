package capmux

import (
	"context"
	"sync"
	"time"
)

// ServiceName identifies a supported CAPTCHA solving provider.
type ServiceName string

const (
	TwoCaptcha     ServiceName = "2captcha.com"
	RuCaptcha      ServiceName = "rucaptcha.com"
	CaptchaGuru    ServiceName = "captcha.guru"
	AZCaptcha      ServiceName = "azcaptcha.com"
	AntiCaptcha    ServiceName = "anti-captcha.com"
	DeathByCaptcha ServiceName = "deathbycaptcha.com"
)

// ParseServiceName resolves the string form of a service identifier.
func ParseServiceName(s string) (ServiceName, error) {
	name := ServiceName(s)
	if _, ok := serviceConfigs[name]; !ok {
		return "", badInputError("unknown solving service %q", s)
	}
	return name, nil
}

// ServiceNames lists every registered solving service.
func ServiceNames() []ServiceName {
	return []ServiceName{
		TwoCaptcha, RuCaptcha, CaptchaGuru, AZCaptcha, AntiCaptcha, DeathByCaptcha,
	}
}

// =============================================================================
// Solve options
// =============================================================================

// SolveOptions carries the cross-kind extras a task submission may include.
type SolveOptions struct {
	Proxy     *ProxyServer
	UserAgent string
	Cookies   map[string]string
}

// SolveOption mutates SolveOptions; used by the facade's variadic surface.
type SolveOption func(*SolveOptions)

// WithProxy asks the service to solve through the given proxy.
func WithProxy(p *ProxyServer) SolveOption {
	return func(o *SolveOptions) { o.Proxy = p }
}

// WithUserAgent sets the user agent the service's browser should present.
func WithUserAgent(ua string) SolveOption {
	return func(o *SolveOptions) { o.UserAgent = ua }
}

// WithCookies sets the cookies the service should carry while solving.
func WithCookies(cookies map[string]string) SolveOption {
	return func(o *SolveOptions) { o.Cookies = cookies }
}

func buildSolveOptions(opts []SolveOption) *SolveOptions {
	o := &SolveOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// =============================================================================
// Adapter engine
// =============================================================================

// solveOutcome is the normalized result of a successful solution fetch.
type solveOutcome struct {
	solution Solution
	cost     *float64
	cookies  map[string]string
	extra    map[string]any
}

// wireAPI is one provider wire protocol family. Implementations are pure
// transforms between descriptors and raw requests/responses; they never touch
// the network themselves.
type wireAPI interface {
	buildTask(s *service, c Captcha, o *SolveOptions) (*request, error)
	parseTask(resp *response) (taskID string, extra map[string]any, err error)
	buildSolution(s *service, task *CaptchaTask) (*request, error)
	parseSolution(task *CaptchaTask, resp *response) (*solveOutcome, error)
	buildBalance(s *service) (*request, error)
	parseBalance(resp *response) (float64, error)
	buildStatus(s *service) (*request, error)
	parseStatus(resp *response) error
	buildReport(s *service, solved *SolvedCaptcha, good bool) (*request, error)
	parseReport(resp *response) error
}

// serviceConfig is the per-provider table that drives the shared engine:
// which wire family to speak, which kinds have a task builder, and how long
// solving is expected to take. Presence in kinds IS the capability signal.
type serviceConfig struct {
	name             ServiceName
	baseURL          string
	handleHTTPErrors bool
	api              wireAPI
	kinds            map[CaptchaKind]struct{}
	settings         settingsTable
	reportGood       bool
	reportBad        bool
}

var serviceConfigs = map[ServiceName]*serviceConfig{}

func registerService(cfg *serviceConfig) {
	serviceConfigs[cfg.name] = cfg
}

func kindSet(kinds ...CaptchaKind) map[CaptchaKind]struct{} {
	set := make(map[CaptchaKind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return set
}

// service binds a provider config to an API key and a live transport session.
// Safe for concurrent use; the transport's connection pool serves any number
// of in-flight requests.
type service struct {
	cfg    *serviceConfig
	apiKey string
	tr     *transport

	mu       sync.RWMutex
	settings map[CaptchaKind]Settings

	// sleep and now drive the polling loop; swapped out in tests for a
	// fake clock.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func newService(name ServiceName, apiKey string) (*service, error) {
	cfg, ok := serviceConfigs[name]
	if !ok {
		return nil, badInputError("unknown solving service %q", string(name))
	}
	if apiKey == "" {
		return nil, badInputError("API key is required")
	}

	tr, err := newTransport(cfg.handleHTTPErrors)
	if err != nil {
		return nil, err
	}

	settings := make(map[CaptchaKind]Settings, len(cfg.kinds))
	for kind := range cfg.kinds {
		settings[kind] = cfg.settings.forKind(kind)
	}

	return &service{
		cfg:      cfg,
		apiKey:   apiKey,
		tr:       tr,
		settings: settings,
		sleep:    ctxSleep,
		now:      time.Now,
	}, nil
}

func (s *service) supports(kind CaptchaKind) bool {
	_, ok := s.cfg.kinds[kind]
	return ok
}

func (s *service) supportedKinds() []CaptchaKind {
	var kinds []CaptchaKind
	for _, k := range Kinds() {
		if s.supports(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func (s *service) settingsFor(kind CaptchaKind) Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[kind]
}

func (s *service) setSettings(kind CaptchaKind, settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[kind] = settings
}

// createTask validates the descriptor, submits it and returns the pending
// task handle.
func (s *service) createTask(ctx context.Context, c Captcha, o *SolveOptions) (*CaptchaTask, error) {
	if !s.supports(c.Kind()) {
		return nil, &UnsupportedError{Service: s.cfg.name, Op: c.Kind().String()}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	req, err := s.cfg.api.buildTask(s, c, o)
	if err != nil {
		return nil, err
	}
	resp, err := s.tr.do(ctx, req)
	if err != nil {
		return nil, err
	}
	taskID, extra, err := s.cfg.api.parseTask(resp)
	if err != nil {
		return nil, err
	}

	return newCaptchaTask(s, c, taskID, extra), nil
}

// fetchResult performs exactly one solution fetch. ErrSolutionNotReady means
// try again later; anything else is terminal.
func (s *service) fetchResult(ctx context.Context, task *CaptchaTask) (*solveOutcome, error) {
	req, err := s.cfg.api.buildSolution(s, task)
	if err != nil {
		return nil, err
	}
	resp, err := s.tr.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.cfg.api.parseSolution(task, resp)
}

// solveCaptcha runs the full create → poll → solved lifecycle.
func (s *service) solveCaptcha(ctx context.Context, c Captcha, o *SolveOptions) (*SolvedCaptcha, error) {
	startTime := s.now()

	task, err := s.createTask(ctx, c, o)
	if err != nil {
		return nil, err
	}
	outcome, err := s.waitForSolution(ctx, task)
	if err != nil {
		return nil, err
	}

	return newSolvedCaptcha(task, outcome, startTime, s.now())
}

func (s *service) balance(ctx context.Context) (float64, error) {
	req, err := s.cfg.api.buildBalance(s)
	if err != nil {
		return 0, err
	}
	resp, err := s.tr.do(ctx, req)
	if err != nil {
		return 0, err
	}
	return s.cfg.api.parseBalance(resp)
}

// status probes service health. Health-check callers expect a boolean, so
// every failure collapses to false instead of propagating.
func (s *service) status(ctx context.Context) bool {
	req, err := s.cfg.api.buildStatus(s)
	if err != nil {
		return false
	}
	resp, err := s.tr.do(ctx, req)
	if err != nil {
		return false
	}
	return s.cfg.api.parseStatus(resp) == nil
}

func (s *service) report(ctx context.Context, solved *SolvedCaptcha, good bool) error {
	supported := s.cfg.reportBad
	op := "bad captcha report"
	if good {
		supported = s.cfg.reportGood
		op = "good captcha report"
	}
	if !supported {
		return &UnsupportedError{Service: s.cfg.name, Op: op}
	}

	req, err := s.cfg.api.buildReport(s, solved, good)
	if err != nil {
		return err
	}
	resp, err := s.tr.do(ctx, req)
	if err != nil {
		return err
	}
	return s.cfg.api.parseReport(resp)
}

func (s *service) close() {
	s.tr.close()
}
