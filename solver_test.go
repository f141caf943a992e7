package capmux

import (
	"context"
	"strings"
	"testing"
	"time"

	http "github.com/bogdanfinn/fhttp"
)

func newTestSolver(t *testing.T, name ServiceName, handler doerFunc) *Solver {
	t.Helper()
	solver, err := NewSolver(name, "test-api-key")
	if err != nil {
		t.Fatalf("failed to create solver: %v", err)
	}
	solver.svc.tr.client = handler
	solver.svc.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return solver
}

func TestNewSolverFromName(t *testing.T) {
	solver, err := NewSolverFromName("anti-captcha.com", "key")
	if err != nil {
		t.Fatalf("failed to create solver: %v", err)
	}
	defer solver.Close()
	if solver.Service() != AntiCaptcha {
		t.Errorf("expected %s, got %s", AntiCaptcha, solver.Service())
	}

	if _, err := NewSolverFromName("unknown.example", "key"); !IsErrorKind(err, KindBadInput) {
		t.Fatalf("expected bad input error, got %v", err)
	}
}

func TestSolverSolveImage(t *testing.T) {
	solver := newTestSolver(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "in.php") {
			return jsonResponse(200, `{"status":1,"request":"1"}`)
		}
		return jsonResponse(200, `{"status":1,"request":"W9H5K"}`)
	})
	defer solver.Close()

	solved, err := solver.SolveImage(context.Background(), ImageCaptcha{Image: testPNG(t)})
	if err != nil {
		t.Fatalf("failed to solve image: %v", err)
	}
	if got := solved.Solution().String(); got != "W9H5K" {
		t.Errorf("expected W9H5K, got %q", got)
	}
	if solved.Solution().Kind() != KindImage {
		t.Errorf("expected image solution, got %s", solved.Solution().Kind())
	}
	if !solved.EndTime().After(solved.StartTime()) && !solved.EndTime().Equal(solved.StartTime()) {
		t.Error("end time must not precede start time")
	}
}

func TestSolverAsync(t *testing.T) {
	solver := newTestSolver(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "in.php") {
			return jsonResponse(200, `{"status":1,"request":"2"}`)
		}
		return jsonResponse(200, `{"status":1,"request":"token-a"}`)
	})
	defer solver.Close()

	ch := solver.SolveAsync(context.Background(), RecaptchaV2{SiteKey: "k", PageURL: "u"})
	result := <-ch
	if result.Err != nil {
		t.Fatalf("failed to solve asynchronously: %v", result.Err)
	}
	if got := result.Solved.Solution().String(); got != "token-a" {
		t.Errorf("expected token-a, got %q", got)
	}
}

func TestSolverAsyncCancellation(t *testing.T) {
	solver := newTestSolver(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "in.php") {
			return jsonResponse(200, `{"status":1,"request":"3"}`)
		}
		return jsonResponse(200, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
	})
	defer solver.Close()
	solver.svc.sleep = ctxSleep

	ctx, cancel := context.WithCancel(context.Background())
	ch := solver.SolveAsync(ctx, RecaptchaV2{SiteKey: "k", PageURL: "u"})
	cancel()

	result := <-ch
	if result.Err == nil {
		t.Fatal("expected error after cancellation")
	}
	if result.Solved != nil {
		t.Fatal("cancelled solve must not produce a SolvedCaptcha")
	}
}

func TestSolverManualLifecycle(t *testing.T) {
	solver := newTestSolver(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "in.php") {
			return jsonResponse(200, `{"status":1,"request":"44"}`)
		}
		return jsonResponse(200, `{"status":1,"request":"manual"}`)
	})
	defer solver.Close()

	task, err := solver.CreateTask(context.Background(), ImageCaptcha{Image: testPNG(t)})
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	if task.Done() {
		t.Fatal("fresh task must not be done")
	}

	solved, err := task.WaitForSolution(context.Background())
	if err != nil {
		t.Fatalf("failed to wait for solution: %v", err)
	}
	if got := solved.Solution().String(); got != "manual" {
		t.Errorf("expected manual, got %q", got)
	}

	// Fetching again serves the cached result without another request.
	solver.svc.tr.client = doerFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("cached solution must not hit the wire")
		return nil, nil
	})
	if _, err := task.FetchSolution(context.Background()); err != nil {
		t.Fatalf("failed to fetch cached solution: %v", err)
	}
}

func TestSolverSettingsOverride(t *testing.T) {
	solver := newTestSolver(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{}`)
	})
	defer solver.Close()

	base := solver.Settings(KindRecaptchaV2)
	if base.PollingDelay != 20*time.Second {
		t.Errorf("unexpected default polling delay %s", base.PollingDelay)
	}

	custom := Settings{
		PollingDelay:    time.Second,
		PollingInterval: time.Second,
		SolutionTimeout: 30 * time.Second,
	}
	solver.SetSettings(KindRecaptchaV2, custom)
	if got := solver.Settings(KindRecaptchaV2); got != custom {
		t.Errorf("expected %+v, got %+v", custom, got)
	}
	// Other kinds keep their profile.
	if got := solver.Settings(KindImage); got == custom {
		t.Error("override must not leak to other kinds")
	}
}

func TestServiceNamesRoundTrip(t *testing.T) {
	for _, name := range ServiceNames() {
		parsed, err := ParseServiceName(string(name))
		if err != nil {
			t.Errorf("failed to parse %s: %v", name, err)
			continue
		}
		if parsed != name {
			t.Errorf("expected %s, got %s", name, parsed)
		}
	}
}
