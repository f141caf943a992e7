package capmux

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	http "github.com/bogdanfinn/fhttp"
)

// doerFunc lets tests stand in for the HTTP client.
type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func (f doerFunc) CloseIdleConnections() {}

func jsonResponse(status int, body string) (*http.Response, error) {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil
}

// newTestService builds a service whose transport is answered by handler and
// whose sleeps are instant.
func newTestService(t *testing.T, name ServiceName, handler doerFunc) *service {
	t.Helper()
	svc, err := newService(name, "test-api-key")
	if err != nil {
		t.Fatalf("failed to create service %s: %v", name, err)
	}
	svc.tr.client = handler
	svc.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return svc
}

// requestForm decodes a submitted request's form or query parameters.
func requestForm(t *testing.T, req *http.Request) url.Values {
	t.Helper()
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("failed to read request body: %v", err)
		}
		if len(body) > 0 {
			values, err := url.ParseQuery(string(body))
			if err != nil {
				t.Fatalf("failed to parse request body: %v", err)
			}
			return values
		}
	}
	return req.URL.Query()
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := newService("nosuch.example", "key"); !IsErrorKind(err, KindBadInput) {
		t.Fatalf("expected bad input error for unknown service, got %v", err)
	}
	if _, err := newService(TwoCaptcha, ""); !IsErrorKind(err, KindBadInput) {
		t.Fatalf("expected bad input error for empty API key, got %v", err)
	}
}

func TestCreateTaskUnsupportedKind(t *testing.T) {
	svc := newTestService(t, DeathByCaptcha, func(req *http.Request) (*http.Response, error) {
		t.Fatal("unsupported kind must be rejected before any network traffic")
		return nil, nil
	})

	_, err := svc.createTask(context.Background(), GeeTestV4{PageURL: "u", CaptchaID: "c"}, nil)
	if !IsUnsupported(err) {
		t.Fatalf("expected capability error, got %v", err)
	}
}

func TestCreateTaskValidatesDescriptor(t *testing.T) {
	svc := newTestService(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		t.Fatal("invalid descriptor must be rejected before any network traffic")
		return nil, nil
	})

	_, err := svc.createTask(context.Background(), RecaptchaV2{PageURL: "u"}, nil)
	if !IsErrorKind(err, KindBadInput) {
		t.Fatalf("expected bad input error, got %v", err)
	}
}

func TestSolveLifecycle(t *testing.T) {
	var polls int
	svc := newTestService(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "in.php") {
			return jsonResponse(200, `{"status":1,"request":"987"}`)
		}
		polls++
		if polls < 3 {
			return jsonResponse(200, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
		}
		return jsonResponse(200, `{"status":1,"request":"answer","price":"0.00299"}`)
	})

	solved, err := svc.solveCaptcha(context.Background(), RecaptchaV2{
		SiteKey: "sk", PageURL: "https://example.com",
	}, nil)
	if err != nil {
		t.Fatalf("failed to solve: %v", err)
	}
	if solved.ID() != "987" {
		t.Errorf("expected task id 987, got %s", solved.ID())
	}
	if got := solved.Solution().String(); got != "answer" {
		t.Errorf("expected solution answer, got %s", got)
	}
	if solved.Cost() == nil || *solved.Cost() != 0.00299 {
		t.Errorf("expected cost 0.00299, got %v", solved.Cost())
	}
	if polls != 3 {
		t.Errorf("expected 3 poll attempts, got %d", polls)
	}
	if !solved.Task().Done() {
		t.Error("task must be done after a successful solve")
	}
}

func TestPollingTimeoutBound(t *testing.T) {
	var fetches int
	svc := newTestService(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		fetches++
		return jsonResponse(200, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
	})

	// Fake clock: sleeping advances time, nothing blocks.
	now := time.Unix(1700000000, 0)
	svc.now = func() time.Time { return now }
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		now = now.Add(d)
		return ctx.Err()
	}
	settings := Settings{
		PollingDelay:    time.Second,
		PollingInterval: time.Second,
		SolutionTimeout: 10 * time.Second,
	}
	svc.setSettings(KindImage, settings)

	task := newCaptchaTask(svc, ImageCaptcha{Image: testPNG(t)}, "1", nil)
	_, err := svc.waitForSolution(context.Background(), task)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	var te *SolutionTimeoutError
	if errors.As(err, &te) && te.Timeout != settings.SolutionTimeout {
		t.Errorf("expected timeout %s in error, got %s", settings.SolutionTimeout, te.Timeout)
	}

	maxFetches := int(settings.SolutionTimeout/settings.PollingInterval) + 1
	if fetches == 0 || fetches > maxFetches {
		t.Errorf("expected between 1 and %d fetches, got %d", maxFetches, fetches)
	}
}

func TestPollingStopsOnTerminalError(t *testing.T) {
	var fetches int
	svc := newTestService(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "in.php") {
			return jsonResponse(200, `{"status":1,"request":"42"}`)
		}
		fetches++
		return jsonResponse(200, `{"status":0,"request":"ERROR_CAPTCHA_UNSOLVABLE"}`)
	})

	_, err := svc.solveCaptcha(context.Background(), RecaptchaV2{
		SiteKey: "sk", PageURL: "https://example.com",
	}, nil)
	if !IsErrorKind(err, KindUnsolvable) {
		t.Fatalf("expected unsolvable error, got %v", err)
	}
	if fetches != 1 {
		t.Errorf("terminal errors must not be retried, got %d fetches", fetches)
	}
}

func TestPollingCancellation(t *testing.T) {
	svc := newTestService(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.sleep = ctxSleep

	task := newCaptchaTask(svc, RecaptchaV2{SiteKey: "sk", PageURL: "u"}, "1", nil)
	_, err := svc.waitForSolution(ctx, task)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestSolvedCaptchaRequiresResult(t *testing.T) {
	svc := newTestService(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{}`)
	})
	task := newCaptchaTask(svc, RecaptchaV2{SiteKey: "sk", PageURL: "u"}, "1", nil)

	_, err := newSolvedCaptcha(task, nil, time.Now(), time.Now())
	if !errors.Is(err, ErrNotSolved) {
		t.Fatalf("expected ErrNotSolved for pending task, got %v", err)
	}
}

func TestReportCapability(t *testing.T) {
	var calls int
	handler := func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(200, `{"errorId":0}`)
	}

	svc := newTestService(t, AntiCaptcha, handler)
	task := newCaptchaTask(svc, ImageCaptcha{Image: testPNG(t)}, "55", nil)
	task.setResult(&solveOutcome{solution: ImageSolution{Text: "abc"}})
	solved, err := newSolvedCaptcha(task, task.getResult(), time.Now(), time.Now())
	if err != nil {
		t.Fatalf("failed to build solved captcha: %v", err)
	}

	if err := solved.ReportGood(context.Background()); !IsUnsupported(err) {
		t.Fatalf("expected capability error for good report, got %v", err)
	}
	if calls != 0 {
		t.Fatal("unsupported report must not reach the wire")
	}
	if err := solved.ReportBad(context.Background()); err != nil {
		t.Fatalf("failed to report bad: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 report call, got %d", calls)
	}
}

func TestStatusSwallowsErrors(t *testing.T) {
	svc := newTestService(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `not json at all`)
	})
	if svc.status(context.Background()) {
		t.Error("expected unhealthy status on unparseable response")
	}

	svc = newTestService(t, TwoCaptcha, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"status":1,"request":"12.345"}`)
	})
	if !svc.status(context.Background()) {
		t.Error("expected healthy status")
	}
}

func TestSupportedKinds(t *testing.T) {
	cases := []struct {
		service   ServiceName
		supported CaptchaKind
		missing   CaptchaKind
		count     int
	}{
		{TwoCaptcha, KindTikTok, -1, 11},
		{RuCaptcha, KindCapy, -1, 11},
		{CaptchaGuru, KindGeeTest, KindTikTok, 5},
		{AZCaptcha, KindFunCaptcha, KindGeeTest, 5},
		{AntiCaptcha, KindGeeTest, KindCapy, 6},
		{DeathByCaptcha, KindHCaptcha, KindGeeTest, 5},
	}

	for _, tc := range cases {
		t.Run(string(tc.service), func(t *testing.T) {
			svc, err := newService(tc.service, "key")
			if err != nil {
				t.Fatalf("failed to create service: %v", err)
			}
			if !svc.supports(tc.supported) {
				t.Errorf("expected %s to support %s", tc.service, tc.supported)
			}
			if tc.missing >= 0 && svc.supports(tc.missing) {
				t.Errorf("expected %s to not support %s", tc.service, tc.missing)
			}
			if got := len(svc.supportedKinds()); got != tc.count {
				t.Errorf("expected %d supported kinds, got %d", tc.count, got)
			}
		})
	}
}
