package capmux

import "time"

// Settings holds the polling cadence for one (service, CaptchaKind) pair.
// The defaults are overridden per service to match each provider's observed
// latency profile.
type Settings struct {
	// PollingDelay is how long to wait after submission before the first
	// solution fetch.
	PollingDelay time.Duration
	// PollingInterval is the pause between consecutive fetch attempts.
	PollingInterval time.Duration
	// SolutionTimeout bounds the whole wait; exceeding it fails the solve
	// with SolutionTimeoutError.
	SolutionTimeout time.Duration
}

func defaultSettings() Settings {
	return Settings{
		PollingDelay:    5 * time.Second,
		PollingInterval: 2 * time.Second,
		SolutionTimeout: 300 * time.Second,
	}
}

// settingsTable pairs a base profile with per-kind overrides.
type settingsTable struct {
	base      Settings
	overrides map[CaptchaKind]Settings
}

func (t settingsTable) forKind(kind CaptchaKind) Settings {
	if s, ok := t.overrides[kind]; ok {
		return s
	}
	return t.base
}

// Latency profiles below mirror each provider's documented/observed behavior:
// token captchas (reCAPTCHA, hCaptcha) take considerably longer than image
// recognition, so they get a longer first delay and overall timeout.

var twoCaptchaSettings = settingsTable{
	base: Settings{PollingDelay: 5 * time.Second, PollingInterval: 5 * time.Second, SolutionTimeout: 180 * time.Second},
	overrides: map[CaptchaKind]Settings{
		KindRecaptchaV2: {PollingDelay: 20 * time.Second, PollingInterval: 5 * time.Second, SolutionTimeout: 300 * time.Second},
		KindHCaptcha:    {PollingDelay: 20 * time.Second, PollingInterval: 5 * time.Second, SolutionTimeout: 300 * time.Second},
		KindRecaptchaV3: {PollingDelay: 15 * time.Second, PollingInterval: 5 * time.Second, SolutionTimeout: 180 * time.Second},
		KindTikTok:      {PollingDelay: 5 * time.Second, PollingInterval: 1 * time.Second, SolutionTimeout: 180 * time.Second},
	},
}

var azCaptchaSettings = settingsTable{
	base: Settings{PollingDelay: 5 * time.Second, PollingInterval: 5 * time.Second, SolutionTimeout: 180 * time.Second},
	overrides: map[CaptchaKind]Settings{
		KindRecaptchaV2: {PollingDelay: 20 * time.Second, PollingInterval: 5 * time.Second, SolutionTimeout: 300 * time.Second},
		KindHCaptcha:    {PollingDelay: 20 * time.Second, PollingInterval: 5 * time.Second, SolutionTimeout: 300 * time.Second},
		KindRecaptchaV3: {PollingDelay: 15 * time.Second, PollingInterval: 5 * time.Second, SolutionTimeout: 180 * time.Second},
	},
}

var antiCaptchaSettings = settingsTable{
	base: Settings{PollingDelay: 10 * time.Second, PollingInterval: 2 * time.Second, SolutionTimeout: 300 * time.Second},
	overrides: map[CaptchaKind]Settings{
		KindImage: {PollingDelay: 5 * time.Second, PollingInterval: 2 * time.Second, SolutionTimeout: 90 * time.Second},
	},
}

var deathByCaptchaSettings = settingsTable{
	base: Settings{PollingDelay: 5 * time.Second, PollingInterval: 2 * time.Second, SolutionTimeout: 180 * time.Second},
	overrides: map[CaptchaKind]Settings{
		KindRecaptchaV2: {PollingDelay: 15 * time.Second, PollingInterval: 2 * time.Second, SolutionTimeout: 200 * time.Second},
		KindHCaptcha:    {PollingDelay: 15 * time.Second, PollingInterval: 2 * time.Second, SolutionTimeout: 200 * time.Second},
		KindRecaptchaV3: {PollingDelay: 15 * time.Second, PollingInterval: 2 * time.Second, SolutionTimeout: 180 * time.Second},
	},
}
