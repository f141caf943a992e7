package capmux

import (
	"sort"
	"strings"
)

// ImageSolution carries the recognized text of an image CAPTCHA.
type ImageSolution struct {
	Text string
}

func (s ImageSolution) Kind() CaptchaKind { return KindImage }
func (s ImageSolution) String() string    { return s.Text }

// TextSolution carries the worker's answer to a text CAPTCHA.
type TextSolution struct {
	Text string
}

func (s TextSolution) Kind() CaptchaKind { return KindText }
func (s TextSolution) String() string    { return s.Text }

// RecaptchaV2Solution carries the g-recaptcha-response token.
type RecaptchaV2Solution struct {
	Token string
}

func (s RecaptchaV2Solution) Kind() CaptchaKind { return KindRecaptchaV2 }
func (s RecaptchaV2Solution) String() string    { return s.Token }

// RecaptchaV3Solution carries the g-recaptcha-response token.
type RecaptchaV3Solution struct {
	Token string
}

func (s RecaptchaV3Solution) Kind() CaptchaKind { return KindRecaptchaV3 }
func (s RecaptchaV3Solution) String() string    { return s.Token }

// FunCaptchaSolution carries the session token to submit with the form.
type FunCaptchaSolution struct {
	Token string
}

func (s FunCaptchaSolution) Kind() CaptchaKind { return KindFunCaptcha }
func (s FunCaptchaSolution) String() string    { return s.Token }

// HCaptchaSolution carries the h-captcha-response token.
type HCaptchaSolution struct {
	Token string
}

func (s HCaptchaSolution) Kind() CaptchaKind { return KindHCaptcha }
func (s HCaptchaSolution) String() string    { return s.Token }

// KeyCaptchaSolution carries the verification token.
type KeyCaptchaSolution struct {
	Token string
}

func (s KeyCaptchaSolution) Kind() CaptchaKind { return KindKeyCaptcha }
func (s KeyCaptchaSolution) String() string    { return s.Token }

// GeeTestSolution is the GeeTest v3 challenge/validate/seccode triple.
type GeeTestSolution struct {
	Challenge string
	Validate  string
	SecCode   string
}

func (s GeeTestSolution) Kind() CaptchaKind { return KindGeeTest }

func (s GeeTestSolution) String() string {
	return strings.Join([]string{s.Challenge, s.Validate, s.SecCode}, "\n")
}

// GeeTestV4Solution is the five-field GeeTest v4 result set.
type GeeTestV4Solution struct {
	CaptchaID     string
	LotNumber     string
	PassToken     string
	GenTime       string
	CaptchaOutput string
}

func (s GeeTestV4Solution) Kind() CaptchaKind { return KindGeeTestV4 }

func (s GeeTestV4Solution) String() string {
	return strings.Join(
		[]string{s.CaptchaID, s.LotNumber, s.PassToken, s.GenTime, s.CaptchaOutput}, "\n",
	)
}

// CapySolution is the Capy captchakey/challengekey/answer triple.
type CapySolution struct {
	CaptchaKey   string
	ChallengeKey string
	Answer       string
}

func (s CapySolution) Kind() CaptchaKind { return KindCapy }

func (s CapySolution) String() string {
	return strings.Join([]string{s.CaptchaKey, s.ChallengeKey, s.Answer}, "\n")
}

// TikTokSolution is the cookie jar the service returns for TikTok challenges.
type TikTokSolution struct {
	Cookies map[string]string
}

func (s TikTokSolution) Kind() CaptchaKind { return KindTikTok }

func (s TikTokSolution) String() string {
	names := make([]string, 0, len(s.Cookies))
	for name := range s.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+s.Cookies[name])
	}
	return strings.Join(pairs, "; ")
}
