package capmux

import (
	"bytes"
	"encoding/base64"
	"image"
	"strings"

	// Raster formats the image descriptor accepts. Decoding registers with
	// image.DecodeConfig; anything else fails closed as bad input.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// =============================================================================
// Image
// =============================================================================

// ImageCaptcha is a classic picture-of-characters challenge.
type ImageCaptcha struct {
	Image []byte

	CharType        *CharType
	IsPhrase        *bool
	IsCaseSensitive *bool
	IsMath          *bool
	MinLen          *int
	MaxLen          *int
	Alphabet        *Alphabet
	Language        *WorkerLanguage
	Comment         *string
}

func (c ImageCaptcha) Kind() CaptchaKind { return KindImage }

func (c ImageCaptcha) Validate() error {
	if len(c.Image) == 0 {
		return badInputError("empty image")
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(c.Image)); err != nil || format == "" {
		return badInputError("unable to recognize image type")
	}
	if c.MinLen != nil && *c.MinLen <= 0 {
		return badInputError("min length must be positive")
	}
	if c.MaxLen != nil && *c.MaxLen <= 0 {
		return badInputError("max length must be positive")
	}
	return nil
}

// ImageBase64 returns the image payload encoded the way every service's
// submission endpoint expects it.
func (c ImageCaptcha) ImageBase64() string {
	return base64.StdEncoding.EncodeToString(c.Image)
}

func (c ImageCaptcha) optionalValues() []optValue {
	var vals []optValue
	if c.CharType != nil {
		vals = appendOpt(vals, "char_type", *c.CharType)
	}
	if c.IsPhrase != nil {
		vals = appendOpt(vals, "is_phrase", *c.IsPhrase)
	}
	if c.IsCaseSensitive != nil {
		vals = appendOpt(vals, "is_case_sensitive", *c.IsCaseSensitive)
	}
	if c.IsMath != nil {
		vals = appendOpt(vals, "is_math", *c.IsMath)
	}
	if c.MinLen != nil {
		vals = appendOpt(vals, "min_len", *c.MinLen)
	}
	if c.MaxLen != nil {
		vals = appendOpt(vals, "max_len", *c.MaxLen)
	}
	if c.Alphabet != nil {
		vals = appendOpt(vals, "alphabet", *c.Alphabet)
	}
	if c.Language != nil {
		vals = appendOpt(vals, "language", *c.Language)
	}
	if c.Comment != nil {
		vals = appendOpt(vals, "comment", *c.Comment)
	}
	return vals
}

// =============================================================================
// reCAPTCHA v2 / v3
// =============================================================================

// RecaptchaV2 targets a Google reCAPTCHA v2 widget, including the invisible
// and enterprise variants.
type RecaptchaV2 struct {
	SiteKey string
	PageURL string

	IsInvisible  bool
	IsEnterprise bool
	DataS        *string
	APIDomain    *string
}

func (c RecaptchaV2) Kind() CaptchaKind { return KindRecaptchaV2 }

func (c RecaptchaV2) Validate() error {
	if c.SiteKey == "" {
		return badInputError("site key is required")
	}
	if c.PageURL == "" {
		return badInputError("page URL is required")
	}
	return nil
}

func (c RecaptchaV2) optionalValues() []optValue {
	var vals []optValue
	if c.DataS != nil {
		vals = appendOpt(vals, "data_s", *c.DataS)
	}
	if c.APIDomain != nil {
		vals = appendOpt(vals, "api_domain", *c.APIDomain)
	}
	return vals
}

// RecaptchaV3 targets a score-based Google reCAPTCHA v3 widget.
type RecaptchaV3 struct {
	SiteKey string
	PageURL string

	IsEnterprise bool
	Action       *string
	MinScore     *float64
	APIDomain    *string
}

func (c RecaptchaV3) Kind() CaptchaKind { return KindRecaptchaV3 }

func (c RecaptchaV3) Validate() error {
	if c.SiteKey == "" {
		return badInputError("site key is required")
	}
	if c.PageURL == "" {
		return badInputError("page URL is required")
	}
	if c.MinScore != nil && (*c.MinScore < 0 || *c.MinScore > 1) {
		return badInputError("min score must be within [0, 1]")
	}
	return nil
}

func (c RecaptchaV3) optionalValues() []optValue {
	var vals []optValue
	if c.Action != nil {
		vals = appendOpt(vals, "action", *c.Action)
	}
	if c.MinScore != nil {
		vals = appendOpt(vals, "min_score", *c.MinScore)
	}
	if c.APIDomain != nil {
		vals = appendOpt(vals, "api_domain", *c.APIDomain)
	}
	return vals
}

// =============================================================================
// Text
// =============================================================================

// TextCaptcha is a plain question for a human worker ("2 + 2 = ?").
type TextCaptcha struct {
	Text string

	Alphabet *Alphabet
	Language *WorkerLanguage
}

func (c TextCaptcha) Kind() CaptchaKind { return KindText }

func (c TextCaptcha) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return badInputError("text is required")
	}
	return nil
}

func (c TextCaptcha) optionalValues() []optValue {
	var vals []optValue
	if c.Alphabet != nil {
		vals = appendOpt(vals, "alphabet", *c.Alphabet)
	}
	if c.Language != nil {
		vals = appendOpt(vals, "language", *c.Language)
	}
	return vals
}

// =============================================================================
// FunCaptcha
// =============================================================================

// FunCaptcha targets an Arkose Labs FunCaptcha widget.
type FunCaptcha struct {
	PublicKey string
	PageURL   string

	ServiceURL *string
	NoJS       *bool
	Blob       *string
}

func (c FunCaptcha) Kind() CaptchaKind { return KindFunCaptcha }

func (c FunCaptcha) Validate() error {
	if c.PublicKey == "" {
		return badInputError("public key is required")
	}
	if c.PageURL == "" {
		return badInputError("page URL is required")
	}
	return nil
}

func (c FunCaptcha) optionalValues() []optValue {
	var vals []optValue
	if c.ServiceURL != nil {
		vals = appendOpt(vals, "service_url", *c.ServiceURL)
	}
	if c.NoJS != nil {
		vals = appendOpt(vals, "no_js", *c.NoJS)
	}
	if c.Blob != nil {
		vals = appendOpt(vals, "blob", *c.Blob)
	}
	return vals
}

// =============================================================================
// GeeTest v3 / v4
// =============================================================================

// GeeTest targets a GeeTest v3 slider challenge.
type GeeTest struct {
	PageURL   string
	GTKey     string
	Challenge string

	APIServer *string
}

func (c GeeTest) Kind() CaptchaKind { return KindGeeTest }

func (c GeeTest) Validate() error {
	if c.PageURL == "" {
		return badInputError("page URL is required")
	}
	if c.GTKey == "" {
		return badInputError("gt key is required")
	}
	if c.Challenge == "" {
		return badInputError("challenge is required")
	}
	return nil
}

func (c GeeTest) optionalValues() []optValue {
	var vals []optValue
	if c.APIServer != nil {
		vals = appendOpt(vals, "api_server", *c.APIServer)
	}
	return vals
}

// GeeTestV4 targets a GeeTest v4 (adaptive) challenge.
type GeeTestV4 struct {
	PageURL   string
	CaptchaID string
}

func (c GeeTestV4) Kind() CaptchaKind { return KindGeeTestV4 }

func (c GeeTestV4) Validate() error {
	if c.PageURL == "" {
		return badInputError("page URL is required")
	}
	if c.CaptchaID == "" {
		return badInputError("captcha ID is required")
	}
	return nil
}

func (c GeeTestV4) optionalValues() []optValue { return nil }

// =============================================================================
// hCaptcha
// =============================================================================

// HCaptcha targets an hCaptcha widget.
type HCaptcha struct {
	SiteKey string
	PageURL string

	IsInvisible bool
	APIDomain   *string
}

func (c HCaptcha) Kind() CaptchaKind { return KindHCaptcha }

func (c HCaptcha) Validate() error {
	if c.SiteKey == "" {
		return badInputError("site key is required")
	}
	if c.PageURL == "" {
		return badInputError("page URL is required")
	}
	return nil
}

func (c HCaptcha) optionalValues() []optValue {
	var vals []optValue
	if c.APIDomain != nil {
		vals = appendOpt(vals, "api_domain", *c.APIDomain)
	}
	return vals
}

// =============================================================================
// KeyCaptcha
// =============================================================================

// KeyCaptcha targets a keycaptcha.com puzzle; the four signature parameters
// come straight from the page source.
type KeyCaptcha struct {
	PageURL   string
	UserID    string
	SessionID string
	WSSign    string
	WSSign2   string
}

func (c KeyCaptcha) Kind() CaptchaKind { return KindKeyCaptcha }

func (c KeyCaptcha) Validate() error {
	switch "" {
	case c.PageURL:
		return badInputError("page URL is required")
	case c.UserID:
		return badInputError("user ID is required")
	case c.SessionID:
		return badInputError("session ID is required")
	case c.WSSign, c.WSSign2:
		return badInputError("web server sign is required")
	}
	return nil
}

func (c KeyCaptcha) optionalValues() []optValue { return nil }

// =============================================================================
// Capy
// =============================================================================

// CapyPuzzle targets a Capy puzzle widget.
type CapyPuzzle struct {
	SiteKey string
	PageURL string

	APIServer *string
}

func (c CapyPuzzle) Kind() CaptchaKind { return KindCapy }

func (c CapyPuzzle) Validate() error {
	if c.SiteKey == "" {
		return badInputError("site key is required")
	}
	if c.PageURL == "" {
		return badInputError("page URL is required")
	}
	return nil
}

func (c CapyPuzzle) optionalValues() []optValue {
	var vals []optValue
	if c.APIServer != nil {
		vals = appendOpt(vals, "api_server", *c.APIServer)
	}
	return vals
}

// =============================================================================
// TikTok
// =============================================================================

// TikTokCaptcha targets TikTok's login/signup challenge. AID and Host
// override the per-page defaults the service documents.
type TikTokCaptcha struct {
	PageURL string

	AID  *int
	Host *string
}

func (c TikTokCaptcha) Kind() CaptchaKind { return KindTikTok }

func (c TikTokCaptcha) Validate() error {
	if c.PageURL == "" {
		return badInputError("page URL is required")
	}
	return nil
}

func (c TikTokCaptcha) optionalValues() []optValue {
	var vals []optValue
	if c.AID != nil {
		vals = appendOpt(vals, "aid", *c.AID)
	}
	if c.Host != nil {
		vals = appendOpt(vals, "host", *c.Host)
	}
	return vals
}
