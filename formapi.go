package capmux

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	http "github.com/bogdanfinn/fhttp"
)

// =============================================================================
// Form wire family: 2captcha.com, rucaptcha.com, azcaptcha.com, captcha.guru
// =============================================================================

// formAPI speaks the classic in.php/res.php protocol: form-encoded task
// submission and query-string result polling, both answered with a
// {"status": 1, "request": ...} JSON envelope.
type formAPI struct {
	// submitViaGET moves the submission payload into the query string;
	// captcha.guru rejects POST bodies.
	submitViaGET bool
	// softIDKey/softIDValue credit the client integration; both the key
	// name and the value differ per service. Empty key means the service
	// takes no such parameter.
	softIDKey   string
	softIDValue string
	// solutionAction is the res.php action used to fetch results. "get2"
	// returns the solve price alongside the answer, "get" does not.
	solutionAction string
}

func init() {
	allFormKinds := kindSet(
		KindImage, KindRecaptchaV2, KindRecaptchaV3, KindText, KindFunCaptcha,
		KindKeyCaptcha, KindGeeTest, KindGeeTestV4, KindHCaptcha, KindCapy,
		KindTikTok,
	)
	twoCaptchaAPI := &formAPI{
		softIDKey:      "soft_id",
		softIDValue:    "2738",
		solutionAction: "get2",
	}

	registerService(&serviceConfig{
		name:             TwoCaptcha,
		baseURL:          "https://2captcha.com",
		handleHTTPErrors: true,
		api:              twoCaptchaAPI,
		kinds:            allFormKinds,
		settings:         twoCaptchaSettings,
		reportGood:       true,
		reportBad:        true,
	})
	// rucaptcha is the same API under a different hostname.
	registerService(&serviceConfig{
		name:             RuCaptcha,
		baseURL:          "https://rucaptcha.com",
		handleHTTPErrors: true,
		api:              twoCaptchaAPI,
		kinds:            allFormKinds,
		settings:         twoCaptchaSettings,
		reportGood:       true,
		reportBad:        true,
	})
	registerService(&serviceConfig{
		name:             CaptchaGuru,
		baseURL:          "http://api.captcha.guru",
		handleHTTPErrors: true,
		api: &formAPI{
			submitViaGET:   true,
			softIDKey:      "softguru",
			softIDValue:    "127872",
			solutionAction: "get2",
		},
		kinds: kindSet(
			KindImage, KindRecaptchaV2, KindRecaptchaV3, KindHCaptcha,
			KindGeeTest,
		),
		settings:   twoCaptchaSettings,
		reportGood: true,
		reportBad:  true,
	})
	registerService(&serviceConfig{
		name:             AZCaptcha,
		baseURL:          "http://azcaptcha.com",
		handleHTTPErrors: true,
		api:              &formAPI{solutionAction: "get"},
		kinds: kindSet(
			KindImage, KindRecaptchaV2, KindRecaptchaV3, KindHCaptcha,
			KindFunCaptcha,
		),
		settings:   azCaptchaSettings,
		reportGood: true,
		reportBad:  true,
	})
}

// =============================================================================
// Task submission
// =============================================================================

func (a *formAPI) buildTask(s *service, c Captcha, o *SolveOptions) (*request, error) {
	payload, err := a.taskPayload(c)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("key", s.apiKey)
	values.Set("json", "1")
	if a.softIDKey != "" {
		values.Set(a.softIDKey, a.softIDValue)
	}
	for key, v := range payload {
		values.Set(key, wireString(v))
	}

	if o != nil {
		if o.Proxy != nil {
			values.Set("proxy", o.Proxy.hostPort())
			values.Set("proxytype", strings.ToUpper(string(o.Proxy.Type)))
		}
		if o.UserAgent != "" {
			values.Set("userAgent", o.UserAgent)
		}
		if len(o.Cookies) > 0 {
			values.Set("cookies", joinCookies(o.Cookies, ":", ";"))
		}
	}

	req := &request{method: http.MethodPost, url: s.cfg.baseURL + "/in.php", form: values}
	if a.submitViaGET {
		req.method = http.MethodGet
		req.query = values
		req.form = nil
	}
	return req, nil
}

func (a *formAPI) parseTask(resp *response) (string, map[string]any, error) {
	raw, extra, err := a.parseEnvelope(resp)
	if err != nil {
		return "", nil, err
	}
	var taskID string
	if err := json.Unmarshal(raw, &taskID); err != nil {
		return "", nil, newAPIError(KindService, "BAD_RESPONSE", "unexpected task ID payload")
	}
	return taskID, extra, nil
}

// taskPayload builds the kind-specific in.php parameters.
func (a *formAPI) taskPayload(c Captcha) (map[string]any, error) {
	switch c := c.(type) {
	case ImageCaptcha:
		return formPayload(c, formImageFields, map[string]any{
			"method": "base64",
			"body":   c.ImageBase64(),
		}), nil
	case RecaptchaV2:
		payload := formPayload(c, formRecaptchaV2Fields, map[string]any{
			"method":    "userrecaptcha",
			"googlekey": c.SiteKey,
			"pageurl":   c.PageURL,
			"invisible": boolInt(c.IsInvisible),
		})
		if c.IsEnterprise {
			payload["enterprise"] = 1
		}
		return payload, nil
	case RecaptchaV3:
		payload := formPayload(c, formRecaptchaV3Fields, map[string]any{
			"method":    "userrecaptcha",
			"version":   "v3",
			"googlekey": c.SiteKey,
			"pageurl":   c.PageURL,
		})
		if c.IsEnterprise {
			payload["enterprise"] = 1
		}
		return payload, nil
	case TextCaptcha:
		return formPayload(c, formTextFields, map[string]any{
			"textcaptcha": c.Text,
		}), nil
	case FunCaptcha:
		return formPayload(c, formFunCaptchaFields, map[string]any{
			"method":    "funcaptcha",
			"publickey": c.PublicKey,
			"pageurl":   c.PageURL,
		}), nil
	case KeyCaptcha:
		return map[string]any{
			"method":                 "keycaptcha",
			"s_s_c_user_id":          c.UserID,
			"s_s_c_session_id":       c.SessionID,
			"s_s_c_web_server_sign":  c.WSSign,
			"s_s_c_web_server_sign2": c.WSSign2,
			"pageurl":                c.PageURL,
		}, nil
	case GeeTest:
		return formPayload(c, formGeeTestFields, map[string]any{
			"method":    "geetest",
			"gt":        c.GTKey,
			"challenge": c.Challenge,
			"pageurl":   c.PageURL,
		}), nil
	case GeeTestV4:
		// The trailing space in the method name is required verbatim;
		// the service treats "geetest_v4" without it as unknown.
		return map[string]any{
			"method":     "geetest_v4 ",
			"captcha_id": c.CaptchaID,
			"pageurl":    c.PageURL,
		}, nil
	case HCaptcha:
		return formPayload(c, formHCaptchaFields, map[string]any{
			"method":    "hcaptcha",
			"sitekey":   c.SiteKey,
			"pageurl":   c.PageURL,
			"invisible": boolInt(c.IsInvisible),
		}), nil
	case CapyPuzzle:
		return formPayload(c, formCapyFields, map[string]any{
			"method":     "capy",
			"captchakey": c.SiteKey,
			"pageurl":    c.PageURL,
		}), nil
	case TikTokCaptcha:
		payload := map[string]any{
			"method":  "tiktok",
			"pageurl": c.PageURL,
		}
		aid, host := tiktokDefaults(c.PageURL)
		if c.AID != nil {
			payload["aid"] = *c.AID
		} else if aid != 0 {
			payload["aid"] = aid
		}
		if c.Host != nil {
			payload["host"] = *c.Host
		} else if host != "" {
			payload["host"] = host
		}
		return payload, nil
	}
	return nil, badInputError("no task builder for %s", c.Kind())
}

// tiktokDefaults returns the documented aid/host values for known TikTok
// challenge pages.
func tiktokDefaults(pageURL string) (int, string) {
	switch {
	case strings.HasPrefix(pageURL, "https://www.tiktok.com/login/phone-or-email/email"):
		return 1459, "https://www-useast1a.tiktok.com"
	case strings.HasPrefix(pageURL, "https://ads.tiktok.com/i18n/signup"):
		return 1583, "https://verify-sg.byteoversea.com"
	}
	return 0, ""
}

// =============================================================================
// Optional field maps
// =============================================================================

var formImageFields = FieldMap{
	"is_phrase":         {Key: "phrase", Convert: boolToInt},
	"is_case_sensitive": {Key: "regsense", Convert: boolToInt},
	"char_type":         {Key: "numeric", Convert: charTypeCode},
	"is_math":           {Key: "calc", Convert: boolToInt},
	"min_len":           {Key: "min_len"},
	"max_len":           {Key: "max_len"},
	"alphabet":          {Key: "language", Convert: formAlphabetCode},
	"language":          {Key: "lang"},
	"comment":           {Key: "textinstructions"},
}

var formRecaptchaV2Fields = FieldMap{
	"data_s":     {Key: "data-s"},
	"api_domain": {Key: "domain"},
}

var formRecaptchaV3Fields = FieldMap{
	"action":     {Key: "action"},
	"min_score":  {Key: "min_score"},
	"api_domain": {Key: "domain"},
}

var formTextFields = FieldMap{
	"alphabet": {Key: "language", Convert: formAlphabetCode},
	"language": {Key: "lang"},
}

var formFunCaptchaFields = FieldMap{
	"service_url": {Key: "surl"},
	"no_js":       {Key: "nojs", Convert: boolToInt},
	"blob":        {Key: "data[blob]"},
}

var formGeeTestFields = FieldMap{
	"api_server": {Key: "api_server"},
}

var formHCaptchaFields = FieldMap{
	"api_domain": {Key: "domain"},
}

var formCapyFields = FieldMap{
	"api_server": {Key: "api_server"},
}

func boolToInt(v any) any { return boolInt(v.(bool)) }

func charTypeCode(v any) any { return int(v.(CharType)) }

// formAlphabetCode renders the 2captcha "language" parameter: 1 for
// Cyrillic, 2 for Latin.
func formAlphabetCode(v any) any {
	switch v.(Alphabet) {
	case AlphabetCyrillic:
		return 1
	case AlphabetLatin:
		return 2
	}
	return 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formPayload(c Captcha, fields FieldMap, required map[string]any) map[string]any {
	for key, v := range OptionalData(c, fields) {
		required[key] = v
	}
	return required
}

// =============================================================================
// Solutions, balance, reports
// =============================================================================

func (a *formAPI) buildSolution(s *service, task *CaptchaTask) (*request, error) {
	return a.resRequest(s, url.Values{
		"action": {a.solutionAction},
		"id":     {task.ID()},
	}), nil
}

func (a *formAPI) parseSolution(task *CaptchaTask, resp *response) (*solveOutcome, error) {
	raw, extra, err := a.parseEnvelope(resp)
	if err != nil {
		return nil, err
	}

	solution, err := decodeFormSolution(task.Captcha().Kind(), raw)
	if err != nil {
		return nil, err
	}

	outcome := &solveOutcome{solution: solution, extra: extra}
	if price, ok := extra["price"]; ok {
		delete(extra, "price")
		if f, err := strconv.ParseFloat(fmt.Sprint(price), 64); err == nil {
			outcome.cost = Float64(f)
		}
	}
	return outcome, nil
}

func decodeFormSolution(kind CaptchaKind, raw json.RawMessage) (Solution, error) {
	switch kind {
	case KindGeeTest:
		var data struct {
			Challenge string `json:"geetest_challenge"`
			Validate  string `json:"geetest_validate"`
			SecCode   string `json:"geetest_seccode"`
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, solutionDecodeError(kind, err)
		}
		return GeeTestSolution{
			Challenge: data.Challenge,
			Validate:  data.Validate,
			SecCode:   data.SecCode,
		}, nil
	case KindGeeTestV4:
		var data struct {
			CaptchaID     string `json:"captcha_id"`
			LotNumber     string `json:"lot_number"`
			PassToken     string `json:"pass_token"`
			GenTime       string `json:"gen_time"`
			CaptchaOutput string `json:"captcha_output"`
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, solutionDecodeError(kind, err)
		}
		return GeeTestV4Solution{
			CaptchaID:     data.CaptchaID,
			LotNumber:     data.LotNumber,
			PassToken:     data.PassToken,
			GenTime:       data.GenTime,
			CaptchaOutput: data.CaptchaOutput,
		}, nil
	case KindCapy:
		var data struct {
			CaptchaKey   string `json:"captchakey"`
			ChallengeKey string `json:"challengekey"`
			Answer       string `json:"answer"`
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, solutionDecodeError(kind, err)
		}
		return CapySolution{
			CaptchaKey:   data.CaptchaKey,
			ChallengeKey: data.ChallengeKey,
			Answer:       data.Answer,
		}, nil
	case KindTikTok:
		// The answer is a "name:value;name:value" cookie blob.
		var blob string
		if err := json.Unmarshal(raw, &blob); err != nil {
			return nil, solutionDecodeError(kind, err)
		}
		return TikTokSolution{Cookies: splitCookies(blob, ":", ";")}, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, solutionDecodeError(kind, err)
	}
	return textSolution(kind, text)
}

func (a *formAPI) buildBalance(s *service) (*request, error) {
	return a.resRequest(s, url.Values{"action": {"getbalance"}}), nil
}

func (a *formAPI) parseBalance(resp *response) (float64, error) {
	raw, _, err := a.parseEnvelope(resp)
	if err != nil {
		return 0, err
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		balance, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0, newAPIError(KindService, "BAD_RESPONSE", "unexpected balance value "+str)
		}
		return balance, nil
	}
	var balance float64
	if err := json.Unmarshal(raw, &balance); err != nil {
		return 0, newAPIError(KindService, "BAD_RESPONSE", "unexpected balance payload")
	}
	return balance, nil
}

// The form services have no dedicated health endpoint; a balance query
// doubles as the probe.
func (a *formAPI) buildStatus(s *service) (*request, error) {
	return a.buildBalance(s)
}

func (a *formAPI) parseStatus(resp *response) error {
	_, err := a.parseBalance(resp)
	return err
}

func (a *formAPI) buildReport(s *service, solved *SolvedCaptcha, good bool) (*request, error) {
	action := "reportbad"
	if good {
		action = "reportgood"
	}
	return a.resRequest(s, url.Values{
		"action": {action},
		"id":     {solved.ID()},
	}), nil
}

func (a *formAPI) parseReport(resp *response) error {
	_, _, err := a.parseEnvelope(resp)
	return err
}

func (a *formAPI) resRequest(s *service, query url.Values) *request {
	query.Set("key", s.apiKey)
	query.Set("json", "1")
	return &request{
		method: http.MethodGet,
		url:    s.cfg.baseURL + "/res.php",
		query:  query,
	}
}

// =============================================================================
// Envelope and errors
// =============================================================================

// parseEnvelope unpacks the common {"status", "request", ...} JSON envelope
// and returns the raw request payload plus any extra fields. A non-1 status
// is translated into the error taxonomy.
func (a *formAPI) parseEnvelope(resp *response) (json.RawMessage, map[string]any, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(resp.body, &fields); err != nil {
		return nil, nil, newAPIError(KindService, "BAD_RESPONSE", "unparseable response body")
	}

	var status int
	if raw, ok := fields["status"]; ok {
		if err := json.Unmarshal(raw, &status); err != nil {
			return nil, nil, newAPIError(KindService, "BAD_RESPONSE", "unexpected status value")
		}
	}
	raw := fields["request"]

	if status != 1 {
		var code string
		json.Unmarshal(raw, &code)
		var text string
		if errText, ok := fields["error_text"]; ok {
			json.Unmarshal(errText, &text)
		}
		return nil, nil, formError(code, text)
	}

	extra := make(map[string]any)
	for key, v := range fields {
		if key == "status" || key == "request" {
			continue
		}
		var value any
		if err := json.Unmarshal(v, &value); err == nil {
			extra[key] = value
		}
	}
	return raw, extra, nil
}

// formError maps a res.php/in.php error code to the taxonomy. The set of
// codes comes from the 2captcha API reference; unknown codes fall through to
// the generic service error.
func formError(code, text string) error {
	if code == "CAPCHA_NOT_READY" {
		return ErrSolutionNotReady
	}
	kind, ok := formErrorKinds[code]
	if !ok {
		kind = KindService
		if strings.HasPrefix(code, "ERROR:") {
			kind = KindTooManyRequests
		}
	}
	return newAPIError(kind, code, text)
}

var formErrorKinds = map[string]ErrorKind{
	"ERROR_WRONG_USER_KEY":           KindAccessDenied,
	"ERROR_KEY_DOES_NOT_EXIST":       KindAccessDenied,
	"ERROR_IP_NOT_ALLOWED":           KindAccessDenied,
	"IP_BANNED":                      KindAccessDenied,
	"ERROR_ZERO_BALANCE":             KindLowBalance,
	"ERROR_NO_SLOT_AVAILABLE":        KindServiceTooBusy,
	"MAX_USER_TURN":                  KindTooManyRequests,
	"ERROR_WRONG_ID_FORMAT":          KindMalformedRequest,
	"ERROR_WRONG_CAPTCHA_ID":         KindMalformedRequest,
	"ERROR_ZERO_CAPTCHA_FILESIZE":    KindBadInput,
	"ERROR_TOO_BIG_CAPTCHA_FILESIZE": KindBadInput,
	"ERROR_WRONG_FILE_EXTENSION":     KindBadInput,
	"ERROR_IMAGE_TYPE_NOT_SUPPORTED": KindBadInput,
	"ERROR_UPLOAD":                   KindBadInput,
	"ERROR_PAGEURL":                  KindBadInput,
	"ERROR_BAD_TOKEN_OR_PAGEURL":     KindBadInput,
	"ERROR_GOOGLEKEY":                KindBadInput,
	"ERROR_BAD_PARAMETERS":           KindBadInput,
	"ERROR_TOKEN_EXPIRED":            KindBadInput,
	"ERROR_EMPTY_ACTION":             KindBadInput,
	"ERROR_CAPTCHAIMAGE_BLOCKED":     KindUnsolvable,
	"ERROR_CAPTCHA_UNSOLVABLE":       KindUnsolvable,
	"ERROR_BAD_DUPLICATES":           KindUnsolvable,
	"ERROR_BAD_PROXY":                KindProxy,
	"ERROR_PROXY_CONNECTION_FAILED":  KindProxy,
}

// =============================================================================
// Shared wire helpers
// =============================================================================

// wireString renders a payload value as a form parameter.
func wireString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.Itoa(boolInt(x))
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// textSolution wraps a bare answer string in the kind's solution type.
func textSolution(kind CaptchaKind, text string) (Solution, error) {
	switch kind {
	case KindImage:
		return ImageSolution{Text: text}, nil
	case KindText:
		return TextSolution{Text: text}, nil
	case KindRecaptchaV2:
		return RecaptchaV2Solution{Token: text}, nil
	case KindRecaptchaV3:
		return RecaptchaV3Solution{Token: text}, nil
	case KindFunCaptcha:
		return FunCaptchaSolution{Token: text}, nil
	case KindHCaptcha:
		return HCaptchaSolution{Token: text}, nil
	case KindKeyCaptcha:
		return KeyCaptchaSolution{Token: text}, nil
	}
	return nil, solutionDecodeError(kind, fmt.Errorf("no plain-text solution for this kind"))
}

func solutionDecodeError(kind CaptchaKind, err error) error {
	return newAPIError(KindService, "BAD_RESPONSE",
		fmt.Sprintf("decode %s solution: %v", kind, err))
}

// joinCookies flattens a cookie map into a deterministic single string.
// Form services take "name:value;name:value", JSON services take
// "name=value; name=value".
func joinCookies(cookies map[string]string, kvSep, pairSep string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+kvSep+cookies[name])
	}
	return strings.Join(pairs, pairSep)
}

// splitCookies parses a flattened cookie string back into a map.
func splitCookies(blob, kvSep, pairSep string) map[string]string {
	cookies := make(map[string]string)
	for _, pair := range strings.Split(blob, pairSep) {
		if pair = strings.TrimSpace(pair); pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, kvSep)
		cookies[name] = value
	}
	return cookies
}
