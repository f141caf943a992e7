package capmux

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	http "github.com/bogdanfinn/fhttp"
)

// =============================================================================
// Death By Captcha wire family: deathbycaptcha.com
// =============================================================================

// dbcAPI speaks the dbcapi.me REST protocol: authtoken form posts against
// /captcha, numeric task type codes with a JSON parameter blob, and result
// polling via GET /captcha/<id>. The service leans on HTTP status codes
// (303 on accepted submissions), so HTTP error handling stays off and the
// body is parsed regardless of status.
type dbcAPI struct{}

// Numeric task type codes from the dbcapi.me reference.
const (
	dbcTypeRecaptchaV2 = 4
	dbcTypeRecaptchaV3 = 5
	dbcTypeFunCaptcha  = 6
	dbcTypeHCaptcha    = 7
)

func init() {
	registerService(&serviceConfig{
		name:             DeathByCaptcha,
		baseURL:          "http://api.dbcapi.me/api",
		handleHTTPErrors: false,
		api:              &dbcAPI{},
		kinds: kindSet(
			KindImage, KindRecaptchaV2, KindRecaptchaV3, KindFunCaptcha,
			KindHCaptcha,
		),
		settings:  deathByCaptchaSettings,
		reportBad: true,
	})
}

// =============================================================================
// Task submission
// =============================================================================

func (a *dbcAPI) buildTask(s *service, c Captcha, o *SolveOptions) (*request, error) {
	form := url.Values{}
	form.Set("authtoken", s.apiKey)

	switch c := c.(type) {
	case ImageCaptcha:
		form.Set("captchafile", "base64:"+c.ImageBase64())
	case RecaptchaV2:
		params := map[string]any{
			"googlekey": c.SiteKey,
			"pageurl":   c.PageURL,
		}
		for key, v := range OptionalData(c, dbcRecaptchaV2Fields) {
			params[key] = v
		}
		if err := setDBCParams(form, dbcTypeRecaptchaV2, "token_params", params, o); err != nil {
			return nil, err
		}
	case RecaptchaV3:
		params := map[string]any{
			"googlekey": c.SiteKey,
			"pageurl":   c.PageURL,
		}
		for key, v := range OptionalData(c, dbcRecaptchaV3Fields) {
			params[key] = v
		}
		if err := setDBCParams(form, dbcTypeRecaptchaV3, "token_params", params, o); err != nil {
			return nil, err
		}
	case FunCaptcha:
		params := map[string]any{
			"publickey": c.PublicKey,
			"pageurl":   c.PageURL,
		}
		if err := setDBCParams(form, dbcTypeFunCaptcha, "funcaptcha_params", params, o); err != nil {
			return nil, err
		}
	case HCaptcha:
		params := map[string]any{
			"sitekey": c.SiteKey,
			"pageurl": c.PageURL,
		}
		if err := setDBCParams(form, dbcTypeHCaptcha, "hcaptcha_params", params, o); err != nil {
			return nil, err
		}
	default:
		return nil, badInputError("no task builder for %s", c.Kind())
	}

	return &request{
		method: http.MethodPost,
		url:    s.cfg.baseURL + "/captcha",
		form:   form,
	}, nil
}

var dbcRecaptchaV2Fields = FieldMap{
	"data_s": {Key: "data-s"},
}

var dbcRecaptchaV3Fields = FieldMap{
	"action":    {Key: "action"},
	"min_score": {Key: "min_score"},
}

// setDBCParams marshals the kind parameters (plus the caller's proxy, which
// this service takes inside the blob rather than as top-level fields) into
// the type-specific *_params form value.
func setDBCParams(form url.Values, typeCode int, key string, params map[string]any, o *SolveOptions) error {
	if o != nil && o.Proxy != nil {
		params["proxy"] = o.Proxy.String()
		params["proxytype"] = strings.ToUpper(string(o.Proxy.Type))
	}
	blob, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	form.Set("type", wireString(typeCode))
	form.Set(key, string(blob))
	return nil
}

func (a *dbcAPI) parseTask(resp *response) (string, map[string]any, error) {
	fields, err := parseDBCEnvelope(resp)
	if err != nil {
		return "", nil, err
	}

	// A rejected upload still answers status 0; is_correct carries the
	// verdict.
	if !dbcTruthy(fields["is_correct"]) {
		return "", nil, newAPIError(KindBadInput, "is_correct=false", "")
	}
	delete(fields, "is_correct")
	delete(fields, "text")

	taskID, ok := fields["captcha"]
	if !ok {
		return "", nil, newAPIError(KindService, "BAD_RESPONSE", "missing captcha ID")
	}
	delete(fields, "captcha")
	return wireString(taskID), fields, nil
}

// =============================================================================
// Solutions
// =============================================================================

func (a *dbcAPI) buildSolution(s *service, task *CaptchaTask) (*request, error) {
	return a.getRequest(s, "/captcha/"+task.ID()), nil
}

func (a *dbcAPI) parseSolution(task *CaptchaTask, resp *response) (*solveOutcome, error) {
	fields, err := parseDBCEnvelope(resp)
	if err != nil {
		return nil, err
	}

	if !dbcTruthy(fields["is_correct"]) {
		return nil, newAPIError(KindUnsolvable, "is_correct=false", "")
	}
	delete(fields, "is_correct")

	// An empty text field means the workers are still on it.
	text := dbcString(fields["text"])
	if text == "" {
		return nil, ErrSolutionNotReady
	}
	delete(fields, "text")
	delete(fields, "captcha")

	solution, err := textSolution(task.Captcha().Kind(), text)
	if err != nil {
		return nil, err
	}
	return &solveOutcome{solution: solution, extra: fields}, nil
}

// =============================================================================
// Balance, status, reports
// =============================================================================

func (a *dbcAPI) buildBalance(s *service) (*request, error) {
	return a.getRequest(s, ""), nil
}

func (a *dbcAPI) parseBalance(resp *response) (float64, error) {
	fields, err := parseDBCEnvelope(resp)
	if err != nil {
		return 0, err
	}
	// Balance is reported in US cents.
	var cents float64
	if _, err := fmt.Sscanf(dbcString(fields["balance"]), "%f", &cents); err != nil {
		return 0, newAPIError(KindService, "BAD_RESPONSE", "unexpected balance payload")
	}
	return cents / 100, nil
}

func (a *dbcAPI) buildStatus(s *service) (*request, error) {
	return a.getRequest(s, "/status"), nil
}

func (a *dbcAPI) parseStatus(resp *response) error {
	fields, err := parseDBCEnvelope(resp)
	if err != nil {
		return err
	}
	if dbcTruthy(fields["is_service_overloaded"]) {
		return newAPIError(KindServiceTooBusy, "is_service_overloaded", "")
	}
	return nil
}

func (a *dbcAPI) buildReport(s *service, solved *SolvedCaptcha, good bool) (*request, error) {
	form := url.Values{}
	form.Set("authtoken", s.apiKey)
	return &request{
		method: http.MethodPost,
		url:    s.cfg.baseURL + "/captcha/" + solved.ID() + "/report",
		form:   form,
	}, nil
}

func (a *dbcAPI) parseReport(resp *response) error {
	_, err := parseDBCEnvelope(resp)
	return err
}

func (a *dbcAPI) getRequest(s *service, uri string) *request {
	return &request{
		method: http.MethodGet,
		url:    s.cfg.baseURL + uri,
		query:  url.Values{"authtoken": {s.apiKey}},
	}
}

// =============================================================================
// Envelope and errors
// =============================================================================

// parseDBCEnvelope unpacks a response body and maps protocol errors. Success
// is status 0 on a 2xx or 303 answer; anything else resolves through the
// error table keyed on the "error" field.
func parseDBCEnvelope(resp *response) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(resp.body, &fields); err != nil {
		if resp.status >= 400 {
			return nil, newAPIError(KindService, fmt.Sprintf("HTTP %d", resp.status), "")
		}
		return nil, newAPIError(KindService, "BAD_RESPONSE", "unparseable response body")
	}

	status := 0
	if v, ok := fields["status"]; ok {
		if _, err := fmt.Sscanf(dbcString(v), "%d", &status); err != nil {
			return nil, newAPIError(KindService, "BAD_RESPONSE", "unexpected status value")
		}
	}
	ok := resp.status == http.StatusSeeOther || (resp.status >= 200 && resp.status < 300)
	if ok && status == 0 {
		delete(fields, "status")
		return fields, nil
	}

	text := dbcString(fields["error"])
	if text == "" {
		if resp.status >= 400 {
			text = fmt.Sprintf("[%d]", resp.status)
		} else {
			text = "unknown error"
		}
	}

	kind, ok := dbcErrorKinds[text]
	if !ok {
		kind = KindService
	}
	return nil, newAPIError(kind, fmt.Sprint(status), text)
}

var dbcErrorKinds = map[string]ErrorKind{
	"token authentication disabled":  KindAccessDenied,
	"not-logged-in":                  KindAccessDenied,
	"banned":                         KindAccessDenied,
	"insufficient-funds":             KindLowBalance,
	"service-overload":               KindServiceTooBusy,
	"upload-failed":                  KindMalformedRequest,
	"invalid-captcha":                KindMalformedRequest,
	"ERROR_PAGEURL":                  KindBadInput,
	"Invalid base64-encoded CAPTCHA": KindBadInput,
	"Not a (CAPTCHA) image":          KindBadInput,
	"Empty CAPTCHA image":            KindBadInput,
	"ERROR_GOOGLEKEY":                KindBadInput,
	"ERROR_PUBLICKEY":                KindBadInput,
	"ERROR_SITEKEY":                  KindBadInput,
	"ERROR_ACTION":                   KindBadInput,
	"ERROR_MIN_SCORE":                KindBadInput,
	"ERROR_MIN_SCORE_NOT_FLOAT":      KindBadInput,
	"ERROR_PROXYTYPE":                KindProxy,
	"ERROR_PROXY":                    KindProxy,
}

// dbcString renders a loosely-typed field as a string, treating a missing
// field as empty.
func dbcString(v any) string {
	if v == nil {
		return ""
	}
	return wireString(v)
}

// dbcTruthy interprets the service's loosely-typed flag fields (booleans,
// 0/1 numbers, or their string forms).
func dbcTruthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != "" && x != "0" && x != "false"
	}
	return false
}
