package capmux

import (
	"encoding/json"
	"fmt"
	"strconv"

	http "github.com/bogdanfinn/fhttp"
)

// =============================================================================
// JSON wire family: anti-captcha.com
// =============================================================================

// jsonAPI speaks the createTask/getTaskResult JSON protocol. Every request is
// a POST carrying a clientKey envelope; every response carries an errorId
// that is zero on success.
type jsonAPI struct{}

func init() {
	registerService(&serviceConfig{
		name:             AntiCaptcha,
		baseURL:          "https://api.anti-captcha.com",
		handleHTTPErrors: true,
		api:              &jsonAPI{},
		kinds: kindSet(
			KindImage, KindRecaptchaV2, KindRecaptchaV3, KindFunCaptcha,
			KindGeeTest, KindHCaptcha,
		),
		settings: antiCaptchaSettings,
		// Only negative feedback has endpoints.
		reportBad: true,
	})
}

// =============================================================================
// Task submission
// =============================================================================

func (a *jsonAPI) buildTask(s *service, c Captcha, o *SolveOptions) (*request, error) {
	task, usesProxy, err := a.taskPayload(c, o)
	if err != nil {
		return nil, err
	}
	if usesProxy {
		if err := applyJSONOptions(task, o); err != nil {
			return nil, err
		}
	}

	body := map[string]any{
		"clientKey": s.apiKey,
		"task":      task,
		"softId":    940,
	}
	if ic, ok := c.(ImageCaptcha); ok && ic.Language != nil {
		body["languagePool"] = languagePool(*ic.Language)
	}

	return &request{
		method: http.MethodPost,
		url:    s.cfg.baseURL + "/createTask",
		json:   body,
	}, nil
}

// taskPayload builds the kind-specific createTask "task" object. The second
// return value reports whether the chosen task type carries proxy fields;
// proxyless types ignore the caller's proxy entirely.
func (a *jsonAPI) taskPayload(c Captcha, o *SolveOptions) (map[string]any, bool, error) {
	withProxy := o != nil && o.Proxy != nil

	switch c := c.(type) {
	case ImageCaptcha:
		task := map[string]any{
			"type": "ImageToTextTask",
			"body": c.ImageBase64(),
		}
		for key, v := range OptionalData(c, jsonImageFields) {
			task[key] = v
		}
		return task, false, nil
	case RecaptchaV2:
		task := map[string]any{
			"websiteURL":  c.PageURL,
			"websiteKey":  c.SiteKey,
			"isInvisible": c.IsInvisible,
		}
		if c.IsEnterprise {
			task["type"] = taskType("RecaptchaV2EnterpriseTask", withProxy)
			if c.DataS != nil {
				task["enterprisePayload"] = map[string]any{"s": *c.DataS}
			}
		} else {
			task["type"] = taskType("NoCaptchaTask", withProxy)
			if c.DataS != nil {
				task["recaptchaDataSValue"] = *c.DataS
			}
		}
		return task, true, nil
	case RecaptchaV3:
		// v3 is solved without the caller's browser context; the service
		// only has a proxyless task type.
		task := map[string]any{
			"type":       "RecaptchaV3TaskProxyless",
			"websiteURL": c.PageURL,
			"websiteKey": c.SiteKey,
		}
		if c.IsEnterprise {
			task["isEnterprise"] = true
		}
		for key, v := range OptionalData(c, jsonRecaptchaV3Fields) {
			task[key] = v
		}
		return task, false, nil
	case FunCaptcha:
		task := map[string]any{
			"type":             taskType("FunCaptchaTask", withProxy),
			"websiteURL":       c.PageURL,
			"websitePublicKey": c.PublicKey,
		}
		for key, v := range OptionalData(c, jsonFunCaptchaFields) {
			task[key] = v
		}
		return task, true, nil
	case GeeTest:
		task := map[string]any{
			"type":       taskType("GeeTestTask", withProxy),
			"websiteURL": c.PageURL,
			"gt":         c.GTKey,
			"challenge":  c.Challenge,
		}
		for key, v := range OptionalData(c, jsonGeeTestFields) {
			task[key] = v
		}
		return task, true, nil
	case HCaptcha:
		task := map[string]any{
			"type":       taskType("HCaptchaTask", withProxy),
			"websiteURL": c.PageURL,
			"websiteKey": c.SiteKey,
		}
		return task, true, nil
	}
	return nil, false, badInputError("no task builder for %s", c.Kind())
}

func taskType(base string, withProxy bool) string {
	if withProxy {
		return base
	}
	return base + "Proxyless"
}

// applyJSONOptions folds proxy, user agent and cookies into the task object.
// The service rejects hostnames in proxyAddress, so the proxy host is
// resolved to a literal IP first.
func applyJSONOptions(task map[string]any, o *SolveOptions) error {
	if o == nil {
		return nil
	}
	if o.Proxy != nil {
		ip, err := o.Proxy.IPAddress()
		if err != nil {
			return err
		}
		task["proxyType"] = string(o.Proxy.Type)
		task["proxyAddress"] = ip
		task["proxyPort"] = o.Proxy.Port
		if o.Proxy.Login != "" {
			task["proxyLogin"] = o.Proxy.Login
			task["proxyPassword"] = o.Proxy.Password
		}
	}
	if o.UserAgent != "" {
		task["userAgent"] = o.UserAgent
	}
	if len(o.Cookies) > 0 {
		task["cookies"] = joinCookies(o.Cookies, "=", "; ")
	}
	return nil
}

// languagePool maps a worker language onto the service's two worker pools.
func languagePool(lang WorkerLanguage) string {
	if lang == LangRussian {
		return "rn"
	}
	return "en"
}

var jsonImageFields = FieldMap{
	"is_case_sensitive": {Key: "case"},
	"is_phrase":         {Key: "phrase"},
	"is_math":           {Key: "math"},
	// The service only distinguishes digits-only and letters-only.
	"char_type": {Key: "numeric", Convert: func(v any) any {
		if code := int(v.(CharType)); code == 1 || code == 2 {
			return code
		}
		return nil
	}},
	"min_len": {Key: "minLength"},
	"max_len": {Key: "maxLength"},
	"comment": {Key: "comment"},
}

var jsonRecaptchaV3Fields = FieldMap{
	"min_score": {Key: "minScore"},
	"action":    {Key: "pageAction"},
}

var jsonFunCaptchaFields = FieldMap{
	"service_url": {Key: "funcaptchaApiJSSubdomain"},
}

var jsonGeeTestFields = FieldMap{
	"api_server": {Key: "geetestApiServerSubdomain"},
}

// =============================================================================
// Response parsing
// =============================================================================

func (a *jsonAPI) parseTask(resp *response) (string, map[string]any, error) {
	fields, err := parseJSONEnvelope(resp)
	if err != nil {
		return "", nil, err
	}

	var taskID json.Number
	if err := json.Unmarshal(fields["taskId"], &taskID); err != nil {
		return "", nil, newAPIError(KindService, "BAD_RESPONSE", "unexpected task ID payload")
	}
	delete(fields, "taskId")
	return taskID.String(), decodeExtra(fields), nil
}

func (a *jsonAPI) buildSolution(s *service, task *CaptchaTask) (*request, error) {
	return &request{
		method: http.MethodPost,
		url:    s.cfg.baseURL + "/getTaskResult",
		json: map[string]any{
			"clientKey": s.apiKey,
			"taskId":    taskIDValue(task.ID()),
		},
	}, nil
}

func (a *jsonAPI) parseSolution(task *CaptchaTask, resp *response) (*solveOutcome, error) {
	fields, err := parseJSONEnvelope(resp)
	if err != nil {
		return nil, err
	}

	var status string
	json.Unmarshal(fields["status"], &status)
	if status != "ready" {
		return nil, ErrSolutionNotReady
	}

	kind := task.Captcha().Kind()
	solution, err := decodeJSONSolution(kind, fields["solution"])
	if err != nil {
		return nil, err
	}
	delete(fields, "status")
	delete(fields, "solution")

	outcome := &solveOutcome{solution: solution}
	if raw, ok := fields["cost"]; ok {
		// The service reports cost as a decimal string.
		var cost any
		if err := json.Unmarshal(raw, &cost); err == nil {
			if f, err := strconv.ParseFloat(fmt.Sprint(cost), 64); err == nil {
				outcome.cost = Float64(f)
			}
		}
		delete(fields, "cost")
	}
	outcome.extra = decodeExtra(fields)
	return outcome, nil
}

func decodeJSONSolution(kind CaptchaKind, raw json.RawMessage) (Solution, error) {
	switch kind {
	case KindImage:
		var data struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, solutionDecodeError(kind, err)
		}
		return ImageSolution{Text: data.Text}, nil
	case KindRecaptchaV2, KindRecaptchaV3, KindHCaptcha:
		var data struct {
			Token string `json:"gRecaptchaResponse"`
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, solutionDecodeError(kind, err)
		}
		return textSolution(kind, data.Token)
	case KindFunCaptcha:
		var data struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, solutionDecodeError(kind, err)
		}
		return FunCaptchaSolution{Token: data.Token}, nil
	case KindGeeTest:
		var data struct {
			Challenge string `json:"challenge"`
			Validate  string `json:"validate"`
			SecCode   string `json:"seccode"`
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, solutionDecodeError(kind, err)
		}
		return GeeTestSolution{
			Challenge: data.Challenge,
			Validate:  data.Validate,
			SecCode:   data.SecCode,
		}, nil
	}
	return nil, solutionDecodeError(kind, fmt.Errorf("kind not supported by this service"))
}

// =============================================================================
// Balance and reports
// =============================================================================

func (a *jsonAPI) buildBalance(s *service) (*request, error) {
	return &request{
		method: http.MethodPost,
		url:    s.cfg.baseURL + "/getBalance",
		json:   map[string]any{"clientKey": s.apiKey},
	}, nil
}

func (a *jsonAPI) parseBalance(resp *response) (float64, error) {
	fields, err := parseJSONEnvelope(resp)
	if err != nil {
		return 0, err
	}
	var balance float64
	if err := json.Unmarshal(fields["balance"], &balance); err != nil {
		return 0, newAPIError(KindService, "BAD_RESPONSE", "unexpected balance payload")
	}
	return balance, nil
}

func (a *jsonAPI) buildStatus(s *service) (*request, error) {
	return a.buildBalance(s)
}

func (a *jsonAPI) parseStatus(resp *response) error {
	_, err := a.parseBalance(resp)
	return err
}

func (a *jsonAPI) buildReport(s *service, solved *SolvedCaptcha, good bool) (*request, error) {
	kind := solved.Task().Captcha().Kind()
	var uri string
	switch kind {
	case KindImage:
		uri = "/reportIncorrectImageCaptcha"
	case KindRecaptchaV2, KindRecaptchaV3:
		uri = "/reportIncorrectRecaptcha"
	default:
		return nil, &UnsupportedError{
			Service: s.cfg.name,
			Op:      fmt.Sprintf("bad %s report", kind),
		}
	}

	return &request{
		method: http.MethodPost,
		url:    s.cfg.baseURL + uri,
		json: map[string]any{
			"clientKey": s.apiKey,
			"taskId":    taskIDValue(solved.ID()),
		},
	}, nil
}

func (a *jsonAPI) parseReport(resp *response) error {
	_, err := parseJSONEnvelope(resp)
	return err
}

// =============================================================================
// Envelope and errors
// =============================================================================

// parseJSONEnvelope checks the errorId envelope and returns the remaining
// response fields on success.
func parseJSONEnvelope(resp *response) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(resp.body, &fields); err != nil {
		return nil, newAPIError(KindService, "BAD_RESPONSE", "unparseable response body")
	}

	var errorID int
	if raw, ok := fields["errorId"]; ok {
		if err := json.Unmarshal(raw, &errorID); err != nil {
			return nil, newAPIError(KindService, "BAD_RESPONSE", "unexpected errorId value")
		}
	}
	delete(fields, "errorId")
	if errorID == 0 {
		return fields, nil
	}

	code := fmt.Sprintf("ERROR %d", errorID)
	if raw, ok := fields["errorCode"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			code = s
		}
	}
	var text string
	if raw, ok := fields["errorDescription"]; ok {
		json.Unmarshal(raw, &text)
	}

	kind, ok := jsonErrorKinds[code]
	if !ok {
		kind = KindService
	}
	return nil, newAPIError(kind, code, text)
}

var jsonErrorKinds = map[string]ErrorKind{
	"ERROR_WRONG_USER_KEY":                  KindAccessDenied,
	"ERROR_KEY_DOES_NOT_EXIST":              KindAccessDenied,
	"ERROR_IP_NOT_ALLOWED":                  KindAccessDenied,
	"ERROR_IP_BLOCKED":                      KindAccessDenied,
	"ERROR_ZERO_BALANCE":                    KindLowBalance,
	"ERROR_NO_SLOT_AVAILABLE":               KindServiceTooBusy,
	"ERROR_NO_SUCH_METHOD":                  KindMalformedRequest,
	"ERROR_NO_SUCH_CAPCHA_ID":               KindMalformedRequest,
	"ERROR_TASK_ABSENT":                     KindMalformedRequest,
	"ERROR_TASK_NOT_SUPPORTED":              KindMalformedRequest,
	"ERROR_FUNCAPTCHA_NOT_ALLOWED":          KindMalformedRequest,
	"ERROR_ZERO_CAPTCHA_FILESIZE":           KindBadInput,
	"ERROR_TOO_BIG_CAPTCHA_FILESIZE":        KindBadInput,
	"ERROR_WRONG_FILE_EXTENSION":            KindBadInput,
	"ERROR_IMAGE_TYPE_NOT_SUPPORTED":        KindBadInput,
	"ERROR_UPLOAD":                          KindBadInput,
	"ERROR_PAGEURL":                         KindBadInput,
	"ERROR_BAD_TOKEN_OR_PAGEURL":            KindBadInput,
	"ERROR_GOOGLEKEY":                       KindBadInput,
	"ERROR_EMPTY_COMMENT":                   KindBadInput,
	"ERROR_INCORRECT_SESSION_DATA":          KindBadInput,
	"ERROR_RECAPTCHA_INVALID_SITEKEY":       KindBadInput,
	"ERROR_RECAPTCHA_INVALID_DOMAIN":        KindBadInput,
	"ERROR_RECAPTCHA_OLD_BROWSER":           KindBadInput,
	"ERROR_TOKEN_EXPIRED":                   KindBadInput,
	"ERROR_INVISIBLE_RECAPTCHA":             KindBadInput,
	"ERROR_CAPTCHAIMAGE_BLOCKED":            KindUnsolvable,
	"ERROR_CAPTCHA_UNSOLVABLE":              KindUnsolvable,
	"ERROR_BAD_DUPLICATES":                  KindUnsolvable,
	"ERROR_RECAPTCHA_TIMEOUT":               KindUnsolvable,
	"ERROR_FAILED_LOADING_WIDGET":           KindUnsolvable,
	"ERROR_PROXY_CONNECT_REFUSED":           KindProxy,
	"ERROR_PROXY_CONNECT_TIMEOUT":           KindProxy,
	"ERROR_PROXY_READ_TIMEOUT":              KindProxy,
	"ERROR_PROXY_BANNED":                    KindProxy,
	"ERROR_PROXY_TRANSPARENT":               KindProxy,
	"ERROR_PROXY_HAS_NO_IMAGE_SUPPORT":      KindProxy,
	"ERROR_PROXY_INCOMPATIBLE_HTTP_VERSION": KindProxy,
	"ERROR_PROXY_NOT_AUTHORISED":            KindProxy,
}

// taskIDValue renders a stored task ID in the numeric form the service
// expects, falling back to the raw string for non-numeric IDs.
func taskIDValue(id string) any {
	if n, err := strconv.Atoi(id); err == nil {
		return n
	}
	return id
}

// decodeExtra turns leftover envelope fields into plain values.
func decodeExtra(fields map[string]json.RawMessage) map[string]any {
	extra := make(map[string]any, len(fields))
	for key, raw := range fields {
		var value any
		if err := json.Unmarshal(raw, &value); err == nil {
			extra[key] = value
		}
	}
	return extra
}
