package capmux

// Captcha is the task descriptor for one CAPTCHA challenge. Exactly one
// implementation exists per CaptchaKind; descriptors are plain immutable
// values validated before they reach the wire.
type Captcha interface {
	Kind() CaptchaKind
	// Validate checks the descriptor's fields and fails closed with a
	// bad-input APIError. It runs before any network traffic.
	Validate() error

	// optionalValues lists the descriptor's optional fields that are set,
	// under their canonical names. Unexported so the union stays closed.
	optionalValues() []optValue
}

// Solution is the kind-specific result payload of a solved CAPTCHA.
type Solution interface {
	Kind() CaptchaKind
	String() string
}

type optValue struct {
	name  string
	value any
}

// Transform rewrites an optional field value into its wire form. Returning
// nil drops the field entirely.
type Transform func(any) any

// WireField maps an optional descriptor field onto a service's wire key.
type WireField struct {
	Key     string
	Convert Transform
}

// FieldMap is a per-service mapping from canonical optional field names to
// wire fields. Fields absent from the map are not serialized.
type FieldMap map[string]WireField

// OptionalData projects the set optional fields of c through m. This is the
// single mechanism every adapter uses to serialize optional parameters:
// a field left unset never produces a wire key, a set field always produces
// exactly its mapped key with the transformed value.
func OptionalData(c Captcha, m FieldMap) map[string]any {
	out := make(map[string]any)
	for _, ov := range c.optionalValues() {
		wf, ok := m[ov.name]
		if !ok {
			continue
		}
		v := ov.value
		if wf.Convert != nil {
			v = wf.Convert(v)
		}
		if v == nil {
			continue
		}
		out[wf.Key] = v
	}
	return out
}

func appendOpt(vals []optValue, name string, value any) []optValue {
	return append(vals, optValue{name: name, value: value})
}
