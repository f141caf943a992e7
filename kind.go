package capmux

// CaptchaKind identifies one of the CAPTCHA challenge types this library can
// route to a solving service. The set is closed: it drives the per-service
// builder/parser lookup and the shape of the returned Solution.
type CaptchaKind int

const (
	KindImage CaptchaKind = iota
	KindRecaptchaV2
	KindRecaptchaV3
	KindText
	KindFunCaptcha
	KindGeeTest
	KindGeeTestV4
	KindHCaptcha
	KindKeyCaptcha
	KindCapy
	KindTikTok
)

var kindNames = map[CaptchaKind]string{
	KindImage:       "ImageCaptcha",
	KindRecaptchaV2: "RecaptchaV2",
	KindRecaptchaV3: "RecaptchaV3",
	KindText:        "TextCaptcha",
	KindFunCaptcha:  "FunCaptcha",
	KindGeeTest:     "GeeTest",
	KindGeeTestV4:   "GeeTestV4",
	KindHCaptcha:    "HCaptcha",
	KindKeyCaptcha:  "KeyCaptcha",
	KindCapy:        "CapyPuzzle",
	KindTikTok:      "TikTokCaptcha",
}

func (k CaptchaKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Kinds returns every supported CaptchaKind in declaration order.
func Kinds() []CaptchaKind {
	return []CaptchaKind{
		KindImage, KindRecaptchaV2, KindRecaptchaV3, KindText, KindFunCaptcha,
		KindGeeTest, KindGeeTestV4, KindHCaptcha, KindKeyCaptcha, KindCapy,
		KindTikTok,
	}
}
