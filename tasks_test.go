package capmux

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"sort"
	"testing"
)

// testPNG renders a tiny valid PNG payload.
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestImageCaptchaValidate(t *testing.T) {
	cases := []struct {
		name    string
		captcha ImageCaptcha
		wantErr bool
	}{
		{
			name:    "valid png",
			captcha: ImageCaptcha{Image: testPNG(t)},
		},
		{
			name:    "empty payload",
			captcha: ImageCaptcha{},
			wantErr: true,
		},
		{
			name:    "not an image",
			captcha: ImageCaptcha{Image: []byte("just some text")},
			wantErr: true,
		},
		{
			name:    "truncated header",
			captcha: ImageCaptcha{Image: testPNG(t)[:4]},
			wantErr: true,
		},
		{
			name:    "negative min length",
			captcha: ImageCaptcha{Image: testPNG(t), MinLen: Int(-1)},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.captcha.Validate()
			if tc.wantErr {
				if !IsErrorKind(err, KindBadInput) {
					t.Fatalf("expected bad input error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected valid descriptor, got %v", err)
			}
		})
	}
}

func TestDescriptorValidate(t *testing.T) {
	cases := []struct {
		name    string
		captcha Captcha
		wantErr bool
	}{
		{"recaptcha v2 ok", RecaptchaV2{SiteKey: "k", PageURL: "u"}, false},
		{"recaptcha v2 no key", RecaptchaV2{PageURL: "u"}, true},
		{"recaptcha v3 bad score", RecaptchaV3{SiteKey: "k", PageURL: "u", MinScore: Float64(1.5)}, true},
		{"recaptcha v3 ok", RecaptchaV3{SiteKey: "k", PageURL: "u", MinScore: Float64(0.7)}, false},
		{"text empty", TextCaptcha{Text: "   "}, true},
		{"text ok", TextCaptcha{Text: "2 + 2 = ?"}, false},
		{"funcaptcha no url", FunCaptcha{PublicKey: "pk"}, true},
		{"geetest missing challenge", GeeTest{PageURL: "u", GTKey: "gt"}, true},
		{"geetest v4 ok", GeeTestV4{PageURL: "u", CaptchaID: "id"}, false},
		{"hcaptcha ok", HCaptcha{SiteKey: "k", PageURL: "u"}, false},
		{"keycaptcha missing sign", KeyCaptcha{PageURL: "u", UserID: "1", SessionID: "2", WSSign: "3"}, true},
		{"capy no key", CapyPuzzle{PageURL: "u"}, true},
		{"tiktok ok", TikTokCaptcha{PageURL: "u"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.captcha.Validate()
			if tc.wantErr && !IsErrorKind(err, KindBadInput) {
				t.Fatalf("expected bad input error, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected valid descriptor, got %v", err)
			}
		})
	}
}

func TestOptionalDataProjection(t *testing.T) {
	captcha := ImageCaptcha{
		Image:           testPNG(t),
		IsPhrase:        Bool(true),
		IsCaseSensitive: Bool(false),
		MinLen:          Int(3),
		Comment:         String("red symbols only"),
	}

	fields := FieldMap{
		"is_phrase":         {Key: "phrase", Convert: boolToInt},
		"is_case_sensitive": {Key: "regsense", Convert: boolToInt},
		"min_len":           {Key: "min_len"},
		"max_len":           {Key: "max_len"},
		"comment":           {Key: "textinstructions"},
	}

	got := OptionalData(captcha, fields)
	want := map[string]any{
		"phrase":           1,
		"regsense":         0,
		"min_len":          3,
		"textinstructions": "red symbols only",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestOptionalDataSkipsUnmappedAndUnset(t *testing.T) {
	captcha := ImageCaptcha{
		Image:    testPNG(t),
		IsPhrase: Bool(true),
		Comment:  String("ignored by this service"),
	}

	got := OptionalData(captcha, FieldMap{
		"is_phrase": {Key: "phrase"},
		// max_len is mapped but unset on the descriptor.
		"max_len": {Key: "maxLength"},
	})
	want := map[string]any{"phrase": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestOptionalDataConvertCanDropField(t *testing.T) {
	charType := CharAlphanumeric
	captcha := ImageCaptcha{Image: testPNG(t), CharType: &charType}

	got := OptionalData(captcha, FieldMap{
		"char_type": {Key: "numeric", Convert: func(v any) any {
			if code := int(v.(CharType)); code == 1 || code == 2 {
				return code
			}
			return nil
		}},
	})
	if len(got) != 0 {
		t.Fatalf("expected converter returning nil to drop the field, got %v", got)
	}
}

func TestTikTokSolutionStringIsDeterministic(t *testing.T) {
	sol := TikTokSolution{Cookies: map[string]string{
		"sessionid": "abc",
		"msToken":   "xyz",
		"ttwid":     "1|2|3",
	}}

	first := sol.String()
	for range 10 {
		if got := sol.String(); got != first {
			t.Fatalf("expected stable rendering, got %q then %q", first, got)
		}
	}

	names := []string{"msToken", "sessionid", "ttwid"}
	if !sort.StringsAreSorted(names) {
		t.Fatal("test expectation must be sorted")
	}
	if first != "msToken=xyz; sessionid=abc; ttwid=1|2|3" {
		t.Fatalf("unexpected rendering %q", first)
	}
}
