package capmux

// Alphabet is the character set used in an image or text CAPTCHA.
type Alphabet string

const (
	AlphabetLatin    Alphabet = "latin"
	AlphabetCyrillic Alphabet = "cyrillic"
)

// CharType narrows the characters a CAPTCHA answer may contain. The numeric
// values match the wire codes the form-protocol services expect.
type CharType int

const (
	CharNumeric        CharType = 1
	CharAlpha          CharType = 2
	CharAlphaOrNumeric CharType = 3
	CharAlphanumeric   CharType = 4
)

// WorkerLanguage selects the language of the human worker who gets the task.
type WorkerLanguage string

const (
	LangEnglish    WorkerLanguage = "en"
	LangRussian    WorkerLanguage = "ru"
	LangSpanish    WorkerLanguage = "es"
	LangPortuguese WorkerLanguage = "pt"
	LangUkrainian  WorkerLanguage = "uk"
	LangVietnamese WorkerLanguage = "vi"
	LangFrench     WorkerLanguage = "fr"
	LangIndonesian WorkerLanguage = "id"
	LangArabic     WorkerLanguage = "ar"
	LangJapanese   WorkerLanguage = "ja"
	LangTurkish    WorkerLanguage = "tr"
	LangGerman     WorkerLanguage = "de"
	LangChinese    WorkerLanguage = "zh"
	LangPolish     WorkerLanguage = "pl"
	LangThai       WorkerLanguage = "th"
	LangItalian    WorkerLanguage = "it"
	LangDutch      WorkerLanguage = "nl"
	LangSlovak     WorkerLanguage = "sk"
	LangBulgarian  WorkerLanguage = "bg"
	LangRomanian   WorkerLanguage = "ro"
	LangHungarian  WorkerLanguage = "hu"
	LangKorean     WorkerLanguage = "ko"
	LangCzech      WorkerLanguage = "cs"
	LangGreek      WorkerLanguage = "el"
	LangFinnish    WorkerLanguage = "fi"
	LangHebrew     WorkerLanguage = "he"
	LangHindi      WorkerLanguage = "hi"
	LangNorwegian  WorkerLanguage = "nb"
	LangSwedish    WorkerLanguage = "sv"
	LangDanish     WorkerLanguage = "da"
)

// Pointer helpers for optional descriptor fields. A nil field is "unset" and
// never reaches the wire.

func Bool(v bool) *bool { return &v }

func Int(v int) *int { return &v }

func Float64(v float64) *float64 { return &v }

func String(v string) *string { return &v }
