package resolver

import "strings"

// languageCodes maps common language names and ISO 639-2 codes to their
// two-letter canonical form. Unrecognized values pass through lowercased.
var languageCodes = map[string]string{
	"english":    "en",
	"eng":        "en",
	"french":     "fr",
	"fre":        "fr",
	"fra":        "fr",
	"german":     "de",
	"ger":        "de",
	"deu":        "de",
	"spanish":    "es",
	"spa":        "es",
	"italian":    "it",
	"ita":        "it",
	"japanese":   "ja",
	"jpn":        "ja",
	"dutch":      "nl",
	"nld":        "nl",
	"dut":        "nl",
	"portuguese": "pt",
	"por":        "pt",
	"russian":    "ru",
	"rus":        "ru",
	"chinese":    "zh",
	"chi":        "zh",
	"zho":        "zh",
	"korean":     "ko",
	"kor":        "ko",
}

// CanonicalLanguage normalizes a language value to a lowercase two-letter
// code where one is known.
func CanonicalLanguage(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if canonical, ok := languageCodes[normalized]; ok {
		return canonical
	}
	return normalized
}
