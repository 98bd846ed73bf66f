// Package langs holds the language code registry used for translation
// markers and keyboard labels.
package langs

import "strings"

// Unknown is the marker shown for codes missing from the registry.
const Unknown = "❓"

// Meta describes language display metadata.
type Meta struct {
	Name string
	Flag string
}

// Registry contains the languages the bot knows a flag for.
var Registry = map[string]Meta{
	"ar":    {Name: "العربية", Flag: "🇸🇦"},
	"de":    {Name: "Deutsch", Flag: "🇩🇪"},
	"en":    {Name: "English", Flag: "🇬🇧"},
	"es":    {Name: "Español", Flag: "🇪🇸"},
	"fr":    {Name: "Français", Flag: "🇫🇷"},
	"hi":    {Name: "हिन्दी", Flag: "🇮🇳"},
	"id":    {Name: "Bahasa Indonesia", Flag: "🇮🇩"},
	"it":    {Name: "Italiano", Flag: "🇮🇹"},
	"ja":    {Name: "日本語", Flag: "🇯🇵"},
	"km":    {Name: "ខ្មែរ", Flag: "🇰🇭"},
	"ko":    {Name: "한국어", Flag: "🇰🇷"},
	"lo":    {Name: "ລາວ", Flag: "🇱🇦"},
	"ms":    {Name: "Bahasa Melayu", Flag: "🇲🇾"},
	"my":    {Name: "မြန်မာ", Flag: "🇲🇲"},
	"pt":    {Name: "Português", Flag: "🇵🇹"},
	"ru":    {Name: "Русский", Flag: "🇷🇺"},
	"th":    {Name: "ไทย", Flag: "🇹🇭"},
	"tl":    {Name: "Tagalog", Flag: "🇵🇭"},
	"tr":    {Name: "Türkçe", Flag: "🇹🇷"},
	"uk":    {Name: "Українська", Flag: "🇺🇦"},
	"vi":    {Name: "Tiếng Việt", Flag: "🇻🇳"},
	"zh":    {Name: "中文", Flag: "🇨🇳"},
	"zh-tw": {Name: "繁體中文", Flag: "🇹🇼"},
}

// Normalize lower-cases a code and converts '_' separators to '-'.
func Normalize(code string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(code)), "_", "-")
}

// Lookup returns the registry entry for code, falling back to the base
// language of a regional variant.
func Lookup(code string) (Meta, bool) {
	c := Normalize(code)
	if m, ok := Registry[c]; ok {
		return m, true
	}
	if base, _, ok := strings.Cut(c, "-"); ok {
		if m, ok := Registry[base]; ok {
			return m, true
		}
	}
	return Meta{}, false
}

// Flag returns the marker glyph for code, or Unknown.
func Flag(code string) string {
	if m, ok := Lookup(code); ok {
		return m.Flag
	}
	return Unknown
}

// Valid reports whether code looks like a language tag the translator
// accepts: 2-3 ASCII letters with an optional region suffix.
func Valid(code string) bool {
	c := Normalize(code)
	base, region, hasRegion := strings.Cut(c, "-")
	if len(base) < 2 || len(base) > 3 || !letters(base) {
		return false
	}
	if hasRegion && (len(region) < 2 || len(region) > 4 || !letters(region)) {
		return false
	}
	return true
}

func letters(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return s != ""
}
