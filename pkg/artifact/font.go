package artifact

import (
	"os"
	"strings"
)

// systemFonts are UTF-8 TrueType fonts shipped by common distro packages
// (fonts-dejavu-core, fonts-noto-core, fonts-liberation).
var systemFonts = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/noto/NotoSans-Regular.ttf",
	"/usr/share/fonts/noto/NotoSans-Regular.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
}

// FindFont returns configured when it names a readable file, else the
// first system font found, else "".
func FindFont(configured string) string {
	if configured != "" {
		if p := firstRegular([]string{configured}); p != "" {
			return p
		}
	}
	return firstRegular(systemFonts)
}

func firstRegular(paths []string) string {
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

// cp1252 covers these languages without loss.
var cp1252Langs = map[string]bool{
	"en": true, "fr": true, "de": true, "es": true, "it": true, "pt": true,
	"nl": true, "da": true, "sv": true, "no": true, "nb": true, "fi": true,
	"is": true, "ga": true, "ca": true, "eu": true, "gl": true, "id": true,
	"ms": true, "sw": true, "af": true, "sq": true,
}

// NeedsUnicodeFont reports whether any of langs writes text the built-in
// font cannot show.
func NeedsUnicodeFont(langs ...string) bool {
	for _, l := range langs {
		l = strings.ToLower(strings.TrimSpace(l))
		if base, _, ok := strings.Cut(l, "-"); ok {
			l = base
		}
		if l != "" && !cp1252Langs[l] {
			return true
		}
	}
	return false
}
