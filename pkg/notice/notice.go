// Package notice localizes the short messages the bot sends to users.
//
// Message ids are the English texts; translations live in embedded
// gettext catalogs under locales/{lang}/LC_MESSAGES/transrelay.po and are
// loaded once via Init.
package notice

import (
	"embed"
	"fmt"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "transrelay"

var po *gotext.Locale

// Init selects the catalog for lang ("vi", "en", ...). Unknown languages
// fall back to the English message ids.
func Init(lang string) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = "en"
	}
	po = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// T translates msgid and applies fmt-style vars.
func T(msgid string, vars ...any) string {
	if po == nil {
		if len(vars) == 0 {
			return msgid
		}
		return fmt.Sprintf(msgid, vars...)
	}
	return po.Get(msgid, vars...)
}

// N translates a message with plural forms.
func N(singular, plural string, n int, vars ...any) string {
	if po == nil {
		s := plural
		if n == 1 {
			s = singular
		}
		if len(vars) == 0 {
			return s
		}
		return fmt.Sprintf(s, vars...)
	}
	return po.GetN(singular, plural, n, vars...)
}
