package render

import "strings"

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape makes s safe inside a Telegram HTML message.
func Escape(s string) string { return escaper.Replace(s) }

// Header renders the bold sender line, with the "From" label when set.
func Header(sender, label string) string {
	if label != "" {
		return "<b>" + Escape(sender) + " - From " + Escape(label) + "</b>"
	}
	return "<b>" + Escape(sender) + "</b>"
}
