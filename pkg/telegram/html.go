package telegram

import (
	"sort"
	"strings"
	"unicode/utf16"

	"transrelay/pkg/render"
)

// HTMLText is the message text rebuilt as Telegram HTML from its entities,
// so that a message the bot sent with parse_mode=HTML round-trips.
func (m *Message) HTMLText() string {
	if m == nil {
		return ""
	}
	return EntitiesToHTML(m.Text, m.Entities)
}

func entityTags(e Entity) (string, string, bool) {
	switch e.Type {
	case "bold":
		return "<b>", "</b>", true
	case "italic":
		return "<i>", "</i>", true
	case "underline":
		return "<u>", "</u>", true
	case "strikethrough":
		return "<s>", "</s>", true
	case "spoiler":
		return "<tg-spoiler>", "</tg-spoiler>", true
	case "code":
		return "<code>", "</code>", true
	case "pre":
		return "<pre>", "</pre>", true
	case "text_link":
		if e.URL == "" {
			return "", "", false
		}
		return `<a href="` + strings.ReplaceAll(render.Escape(e.URL), `"`, "&quot;") + `">`, "</a>", true
	}
	return "", "", false
}

// EntitiesToHTML escapes text and wraps the supported entity spans in tags.
// Offsets are UTF-16 code units as sent by the Bot API.
func EntitiesToHTML(text string, entities []Entity) string {
	if len(entities) == 0 {
		return render.Escape(text)
	}
	units := utf16.Encode([]rune(text))

	type span struct {
		start, end int
		open, shut string
	}
	var spans []span
	for _, e := range entities {
		open, shut, ok := entityTags(e)
		if !ok || e.Length <= 0 || e.Offset < 0 || e.Offset >= len(units) {
			continue
		}
		end := e.Offset + e.Length
		if end > len(units) {
			end = len(units)
		}
		spans = append(spans, span{start: e.Offset, end: end, open: open, shut: shut})
	}
	// Outer spans open first.
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	var b strings.Builder
	var stack []span
	next := 0
	for i := 0; i <= len(units); {
		for len(stack) > 0 && stack[len(stack)-1].end <= i {
			b.WriteString(stack[len(stack)-1].shut)
			stack = stack[:len(stack)-1]
		}
		if i == len(units) {
			break
		}
		for next < len(spans) && spans[next].start <= i {
			b.WriteString(spans[next].open)
			stack = append(stack, spans[next])
			next++
		}
		step := 1
		if utf16.IsSurrogate(rune(units[i])) && i+1 < len(units) {
			step = 2
		}
		b.WriteString(render.Escape(string(utf16.Decode(units[i : i+step]))))
		i += step
	}
	for len(stack) > 0 {
		b.WriteString(stack[len(stack)-1].shut)
		stack = stack[:len(stack)-1]
	}
	return b.String()
}
