// Package render builds and patches the text block the bot posts for a
// relayed message:
//
//	<header>
//	<original text, possibly several lines>
//
//	<primary marker> <primary translation>
//	<marker> <CODE> <additional translation>
//	...
//
// Every translation line starts with a tag token identifying its language.
// Lines are recognized only by that leading token, so translated text that
// happens to contain another language's glyph is never mistaken for a tag.
package render

import (
	"slices"
	"strings"

	"transrelay/pkg/langs"
)

// Line is one translation line.
type Line struct {
	Lang string
	Text string
}

// Block is the structured form of a rendered message.
type Block struct {
	Header   string
	Original string
	Primary  Line
	Extra    []Line
}

// Rederive supplies the header, original and primary line when they cannot
// be recovered from existing text.
type Rederive func() Block

// Codec renders and parses blocks for one primary language.
type Codec struct {
	primary string
}

// NewCodec returns a codec whose primary line is tagged for primaryLang.
func NewCodec(primaryLang string) *Codec {
	return &Codec{primary: langs.Normalize(primaryLang)}
}

// PrimaryLang returns the normalized primary language code.
func (c *Codec) PrimaryLang() string { return c.primary }

// Tag returns the leading token of l's rendered line.
func (c *Codec) Tag(l Line) string {
	lang := langs.Normalize(l.Lang)
	if lang == c.primary {
		return langs.Flag(lang)
	}
	return langs.Flag(lang) + " " + strings.ToUpper(lang)
}

// FormatLine renders l as a single line.
func (c *Codec) FormatLine(l Line) string {
	text := flatten(l.Text)
	if text == "" {
		return c.Tag(l)
	}
	return c.Tag(l) + " " + text
}

// Render serializes b in fixed order: header, original, blank separator,
// primary line, additional lines.
func (c *Codec) Render(b Block) string {
	out := make([]string, 0, 4+len(b.Extra))
	out = append(out, b.Header, b.Original, "", c.FormatLine(b.Primary))
	for _, l := range b.Extra {
		out = append(out, c.FormatLine(l))
	}
	return strings.Join(out, "\n")
}

// Parse splits text into a Block. ok is false when the primary line is not
// where it must be (directly after a blank line that follows header and
// original); the returned block then carries only the header and any
// trailing additional lines that could be recognized.
func (c *Codec) Parse(text string) (b Block, ok bool) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) > 0 {
		b.Header = lines[0]
	}

	i := len(lines) - 1
	for ; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		l, isExtra := c.parseExtra(lines[i])
		if !isExtra {
			break
		}
		b.Extra = append(b.Extra, l)
	}
	slices.Reverse(b.Extra)

	if i < 3 || strings.TrimSpace(lines[i-1]) != "" {
		return b, false
	}
	p, isPrimary := c.parsePrimary(lines[i])
	if !isPrimary {
		return b, false
	}
	b.Original = strings.Join(lines[1:i-1], "\n")
	b.Primary = p
	return b, true
}

// Patch sets l in existing text: the primary line when l is in the primary
// language, otherwise the additional line with the same tag, appending one
// if none exists. When existing cannot be parsed, the missing pieces come
// from rederive and healed is true.
func (c *Codec) Patch(existing string, l Line, rederive Rederive) (text string, healed bool) {
	l.Lang = langs.Normalize(l.Lang)
	b, ok := c.Parse(existing)
	if !ok {
		fb := rederive()
		if fb.Header != "" || b.Header == "" {
			b.Header = fb.Header
		}
		b.Original = fb.Original
		b.Primary = fb.Primary
		healed = true
	}
	return c.Render(c.Apply(b, l)), healed
}

// Apply returns b with l set, keeping one line per language. Additional
// lines keep their first-seen order.
func (c *Codec) Apply(b Block, l Line) Block {
	l.Lang = langs.Normalize(l.Lang)
	if l.Lang == c.primary {
		b.Primary = l
		l = Line{}
	}
	seen := make(map[string]bool, len(b.Extra)+1)
	extra := make([]Line, 0, len(b.Extra)+1)
	for _, e := range b.Extra {
		e.Lang = langs.Normalize(e.Lang)
		if e.Lang == c.primary || seen[e.Lang] {
			continue
		}
		seen[e.Lang] = true
		if l.Lang != "" && e.Lang == l.Lang {
			e = l
			l = Line{}
		}
		extra = append(extra, e)
	}
	if l.Lang != "" {
		extra = append(extra, l)
	}
	b.Extra = extra
	return b
}

func (c *Codec) parsePrimary(line string) (Line, bool) {
	marker := langs.Flag(c.primary)
	if line == marker {
		return Line{Lang: c.primary}, true
	}
	rest, ok := strings.CutPrefix(line, marker+" ")
	if !ok {
		return Line{}, false
	}
	return Line{Lang: c.primary, Text: rest}, true
}

func (c *Codec) parseExtra(line string) (Line, bool) {
	marker, rest, _ := strings.Cut(line, " ")
	code, text, _ := strings.Cut(rest, " ")
	if code == "" || code != strings.ToUpper(code) {
		return Line{}, false
	}
	lang := langs.Normalize(code)
	if !langs.Valid(lang) || lang == c.primary || langs.Flag(lang) != marker {
		return Line{}, false
	}
	return Line{Lang: lang, Text: text}, true
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
