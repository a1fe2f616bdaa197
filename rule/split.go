// Package rule implements the textual rule language of book sources: splitting a
// rule into typed segments, the list connectors, regex cleaning and the URL
// template syntax.
package rule

import "strings"

// Mode tells which backend evaluates a segment.
type Mode int

const (
	ModeDefault Mode = iota
	ModeXPath
	ModeJSON
	ModeRegex
	ModeJS
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeXPath:
		return "xpath"
	case ModeJSON:
		return "json"
	case ModeRegex:
		return "regex"
	case ModeJS:
		return "js"
	}
	return "unknown"
}

type Segment struct {
	Content string
	Mode    Mode
}

// Split cuts a rule into segments. Script spans are written as <js>...</js> or
// @js:... (the latter running to the next script span or the end of the rule);
// the text between spans is classified by its prefix. Segments are returned in
// source order and never empty; a rule without any content yields none.
func Split(rule string) []Segment {
	var segs []Segment
	lower := asciiLower(rule)
	pos := 0
	for pos < len(rule) {
		start, end, body, ok := nextScript(rule, lower, pos)
		if !ok {
			break
		}
		segs = appendText(segs, rule[pos:start])
		if body = strings.TrimSpace(body); body != "" {
			segs = append(segs, Segment{Content: body, Mode: ModeJS})
		}
		pos = end
	}
	return appendText(segs, rule[pos:])
}

// HasScript reports whether the rule contains a script span.
func HasScript(rule string) bool {
	lower := asciiLower(rule)
	return strings.Contains(lower, "<js>") || strings.Contains(lower, "@js:")
}

func appendText(segs []Segment, text string) []Segment {
	text = strings.TrimSpace(text)
	if text == "" {
		return segs
	}
	return append(segs, Segment{Content: text, Mode: InferMode(text)})
}

func nextScript(rule, lower string, from int) (start, end int, body string, ok bool) {
	tag := indexFrom(lower, "<js>", from)
	closing := -1
	if tag >= 0 {
		if closing = indexFrom(lower, "</js>", tag+4); closing < 0 {
			tag = -1
		}
	}
	at := indexFrom(lower, "@js:", from)
	switch {
	case tag >= 0 && (at < 0 || tag < at):
		return tag, closing + 5, rule[tag+4 : closing], true
	case at >= 0:
		stop := len(rule)
		if n := indexFrom(lower, "<js>", at+4); n >= 0 {
			stop = n
		}
		if n := indexFrom(lower, "@js:", at+4); n >= 0 && n < stop {
			stop = n
		}
		return at, stop, rule[at+4 : stop], true
	}
	return 0, 0, "", false
}

func indexFrom(s, sub string, from int) int {
	if from >= len(s) {
		return -1
	}
	i := strings.Index(s[from:], sub)
	if i < 0 {
		return -1
	}
	return from + i
}

// asciiLower lowercases ASCII letters only so byte offsets stay aligned with the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

// InferMode classifies a non-script rule by its prefix.
func InferMode(rule string) Mode {
	r := strings.TrimSpace(rule)
	switch {
	case strings.HasPrefix(r, "/") || hasPrefixFold(r, "@XPath:"):
		return ModeXPath
	case strings.HasPrefix(r, "$.") || strings.HasPrefix(r, "$[") || hasPrefixFold(r, "@Json:"):
		return ModeJSON
	case strings.HasPrefix(r, ":"):
		return ModeRegex
	}
	return ModeDefault
}

// CleanPrefix removes the explicit mode marker from a segment's content.
func CleanPrefix(content string, mode Mode) string {
	c := strings.TrimSpace(content)
	switch mode {
	case ModeXPath:
		if hasPrefixFold(c, "@XPath:") {
			return strings.TrimSpace(c[len("@XPath:"):])
		}
	case ModeJSON:
		if hasPrefixFold(c, "@Json:") {
			return strings.TrimSpace(c[len("@Json:"):])
		}
	case ModeRegex:
		return strings.TrimPrefix(c, ":")
	case ModeDefault:
		if hasPrefixFold(c, "@CSS:") {
			return strings.TrimSpace(c[len("@CSS:"):])
		}
		return strings.TrimPrefix(c, "@@")
	case ModeJS:
	}
	return c
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
