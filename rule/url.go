package rule

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/text/encoding/htmlindex"
)

// RequestOptions is the JSON object that may follow a URL rule after a comma,
// as in `/search?q={{key}},{"method":"POST","body":"k={{key}}"}`.
type RequestOptions struct {
	Method  string
	Body    string
	Headers map[string]string
	Charset string
	WebView bool
}

var (
	optionsSepRe   = regexp.MustCompile(`,\s*[\{\[]`)
	expressionRe   = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	identifierRe   = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	arithmeticRe   = regexp.MustCompile(`^[0-9+\-*/()%\s]+$`)
	unsupportedRes = []*regexp.Regexp{
		regexp.MustCompile(`java\.|cookie\.|source\.|JSON\.|String\(|Map\(`),
		regexp.MustCompile(`\|\||\?|:|=>|\$\{`),
		regexp.MustCompile(`\b(let|var|const|function)\b`),
	}
)

// ParseRequestURL splits a URL rule from its trailing request options. The
// options are only split off when they decode as a JSON object.
func ParseRequestURL(raw string) (string, *RequestOptions) {
	locs := optionsSepRe.FindAllStringIndex(raw, -1)
	if len(locs) == 0 {
		return strings.TrimSpace(raw), nil
	}
	last := locs[len(locs)-1]
	opts, err := decodeOptions(strings.TrimSpace(raw[last[0]+1:]))
	if err != nil {
		return strings.TrimSpace(raw), nil
	}
	return strings.TrimSpace(raw[:last[0]]), opts
}

func decodeOptions(data string) (*RequestOptions, error) {
	var raw struct {
		Method  string          `json:"method"`
		Body    json.RawMessage `json:"body"`
		Headers map[string]any  `json:"headers"`
		Charset string          `json:"charset"`
		WebView any             `json:"webView"`
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, err
	}
	opts := &RequestOptions{
		Method:  strings.ToUpper(strings.TrimSpace(raw.Method)),
		Charset: raw.Charset,
	}
	if opts.Method == "" {
		opts.Method = "GET"
	}
	if len(raw.Body) > 0 {
		var s string
		if err := json.Unmarshal(raw.Body, &s); err == nil {
			opts.Body = s
		} else {
			opts.Body = string(raw.Body)
		}
	}
	if len(raw.Headers) > 0 {
		opts.Headers = make(map[string]string, len(raw.Headers))
		for k, v := range raw.Headers {
			opts.Headers[k] = fmt.Sprint(v)
		}
	}
	switch v := raw.WebView.(type) {
	case bool:
		opts.WebView = v
	case string:
		opts.WebView = v != "" && v != "false"
	}
	return opts, nil
}

// ExpandURL fills in a URL template: {{expr}} page arithmetic, {{page}} and
// {{key}} (or single braces). The keyword is percent-encoded in the given
// charset, UTF-8 when empty.
func ExpandURL(tmpl string, page int, key, charset string) string {
	out := EvaluateExpressions(tmpl, page)
	escaped := EscapeKeyword(key, charset)
	return strings.NewReplacer("{{key}}", escaped, "{key}", escaped).Replace(out)
}

// ExpandBody fills a request body template. The keyword is inserted as is.
func ExpandBody(body string, page int, key string) string {
	out := EvaluateExpressions(body, page)
	return strings.NewReplacer("{{key}}", key, "{key}", key).Replace(out)
}

// EvaluateExpressions resolves the {{...}} expressions that can be computed
// without a script engine and the page placeholders. `ident;sideEffect`
// shrinks to {{ident}}, bare identifiers are left for later substitution,
// arithmetic over page is evaluated, `expr||default` falls back to the
// default and anything else is dropped.
func EvaluateExpressions(tmpl string, page int) string {
	out := expressionRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		expr := strings.TrimSpace(m[2 : len(m)-2])
		shrunk := false
		if first, _, ok := strings.Cut(expr, ";"); ok && strings.TrimSpace(first) != "" {
			expr = strings.TrimSpace(first)
			shrunk = true
		}
		if identifierRe.MatchString(expr) {
			if shrunk {
				return "{{" + expr + "}}"
			}
			return m
		}
		if v, ok := evalArithmetic(expr, page); ok {
			return strconv.Itoa(v)
		}
		if _, def, ok := strings.Cut(expr, "||"); ok {
			return strings.TrimSpace(def)
		}
		return ""
	})
	p := strconv.Itoa(page)
	return strings.NewReplacer("{{page}}", p, "{page}", p).Replace(out)
}

func evalArithmetic(expr string, page int) (int, bool) {
	for _, re := range unsupportedRes {
		if re.MatchString(expr) {
			return 0, false
		}
	}
	expr = strings.ReplaceAll(expr, "page", strconv.Itoa(page))
	if !arithmeticRe.MatchString(expr) {
		return 0, false
	}
	v, err := goja.New().RunString(expr)
	if err != nil {
		return 0, false
	}
	f := v.ToFloat()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// EscapeKeyword percent-encodes a search keyword in the site's charset.
func EscapeKeyword(key, charset string) string {
	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "utf8") {
		if enc, err := htmlindex.Get(charset); err == nil {
			if encoded, err := enc.NewEncoder().String(key); err == nil {
				key = encoded
			}
		}
	}
	return strings.ReplaceAll(url.QueryEscape(key), "+", "%20")
}
