// Package parse interprets the rules of a book source against a fetched
// response and produces search results, book details, chapter lists and
// chapter text.
package parse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/wenzapen/bookrule/jsengine"
	"github.com/wenzapen/bookrule/jsonv"
	"github.com/wenzapen/bookrule/model"
	"github.com/wenzapen/bookrule/rule"
	"github.com/wenzapen/bookrule/selector"
	"go.uber.org/zap"
)

var (
	// ErrRuleMissing is returned when the list or content rule a parse needs is absent.
	ErrRuleMissing = errors.New("rule missing")
	// ErrParse is returned when a response is not in the shape the rules expect.
	ErrParse = errors.New("parse error")

	errNestedScript = errors.New("script rule inside java.getString")
	errNoHost       = errors.New("no script host")
)

// Parser is safe for concurrent use. Scripts run on the shared host, which
// serialises them.
type Parser struct {
	host *jsengine.Host
	options
}

func New(host *jsengine.Host, opts ...Option) *Parser {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Parser{host: host, options: options}
}

// scope carries what one driver call knows while it walks the rules.
type scope struct {
	ctx      context.Context
	p        *Parser
	src      *model.BookSource
	baseURL  string
	body     string
	key      string
	book     *model.Book
	chapter  *model.BookChapter
	vars     map[string]string
	noScript bool
}

func (p *Parser) newScope(ctx context.Context, src *model.BookSource, baseURL, body string) *scope {
	return &scope{
		ctx:     ctx,
		p:       p,
		src:     src,
		baseURL: baseURL,
		body:    body,
		vars:    make(map[string]string),
	}
}

func (s *scope) logger() *zap.Logger {
	return s.p.logger
}

// root wraps a response body: JSON when it looks like JSON, HTML otherwise.
func (s *scope) root() (item, error) {
	if jsonv.LooksLikeJSON(s.body) {
		v, err := jsonv.Parse(s.body)
		if err != nil {
			return item{}, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return item{kind: kindJSON, json: v}, nil
	}
	doc, err := selector.Parse(s.body)
	if err != nil {
		return item{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return item{kind: kindHTML, sel: doc.Selection, text: s.body}, nil
}

// rootFor is root, except that a script list rule still gets the raw body
// when it does not parse.
func (s *scope) rootFor(listRule string) (item, error) {
	root, err := s.root()
	if err != nil && rule.HasScript(listRule) {
		return textItem(s.body), nil
	}
	return root, err
}

// field resolves an optional field rule. Failures are logged and yield "".
func (s *scope) field(it item, name, r string) string {
	if strings.TrimSpace(r) == "" {
		return ""
	}
	v, err := s.getString(it, r)
	if err != nil {
		s.logger().Debug("field rule failed",
			zap.String("source", s.src.BookSourceURL),
			zap.String("field", name),
			zap.String("rule", r),
			zap.Error(err))
		return ""
	}
	return strings.TrimSpace(v)
}

// getString resolves a field rule against it. In order: only-one regex
// rules, @get variables, connectors, then the segment chain followed by
// the ## cleaning pairs.
func (s *scope) getString(it item, raw string) (string, error) {
	r := strings.TrimSpace(raw)
	switch {
	case r == "":
		return "", nil
	case rule.IsOnlyOne(r):
		return rule.ParseOnlyOne(r, it.String())
	case hasPrefixFold(r, "@get:"):
		return s.variable(strings.Trim(r[len("@get:"):], "{} ")), nil
	case hasPrefixFold(r, "@put:"):
		s.put(it, r)
		return "", nil
	}
	if !rule.HasScript(r) {
		if c := rule.DetectConnector(r); c != rule.ConnectorNone {
			var lists [][]string
			for _, part := range rule.SplitByConnector(r, c) {
				v, err := s.getString(it, part)
				if err != nil {
					return "", err
				}
				var got []string
				if v != "" {
					got = []string{v}
				}
				lists = append(lists, got)
			}
			return strings.Join(rule.Merge(lists, c), "\n"), nil
		}
	}
	base, cleans := splitClean(r)
	out, err := s.chain(it, base)
	if err != nil {
		return "", err
	}
	return rule.Clean(out.String(), cleans), nil
}

// splitClean cuts the ## cleaning pairs off a rule. Inside a rule with
// scripts only the text after the last </js> is considered.
func splitClean(r string) (string, []rule.CleanRule) {
	if !rule.HasScript(r) {
		return rule.SplitClean(r)
	}
	end := strings.LastIndex(strings.ToLower(r), "</js>")
	if end < 0 {
		return r, nil
	}
	end += len("</js>")
	base, cleans := rule.SplitClean(r[end:])
	return r[:end] + base, cleans
}

// chain feeds every segment the output of the one before it. A rule
// without segments selects nothing.
func (s *scope) chain(it item, r string) (item, error) {
	segs := rule.Split(r)
	if len(segs) == 0 {
		return textItem(""), nil
	}
	cur := it
	for _, seg := range segs {
		next, err := s.segment(cur, seg)
		if err != nil {
			return item{}, fmt.Errorf("%s segment %q: %w", seg.Mode, seg.Content, err)
		}
		cur = next
	}
	return cur, nil
}

func (s *scope) segment(it item, seg rule.Segment) (item, error) {
	c := rule.CleanPrefix(seg.Content, seg.Mode)
	if seg.Mode != rule.ModeJS && templateRe.MatchString(c) {
		return textItem(s.render(it, c)), nil
	}
	switch seg.Mode {
	case rule.ModeDefault:
		return s.selectDefault(it, c), nil
	case rule.ModeXPath:
		v, err := selector.XPathFirst(it.String(), c)
		return textItem(v), err
	case rule.ModeJSON:
		v, ok := it.asJSON()
		if !ok {
			return item{}, fmt.Errorf("%w: input is not json", ErrParse)
		}
		return jsonItem(v.Query(c)), nil
	case rule.ModeRegex:
		v, err := rule.FirstGroup(c, it.String())
		return textItem(v), err
	case rule.ModeJS:
		v, err := s.evalString(it, c)
		return textItem(v), err
	}
	return item{}, fmt.Errorf("unknown rule mode %d", seg.Mode)
}

// selectDefault reads a key path from JSON, a $N reference from a regex
// record and a selector from everything else.
func (s *scope) selectDefault(it item, c string) item {
	switch it.kind {
	case kindJSON:
		return jsonItem(it.json.Query(c))
	case kindRecord:
		if !strings.Contains(c, "$") {
			return textItem("")
		}
		return textItem(rule.Substitute(c, it.rec))
	case kindText:
		if v, ok := it.asJSON(); ok {
			return jsonItem(v.Query(c))
		}
	case kindHTML:
	}
	return textItem(selector.Eval(it.asHTML(), c))
}

var templateRe = regexp.MustCompile(`\{\{([\s\S]+?)\}\}`)

// render substitutes {{expr}} placeholders. source.* reads the book source,
// on JSON items expr is a path, on records a $N reference and otherwise a
// rule resolved against the item.
func (s *scope) render(it item, tmpl string) string {
	return templateRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		expr := strings.TrimSpace(m[2 : len(m)-2])
		if name, ok := strings.CutPrefix(expr, "source."); ok {
			return s.sourceField(name)
		}
		if v, ok := it.asJSON(); ok {
			return v.Query(expr).String()
		}
		if it.kind == kindRecord {
			return rule.Substitute(expr, it.rec)
		}
		v, err := s.getString(it, expr)
		if err != nil {
			s.logger().Debug("template failed", zap.String("expr", expr), zap.Error(err))
		}
		return v
	})
}

func (s *scope) sourceField(name string) string {
	switch name {
	case "bookSourceName":
		return s.src.BookSourceName
	case "bookSourceGroup":
		return s.src.BookSourceGroup
	case "key":
		return s.key
	}
	return s.src.BookSourceURL
}

// variable reads a value stored by @put or java.put.
func (s *scope) variable(name string) string {
	if v, ok := s.vars[name]; ok {
		return v
	}
	if s.p.host == nil {
		return ""
	}
	v, _ := s.p.host.CacheFor(s.ctx).Get(name)
	return v
}

// put evaluates every rule of an @put:{key:"rule",...} map against it and
// stores the results as variables visible to @get and java.get. Names of
// script host globals are refused.
func (s *scope) put(it item, r string) {
	for _, kv := range parsePut(r[len("@put:"):]) {
		if jsengine.Reserved(kv[0]) {
			s.logger().Warn("put refused reserved name",
				zap.String("source", s.src.BookSourceURL),
				zap.String("name", kv[0]))
			continue
		}
		v := s.field(it, kv[0], kv[1])
		s.vars[kv[0]] = v
		if s.p.host != nil {
			s.p.host.CacheFor(s.ctx).Put(kv[0], v)
		}
	}
}

// parsePut reads the loose object syntax of @put: keys may be unquoted and
// values single or double quoted.
func parsePut(obj string) [][2]string {
	obj = strings.TrimSpace(obj)
	obj = strings.TrimSuffix(strings.TrimPrefix(obj, "{"), "}")
	var (
		pairs [][2]string
		cur   strings.Builder
		quote rune
	)
	flush := func() {
		k, v, ok := strings.Cut(cur.String(), ":")
		cur.Reset()
		if !ok {
			return
		}
		k = strings.Trim(strings.TrimSpace(k), `"'`)
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		if k != "" {
			pairs = append(pairs, [2]string{k, v})
		}
	}
	for _, r := range obj {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
		case quote == 0 && r == ',':
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return pairs
}

func (s *scope) evalString(it item, script string) (string, error) {
	if s.noScript {
		return "", errNestedScript
	}
	if s.p.host == nil {
		return "", errNoHost
	}
	return s.p.host.EvalString(s.ctx, script, s.env(it.scriptValue(), it))
}

func (s *scope) eval(result any, it item, script string) (any, error) {
	if s.noScript {
		return nil, errNestedScript
	}
	if s.p.host == nil {
		return nil, errNoHost
	}
	return s.p.host.Eval(s.ctx, script, s.env(result, it))
}

// env builds the script globals: result, baseUrl, key, page, source, book,
// chapter and the @put variables.
func (s *scope) env(result any, it item) jsengine.Env {
	vars := map[string]any{
		"result":  result,
		"baseUrl": s.baseURL,
		"key":     s.key,
		"page":    1,
		"source": map[string]any{
			"bookSourceUrl":  s.src.BookSourceURL,
			"bookSourceName": s.src.BookSourceName,
			"key":            s.key,
		},
	}
	if s.book != nil {
		vars["book"] = toJSON(s.book)
	}
	if s.chapter != nil {
		vars["chapter"] = toJSON(s.chapter)
	}
	for k, v := range s.vars {
		if _, taken := vars[k]; !taken {
			vars[k] = v
		}
	}
	return jsengine.Env{
		Vars:  vars,
		JSLib: s.src.JSLib,
		GetString: func(r string) string {
			sub := *s
			sub.noScript = true
			v, err := sub.getString(it, r)
			if err != nil {
				s.logger().Debug("java.getString failed", zap.String("rule", r), zap.Error(err))
			}
			return v
		},
	}
}

func toJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return jsengine.JSON(b)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// truthy reads the chapter flags, which sources fill with anything from
// "true" to a badge text.
func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "0", "null", "undefined", "no":
		return false
	}
	return true
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
