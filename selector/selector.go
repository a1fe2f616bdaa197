// Package selector evaluates the CSS flavoured selector rules of book sources
// against HTML, plus an XPath backend for rules written as XPath.
package selector

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// subTags are accessors that return the outer HTML of matching children
// instead of naming an attribute.
var subTags = map[string]bool{
	"p": true, "a": true, "div": true, "span": true, "li": true, "td": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"img": true, "ul": true, "ol": true, "dl": true, "dt": true, "dd": true,
}

var (
	classRe = regexp.MustCompile(`\bclass\.([a-zA-Z0-9_-]+)`)
	idRe    = regexp.MustCompile(`\bid\.([a-zA-Z0-9_-]+)`)
	tagRe   = regexp.MustCompile(`\btag\.([a-zA-Z0-9_-]+)`)
)

// Translate rewrites the legacy dialect (class.x, id.x, tag.x) to CSS.
func Translate(sel string) string {
	sel = classRe.ReplaceAllString(sel, ".$1")
	sel = idRe.ReplaceAllString(sel, "#$1")
	return tagRe.ReplaceAllString(sel, "$1")
}

// Parse reads an HTML document or fragment.
func Parse(body string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

// Resolve parses body and evaluates rule against it.
func Resolve(body, rule string) (string, error) {
	doc, err := Parse(body)
	if err != nil {
		return "", err
	}
	return Eval(doc.Selection, rule), nil
}

// Eval evaluates a selector rule against root. The rule is a chain of steps
// separated by "@"; the last part is an accessor when there is more than one
// part: text, html, all (outer html), ownText, textNodes, one of the sub tags,
// or an attribute name. A step may end in .N to pick the Nth match (negative
// counts from the end); without an index the first match is read. A bare
// selector yields the text of its match. Nothing matched yields "".
func Eval(root *goquery.Selection, rule string) string {
	rule = strings.TrimSpace(rule)
	parts := strings.Split(rule, "@")
	if len(parts) == 1 {
		sel := step(root, parts[0])
		if sel.Length() == 0 {
			return ""
		}
		return Text(sel.First())
	}
	accessor := strings.TrimSpace(parts[len(parts)-1])
	stepsPart := parts[:len(parts)-1]
	if isStep(accessor) {
		stepsPart = parts
		accessor = "text"
	}
	sel := root
	for i, p := range stepsPart {
		if i == 0 && strings.TrimSpace(p) == "" {
			sel = body(root)
			continue
		}
		sel = step(sel, p)
	}
	if sel.Length() == 0 {
		return ""
	}
	return access(sel, accessor)
}

// SelectAll returns the elements a list rule selects. Steps are separated by
// "@" and each narrows the previous result; a leading "-" reverses the list.
func SelectAll(root *goquery.Selection, rule string) []*goquery.Selection {
	rule = strings.TrimSpace(rule)
	reverse := strings.HasPrefix(rule, "-")
	rule = strings.TrimPrefix(rule, "-")
	sel := root
	for i, p := range strings.Split(rule, "@") {
		if i == 0 && strings.TrimSpace(p) == "" {
			sel = body(root)
			continue
		}
		sel = step(sel, p)
	}
	out := make([]*goquery.Selection, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func access(sel *goquery.Selection, accessor string) string {
	first := sel.First()
	switch lower := strings.ToLower(accessor); {
	case lower == "text":
		return Text(first)
	case lower == "owntext":
		return OwnText(first)
	case lower == "textnodes":
		return TextNodes(first)
	case lower == "html":
		h, err := first.Html()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(h)
	case lower == "all":
		h, err := goquery.OuterHtml(first)
		if err != nil {
			return ""
		}
		return h
	case subTags[lower]:
		var b strings.Builder
		first.Find(lower).Each(func(_ int, s *goquery.Selection) {
			if h, err := goquery.OuterHtml(s); err == nil {
				b.WriteString(h)
			}
		})
		return b.String()
	}
	v, _ := first.Attr(accessor)
	return strings.TrimSpace(v)
}

// step applies one selector with an optional trailing index. The match set
// includes the elements of sel themselves.
func step(sel *goquery.Selection, raw string) *goquery.Selection {
	css, idx, hasIdx := splitIndex(strings.TrimSpace(raw))
	css = Translate(css)
	if css == "" {
		return sel
	}
	m, err := cascadia.Compile(css)
	if err != nil {
		return sel.Slice(0, 0)
	}
	found := sel.FilterMatcher(m).AddSelection(sel.FindMatcher(m))
	if !hasIdx {
		return found
	}
	n := found.Length()
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return sel.Slice(0, 0)
	}
	return found.Eq(idx)
}

// splitIndex separates a trailing .N from a selector. The dot must not be the
// first character, so ".5" stays a (class) selector.
func splitIndex(sel string) (string, int, bool) {
	dot := strings.LastIndex(sel, ".")
	if dot <= 0 || dot == len(sel)-1 {
		return sel, 0, false
	}
	n, err := strconv.Atoi(sel[dot+1:])
	if err != nil {
		return sel, 0, false
	}
	return sel[:dot], n, true
}

func isStep(accessor string) bool {
	if accessor == "" {
		return false
	}
	if _, _, ok := splitIndex(accessor); ok {
		return true
	}
	return strings.ContainsAny(accessor, ".#[]:> ")
}

func body(root *goquery.Selection) *goquery.Selection {
	if b := root.Find("body"); b.Length() > 0 {
		return b.First()
	}
	return root
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "dl": true, "dt": true, "dd": true, "section": true,
	"article": true, "header": true, "footer": true, "table": true, "blockquote": true,
}

// Text returns the normalised text of the selection: whitespace runs collapse
// to one space, element boundaries of block tags separate words and the
// result is trimmed.
func Text(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		collectText(n, &b)
	}
	return normalize(b.String())
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block {
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
	if block {
		b.WriteByte(' ')
	}
}

// OwnText returns only the text directly under the selected element.
func OwnText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return normalize(b.String())
}

// TextNodes joins the non-empty direct text children with newlines.
func TextNodes(sel *goquery.Selection) string {
	var lines []string
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.TextNode {
				continue
			}
			if t := normalize(c.Data); t != "" {
				lines = append(lines, t)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// OuterHTML renders the first element of the selection.
func OuterHTML(sel *goquery.Selection) string {
	h, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	return h
}
