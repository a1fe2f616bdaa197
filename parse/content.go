package parse

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/wenzapen/bookrule/jsonv"
	"github.com/wenzapen/bookrule/model"
	"github.com/wenzapen/bookrule/rule"
	"github.com/wenzapen/bookrule/selector"
)

// Content reads the text of one chapter page fetched from pageURL. The
// second result is the next page of the same chapter, "" when there is none.
// Unlike field rules, a failing content rule fails the call.
func (p *Parser) Content(ctx context.Context, body, pageURL string, chapter *model.BookChapter, src *model.BookSource) (string, string, error) {
	r := src.RuleContent
	if r == nil || strings.TrimSpace(r.Content) == "" {
		return "", "", ErrRuleMissing
	}
	s := p.newScope(ctx, src, pageURL, body)
	s.chapter = chapter
	p.rememberBookID(ctx, pageURL)

	root, err := s.rootFor(r.Content)
	if err != nil {
		return "", "", err
	}
	content, err := s.getString(root, r.Content)
	if err != nil {
		return "", "", fmt.Errorf("content rule: %w", err)
	}

	if root.kind == kindJSON {
		if strings.TrimSpace(content) == "" {
			content = fallbackContent(root.json)
		}
		if strings.TrimSpace(content) == "" {
			return "", "", fmt.Errorf("%w: no content in json response", ErrParse)
		}
	} else if !rule.HasScript(r.Content) && !strings.Contains(strings.ToLower(r.Content), "@text") {
		content = Paragraphs(content)
	}
	if r.ReplaceRegex != "" {
		content = rule.ReplaceLines(content, r.ReplaceRegex)
	}

	var next string
	if r.NextContentURL != "" {
		next = nextPage(s.field(root, "nextContentUrl", r.NextContentURL), pageURL)
	}
	return strings.TrimSpace(content), next, nil
}

func fallbackContent(v jsonv.Value) string {
	for _, key := range []string{"data", "content"} {
		if f := v.Key(key); f.Kind() == jsonv.String {
			return f.String()
		}
	}
	return ""
}

var brRe = regexp.MustCompile(`(?i)<br\s*/?>`)

// Paragraphs turns chapter HTML into text: the texts of <p> elements
// separated by a blank line or, without paragraphs, the text with <br>
// variants as line breaks.
func Paragraphs(content string) string {
	doc, err := selector.Parse(content)
	if err != nil {
		return content
	}
	var paras []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := selector.Text(p); t != "" {
			paras = append(paras, t)
		}
	})
	if len(paras) > 0 {
		return strings.Join(paras, "\n\n")
	}
	doc, err = selector.Parse(brRe.ReplaceAllString(content, "\n"))
	if err != nil {
		return content
	}
	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
