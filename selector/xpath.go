package selector

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// XPath evaluates expr against an HTML body and returns the text of every
// selected node. Attribute and text() selections yield their value.
func XPath(body, expr string) ([]string, error) {
	nodes, err := xpathNodes(body, expr)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, strings.TrimSpace(htmlquery.InnerText(n)))
	}
	return out, nil
}

// XPathFirst returns the first result of XPath, or "" when nothing matched.
func XPathFirst(body, expr string) (string, error) {
	all, err := XPath(body, expr)
	if err != nil || len(all) == 0 {
		return "", err
	}
	return all[0], nil
}

// XPathHTML returns the outer HTML of every selected element, used to turn an
// XPath list rule into items for the CSS backend.
func XPathHTML(body, expr string) ([]string, error) {
	nodes, err := xpathNodes(body, expr)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			out = append(out, htmlquery.InnerText(n))
			continue
		}
		out = append(out, htmlquery.OutputHTML(n, true))
	}
	return out, nil
}

func xpathNodes(body, expr string) ([]*html.Node, error) {
	doc, err := htmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	return nodes, nil
}
