package parse

import (
	"fmt"
	"strings"

	"github.com/wenzapen/bookrule/jsonv"
	"github.com/wenzapen/bookrule/rule"
	"github.com/wenzapen/bookrule/selector"
)

// list resolves a list rule to the items the field rules run against.
func (s *scope) list(root item, r string) ([]item, error) {
	r = strings.TrimSpace(r)
	if r == "" {
		return nil, ErrRuleMissing
	}
	if rule.HasScript(r) {
		return s.scriptList(root, r)
	}
	return s.plainList(root, r)
}

func (s *scope) plainList(root item, r string) ([]item, error) {
	r = strings.TrimSpace(r)
	if c := rule.DetectConnector(r); c != rule.ConnectorNone {
		var lists [][]item
		for _, part := range rule.SplitByConnector(r, c) {
			got, err := s.plainList(root, part)
			if err != nil {
				return nil, err
			}
			lists = append(lists, got)
		}
		return rule.Merge(lists, c), nil
	}

	reverse := strings.HasPrefix(r, "-")
	r = strings.TrimLeft(r, "-+")
	var items []item
	switch mode := rule.InferMode(r); mode {
	case rule.ModeRegex:
		recs, err := rule.ParseAllInOne(r, root.String())
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			items = append(items, item{kind: kindRecord, rec: rec})
		}
	case rule.ModeXPath:
		frags, err := selector.XPathHTML(root.String(), rule.CleanPrefix(r, mode))
		if err != nil {
			return nil, err
		}
		for _, frag := range frags {
			doc, err := selector.Parse(frag)
			if err != nil {
				continue
			}
			items = append(items, item{kind: kindHTML, sel: doc.Selection, text: frag})
		}
	case rule.ModeJSON:
		v, ok := root.asJSON()
		if !ok {
			return nil, fmt.Errorf("%w: json list rule on a non-json response", ErrParse)
		}
		items = jsonItems(v.Query(rule.CleanPrefix(r, mode)))
	case rule.ModeDefault:
		c := rule.CleanPrefix(r, mode)
		if v, ok := root.asJSON(); ok {
			items = jsonItems(v.Query(c))
			break
		}
		for _, sel := range selector.SelectAll(root.asHTML(), c) {
			items = append(items, htmlItem(sel))
		}
	case rule.ModeJS:
		return s.scriptList(root, r)
	}
	if reverse {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	return items, nil
}

// scriptList runs a list rule that contains scripts. JSON segments narrow
// the current value, selector segments turn it into a list and a script
// receives whatever came before it as result. A script returning an array
// (or the JSON text of one) yields one item per element.
func (s *scope) scriptList(root item, r string) ([]item, error) {
	segs := rule.Split(r)
	if len(segs) == 0 {
		return nil, nil
	}
	var (
		cur    = root
		items  []item
		listed bool
	)
	for _, seg := range segs {
		if seg.Mode == rule.ModeJS {
			var result any = cur.scriptValue()
			if listed {
				all := make([]any, 0, len(items))
				for _, it := range items {
					all = append(all, it.String())
				}
				result = all
			}
			v, err := s.eval(result, cur, seg.Content)
			if err != nil {
				return nil, err
			}
			if got, ok := scriptItems(v); ok {
				items, listed = got, true
				continue
			}
			cur, listed = goItem(v), false
			continue
		}
		if v, ok := cur.asJSON(); ok && !listed && seg.Mode != rule.ModeXPath && seg.Mode != rule.ModeRegex {
			cur = jsonItem(v.Query(rule.CleanPrefix(seg.Content, seg.Mode)))
			continue
		}
		got, err := s.plainList(cur, seg.Content)
		if err != nil {
			return nil, err
		}
		items, listed = got, true
	}
	if listed {
		return items, nil
	}
	if v, ok := cur.asJSON(); ok {
		return jsonItems(v), nil
	}
	return nil, nil
}

func scriptItems(v any) ([]item, bool) {
	switch x := v.(type) {
	case []any:
		out := make([]item, 0, len(x))
		for _, e := range x {
			out = append(out, goItem(e))
		}
		return out, true
	case string:
		if !jsonv.LooksLikeJSON(x) {
			return nil, false
		}
		jv, err := jsonv.Parse(x)
		if err != nil || jv.Kind() != jsonv.Array {
			return nil, false
		}
		return jsonItems(jv), true
	}
	return nil, false
}
