package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/wenzapen/bookrule/jsengine"
	"github.com/wenzapen/bookrule/jsonv"
	"github.com/wenzapen/bookrule/selector"
)

type kind int

const (
	kindText kind = iota
	kindHTML
	kindJSON
	kindRecord
)

// item is what a field rule is evaluated against: an HTML element, a JSON
// value, a record of regex groups or plain text produced by an earlier
// segment.
type item struct {
	kind kind
	sel  *goquery.Selection
	json jsonv.Value
	rec  map[string]string
	text string
}

func textItem(s string) item {
	return item{kind: kindText, text: s}
}

func htmlItem(sel *goquery.Selection) item {
	return item{kind: kindHTML, sel: sel}
}

// jsonItem keeps containers as JSON so later segments can walk them; scalars
// become text.
func jsonItem(v jsonv.Value) item {
	switch v.Kind() {
	case jsonv.Array, jsonv.Object:
		return item{kind: kindJSON, json: v}
	default:
		return textItem(v.String())
	}
}

// goItem converts a value exported from a script.
func goItem(v any) item {
	switch x := v.(type) {
	case nil:
		return textItem("")
	case string:
		if jsonv.LooksLikeJSON(x) {
			if jv, err := jsonv.Parse(x); err == nil {
				return jsonItem(jv)
			}
		}
		return textItem(x)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return textItem(fmt.Sprint(x))
		}
		jv, err := jsonv.Parse(string(b))
		if err != nil {
			return textItem(string(b))
		}
		return jsonItem(jv)
	}
	return textItem(fmt.Sprint(v))
}

func (it item) String() string {
	switch it.kind {
	case kindHTML:
		if it.text != "" {
			return it.text
		}
		return selector.OuterHTML(it.sel)
	case kindJSON:
		return it.json.String()
	case kindRecord:
		return it.rec["$0"]
	case kindText:
	}
	return it.text
}

func (it item) asJSON() (jsonv.Value, bool) {
	switch it.kind {
	case kindJSON:
		return it.json, true
	case kindText:
		if !jsonv.LooksLikeJSON(it.text) {
			return jsonv.Value{}, false
		}
		v, err := jsonv.Parse(it.text)
		return v, err == nil
	case kindHTML, kindRecord:
	}
	return jsonv.Value{}, false
}

func (it item) asHTML() *goquery.Selection {
	if it.kind == kindHTML {
		return it.sel
	}
	doc, err := selector.Parse(it.String())
	if err != nil {
		return &goquery.Selection{}
	}
	return doc.Selection
}

// scriptValue is how the item is handed to a script as `result`.
func (it item) scriptValue() any {
	if it.kind == kindJSON {
		return jsengine.JSON(it.json.Raw())
	}
	return it.String()
}

func jsonItems(v jsonv.Value) []item {
	switch v.Kind() {
	case jsonv.Array:
		elems := v.Array()
		out := make([]item, 0, len(elems))
		for _, e := range elems {
			out = append(out, jsonItem(e))
		}
		return out
	case jsonv.Object:
		return []item{jsonItem(v)}
	case jsonv.Null:
		return nil
	}
	if s := v.String(); strings.TrimSpace(s) != "" {
		return []item{textItem(s)}
	}
	return nil
}
