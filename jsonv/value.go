// Package jsonv wraps parsed JSON in a closed set of value kinds and provides
// the path syntax used by book source rules ($.a.b[0], a.b, list[:10]).
package jsonv

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

var ErrInvalid = errors.New("invalid json")

type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "unknown"
}

// Value is one JSON value. The zero Value is Null.
type Value struct {
	res gjson.Result
}

// Parse validates s and wraps it.
func Parse(s string) (Value, error) {
	if !gjson.Valid(s) {
		return Value{}, ErrInvalid
	}
	return Value{res: gjson.Parse(s)}, nil
}

// LooksLikeJSON reports whether a response body should be read as JSON.
func LooksLikeJSON(body string) bool {
	t := strings.TrimSpace(body)
	return strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[")
}

func (v Value) Kind() Kind {
	switch v.res.Type {
	case gjson.False, gjson.True:
		return Bool
	case gjson.Number:
		return Number
	case gjson.String:
		return String
	case gjson.JSON:
		if v.res.IsArray() {
			return Array
		}
		return Object
	case gjson.Null:
	}
	return Null
}

// Exists reports whether the value was present in its parent.
func (v Value) Exists() bool { return v.res.Exists() }

// Raw returns the JSON text of the value.
func (v Value) Raw() string { return v.res.Raw }

// String coerces the value to text: strings as is, integers without a
// fraction, booleans as "1"/"0", null as "" and containers as compact JSON.
func (v Value) String() string {
	switch v.Kind() {
	case String:
		return v.res.Str
	case Number:
		raw := strings.TrimSpace(v.res.Raw)
		if raw != "" && !strings.ContainsAny(raw, ".eE") {
			return raw
		}
		return strconv.FormatFloat(v.res.Num, 'f', -1, 64)
	case Bool:
		if v.res.Bool() {
			return "1"
		}
		return "0"
	case Array, Object:
		return compact(v.res.Raw)
	case Null:
	}
	return ""
}

// Array returns the elements of an array value, nil for any other kind.
func (v Value) Array() []Value {
	if v.Kind() != Array {
		return nil
	}
	var out []Value
	v.res.ForEach(func(_, item gjson.Result) bool {
		out = append(out, Value{res: item})
		return true
	})
	return out
}

// Key returns an object member by literal name.
func (v Value) Key(name string) Value {
	if v.Kind() != Object {
		return Value{}
	}
	return Value{res: v.res.Get(escapeKey(name))}
}

// Query follows a rule path. Accepted forms: "$.a.b", "a.b", "$[0].a",
// "a[1]", "a[-1]", "a[*]" and the slice "a[:N]".
func (v Value) Query(path string) Value {
	cur := v
	for _, st := range steps(path) {
		switch {
		case st.slice:
			items := cur.Array()
			if st.index < len(items) {
				items = items[:st.index]
			}
			cur = fromValues(items)
		case st.all:
		case st.isIndex:
			items := cur.Array()
			i := st.index
			if i < 0 {
				i += len(items)
			}
			if i < 0 || i >= len(items) {
				return Value{}
			}
			cur = items[i]
		default:
			if cur.Kind() == Array {
				var picked []Value
				for _, item := range cur.Array() {
					if got := item.Key(st.key); got.Exists() {
						picked = append(picked, got)
					}
				}
				cur = fromValues(picked)
				continue
			}
			cur = cur.Key(st.key)
		}
		if !cur.Exists() {
			return Value{}
		}
	}
	return cur
}

type step struct {
	key     string
	index   int
	isIndex bool
	slice   bool
	all     bool
}

func steps(path string) []step {
	p := strings.TrimSpace(path)
	p = strings.TrimPrefix(p, "$")
	var out []step
	for p != "" {
		switch p[0] {
		case '.':
			p = p[1:]
			continue
		case '[':
			end := strings.IndexByte(p, ']')
			if end < 0 {
				out = append(out, step{key: p[1:]})
				return out
			}
			out = append(out, bracket(p[1:end]))
			p = p[end+1:]
			continue
		}
		end := strings.IndexAny(p, ".[")
		if end < 0 {
			end = len(p)
		}
		out = append(out, step{key: p[:end]})
		p = p[end:]
	}
	return out
}

func bracket(expr string) step {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "*":
		return step{all: true}
	case strings.HasPrefix(expr, ":"):
		if n, err := strconv.Atoi(strings.TrimSpace(expr[1:])); err == nil && n >= 0 {
			return step{slice: true, index: n}
		}
	default:
		if n, err := strconv.Atoi(expr); err == nil {
			return step{isIndex: true, index: n}
		}
	}
	return step{key: strings.Trim(expr, `'"`)}
}

func fromValues(items []Value) Value {
	var b strings.Builder
	b.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(it.res.Raw)
	}
	b.WriteByte(']')
	return Value{res: gjson.Parse(b.String())}
}

var keyEscaper = strings.NewReplacer(
	`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`, "!", `\!`, "=", `\=`, "<", `\<`, ">", `\>`, "%", `\%`,
)

func escapeKey(key string) string { return keyEscaper.Replace(key) }

func compact(raw string) string {
	return string(pretty.Ugly([]byte(raw)))
}
