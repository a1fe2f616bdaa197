// Package jsengine runs the JavaScript snippets embedded in book source rules.
//
// A Host owns a single goja runtime. The runtime lives on one goroutine and
// every call is handed to it over a channel, so scripts never run
// concurrently and state set up by a source's jsLib is shared between calls.
package jsengine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

var (
	ErrScript = errors.New("script error")
	ErrClosed = errors.New("script host closed")
)

// ScriptError is returned for exceptions, syntax errors and interrupted scripts.
type ScriptError struct {
	Message string
	Err     error
}

func (e *ScriptError) Error() string {
	return "script: " + e.Message
}

func (e *ScriptError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrScript, e.Err}
	}
	return []error{ErrScript}
}

// JSON marks a variable holding JSON text; it is parsed into a script value
// instead of being passed as a string.
type JSON string

// Env is the per-call environment of a script.
type Env struct {
	// Vars are bound as parameters of the script function and are what
	// java.get consults before the cache. Names that are not identifiers or
	// that name a host global are not bound.
	Vars map[string]any
	// JSLib is evaluated once per distinct text before the script.
	JSLib string
	// GetString backs java.getString(rule), resolving a rule against the
	// current result.
	GetString func(rule string) string
}

type resultMode int

const (
	modeValue resultMode = iota
	modeString
	modeList
)

type job struct {
	ctx    context.Context
	script string
	env    Env
	cache  Cache
	mode   resultMode
	reply  chan reply
}

type reply struct {
	val  any
	str  string
	list []string
	err  error
}

type Host struct {
	options
	jobs      chan *job
	done      chan struct{}
	closeOnce sync.Once

	// owned by the loop goroutine
	vm        *goja.Runtime
	libs      map[string]bool
	cur       *job
	jsonParse goja.Callable
	stringify goja.Callable
}

func New(opts ...Option) *Host {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.cache == nil {
		options.cache = NewMemoryCache(0)
	}
	h := &Host{
		options: options,
		jobs:    make(chan *job),
		done:    make(chan struct{}),
		vm:      goja.New(),
		libs:    make(map[string]bool),
	}
	h.setup()
	go h.loop()
	return h
}

// Close stops the runtime goroutine. Calls made afterwards fail with ErrClosed.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// Eval runs script and returns its value as plain Go data (string, int64,
// float64, bool, []any, map[string]any or nil).
func (h *Host) Eval(ctx context.Context, script string, env Env) (any, error) {
	r, err := h.submit(ctx, script, env, modeValue)
	return r.val, err
}

// EvalString runs script and converts the result to text. Arrays yield their
// first element, plain objects their JSON form, null and undefined "".
func (h *Host) EvalString(ctx context.Context, script string, env Env) (string, error) {
	r, err := h.submit(ctx, script, env, modeString)
	return r.str, err
}

// EvalList runs script and converts every element of an array result to
// text. Any other non-empty result becomes a one element list.
func (h *Host) EvalList(ctx context.Context, script string, env Env) ([]string, error) {
	r, err := h.submit(ctx, script, env, modeList)
	return r.list, err
}

// CacheFor returns the cache that scripts called with ctx read and write.
func (h *Host) CacheFor(ctx context.Context) Cache {
	if c, ok := CacheFromContext(ctx); ok {
		return c
	}
	return h.cache
}

func (h *Host) submit(ctx context.Context, script string, env Env, mode resultMode) (reply, error) {
	c := h.CacheFor(ctx)
	select {
	case <-h.done:
		return reply{}, ErrClosed
	default:
	}
	j := &job{ctx: ctx, script: script, env: env, cache: c, mode: mode, reply: make(chan reply, 1)}
	select {
	case h.jobs <- j:
	case <-h.done:
		return reply{}, ErrClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
	select {
	case r := <-j.reply:
		return r, r.err
	case <-h.done:
		return reply{}, ErrClosed
	}
}

func (h *Host) loop() {
	for {
		select {
		case j := <-h.jobs:
			j.reply <- h.run(j)
		case <-h.done:
			return
		}
	}
}

func (h *Host) run(j *job) (r reply) {
	if err := j.ctx.Err(); err != nil {
		return reply{err: err}
	}
	h.cur = j
	fired := make(chan struct{})
	stop := context.AfterFunc(j.ctx, func() {
		h.vm.Interrupt(j.ctx.Err())
		close(fired)
	})
	defer func() {
		if !stop() {
			<-fired
		}
		h.vm.ClearInterrupt()
		h.cur = nil
	}()

	if lib := j.env.JSLib; strings.TrimSpace(lib) != "" && !h.libs[lib] {
		if _, err := h.vm.RunString(lib); err != nil {
			return reply{err: toScriptError(err)}
		}
		h.libs[lib] = true
	}
	names, args := h.bindings(j.env.Vars)
	fnVal, err := h.vm.RunString("(function(" + strings.Join(names, ",") + "){\n" + Preprocess(j.script) + "\n})")
	if err != nil {
		h.logger.Debug("script failed", zap.Error(err))
		return reply{err: toScriptError(err)}
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return reply{err: &ScriptError{Message: "script is not a function body"}}
	}
	v, err := fn(goja.Undefined(), args...)
	if err != nil {
		h.logger.Debug("script failed", zap.Error(err))
		return reply{err: toScriptError(err)}
	}
	switch j.mode {
	case modeString:
		r.str = h.toString(v)
	case modeList:
		r.list = h.toList(v)
	case modeValue:
		r.val = export(v)
	}
	return r
}

// bindings orders vars by name and converts them to script values.
func (h *Host) bindings(vars map[string]any) ([]string, []goja.Value) {
	names := make([]string, 0, len(vars))
	for k := range vars {
		if !Bindable(k) {
			h.logger.Debug("script variable not bound", zap.String("name", k))
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	args := make([]goja.Value, len(names))
	for i, k := range names {
		args[i] = h.toValue(vars[k])
	}
	return names, args
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

var jsKeywords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true, "continue": true,
	"debugger": true, "default": true, "delete": true, "do": true, "else": true, "enum": true,
	"export": true, "extends": true, "false": true, "finally": true, "for": true, "function": true,
	"if": true, "import": true, "in": true, "instanceof": true, "new": true, "null": true,
	"return": true, "super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true, "with": true,
	"let": true, "static": true, "yield": true, "await": true, "implements": true,
	"interface": true, "package": true, "private": true, "protected": true, "public": true,
	"arguments": true, "eval": true, "undefined": true, "NaN": true, "Infinity": true,
}

// Reserved reports whether name is a global the host installs for every
// script.
func Reserved(name string) bool {
	_, ok := hostGlobals[name]
	return ok
}

// Bindable reports whether name can be passed to a script as a variable.
func Bindable(name string) bool {
	return identRe.MatchString(name) && !jsKeywords[name] && !Reserved(name)
}

func (h *Host) toValue(v any) goja.Value {
	raw, ok := v.(JSON)
	if !ok {
		return h.vm.ToValue(v)
	}
	parsed, err := h.jsonParse(goja.Undefined(), h.vm.ToValue(string(raw)))
	if err != nil {
		return h.vm.ToValue(string(raw))
	}
	if obj, ok := parsed.(*goja.Object); ok && obj.ClassName() == "Array" {
		_ = obj.Set("toArray", func(goja.FunctionCall) goja.Value { return obj })
	}
	return parsed
}

func export(v goja.Value) any {
	if isNil(v) {
		return nil
	}
	return v.Export()
}

func isNil(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func (h *Host) toString(v goja.Value) string {
	if isNil(v) {
		return ""
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if obj.ClassName() == "Array" {
		if obj.Get("length").ToInteger() == 0 {
			return ""
		}
		return h.toString(obj.Get("0"))
	}
	return h.objectString(obj)
}

func (h *Host) objectString(obj *goja.Object) string {
	if obj.ClassName() != "Object" || hasOwn(obj, "toString") {
		return obj.String()
	}
	s, err := h.stringify(goja.Undefined(), obj)
	if err != nil || isNil(s) {
		return obj.String()
	}
	return s.String()
}

func hasOwn(obj *goja.Object, key string) bool {
	for _, k := range obj.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

func (h *Host) toList(v goja.Value) []string {
	if isNil(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		if s := h.toString(v); s != "" {
			return []string{s}
		}
		return nil
	}
	n := obj.Get("length").ToInteger()
	out := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		item := obj.Get(fmt.Sprint(i))
		if o, ok := item.(*goja.Object); ok && o.ClassName() != "Array" {
			out = append(out, h.objectString(o))
			continue
		}
		out = append(out, h.toString(item))
	}
	return out
}

func toScriptError(err error) error {
	var (
		interrupted *goja.InterruptedError
		exception   *goja.Exception
		syntax      *goja.CompilerSyntaxError
	)
	switch {
	case errors.As(err, &interrupted):
		cause, _ := interrupted.Value().(error)
		return &ScriptError{Message: "interrupted", Err: cause}
	case errors.As(err, &exception):
		if v := exception.Value(); v != nil {
			return &ScriptError{Message: v.String()}
		}
		return &ScriptError{Message: exception.Error()}
	case errors.As(err, &syntax):
		return &ScriptError{Message: syntax.Error()}
	}
	return &ScriptError{Message: err.Error(), Err: err}
}

var powRe = regexp.MustCompile(`(\w+|\d+)\s*\*\*\s*(\w+|\d+)`)

// Preprocess adapts rule snippets to a function body: a ** b becomes
// Math.pow(a,b), a snippet starting with "." is a call chain on result, and
// the last line gets an implicit return unless it is already a return, a
// declaration, a comment or a closing brace.
func Preprocess(script string) string {
	s := strings.TrimSpace(script)
	s = powRe.ReplaceAllString(s, "Math.pow($1,$2)")
	if strings.HasPrefix(s, ".") {
		return "return result" + s
	}
	lines := strings.Split(s, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	switch {
	case last == "",
		strings.HasPrefix(last, "return ") || strings.HasPrefix(last, "return;") || last == "return",
		strings.Contains(last, "let ") || strings.Contains(last, "var ") ||
			strings.Contains(last, "const ") || strings.Contains(last, "function "),
		strings.HasPrefix(last, "//"),
		strings.HasPrefix(last, "}"):
		return s
	}
	lines[len(lines)-1] = "return " + last + ";"
	return strings.Join(lines, "\n")
}
