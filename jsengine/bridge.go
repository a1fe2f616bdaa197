package jsengine

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/dop251/goja"
	"github.com/wenzapen/bookrule/collect"
	"github.com/wenzapen/bookrule/rule"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// setup installs the java namespace and the global helpers.
func (h *Host) setup() {
	vm := h.vm
	h.jsonParse = mustCallable(vm, "JSON.parse")
	h.stringify = mustCallable(vm, "JSON.stringify")

	java := vm.NewObject()
	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		if err := java.Set(name, fn); err != nil {
			panic(err)
		}
	}
	set("ajax", func(call goja.FunctionCall) goja.Value {
		return h.response(h.fetch(h.requestFor(call.Argument(0).String())))
	})
	set("connect", func(call goja.FunctionCall) goja.Value {
		return h.response(h.fetch(h.requestFor(call.Argument(0).String())))
	})
	set("post", func(call goja.FunctionCall) goja.Value {
		req := h.requestFor(call.Argument(0).String())
		req.Method = collect.MethodPost
		req.Body = argString(call, 1)
		if hdr, ok := call.Argument(2).Export().(map[string]any); ok {
			req.Headers = make(map[string]string, len(hdr))
			for k, v := range hdr {
				req.Headers[k] = fmt.Sprint(v)
			}
		}
		return h.response(h.fetch(req))
	})
	set("ajaxAll", func(call goja.FunctionCall) goja.Value {
		var urls []string
		if list, ok := call.Argument(0).Export().([]any); ok {
			for _, u := range list {
				urls = append(urls, fmt.Sprint(u))
			}
		}
		bodies := h.fetchAll(urls)
		items := make([]any, 0, len(bodies))
		for _, b := range bodies {
			items = append(items, h.response(b))
		}
		return vm.NewArray(items...)
	})
	set("put", func(call goja.FunctionCall) goja.Value {
		v := call.Argument(1)
		if c := h.currentCache(); c != nil {
			c.Put(call.Argument(0).String(), h.toString(v))
		}
		return v
	})
	set("get", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		if h.cur != nil {
			if v, ok := h.cur.env.Vars[key]; ok && v != nil {
				return vm.ToValue(h.toString(h.toValue(v)))
			}
		}
		if c := h.currentCache(); c != nil {
			if v, ok := c.Get(key); ok {
				return vm.ToValue(v)
			}
		}
		return goja.Undefined()
	})
	set("getString", func(call goja.FunctionCall) goja.Value {
		if h.cur == nil || h.cur.env.GetString == nil {
			return vm.ToValue("")
		}
		return vm.ToValue(h.cur.env.GetString(call.Argument(0).String()))
	})
	set("log", func(call goja.FunctionCall) goja.Value {
		msg := call.Argument(0)
		h.logger.Info("script log", zap.String("msg", h.toString(msg)))
		return msg
	})
	set("base64Encode", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(base64Encode(call.Argument(0).String()))
	})
	set("base64Decode", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(base64Decode(call.Argument(0).String()))
	})
	set("md5Encode", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(md5Hex(call.Argument(0).String()))
	})
	set("encodeURI", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(rule.EscapeKeyword(call.Argument(0).String(), argString(call, 1)))
	})

	globals := map[string]any{
		"java":         java,
		"base64Encode": base64Encode,
		"base64Decode": base64Decode,
		"md5":          md5Hex,
	}
	for k, v := range globals {
		if err := vm.Set(k, v); err != nil {
			panic(err)
		}
	}
}

var hostGlobals = map[string]struct{}{
	"java":         {},
	"base64Encode": {},
	"base64Decode": {},
	"md5":          {},
}

func argString(call goja.FunctionCall, i int) string {
	v := call.Argument(i)
	if isNil(v) {
		return ""
	}
	return v.String()
}

func mustCallable(vm *goja.Runtime, expr string) goja.Callable {
	v, err := vm.RunString(expr)
	if err != nil {
		panic(err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(expr + " is not a function")
	}
	return fn
}

func (h *Host) currentCache() Cache {
	if h.cur != nil && h.cur.cache != nil {
		return h.cur.cache
	}
	return h.cache
}

func (h *Host) ctx() context.Context {
	if h.cur != nil {
		return h.cur.ctx
	}
	return context.Background()
}

// requestFor accepts the `url,{options}` form used in rules.
func (h *Host) requestFor(raw string) *collect.Request {
	u, opts := rule.ParseRequestURL(raw)
	req := collect.NewRequest(u)
	if opts != nil {
		req.Method = opts.Method
		req.Body = opts.Body
		req.Headers = opts.Headers
		req.Charset = opts.Charset
	}
	return req
}

// fetch returns "" on failure; scripts test the body rather than catch.
func (h *Host) fetch(req *collect.Request) string {
	return fetchWith(h.ctx(), h.fetcher, h.logger, req)
}

func fetchWith(ctx context.Context, f collect.Fetcher, logger *zap.Logger, req *collect.Request) string {
	if f == nil {
		logger.Warn("script requested network without a fetcher", zap.String("url", req.URL))
		return ""
	}
	body, err := f.Get(ctx, req)
	if err != nil {
		logger.Debug("script fetch failed", zap.String("url", req.URL), zap.Error(err))
		return ""
	}
	return string(body)
}

// fetchAll fetches concurrently and keeps the input order. It runs on the
// runtime goroutine but touches no script values.
func (h *Host) fetchAll(urls []string) []string {
	bodies := make([]string, len(urls))
	reqs := make([]*collect.Request, len(urls))
	for i, u := range urls {
		reqs[i] = h.requestFor(u)
	}
	ctx, f, logger := h.ctx(), h.fetcher, h.logger
	g, gctx := errgroup.WithContext(ctx)
	if h.ajaxWorkers > 0 {
		g.SetLimit(h.ajaxWorkers)
	}
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			bodies[i] = fetchWith(gctx, f, logger, req)
			return nil
		})
	}
	_ = g.Wait()
	return bodies
}

// response mimics the object returned by java.ajax: body(), _body and a
// toString that yields the body, so JSON.parse(java.ajax(url)) works.
func (h *Host) response(body string) goja.Value {
	obj := h.vm.NewObject()
	fn := func(goja.FunctionCall) goja.Value { return h.vm.ToValue(body) }
	_ = obj.Set("body", fn)
	_ = obj.Set("toString", fn)
	_ = obj.Set("_body", body)
	return obj
}

func base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func base64Decode(s string) string {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return ""
		}
	}
	return string(b)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
