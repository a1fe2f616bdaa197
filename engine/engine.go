// Package engine fetches the pages a book source describes and hands them to
// the rule interpreter: search, book details, the table of contents and
// chapter text, following pagination where the source asks for it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
	"github.com/wenzapen/bookrule/collect"
	"github.com/wenzapen/bookrule/jsengine"
	"github.com/wenzapen/bookrule/limiter"
	"github.com/wenzapen/bookrule/model"
	"github.com/wenzapen/bookrule/parse"
	"github.com/wenzapen/bookrule/rule"
	"github.com/wenzapen/bookrule/urlutil"
	"go.uber.org/zap"
)

var (
	ErrNoSearchURL = errors.New("book source has no search url")
	ErrNoLoader    = errors.New("no book source loader configured")
)

// SourceLoader looks up a stored book source by its URL.
type SourceLoader interface {
	LoadBookSource(ctx context.Context, url string) (*model.BookSource, error)
}

type Engine struct {
	options
	parser   *parse.Parser
	ownsHost bool

	// script variables per book, keyed by book URL
	books *gocache.Cache

	fetchLock sync.Mutex
	fetchers  map[string]collect.Fetcher
}

func New(opts ...Option) *Engine {
	options := DefaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.Fetcher == nil {
		options.Fetcher = &collect.BrowserFetch{
			Timeout: 15 * time.Second,
			Logger:  options.Logger,
		}
	}

	e := &Engine{}
	if options.Host == nil {
		options.Host = jsengine.New(
			jsengine.WithLogger(options.Logger),
			jsengine.WithFetcher(options.Fetcher),
			jsengine.WithCache(jsengine.NewMemoryCache(options.CacheTTL)),
		)
		e.ownsHost = true
	}
	e.options = options
	e.parser = parse.New(options.Host, parse.WithLogger(options.Logger))
	e.books = gocache.New(options.CacheTTL, 2*options.CacheTTL)
	e.fetchers = make(map[string]collect.Fetcher)
	return e
}

// Close stops the script host if the engine created it.
func (e *Engine) Close() {
	if e.ownsHost {
		e.Host.Close()
	}
}

func (e *Engine) LoadSource(ctx context.Context, url string) (*model.BookSource, error) {
	if e.Loader == nil {
		return nil, ErrNoLoader
	}
	return e.Loader.LoadBookSource(ctx, url)
}

// Search runs the source's search URL for keyword and parses the first
// result page.
func (e *Engine) Search(ctx context.Context, keyword string, src *model.BookSource) ([]model.SearchBook, error) {
	raw := strings.TrimSpace(src.SearchURL)
	if raw == "" {
		return nil, ErrNoSearchURL
	}
	raw, err := e.evalRule(ctx, raw, src, map[string]any{
		"key":     keyword,
		"page":    1,
		"baseUrl": src.BookSourceURL,
	})
	if err != nil {
		return nil, fmt.Errorf("search url: %w", err)
	}
	req := e.request(ctx, src, raw, 1, keyword)
	body, err := e.fetch(ctx, src, req)
	if err != nil {
		return nil, err
	}
	return e.parser.Search(ctx, body, req.URL, src, keyword)
}

// Explore parses one discovery page, usually the URL of an ExploreKind.
func (e *Engine) Explore(ctx context.Context, exploreURL string, src *model.BookSource) ([]model.SearchBook, error) {
	req := e.request(ctx, src, exploreURL, 1, "")
	body, err := e.fetch(ctx, src, req)
	if err != nil {
		return nil, err
	}
	return e.parser.Explore(ctx, body, req.URL, src)
}

var kindSepRe = regexp.MustCompile(`\r?\n|&&`)

// ExploreKinds lists the discovery menu of a source. exploreUrl is either a
// JSON array of {title, url} objects or "title::url" entries separated by
// newlines or &&; it may be produced by a script. Entries without a URL are
// section titles.
func (e *Engine) ExploreKinds(ctx context.Context, src *model.BookSource) ([]model.ExploreKind, error) {
	raw := strings.TrimSpace(src.ExploreURL)
	if raw == "" {
		return nil, nil
	}
	raw, err := e.evalRule(ctx, raw, src, map[string]any{"baseUrl": src.BookSourceURL})
	if err != nil {
		return nil, fmt.Errorf("explore url: %w", err)
	}
	raw = strings.TrimSpace(raw)

	var kinds []model.ExploreKind
	if strings.HasPrefix(raw, "[") && gjson.Valid(raw) {
		gjson.Parse(raw).ForEach(func(_, v gjson.Result) bool {
			if title := strings.TrimSpace(v.Get("title").String()); title != "" {
				kinds = append(kinds, model.ExploreKind{Title: title, URL: strings.TrimSpace(v.Get("url").String())})
			}
			return true
		})
		return kinds, nil
	}
	for _, entry := range kindSepRe.Split(raw, -1) {
		title, u, _ := strings.Cut(entry, "::")
		if title = strings.TrimSpace(title); title == "" {
			continue
		}
		kinds = append(kinds, model.ExploreKind{Title: title, URL: strings.TrimSpace(u)})
	}
	return kinds, nil
}

func (e *Engine) GetBookInfo(ctx context.Context, bookURL string, src *model.BookSource) (*model.Book, error) {
	ctx = e.bookContext(ctx, bookURL)
	req := e.request(ctx, src, bookURL, 1, "")
	body, err := e.fetch(ctx, src, req)
	if err != nil {
		return nil, err
	}
	book, err := e.parser.BookInfo(ctx, body, req.URL, src)
	if err != nil {
		return nil, err
	}
	book.BookURL = bookURL
	return book, nil
}

// GetChapterList reads the table of contents of book, following nextTocUrl
// for at most MaxPages pages. A page seen before ends the walk. Chapters are
// numbered across pages.
func (e *Engine) GetChapterList(ctx context.Context, book *model.Book, src *model.BookSource) ([]model.BookChapter, error) {
	ctx = e.bookContext(ctx, book.BookURL)
	next := book.TocURL
	if next == "" {
		next = book.BookURL
	}

	visited := newVisited()
	var chapters []model.BookChapter
	for page := 0; next != "" && page < e.MaxPages; page++ {
		req := e.request(ctx, src, next, 1, "")
		if visited.HasVisited(req) {
			e.Logger.Debug("toc page visited", zap.String("url", req.URL))
			break
		}
		visited.StoreVisited(req)

		body, err := e.fetch(ctx, src, req)
		if err == nil {
			var list []model.BookChapter
			list, next, err = e.parser.ChapterList(ctx, body, req.URL, book, src)
			for _, c := range list {
				c.Index = len(chapters)
				chapters = append(chapters, c)
			}
		}
		if err != nil {
			if page == 0 {
				return nil, err
			}
			e.Logger.Warn("toc page failed", zap.String("url", req.URL), zap.Error(err))
			break
		}
	}
	return chapters, nil
}

// GetChapterContent reads a chapter's text, joining the pages linked by
// nextContentUrl. A bookid carried by the chapter's book URL repairs
// chapter URLs built with bookid=undefined.
func (e *Engine) GetChapterContent(ctx context.Context, chapter *model.BookChapter, src *model.BookSource) (string, error) {
	ctx = e.bookContext(ctx, chapter.BookURL)
	cache := e.Host.CacheFor(ctx)
	bookID := urlutil.Query(chapter.BookURL, parse.BookIDKey)
	if bookID != "" && bookID != "undefined" {
		cache.Put(parse.BookIDKey, bookID)
	} else {
		bookID, _ = cache.Get(parse.BookIDKey)
	}
	next := parse.ChapterURL(chapter.URL, chapter.BookURL, bookID)

	visited := newVisited()
	var parts []string
	for page := 0; next != "" && page < e.MaxPages; page++ {
		req := e.request(ctx, src, next, 1, "")
		if visited.HasVisited(req) {
			break
		}
		visited.StoreVisited(req)

		body, err := e.fetch(ctx, src, req)
		if err == nil {
			var text string
			text, next, err = e.parser.Content(ctx, body, req.URL, chapter, src)
			if text != "" {
				parts = append(parts, text)
			}
		}
		if err != nil {
			if page == 0 {
				return "", err
			}
			e.Logger.Warn("content page failed", zap.String("url", req.URL), zap.Error(err))
			break
		}
	}
	return strings.Join(parts, "\n"), nil
}

// request builds the request for a URL rule with optional trailing request
// options. Headers of the source come first; headers in the options win.
func (e *Engine) request(ctx context.Context, src *model.BookSource, raw string, page int, key string) *collect.Request {
	urlPart, opts := rule.ParseRequestURL(raw)
	var charset string
	if opts != nil {
		charset = opts.Charset
	}
	req := collect.NewRequest(urlutil.Resolve(rule.ExpandURL(urlPart, page, key, charset), src.BookSourceURL))
	req.Charset = charset
	req.Headers = e.headers(ctx, src)
	if opts != nil {
		for k, v := range opts.Headers {
			req.Headers[k] = v
		}
		if opts.Method == collect.MethodPost {
			req.Method = collect.MethodPost
			req.Body = rule.ExpandBody(opts.Body, page, key)
		}
	}
	return req
}

// headers decodes a source's header field: a JSON object or "Name: value"
// lines, either possibly produced by an @js: script.
func (e *Engine) headers(ctx context.Context, src *model.BookSource) map[string]string {
	h := make(map[string]string)
	raw := strings.TrimSpace(src.Header)
	if raw == "" {
		return h
	}
	raw, err := e.evalRule(ctx, raw, src, map[string]any{"baseUrl": src.BookSourceURL})
	if err != nil {
		e.Logger.Warn("header script failed", zap.String("source", src.BookSourceURL), zap.Error(err))
		return h
	}
	raw = strings.TrimSpace(raw)
	if gjson.Valid(raw) {
		if r := gjson.Parse(raw); r.IsObject() {
			r.ForEach(func(k, v gjson.Result) bool {
				h[k.String()] = v.String()
				return true
			})
			return h
		}
	}
	for _, line := range strings.Split(raw, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if k = strings.TrimSpace(k); ok && k != "" {
			h[k] = strings.TrimSpace(v)
		}
	}
	return h
}

// evalRule runs the script spans of a URL or header rule. Text before a
// script is passed to it as result; the last value is returned.
func (e *Engine) evalRule(ctx context.Context, raw string, src *model.BookSource, vars map[string]any) (string, error) {
	if !rule.HasScript(raw) {
		return raw, nil
	}
	vars["source"] = map[string]any{
		"bookSourceUrl":  src.BookSourceURL,
		"bookSourceName": src.BookSourceName,
	}
	var result string
	for _, seg := range rule.Split(raw) {
		if seg.Mode != rule.ModeJS {
			result = seg.Content
			continue
		}
		vars["result"] = result
		out, err := e.Host.EvalString(ctx, seg.Content, jsengine.Env{Vars: vars, JSLib: src.JSLib})
		if err != nil {
			return "", err
		}
		result = out
	}
	return result, nil
}

func (e *Engine) fetch(ctx context.Context, src *model.BookSource, req *collect.Request) (string, error) {
	e.Logger.Debug("fetch",
		zap.String("source", src.BookSourceURL),
		zap.String("method", req.Method),
		zap.String("url", req.URL))
	body, err := e.fetcherFor(src).Get(ctx, req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// fetcherFor returns the fetcher of a source, rate limited when the source
// declares a concurrentRate. Limiters are shared by all calls for the source.
func (e *Engine) fetcherFor(src *model.BookSource) collect.Fetcher {
	if strings.TrimSpace(src.ConcurrentRate) == "" {
		return e.Fetcher
	}
	key := src.BookSourceURL + "|" + src.ConcurrentRate
	e.fetchLock.Lock()
	defer e.fetchLock.Unlock()
	if f, ok := e.fetchers[key]; ok {
		return f
	}
	var f collect.Fetcher = e.Fetcher
	l, err := limiter.ParseConcurrentRate(src.ConcurrentRate)
	if err != nil {
		e.Logger.Warn("ignoring concurrent rate", zap.String("source", src.BookSourceURL), zap.Error(err))
	} else if l != nil {
		f = &collect.LimitedFetch{Fetcher: e.Fetcher, Limit: l}
	}
	e.fetchers[key] = f
	return f
}

// bookContext scopes script variables to one book unless the caller already
// chose a cache.
func (e *Engine) bookContext(ctx context.Context, bookURL string) context.Context {
	if bookURL == "" {
		return ctx
	}
	if _, ok := jsengine.CacheFromContext(ctx); ok {
		return ctx
	}
	c, ok := e.books.Get(bookURL)
	if !ok {
		c = jsengine.NewMemoryCache(e.CacheTTL)
		if err := e.books.Add(bookURL, c, gocache.DefaultExpiration); err != nil {
			if existing, found := e.books.Get(bookURL); found {
				c = existing
			}
		}
	}
	return jsengine.ContextWithCache(ctx, c.(jsengine.Cache))
}

type visited struct {
	Visited     map[string]bool
	VisitedLock sync.Mutex
}

func newVisited() *visited {
	return &visited{Visited: make(map[string]bool)}
}

func (v *visited) HasVisited(r *collect.Request) bool {
	v.VisitedLock.Lock()
	defer v.VisitedLock.Unlock()
	return v.Visited[r.Unique()]
}

func (v *visited) StoreVisited(reqs ...*collect.Request) {
	v.VisitedLock.Lock()
	defer v.VisitedLock.Unlock()
	for _, r := range reqs {
		v.Visited[r.Unique()] = true
	}
}
