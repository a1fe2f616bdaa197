package engine

import (
	"time"

	"github.com/wenzapen/bookrule/collect"
	"github.com/wenzapen/bookrule/jsengine"
	"go.uber.org/zap"
)

type Option func(opts *options)

type options struct {
	WorkCount int
	MaxPages  int
	CacheTTL  time.Duration
	Fetcher   collect.Fetcher
	Loader    SourceLoader
	Host      *jsengine.Host
	Logger    *zap.Logger
}

var DefaultOptions = options{
	WorkCount: 5,
	MaxPages:  50,
	CacheTTL:  30 * time.Minute,
	Logger:    zap.NewNop(),
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.Logger = logger
	}
}

// WithWorkCount sets how many sources SearchAll queries at once.
func WithWorkCount(c int) Option {
	return func(opts *options) {
		opts.WorkCount = c
	}
}

// WithMaxPages bounds how many pages of one table of contents or one chapter
// are followed.
func WithMaxPages(n int) Option {
	return func(opts *options) {
		opts.MaxPages = n
	}
}

// WithCacheTTL sets how long script variables of a book are kept.
func WithCacheTTL(d time.Duration) Option {
	return func(opts *options) {
		opts.CacheTTL = d
	}
}

func WithFetcher(fetcher collect.Fetcher) Option {
	return func(opts *options) {
		opts.Fetcher = fetcher
	}
}

func WithLoader(loader SourceLoader) Option {
	return func(opts *options) {
		opts.Loader = loader
	}
}

// WithScriptHost shares a script host with the engine. The engine does not
// close a host it was given.
func WithScriptHost(h *jsengine.Host) Option {
	return func(opts *options) {
		opts.Host = h
	}
}
