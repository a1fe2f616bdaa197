package jsengine

import (
	"github.com/wenzapen/bookrule/collect"
	"go.uber.org/zap"
)

type Option func(opts *options)

type options struct {
	logger      *zap.Logger
	fetcher     collect.Fetcher
	cache       Cache
	ajaxWorkers int
}

var defaultOptions = options{
	logger:      zap.NewNop(),
	ajaxWorkers: 4,
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithFetcher gives scripts network access through java.ajax and friends.
func WithFetcher(f collect.Fetcher) Option {
	return func(opts *options) {
		opts.fetcher = f
	}
}

// WithCache replaces the cache used when a call carries none in its context.
func WithCache(c Cache) Option {
	return func(opts *options) {
		opts.cache = c
	}
}

// WithAjaxWorkers bounds the parallel requests of one java.ajaxAll call.
func WithAjaxWorkers(n int) Option {
	return func(opts *options) {
		opts.ajaxWorkers = n
	}
}
