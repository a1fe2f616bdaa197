package engine

import (
	"context"
	"fmt"

	"github.com/wenzapen/bookrule/model"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type result struct {
	task  *Task
	books []model.SearchBook
	err   error
}

// SearchAll searches every source with WorkCount workers. Books come back in
// source order. Sources that fail are skipped and their errors combined; the
// books of the other sources are still returned.
func (e *Engine) SearchAll(ctx context.Context, keyword string, sources []*model.BookSource) ([]model.SearchBook, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := NewSchedule()
	go s.Schedule(ctx)
	tasks := make([]*Task, len(sources))
	for i, src := range sources {
		tasks[i] = &Task{Index: i, Source: src, Keyword: keyword}
	}
	go s.Push(ctx, tasks...)

	out := make(chan *result)
	workers := min(max(e.WorkCount, 1), len(sources))
	for i := 0; i < workers; i++ {
		go e.createWorker(ctx, s, out)
	}

	results := make([]*result, len(sources))
	var errs error
	for range sources {
		select {
		case r := <-out:
			results[r.task.Index] = r
		case <-ctx.Done():
			errs = multierr.Append(errs, ctx.Err())
			return flatten(results), errs
		}
	}
	for _, r := range results {
		if r.err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", r.task.Source.BookSourceName, r.err))
		}
	}
	return flatten(results), errs
}

func (e *Engine) createWorker(ctx context.Context, s Scheduler, out chan<- *result) {
	for {
		t, ok := s.Pull(ctx)
		if !ok {
			return
		}
		books, err := e.Search(ctx, t.Keyword, t.Source)
		if err != nil {
			e.Logger.Warn("search failed",
				zap.String("source", t.Source.BookSourceURL),
				zap.Error(err))
		} else {
			e.Logger.Debug("search done",
				zap.String("source", t.Source.BookSourceURL),
				zap.Int("books", len(books)))
		}
		select {
		case out <- &result{task: t, books: books, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

func flatten(results []*result) []model.SearchBook {
	var books []model.SearchBook
	for _, r := range results {
		if r != nil {
			books = append(books, r.books...)
		}
	}
	return books
}
