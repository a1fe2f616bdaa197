package parse

import (
	"context"
	"strings"

	"github.com/wenzapen/bookrule/model"
	"github.com/wenzapen/bookrule/urlutil"
	"go.uber.org/zap"
)

// Search reads a search result page. Records without a name or a book URL
// are dropped.
func (p *Parser) Search(ctx context.Context, body, baseURL string, src *model.BookSource, keyword string) ([]model.SearchBook, error) {
	if src.RuleSearch == nil {
		return nil, ErrRuleMissing
	}
	return p.books(ctx, body, baseURL, src, src.RuleSearch, keyword)
}

// Explore reads a discovery page. Fields the explore rule leaves empty are
// taken from the search rule.
func (p *Parser) Explore(ctx context.Context, body, baseURL string, src *model.BookSource) ([]model.SearchBook, error) {
	if src.RuleExplore == nil && src.RuleSearch == nil {
		return nil, ErrRuleMissing
	}
	return p.books(ctx, body, baseURL, src, src.RuleExplore.Fallback(src.RuleSearch), "")
}

func (p *Parser) books(ctx context.Context, body, baseURL string, src *model.BookSource, lr model.ListRule, keyword string) ([]model.SearchBook, error) {
	listRule := lr.Field("bookList")
	if strings.TrimSpace(listRule) == "" {
		return nil, ErrRuleMissing
	}
	s := p.newScope(ctx, src, baseURL, body)
	s.key = keyword
	root, err := s.rootFor(listRule)
	if err != nil {
		return nil, err
	}
	items, err := s.list(root, listRule)
	if err != nil {
		return nil, err
	}

	books := make([]model.SearchBook, 0, len(items))
	for _, it := range items {
		b := model.SearchBook{
			Name:               s.field(it, "name", lr.Field("name")),
			Author:             s.field(it, "author", lr.Field("author")),
			Kind:               joinLines(s.field(it, "kind", lr.Field("kind")), ","),
			Intro:              s.field(it, "intro", lr.Field("intro")),
			LatestChapterTitle: s.field(it, "lastChapter", lr.Field("lastChapter")),
			WordCount:          s.field(it, "wordCount", lr.Field("wordCount")),
			BookSourceURL:      src.BookSourceURL,
			BookSourceName:     src.BookSourceName,
		}
		b.BookURL = urlutil.Resolve(s.field(it, "bookUrl", lr.Field("bookUrl")), baseURL)
		b.CoverURL = urlutil.Resolve(s.field(it, "coverUrl", lr.Field("coverUrl")), baseURL)
		if b.Name == "" || b.BookURL == "" {
			continue
		}
		books = append(books, b)
	}
	p.logger.Debug("parsed book list",
		zap.String("source", src.BookSourceURL),
		zap.Int("items", len(items)),
		zap.Int("books", len(books)))
	return books, nil
}

func joinLines(s, sep string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, sep)
}
