package parse

import (
	"context"
	"maps"
	"strings"

	"github.com/wenzapen/bookrule/model"
	"github.com/wenzapen/bookrule/urlutil"
)

// BookInfo reads a book's detail page. The init rule either stores
// variables (@put:{...}) or narrows the page to the element or JSON object
// the other fields are read from. tocUrl defaults to the book URL.
func (p *Parser) BookInfo(ctx context.Context, body, bookURL string, src *model.BookSource) (*model.Book, error) {
	r := src.RuleBookInfo
	if r == nil {
		return nil, ErrRuleMissing
	}
	s := p.newScope(ctx, src, bookURL, body)
	root, err := s.rootFor(r.Init)
	if err != nil {
		return nil, err
	}

	if init := strings.TrimSpace(r.Init); init != "" {
		if hasPrefixFold(init, "@put:") {
			s.put(root, init)
		} else if items, err := s.list(root, init); err == nil && len(items) > 0 {
			root = items[0]
		}
	}

	book := &model.Book{
		BookURL:    bookURL,
		Origin:     src.BookSourceURL,
		OriginName: src.BookSourceName,
		Name:       s.field(root, "name", r.Name),
		Author:     s.field(root, "author", r.Author),
		Kind:       joinLines(s.field(root, "kind", r.Kind), ","),
		Intro:      s.field(root, "intro", r.Intro),
		WordCount:  s.field(root, "wordCount", r.WordCount),
		UpdateTime: s.field(root, "updateTime", r.UpdateTime),
		CoverURL:   urlutil.Resolve(s.field(root, "coverUrl", r.CoverURL), bookURL),
		TocURL:     urlutil.Resolve(s.field(root, "tocUrl", r.TocURL), bookURL),
		Variables:  maps.Clone(s.vars),
	}
	book.LatestChapterTitle = s.field(root, "lastChapter", r.LastChapter)
	if book.TocURL == "" {
		book.TocURL = bookURL
	}
	if len(book.Variables) == 0 {
		book.Variables = nil
	}
	return book, nil
}
