package parse

import (
	"context"
	"strings"

	"github.com/wenzapen/bookrule/model"
	"github.com/wenzapen/bookrule/selector"
	"github.com/wenzapen/bookrule/urlutil"
	"go.uber.org/zap"
)

// BookIDKey is the variable some sources thread from the table of contents
// into chapter URLs.
const BookIDKey = "bookid"

// ChapterList reads one page of a table of contents fetched from pageURL.
// The second result is the next page to fetch, "" when there is none.
// Chapter indexes start at 0 on every page; callers renumber when they
// join pages.
func (p *Parser) ChapterList(ctx context.Context, body, pageURL string, book *model.Book, src *model.BookSource) ([]model.BookChapter, string, error) {
	r := src.RuleToc
	if r == nil || strings.TrimSpace(r.ChapterList) == "" {
		return nil, "", ErrRuleMissing
	}
	s := p.newScope(ctx, src, pageURL, body)
	s.book = book
	if book != nil {
		for k, v := range book.Variables {
			s.vars[k] = v
		}
	}
	bookID := p.rememberBookID(ctx, pageURL)

	root, err := s.rootFor(r.ChapterList)
	if err != nil {
		return nil, "", err
	}
	items, err := s.list(root, r.ChapterList)
	if err != nil {
		return nil, "", err
	}
	if bookID == "" {
		bookID = s.variable(BookIDKey)
	}

	bookURL := pageURL
	if book != nil && book.BookURL != "" {
		bookURL = book.BookURL
	}
	chapters := make([]model.BookChapter, 0, len(items))
	for _, it := range items {
		title := s.field(it, "chapterName", r.ChapterName)
		if r.ChapterName == "" && it.kind == kindHTML {
			title = selector.Text(it.sel)
		}
		var link string
		if r.ChapterURL == "" && it.kind == kindHTML {
			link = selector.Eval(it.sel, "@href")
		} else {
			link = s.field(it, "chapterUrl", r.ChapterURL)
		}
		link = ChapterURL(firstLine(link), pageURL, bookID)
		if title == "" || link == "" {
			continue
		}
		chapters = append(chapters, model.BookChapter{
			URL:        link,
			Title:      title,
			BookURL:    bookURL,
			Index:      len(chapters),
			IsVolume:   truthy(s.field(it, "isVolume", r.IsVolume)),
			IsVip:      truthy(s.field(it, "isVip", r.IsVip)),
			IsPay:      truthy(s.field(it, "isPay", r.IsPay)),
			UpdateTime: s.field(it, "updateTime", r.UpdateTime),
		})
	}

	var next string
	if r.NextTocURL != "" {
		next = nextPage(s.field(root, "nextTocUrl", r.NextTocURL), pageURL)
	}
	p.logger.Debug("parsed chapter list",
		zap.String("source", src.BookSourceURL),
		zap.String("url", pageURL),
		zap.Int("chapters", len(chapters)),
		zap.String("next", next))
	return chapters, next, nil
}

// ChapterURL makes a chapter link absolute, collapses duplicated path
// segments and repairs bookid=undefined with a known id.
func ChapterURL(link, base, bookID string) string {
	if link == "" {
		return ""
	}
	u := urlutil.FixDuplicateSegments(urlutil.Resolve(link, base))
	if bookID != "" && bookID != "undefined" && strings.Contains(u, BookIDKey+"=undefined") {
		u = urlutil.SetQuery(u, BookIDKey, bookID)
	}
	return u
}

// rememberBookID stores the bookid query parameter of a request URL in the
// script cache so chapter rules can read it with java.get.
func (p *Parser) rememberBookID(ctx context.Context, requestURL string) string {
	id := urlutil.Query(requestURL, BookIDKey)
	if id == "" || id == "undefined" {
		return ""
	}
	if p.host != nil {
		p.host.CacheFor(ctx).Put(BookIDKey, id)
	}
	return id
}

func nextPage(raw, current string) string {
	next := urlutil.Resolve(firstLine(raw), current)
	if next == current {
		return ""
	}
	return next
}
