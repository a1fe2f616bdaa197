package parse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wenzapen/bookrule/jsengine"
	"github.com/wenzapen/bookrule/model"
)

func newParser(t *testing.T) *Parser {
	t.Helper()
	h := jsengine.New()
	t.Cleanup(h.Close)
	return New(h)
}

const searchPage = `<html><body>
<div class="book-item">
  <a class="title" href="/book/1.html">First Book</a>
  <span class="author">Alice</span>
  <img src="/cover/1.jpg">
  <span class="kind">Fantasy</span><span class="kind">Ongoing</span>
</div>
<div class="book-item">
  <a class="title" href="https://other.com/book/2.html">Second Book</a>
  <span class="author">Bob</span>
</div>
<div class="book-item">
  <span class="author">No title</span>
</div>
</body></html>`

func TestSearchHTML(t *testing.T) {
	p := newParser(t)
	src := &model.BookSource{
		BookSourceURL:  "https://h.com",
		BookSourceName: "H",
		RuleSearch: &model.SearchRule{
			BookList: ".book-item",
			Name:     ".title@text",
			Author:   ".author@text",
			BookURL:  ".title@href",
			CoverURL: "img@src",
			Kind:     ".kind.0@text&&.kind.1@text",
		},
	}
	books, err := p.Search(context.Background(), searchPage, "https://h.com/search?q=x", src, "x")
	require.NoError(t, err)
	require.Len(t, books, 2)

	assert.Equal(t, "First Book", books[0].Name)
	assert.Equal(t, "Alice", books[0].Author)
	assert.Equal(t, "https://h.com/book/1.html", books[0].BookURL)
	assert.Equal(t, "https://h.com/cover/1.jpg", books[0].CoverURL)
	assert.Equal(t, "Fantasy,Ongoing", books[0].Kind)
	assert.Equal(t, "https://h.com", books[0].BookSourceURL)
	assert.Equal(t, "H", books[0].BookSourceName)

	assert.Equal(t, "https://other.com/book/2.html", books[1].BookURL)
	assert.Empty(t, books[1].CoverURL)
}

func TestSearchRuleMissing(t *testing.T) {
	p := newParser(t)
	_, err := p.Search(context.Background(), searchPage, "https://h.com", &model.BookSource{}, "x")
	assert.ErrorIs(t, err, ErrRuleMissing)

	src := &model.BookSource{RuleSearch: &model.SearchRule{Name: "a@text"}}
	_, err = p.Search(context.Background(), searchPage, "https://h.com", src, "x")
	assert.ErrorIs(t, err, ErrRuleMissing)
}

func TestSearchParentChildAndReverse(t *testing.T) {
	p := newParser(t)
	page := `<ul id="list"><li><a href="/a">A</a></li><li><a href="/b">B</a></li></ul>`
	src := &model.BookSource{RuleSearch: &model.SearchRule{
		BookList: "-#list@li",
		Name:     "a@text",
		BookURL:  "a@href",
	}}
	books, err := p.Search(context.Background(), page, "https://h.com/", src, "")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "B", books[0].Name)
	assert.Equal(t, "https://h.com/a", books[1].BookURL)
}

func TestSearchJSON(t *testing.T) {
	p := newParser(t)
	body := `{"data":[
		{"title":"Alpha","writer":"A","bid":7,"tags":"x","serial":true},
		{"title":"Beta","writer":"B","bid":8,"tags":"y","serial":false}
	]}`
	src := &model.BookSource{
		BookSourceURL: "https://api.h.com",
		RuleSearch: &model.SearchRule{
			BookList: "$.data",
			Name:     "title",
			Author:   "$.writer",
			BookURL:  "/book?id={{$.bid}}",
			Kind:     "{{$.tags}},{{$.serial}}",
		},
	}
	books, err := p.Search(context.Background(), body, "https://api.h.com/search", src, "")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Alpha", books[0].Name)
	assert.Equal(t, "A", books[0].Author)
	assert.Equal(t, "https://api.h.com/book?id=7", books[0].BookURL)
	assert.Equal(t, "x,1", books[0].Kind)
	assert.Equal(t, "y,0", books[1].Kind)
}

func TestSearchMalformedJSON(t *testing.T) {
	p := newParser(t)
	src := &model.BookSource{RuleSearch: &model.SearchRule{BookList: "$.data", Name: "n", BookURL: "u"}}
	_, err := p.Search(context.Background(), `{"data":[`, "https://h.com", src, "")
	assert.ErrorIs(t, err, ErrParse)
}

func TestSearchScriptList(t *testing.T) {
	p := newParser(t)
	body := `{"items":[{"n":"One","id":1},{"n":"Two","id":2},{"n":"Three","id":3}]}`
	src := &model.BookSource{RuleSearch: &model.SearchRule{
		BookList: "$.items[:2]<js>result.map(function(b){ return {name: b.n + ' ' + key, url: '/b/' + b.id} })</js>",
		Name:     "name",
		BookURL:  "url",
	}}
	books, err := p.Search(context.Background(), body, "https://h.com/s", src, "kw")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "One kw", books[0].Name)
	assert.Equal(t, "https://h.com/b/2", books[1].BookURL)
}

func TestSearchAllInOne(t *testing.T) {
	p := newParser(t)
	body := `<a href="/1">One</a><a href="/2">Two</a>`
	src := &model.BookSource{RuleSearch: &model.SearchRule{
		BookList: `:<a href="([^"]+)">([^<]+)</a>`,
		Name:     "$2",
		BookURL:  "$1",
	}}
	books, err := p.Search(context.Background(), body, "https://h.com/", src, "")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Two", books[1].Name)
	assert.Equal(t, "https://h.com/2", books[1].BookURL)
}

func TestExploreFallsBackToSearchRule(t *testing.T) {
	p := newParser(t)
	src := &model.BookSource{
		RuleSearch:  &model.SearchRule{Name: ".title@text", BookURL: ".title@href"},
		RuleExplore: &model.ExploreRule{BookList: ".book-item"},
	}
	books, err := p.Explore(context.Background(), searchPage, "https://h.com/", src)
	require.NoError(t, err)
	assert.Len(t, books, 2)
}

func TestFieldCleaningAndOnlyOne(t *testing.T) {
	p := newParser(t)
	src := &model.BookSource{RuleSearch: &model.SearchRule{
		BookList: ".b",
		Name:     ".t@text##\\[.*?\\]",
		Author:   "##by (\\w+)##$1###",
		BookURL:  ".t@href##\\.html$##.htm",
	}}
	page := `<div class="b"><a class="t" href="/x.html">Title [ad]</a> by Carol and by Dave</div>`
	books, err := p.Search(context.Background(), page, "https://h.com/", src, "")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Title", books[0].Name)
	assert.Equal(t, "Carol", books[0].Author)
	assert.Equal(t, "https://h.com/x.htm", books[0].BookURL)
}

func TestFieldScriptFailureIsNotFatal(t *testing.T) {
	p := newParser(t)
	src := &model.BookSource{RuleSearch: &model.SearchRule{
		BookList: ".book-item",
		Name:     ".title@text",
		Author:   "<js>throw new Error('boom')</js>",
		BookURL:  ".title@href",
	}}
	books, err := p.Search(context.Background(), searchPage, "https://h.com/", src, "")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Empty(t, books[0].Author)
}

func TestBookInfoPutGet(t *testing.T) {
	p := newParser(t)
	page := `<html><body>
<h1>The Book</h1><p class="author">Writer</p>
<div id="intro">Line one</div>
<img class="cover" src="/c.jpg">
<a class="toc" href="list.html">Contents</a>
</body></html>`
	src := &model.BookSource{RuleBookInfo: &model.BookInfoRule{
		Init:     `@put:{title:"h1@text", who:".author@text"}`,
		Name:     "@get:{title}",
		Author:   "<js>java.get('who') + '!'</js>",
		Intro:    "#intro@text",
		CoverURL: ".cover@src",
		TocURL:   ".toc@href",
	}}
	ctx := jsengine.ContextWithCache(context.Background(), jsengine.NewMemoryCache(time.Minute))
	book, err := p.BookInfo(ctx, page, "https://h.com/book/1/", src)
	require.NoError(t, err)
	assert.Equal(t, "The Book", book.Name)
	assert.Equal(t, "Writer!", book.Author)
	assert.Equal(t, "Line one", book.Intro)
	assert.Equal(t, "https://h.com/c.jpg", book.CoverURL)
	assert.Equal(t, "https://h.com/book/1/list.html", book.TocURL)
	assert.Equal(t, map[string]string{"title": "The Book", "who": "Writer"}, book.Variables)
}

func TestPutRefusesHostGlobals(t *testing.T) {
	h := jsengine.New()
	t.Cleanup(h.Close)
	p := New(h)
	src := &model.BookSource{RuleBookInfo: &model.BookInfoRule{
		Init:   `@put:{java:"h1@text", title:"h1@text"}`,
		Name:   "<js>java.get('title')</js>",
		Author: "@get:{java}",
	}}
	ctx := jsengine.ContextWithCache(context.Background(), jsengine.NewMemoryCache(time.Minute))
	book, err := p.BookInfo(ctx, "<html><body><h1>T</h1></body></html>", "https://h.com/b/1", src)
	require.NoError(t, err)
	assert.Equal(t, "T", book.Name)
	assert.Equal(t, "", book.Author)
	assert.Equal(t, map[string]string{"title": "T"}, book.Variables)

	s, err := h.EvalString(context.Background(), "java.put('k', 'v')", jsengine.Env{})
	require.NoError(t, err)
	assert.Equal(t, "v", s)
}

func TestBlankScriptFieldSelectsNothing(t *testing.T) {
	p := newParser(t)
	src := &model.BookSource{RuleBookInfo: &model.BookInfoRule{
		Name:  "h1@text",
		Intro: "<js> </js>",
	}}
	book, err := p.BookInfo(context.Background(), "<html><body><h1>T</h1><p>body</p></body></html>", "https://h.com/b/1", src)
	require.NoError(t, err)
	assert.Equal(t, "T", book.Name)
	assert.Equal(t, "", book.Intro)
}

func TestBookInfoJSONInit(t *testing.T) {
	p := newParser(t)
	body := `{"code":0,"data":{"name":"N","author":"A","bookid":42}}`
	src := &model.BookSource{RuleBookInfo: &model.BookInfoRule{
		Init:   "$.data",
		Name:   "name",
		Author: "author",
		TocURL: "$.bookid<js>java.put('bookid', result);\n'/catalog?bookid=' + result</js>",
	}}
	ctx := jsengine.ContextWithCache(context.Background(), jsengine.NewMemoryCache(time.Minute))
	book, err := p.BookInfo(ctx, body, "https://h.com/info?id=42", src)
	require.NoError(t, err)
	assert.Equal(t, "N", book.Name)
	assert.Equal(t, "https://h.com/catalog?bookid=42", book.TocURL)

	v, ok := p.host.CacheFor(ctx).Get("bookid")
	require.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestBookInfoDefaultsTocURL(t *testing.T) {
	p := newParser(t)
	src := &model.BookSource{RuleBookInfo: &model.BookInfoRule{Name: "h1"}}
	book, err := p.BookInfo(context.Background(), "<h1>X</h1>", "https://h.com/b", src)
	require.NoError(t, err)
	assert.Equal(t, "X", book.Name)
	assert.Equal(t, "https://h.com/b", book.TocURL)
}

func TestChapterListHTML(t *testing.T) {
	p := newParser(t)
	page := `<html><body><div id="list">
<dd><a href="/x/1//x/1/1.html">Chapter 1</a></dd>
<dd class="vol"><a href="2.html">Volume</a></dd>
<dd><a href="">Empty</a></dd>
</div>
<a id="next" href="/toc?p=2">next</a>
</body></html>`
	src := &model.BookSource{RuleToc: &model.TocRule{
		ChapterList: "#list@dd",
		ChapterName: "a@text",
		ChapterURL:  "a@href",
		IsVolume:    "<js>result.indexOf('vol') >= 0</js>",
		NextTocURL:  "#next@href",
	}}
	book := &model.Book{BookURL: "https://h.com/x/1/"}
	chapters, next, err := p.ChapterList(context.Background(), page, "https://h.com/x/1/", book, src)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "https://h.com/x/1/1.html", chapters[0].URL)
	assert.Equal(t, "Chapter 1", chapters[0].Title)
	assert.Equal(t, 0, chapters[0].Index)
	assert.False(t, chapters[0].IsVolume)
	assert.True(t, chapters[1].IsVolume)
	assert.Equal(t, 1, chapters[1].Index)
	assert.Equal(t, "https://h.com/x/1/", chapters[1].BookURL)
	assert.Equal(t, "https://h.com/toc?p=2", next)
}

func TestChapterListBookIDThreading(t *testing.T) {
	p := newParser(t)
	ctx := jsengine.ContextWithCache(context.Background(), jsengine.NewMemoryCache(time.Minute))
	body := `{"data":[{"title":"C1","itemid":11},{"title":"C2","itemid":12}]}`
	src := &model.BookSource{RuleToc: &model.TocRule{
		ChapterList: "$.data",
		ChapterName: "$.title",
		ChapterURL:  "$.itemid\n<js>\nlet bookid = java.get('bookid');\n'/content?bookid=' + bookid + '&itemid=' + result\n</js>",
	}}
	book := &model.Book{BookURL: "https://h.com/info?id=89023", TocURL: "https://h.com/catalog?bookid=89023"}
	chapters, next, err := p.ChapterList(ctx, body, book.TocURL, book, src)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "https://h.com/content?bookid=89023&itemid=12", chapters[1].URL)
	assert.Empty(t, next)
}

func TestChapterURLRepairsUndefinedBookID(t *testing.T) {
	got := ChapterURL("/content?bookid=undefined&itemid=5", "https://h.com/catalog", "77")
	assert.Equal(t, "https://h.com/content?bookid=77&itemid=5", got)
	assert.Equal(t, "", ChapterURL("", "https://h.com", "1"))
}

func TestContentParagraphs(t *testing.T) {
	p := newParser(t)
	page := `<html><body><div id="content"><p>First  line.</p><p></p><p>Second line.</p></div>
<a id="next" href="2_2.html">next</a></body></html>`
	src := &model.BookSource{RuleContent: &model.ContentRule{
		Content:        "#content@html",
		NextContentURL: "#next@href",
		ReplaceRegex:   "##Second##2nd",
	}}
	text, next, err := p.Content(context.Background(), page, "https://h.com/b/2.html", &model.BookChapter{}, src)
	require.NoError(t, err)
	assert.Equal(t, "First line.\n\n2nd line.", text)
	assert.Equal(t, "https://h.com/b/2_2.html", next)
}

func TestContentLineBreaks(t *testing.T) {
	p := newParser(t)
	page := `<div id="c">one<br>two<BR/>three<br />four</div>`
	src := &model.BookSource{RuleContent: &model.ContentRule{Content: "#c@html"}}
	text, _, err := p.Content(context.Background(), page, "https://h.com/1", nil, src)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\nfour", text)
}

func TestContentJSON(t *testing.T) {
	p := newParser(t)
	src := &model.BookSource{RuleContent: &model.ContentRule{Content: "$.data.content"}}

	text, _, err := p.Content(context.Background(), `{"data":{"content":"chapter text"}}`, "https://h.com/c", nil, src)
	require.NoError(t, err)
	assert.Equal(t, "chapter text", text)

	_, _, err = p.Content(context.Background(), `{"msg":"gone"}`, "https://h.com/c", nil, src)
	assert.ErrorIs(t, err, ErrParse)

	text, _, err = p.Content(context.Background(), `{"content":"fallback"}`, "https://h.com/c", nil, src)
	require.NoError(t, err)
	assert.Equal(t, "fallback", text)
}

func TestContentScriptErrorIsFatal(t *testing.T) {
	p := newParser(t)
	src := &model.BookSource{RuleContent: &model.ContentRule{Content: "@js:undefinedFn()"}}
	_, _, err := p.Content(context.Background(), "<p>x</p>", "https://h.com/c", nil, src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jsengine.ErrScript))
}

func TestContentRuleMissing(t *testing.T) {
	p := newParser(t)
	_, _, err := p.Content(context.Background(), "<p>x</p>", "https://h.com/c", nil, &model.BookSource{})
	assert.ErrorIs(t, err, ErrRuleMissing)
}

func TestParsePut(t *testing.T) {
	got := parsePut(`{a:"h1@text", 'b': "x,y", c: $.id}`)
	assert.Equal(t, [][2]string{{"a", "h1@text"}, {"b", "x,y"}, {"c", "$.id"}}, got)
}

func TestTruthy(t *testing.T) {
	for _, s := range []string{"true", "1", "VIP"} {
		assert.True(t, truthy(s), s)
	}
	for _, s := range []string{"", "false", "0", "null", " False "} {
		assert.False(t, truthy(s), s)
	}
}
