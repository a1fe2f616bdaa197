package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		u, base, want string
	}{
		{"https://a.com/x", "https://b.com", "https://a.com/x"},
		{"/book/1", "https://www.site.com:8080/search?q=1", "https://www.site.com:8080/book/1"},
		{"ch2.html", "https://www.site.com/book/1/ch1.html", "https://www.site.com/book/1/ch2.html"},
		{"../2/", "https://www.site.com/book/1/", "https://www.site.com/book/2/"},
		{"//cdn.site.com/c.jpg", "https://www.site.com/", "https://cdn.site.com/c.jpg"},
		{"?page=2", "https://www.site.com/list?page=1", "https://www.site.com/list?page=2"},
		{" /a ", " https://s.com ", "https://s.com/a"},
		{"a.html", "not a url", "a.html"},
		{"a.html", "%zz", "a.html"},
		{"", "https://s.com", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Resolve(tc.u, tc.base), "%s against %s", tc.u, tc.base)
	}
}

func TestFixDuplicateSegments(t *testing.T) {
	assert.Equal(t, "https://s.com/x/1/y.html", FixDuplicateSegments("https://s.com/x/1//x/1/y.html"))
	assert.Equal(t, "https://s.com/book/x/1/y.html?a=1", FixDuplicateSegments("https://s.com/book/x/1//x/1/y.html?a=1"))
	assert.Equal(t, "https://s.com/a/b/c", FixDuplicateSegments("https://s.com/a//b/c"))
	assert.Equal(t, "https://s.com/a/b", FixDuplicateSegments("https://s.com/a/b"))
	assert.Equal(t, "https://s.com", FixDuplicateSegments("https://s.com"))
	assert.Equal(t, "/x/y.html", FixDuplicateSegments("/x//x/y.html"))
}

func TestQuery(t *testing.T) {
	assert.Equal(t, "42", Query("https://s.com/toc?bookid=42", "bookid"))
	assert.Equal(t, "", Query("https://s.com/toc", "bookid"))
	assert.Equal(t, "https://s.com/c?bookid=42&itemid=7", SetQuery("https://s.com/c?bookid=undefined&itemid=7", "bookid", "42"))
}
