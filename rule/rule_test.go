package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		name string
		rule string
		want []Segment
	}{
		{
			name: "plain css",
			rule: "  .title@text ",
			want: []Segment{{Content: ".title@text", Mode: ModeDefault}},
		},
		{
			name: "json path then tag script",
			rule: "$.data.id<js>result + 1</js>",
			want: []Segment{
				{Content: "$.data.id", Mode: ModeJSON},
				{Content: "result + 1", Mode: ModeJS},
			},
		},
		{
			name: "at-js runs to end",
			rule: "//div[@class='x']/text()\n@js:result.trim()",
			want: []Segment{
				{Content: "//div[@class='x']/text()", Mode: ModeXPath},
				{Content: "result.trim()", Mode: ModeJS},
			},
		},
		{
			name: "case insensitive tags",
			rule: "<JS>a</Js>.x@text",
			want: []Segment{
				{Content: "a", Mode: ModeJS},
				{Content: ".x@text", Mode: ModeDefault},
			},
		},
		{
			name: "at-js stops at next tag",
			rule: "@js:a<js>b</js>",
			want: []Segment{
				{Content: "a", Mode: ModeJS},
				{Content: "b", Mode: ModeJS},
			},
		},
		{
			name: "regex prefix",
			rule: ":href=\"([^\"]+)\"",
			want: []Segment{{Content: ":href=\"([^\"]+)\"", Mode: ModeRegex}},
		},
		{
			name: "unclosed tag is text",
			rule: "<js>abc",
			want: []Segment{{Content: "<js>abc", Mode: ModeDefault}},
		},
		{
			name: "empty rule",
			rule: "   ",
			want: nil,
		},
		{
			name: "empty script dropped",
			rule: "<js> </js>",
			want: nil,
		},
		{
			name: "empty script between text",
			rule: ".a@text<js>\n</js>##x",
			want: []Segment{
				{Content: ".a@text", Mode: ModeDefault},
				{Content: "##x", Mode: ModeDefault},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Split(tc.rule))
		})
	}
}

func TestInferModeAndCleanPrefix(t *testing.T) {
	assert.Equal(t, ModeXPath, InferMode("@XPath://a"))
	assert.Equal(t, ModeJSON, InferMode("@Json:$.a"))
	assert.Equal(t, ModeJSON, InferMode("$[0].a"))
	assert.Equal(t, ModeDefault, InferMode("@css:.a"))

	assert.Equal(t, "//a", CleanPrefix("@XPath://a", ModeXPath))
	assert.Equal(t, "$.a", CleanPrefix("@Json:$.a", ModeJSON))
	assert.Equal(t, "a(b)", CleanPrefix(":a(b)", ModeRegex))
	assert.Equal(t, ".a@text", CleanPrefix("@css:.a@text", ModeDefault))
	assert.Equal(t, ".a", CleanPrefix("@@.a", ModeDefault))
}

func TestConnector(t *testing.T) {
	assert.Equal(t, ConnectorAnd, DetectConnector("a&&b||c"))
	assert.Equal(t, ConnectorOr, DetectConnector("a || b"))
	assert.Equal(t, ConnectorMod, DetectConnector("a%%b"))
	assert.Equal(t, ConnectorNone, DetectConnector("a"))

	assert.Equal(t, []string{"a", "b", "c"}, SplitByConnector(" a && b&&c ", ConnectorAnd))

	lists := [][]string{{"a1", "a2", "a3"}, {"b1"}, {"c1", "c2"}}
	assert.Equal(t, []string{"a1", "a2", "a3", "b1", "c1", "c2"}, Merge(lists, ConnectorAnd))
	assert.Equal(t, []string{"a1", "b1", "c1", "a2", "c2", "a3"}, Merge(lists, ConnectorMod))
	assert.Equal(t, []string{"b1"}, Merge([][]string{nil, {"b1"}, {"c1"}}, ConnectorOr))
	assert.Empty(t, Merge([][]string{nil, {}}, ConnectorOr))
}

func TestAllInOne(t *testing.T) {
	content := `<a href="/c/1">One</a>
<a href="/c/2">Two</a>`
	recs, err := ParseAllInOne(`:href="([^"]+)">([^<]*)</a>`, content)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]string{"$1": "/c/1", "$2": "One"}, recs[0])
	assert.Equal(t, "Two", recs[1]["$2"])

	_, err = ParseAllInOne(":(", content)
	assert.Error(t, err)

	assert.Equal(t, "/c/1 - One", Substitute("$1 - $2", recs[0]))
}

func TestCleaning(t *testing.T) {
	base, rules := SplitClean(".title@text##第|章##x##\\s+")
	assert.Equal(t, ".title@text", base)
	assert.Equal(t, []CleanRule{{Pattern: "第|章", Replacement: "x"}, {Pattern: "\\s+"}}, rules)

	assert.Equal(t, "x1x Hello", Clean("第1章 Hello", rules[:1]))
	assert.Equal(t, "ab", Clean("a\n b", []CleanRule{{Pattern: "\\s+"}}))
	assert.Equal(t, "keep", Clean("keep", []CleanRule{{Pattern: "("}}))
	assert.Equal(t, "v2x", Clean("v1x", []CleanRule{{Pattern: "v(\\d)", Replacement: "v${1}"}, {Pattern: "1", Replacement: "2"}}))
	assert.Equal(t, "[1]a", Clean("1a", []CleanRule{{Pattern: "(\\d)", Replacement: "[$1]"}}))

	base, rules = SplitClean("plain")
	assert.Equal(t, "plain", base)
	assert.Nil(t, rules)
}

func TestOnlyOne(t *testing.T) {
	assert.True(t, IsOnlyOne("##id=(\\d+)##$1###"))
	assert.False(t, IsOnlyOne("a##b"))

	v, err := ParseOnlyOne("##id=(\\d+)##$1###", "x id=12 y id=34")
	require.NoError(t, err)
	assert.Equal(t, "12", v)

	v, err = ParseOnlyOne("##id=\\d+###", "x id=12 y id=34")
	require.NoError(t, err)
	assert.Equal(t, "id=12", v)

	v, err = ParseOnlyOne("##nothing###", "abc")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestReplaceLinesAndFirstGroup(t *testing.T) {
	out := ReplaceLines("广告 正文 www.site.com", "##广告\\s*\n##www\\.\\w+\\.com##[site]")
	assert.Equal(t, "正文 [site]", out)

	g, err := FirstGroup(`id=(\d+)`, "a id=7")
	require.NoError(t, err)
	assert.Equal(t, "7", g)
	g, err = FirstGroup(`\d+`, "a 42")
	require.NoError(t, err)
	assert.Equal(t, "42", g)
}

func TestLookaroundAndBackreference(t *testing.T) {
	assert.Equal(t, "abc", Clean("abc123", []CleanRule{{Pattern: `(?<=abc)\d+`}}))
	assert.Equal(t, "price: 9", Clean("price: 9 USD", []CleanRule{{Pattern: `\s*(?=USD)USD`}}))
	assert.Equal(t, "HelloWorld", Clean("Hello<script>bad</script>World", []CleanRule{{Pattern: `<script>.*?</script>`}}))
	assert.Equal(t, "one\ntwo", Clean("one\n\ntwo", []CleanRule{{Pattern: `(\n)\1`, Replacement: "$1"}}))

	v, err := ParseOnlyOne(`##(\w)\1###`, "xaab")
	require.NoError(t, err)
	assert.Equal(t, "aa", v)

	v, err = ParseOnlyOne(`##(?<!x)id=(\d+)##n${1}###`, "xid=1 id=2")
	require.NoError(t, err)
	assert.Equal(t, "n2", v)

	g, err := FirstGroup(`(?<=<b>)([^<]+)(?=</b>)`, "<i>no</i><b>yes</b>")
	require.NoError(t, err)
	assert.Equal(t, "yes", g)

	recs, err := ParseAllInOne(`:<(h\d)>([^<]+)</\1>`, "<h1>A</h1><h2>B</h3><h3>C</h3>")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0]["$2"])
	assert.Equal(t, "C", recs[1]["$2"])
}

func TestParseRequestURL(t *testing.T) {
	u, opts := ParseRequestURL(`/search?q={{key}}, {"method":"post","body":"kw={{key}}","headers":{"X-A":1},"charset":"gbk"}`)
	assert.Equal(t, "/search?q={{key}}", u)
	require.NotNil(t, opts)
	assert.Equal(t, "POST", opts.Method)
	assert.Equal(t, "kw={{key}}", opts.Body)
	assert.Equal(t, map[string]string{"X-A": "1"}, opts.Headers)
	assert.Equal(t, "gbk", opts.Charset)

	u, opts = ParseRequestURL("/search?q={{key}}")
	assert.Equal(t, "/search?q={{key}}", u)
	assert.Nil(t, opts)

	u, opts = ParseRequestURL("/a,{not json")
	assert.Equal(t, "/a,{not json", u)
	assert.Nil(t, opts)
}

func TestEvaluateExpressions(t *testing.T) {
	assert.Equal(t, "/s?start=20", EvaluateExpressions("/s?start={{(page-1)*10}}", 3))
	assert.Equal(t, "/s?p=2", EvaluateExpressions("/s?p={{page}}", 2))
	assert.Equal(t, "/s?p=2", EvaluateExpressions("/s?p={page}", 2))
	assert.Equal(t, "/s?k={{key}}", EvaluateExpressions(`/s?k={{key;java.put("k",key)}}`, 1))
	assert.Equal(t, "/s?k={{key}}", EvaluateExpressions("/s?k={{key}}", 1))
	assert.Equal(t, "/s?n=20", EvaluateExpressions("/s?n={{source.get('n')||20}}", 1))
	assert.Equal(t, "/s?x=", EvaluateExpressions("/s?x={{java.time()}}", 1))
	assert.Equal(t, "/s?x=", EvaluateExpressions("/s?x={{page/0}}", 1))
}

func TestExpandURL(t *testing.T) {
	assert.Equal(t, "/s?q=a%20b&p=1", ExpandURL("/s?q={{key}}&p={{page}}", 1, "a b", ""))
	assert.Equal(t, "/s?q=%E4%B8%AD", ExpandURL("/s?q={key}", 1, "中", "utf-8"))
	assert.Equal(t, "/s?q=%D6%D0", ExpandURL("/s?q={key}", 1, "中", "gbk"))
	assert.Equal(t, "kw=a b", ExpandBody("kw={{key}}", 1, "a b"))
}
