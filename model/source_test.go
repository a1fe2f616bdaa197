package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookSourceTolerantDecode(t *testing.T) {
	data := []byte(`{
		"bookSourceUrl": "https://www.example.com",
		"bookSourceName": "example",
		"lastUpdateTime": "1700000000000",
		"respondTime": 2500,
		"ruleExplore": [],
		"ruleSearch": {"bookList": ".item", "name": "h3@text", "bookUrl": "a@href"},
		"ruleBookInfo": "broken",
		"ruleToc": {"chapterList": "#list a"}
	}`)
	list, err := ParseBookSources(data)
	require.NoError(t, err)
	require.Len(t, list, 1)

	s := list[0]
	assert.Equal(t, "https://www.example.com", s.BookSourceURL)
	assert.Equal(t, FlexInt(1700000000000), s.LastUpdateTime)
	assert.Equal(t, FlexInt(2500), s.RespondTime)
	assert.True(t, s.Enabled)
	assert.Nil(t, s.RuleExplore)
	assert.Nil(t, s.RuleBookInfo)
	require.NotNil(t, s.RuleSearch)
	assert.Equal(t, ".item", s.RuleSearch.BookList)
	assert.Equal(t, "h3@text", s.RuleSearch.Field("name"))
	assert.Equal(t, "", s.RuleSearch.Field("missing"))
	require.NotNil(t, s.RuleToc)
	assert.Equal(t, "#list a", s.RuleToc.ChapterList)
}

func TestBookSourceDefaults(t *testing.T) {
	list, err := ParseBookSources([]byte(`[{"bookSourceUrl":"a","enabled":false}]`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Enabled)
	assert.Equal(t, FlexInt(DefaultRespondTime), list[0].RespondTime)
}

func TestExploreFallback(t *testing.T) {
	explore := &ExploreRule{Name: ".title"}
	search := &SearchRule{Name: ".name", Author: ".author"}
	r := explore.Fallback(search)
	assert.Equal(t, ".title", r.Field("name"))
	assert.Equal(t, ".author", r.Field("author"))

	var none *ExploreRule
	assert.Equal(t, ".author", none.Fallback(search).Field("author"))
	assert.Equal(t, "", none.Fallback(nil).Field("author"))
}
