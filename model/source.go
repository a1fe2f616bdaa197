package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// DefaultRespondTime is used when a source does not record how fast it answered.
const DefaultRespondTime = 180000

// BookSource is the per-website ruleset. It is never mutated while a response is parsed.
type BookSource struct {
	BookSourceURL     string  `json:"bookSourceUrl"`
	BookSourceName    string  `json:"bookSourceName"`
	BookSourceGroup   string  `json:"bookSourceGroup,omitempty"`
	BookSourceType    int     `json:"bookSourceType"`
	BookURLPattern    string  `json:"bookUrlPattern,omitempty"`
	CustomOrder       int     `json:"customOrder"`
	Enabled           bool    `json:"enabled"`
	EnabledExplore    bool    `json:"enabledExplore"`
	EnabledCookieJar  bool    `json:"enabledCookieJar,omitempty"`
	Header            string  `json:"header,omitempty"`
	LoginURL          string  `json:"loginUrl,omitempty"`
	LoginUI           string  `json:"loginUi,omitempty"`
	LoginCheckJS      string  `json:"loginCheckJs,omitempty"`
	CoverDecodeJS     string  `json:"coverDecodeJs,omitempty"`
	ConcurrentRate    string  `json:"concurrentRate,omitempty"`
	JSLib             string  `json:"jsLib,omitempty"`
	BookSourceComment string  `json:"bookSourceComment,omitempty"`
	VariableComment   string  `json:"variableComment,omitempty"`
	LastUpdateTime    FlexInt `json:"lastUpdateTime"`
	RespondTime       FlexInt `json:"respondTime"`
	Weight            int     `json:"weight"`
	ExploreURL        string  `json:"exploreUrl,omitempty"`
	ExploreScreen     string  `json:"exploreScreen,omitempty"`
	SearchURL         string  `json:"searchUrl,omitempty"`

	RuleExplore  *ExploreRule  `json:"ruleExplore,omitempty"`
	RuleSearch   *SearchRule   `json:"ruleSearch,omitempty"`
	RuleBookInfo *BookInfoRule `json:"ruleBookInfo,omitempty"`
	RuleToc      *TocRule      `json:"ruleToc,omitempty"`
	RuleContent  *ContentRule  `json:"ruleContent,omitempty"`
	RuleReview   *ReviewRule   `json:"ruleReview,omitempty"`
}

// UnmarshalJSON decodes exported source files, which are loose about types:
// timestamps may be strings, and a rule group may be an empty array or an
// object of the wrong shape. Such groups decode to nil instead of failing.
func (s *BookSource) UnmarshalJSON(data []byte) error {
	type plain BookSource
	var raw struct {
		plain
		RuleExplore  json.RawMessage `json:"ruleExplore"`
		RuleSearch   json.RawMessage `json:"ruleSearch"`
		RuleBookInfo json.RawMessage `json:"ruleBookInfo"`
		RuleToc      json.RawMessage `json:"ruleToc"`
		RuleContent  json.RawMessage `json:"ruleContent"`
		RuleReview   json.RawMessage `json:"ruleReview"`
	}
	raw.plain = plain{
		Enabled:        true,
		EnabledExplore: true,
		RespondTime:    DefaultRespondTime,
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = BookSource(raw.plain)
	s.RuleExplore = decodeRule[ExploreRule](raw.RuleExplore)
	s.RuleSearch = decodeRule[SearchRule](raw.RuleSearch)
	s.RuleBookInfo = decodeRule[BookInfoRule](raw.RuleBookInfo)
	s.RuleToc = decodeRule[TocRule](raw.RuleToc)
	s.RuleContent = decodeRule[ContentRule](raw.RuleContent)
	s.RuleReview = decodeRule[ReviewRule](raw.RuleReview)
	return nil
}

func decodeRule[T any](data json.RawMessage) *T {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	return &v
}

// ParseBookSources accepts either a single source object or an array of them.
func ParseBookSources(data []byte) ([]*BookSource, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var s BookSource
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return []*BookSource{&s}, nil
	}
	var list []*BookSource
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// FlexInt is an integer that may be encoded as a JSON number or a numeric string.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexInt(n)
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	*f = FlexInt(n)
	return nil
}
