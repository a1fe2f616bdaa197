package model

// SearchRule describes how to read a search result page.
type SearchRule struct {
	BookList    string `json:"bookList,omitempty"`
	Name        string `json:"name,omitempty"`
	Author      string `json:"author,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Intro       string `json:"intro,omitempty"`
	CoverURL    string `json:"coverUrl,omitempty"`
	BookURL     string `json:"bookUrl,omitempty"`
	WordCount   string `json:"wordCount,omitempty"`
	LastChapter string `json:"lastChapter,omitempty"`
}

// ExploreRule has the same shape as SearchRule but applies to discovery pages.
type ExploreRule struct {
	BookList    string `json:"bookList,omitempty"`
	Name        string `json:"name,omitempty"`
	Author      string `json:"author,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Intro       string `json:"intro,omitempty"`
	CoverURL    string `json:"coverUrl,omitempty"`
	BookURL     string `json:"bookUrl,omitempty"`
	WordCount   string `json:"wordCount,omitempty"`
	LastChapter string `json:"lastChapter,omitempty"`
}

type BookInfoRule struct {
	Init        string `json:"init,omitempty"`
	Name        string `json:"name,omitempty"`
	Author      string `json:"author,omitempty"`
	Intro       string `json:"intro,omitempty"`
	Kind        string `json:"kind,omitempty"`
	CoverURL    string `json:"coverUrl,omitempty"`
	TocURL      string `json:"tocUrl,omitempty"`
	WordCount   string `json:"wordCount,omitempty"`
	LastChapter string `json:"lastChapter,omitempty"`
	UpdateTime  string `json:"updateTime,omitempty"`
	CanReName   string `json:"canReName,omitempty"`
}

type TocRule struct {
	ChapterList string `json:"chapterList,omitempty"`
	ChapterName string `json:"chapterName,omitempty"`
	ChapterURL  string `json:"chapterUrl,omitempty"`
	IsVolume    string `json:"isVolume,omitempty"`
	UpdateTime  string `json:"updateTime,omitempty"`
	IsVip       string `json:"isVip,omitempty"`
	IsPay       string `json:"isPay,omitempty"`
	NextTocURL  string `json:"nextTocUrl,omitempty"`
}

type ContentRule struct {
	Content        string `json:"content,omitempty"`
	NextContentURL string `json:"nextContentUrl,omitempty"`
	WebJS          string `json:"webJs,omitempty"`
	SourceRegex    string `json:"sourceRegex,omitempty"`
	ReplaceRegex   string `json:"replaceRegex,omitempty"`
	ImageStyle     string `json:"imageStyle,omitempty"`
	ImageDecode    string `json:"imageDecode,omitempty"`
	PayAction      string `json:"payAction,omitempty"`
}

type ReviewRule struct {
	ReviewURL      string `json:"reviewUrl,omitempty"`
	AvatarRule     string `json:"avatarRule,omitempty"`
	ContentRule    string `json:"contentRule,omitempty"`
	PostTimeRule   string `json:"postTimeRule,omitempty"`
	ReviewQuoteURL string `json:"reviewQuoteUrl,omitempty"`
}

// ListRule is the common view of search and explore rules used by the list parser.
type ListRule interface {
	Field(name string) string
}

func (r *SearchRule) Field(name string) string {
	if r == nil {
		return ""
	}
	switch name {
	case "bookList":
		return r.BookList
	case "name":
		return r.Name
	case "author":
		return r.Author
	case "kind":
		return r.Kind
	case "intro":
		return r.Intro
	case "coverUrl":
		return r.CoverURL
	case "bookUrl":
		return r.BookURL
	case "wordCount":
		return r.WordCount
	case "lastChapter":
		return r.LastChapter
	}
	return ""
}

func (r *ExploreRule) Field(name string) string {
	if r == nil {
		return ""
	}
	switch name {
	case "bookList":
		return r.BookList
	case "name":
		return r.Name
	case "author":
		return r.Author
	case "kind":
		return r.Kind
	case "intro":
		return r.Intro
	case "coverUrl":
		return r.CoverURL
	case "bookUrl":
		return r.BookURL
	case "wordCount":
		return r.WordCount
	case "lastChapter":
		return r.LastChapter
	}
	return ""
}

func (r *BookInfoRule) Field(name string) string {
	if r == nil {
		return ""
	}
	switch name {
	case "init":
		return r.Init
	case "name":
		return r.Name
	case "author":
		return r.Author
	case "intro":
		return r.Intro
	case "kind":
		return r.Kind
	case "coverUrl":
		return r.CoverURL
	case "tocUrl":
		return r.TocURL
	case "wordCount":
		return r.WordCount
	case "lastChapter":
		return r.LastChapter
	case "updateTime":
		return r.UpdateTime
	}
	return ""
}

// Fallback returns a rule that reads each field from r and falls back to
// the search rule for fields r leaves empty.
func (r *ExploreRule) Fallback(search *SearchRule) ListRule {
	return fallbackRule{primary: r, secondary: search}
}

type fallbackRule struct {
	primary   ListRule
	secondary ListRule
}

func (f fallbackRule) Field(name string) string {
	if v := f.primary.Field(name); v != "" {
		return v
	}
	return f.secondary.Field(name)
}
