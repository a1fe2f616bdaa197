package model

// SearchBook is one record of a search or explore page.
type SearchBook struct {
	Name               string `json:"name"`
	Author             string `json:"author"`
	BookURL            string `json:"bookUrl"`
	CoverURL           string `json:"coverUrl,omitempty"`
	Intro              string `json:"intro,omitempty"`
	Kind               string `json:"kind,omitempty"`
	LatestChapterTitle string `json:"latestChapterTitle,omitempty"`
	WordCount          string `json:"wordCount,omitempty"`
	BookSourceURL      string `json:"bookSourceUrl"`
	BookSourceName     string `json:"bookSourceName"`
}

// ToBook seeds a Book with everything a search result already knows.
func (s SearchBook) ToBook() *Book {
	return &Book{
		BookURL:            s.BookURL,
		TocURL:             s.BookURL,
		Origin:             s.BookSourceURL,
		OriginName:         s.BookSourceName,
		Name:               s.Name,
		Author:             s.Author,
		Kind:               s.Kind,
		CoverURL:           s.CoverURL,
		Intro:              s.Intro,
		LatestChapterTitle: s.LatestChapterTitle,
		WordCount:          s.WordCount,
	}
}

type Book struct {
	BookURL            string            `json:"bookUrl"`
	TocURL             string            `json:"tocUrl"`
	Origin             string            `json:"origin"`
	OriginName         string            `json:"originName"`
	Name               string            `json:"name"`
	Author             string            `json:"author"`
	Kind               string            `json:"kind,omitempty"`
	CoverURL           string            `json:"coverUrl,omitempty"`
	Intro              string            `json:"intro,omitempty"`
	LatestChapterTitle string            `json:"latestChapterTitle,omitempty"`
	WordCount          string            `json:"wordCount,omitempty"`
	UpdateTime         string            `json:"updateTime,omitempty"`
	Variables          map[string]string `json:"variable,omitempty"`
}

type BookChapter struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	BookURL    string `json:"bookUrl"`
	Index      int    `json:"index"`
	IsVolume   bool   `json:"isVolume,omitempty"`
	IsVip      bool   `json:"isVip,omitempty"`
	IsPay      bool   `json:"isPay,omitempty"`
	UpdateTime string `json:"updateTime,omitempty"`
}

// ExploreKind is one entry of a source's discovery menu.
type ExploreKind struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}
