package collect

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// Request is one HTTP request a book source rule asks for.
type Request struct {
	URL     string
	Method  string
	Body    string
	Headers map[string]string
	// Charset overrides the response encoding detection and is used to encode
	// the keyword when the URL was expanded.
	Charset string
	Cookie  string
}

func NewRequest(url string) *Request {
	return &Request{URL: url, Method: MethodGet}
}

func (r *Request) method() string {
	if m := strings.ToUpper(strings.TrimSpace(r.Method)); m != "" {
		return m
	}
	return MethodGet
}

// Unique is the fingerprint used to detect pages that were already visited.
func (r *Request) Unique() string {
	block := md5.Sum([]byte(r.URL + r.method() + r.Body))
	return hex.EncodeToString(block[:])
}
