package urlutil

import (
	"net/url"
	"strings"
)

// Resolve makes u absolute against base. Absolute URLs are returned as is,
// "/path" keeps only the scheme, host and port of base, "//host/path" takes
// the scheme of base and anything else is resolved per RFC 3986. When base
// cannot be parsed, or has no host, u is returned unchanged.
func Resolve(u, base string) string {
	u = strings.TrimSpace(u)
	base = strings.TrimSpace(base)
	if u == "" {
		return ""
	}
	if IsAbsolute(u) {
		return u
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return u
	}
	switch {
	case strings.HasPrefix(u, "//"):
		return b.Scheme + ":" + u
	case strings.HasPrefix(u, "/"):
		return b.Scheme + "://" + b.Host + u
	}
	ref, err := url.Parse(u)
	if err != nil {
		return u
	}
	return b.ResolveReference(ref).String()
}

// IsAbsolute reports whether u starts with an http or https scheme.
func IsAbsolute(u string) bool {
	l := strings.ToLower(u)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// FixDuplicateSegments repairs paths produced by joining a relative link to a
// base that already contained it, e.g. "/x/1//x/1/y.html" becomes "/x/1/y.html".
// The overlap of the segments around "//" is dropped; without overlap the
// double slash is collapsed.
func FixDuplicateSegments(u string) string {
	start := 0
	switch {
	case strings.Contains(u, "://"):
		start = strings.Index(u, "://") + 3
	case strings.HasPrefix(u, "//"):
		start = 2
	}
	if start > 0 {
		slash := strings.IndexByte(u[start:], '/')
		if slash < 0 {
			return u
		}
		start += slash
	}
	end := len(u)
	if i := strings.IndexAny(u[start:], "?#"); i >= 0 {
		end = start + i
	}
	path := u[start:end]
	cut := strings.Index(path, "//")
	if cut < 0 {
		return u
	}
	left := splitSegments(path[:cut])
	right := splitSegments(path[cut+2:])
	overlap := 0
	for k := min(len(left), len(right)); k > 0; k-- {
		if equal(left[len(left)-k:], right[:k]) {
			overlap = k
			break
		}
	}
	joined := append(append([]string{}, left...), right[overlap:]...)
	fixed := "/" + strings.Join(joined, "/")
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(fixed, "/") {
		fixed += "/"
	}
	return u[:start] + fixed + u[end:]
}

func splitSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Query returns the value of a query parameter of u, "" when absent.
func Query(u, key string) string {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return ""
	}
	return parsed.Query().Get(key)
}

// SetQuery replaces (or adds) a query parameter, leaving the rest of u intact.
func SetQuery(u, key, value string) string {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return u
	}
	q := parsed.Query()
	q.Set(key, value)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}
