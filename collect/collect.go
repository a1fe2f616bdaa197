package collect

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/juju/ratelimit"
	"github.com/wenzapen/bookrule/limiter"
	"github.com/wenzapen/bookrule/proxy"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

var ErrStatus = errors.New("unexpected status code")

// Fetcher returns a response body decoded to UTF-8.
type Fetcher interface {
	Get(ctx context.Context, req *Request) ([]byte, error)
}

type BrowserFetch struct {
	Timeout   time.Duration
	Proxy     proxy.ProxyFunc
	UserAgent string
	// Bandwidth caps the read rate of a response body in bytes per second.
	Bandwidth int64
	Logger    *zap.Logger
}

func (b *BrowserFetch) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func (b *BrowserFetch) client() *http.Client {
	cli := &http.Client{
		Timeout: b.Timeout,
	}
	if b.Proxy != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = b.Proxy
		cli.Transport = transport
	}
	return cli
}

func (b *BrowserFetch) Get(ctx context.Context, request *Request) ([]byte, error) {
	var body io.Reader
	if request.Body != "" {
		body = strings.NewReader(request.Body)
	}
	method := request.method()
	req, err := http.NewRequestWithContext(ctx, method, request.URL, body)
	if err != nil {
		return nil, fmt.Errorf("get url failed:%w", err)
	}
	ua := b.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if method == MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if len(request.Cookie) > 0 {
		req.Header.Set("Cookie", request.Cookie)
	}
	for k, v := range request.Headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client().Do(req)
	if err != nil {
		b.logger().Error("fetch url failed", zap.String("url", request.URL), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		b.logger().Error("error status code", zap.Int("status", resp.StatusCode), zap.String("url", request.URL))
		return nil, fmt.Errorf("%w %d for %s", ErrStatus, resp.StatusCode, request.URL)
	}

	var r io.Reader = resp.Body
	if b.Bandwidth > 0 {
		r = ratelimit.Reader(r, ratelimit.NewBucketWithRate(float64(b.Bandwidth), b.Bandwidth))
	}
	bodyReader := bufio.NewReader(r)
	e := DeterminEncoding(bodyReader, resp.Header.Get("Content-Type"), request.Charset)
	utf8Reader := transform.NewReader(bodyReader, e.NewDecoder())
	return io.ReadAll(utf8Reader)
}

// DeterminEncoding picks the body encoding: an explicit charset wins, then the
// Content-Type header and the document's meta tags. An uncertain guess falls
// back to UTF-8.
func DeterminEncoding(r *bufio.Reader, contentType, explicit string) encoding.Encoding {
	if explicit != "" {
		if e, err := htmlindex.Get(explicit); err == nil {
			return e
		}
	}
	bytes, err := r.Peek(1024)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return unicode.UTF8
	}
	if len(bytes) == 0 {
		return unicode.UTF8
	}
	e, name, certain := charset.DetermineEncoding(bytes, contentType)
	if !certain && name == "windows-1252" {
		return unicode.UTF8
	}
	return e
}

// LimitedFetch waits on a rate limiter before every request.
type LimitedFetch struct {
	Fetcher Fetcher
	Limit   limiter.RateLimiter
}

func (l *LimitedFetch) Get(ctx context.Context, req *Request) ([]byte, error) {
	if l.Limit != nil {
		if err := l.Limit.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return l.Fetcher.Get(ctx, req)
}
