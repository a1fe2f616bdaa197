package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

var ErrNoProxy = errors.New("proxy url list is empty")

// ProxyFunc matches http.Transport.Proxy.
type ProxyFunc func(*http.Request) (*url.URL, error)

type roundRobinSwitcher struct {
	proxyURLs []*url.URL
	index     uint32
}

func (r *roundRobinSwitcher) GetProxy(pr *http.Request) (*url.URL, error) {
	index := atomic.AddUint32(&r.index, 1) - 1
	u := r.proxyURLs[index%uint32(len(r.proxyURLs))]
	return u, nil
}

// RoundRobinSwitcher rotates through the given proxies, one per request.
// Blank entries are ignored; any malformed entry is an error.
func RoundRobinSwitcher(proxyURLs ...string) (ProxyFunc, error) {
	var urls []*url.URL
	for _, u := range proxyURLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		parsedU, err := url.Parse(u)
		if err != nil || parsedU.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", u)
		}
		urls = append(urls, parsedU)
	}
	if len(urls) < 1 {
		return nil, ErrNoProxy
	}
	return (&roundRobinSwitcher{proxyURLs: urls}).GetProxy, nil
}
