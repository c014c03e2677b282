// Package netprobe answers "is the network reachable right now".
package netprobe

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Probe reports current connectivity.
type Probe interface {
	IsReachable(ctx context.Context) bool
}

// Static is a Probe whose answer is set by hand. Useful when the platform pushes
// connectivity changes, and in tests.
type Static struct {
	reachable atomic.Bool
}

// NewStatic returns a Static probe with the given initial answer.
func NewStatic(reachable bool) *Static {
	s := &Static{}
	s.reachable.Store(reachable)
	return s
}

// Set changes the answer.
func (s *Static) Set(reachable bool) { s.reachable.Store(reachable) }

func (s *Static) IsReachable(context.Context) bool { return s.reachable.Load() }

const probeKey = "reachable"

/*
HTTPProbe checks reachability with a HEAD request against a health URL.

The answer is remembered for a short TTL so a screen that asks for seven days in a row
does not send seven probes. Any response below 500 counts as reachable: the server
answered, whatever it thinks of us.
*/
type HTTPProbe struct {
	url    string
	client *http.Client
	memo   *ttlcache.Cache[string, bool]
}

// NewHTTPProbe creates a probe against url. remember is how long an answer is reused.
func NewHTTPProbe(url string, client *http.Client, remember time.Duration) *HTTPProbe {
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	if remember <= 0 {
		remember = 5 * time.Second
	}
	return &HTTPProbe{
		url:    url,
		client: client,
		memo: ttlcache.New[string, bool](
			ttlcache.WithTTL[string, bool](remember),
			ttlcache.WithDisableTouchOnHit[string, bool](),
		),
	}
}

func (p *HTTPProbe) IsReachable(ctx context.Context) bool {
	if item := p.memo.Get(probeKey); item != nil {
		return item.Value()
	}

	reachable := p.check(ctx)
	p.memo.Set(probeKey, reachable, ttlcache.DefaultTTL)
	return reachable
}

func (p *HTTPProbe) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	res, err := p.client.Do(req)
	if err != nil {
		return false
	}
	res.Body.Close()
	return res.StatusCode < http.StatusInternalServerError
}

// Forget drops the remembered answer, e.g. when the OS reports a network change.
func (p *HTTPProbe) Forget() {
	p.memo.DeleteAll()
}
