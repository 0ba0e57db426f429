// Package fetch implements the HTTP Fetcher described in spec.md §4.B: a
// single-shot GET with configurable timeout, transparent gzip decoding, an
// optional proxy and CA bundle, streaming into a hash-verifying sink.
package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/wincrt/xwin/internal/env"
)

// Kind classifies a fetch failure so the scheduler (internal/work) can
// decide whether to retry (spec.md §4.B: only Network, Timeout and 5xx are
// retried).
type Kind int

const (
	KindNetwork Kind = iota
	KindHTTPStatus
	KindTimeout
	KindTruncated
)

// Error is a fetch failure, classified by Kind.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("%s: HTTP status %d", e.URL, e.StatusCode)
	case KindTimeout:
		return fmt.Sprintf("%s: timeout: %v", e.URL, e.Err)
	case KindTruncated:
		return fmt.Sprintf("%s: truncated response body: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("%s: network error: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the scheduler should retry the request that
// produced err: transient network/timeout errors and 5xx responses are,
// everything else (404, malformed URL, 4xx, …) is not.
func Retryable(err error) bool {
	fe, ok := err.(*Error)
	if !ok {
		return false
	}
	switch fe.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTPStatus:
		return fe.StatusCode >= 500 && fe.StatusCode < 600
	default:
		return false
	}
}

// Fetcher performs single-shot GETs against the Microsoft CDN (or any
// other HTTPS source named by a manifest payload URL).
type Fetcher struct {
	// Timeout is applied per request; zero means infinite (spec.md §4.B
	// default 60s, 0 = infinite — callers construct with
	// DefaultTimeout unless overridden).
	Timeout time.Duration

	client *http.Client
}

// DefaultTimeout is the default per-request timeout (spec.md §4.B).
const DefaultTimeout = 60 * time.Second

// New constructs a Fetcher honoring $HTTPS_PROXY and the CA-bundle
// environment variables (spec.md §4.B), mirroring distri's
// internal/repo.Reader HTTP client configuration. An empty proxyURL falls
// back to $HTTPS_PROXY; pass a non-empty value to let a --https-proxy flag
// override the environment.
func New(timeout time.Duration, proxyURL string) (*Fetcher, error) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		DisableCompression:  true, // we decode Content-Encoding ourselves
	}
	proxy := proxyURL
	if proxy == "" {
		proxy = env.HTTPSProxy()
	}
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid HTTPS_PROXY %q: %w", proxy, err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	if bundle := env.CABundle(); bundle != "" {
		pem, err := ioutil.ReadFile(bundle)
		if err != nil {
			return nil, fmt.Errorf("reading CA bundle %s: %w", bundle, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA bundle %s", bundle)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}
	return &Fetcher{
		Timeout: timeout,
		client:  &http.Client{Transport: transport},
	}, nil
}

// Get issues a GET for rawurl and streams the (possibly gzip-decoded) body
// into sink, returning the number of bytes written. The context governs
// cancellation (spec.md §5); the Fetcher's own Timeout bounds each
// individual request in addition to ctx.
func (f *Fetcher) Get(ctx context.Context, rawurl string, sink io.Writer) (int64, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if f.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, "GET", rawurl, nil)
	if err != nil {
		return 0, &Error{Kind: KindNetwork, URL: rawurl, Err: err}
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return 0, &Error{Kind: KindTimeout, URL: rawurl, Err: err}
		}
		return 0, &Error{Kind: KindNetwork, URL: rawurl, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &Error{Kind: KindHTTPStatus, URL: rawurl, StatusCode: resp.StatusCode}
	}

	body := io.Reader(resp.Body)
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := pgzip.NewReader(resp.Body)
		if err != nil {
			return 0, &Error{Kind: KindTruncated, URL: rawurl, Err: err}
		}
		defer zr.Close()
		body = zr
	}

	n, err := io.Copy(sink, body)
	if err != nil {
		return n, &Error{Kind: KindTruncated, URL: rawurl, Err: err}
	}
	return n, nil
}
