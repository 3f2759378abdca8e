package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// maxBodySize bounds how much of a product page is read into memory.
const maxBodySize = 8 << 20

// Response is what a Transport returns for one GET. StatusCode and Body are
// both populated on non-2xx responses.
type Response struct {
	StatusCode int
	Body       string
}

// Transport issues GET requests within one session. Cookies set by earlier
// responses must be sent on later requests of the same Transport.
type Transport interface {
	Get(ctx context.Context, url string, header http.Header) (*Response, error)
	Close() error
}

// Sessions hands out one Transport per fetch invocation, so cookie state is
// never shared between invocations.
type Sessions interface {
	NewSession(ctx context.Context) (Transport, error)
}

// SessionFunc adapts a function to Sessions.
type SessionFunc func(ctx context.Context) (Transport, error)

func (f SessionFunc) NewSession(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// HTTPSessions creates net/http backed sessions with a fresh cookie jar each.
type HTTPSessions struct {
	Timeout      time.Duration
	RoundTripper http.RoundTripper
}

func (s *HTTPSessions) NewSession(_ context.Context) (Transport, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPTransport{
		client: &http.Client{
			Timeout:   timeout,
			Jar:       jar,
			Transport: s.RoundTripper,
		},
	}, nil
}

// HTTPTransport is a cookie-persisting net/http session.
type HTTPTransport struct {
	client *http.Client
}

func (t *HTTPTransport) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range header {
		req.Header[key] = append([]string(nil), values...)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &Response{StatusCode: resp.StatusCode}, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// BrowserHeaders returns the fixed headers that make a request resemble an
// ordinary desktop browser navigation.
func BrowserHeaders(userAgent, acceptLanguage string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", acceptLanguage)
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("DNT", "1")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	return h
}
