package fetcher

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maltedev/amazonlight/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport answers the storefront root with a fixed page and serves
// every other URL from a scripted list, repeating the last entry.
type scriptedTransport struct {
	mu       sync.Mutex
	script   []*Response
	errs     []error
	calls    []string
	warmups  int
	closed   bool
	headers  []http.Header
	rootBody string
}

func (s *scriptedTransport) Get(_ context.Context, url string, header http.Header) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.HasSuffix(url, ".com/") || strings.HasSuffix(url, ".de/") || strings.HasSuffix(url, ".co.uk/") {
		s.warmups++
		return &Response{StatusCode: http.StatusOK, Body: s.rootBody}, nil
	}

	i := len(s.calls)
	s.calls = append(s.calls, url)
	s.headers = append(s.headers, header)

	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	if i < 0 {
		return nil, err
	}
	return s.script[i], err
}

func (s *scriptedTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedTransport) productCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type sleepRecorder struct {
	delays []time.Duration
	err    error
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return r.err
}

func sessionsFor(t *scriptedTransport) Sessions {
	return SessionFunc(func(context.Context) (Transport, error) { return t, nil })
}

func testOptions(rec *sleepRecorder) Options {
	opts := DefaultOptions()
	opts.Sleep = rec.sleep
	return opts
}

func ok(body string) *Response { return &Response{StatusCode: http.StatusOK, Body: body} }

var deRequest = models.FetchRequest{Country: "de", ProductID: "B001", ImageWidth: 100, ImageHeight: 100}

func TestPageFetcherRetriesEmptyBodyUntilSuccess(t *testing.T) {
	transport := &scriptedTransport{script: []*Response{ok(""), ok(""), ok("<html><span id=\"productTitle\">Go</span></html>")}}
	rec := &sleepRecorder{}

	f := NewPageFetcher(sessionsFor(transport), testOptions(rec))
	outcome := f.Fetch(context.Background(), deRequest)

	require.True(t, outcome.OK(), "outcome: %+v", outcome)
	assert.Contains(t, outcome.HTML, "productTitle")
	assert.Equal(t, SourcePage, outcome.Source)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, 3, transport.productCalls())
	assert.Equal(t, 1, transport.warmups)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
	assert.True(t, transport.closed)
	assert.NoError(t, outcome.Err())

	for _, url := range transport.calls {
		assert.Equal(t, "https://www.amazon.de/dp/B001", url)
	}
}

func TestPageFetcherAntiBotIsTerminalAfterMaxAttempts(t *testing.T) {
	transport := &scriptedTransport{script: []*Response{
		{StatusCode: http.StatusServiceUnavailable, Body: "<html><title>Robot Check</title></html>"},
	}}
	rec := &sleepRecorder{}

	f := NewPageFetcher(sessionsFor(transport), testOptions(rec))
	outcome := f.Fetch(context.Background(), deRequest)

	assert.Equal(t, StatusTerminal, outcome.Status)
	assert.Equal(t, ReasonAntiBot, outcome.Reason)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, 3, transport.productCalls())
	assert.Equal(t, http.StatusServiceUnavailable, outcome.StatusCode)
	assert.ErrorIs(t, outcome.Err(), ErrAntiBot)
	assert.Len(t, rec.delays, 2)
}

func TestPageFetcherEmptyBodyIsTerminalFetchFailed(t *testing.T) {
	transport := &scriptedTransport{
		script: []*Response{nil},
		errs:   []error{errors.New("connection reset"), errors.New("connection reset"), errors.New("connection reset")},
	}
	rec := &sleepRecorder{}

	f := NewPageFetcher(sessionsFor(transport), testOptions(rec))
	outcome := f.Fetch(context.Background(), deRequest)

	assert.Equal(t, StatusTerminal, outcome.Status)
	assert.Equal(t, ReasonFetchFailed, outcome.Reason)
	assert.Equal(t, 3, transport.productCalls())
	assert.ErrorIs(t, outcome.Err(), ErrFetchFailed)
	assert.Contains(t, outcome.Err().Error(), "connection reset")
}

func TestPageFetcherRetriesErrorStatusWithoutIndicators(t *testing.T) {
	transport := &scriptedTransport{script: []*Response{
		{StatusCode: http.StatusInternalServerError, Body: "<html>oops</html>"},
		ok("<html>product</html>"),
	}}
	rec := &sleepRecorder{}

	outcome := NewPageFetcher(sessionsFor(transport), testOptions(rec)).Fetch(context.Background(), deRequest)

	require.True(t, outcome.OK())
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, []time.Duration{time.Second}, rec.delays)
}

func TestPageFetcherWithoutWarmUp(t *testing.T) {
	transport := &scriptedTransport{script: []*Response{ok("<html>product</html>")}}
	opts := testOptions(&sleepRecorder{})
	opts.WarmUp = false

	outcome := NewPageFetcher(sessionsFor(transport), opts).Fetch(context.Background(), deRequest)

	require.True(t, outcome.OK())
	assert.Equal(t, 0, transport.warmups)
	assert.Equal(t, 1, transport.productCalls())
}

func TestPageFetcherSendsBrowserHeaders(t *testing.T) {
	transport := &scriptedTransport{script: []*Response{ok("<html>product</html>")}}
	opts := testOptions(&sleepRecorder{})
	opts.UserAgent = "TestAgent/1.0"

	NewPageFetcher(sessionsFor(transport), opts).Fetch(context.Background(), deRequest)

	require.Len(t, transport.headers, 1)
	assert.Equal(t, "TestAgent/1.0", transport.headers[0].Get("User-Agent"))
	assert.NotEmpty(t, transport.headers[0].Get("Accept"))
	assert.NotEmpty(t, transport.headers[0].Get("Accept-Language"))
}

func TestPageFetcherCanceledDuringBackoff(t *testing.T) {
	transport := &scriptedTransport{script: []*Response{ok("")}}
	rec := &sleepRecorder{err: context.Canceled}

	outcome := NewPageFetcher(sessionsFor(transport), testOptions(rec)).Fetch(context.Background(), deRequest)

	assert.Equal(t, StatusTransient, outcome.Status)
	assert.Equal(t, ReasonCanceled, outcome.Reason)
	assert.Equal(t, 1, outcome.Attempts)
	assert.ErrorIs(t, outcome.Err(), context.Canceled)
}

func TestPageFetcherSessionError(t *testing.T) {
	sessions := SessionFunc(func(context.Context) (Transport, error) {
		return nil, errors.New("no browser")
	})

	outcome := NewPageFetcher(sessions, testOptions(&sleepRecorder{})).Fetch(context.Background(), deRequest)

	assert.Equal(t, StatusTerminal, outcome.Status)
	assert.Equal(t, 0, outcome.Attempts)
	assert.ErrorIs(t, outcome.Err(), ErrFetchFailed)
}

func TestPageFetcherCustomIndicators(t *testing.T) {
	transport := &scriptedTransport{script: []*Response{ok("<html>Robot Check</html>")}}
	opts := testOptions(&sleepRecorder{})
	opts.AntiBotIndicators = []string{"validateCaptcha"}
	opts.MaxAttempts = 1

	outcome := NewPageFetcher(sessionsFor(transport), opts).Fetch(context.Background(), deRequest)
	assert.True(t, outcome.OK(), "only configured indicators count")
}

type countingThrottle struct {
	waits, successes, errors int
}

func (c *countingThrottle) Wait(context.Context) error { c.waits++; return nil }
func (c *countingThrottle) RecordSuccess()             { c.successes++ }
func (c *countingThrottle) RecordError()               { c.errors++ }

func TestPageFetcherThrottle(t *testing.T) {
	transport := &scriptedTransport{script: []*Response{ok("captchacharacters"), ok("<html>fine</html>")}}
	throttle := &countingThrottle{}
	opts := testOptions(&sleepRecorder{})
	opts.Throttle = throttle

	outcome := NewPageFetcher(sessionsFor(transport), opts).Fetch(context.Background(), deRequest)

	require.True(t, outcome.OK())
	assert.Equal(t, 2, throttle.waits)
	assert.Equal(t, 1, throttle.errors)
	assert.Equal(t, 1, throttle.successes)
}

func TestBackoffIsMonotonic(t *testing.T) {
	r := newRetrier(SourcePage, DefaultOptions())
	prev := time.Duration(0)
	for attempt := 1; attempt < 5; attempt++ {
		d := r.backoff(attempt)
		assert.Greater(t, d, prev)
		prev = d
	}
}

func TestWidgetFetcher(t *testing.T) {
	transport := &scriptedTransport{script: []*Response{ok(`<div id="title"><a>Widget Title</a></div>`)}}
	partner := func(_ context.Context, country string) string {
		if country == "de" {
			return "wiki-21"
		}
		return ""
	}

	f := NewWidgetFetcher(sessionsFor(transport), partner, testOptions(&sleepRecorder{}))
	outcome := f.Fetch(context.Background(), deRequest)

	require.True(t, outcome.OK())
	assert.Equal(t, SourceWidget, outcome.Source)
	assert.Equal(t, 0, transport.warmups)
	require.Len(t, transport.calls, 1)
	assert.True(t, strings.HasPrefix(transport.calls[0], "https://ws-eu.amazon-adsystem.com/widgets/q?"))
	assert.Contains(t, transport.calls[0], "asins=B001")
	assert.Contains(t, transport.calls[0], "tracking_id=wiki-21")
	assert.Contains(t, transport.calls[0], "MarketPlace=DE")
}

func TestDelegatingFetcher(t *testing.T) {
	registry := NewRegistry()
	delegating := NewDelegatingFetcher(SourceWidget, registry, nil)

	outcome := delegating.Fetch(context.Background(), deRequest)
	assert.Equal(t, StatusTerminal, outcome.Status)
	assert.Equal(t, ReasonDelegateUnavailable, outcome.Reason)
	assert.ErrorIs(t, outcome.Err(), ErrDelegateUnavailable)

	transport := &scriptedTransport{script: []*Response{ok("<html>widget</html>")}}
	registry.Register(SourceWidget, NewWidgetFetcher(sessionsFor(transport), nil, testOptions(&sleepRecorder{})))

	outcome = delegating.Fetch(context.Background(), deRequest)
	require.True(t, outcome.OK())
	assert.Equal(t, SourceWidget, outcome.Source)
	assert.Equal(t, []string{SourceWidget}, registry.Names())
}

func TestDelegatingFetcherRejectsSelf(t *testing.T) {
	registry := NewRegistry()
	delegating := NewDelegatingFetcher(SourceDelegate, registry, nil)
	registry.Register(SourceDelegate, delegating)

	outcome := delegating.Fetch(context.Background(), deRequest)
	assert.Equal(t, ReasonDelegateUnavailable, outcome.Reason)
}
