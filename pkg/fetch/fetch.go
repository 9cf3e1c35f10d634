// Package fetch retrieves search result pages with retry and backoff.
package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gocolly/colly/v2"
)

var (
	// ErrFetch marks a request that still failed after all retries.
	ErrFetch = errors.New("fetch failed")

	// ErrSuspiciousResponse marks a body too small to be a real results page,
	// which usually means blocking or a malformed URL.
	ErrSuspiciousResponse = errors.New("fetched HTML is suspiciously small")
)

// Error carries the final failure of a fetch after retries were exhausted.
type Error struct {
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetching %q failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrFetch, e.Err} }

// Options configures a Fetcher. Zero values fall back to the documented defaults.
type Options struct {
	// SearchURL is the prefix a plain query is appended to.
	SearchURL string
	UserAgent string
	Timeout   time.Duration
	// Retries is the number of extra attempts after the first (default 2).
	Retries int
	// Backoff is the base wait; attempt n sleeps Backoff * n.
	Backoff time.Duration
	// MinBodyLen is the smallest acceptable body size (default 100).
	MinBodyLen int
}

// Fetcher issues GET requests through a colly collector. It is not safe for
// concurrent use; the monitor runs one fetch per invocation.
type Fetcher struct {
	searchURL  string
	retries    int
	backoff    time.Duration
	minBodyLen int

	c    *colly.Collector
	body []byte

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// New builds a Fetcher around a fresh collector.
func New(opts Options) *Fetcher {
	if opts.Retries <= 0 {
		opts.Retries = 2
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	if opts.MinBodyLen <= 0 {
		opts.MinBodyLen = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	collectorOpts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
	}
	if opts.UserAgent != "" {
		collectorOpts = append(collectorOpts, colly.UserAgent(opts.UserAgent))
	}
	c := colly.NewCollector(collectorOpts...)
	c.SetRequestTimeout(opts.Timeout)

	f := &Fetcher{
		searchURL:  opts.SearchURL,
		retries:    opts.Retries,
		backoff:    opts.Backoff,
		minBodyLen: opts.MinBodyLen,
		c:          c,
		sleep:      time.Sleep,
	}

	c.OnResponse(func(r *colly.Response) {
		f.body = r.Body
	})

	return f
}

// BuildURL turns a query into a fetchable URL. Absolute http(s) URLs are used
// verbatim; anything else is percent-encoded and appended to the search prefix.
func (f *Fetcher) BuildURL(queryOrURL string) string {
	lower := strings.ToLower(queryOrURL)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return queryOrURL
	}
	return f.searchURL + url.QueryEscape(queryOrURL)
}

// Fetch GETs the page for a query or URL and returns the HTML body.
// Failed attempts are retried with linearly increasing backoff; the final
// failure surfaces as *Error. A successful response smaller than the minimum
// body length returns ErrSuspiciousResponse and is not retried.
func (f *Fetcher) Fetch(queryOrURL string) (string, error) {
	target := f.BuildURL(queryOrURL)
	log.Info("fetching URL", "url", target)

	var lastErr error
	for attempt := 1; attempt <= f.retries+1; attempt++ {
		f.body = nil
		if err := f.c.Visit(target); err != nil {
			lastErr = err
			if attempt <= f.retries {
				wait := f.backoff * time.Duration(attempt)
				log.Warn("request failed, retrying", "attempt", attempt, "wait", wait, "err", err)
				f.sleep(wait)
				continue
			}
			return "", &Error{URL: target, Attempts: attempt, Err: lastErr}
		}

		if len(f.body) < f.minBodyLen {
			return "", fmt.Errorf("%w: %d bytes from %q", ErrSuspiciousResponse, len(f.body), target)
		}
		return string(f.body), nil
	}

	// unreachable: the loop always returns
	return "", &Error{URL: target, Attempts: f.retries + 1, Err: lastErr}
}
