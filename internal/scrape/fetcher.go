// Package scrape retrieves listing pages from the news site and parses
// them into canonical story records.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "hnpulse-ingestor/1.0"

// FetchError reports a failed page retrieval: a network failure, a
// timeout, or a non-2xx response. The fetcher never retries; retry policy
// belongs to the orchestrator's periodic triggers.
type FetchError struct {
	Page       int
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch page %d (%s): %v", e.Page, e.URL, e.Err)
	}
	return fmt.Sprintf("fetch page %d (%s): unexpected status %d", e.Page, e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves raw listing markup over HTTP.
type Fetcher struct {
	baseURL string
	client  *http.Client
}

// NewFetcher wires an HTTP client against the listing site root. A nil
// client gets a 20 second timeout default.
func NewFetcher(baseURL string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// PageURL maps a page number to its listing URL: page 1 is the site root,
// later pages use the offset query parameter.
func (f *Fetcher) PageURL(page int) string {
	if page <= 1 {
		return f.baseURL + "/"
	}
	return fmt.Sprintf("%s/news?p=%d", f.baseURL, page)
}

// FetchPage returns the raw markup of one listing page.
func (f *Fetcher) FetchPage(ctx context.Context, page int) (string, error) {
	pageURL := f.PageURL(page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{Page: page, URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{Page: page, URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{Page: page, URL: pageURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{Page: page, URL: pageURL, Err: err}
	}

	return string(body), nil
}
