package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageURLMapping(t *testing.T) {
	t.Parallel()

	f := NewFetcher("https://news.example.com/", nil)

	require.Equal(t, "https://news.example.com/", f.PageURL(1))
	require.Equal(t, "https://news.example.com/news?p=2", f.PageURL(2))
	require.Equal(t, "https://news.example.com/news?p=5", f.PageURL(5))
}

func TestFetchPage(t *testing.T) {
	t.Parallel()

	var gotPaths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.RequestURI())
		_, _ = w.Write([]byte("<html>page</html>"))
	}))
	defer server.Close()

	f := NewFetcher(server.URL, server.Client())
	ctx := context.Background()

	markup, err := f.FetchPage(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "<html>page</html>", markup)

	_, err = f.FetchPage(ctx, 3)
	require.NoError(t, err)

	require.Equal(t, []string{"/", "/news?p=3"}, gotPaths)
}

func TestFetchPageNon2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewFetcher(server.URL, server.Client())

	_, err := f.FetchPage(context.Background(), 1)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	require.Equal(t, 1, fetchErr.Page)
}

func TestFetchPageNetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Refuse connections.

	f := NewFetcher(server.URL, nil)

	_, err := f.FetchPage(context.Background(), 1)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.NotNil(t, errors.Unwrap(err))
}
