package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/stretchr/testify/require"

	"hnpulse/ingestor/internal/classify"
	"hnpulse/ingestor/internal/database"
	"hnpulse/ingestor/internal/ingest"
	"hnpulse/ingestor/internal/models"
	"hnpulse/ingestor/internal/scrape"
	"hnpulse/ingestor/internal/store"
)

type testPipeline struct {
	handler *Handler
	store   *store.Store
	client  *classify.Client
}

// newTestPipeline assembles real components over a temporary database. The
// listing and model endpoints are local test servers so background
// operations complete without leaving the process.
func newTestPipeline(t *testing.T, listingDoc, modelReply string) *testPipeline {
	t.Helper()

	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := store.New(db)

	listing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingDoc)
	}))
	t.Cleanup(listing.Close)

	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, modelReply)
	}))
	t.Cleanup(model.Close)

	client := classify.NewClient(classify.Config{
		Endpoint: model.URL, Model: "m", APIKey: "k", HTTPClient: model.Client(),
	})
	cat := ingest.NewCategorizer(st, client, time.Millisecond)
	ing := ingest.NewIngestor(scrape.NewFetcher(listing.URL, listing.Client()), st, nil, 30, time.Millisecond, 5)

	return &testPipeline{
		handler: NewHandler(st, ing, cat, client, 4, time.UTC, 5),
		store:   st,
		client:  client,
	}
}

func (p *testPipeline) request(t *testing.T, method, target string, handle http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	hlog.NewHandler(zerolog.Nop())(handle).ServeHTTP(rec, req)
	return rec
}

func insertStory(t *testing.T, st *store.Store, id string, age time.Duration, ranked bool) {
	t.Helper()

	story := models.Story{
		ID:          id,
		Title:       "Story " + id,
		SubmittedAt: sql.NullInt64{Int64: time.Now().Add(-age).UnixMilli(), Valid: true},
	}
	if ranked {
		story.Position = sql.NullInt64{Int64: 0, Valid: true}
	}
	_, err := st.UpsertBatch(context.Background(), []models.Story{story}, time.Now().UnixMilli())
	require.NoError(t, err)
}

func TestGetStoriesWindowAndOrder(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, "", "")
	insertStory(t, p.store, "fresh", time.Hour, true)
	insertStory(t, p.store, "older", 48*time.Hour, true)
	insertStory(t, p.store, "stale", 10*24*time.Hour, true)

	rec := p.request(t, http.MethodGet, "/api/stories", p.handler.GetStories)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var stories []models.Story
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stories))
	require.Len(t, stories, 2)
	require.Equal(t, "fresh", stories[0].ID)
	require.Equal(t, "older", stories[1].ID)
}

func TestGetStoriesPaginationParams(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, "", "")
	for i := 0; i < 3; i++ {
		insertStory(t, p.store, fmt.Sprintf("s%d", i), time.Duration(i+1)*time.Hour, true)
	}

	rec := p.request(t, http.MethodGet, "/api/stories?page=2&limit=2", p.handler.GetStories)
	require.Equal(t, http.StatusOK, rec.Code)

	var stories []models.Story
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stories))
	require.Len(t, stories, 1)
	require.Equal(t, "s2", stories[0].ID)

	// Garbage parameters fall back to defaults instead of erroring.
	rec = p.request(t, http.MethodGet, "/api/stories?page=zero&limit=-3", p.handler.GetStories)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stories))
	require.Len(t, stories, 3)
}

func TestGetStoriesHomepageFilter(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, "", "")
	insertStory(t, p.store, "ranked", time.Hour, true)
	insertStory(t, p.store, "archived", time.Hour, false)

	rec := p.request(t, http.MethodGet, "/api/stories?filter=homepage", p.handler.GetStories)
	require.Equal(t, http.StatusOK, rec.Code)

	var stories []models.Story
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stories))
	require.Len(t, stories, 1)
	require.Equal(t, "ranked", stories[0].ID)
}

func TestGetTopicsAndPrompt(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, "", "")

	// Before seeding there is no active prompt.
	rec := p.request(t, http.MethodGet, "/api/prompt", p.handler.GetPrompt)
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, p.store.Seed(context.Background()))

	rec = p.request(t, http.MethodGet, "/api/topics", p.handler.GetTopics)
	require.Equal(t, http.StatusOK, rec.Code)
	var topics []models.Topic
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &topics))
	require.Len(t, topics, 6)

	rec = p.request(t, http.MethodGet, "/api/prompt", p.handler.GetPrompt)
	require.Equal(t, http.StatusOK, rec.Code)
	var prompt models.Prompt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prompt))
	require.NotEmpty(t, prompt.PromptText)
	require.Equal(t, 1, prompt.IsActive)
}

func TestStartFetchRunsInBackground(t *testing.T) {
	t.Parallel()

	doc := `<html><body><table>
<tr class='athing' id='42'>
  <td class="title"><span class="titleline"><a href="https://example.com">Background story</a></span></td>
</tr>
<tr><td class="subtext"><span class="subline">
  <span class="score">5 points</span>
  <span class="age" title="2025-03-01T12:32:18 1740832338"><a href="item?id=42">1 hour ago</a></span>
</span></td></tr>
</table></body></html>`

	p := newTestPipeline(t, doc, "")

	rec := p.request(t, http.MethodPost, "/api/fetch?pages=1", p.handler.StartFetch)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var reply map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.Equal(t, true, reply["success"])

	require.Eventually(t, func() bool {
		stories, err := p.store.ListWindow(context.Background(), 0, 1, 10, false)
		return err == nil && len(stories) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartCategorizeRunsInBackground(t *testing.T) {
	t.Parallel()

	reply := `{"candidates":[{"content":{"parts":[{"text":"[\"science\"]"}]}}]}`
	p := newTestPipeline(t, "", reply)
	require.NoError(t, p.store.Seed(context.Background()))
	insertStory(t, p.store, "u1", time.Hour, true)

	rec := p.request(t, http.MethodPost, "/api/categorize", p.handler.StartCategorize)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		stories, err := p.store.ListUncategorized(context.Background(), 10)
		return err == nil && len(stories) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestClassifierStatusAndReset(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, "", "")

	rec := p.request(t, http.MethodGet, "/api/classifier/status", p.handler.ClassifierStatus)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, false, status["quota_exhausted"])

	// Trip the latch through a quota-limited call, then reset over the API.
	tripped := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(tripped.Close)
	latched := classify.NewClient(classify.Config{
		Endpoint: tripped.URL, Model: "m", APIKey: "k", HTTPClient: tripped.Client(),
	})
	_, err := latched.Classify(context.Background(), "t", "p", []string{"ai"})
	require.ErrorIs(t, err, classify.ErrQuotaExhausted)

	h := NewHandler(p.store, nil, nil, latched, 4, time.UTC, 5)

	rec = p.request(t, http.MethodGet, "/api/classifier/status", h.ClassifierStatus)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, true, status["quota_exhausted"])

	rec = p.request(t, http.MethodPost, "/api/classifier/reset", h.ClassifierReset)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, latched.QuotaExhausted())
}

func TestPositiveIntParam(t *testing.T) {
	t.Parallel()

	require.Equal(t, 7, positiveIntParam("", 7))
	require.Equal(t, 3, positiveIntParam("3", 7))
	require.Equal(t, 7, positiveIntParam("0", 7))
	require.Equal(t, 7, positiveIntParam("-2", 7))
	require.Equal(t, 7, positiveIntParam("abc", 7))
}
