package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"hnpulse/ingestor/internal/classify"
	"hnpulse/ingestor/internal/ingest"
	"hnpulse/ingestor/internal/store"
)

const (
	defaultPage      = 1
	defaultLimit     = 30
	maxLimit         = 100
	defaultBatchSize = 5
	maxBatchSize     = 50

	// Background operations launched by fire-and-forget endpoints get
	// their own deadline, detached from the request context.
	backgroundTimeout = 10 * time.Minute
)

// Handler holds the core components the route handlers delegate to.
type Handler struct {
	store      *store.Store
	ingestor   *ingest.Ingestor
	categorize *ingest.Categorizer
	classifier *classify.Client

	windowDays int
	loc        *time.Location
	maxPages   int
}

// NewHandler creates a handler instance over the assembled pipeline.
func NewHandler(st *store.Store, ing *ingest.Ingestor, cat *ingest.Categorizer, cl *classify.Client, windowDays int, loc *time.Location, maxPages int) *Handler {
	return &Handler{
		store:      st,
		ingestor:   ing,
		categorize: cat,
		classifier: cl,
		windowDays: windowDays,
		loc:        loc,
		maxPages:   maxPages,
	}
}

// GetStories lists stories from the configured calendar-day window,
// newest first, with page/limit pagination.
func (h *Handler) GetStories(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	query := r.URL.Query()
	page := positiveIntParam(query.Get("page"), defaultPage)
	limit := positiveIntParam(query.Get("limit"), defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	homepageOnly := query.Get("filter") == "homepage"

	since := store.CutoffMillis(time.Now(), h.windowDays, h.loc)

	stories, err := h.store.ListWindow(r.Context(), since, page, limit, homepageOnly)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch stories")
		writeError(w, http.StatusInternalServerError, "Failed to fetch stories")
		return
	}

	writeJSON(w, log, http.StatusOK, stories)
}

// GetTopics returns all configured topics.
func (h *Handler) GetTopics(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	topics, err := h.store.AllTopics(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch topics")
		writeError(w, http.StatusInternalServerError, "Failed to fetch topics")
		return
	}

	writeJSON(w, log, http.StatusOK, topics)
}

// GetPrompt returns the active categorization prompt.
func (h *Handler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	prompt, err := h.store.ActivePrompt(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch active prompt")
		writeError(w, http.StatusInternalServerError, "Failed to fetch prompt")
		return
	}
	if prompt == nil {
		writeError(w, http.StatusNotFound, "No active prompt")
		return
	}

	writeJSON(w, log, http.StatusOK, prompt)
}

// StartFetch kicks off a multi-page ingestion pass in the background and
// returns immediately. An already-running pass is not an error for the
// caller; the trigger is simply dropped.
func (h *Handler) StartFetch(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	pages := positiveIntParam(r.URL.Query().Get("pages"), h.maxPages)
	if pages > h.maxPages {
		pages = h.maxPages
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := h.ingestor.Ingest(ctx, pages); err != nil {
			log.Error().Err(err).Int("pages", pages).Msg("Background ingestion failed")
		}
	}()

	writeJSON(w, log, http.StatusAccepted, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Started fetching %d pages in the background", pages),
	})
}

// StartCategorize kicks off a categorization run in the background.
func (h *Handler) StartCategorize(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	batchSize := positiveIntParam(r.URL.Query().Get("batchSize"), defaultBatchSize)
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := h.categorize.Run(ctx, batchSize); err != nil {
			log.Error().Err(err).Int("batch_size", batchSize).Msg("Background categorization failed")
		}
	}()

	writeJSON(w, log, http.StatusAccepted, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Started categorizing up to %d stories in the background", batchSize),
	})
}

// ClassifierStatus reports whether the classification quota latch is set.
func (h *Handler) ClassifierStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, hlog.FromRequest(r), http.StatusOK, map[string]any{
		"success":         true,
		"quota_exhausted": h.classifier.QuotaExhausted(),
	})
}

// ClassifierReset clears the quota latch so classification resumes.
func (h *Handler) ClassifierReset(w http.ResponseWriter, r *http.Request) {
	h.classifier.ResetQuota()
	writeJSON(w, hlog.FromRequest(r), http.StatusOK, map[string]any{
		"success": true,
		"message": "Classification quota state has been reset",
	})
}

func positiveIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, log *zerolog.Logger, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
