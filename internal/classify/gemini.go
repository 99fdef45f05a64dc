// Package classify wraps the external text-classification call and its
// quota bookkeeping.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrQuotaExhausted indicates the backing service reported a rate or
// quota limit. Once observed, the client short-circuits every call until
// ResetQuota is invoked.
var ErrQuotaExhausted = errors.New("classification quota exhausted")

// Config holds the settings for a classification client.
type Config struct {
	Endpoint   string
	Model      string
	APIKey     string
	HTTPClient *http.Client
}

// Client calls the Gemini generateContent endpoint to map a story title
// onto a category list. The quota-exhausted latch is owned per instance,
// so independent clients carry independent quota state.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client

	mu        sync.Mutex
	exhausted bool
}

// NewClient builds a client from configuration. A nil HTTP client gets a
// 30 second timeout default.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// QuotaExhausted reports whether the quota latch is set.
func (c *Client) QuotaExhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// ResetQuota clears the quota latch so classification calls resume.
func (c *Client) ResetQuota() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exhausted = false
	log.Info().Msg("Classification quota state reset")
}

func (c *Client) markExhausted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.exhausted {
		c.exhausted = true
		log.Warn().Msg("Classification quota exhausted, suppressing further calls")
	}
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
}

// Classify asks the model which topics a story title belongs to. It fails
// closed: a nil result with a nil error means the story stays
// uncategorized. The only non-nil error is ErrQuotaExhausted, which the
// caller uses to abort its batch. An empty (non-nil) result means the
// model answered with zero matching topics.
func (c *Client) Classify(ctx context.Context, title, promptText string, topicNames []string) ([]string, error) {
	if c.apiKey == "" {
		return nil, nil
	}
	if promptText == "" || len(topicNames) == 0 {
		log.Debug().Msg("No prompt or topics configured for classification")
		return nil, nil
	}
	if c.QuotaExhausted() {
		return nil, ErrQuotaExhausted
	}

	prompt := fmt.Sprintf("%s\n\nCategories: %s\n\nTitle: %q",
		promptText, strings.Join(topicNames, ", "), title)

	payload, err := json.Marshal(generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal classification request")
		return nil, nil
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Error().Err(err).Msg("Failed to build classification request")
		return nil, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Classification request failed")
		return nil, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	// The quota marker is only meaningful on error responses; a model
	// completion is free to mention the same string.
	if resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode >= http.StatusBadRequest && bytes.Contains(body, []byte("RESOURCE_EXHAUSTED"))) {
		c.markExhausted()
		return nil, ErrQuotaExhausted
	}
	if resp.StatusCode >= http.StatusBadRequest {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", strings.TrimSpace(string(body))).
			Msg("Classification service returned an error")
		return nil, nil
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		log.Error().Err(err).Msg("Failed to decode classification response")
		return nil, nil
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return nil, nil
	}

	return parseCategories(decoded.Candidates[0].Content.Parts[0].Text), nil
}

// parseCategories converts the free-text model output into a category
// list. Models habitually wrap JSON in code fences, so those are stripped
// before parsing. Valid JSON that is not a string array normalizes to nil.
func parseCategories(text string) []string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.Trim(cleaned, "`")
	cleaned = strings.TrimSpace(cleaned)

	var categories []string
	if err := json.Unmarshal([]byte(cleaned), &categories); err != nil {
		log.Debug().Str("text", text).Msg("Model output was not a JSON string array")
		return nil
	}
	if categories == nil {
		categories = []string{}
	}
	return categories
}
