package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"hnpulse/ingestor/internal/classify"
	"hnpulse/ingestor/internal/store"
)

// ErrRunInProgress is returned when a trigger arrives while a run is
// already executing. Overlapping triggers are rejected, not queued.
var ErrRunInProgress = errors.New("run already in progress")

// Categorizer drives the asynchronous categorization pass: it selects
// uncategorized stories in bounded batches, classifies them one at a time
// with a pacing delay, and writes results back. At most one run executes
// at a time.
type Categorizer struct {
	store  *store.Store
	client *classify.Client
	delay  time.Duration

	running atomic.Bool
}

// NewCategorizer wires the scheduler against the store and the
// classification client.
func NewCategorizer(st *store.Store, client *classify.Client, delay time.Duration) *Categorizer {
	return &Categorizer{store: st, client: client, delay: delay}
}

// Run processes one batch of uncategorized stories. Stories skipped
// because of quota exhaustion stay uncategorized and are picked up by a
// future run once the quota resets.
func (c *Categorizer) Run(ctx context.Context, batchSize int) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer c.running.Store(false)

	if c.client.QuotaExhausted() {
		log.Info().Msg("Quota exhausted, skipping categorization run")
		return nil
	}

	stories, err := c.store.ListUncategorized(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("load uncategorized stories: %w", err)
	}
	if len(stories) == 0 {
		log.Debug().Msg("No uncategorized stories found")
		return nil
	}

	prompt, err := c.store.ActivePrompt(ctx)
	if err != nil {
		return fmt.Errorf("load active prompt: %w", err)
	}
	topics, err := c.store.AllTopics(ctx)
	if err != nil {
		return fmt.Errorf("load topics: %w", err)
	}
	if prompt == nil || len(topics) == 0 {
		log.Warn().Msg("No active prompt or topics, skipping categorization run")
		return nil
	}

	topicNames := make([]string, len(topics))
	for i, topic := range topics {
		topicNames[i] = topic.Name
	}

	log.Info().Int("batch", len(stories)).Msg("Starting categorization run")

	for i, story := range stories {
		categories, err := c.client.Classify(ctx, story.Title, prompt.PromptText, topicNames)
		if errors.Is(err, classify.ErrQuotaExhausted) {
			log.Warn().
				Int("remaining", len(stories)-i).
				Msg("Quota exhausted mid-run, aborting remaining batch")
			return nil
		}

		if categories == nil {
			log.Debug().Str("story_id", story.ID).Msg("Story left uncategorized")
		} else {
			if err := c.store.SetCategories(ctx, story.ID, categories); err != nil {
				log.Error().Err(err).Str("story_id", story.ID).Msg("Failed to persist categories")
			} else {
				log.Info().
					Str("story_id", story.ID).
					Strs("categories", categories).
					Msg("Story categorized")
			}
		}

		// Fixed pacing between calls to respect the external rate limit.
		if i < len(stories)-1 {
			select {
			case <-time.After(c.delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	log.Info().Int("batch", len(stories)).Msg("Categorization run complete")
	return nil
}
