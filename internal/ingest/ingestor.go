// Package ingest composes the fetch-parse-store cycle and the
// categorization pass, and owns the run-in-progress guards that keep
// concurrent triggers from interleaving.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"hnpulse/ingestor/internal/scrape"
	"hnpulse/ingestor/internal/store"
)

// IngestError reports a failed ingestion pass. Only a page-1 failure is
// an error; later pages abort the rest of the pass but keep what already
// landed.
type IngestError struct {
	Page int
	Err  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest aborted on page %d: %v", e.Page, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// Ingestor drives multi-page fetch-parse-store passes. Pages are fetched
// strictly one at a time with a pacing delay, and each page's stories are
// stored before the next fetch starts, so partial progress survives a
// later page's failure.
type Ingestor struct {
	fetcher     *scrape.Fetcher
	store       *store.Store
	categorizer *Categorizer // nil disables the post-ingest categorization run
	pageSize    int
	pageDelay   time.Duration
	batchSize   int

	running atomic.Bool
}

// NewIngestor wires the orchestrator. A nil categorizer disables the
// optional categorization run after each pass.
func NewIngestor(fetcher *scrape.Fetcher, st *store.Store, categorizer *Categorizer, pageSize int, pageDelay time.Duration, batchSize int) *Ingestor {
	return &Ingestor{
		fetcher:     fetcher,
		store:       st,
		categorizer: categorizer,
		pageSize:    pageSize,
		pageDelay:   pageDelay,
		batchSize:   batchSize,
	}
}

// Ingest fetches, parses and stores up to pages listing pages. At most
// one pass executes at a time; an overlapping trigger gets
// ErrRunInProgress. A page-1 failure returns an IngestError; a failure on
// a later page aborts the remaining pages without rolling back stored
// ones.
func (in *Ingestor) Ingest(ctx context.Context, pages int) error {
	if !in.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer in.running.Store(false)

	if pages < 1 {
		pages = 1
	}

	// One scrape-batch timestamp shared by every story in this pass.
	fetchedAt := time.Now().UnixMilli()
	totalStored := 0

	for page := 1; page <= pages; page++ {
		if page > 1 {
			select {
			case <-time.After(in.pageDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		stored, err := in.ingestPage(ctx, page, fetchedAt)
		if err != nil {
			if page == 1 {
				return &IngestError{Page: page, Err: err}
			}
			log.Warn().
				Err(err).
				Int("page", page).
				Int("stored", totalStored).
				Msg("Page fetch failed, keeping earlier pages and aborting pass")
			break
		}
		totalStored += stored
	}

	log.Info().Int("stored", totalStored).Int("pages", pages).Msg("Ingestion pass finished")

	if in.categorizer != nil {
		if err := in.categorizer.Run(ctx, in.batchSize); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				log.Debug().Msg("Categorization already running, skipping post-ingest run")
			} else {
				log.Error().Err(err).Msg("Post-ingest categorization run failed")
			}
		}
	}

	return nil
}

func (in *Ingestor) ingestPage(ctx context.Context, page int, fetchedAt int64) (int, error) {
	markup, err := in.fetcher.FetchPage(ctx, page)
	if err != nil {
		return 0, err
	}

	stories, err := scrape.ParsePage(markup, page, in.pageSize)
	if err != nil {
		return 0, err
	}

	stored, err := in.store.UpsertBatch(ctx, stories, fetchedAt)
	if err != nil {
		return 0, fmt.Errorf("store page %d: %w", page, err)
	}

	log.Info().Int("page", page).Int("stored", stored).Msg("Listing page ingested")
	return stored, nil
}

// RunPeriodic blocks, driving the two fixed-interval triggers: a short
// single-page freshness refresh and a longer full multi-page refresh. A
// tick that fires while a pass is still running is skipped by the guard.
// Failures are logged and the loop keeps going; resilience comes from the
// next tick.
func (in *Ingestor) RunPeriodic(ctx context.Context, refreshEvery, fullEvery time.Duration, fullPages int) {
	refresh := time.NewTicker(refreshEvery)
	defer refresh.Stop()
	full := time.NewTicker(fullEvery)
	defer full.Stop()

	log.Info().
		Dur("refresh_interval", refreshEvery).
		Dur("full_refresh_interval", fullEvery).
		Int("full_pages", fullPages).
		Msg("Periodic ingestion started")

	for {
		select {
		case <-full.C:
			in.runTrigger(ctx, fullPages, "full refresh")
		case <-refresh.C:
			in.runTrigger(ctx, 1, "freshness refresh")
		case <-ctx.Done():
			log.Info().Msg("Periodic ingestion stopped")
			return
		}
	}
}

func (in *Ingestor) runTrigger(ctx context.Context, pages int, trigger string) {
	err := in.Ingest(ctx, pages)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		log.Debug().Str("trigger", trigger).Msg("Pass already running, skipping tick")
	case errors.Is(err, context.Canceled):
	default:
		log.Error().Err(err).Str("trigger", trigger).Msg("Scheduled ingestion pass failed")
	}
}
