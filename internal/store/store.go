package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog/log"

	"hnpulse/ingestor/internal/database"
	"hnpulse/ingestor/internal/models"
)

// Store provides keyed access to stories and the categorization reference
// data. It is constructed once with an open database handle and injected
// into the pipeline components; it does not own the handle's lifecycle.
type Store struct {
	db *database.DB
}

// New creates a story store backed by the given database.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// UpsertBatch writes a scrape batch. Each row is upserted independently
// inside a single transaction; a failing row is logged and skipped without
// aborting its siblings. The categories column is never written here, so a
// re-fetch cannot erase a previously assigned categorization.
func (s *Store) UpsertBatch(ctx context.Context, stories []models.Story, fetchedAt int64) (int, error) {
	if len(stories) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO stories (id, title, url, points, comments, fetched_at, submitted_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			points = excluded.points,
			comments = excluded.comments,
			fetched_at = excluded.fetched_at,
			submitted_at = excluded.submitted_at,
			position = excluded.position;`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert statement: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, story := range stories {
		_, err := stmt.ExecContext(ctx,
			story.ID, story.Title, story.URL, story.Points, story.Comments,
			fetchedAt, story.SubmittedAt, story.Position,
		)
		if err != nil {
			log.Error().Err(err).Str("story_id", story.ID).Msg("Failed to upsert story")
			continue
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert transaction: %w", err)
	}

	return stored, nil
}

// ListWindow returns stories whose effective timestamp (submission time,
// falling back to scrape time) is at or after since, newest first, with
// offset pagination. When homepageOnly is set, only stories observed on
// the primary listing (rank present) are returned.
func (s *Store) ListWindow(ctx context.Context, since int64, page, pageSize int, homepageOnly bool) ([]models.Story, error) {
	if page < 1 {
		page = 1
	}

	builder := sq.Select("*").
		From("stories").
		Where(sq.GtOrEq{"COALESCE(submitted_at, fetched_at)": since}).
		OrderBy("COALESCE(submitted_at, fetched_at) DESC").
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize))

	if homepageOnly {
		builder = builder.Where("position IS NOT NULL")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build window query: %w", err)
	}

	var stories []models.Story
	if err := s.db.SelectContext(ctx, &stories, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Story{}, nil
		}
		return nil, fmt.Errorf("query story window: %w", err)
	}
	if stories == nil {
		stories = []models.Story{}
	}
	return stories, nil
}

// ListUncategorized returns up to limit stories that have never been
// categorized, most recently fetched first.
func (s *Store) ListUncategorized(ctx context.Context, limit int) ([]models.Story, error) {
	var stories []models.Story
	err := s.db.SelectContext(ctx, &stories, `
		SELECT * FROM stories
		WHERE categories IS NULL
		ORDER BY fetched_at DESC
		LIMIT ?`, limit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Story{}, nil
		}
		return nil, fmt.Errorf("query uncategorized stories: %w", err)
	}
	return stories, nil
}

// SetCategories records the classification result for a story. An empty
// list is stored as "[]", meaning categorized with no topic matched, which
// is distinct from never categorized (NULL). Updating a story that no
// longer exists is a no-op, not an error.
func (s *Store) SetCategories(ctx context.Context, id string, categories []string) error {
	if categories == nil {
		categories = []string{}
	}
	encoded, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("encode categories for story %s: %w", id, err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE stories SET categories = ? WHERE id = ?`, string(encoded), id)
	if err != nil {
		return fmt.Errorf("update categories for story %s: %w", id, err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		log.Debug().Str("story_id", id).Msg("Story vanished before categorization landed")
	}
	return nil
}

// CountTopics returns the number of topic rows.
func (s *Store) CountTopics(ctx context.Context) (int, error) {
	return s.countTable(ctx, "topics")
}

// CountPrompts returns the number of prompt rows.
func (s *Store) CountPrompts(ctx context.Context) (int, error) {
	return s.countTable(ctx, "prompts")
}

func (s *Store) countTable(ctx context.Context, table string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+table); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	return count, nil
}

// ActivePrompt returns the newest active prompt, or nil when none exists.
func (s *Store) ActivePrompt(ctx context.Context) (*models.Prompt, error) {
	var prompt models.Prompt
	err := s.db.GetContext(ctx, &prompt,
		`SELECT * FROM prompts WHERE is_active = 1 ORDER BY id DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query active prompt: %w", err)
	}
	return &prompt, nil
}

// AllTopics returns every topic ordered by name.
func (s *Store) AllTopics(ctx context.Context) ([]models.Topic, error) {
	var topics []models.Topic
	if err := s.db.SelectContext(ctx, &topics, `SELECT * FROM topics ORDER BY name`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Topic{}, nil
		}
		return nil, fmt.Errorf("query topics: %w", err)
	}
	return topics, nil
}
