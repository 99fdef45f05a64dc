package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultPromptName = "Default Categorization Prompt"

const defaultPromptText = `Analyze the following Hacker News post title and determine which categories it belongs to from the provided list.
Return ONLY a JSON array of category names, with no additional text or explanation.
Example response: ["technology", "ai"]
If no categories apply, return an empty array: []`

type seedTopic struct {
	name        string
	description string
	keywords    []string
}

var defaultTopics = []seedTopic{
	{
		name:        "technology",
		description: "General technology news and updates",
		keywords:    []string{"tech", "software", "hardware", "gadget", "device", "innovation"},
	},
	{
		name:        "ai",
		description: "Artificial intelligence and machine learning",
		keywords:    []string{"artificial intelligence", "machine learning", "neural network", "deep learning", "gpt", "llm", "chatgpt", "gemini", "claude"},
	},
	{
		name:        "programming",
		description: "Software development and programming",
		keywords:    []string{"code", "developer", "javascript", "python", "rust", "golang", "typescript", "framework", "library", "api"},
	},
	{
		name:        "business",
		description: "Business, startups, and entrepreneurship",
		keywords:    []string{"startup", "funding", "venture capital", "vc", "acquisition", "ipo", "entrepreneur", "ceo", "revenue", "profit"},
	},
	{
		name:        "politics",
		description: "Political news and discussions",
		keywords:    []string{"government", "election", "policy", "biden", "trump", "congress", "senate", "democrat", "republican", "legislation"},
	},
	{
		name:        "science",
		description: "Scientific discoveries and research",
		keywords:    []string{"research", "study", "discovery", "physics", "biology", "chemistry", "astronomy", "experiment", "scientist", "journal"},
	},
}

// Seed inserts the default prompt, topics and keywords when the reference
// tables are empty. It runs once at startup; populated tables are left
// untouched so operator edits survive restarts.
func (s *Store) Seed(ctx context.Context) error {
	promptCount, err := s.CountPrompts(ctx)
	if err != nil {
		return err
	}
	topicCount, err := s.CountTopics(ctx)
	if err != nil {
		return err
	}
	if promptCount > 0 && topicCount > 0 {
		log.Debug().Msg("Reference data already present, skipping seed")
		return nil
	}

	now := time.Now().UnixMilli()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	if promptCount == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO prompts (name, prompt_text, created_at) VALUES (?, ?, ?)`,
			defaultPromptName, defaultPromptText, now)
		if err != nil {
			return fmt.Errorf("seed default prompt: %w", err)
		}
		log.Info().Msg("Seeded default categorization prompt")
	}

	if topicCount == 0 {
		for _, topic := range defaultTopics {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO topics (name, description, created_at) VALUES (?, ?, ?)`,
				topic.name, topic.description, now)
			if err != nil {
				return fmt.Errorf("seed topic %s: %w", topic.name, err)
			}
			topicID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("seed topic %s id: %w", topic.name, err)
			}

			for _, keyword := range topic.keywords {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO keywords (topic_id, keyword, created_at) VALUES (?, ?, ?)`,
					topicID, keyword, now)
				if err != nil {
					return fmt.Errorf("seed keyword %s: %w", keyword, err)
				}
			}
		}
		log.Info().Int("topics", len(defaultTopics)).Msg("Seeded default topics and keywords")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}
	return nil
}
