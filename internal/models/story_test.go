package models

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoryJSONNullFields(t *testing.T) {
	t.Parallel()

	// A discussion-only, never-categorized story off the listing: the
	// optional fields serialize as plain null, not as wrapper objects.
	story := Story{ID: "100", Title: "Ask HN: anything", Points: 3, FetchedAt: 5000}

	body, err := json.Marshal(story)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id": "100",
		"title": "Ask HN: anything",
		"url": null,
		"points": 3,
		"comments": 0,
		"fetched_at": 5000,
		"submitted_at": null,
		"position": null,
		"categories": null
	}`, string(body))
}

func TestStoryJSONPopulatedFields(t *testing.T) {
	t.Parallel()

	story := Story{
		ID:          "200",
		Title:       "Linked story",
		URL:         sql.NullString{String: "https://example.com", Valid: true},
		Points:      42,
		Comments:    7,
		FetchedAt:   5000,
		SubmittedAt: sql.NullInt64{Int64: 4000, Valid: true},
		Position:    sql.NullInt64{Int64: 12, Valid: true},
		Categories:  sql.NullString{String: `["ai","science"]`, Valid: true},
	}

	body, err := json.Marshal(story)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id": "200",
		"title": "Linked story",
		"url": "https://example.com",
		"points": 42,
		"comments": 7,
		"fetched_at": 5000,
		"submitted_at": 4000,
		"position": 12,
		"categories": ["ai","science"]
	}`, string(body))
}

func TestStoryJSONRoundTrip(t *testing.T) {
	t.Parallel()

	original := Story{
		ID:         "300",
		Title:      "Round trip",
		URL:        sql.NullString{String: "https://example.com", Valid: true},
		FetchedAt:  5000,
		Position:   sql.NullInt64{Int64: 0, Valid: true},
		Categories: sql.NullString{String: `[]`, Valid: true},
	}

	body, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Story
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Equal(t, original, decoded)

	// Zero-topic categorization survives the trip distinct from null.
	cats, ok := decoded.CategoryList()
	require.True(t, ok)
	require.Empty(t, cats)
}
