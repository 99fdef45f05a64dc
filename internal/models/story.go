package models

import (
	"database/sql"
	"encoding/json"
)

// Story represents a row in the 'stories' table. The primary key is the
// external identifier assigned by the source site, which is the sole
// deduplication key across repeated scrapes.
type Story struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	URL         sql.NullString `db:"url"`
	Points      int            `db:"points"`
	Comments    int            `db:"comments"`
	FetchedAt   int64          `db:"fetched_at"`   // epoch millis, shared per fetch batch
	SubmittedAt sql.NullInt64  `db:"submitted_at"` // epoch millis, absent if unparseable
	Position    sql.NullInt64  `db:"position"`     // global listing rank, absent off-listing
	Categories  sql.NullString `db:"categories"`   // JSON array; NULL means not yet categorized
}

// storyJSON is the wire representation: absent values serialize as plain
// JSON null instead of exposing the sql.Null* wrapper structs, and the
// categories column is decoded into an array.
type storyJSON struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	URL         *string  `json:"url"`
	Points      int      `json:"points"`
	Comments    int      `json:"comments"`
	FetchedAt   int64    `json:"fetched_at"`
	SubmittedAt *int64   `json:"submitted_at"`
	Position    *int64   `json:"position"`
	Categories  []string `json:"categories"`
}

func (s Story) MarshalJSON() ([]byte, error) {
	out := storyJSON{
		ID:        s.ID,
		Title:     s.Title,
		Points:    s.Points,
		Comments:  s.Comments,
		FetchedAt: s.FetchedAt,
	}
	if s.URL.Valid {
		out.URL = &s.URL.String
	}
	if s.SubmittedAt.Valid {
		out.SubmittedAt = &s.SubmittedAt.Int64
	}
	if s.Position.Valid {
		out.Position = &s.Position.Int64
	}
	if cats, ok := s.CategoryList(); ok {
		out.Categories = cats
	}
	return json.Marshal(out)
}

func (s *Story) UnmarshalJSON(data []byte) error {
	var in storyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*s = Story{
		ID:        in.ID,
		Title:     in.Title,
		Points:    in.Points,
		Comments:  in.Comments,
		FetchedAt: in.FetchedAt,
	}
	if in.URL != nil {
		s.URL = sql.NullString{String: *in.URL, Valid: true}
	}
	if in.SubmittedAt != nil {
		s.SubmittedAt = sql.NullInt64{Int64: *in.SubmittedAt, Valid: true}
	}
	if in.Position != nil {
		s.Position = sql.NullInt64{Int64: *in.Position, Valid: true}
	}
	if in.Categories != nil {
		encoded, err := json.Marshal(in.Categories)
		if err != nil {
			return err
		}
		s.Categories = sql.NullString{String: string(encoded), Valid: true}
	}
	return nil
}

// EffectiveTimestamp returns the submission time when known, otherwise
// the scrape time. Window queries order by this value.
func (s *Story) EffectiveTimestamp() int64 {
	if s.SubmittedAt.Valid {
		return s.SubmittedAt.Int64
	}
	return s.FetchedAt
}

// CategoryList decodes the serialized category column. The second return
// is false when the story has never been categorized.
func (s *Story) CategoryList() ([]string, bool) {
	if !s.Categories.Valid {
		return nil, false
	}
	var cats []string
	if err := json.Unmarshal([]byte(s.Categories.String), &cats); err != nil {
		return nil, false
	}
	if cats == nil {
		cats = []string{}
	}
	return cats, true
}
