package models

// Topic represents a row in the 'topics' table
type Topic struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
}

// Keyword represents a row in the 'keywords' table. Keywords are seed
// reference data tied to a topic; the classification call itself does
// not consult them.
type Keyword struct {
	ID        int64  `db:"id" json:"id"`
	TopicID   int64  `db:"topic_id" json:"topic_id"`
	Keyword   string `db:"keyword" json:"keyword"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// Prompt represents a row in the 'prompts' table. At most one prompt is
// active at a time; its text is prepended to every classification request.
type Prompt struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	PromptText string `db:"prompt_text" json:"prompt_text"`
	CreatedAt  int64  `db:"created_at" json:"created_at"`
	IsActive   int    `db:"is_active" json:"is_active"`
}
