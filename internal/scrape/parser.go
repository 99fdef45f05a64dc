package scrape

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"hnpulse/ingestor/internal/models"
)

var (
	leadingDigits = regexp.MustCompile(`(\d+)`)
	relativeAge   = regexp.MustCompile(`(\d+)\s+(\w+)\s+ago`)
)

// The machine-readable age attribute carries an ISO timestamp, optionally
// followed by the epoch seconds: "2025-03-01T12:32:18 1740832338".
const ageTimeLayout = "2006-01-02T15:04:05"

// ParsePage extracts story records from one listing page's markup. A
// malformed row is skipped, never fatal; rows missing the id or title are
// discarded silently. The error return only fires when the document
// itself cannot be parsed.
func ParsePage(markup string, page, pageSize int) ([]models.Story, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse listing page %d: %w", page, err)
	}

	now := time.Now()
	offset := (page - 1) * pageSize

	var stories []models.Story
	doc.Find("tr.athing").Each(func(i int, row *goquery.Selection) {
		id, _ := row.Attr("id")
		titleLink := row.Find(".titleline > a").First()
		title := strings.TrimSpace(titleLink.Text())
		if id == "" || title == "" {
			return
		}

		story := models.Story{
			ID:       id,
			Title:    title,
			Position: sql.NullInt64{Int64: int64(i + offset), Valid: true},
		}

		if href, ok := titleLink.Attr("href"); ok && href != "" {
			story.URL = sql.NullString{String: href, Valid: true}
		}

		// Score and comment count live in the metadata row that follows
		// the title row.
		subtext := row.Next().Find(".subtext")
		story.Points = parsePoints(subtext)
		story.Comments = parseCommentCount(subtext)

		if submitted, ok := parseSubmittedAt(subtext, now); ok {
			story.SubmittedAt = sql.NullInt64{Int64: submitted, Valid: true}
		}

		stories = append(stories, story)
	})

	log.Debug().Int("page", page).Int("stories", len(stories)).Msg("Parsed listing page")
	return stories, nil
}

// parsePoints reads the score element. Job postings and some self posts
// carry no score at all; those parse as 0.
func parsePoints(subtext *goquery.Selection) int {
	text := strings.TrimSpace(subtext.Find(".score").Text())
	match := leadingDigits.FindString(text)
	if match == "" {
		return 0
	}
	points, err := strconv.Atoi(match)
	if err != nil || points < 0 {
		return 0
	}
	return points
}

// parseCommentCount locates the last anchor mentioning comments. "discuss"
// links and missing anchors count as 0; "1 comment" parses the same as
// the plural phrasing.
func parseCommentCount(subtext *goquery.Selection) int {
	count := 0
	subtext.Find("a").Each(func(_ int, link *goquery.Selection) {
		text := strings.TrimSpace(link.Text())
		if !strings.Contains(text, "comment") {
			return
		}
		if match := leadingDigits.FindString(text); match != "" {
			if parsed, err := strconv.Atoi(match); err == nil {
				count = parsed
			}
		}
	})
	return count
}

// parseSubmittedAt extracts the submission time in epoch millis. The age
// element's title attribute embeds an absolute timestamp; the displayed
// "N hours ago" phrasing rounds to the unit and is only a last resort.
func parseSubmittedAt(subtext *goquery.Selection, now time.Time) (int64, bool) {
	age := subtext.Find(".age").First()
	if age.Length() == 0 {
		return 0, false
	}

	if attr, ok := age.Attr("title"); ok && attr != "" {
		parts := strings.Fields(attr)
		if len(parts) == 2 {
			if epoch, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				return epoch * 1000, true
			}
		}
		if ts, err := time.Parse(ageTimeLayout, parts[0]); err == nil {
			return ts.UnixMilli(), true
		}
	}

	return relativeEpochMillis(strings.TrimSpace(age.Text()), now)
}

func relativeEpochMillis(text string, now time.Time) (int64, bool) {
	match := relativeAge.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}

	var span time.Duration
	switch unit := match[2]; {
	case strings.HasPrefix(unit, "minute"):
		span = time.Duration(value) * time.Minute
	case strings.HasPrefix(unit, "hour"):
		span = time.Duration(value) * time.Hour
	case strings.HasPrefix(unit, "day"):
		span = time.Duration(value) * 24 * time.Hour
	case strings.HasPrefix(unit, "week"):
		span = time.Duration(value) * 7 * 24 * time.Hour
	case strings.HasPrefix(unit, "month"):
		span = time.Duration(value) * 30 * 24 * time.Hour
	case strings.HasPrefix(unit, "year"):
		span = time.Duration(value) * 365 * 24 * time.Hour
	default:
		return 0, false
	}

	return now.Add(-span).UnixMilli(), true
}
