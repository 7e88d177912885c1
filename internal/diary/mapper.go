package diary

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/dmitrijs2005/tastekeeper/internal/store"
)

// RowToLog maps a restaurant_logs wire row into a VisitedLog. Null optionals
// become empty strings, a null tag list becomes an empty slice, and a rating
// that arrives as text is coerced to a number. Malformed ratings are a
// mapping error, never NaN.
func RowToLog(r store.Row) (VisitedLog, error) {
	rating, err := toFloat(r["rating"])
	if err != nil {
		return VisitedLog{}, fmt.Errorf("rating: %w", err)
	}
	return VisitedLog{
		ID:          toString(r["id"]),
		Name:        toString(r["name"]),
		Location:    toString(r["location"]),
		Rating:      rating,
		DateVisited: toString(r["date_visited"]),
		Review:      toString(r["review"]),
		Tags:        toTags(r["tags"]),
		CreatedAt:   toString(r["created_at"]),
	}, nil
}

// LogDraftRow maps a VisitedLogDraft into its wire payload. Absent optionals
// serialize as nil, omitted tags as an empty list. The store supplies id,
// user_id and created_at.
func LogDraftRow(d VisitedLogDraft) store.Row {
	return store.Row{
		"name":         d.Name,
		"location":     nullable(d.Location),
		"rating":       d.Rating,
		"date_visited": d.DateVisited,
		"review":       nullable(d.Review),
		"tags":         tagsOrEmpty(d.Tags),
	}
}

// RowToEatLater maps an eat_later wire row into an EatLaterEntry.
func RowToEatLater(r store.Row) (EatLaterEntry, error) {
	return EatLaterEntry{
		ID:        toString(r["id"]),
		Name:      toString(r["name"]),
		Location:  toString(r["location"]),
		Notes:     toString(r["notes"]),
		Tags:      toTags(r["tags"]),
		CreatedAt: toString(r["created_at"]),
	}, nil
}

// EatLaterDraftRow maps an EatLaterDraft into its wire payload.
func EatLaterDraftRow(d EatLaterDraft) store.Row {
	return store.Row{
		"name":     d.Name,
		"location": nullable(d.Location),
		"notes":    nullable(d.Notes),
		"tags":     tagsOrEmpty(d.Tags),
	}
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toFloat(v any) (float64, error) {
	var f float64
	switch value := v.(type) {
	case nil:
		return 0, nil
	case float64:
		f = value
	case float32:
		f = float64(value)
	case int:
		f = float64(value)
	case int64:
		f = float64(value)
	case json.Number:
		parsed, err := value.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported numeric value %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value %v is not a finite number", f)
	}
	return f, nil
}

func toTags(v any) []string {
	switch value := v.(type) {
	case []string:
		tags := make([]string, len(value))
		copy(tags, value)
		return tags
	case []any:
		tags := make([]string, 0, len(value))
		for _, t := range value {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	default:
		return []string{}
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
