package price

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/magsand/smartcharge/core/model"
)

// rawEntry matches the hourly price attribute format published by nordpool
// style sensors: a start/end pair and the price for that slot.
type rawEntry struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Value *float64 `json:"value"`
}

// ParseRawSeries decodes a raw hourly price payload into price points.
// Entries with a null value (unpublished hours) are skipped.
func ParseRawSeries(payload []byte) ([]model.PricePoint, error) {
	var entries []rawEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("price: decode raw series: %w", err)
	}
	points := make([]model.PricePoint, 0, len(entries))
	for _, e := range entries {
		if e.Value == nil {
			continue
		}
		start, err := parseStamp(e.Start)
		if err != nil {
			return nil, fmt.Errorf("price: bad start %q: %w", e.Start, err)
		}
		points = append(points, model.PricePoint{HourStart: start.Truncate(time.Hour), Price: *e.Value})
	}
	return points, nil
}

func parseStamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02 15:04:05-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp")
}
