package price

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/magsand/smartcharge/core/logger"
	"github.com/magsand/smartcharge/core/model"
)

// ErrSourceUnavailable is returned by a SeriesReader when a raw source has no
// data, e.g. tomorrow's prices before publication.
var ErrSourceUnavailable = errors.New("price: source unavailable")

// ErrDataUnavailable is returned when a required source is missing or
// malformed. The evaluation must be retried on the next trigger instead of
// proceeding with a partial schedule.
var ErrDataUnavailable = errors.New("price: required data unavailable")

// SeriesReader provides raw hourly price series by source id.
type SeriesReader interface {
	GetSeries(ctx context.Context, id string) ([]model.PricePoint, error)
}

// Source names one raw price series and whether evaluation may proceed
// without it.
type Source struct {
	ID       string `json:"id"`
	Required bool   `json:"required"`
}

// Normalizer merges one or more raw hourly price sources into a single
// ordered timeline anchored at the current hour.
type Normalizer struct {
	reader  SeriesReader
	sources []Source
	log     logger.Logger
}

// NewNormalizer creates a Normalizer for the given sources.
func NewNormalizer(reader SeriesReader, sources []Source, log logger.Logger) (*Normalizer, error) {
	if reader == nil {
		return nil, fmt.Errorf("price: nil reader")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("price: at least one source is required")
	}
	return &Normalizer{reader: reader, sources: sources, log: log}, nil
}

// Normalize builds the timeline from the latest raw series. Hours strictly in
// the past are dropped; the current partial hour keeps its price. A missing
// required source yields ErrDataUnavailable; a missing optional source leaves
// its hours unknown.
func (n *Normalizer) Normalize(ctx context.Context, now time.Time) (model.PriceTimeline, error) {
	var merged []model.PricePoint
	for _, src := range n.sources {
		points, err := n.reader.GetSeries(ctx, src.ID)
		if err != nil || len(points) == 0 {
			if src.Required {
				if err == nil {
					err = ErrSourceUnavailable
				}
				return model.PriceTimeline{}, fmt.Errorf("%w: source %s: %v", ErrDataUnavailable, src.ID, err)
			}
			n.log.Debugf("optional source %s unavailable: %v", src.ID, err)
			continue
		}
		merged = append(merged, points...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].HourStart.Before(merged[j].HourStart)
	})

	var out []model.PricePoint
	for _, p := range merged {
		if !p.End().After(now) {
			continue
		}
		// Overlapping sources keep the first point per hour.
		if len(out) > 0 && out[len(out)-1].HourStart.Equal(p.HourStart) {
			continue
		}
		out = append(out, p)
	}
	return model.PriceTimeline{Points: out}, nil
}
