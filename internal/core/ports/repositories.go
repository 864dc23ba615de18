package ports

import (
	"context"
	"time"

	"github.com/Christopher96/places-online/internal/core/domain"
)

// SampleJournal keeps a log of the samples a tracker consumed, so a walk
// can be replayed later.
type SampleJournal interface {
	RecordPosition(ctx context.Context, s domain.PositionSample) error
	RecordHeading(ctx context.Context, s domain.HeadingSample) error
	LatestPosition(ctx context.Context) (*domain.PositionSample, error)
	Since(ctx context.Context, from time.Time, limit int) ([]JournalEntry, error)
}

// JournalEntry is one recorded sample; exactly one of Position and Heading is set.
type JournalEntry struct {
	Position *domain.PositionSample `json:"position,omitempty"`
	Heading  *domain.HeadingSample  `json:"heading,omitempty"`
}

// Time returns the sample timestamp.
func (e JournalEntry) Time() time.Time {
	if e.Position != nil {
		return e.Position.Time
	}
	if e.Heading != nil {
		return e.Heading.Time
	}
	return time.Time{}
}
