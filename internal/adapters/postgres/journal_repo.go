package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/core/ports"
	"github.com/Christopher96/places-online/internal/pkg/metrics"
)

const (
	kindPosition = "position"
	kindHeading  = "heading"
)

// SampleJournal implements ports.SampleJournal.
type SampleJournal struct {
	db *DB
}

func NewSampleJournal(db *DB) *SampleJournal {
	return &SampleJournal{db: db}
}

func (r *SampleJournal) RecordPosition(ctx context.Context, s domain.PositionSample) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO observer_samples (time, kind, lat, lon)
		VALUES ($1, $2, $3, $4)
	`, s.Time, kindPosition, s.Point.Lat, s.Point.Lon)
	observe(kindPosition, err)
	return err
}

func (r *SampleJournal) RecordHeading(ctx context.Context, s domain.HeadingSample) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO observer_samples (time, kind, heading)
		VALUES ($1, $2, $3)
	`, s.Time, kindHeading, s.Degrees)
	observe(kindHeading, err)
	return err
}

// LatestPosition returns nil when no position was ever recorded.
func (r *SampleJournal) LatestPosition(ctx context.Context) (*domain.PositionSample, error) {
	var s domain.PositionSample
	err := r.db.Pool.QueryRow(ctx, `
		SELECT time, lat, lon
		FROM observer_samples
		WHERE kind = $1
		ORDER BY time DESC
		LIMIT 1
	`, kindPosition).Scan(&s.Time, &s.Point.Lat, &s.Point.Lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Since returns samples recorded at or after from, oldest first.
func (r *SampleJournal) Since(ctx context.Context, from time.Time, limit int) ([]ports.JournalEntry, error) {
	if limit <= 0 || limit > 10000 {
		limit = 10000
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT time, kind, lat, lon, heading
		FROM observer_samples
		WHERE time >= $1
		ORDER BY time, id
		LIMIT $2
	`, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ports.JournalEntry
	for rows.Next() {
		var (
			t                 time.Time
			kind              string
			lat, lon, heading sql.NullFloat64
		)
		if err := rows.Scan(&t, &kind, &lat, &lon, &heading); err != nil {
			return nil, err
		}
		switch kind {
		case kindPosition:
			entries = append(entries, ports.JournalEntry{Position: &domain.PositionSample{
				Point: domain.GeoPoint{Lat: lat.Float64, Lon: lon.Float64},
				Time:  t,
			}})
		case kindHeading:
			entries = append(entries, ports.JournalEntry{Heading: &domain.HeadingSample{
				Degrees: heading.Float64,
				Time:    t,
			}})
		}
	}
	return entries, rows.Err()
}

func observe(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.JournalWrites.WithLabelValues(kind, status).Inc()
}
