package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Christopher96/places-online/internal/adapters/postgres"
	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/core/ports"
)

type mockJournal struct {
	latest  *domain.PositionSample
	entries []ports.JournalEntry
	err     error
}

func (m *mockJournal) RecordPosition(context.Context, domain.PositionSample) error { return nil }
func (m *mockJournal) RecordHeading(context.Context, domain.HeadingSample) error   { return nil }

func (m *mockJournal) LatestPosition(context.Context) (*domain.PositionSample, error) {
	return m.latest, m.err
}

func (m *mockJournal) Since(context.Context, time.Time, int) ([]ports.JournalEntry, error) {
	return m.entries, m.err
}

func walk(start time.Time, gap time.Duration) []ports.JournalEntry {
	return []ports.JournalEntry{
		{Position: &domain.PositionSample{Point: domain.GeoPoint{Lat: 37.7882, Lon: -122.4324}, Time: start}},
		{Heading: &domain.HeadingSample{Degrees: 90, Time: start.Add(gap)}},
		{Position: &domain.PositionSample{Point: domain.GeoPoint{Lat: 37.7890, Lon: -122.4324}, Time: start.Add(2 * gap)}},
	}
}

func TestReplaySource_RequestFix(t *testing.T) {
	empty := postgres.NewReplaySource(&mockJournal{}, time.Hour, 0)
	if _, err := empty.RequestFix(context.Background()); !errors.Is(err, domain.ErrLocationUnavailable) {
		t.Errorf("expected ErrLocationUnavailable for empty journal, got %v", err)
	}

	broken := postgres.NewReplaySource(&mockJournal{err: errors.New("connection refused")}, time.Hour, 0)
	if _, err := broken.RequestFix(context.Background()); !errors.Is(err, domain.ErrLocationUnavailable) {
		t.Errorf("expected ErrLocationUnavailable for journal error, got %v", err)
	}

	want := domain.GeoPoint{Lat: 37.7882, Lon: -122.4324}
	src := postgres.NewReplaySource(&mockJournal{latest: &domain.PositionSample{Point: want}}, time.Hour, 0)
	got, err := src.RequestFix(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestReplaySource_ReplaysInOrder(t *testing.T) {
	journal := &mockJournal{entries: walk(time.Now().Add(-time.Minute), 10*time.Second)}
	src := postgres.NewReplaySource(journal, time.Hour, 0)

	got := make(chan string, 3)
	sub, err := src.Subscribe(context.Background(),
		func(context.Context, domain.PositionSample) { got <- "position" },
		func(context.Context, domain.HeadingSample) { got <- "heading" },
	)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	want := []string{"position", "heading", "position"}
	for i, w := range want {
		select {
		case kind := <-got:
			if kind != w {
				t.Errorf("sample %d: expected %s, got %s", i, w, kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for sample %d", i)
		}
	}
}

func TestReplaySource_CloseStopsReplay(t *testing.T) {
	journal := &mockJournal{entries: walk(time.Now().Add(-time.Minute), time.Hour)}
	src := postgres.NewReplaySource(journal, time.Hour, 1)

	got := make(chan struct{}, 3)
	sub, err := src.Subscribe(context.Background(),
		func(context.Context, domain.PositionSample) { got <- struct{}{} },
		func(context.Context, domain.HeadingSample) { got <- struct{}{} },
	)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("first sample was not replayed")
	}

	done := make(chan struct{})
	go func() {
		_ = sub.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not interrupt the wait between samples")
	}
	if len(got) != 0 {
		t.Errorf("expected no samples after Close, got %d", len(got))
	}
}

func TestReplaySource_SubscribeError(t *testing.T) {
	src := postgres.NewReplaySource(&mockJournal{err: errors.New("boom")}, time.Hour, 0)
	if _, err := src.Subscribe(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
