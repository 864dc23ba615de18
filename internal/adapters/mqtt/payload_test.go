package mqtt_test

import (
	"testing"
	"time"

	"github.com/Christopher96/places-online/internal/adapters/mqtt"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func TestDecodePosition(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
		lat     float64
		lon     float64
		time    time.Time
	}{
		{"plain", `{"lat":37.78825,"lon":-122.4324}`, false, 37.78825, -122.4324, now},
		{"timestamped", `{"lat":1,"lon":2,"time":"2026-10-15T11:59:58Z","validity":"A"}`, false, 1, 2, now.Add(-2 * time.Second)},
		{"bad time falls back", `{"lat":1,"lon":2,"time":"yesterday"}`, false, 1, 2, now},
		{"void fix", `{"lat":1,"lon":2,"validity":"V"}`, true, 0, 0, time.Time{}},
		{"missing lon", `{"lat":1}`, true, 0, 0, time.Time{}},
		{"latitude out of range", `{"lat":91,"lon":0}`, true, 0, 0, time.Time{}},
		{"longitude out of range", `{"lat":0,"lon":-181}`, true, 0, 0, time.Time{}},
		{"not json", `lat=1`, true, 0, 0, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := mqtt.DecodePosition([]byte(tt.payload), now)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", s)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Point.Lat != tt.lat || s.Point.Lon != tt.lon {
				t.Errorf("expected (%v, %v), got %+v", tt.lat, tt.lon, s.Point)
			}
			if !s.Time.Equal(tt.time) {
				t.Errorf("expected time %v, got %v", tt.time, s.Time)
			}
		})
	}
}

func TestDecodeHeading(t *testing.T) {
	s, err := mqtt.DecodeHeading([]byte(`{"heading":12.5,"course_deg":200}`), now)
	if err != nil {
		t.Fatal(err)
	}
	if s.Degrees != 12.5 {
		t.Errorf("expected heading to win over course, got %v", s.Degrees)
	}

	s, err = mqtt.DecodeHeading([]byte(`{"course_deg":200}`), now)
	if err != nil {
		t.Fatal(err)
	}
	if s.Degrees != 200 || !s.Time.Equal(now) {
		t.Errorf("unexpected sample %+v", s)
	}

	if _, err := mqtt.DecodeHeading([]byte(`{}`), now); err == nil {
		t.Error("expected error for empty payload")
	}
}
