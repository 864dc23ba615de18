package geospatial_test

import (
	"testing"

	"github.com/Christopher96/places-online/internal/pkg/geospatial"
)

func TestHaversine(t *testing.T) {
	// One degree of latitude is ~111.2 km.
	d := geospatial.Haversine(0, 0, 1, 0)
	if d < 111000 || d > 111400 {
		t.Errorf("expected ~111195 m, got %v", d)
	}
	if d := geospatial.Haversine(43.263, -2.935, 43.263, -2.935); d != 0 {
		t.Errorf("expected 0 for identical points, got %v", d)
	}
}

func TestAngularDistance(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{10, 12, 2},
		{10, 14, 4},
		{359, 1, 2},
		{1, 359, 2},
		{0, 180, 180},
		{90, 270, 180},
		{-10, 10, 20},
		{720, 0, 0},
	}
	for _, tt := range tests {
		if got := geospatial.AngularDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("AngularDistance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNormalizeHeading(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-10, 350},
		{725, 5},
		{359, 359},
	}
	for _, tt := range tests {
		if got := geospatial.NormalizeHeading(tt.in); got != tt.want {
			t.Errorf("NormalizeHeading(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
