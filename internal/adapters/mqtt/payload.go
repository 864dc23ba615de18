package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Christopher96/places-online/internal/core/domain"
)

var (
	errVoidFix       = errors.New("fix marked void")
	errBadCoordinate = errors.New("coordinate out of range")
)

// positionPayload accepts the fixes published by GPS producers:
// {"lat":..,"lon":..,"time":..,"validity":"A"}. Time is optional and
// only honoured when it is RFC 3339.
type positionPayload struct {
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Time     string   `json:"time"`
	Validity string   `json:"validity"`
}

type headingPayload struct {
	Heading *float64 `json:"heading"`
	Course  *float64 `json:"course_deg"`
	Time    string   `json:"time"`
}

// DecodePosition parses a position message. now stamps samples that carry
// no usable timestamp.
func DecodePosition(data []byte, now time.Time) (domain.PositionSample, error) {
	var p positionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.PositionSample{}, fmt.Errorf("decode position: %w", err)
	}
	if p.Lat == nil || p.Lon == nil {
		return domain.PositionSample{}, errors.New("decode position: lat and lon are required")
	}
	if p.Validity != "" && p.Validity != "A" {
		return domain.PositionSample{}, errVoidFix
	}
	if math.Abs(*p.Lat) > 90 || math.Abs(*p.Lon) > 180 {
		return domain.PositionSample{}, fmt.Errorf("%w: (%g, %g)", errBadCoordinate, *p.Lat, *p.Lon)
	}
	return domain.PositionSample{
		Point: domain.GeoPoint{Lat: *p.Lat, Lon: *p.Lon},
		Time:  stamp(p.Time, now),
	}, nil
}

// DecodeHeading parses a heading message. "heading" wins over "course_deg".
func DecodeHeading(data []byte, now time.Time) (domain.HeadingSample, error) {
	var p headingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.HeadingSample{}, fmt.Errorf("decode heading: %w", err)
	}
	deg := p.Heading
	if deg == nil {
		deg = p.Course
	}
	if deg == nil {
		return domain.HeadingSample{}, errors.New("decode heading: heading is required")
	}
	return domain.HeadingSample{Degrees: *deg, Time: stamp(p.Time, now)}, nil
}

func stamp(s string, now time.Time) time.Time {
	if s == "" {
		return now
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return now
	}
	return t
}
