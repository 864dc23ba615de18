package domain

import "errors"

var (
	// ErrPermissionDenied is returned when location access was refused.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrLocationUnavailable is returned when no fix could be obtained.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrIndexOutOfRange is returned for a claim outside the current grid.
	ErrIndexOutOfRange = errors.New("tile index out of range")

	// ErrInvalidConfiguration is returned when a TileSpec cannot produce a grid.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrColorRequired is returned when a claim carries no color.
	ErrColorRequired = errors.New("color is required")
)
