package domain

import (
	"fmt"
	"time"
)

// TileSpec holds the tiling constants shared by the quantizer and the
// geometry engine.
type TileSpec struct {
	TileSize       float64 `json:"tile_size"`       // angular half-width of a tile, degrees
	GridSize       int     `json:"grid_size"`       // tiles per row and per column, odd
	TileDecimals   uint    `json:"tile_decimals"`   // precision of centers and corners
	BaseDecimals   uint    `json:"base_decimals"`   // precision of the base tile
	LatitudeDelta  float64 `json:"latitude_delta"`  // latitude-axis scale
	LongitudeDelta float64 `json:"longitude_delta"` // visible longitude span
}

// DefaultTileSpec returns the stock tiling used by the mobile client.
func DefaultTileSpec() TileSpec {
	return TileSpec{
		TileSize:       0.0002,
		GridSize:       5,
		TileDecimals:   4,
		BaseDecimals:   3,
		LatitudeDelta:  1,
		LongitudeDelta: 1,
	}
}

// NewTileSpec derives LatitudeDelta from the screen aspect ratio
// (width / height) the way the map client does.
func NewTileSpec(tileSize float64, gridSize int, tileDecimals, baseDecimals uint, longitudeDelta, aspectRatio float64) TileSpec {
	return TileSpec{
		TileSize:       tileSize,
		GridSize:       gridSize,
		TileDecimals:   tileDecimals,
		BaseDecimals:   baseDecimals,
		LatitudeDelta:  longitudeDelta * aspectRatio,
		LongitudeDelta: longitudeDelta,
	}
}

// Validate checks the tile spec can produce a grid with a well-defined centre tile.
func (s TileSpec) Validate() error {
	switch {
	case s.GridSize <= 0 || s.GridSize%2 == 0:
		return fmt.Errorf("%w: grid size must be odd and positive, got %d", ErrInvalidConfiguration, s.GridSize)
	case !(s.TileSize > 0):
		return fmt.Errorf("%w: tile size must be positive, got %g", ErrInvalidConfiguration, s.TileSize)
	case !(s.LatitudeDelta > 0):
		return fmt.Errorf("%w: latitude delta must be positive, got %g", ErrInvalidConfiguration, s.LatitudeDelta)
	case s.BaseDecimals > s.TileDecimals:
		return fmt.Errorf("%w: base decimals (%d) exceed tile decimals (%d)", ErrInvalidConfiguration, s.BaseDecimals, s.TileDecimals)
	}
	return nil
}

// TileCount is the number of tiles in a full grid.
func (s TileSpec) TileCount() int {
	return s.GridSize * s.GridSize
}

// Color is an opaque color chosen by the color picker, e.g. "#FF0000".
// The empty value means unclaimed.
type Color string

// Tile is one cell of the grid. Corners are counter-clockwise from the
// bottom-left and always derived from Center.
type Tile struct {
	Index        int         `json:"index"`
	Center       GeoPoint    `json:"center"`
	Corners      [4]GeoPoint `json:"corners"`
	ClaimedColor Color       `json:"claimed_color,omitempty"`
}

// Claimed reports whether a color has been set on the tile.
func (t Tile) Claimed() bool {
	return t.ClaimedColor != ""
}

// Bounds returns the bounding box of the tile polygon.
func (t Tile) Bounds() Bounds {
	b := Bounds{MinLat: t.Corners[0].Lat, MinLon: t.Corners[0].Lon, MaxLat: t.Corners[0].Lat, MaxLon: t.Corners[0].Lon}
	for _, c := range t.Corners[1:] {
		b.MinLat = min(b.MinLat, c.Lat)
		b.MinLon = min(b.MinLon, c.Lon)
		b.MaxLat = max(b.MaxLat, c.Lat)
		b.MaxLon = max(b.MaxLon, c.Lon)
	}
	return b
}

// Grid is the set of tiles currently laid out around the observer.
type Grid struct {
	Origin      GeoPoint  `json:"origin"`
	Tiles       []Tile    `json:"tiles"`
	Version     uint64    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Clone returns a deep copy safe to hand to readers.
func (g Grid) Clone() Grid {
	out := g
	out.Tiles = make([]Tile, len(g.Tiles))
	copy(out.Tiles, g.Tiles)
	return out
}

// TrackerState is the lifecycle of the observer tracker.
type TrackerState int

const (
	Uninitialized TrackerState = iota
	Locating
	Tracking
)

func (s TrackerState) String() string {
	switch s {
	case Locating:
		return "locating"
	case Tracking:
		return "tracking"
	default:
		return "uninitialized"
	}
}

// MarshalText lets the state appear as a word in JSON.
func (s TrackerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ObserverState is what the marker and camera collaborators render.
type ObserverState struct {
	RawPosition GeoPoint     `json:"raw_position"`
	Heading     float64      `json:"heading"`
	FollowMode  bool         `json:"follow_mode"`
	State       TrackerState `json:"state"`
	Status      string       `json:"status"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// PositionSample is one position reading from the location collaborator.
type PositionSample struct {
	Point GeoPoint  `json:"point"`
	Time  time.Time `json:"time"`
}

// HeadingSample is one compass reading, degrees clockwise from true north.
type HeadingSample struct {
	Degrees float64   `json:"degrees"`
	Time    time.Time `json:"time"`
}

// Status messages shown while the map is loading.
const (
	StatusLoading    = "Loading map..."
	StatusLocating   = "Retrieving player location..."
	StatusRendering  = "Rendering tiles..."
	StatusReady      = "Ready"
	StatusNoLocation = "Location unavailable"
)
