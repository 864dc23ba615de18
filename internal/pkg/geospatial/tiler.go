package geospatial

import (
	"github.com/Christopher96/places-online/internal/core/domain"
)

// cornerOffsets are unit (lon, lat) offsets walking a tile counter-clockwise
// from its bottom-left corner.
var cornerOffsets = [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

// Tiler lays out tile centers and polygons for a fixed TileSpec.
type Tiler struct {
	spec domain.TileSpec
}

// NewTiler validates spec and returns a Tiler for it.
func NewTiler(spec domain.TileSpec) (*Tiler, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Tiler{spec: spec}, nil
}

// Spec returns the tiling constants.
func (t *Tiler) Spec() domain.TileSpec {
	return t.spec
}

// BaseTile snaps a raw fix to the coarse base-tile lattice. A change of base
// tile is what triggers regeneration.
func (t *Tiler) BaseTile(p domain.GeoPoint) domain.GeoPoint {
	return QuantizePoint(p, t.spec.BaseDecimals)
}

// CornersOf returns the four polygon corners of the tile centred on center.
func (t *Tiler) CornersOf(center domain.GeoPoint) [4]domain.GeoPoint {
	latStep := t.spec.TileSize * t.spec.LatitudeDelta
	lonStep := t.spec.TileSize

	var corners [4]domain.GeoPoint
	for k, off := range cornerOffsets {
		corners[k] = domain.GeoPoint{
			Lat: Quantize(center.Lat+off[1]*latStep, t.spec.TileDecimals),
			Lon: Quantize(center.Lon+off[0]*lonStep, t.spec.TileDecimals),
		}
	}
	return corners
}

// GenerateGrid returns the GridSize² tile centers around origin, row-major
// from the south-west. Adjacent centers are one tile width (2*TileSize)
// apart and the middle element is origin itself.
func (t *Tiler) GenerateGrid(origin domain.GeoPoint) []domain.GeoPoint {
	half := t.spec.GridSize / 2
	latStep := 2 * t.spec.TileSize * t.spec.LatitudeDelta
	lonStep := 2 * t.spec.TileSize

	centers := make([]domain.GeoPoint, 0, t.spec.TileCount())
	for i := -half; i <= half; i++ {
		for j := -half; j <= half; j++ {
			centers = append(centers, domain.GeoPoint{
				Lat: Quantize(origin.Lat+float64(i)*latStep, t.spec.TileDecimals),
				Lon: Quantize(origin.Lon+float64(j)*lonStep, t.spec.TileDecimals),
			})
		}
	}
	return centers
}

// CenterIndex is the index of the origin tile within a generated grid.
func (t *Tiler) CenterIndex() int {
	return (t.spec.TileCount() - 1) / 2
}

// BuildTiles generates the centers around origin and derives each polygon.
// Every tile starts unclaimed.
func (t *Tiler) BuildTiles(origin domain.GeoPoint) []domain.Tile {
	centers := t.GenerateGrid(origin)
	tiles := make([]domain.Tile, len(centers))
	for i, c := range centers {
		tiles[i] = domain.Tile{
			Index:   i,
			Center:  c,
			Corners: t.CornersOf(c),
		}
	}
	return tiles
}

// TileDimensionsMeters returns the ground width and height of a tile,
// measured along its southern and western edges.
func TileDimensionsMeters(tile domain.Tile) (width, height float64) {
	bl, br, tl := tile.Corners[0], tile.Corners[1], tile.Corners[3]
	width = Haversine(bl.Lat, bl.Lon, br.Lat, br.Lon)
	height = Haversine(bl.Lat, bl.Lon, tl.Lat, tl.Lon)
	return width, height
}
