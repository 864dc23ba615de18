package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Christopher96/places-online/internal/core/domain"
)

// GridFeatureCollection renders every tile of g as a GeoJSON polygon, plus a
// point feature for the grid origin.
func GridFeatureCollection(g domain.Grid) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, tile := range g.Tiles {
		ring := make(orb.Ring, 0, len(tile.Corners)+1)
		for _, c := range tile.Corners {
			ring = append(ring, orb.Point{c.Lon, c.Lat})
		}
		// Close the ring
		ring = append(ring, ring[0])

		feature := geojson.NewFeature(orb.Polygon{ring})
		width, height := TileDimensionsMeters(tile)
		feature.Properties["index"] = tile.Index
		feature.Properties["center_lat"] = tile.Center.Lat
		feature.Properties["center_lon"] = tile.Center.Lon
		feature.Properties["width_meters"] = math.Round(width*10) / 10
		feature.Properties["height_meters"] = math.Round(height*10) / 10
		if tile.Claimed() {
			feature.Properties["fill"] = string(tile.ClaimedColor)
		}
		fc.Append(feature)
	}

	origin := geojson.NewFeature(orb.Point{g.Origin.Lon, g.Origin.Lat})
	origin.Properties["type"] = "origin"
	origin.Properties["version"] = g.Version
	fc.Append(origin)

	return fc
}
