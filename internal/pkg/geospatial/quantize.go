package geospatial

import (
	"math"

	"github.com/Christopher96/places-online/internal/core/domain"
)

// maxDecimals is the largest exponent math.Pow10 returns finite.
const maxDecimals = 308

// Quantize rounds value half away from zero to the given number of
// fractional digits. Non-finite values are returned unchanged.
func Quantize(value float64, decimals uint) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	// Past maxDecimals every float64 already has the requested precision.
	if decimals > maxDecimals {
		return value
	}
	p := math.Pow10(int(decimals))
	scaled := value * p
	if math.IsInf(scaled, 0) {
		// Already coarser than the requested precision.
		return value
	}
	return math.Round(scaled) / p
}

// QuantizePoint quantizes both coordinates of p.
func QuantizePoint(p domain.GeoPoint, decimals uint) domain.GeoPoint {
	return domain.GeoPoint{
		Lat: Quantize(p.Lat, decimals),
		Lon: Quantize(p.Lon, decimals),
	}
}
