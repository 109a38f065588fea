package geo

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// earthRadiusMiles is the mean radius of the Earth in miles.
const earthRadiusMiles = 3958.8

// Location is an immutable latitude/longitude pair. Coordinates are kept as
// fixed-precision decimals so stored values round-trip exactly.
type Location struct {
	Lat  decimal.Decimal
	Long decimal.Decimal
}

// NewLocation builds a Location from float coordinates, truncated to six
// decimal places (roughly 10cm of precision).
func NewLocation(lat, long float64) Location {
	return Location{
		Lat:  decimal.NewFromFloat(lat).Round(6),
		Long: decimal.NewFromFloat(long).Round(6),
	}
}

// DistanceFrom returns the great-circle distance to other in miles.
func (l Location) DistanceFrom(other Location) float64 {
	lat1 := toRadians(l.Lat)
	lat2 := toRadians(other.Lat)
	dLat := lat2 - lat1
	dLong := toRadians(other.Long) - toRadians(l.Long)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLong/2)*math.Sin(dLong/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c
}

// Equal reports component-wise equality.
func (l Location) Equal(other Location) bool {
	return l.Lat.Equal(other.Lat) && l.Long.Equal(other.Long)
}

// IsZero reports whether the location has never been set.
func (l Location) IsZero() bool {
	return l.Lat.IsZero() && l.Long.IsZero()
}

func (l Location) String() string {
	return fmt.Sprintf("(%s, %s)", l.Lat.String(), l.Long.String())
}

func toRadians(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f * math.Pi / 180
}
