// Package geo holds the spherical geometry used to compare origins and to
// derive location quality: epicentral distance, azimuth and azimuthal gaps.
package geo

import (
	"math"
	"slices"
)

// KmPerDegree converts great-circle degrees to kilometres.
const KmPerDegree = 111.195

// Delazi returns the great-circle distance in degrees between two points
// and the azimuth and back azimuth in degrees clockwise from north.
func Delazi(lat1, lon1, lat2, lon2 float64) (delta, az, baz float64) {
	phi1, phi2 := radians(lat1), radians(lat2)
	dlon := radians(lon2 - lon1)

	// Haversine keeps precision for short distances.
	a := math.Pow(math.Sin((phi2-phi1)/2), 2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Pow(math.Sin(dlon/2), 2)
	delta = degrees(2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a)))

	az = bearing(phi1, phi2, dlon)
	baz = bearing(phi2, phi1, -dlon)
	return delta, az, baz
}

func bearing(phi1, phi2, dlon float64) float64 {
	y := math.Sin(dlon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dlon)
	return NormalizeAzimuth(degrees(math.Atan2(y, x)))
}

// DistanceKm returns the epicentral distance in kilometres.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	delta, _, _ := Delazi(lat1, lon1, lat2, lon2)
	return delta * KmPerDegree
}

// HypocentralDistanceKm combines epicentral distance and depth difference
// (both in km) into a straight-line separation.
func HypocentralDistanceKm(lat1, lon1, dep1, lat2, lon2, dep2 float64) float64 {
	return math.Hypot(DistanceKm(lat1, lon1, lat2, lon2), dep2-dep1)
}

// NormalizeAzimuth maps an angle into [0, 360).
func NormalizeAzimuth(az float64) float64 {
	az = math.Mod(az, 360)
	if az < 0 {
		az += 360
	}
	if az >= 360 {
		return 0
	}
	return az
}

// gaps returns the sorted distinct azimuths and the gaps between
// consecutive ones, including the wrap-around gap.
func gaps(azimuths []float64) []float64 {
	azi := make([]float64, 0, len(azimuths))
	for _, a := range azimuths {
		azi = append(azi, NormalizeAzimuth(a))
	}
	slices.Sort(azi)
	azi = slices.Compact(azi)
	if len(azi) < 2 {
		return nil
	}
	out := make([]float64, len(azi))
	for i := 1; i < len(azi); i++ {
		out[i-1] = azi[i] - azi[i-1]
	}
	out[len(azi)-1] = azi[0] + 360 - azi[len(azi)-1]
	return out
}

// AzimuthalGap returns the largest gap between station azimuths. Fewer
// than two distinct azimuths give 360.
func AzimuthalGap(azimuths []float64) float64 {
	g := gaps(azimuths)
	if g == nil {
		return 360
	}
	return slices.Max(g)
}

// SecondaryAzimuthalGap returns the largest sum of two adjacent gaps, that
// is the largest gap that opens when any single station is removed.
func SecondaryAzimuthalGap(azimuths []float64) float64 {
	g := gaps(azimuths)
	if g == nil {
		return 360
	}
	best := g[len(g)-1] + g[0]
	for i := 1; i < len(g); i++ {
		best = max(best, g[i]+g[i-1])
	}
	return best
}

// TGap returns the sum of the two largest gaps. Unlike the secondary gap
// the two need not be adjacent. Fewer than two distinct azimuths give 360.
func TGap(azimuths []float64) float64 {
	g := gaps(azimuths)
	if g == nil {
		return 360
	}
	slices.Sort(g)
	return g[len(g)-1] + g[len(g)-2]
}

// Median returns the median of values, or 0 for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	v := slices.Clone(values)
	slices.Sort(v)
	n := len(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
