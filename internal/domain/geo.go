package domain

import (
	"errors"
	"math"
)

// Reference point of the fixed local map projection. The linear approximation
// is only valid in the vicinity of this latitude; it is not a general
// geodetic transform.
const (
	projectionRefLat  = -37.346500347
	projectionBaseLat = -37.0
	projectionBaseLon = 144.0
	kmPerDegree       = 111.111
)

// ErrDegenerateEllipsoid is returned when the two given principal axes are
// parallel, leaving the third axis direction undefined.
var ErrDegenerateEllipsoid = errors.New("degenerate error ellipsoid: principal axes are parallel")

// LonLatFromLocal converts local map coordinates in kilometers to
// longitude/latitude using the fixed linear projection around the hardcoded
// reference latitude.
func LonLatFromLocal(x, y float64) (lon, lat float64) {
	lat = projectionBaseLat + y/kmPerDegree
	lon = projectionBaseLon + x/(kmPerDegree*math.Cos(radians(projectionRefLat)))
	return lon, lat
}

// Origin is a hypocenter location as reported by a location tool.
type Origin struct {
	Latitude  float64
	Longitude float64
	Depth     float64 // meters below sea level
}

// EllipsoidToCartesianErrors converts a 3D error ellipsoid given as two
// azimuth/dip/length principal axes plus a third axis length into
// axis-aligned half-widths (errX, errY, errZ). The two given axes are assumed
// orthogonal; this is not verified, so a skewed input yields a distorted box.
// The third axis direction is the normalized cross product of the first two,
// which fails for parallel axes.
func EllipsoidToCartesianErrors(azimuth1, dip1, len1, azimuth2, dip2, len2, len3 float64) (errX, errY, errZ float64, err error) {
	v1 := axisVector(azimuth1, dip1, len1)
	v2 := axisVector(azimuth2, dip2, len2)

	v3 := cross(v1, v2)
	norm := math.Sqrt(dot(v3, v3))
	if norm == 0 {
		return 0, 0, 0, ErrDegenerateEllipsoid
	}
	for i := range v3 {
		v3[i] = v3[i] / norm * len3
	}

	errX = max3(math.Abs(v1[0]), math.Abs(v2[0]), math.Abs(v3[0]))
	errY = max3(math.Abs(v1[1]), math.Abs(v2[1]), math.Abs(v3[1]))
	errZ = max3(math.Abs(v1[2]), math.Abs(v2[2]), math.Abs(v3[2]))
	return errX, errY, errZ, nil
}

// axisVector reconstructs a principal axis in the local east/north/up frame
// from azimuth and dip in degrees and a semi-axis length.
func axisVector(azimuth, dip, length float64) [3]float64 {
	z := length * math.Sin(radians(dip))
	horiz := length * math.Cos(radians(dip))
	x := horiz * math.Sin(radians(azimuth))
	y := horiz * math.Cos(radians(azimuth))
	return [3]float64{x, y, z}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}

// meanEarthRadius in meters, for the spherical distance approximation.
const meanEarthRadius = 6371009.0

// DistAzimuth returns the great-circle distance in meters between two points
// plus the forward azimuth (point 1 to point 2) and the backward azimuth
// (point 2 to point 1), both in degrees clockwise from north. Spherical
// approximation; adequate for the local distances the picker deals with.
func DistAzimuth(lat1, lon1, lat2, lon2 float64) (dist, azimuth, backAzimuth float64) {
	phi1, phi2 := radians(lat1), radians(lat2)
	dLon := radians(lon2 - lon1)

	sinHalfLat := math.Sin((phi2 - phi1) / 2)
	sinHalfLon := math.Sin(dLon / 2)
	h := sinHalfLat*sinHalfLat + math.Cos(phi1)*math.Cos(phi2)*sinHalfLon*sinHalfLon
	dist = 2 * meanEarthRadius * math.Asin(math.Sqrt(h))

	azimuth = bearing(phi1, phi2, dLon)
	backAzimuth = bearing(phi2, phi1, -dLon)
	return dist, azimuth, backAzimuth
}

func bearing(phiFrom, phiTo, dLon float64) float64 {
	y := math.Sin(dLon) * math.Cos(phiTo)
	x := math.Cos(phiFrom)*math.Sin(phiTo) - math.Sin(phiFrom)*math.Cos(phiTo)*math.Cos(dLon)
	deg := degrees(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// AzBazInc computes azimuth (origin to station), backazimuth (station to
// origin) and the incidence angle of the direct ray, from the coordinates of
// the group's first trace and the given origin. The group must carry station
// coordinates.
func (g *StreamGroup) AzBazInc(origin Origin) (azimuth, backAzimuth, incidence float64, err error) {
	if len(g.Traces) == 0 || g.Traces[0].Coordinates == nil {
		return 0, 0, 0, errors.New("azbazinc: group has no station coordinates")
	}
	sta := g.Traces[0].Coordinates
	dist, baz, az := DistAzimuth(sta.Latitude, sta.Longitude, origin.Latitude, origin.Longitude)
	elevDiff := sta.Elevation - origin.Depth
	incidence = degrees(math.Atan2(dist, elevDiff))
	return az, baz, incidence, nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
