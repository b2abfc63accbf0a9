// Package geo provides the geodesy primitives used by the targeting engine:
// spherical distance/bearing, NED offset conversion and circular angle
// arithmetic. All functions are pure and take/return degrees.
package geo

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// EarthRadius is the WGS84 equatorial radius in meters, matching the
// spherical approximation used throughout the solver.
const EarthRadius = 6378137.0

// Distance returns the haversine great-circle distance in meters between two
// latitude/longitude pairs.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := radians(lat1)
	rlat2 := radians(lat2)
	dlat := radians(lat2 - lat1)
	dlon := radians(lon2 - lon1)
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return EarthRadius * 2 * math.Asin(math.Sqrt(a))
}

// Bearing returns the initial geodetic bearing in degrees [0,360) from point 1
// to point 2.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := radians(lat1)
	rlat2 := radians(lat2)
	dlon := radians(lon2 - lon1)
	y := math.Sin(dlon) * math.Cos(rlat2)
	x := math.Cos(rlat1)*math.Sin(rlat2) - math.Sin(rlat1)*math.Cos(rlat2)*math.Cos(dlon)
	return Wrap360(degrees(math.Atan2(y, x)))
}

// NEDToGeodetic displaces a latitude/longitude by a local north/east offset in
// meters, using a small-offset planar approximation on the sphere.
func NEDToGeodetic(lat, lon, dNorth, dEast float64) (float64, float64) {
	rlat := radians(lat)
	dlat := dNorth / EarthRadius
	dlon := dEast / (EarthRadius * math.Max(1e-9, math.Cos(rlat)))
	return lat + degrees(dlat), lon + degrees(dlon)
}

// GeodeticToNED returns the local north/east offset in meters from origin to
// target, the planar inverse of NEDToGeodetic.
func GeodeticToNED(originLat, originLon, targetLat, targetLon float64) (dNorth, dEast float64) {
	dNorth = radians(targetLat-originLat) * EarthRadius
	dEast = radians(targetLon-originLon) * EarthRadius * math.Max(1e-9, math.Cos(radians(originLat)))
	return dNorth, dEast
}

// Wrap360 normalizes an angle in degrees into [0,360).
func Wrap360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// YawDelta returns the shortest signed path in degrees from current to
// commanded, normalized into (-180,180]. Positive means clockwise.
func YawDelta(commanded, current float64) float64 {
	d := math.Mod(commanded-current, 360)
	if d > 180 {
		d -= 360
	}
	if d <= -180 {
		d += 360
	}
	return d
}

// Clamp bounds v into [min,max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Point3857 projects a geographic position to a Web Mercator (EPSG:3857)
// point for session-track export. Geometry is stored as WKB so SQLite, which
// has no spatial awareness, can round-trip it as a blob.
func Point3857(p core.GeoPosition) geom.Point {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(p.Longitude, p.Latitude, 0)
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Z:    p.Altitude,
		Type: geom.CoordinatesType(geom.DimXYZ),
	})
}

// Track3857 projects a sequence of solved target positions to an EPSG:3857
// line string, used when exporting a session's target track.
func Track3857(points []core.GeoPosition) geom.LineString {
	seq := make([]float64, 0, len(points)*3)
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	for _, p := range points {
		x, y, _ := f(p.Longitude, p.Latitude, 0)
		seq = append(seq, x, y, p.Altitude)
	}
	return geom.NewLineString(geom.NewSequence(seq, geom.DimXYZ))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
