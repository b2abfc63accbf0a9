package geo

import (
	"math"
	"testing"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

func TestDistance_ZeroForSamePoint(t *testing.T) {
	d := Distance(47.4085, 8.5490, 47.4085, 8.5490)
	if d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestDistance_OneDegreeLatitude(t *testing.T) {
	// One degree of latitude on the sphere is about 111.3 km.
	d := Distance(47.0, 8.0, 48.0, 8.0)
	if math.Abs(d-111319) > 200 {
		t.Errorf("expected ~111319m, got %f", d)
	}
}

func TestBearing_CardinalDirections(t *testing.T) {
	cases := []struct {
		name                   string
		lat2, lon2, wantDegree float64
	}{
		{"north", 48.0, 8.0, 0},
		{"east", 47.0, 9.0, 90},
		{"south", 46.0, 8.0, 180},
		{"west", 47.0, 7.0, 270},
	}
	for _, c := range cases {
		got := Bearing(47.0, 8.0, c.lat2, c.lon2)
		diff := math.Abs(YawDelta(c.wantDegree, got))
		if diff > 1.0 {
			t.Errorf("%s: expected bearing ~%f, got %f", c.name, c.wantDegree, got)
		}
	}
}

func TestNEDToGeodetic_RoundTrip(t *testing.T) {
	lat, lon := NEDToGeodetic(47.4085, 8.5490, 1500, -900)
	dN, dE := GeodeticToNED(47.4085, 8.5490, lat, lon)
	if math.Abs(dN-1500) > 0.01 {
		t.Errorf("expected dN=1500, got %f", dN)
	}
	if math.Abs(dE+900) > 0.01 {
		t.Errorf("expected dE=-900, got %f", dE)
	}
}

func TestNEDToGeodetic_NorthOnly(t *testing.T) {
	lat, lon := NEDToGeodetic(47.0, 8.0, 1113.19, 0)
	if lat <= 47.0 {
		t.Errorf("expected latitude to increase, got %f", lat)
	}
	if lon != 8.0 {
		t.Errorf("expected longitude unchanged, got %f", lon)
	}
}

func TestWrap360(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{360, 0},
		{-10, 350},
		{725, 5},
		{180, 180},
	}
	for _, c := range cases {
		if got := Wrap360(c.in); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Wrap360(%f): expected %f, got %f", c.in, c.want, got)
		}
	}
}

func TestYawDelta_ShortestPath(t *testing.T) {
	cases := []struct{ commanded, current, want float64 }{
		{359.8, 3.2, -3.4},
		{3.2, 359.8, 3.4},
		{180, 0, 180},
		{0, 180, 180}, // boundary maps to +180, not -180
		{90, 45, 45},
		{45, 90, -45},
		{10, 350, 20},
	}
	for _, c := range cases {
		got := YawDelta(c.commanded, c.current)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("YawDelta(%f,%f): expected %f, got %f", c.commanded, c.current, c.want, got)
		}
		if got <= -180 || got > 180 {
			t.Errorf("YawDelta(%f,%f)=%f outside (-180,180]", c.commanded, c.current, got)
		}
	}
}

func TestYawDelta_MagnitudeIsMinimumArc(t *testing.T) {
	for commanded := 0.0; commanded < 360; commanded += 17 {
		for current := 0.0; current < 360; current += 23 {
			got := math.Abs(YawDelta(commanded, current))
			cw := Wrap360(commanded - current)
			ccw := 360 - cw
			want := math.Min(cw, ccw)
			if math.Abs(got-want) > 1e-9 {
				t.Fatalf("YawDelta(%f,%f): |delta|=%f, min arc=%f", commanded, current, got, want)
			}
		}
	}
}

func TestPoint3857_ProjectsOrigin(t *testing.T) {
	pt := Point3857(core.GeoPosition{Latitude: 0, Longitude: 0, Altitude: 12})
	coords, ok := pt.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if math.Abs(coords.X) > 1e-6 || math.Abs(coords.Y) > 1e-6 {
		t.Errorf("expected origin to project to (0,0), got (%f,%f)", coords.X, coords.Y)
	}
	if coords.Z != 12 {
		t.Errorf("expected Z=12, got %f", coords.Z)
	}
}

func TestTrack3857_PreservesPointCount(t *testing.T) {
	track := Track3857([]core.GeoPosition{
		{Latitude: 47.0, Longitude: 8.0},
		{Latitude: 47.1, Longitude: 8.1},
		{Latitude: 47.2, Longitude: 8.2},
	})
	if n := track.Coordinates().Length(); n != 3 {
		t.Errorf("expected 3 points, got %d", n)
	}
}
