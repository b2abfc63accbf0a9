package terrain

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
)

const (
	// SRTM3 tiles are 1201x1201 samples covering one degree square.
	srtmSamples = 1201
	// srtmVoid marks samples with no data in the source tiles.
	srtmVoid = -32768
)

// SRTM reads elevation from local SRTM3 .hgt tiles. Tiles are loaded lazily
// on first touch and kept in memory for the life of the provider; a full tile
// is ~2.8MB so a typical flight area stays within a handful of tiles.
type SRTM struct {
	dataDir string

	mu    sync.RWMutex
	tiles map[string]*tile
}

type tile struct {
	samples []int16
}

// NewSRTM creates a provider backed by .hgt tiles under dataDir. The
// directory must exist; individual tiles are allowed to be missing and
// surface as ErrNoData per query.
func NewSRTM(dataDir string) (*SRTM, error) {
	info, err := os.Stat(dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnavailable, dataDir)
	}
	return &SRTM{
		dataDir: dataDir,
		tiles:   make(map[string]*tile),
	}, nil
}

// Elevation returns the terrain height in meters AMSL at lat/lon using
// bilinear interpolation between the four surrounding samples. Void samples
// are treated as sea level.
func (s *SRTM) Elevation(ctx context.Context, lat, lon float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, fmt.Errorf("%w: lat=%f lon=%f", ErrNoData, lat, lon)
	}

	t, err := s.tile(TileName(lat, lon))
	if err != nil {
		return 0, err
	}

	latFrac := lat - math.Floor(lat)
	lonFrac := lon - math.Floor(lon)

	// Row 0 is the north edge of the tile, so the latitude axis is flipped.
	rowF := (1.0 - latFrac) * (srtmSamples - 1)
	colF := lonFrac * (srtmSamples - 1)

	row0 := int(rowF)
	col0 := int(colF)
	row1 := min(row0+1, srtmSamples-1)
	col1 := min(col0+1, srtmSamples-1)

	fr := rowF - float64(row0)
	fc := colF - float64(col0)

	h00 := t.sample(row0, col0)
	h01 := t.sample(row0, col1)
	h10 := t.sample(row1, col0)
	h11 := t.sample(row1, col1)

	top := h00*(1-fc) + h01*fc
	bottom := h10*(1-fc) + h11*fc
	return top*(1-fr) + bottom*fr, nil
}

func (t *tile) sample(row, col int) float64 {
	v := t.samples[row*srtmSamples+col]
	if v == srtmVoid {
		return 0
	}
	return float64(v)
}

func (s *SRTM) tile(name string) (*tile, error) {
	s.mu.RLock()
	t, ok := s.tiles[name]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok = s.tiles[name]; ok {
		return t, nil
	}

	t, err := loadTile(filepath.Join(s.dataDir, name+".hgt"))
	if err != nil {
		return nil, err
	}
	s.tiles[name] = t
	return t, nil
}

func loadTile(path string) (*tile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: missing tile %s", ErrNoData, filepath.Base(path))
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	want := srtmSamples * srtmSamples * 2
	if len(raw) != want {
		return nil, fmt.Errorf("%w: tile %s has %d bytes, want %d",
			ErrUnavailable, filepath.Base(path), len(raw), want)
	}

	samples := make([]int16, srtmSamples*srtmSamples)
	for i := range samples {
		samples[i] = int16(binary.BigEndian.Uint16(raw[i*2:]))
	}
	return &tile{samples: samples}, nil
}

// TileName returns the SRTM tile identifier covering lat/lon, e.g. "N47E008".
// The tile is named after its south-west corner.
func TileName(lat, lon float64) string {
	latBase := int(math.Floor(lat))
	lonBase := int(math.Floor(lon))

	ns := "N"
	if latBase < 0 {
		ns = "S"
		latBase = -latBase
	}
	ew := "E"
	if lonBase < 0 {
		ew = "W"
		lonBase = -lonBase
	}
	return fmt.Sprintf("%s%02d%s%03d", ns, latBase, ew, lonBase)
}
