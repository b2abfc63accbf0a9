package terrain

import "fmt"

// Config selects and parameterizes the elevation provider.
type Config struct {
	// Provider is "srtm" or "constant".
	Provider string
	// DataDir holds .hgt tiles for the srtm provider.
	DataDir string
	// Height is the fixed elevation in meters AMSL for the constant provider.
	Height float64
}

// NewProvider builds the configured elevation provider.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "srtm":
		return NewSRTM(cfg.DataDir)
	case "constant", "":
		return Constant{Height: cfg.Height}, nil
	default:
		return nil, fmt.Errorf("unknown elevation provider %q", cfg.Provider)
	}
}
