// Package terrain supplies ground elevation to the ray-terrain solver.
// Providers are selected by configuration, never by runtime type inspection;
// the solver only sees the Provider interface and degrades to a sea-level
// assumption when a provider fails.
package terrain

import (
	"context"
	"errors"
)

// ErrNoData is returned when a provider has no elevation data covering the
// requested coordinate.
var ErrNoData = errors.New("no elevation data for coordinate")

// ErrUnavailable is returned when the provider backend cannot be reached at
// all (missing data directory, timeout).
var ErrUnavailable = errors.New("elevation provider unavailable")

// Provider answers terrain elevation queries. Elevation returns meters AMSL.
// Implementations must honor ctx cancellation/deadlines; callers always pass
// a bounded timeout so a slow lookup cannot stall a control cycle.
type Provider interface {
	Elevation(ctx context.Context, lat, lon float64) (float64, error)
}

// Constant is the sea-level / fixed-height stub provider.
type Constant struct {
	Height float64
}

// Elevation returns the fixed height for every coordinate.
func (c Constant) Elevation(ctx context.Context, lat, lon float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.Height, nil
}
