package pipeline

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/unitmap/internal/annotate"
	"github.com/sells-group/unitmap/internal/cluster"
	"github.com/sells-group/unitmap/internal/geo"
	"github.com/sells-group/unitmap/internal/model"
)

// Config holds the analysis parameters. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// Radius is the inclusive link distance between units of one structure,
	// in drawing units.
	Radius     float64
	Thresholds geo.Thresholds
	Style      annotate.Style
	Overlap    geo.Overlap
	// Layers restricts boundary polygons to these drawing layers. Empty uses
	// every closed polyline in model space.
	Layers []string
	// Workers bounds parallel neighbour queries during clustering.
	Workers int
}

// DefaultConfig returns radius 0.17, the 1 / 2-6 / 7+ occupancy bands,
// the default marker style and first-match overlap.
func DefaultConfig() Config {
	return Config{
		Radius:     cluster.DefaultRadius,
		Thresholds: geo.DefaultThresholds(),
		Style:      annotate.DefaultStyle(),
		Overlap:    geo.OverlapFirst,
		Workers:    1,
	}
}

// Validate checks every parameter. Failures are DataErrors.
func (c Config) Validate() error {
	if !(c.Radius > 0) || math.IsInf(c.Radius, 0) {
		return model.DataError(eris.Errorf("pipeline: radius must be a positive finite number, got %v", c.Radius))
	}
	if err := c.Thresholds.Validate(); err != nil {
		return model.DataError(err)
	}
	if err := c.Style.Validate(); err != nil {
		return model.DataError(err)
	}
	if _, err := geo.ParseOverlap(string(c.Overlap)); err != nil {
		return model.DataError(err)
	}
	if c.Workers < 0 {
		return model.DataError(eris.Errorf("pipeline: workers must not be negative, got %d", c.Workers))
	}
	return nil
}

// Params returns the run parameters recorded with stored runs.
func (c Config) Params() model.RunParams {
	overlap := c.Overlap
	if overlap == "" {
		overlap = geo.OverlapFirst
	}
	return model.RunParams{
		Radius:      c.Radius,
		LowRiseMin:  c.Thresholds.LowRiseMin,
		HighRiseMin: c.Thresholds.HighRiseMin,
		Overlap:     string(overlap),
	}
}
