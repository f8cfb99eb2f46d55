package geo

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/unitmap/internal/model"
)

// Occupancy thresholds (units per structure).
const (
	DefaultLowRiseMin  = 2 // smallest low-rise group
	DefaultHighRiseMin = 7 // smallest high-rise group
)

// Thresholds bound the occupancy categories.
type Thresholds struct {
	LowRiseMin  int `json:"low_rise_min" yaml:"low_rise_min" mapstructure:"low_rise_min"`
	HighRiseMin int `json:"high_rise_min" yaml:"high_rise_min" mapstructure:"high_rise_min"`
}

// DefaultThresholds returns the standard bands: 1 single-unit, 2-6 low-rise,
// 7 and up high-rise.
func DefaultThresholds() Thresholds {
	return Thresholds{LowRiseMin: DefaultLowRiseMin, HighRiseMin: DefaultHighRiseMin}
}

// Validate checks 2 <= LowRiseMin < HighRiseMin.
func (t Thresholds) Validate() error {
	if t.LowRiseMin < 2 {
		return eris.Errorf("geo: low_rise_min must be at least 2, got %d", t.LowRiseMin)
	}
	if t.HighRiseMin <= t.LowRiseMin {
		return eris.Errorf("geo: high_rise_min (%d) must exceed low_rise_min (%d)", t.HighRiseMin, t.LowRiseMin)
	}
	return nil
}

// Classify returns the occupancy category for a cluster of count units.
// Rules:
//   - single_unit: count < LowRiseMin
//   - low_rise: LowRiseMin <= count < HighRiseMin
//   - high_rise: count >= HighRiseMin
func (t Thresholds) Classify(count int) model.Category {
	if count >= t.HighRiseMin {
		return model.CategoryHighRise
	}
	if count >= t.LowRiseMin {
		return model.CategoryLowRise
	}
	return model.CategorySingleUnit
}
