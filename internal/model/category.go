package model

// Category is an occupancy band derived from a cluster group's unit count.
type Category string

const (
	CategorySingleUnit Category = "single_unit"
	CategoryLowRise    Category = "low_rise"
	CategoryHighRise   Category = "high_rise"
)

// Categories lists every category in reporting order.
var Categories = []Category{CategorySingleUnit, CategoryLowRise, CategoryHighRise}

// Label returns a human-readable name for the category.
func (c Category) Label() string {
	switch c {
	case CategorySingleUnit:
		return "Single-unit"
	case CategoryLowRise:
		return "Low-rise"
	case CategoryHighRise:
		return "High-rise"
	default:
		return string(c)
	}
}

// CategoryStats aggregates unit and structure counts per category for one run.
type CategoryStats struct {
	SingleUnitCount      int `json:"single_unit_count" yaml:"single_unit_count"`
	SingleUnitStructures int `json:"single_unit_structures" yaml:"single_unit_structures"`
	LowRiseCount         int `json:"low_rise_count" yaml:"low_rise_count"`
	LowRiseStructures    int `json:"low_rise_structures" yaml:"low_rise_structures"`
	HighRiseCount        int `json:"high_rise_count" yaml:"high_rise_count"`
	HighRiseStructures   int `json:"high_rise_structures" yaml:"high_rise_structures"`
	TotalUnits           int `json:"total_units" yaml:"total_units"`
	TotalStructures      int `json:"total_structures" yaml:"total_structures"`
}

// Add records one cluster group of the given size under category c.
func (s *CategoryStats) Add(c Category, count int) {
	switch c {
	case CategorySingleUnit:
		s.SingleUnitCount += count
		s.SingleUnitStructures++
	case CategoryLowRise:
		s.LowRiseCount += count
		s.LowRiseStructures++
	case CategoryHighRise:
		s.HighRiseCount += count
		s.HighRiseStructures++
	default:
		return
	}
	s.TotalUnits += count
	s.TotalStructures++
}

// Units returns the unit total for category c.
func (s CategoryStats) Units(c Category) int {
	switch c {
	case CategorySingleUnit:
		return s.SingleUnitCount
	case CategoryLowRise:
		return s.LowRiseCount
	case CategoryHighRise:
		return s.HighRiseCount
	}
	return 0
}

// Structures returns the structure total for category c.
func (s CategoryStats) Structures(c Category) int {
	switch c {
	case CategorySingleUnit:
		return s.SingleUnitStructures
	case CategoryLowRise:
		return s.LowRiseStructures
	case CategoryHighRise:
		return s.HighRiseStructures
	}
	return 0
}
