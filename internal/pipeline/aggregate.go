package pipeline

import (
	"github.com/sells-group/unitmap/internal/cluster"
	"github.com/sells-group/unitmap/internal/geo"
	"github.com/sells-group/unitmap/internal/model"
)

// Classify returns the category of every group, indexed by group ID.
func Classify(groups []cluster.Group, t geo.Thresholds) []model.Category {
	out := make([]model.Category, len(groups))
	for _, g := range groups {
		out[g.ID] = t.Classify(g.Count())
	}
	return out
}

// Aggregate totals units and structures per category. Units sum group sizes;
// structures count groups.
func Aggregate(groups []cluster.Group, t geo.Thresholds) model.CategoryStats {
	var stats model.CategoryStats
	for _, g := range groups {
		stats.Add(t.Classify(g.Count()), g.Count())
	}
	return stats
}
