// Package annotate renders cluster categories back onto a survey drawing as
// colored circle markers.
package annotate

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/unitmap/internal/dxf"
	"github.com/sells-group/unitmap/internal/model"
)

// Marker defaults.
const (
	DefaultMarkerRadius = 0.5
	DefaultLayer        = "0"
)

// AutoCAD Color Index values used by DefaultStyle.
const (
	ColorRed   = 1
	ColorGreen = 3
	ColorBlue  = 5
)

// Style controls how markers are drawn.
type Style struct {
	MarkerRadius float64                `json:"marker_radius" yaml:"marker_radius"`
	Layer        string                 `json:"layer" yaml:"layer"`
	Colors       map[model.Category]int `json:"colors" yaml:"colors"`
}

// DefaultStyle draws 0.5-unit circles on layer 0: green for single units,
// blue for low-rise and red for high-rise structures.
func DefaultStyle() Style {
	return Style{
		MarkerRadius: DefaultMarkerRadius,
		Layer:        DefaultLayer,
		Colors: map[model.Category]int{
			model.CategorySingleUnit: ColorGreen,
			model.CategoryLowRise:    ColorBlue,
			model.CategoryHighRise:   ColorRed,
		},
	}
}

// Validate checks the radius and that every category has its own color.
func (s Style) Validate() error {
	if !(s.MarkerRadius > 0) {
		return eris.Errorf("annotate: marker radius must be positive, got %v", s.MarkerRadius)
	}
	seen := make(map[int]model.Category, len(model.Categories))
	for _, c := range model.Categories {
		color, ok := s.Colors[c]
		if !ok {
			return eris.Errorf("annotate: no color for %s", c)
		}
		if color < 1 || color > 255 {
			return eris.Errorf("annotate: color %d for %s is outside 1-255", color, c)
		}
		if other, dup := seen[color]; dup {
			return eris.Errorf("annotate: %s and %s share color %d", other, c, color)
		}
		seen[color] = c
	}
	return nil
}

// Marker places one category-colored circle.
type Marker struct {
	X, Y     float64
	Category model.Category
}

// Render returns doc serialized with one circle per marker appended to model
// space, in marker order. doc itself is not modified. With no markers the
// output is byte-identical to the parsed input.
func Render(doc *dxf.Document, markers []Marker, style Style) ([]byte, error) {
	if err := style.Validate(); err != nil {
		return nil, model.SerializationError(err)
	}

	circles := make([]dxf.Circle, len(markers))
	for i, m := range markers {
		color, ok := style.Colors[m.Category]
		if !ok {
			return nil, model.SerializationError(eris.Errorf("annotate: marker %d has unknown category %q", i, m.Category))
		}
		circles[i] = dxf.Circle{
			X:      m.X,
			Y:      m.Y,
			Radius: style.MarkerRadius,
			Color:  color,
			Layer:  style.Layer,
		}
	}

	out := doc.Clone()
	if err := out.AppendCircles(circles); err != nil {
		return nil, eris.Wrap(err, "annotate: append markers")
	}

	data, err := out.Bytes()
	if err != nil {
		return nil, eris.Wrap(err, "annotate: serialize drawing")
	}

	zap.L().Debug("annotate: drawing rendered",
		zap.Int("markers", len(markers)),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}
