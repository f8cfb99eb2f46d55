package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/unitmap/internal/dxf"
	"github.com/sells-group/unitmap/internal/geo"
)

var (
	inspectDrawing string
	inspectLayers  []string
	inspectWKB     bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the boundary polygons extracted from a drawing",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(inspectDrawing)
		if err != nil {
			return eris.Wrapf(err, "read drawing %s", inspectDrawing)
		}
		doc, err := dxf.Parse(data)
		if err != nil {
			return err
		}

		layers := inspectLayers
		if len(layers) == 0 && cfg != nil {
			layers = cfg.Analysis.Layers
		}
		polys, err := geo.PolygonsFromDrawing(doc, layers)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "%s: DXF %s, codepage %s\n", inspectDrawing, doc.Version(), doc.Codepage())
		return formatPolygons(os.Stdout, polys, inspectWKB)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDrawing, "drawing", "", "boundary drawing (DXF)")
	inspectCmd.Flags().StringSliceVar(&inspectLayers, "layer", nil, "only polygons on these layers (default from config)")
	inspectCmd.Flags().BoolVar(&inspectWKB, "wkb", false, "print each outline as hex EWKB")
	_ = inspectCmd.MarkFlagRequired("drawing")
	rootCmd.AddCommand(inspectCmd)
}

// formatPolygons writes a table of polygons followed by an area summary.
func formatPolygons(out io.Writer, polys []*geo.Polygon, withWKB bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := "ID\tHANDLE\tLAYER\tVERTICES\tAREA\tBOUNDS"
	if withWKB {
		header += "\tWKB"
	}
	_, _ = fmt.Fprintln(w, header)

	areas := make([]float64, len(polys))
	for i, p := range polys {
		areas[i] = p.Area()
		minX, minY, maxX, maxY := p.Bounds()
		line := fmt.Sprintf("%d\t%s\t%s\t%d\t%.4f\t(%g %g, %g %g)",
			p.ID, p.Handle, p.Layer, p.NumVertices(), areas[i], minX, minY, maxX, maxY)
		if withWKB {
			b, err := p.WKB(0)
			if err != nil {
				return err
			}
			line += "\t" + hex.EncodeToString(b)
		}
		_, _ = fmt.Fprintln(w, line)
	}
	_ = w.Flush()

	if len(areas) > 0 {
		_, _ = fmt.Fprintf(out, "\n%d polygons, total area %.4f (min %.4f, max %.4f)\n",
			len(areas), floats.Sum(areas), floats.Min(areas), floats.Max(areas))
	}
	return nil
}
