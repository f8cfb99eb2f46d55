package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/unitmap/internal/model"
	"github.com/sells-group/unitmap/internal/pipeline"
	"github.com/sells-group/unitmap/internal/points"
	"github.com/sells-group/unitmap/internal/store"
)

var (
	analyzeDrawing string
	analyzePoints  string
	analyzeOut     string
	analyzeLabels  string
	analyzeFormat  string
	analyzeRadius  float64
	analyzeSave    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one drawing and point dataset",
	Example: `  unitmap analyze --drawing site.dxf --points units.csv --out site-annotated.dxf
  unitmap analyze --drawing site.dxf --points units.xlsx --format table --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		ctx := cmd.Context()

		a, err := newAnalyzer(analyzeRadius)
		if err != nil {
			return err
		}

		job := analysisJob{
			Drawing: analyzeDrawing,
			Points:  analyzePoints,
			Out:     analyzeOut,
			Labels:  analyzeLabels,
		}
		res, err := job.run(ctx, a, cfg.Points.Options())
		if err != nil {
			return err
		}

		if analyzeSave {
			if err := cfg.Validate("runs"); err != nil {
				return err
			}
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			id, err := saveRun(ctx, st, res)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Saved run %s\n", id)
		}

		return writeStats(os.Stdout, analyzeFormat, res)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDrawing, "drawing", "", "boundary drawing (DXF)")
	analyzeCmd.Flags().StringVar(&analyzePoints, "points", "", "point dataset (CSV, XLSX or point shapefile)")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "write the annotated drawing here (default <drawing>-annotated.dxf)")
	analyzeCmd.Flags().StringVar(&analyzeLabels, "labels", "", "write labelled points as CSV here")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "stats output format: json, yaml or table")
	analyzeCmd.Flags().Float64Var(&analyzeRadius, "radius", 0, "override the clustering radius (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "store the run in the configured run store")
	_ = analyzeCmd.MarkFlagRequired("drawing")
	_ = analyzeCmd.MarkFlagRequired("points")
	rootCmd.AddCommand(analyzeCmd)
}

// analysisJob is one (drawing, points) pair and where to write its outputs.
type analysisJob struct {
	Name    string `yaml:"name"`
	Drawing string `yaml:"drawing"`
	Points  string `yaml:"points"`
	Out     string `yaml:"out"`
	Labels  string `yaml:"labels"`
}

// run loads the job's inputs, analyzes them and writes the annotated drawing
// and, if requested, the labelled points.
func (j analysisJob) run(ctx context.Context, a *pipeline.Analyzer, opts points.Options) (*pipeline.Result, error) {
	drawing, err := os.ReadFile(j.Drawing)
	if err != nil {
		return nil, eris.Wrapf(err, "read drawing %s", j.Drawing)
	}

	ds, err := points.Load(ctx, j.Points, opts)
	if err != nil {
		return nil, model.NewStageError(model.StageLoad, model.ErrData, err)
	}

	res, err := a.Run(ctx, pipeline.Input{
		DrawingName: filepath.Base(j.Drawing),
		Drawing:     drawing,
		Points:      ds,
	})
	if err != nil {
		return nil, err
	}

	out := j.Out
	if out == "" {
		out = annotatedPath(j.Drawing)
	}
	if err := os.WriteFile(out, res.Drawing, 0o644); err != nil {
		return nil, eris.Wrapf(err, "write annotated drawing %s", out)
	}
	zap.L().Info("wrote annotated drawing", zap.String("path", out))

	if j.Labels != "" {
		if err := writeLabelsFile(j.Labels, ds.Columns, res.Labels()); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func writeLabelsFile(path string, columns []string, labels []pipeline.Label) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create labels file %s", path)
	}
	if err := points.WriteLabels(f, columns, labels); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "close labels file %s", path)
}

// annotatedPath returns site-annotated.dxf for site.dxf.
func annotatedPath(drawing string) string {
	ext := filepath.Ext(drawing)
	return drawing[:len(drawing)-len(ext)] + "-annotated.dxf"
}

// saveRun stores res under a new run id and returns the id.
func saveRun(ctx context.Context, st store.Store, res *pipeline.Result) (string, error) {
	id := uuid.New().String()
	rec, err := store.NewRecord(id, res, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if err := st.SaveRun(ctx, rec); err != nil {
		return "", eris.Wrap(err, "save run")
	}
	return id, nil
}

// statsReport is the CLI rendering of an analysis result.
type statsReport struct {
	Drawing     string              `json:"drawing" yaml:"drawing"`
	Points      string              `json:"points" yaml:"points"`
	Params      model.RunParams     `json:"params" yaml:"params"`
	InputPoints int                 `json:"input_points" yaml:"input_points"`
	Retained    int                 `json:"retained" yaml:"retained"`
	Polygons    int                 `json:"polygons" yaml:"polygons"`
	Stats       model.CategoryStats `json:"stats" yaml:"stats"`
}

func newStatsReport(res *pipeline.Result) statsReport {
	return statsReport{
		Drawing:     res.DrawingName,
		Points:      res.PointsName,
		Params:      res.Params,
		InputPoints: res.InputPoints,
		Retained:    len(res.Retained),
		Polygons:    len(res.Polygons),
		Stats:       res.Stats,
	}
}

// writeStats renders the result's statistics as json, yaml or table.
func writeStats(out io.Writer, format string, res *pipeline.Result) error {
	report := newStatsReport(res)
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(report), "encode stats")
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return eris.Wrap(err, "encode stats")
		}
		return eris.Wrap(enc.Close(), "encode stats")
	case "table":
		formatStatsTable(out, report)
		return nil
	default:
		return eris.Errorf("unknown format %q (want json, yaml or table)", format)
	}
}

func formatStatsTable(out io.Writer, r statsReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Drawing:\t%s\n", r.Drawing)
	_, _ = fmt.Fprintf(w, "Points:\t%s (%d of %d inside boundaries)\n", r.Points, r.Retained, r.InputPoints)
	_, _ = fmt.Fprintf(w, "Polygons:\t%d\n", r.Polygons)
	_, _ = fmt.Fprintf(w, "Radius:\t%g\n", r.Params.Radius)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "CATEGORY\tUNITS\tSTRUCTURES")
	_, _ = fmt.Fprintln(w, "--------\t-----\t----------")
	for _, c := range model.Categories {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", c.Label(), r.Stats.Units(c), r.Stats.Structures(c))
	}
	_, _ = fmt.Fprintf(w, "Total\t%d\t%d\n", r.Stats.TotalUnits, r.Stats.TotalStructures)
	_ = w.Flush()
}
