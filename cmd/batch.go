package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/unitmap/internal/model"
	"github.com/sells-group/unitmap/internal/pipeline"
	"github.com/sells-group/unitmap/internal/store"
)

var (
	batchManifest string
	batchSave     bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze many drawing and point dataset pairs from a manifest",
	Long: `Reads a YAML manifest of jobs and analyzes them concurrently:

  jobs:
    - name: north
      drawing: north.dxf
      points: north.csv
      labels: north-labels.csv
    - drawing: south.dxf
      points: south.xlsx

Relative paths are resolved against the manifest's directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("batch"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		jobs, err := loadManifest(batchManifest)
		if err != nil {
			return err
		}

		a, err := newAnalyzer(0)
		if err != nil {
			return err
		}
		opts := cfg.Points.Options()

		var st store.Store
		if batchSave {
			if err := cfg.Validate("runs"); err != nil {
				return err
			}
			if st, err = initStore(ctx); err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		results := processBatch(ctx, jobs, cfg.Batch.MaxConcurrent, func(ctx context.Context, job analysisJob) (*pipeline.Result, error) {
			res, err := job.run(ctx, a, opts)
			if err != nil || !batchSave {
				return res, err
			}
			if _, err := saveRun(ctx, st, res); err != nil {
				return nil, err
			}
			return res, nil
		})

		formatBatchResults(os.Stdout, results)
		if n := countFailed(results); n > 0 {
			return eris.Errorf("batch: %d of %d jobs failed", n, len(results))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchManifest, "manifest", "", "YAML manifest listing jobs")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "store every successful run")
	_ = batchCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(batchCmd)
}

type manifest struct {
	Jobs []analysisJob `yaml:"jobs"`
}

// loadManifest reads the manifest at path, resolves relative paths against
// its directory and names unnamed jobs after their drawing.
func loadManifest(path string) ([]analysisJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read manifest %s", path)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "batch: parse manifest %s", path)
	}
	if len(m.Jobs) == 0 {
		return nil, eris.Errorf("batch: manifest %s has no jobs", path)
	}

	dir := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	for i := range m.Jobs {
		j := &m.Jobs[i]
		if j.Drawing == "" || j.Points == "" {
			return nil, eris.Errorf("batch: job %d needs both drawing and points", i+1)
		}
		j.Drawing = resolve(j.Drawing)
		j.Points = resolve(j.Points)
		j.Out = resolve(j.Out)
		j.Labels = resolve(j.Labels)
		if j.Name == "" {
			j.Name = filepath.Base(j.Drawing)
		}
	}
	return m.Jobs, nil
}

type analyzeFunc func(ctx context.Context, job analysisJob) (*pipeline.Result, error)

// batchResult is the outcome of one job.
type batchResult struct {
	Job    analysisJob
	Result *pipeline.Result
	Err    error
}

// processBatch runs every job with at most concurrency in flight. A failed
// job does not abort the others. Results keep manifest order.
func processBatch(ctx context.Context, jobs []analysisJob, concurrency int, analyze analyzeFunc) []batchResult {
	zap.L().Info("processing batch",
		zap.Int("jobs", len(jobs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make([]batchResult, len(jobs))
	var succeeded, failed atomic.Int64

	for i, job := range jobs {
		g.Go(func() error {
			log := zap.L().With(zap.String("job", job.Name))

			res, err := analyze(gctx, job)
			results[i] = batchResult{Job: job, Result: res, Err: err}
			if err != nil {
				failed.Add(1)
				log.Error("analysis failed", zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			log.Info("analysis complete",
				zap.Int("structures", res.Stats.TotalStructures),
				zap.Int("units", res.Stats.TotalUnits),
			)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results
}

func countFailed(results []batchResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// formatBatchResults writes one row per job to w.
func formatBatchResults(out io.Writer, results []batchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "JOB\tSTATUS\tUNITS\tSINGLE\tLOW_RISE\tHIGH_RISE\tSTRUCTURES\tERROR")
	_, _ = fmt.Fprintln(w, "---\t------\t-----\t------\t--------\t---------\t----------\t-----")

	for _, r := range results {
		if r.Err != nil {
			kind := string(model.KindOf(r.Err))
			if kind == "" {
				kind = "error"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t\t\t\t\t\t%s\n", r.Job.Name, kind, r.Err)
			continue
		}
		s := r.Result.Stats
		_, _ = fmt.Fprintf(w, "%s\tok\t%d\t%d\t%d\t%d\t%d\t\n",
			r.Job.Name, s.TotalUnits, s.SingleUnitCount, s.LowRiseCount, s.HighRiseCount, s.TotalStructures)
	}
	_ = w.Flush()
}
