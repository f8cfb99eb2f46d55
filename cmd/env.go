package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/unitmap/internal/pipeline"
	"github.com/sells-group/unitmap/internal/store"
)

// newAnalyzer builds an Analyzer from the loaded config, applying a radius
// override when radius > 0.
func newAnalyzer(radius float64) (*pipeline.Analyzer, error) {
	pc := cfg.Analysis.Pipeline()
	if radius > 0 {
		pc.Radius = radius
	}
	a, err := pipeline.New(pc)
	if err != nil {
		return nil, eris.Wrap(err, "init analyzer")
	}
	return a, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open run store")
	}
	return st, nil
}
