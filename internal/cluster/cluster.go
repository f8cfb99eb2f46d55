package cluster

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/sells-group/unitmap/internal/model"
)

// DefaultRadius is the proximity radius in drawing units.
const DefaultRadius = 0.17

// chunkSize is the number of query points handled per worker task.
const chunkSize = 256

// Options configures a clustering run.
type Options struct {
	Radius  float64 // link distance, inclusive
	Workers int     // parallel neighbour query workers; <= 1 runs inline
}

// Group is one connected component. Members index the clustered coordinates
// in ascending order.
type Group struct {
	ID      int   `json:"id"`
	Members []int `json:"members"`
}

// Count returns the number of members.
func (g Group) Count() int {
	return len(g.Members)
}

// Result is the outcome of a clustering run.
type Result struct {
	Groups     []Group
	Assignment []int // coordinate index → group ID
	Edges      int   // within-radius pairs found
}

// Counts returns group sizes keyed by group ID.
func (r *Result) Counts() map[int]int {
	out := make(map[int]int, len(r.Groups))
	for _, g := range r.Groups {
		out[g.ID] = g.Count()
	}
	return out
}

// Cluster partitions coords into connected components of the graph whose
// edges join every pair at distance <= opts.Radius. Two points share a group
// when any chain of such links connects them, however long the chain. Group
// IDs are assigned in order of each group's smallest member index, so the
// result depends only on the input order, never on traversal order.
func Cluster(ctx context.Context, coords []Coord, opts Options) (*Result, error) {
	if opts.Radius <= 0 || math.IsNaN(opts.Radius) || math.IsInf(opts.Radius, 0) {
		return nil, model.DataError(eris.Errorf("cluster: radius must be a positive finite number, got %v", opts.Radius))
	}
	if len(coords) == 0 {
		return &Result{}, nil
	}

	idx := NewIndex(coords, opts.Radius)
	edges, err := neighbourEdges(ctx, idx, opts.Workers)
	if err != nil {
		return nil, err
	}

	// Single writer: only this goroutine touches the graph.
	g := simple.NewUndirectedGraph()
	for i := range coords {
		g.AddNode(simple.Node(i))
	}
	for _, e := range edges {
		g.SetEdge(simple.Edge{F: simple.Node(e[0]), T: simple.Node(e[1])})
	}

	components := topo.ConnectedComponents(g)
	groups := make([]Group, 0, len(components))
	for _, comp := range components {
		members := make([]int, len(comp))
		for i, n := range comp {
			members[i] = int(n.ID())
		}
		sort.Ints(members)
		groups = append(groups, Group{Members: members})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Members[0] < groups[j].Members[0]
	})

	assignment := make([]int, len(coords))
	for id := range groups {
		groups[id].ID = id
		for _, m := range groups[id].Members {
			assignment[m] = id
		}
	}

	zap.L().Debug("cluster: components built",
		zap.Int("points", len(coords)),
		zap.Int("edges", len(edges)),
		zap.Int("groups", len(groups)),
		zap.Float64("radius", opts.Radius),
	)

	return &Result{Groups: groups, Assignment: assignment, Edges: len(edges)}, nil
}

// neighbourEdges returns every within-radius pair (i, j) with i < j. Queries
// fan out over workers in fixed chunks; chunk results are concatenated in
// chunk order so the edge list is identical for any worker count.
func neighbourEdges(ctx context.Context, idx *Index, workers int) ([][2]int, error) {
	n := idx.Len()
	chunks := (n + chunkSize - 1) / chunkSize
	results := make([][][2]int, chunks)

	query := func(c int) {
		lo := c * chunkSize
		hi := min(lo+chunkSize, n)
		var out [][2]int
		for i := lo; i < hi; i++ {
			for _, j := range idx.Within(i) {
				if j > i {
					out = append(out, [2]int{i, j})
				}
			}
		}
		results[c] = out
	}

	if workers <= 1 || chunks == 1 {
		for c := 0; c < chunks; c++ {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "cluster: neighbour queries cancelled")
			}
			query(c)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for c := 0; c < chunks; c++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return eris.Wrap(err, "cluster: neighbour queries cancelled")
				}
				query(c)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var edges [][2]int
	for _, r := range results {
		edges = append(edges, r...)
	}
	return edges, nil
}
