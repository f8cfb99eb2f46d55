// Package cluster groups retained points into structures: connected
// components of the undirected "within radius" relation.
package cluster

import (
	"slices"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Coord is a planar coordinate.
type Coord struct {
	X, Y float64
}

// Index answers fixed-radius neighbour queries over a static point set with a
// 2-d k-d tree. An Index is read-only after NewIndex and safe for concurrent
// queries.
type Index struct {
	radius2 float64
	coords  []Coord
	tree    *kdtree.Tree
}

// NewIndex builds an index over coords with the given radius (> 0).
func NewIndex(coords []Coord, radius float64) *Index {
	// The tree reorders its points; keep coords in input order.
	pts := make(sites, len(coords))
	for i, c := range coords {
		pts[i] = site{Coord: c, idx: i}
	}
	return &Index{
		radius2: radius * radius,
		coords:  coords,
		tree:    kdtree.New(pts, false),
	}
}

// Len returns the number of indexed points.
func (idx *Index) Len() int {
	return len(idx.coords)
}

// Within returns the indices of all other points whose Euclidean distance to
// point i is at most the radius (closed interval), in ascending order.
func (idx *Index) Within(i int) []int {
	q := site{Coord: idx.coords[i], idx: i}
	keep := &radiusKeeper{query: q, radius2: idx.radius2}
	idx.tree.NearestSet(keep, q)

	var out []int
	for _, c := range keep.hits {
		if j := c.Comparable.(site).idx; j != i {
			out = append(out, j)
		}
	}
	slices.Sort(out)
	return out
}

// radiusKeeper keeps every point at squared distance <= radius2. Its Max is
// fixed at the radius and never a sentinel, so NearestSet cannot pop a point
// lying exactly on the radius.
type radiusKeeper struct {
	query   site
	radius2 float64
	hits    []kdtree.ComparableDist
}

func (k *radiusKeeper) Keep(c kdtree.ComparableDist) {
	if c.Dist <= k.radius2 {
		k.hits = append(k.hits, c)
	}
}

func (k *radiusKeeper) Max() kdtree.ComparableDist {
	return kdtree.ComparableDist{Comparable: k.query, Dist: k.radius2}
}

func (k *radiusKeeper) Len() int           { return len(k.hits) }
func (k *radiusKeeper) Less(i, j int) bool { return k.hits[i].Dist < k.hits[j].Dist }
func (k *radiusKeeper) Swap(i, j int)      { k.hits[i], k.hits[j] = k.hits[j], k.hits[i] }

func (k *radiusKeeper) Push(x any) {
	k.hits = append(k.hits, x.(kdtree.ComparableDist))
}

func (k *radiusKeeper) Pop() any {
	last := k.hits[len(k.hits)-1]
	k.hits = k.hits[:len(k.hits)-1]
	return last
}

// site is an indexed coordinate stored in the tree.
type site struct {
	Coord
	idx int
}

// Compare returns the signed distance of s from the plane through c
// perpendicular to dimension d.
func (s site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(site)
	switch d {
	case 0:
		return s.X - q.X
	case 1:
		return s.Y - q.Y
	default:
		panic("cluster: illegal dimension")
	}
}

func (s site) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between s and c.
func (s site) Distance(c kdtree.Comparable) float64 {
	q := c.(site)
	dx := s.X - q.X
	dy := s.Y - q.Y
	return dx*dx + dy*dy
}

type sites []site

func (p sites) Index(i int) kdtree.Comparable         { return p[i] }
func (p sites) Len() int                              { return len(p) }
func (p sites) Pivot(d kdtree.Dim) int                { return plane{sites: p, Dim: d}.Pivot() }
func (p sites) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane sorts sites along one dimension for median partitioning.
type plane struct {
	kdtree.Dim
	sites
}

func (p plane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.sites[i].X < p.sites[j].X
	}
	return p.sites[i].Y < p.sites[j].Y
}

func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.sites = p.sites[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.sites[i], p.sites[j] = p.sites[j], p.sites[i]
}
