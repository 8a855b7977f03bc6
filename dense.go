package agglo

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// denseCluster is one slot in the dense engine's cluster arena. Merged
// clusters are tombstoned (valid=false) rather than removed so that ids
// stay stable and pre-merge sizes remain readable for linkage updates.
type denseCluster struct {
	size     int
	centroid []float64
	members  []int
	nn       int
	nnDist   float64
	valid    bool
}

// denseEngine merges clusters using an explicit O(n²) nearest-neighbor
// table: every round it merges all pairs at the globally minimum stored
// distance, then refreshes only the neighbors that could have changed.
// Complete, average and Ward linkage are all reducible, so a cluster's
// nearest neighbor needs a rescan only when that neighbor was merged.
type denseEngine struct {
	metric    DistanceMetric
	link      denseLinkage
	dims      int
	n         int
	collect   bool // accumulate merge records for a dendrogram
	clusters  []denseCluster
	initial   []float64 // n×n linkage distances between original points
	merged    map[uint64]float64
	liveCount int
	records   []mergeRecord
}

// denseLinkage is the strategy for one dense linkage kind: how singleton
// distances derive from the metric, and how the distance from a freshly
// merged cluster to a bystander derives from pre-merge state.
type denseLinkage interface {
	initialFromMetric(d float64) float64
	merged(e *denseEngine, aID, bID, otherID, newID int) float64
}

// completeLinkage: max over all cross pairs.
type completeLinkage struct{}

func (completeLinkage) initialFromMetric(d float64) float64 { return d }

func (completeLinkage) merged(e *denseEngine, aID, bID, otherID, _ int) float64 {
	return math.Max(e.distance(aID, otherID), e.distance(bID, otherID))
}

// averageLinkage: mean over all cross pairs, maintained incrementally as
// the size-weighted mean of the constituents' distances.
type averageLinkage struct{}

func (averageLinkage) initialFromMetric(d float64) float64 { return d }

func (averageLinkage) merged(e *denseEngine, aID, bID, otherID, _ int) float64 {
	na := float64(e.clusters[aID].size)
	nb := float64(e.clusters[bID].size)
	return (na*e.distance(aID, otherID) + nb*e.distance(bID, otherID)) / (na + nb)
}

// wardLinkage: the increase-in-variance criterion
// n1·n2/(n1+n2) · d²(centroid1, centroid2), recomputed directly from the
// merged centroids. Requires SquaredEuclideanMetric so the metric value
// is already d².
type wardLinkage struct{}

func (wardLinkage) initialFromMetric(d float64) float64 { return d / 2 }

func (w wardLinkage) merged(e *denseEngine, _, _, otherID, newID int) float64 {
	return w.distance(e.metric,
		e.clusters[newID].size, e.clusters[otherID].size,
		e.clusters[newID].centroid, e.clusters[otherID].centroid)
}

func (wardLinkage) distance(metric DistanceMetric, n1, n2 int, c1, c2 []float64) float64 {
	weight := float64(n1*n2) / float64(n1+n2)
	return weight * metric.Distance(c1, c2)
}

// denseLinkages is the closed dispatch table for the dense engine.
var denseLinkages = map[Linkage]denseLinkage{
	LinkageComplete: completeLinkage{},
	LinkageAverage:  averageLinkage{},
	LinkageWard:     wardLinkage{},
}

func newDenseEngine(data [][]float64, cfg Config, collect bool) (*denseEngine, error) {
	link, ok := denseLinkages[cfg.Linkage]
	if !ok {
		return nil, fmt.Errorf("agglo: internal: %q is not a dense linkage", cfg.Linkage)
	}

	n := len(data)
	dims := len(data[0])
	flat := make([]float64, n*dims)
	for i, row := range data {
		copy(flat[i*dims:], row)
	}

	initial := ComputePairwiseDistancesParallel(flat, n, dims, cfg.Metric, cfg.Workers)
	for i := range initial {
		initial[i] = link.initialFromMetric(initial[i])
	}

	e := &denseEngine{
		metric:    cfg.Metric,
		link:      link,
		collect:   collect,
		dims:      dims,
		n:         n,
		clusters:  make([]denseCluster, n),
		initial:   initial,
		merged:    make(map[uint64]float64),
		liveCount: n,
	}

	for i := range data {
		centroid := make([]float64, dims)
		copy(centroid, data[i])
		e.clusters[i] = denseCluster{
			size:     1,
			centroid: centroid,
			members:  []int{i},
			nn:       -1,
			nnDist:   math.Inf(1),
			valid:    true,
		}
	}
	for i := 0; i < n; i++ {
		e.rescanNN(i)
	}

	return e, nil
}

func pairKey(a, b int) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(b)
}

// distance returns the stored linkage distance between two live clusters.
func (e *denseEngine) distance(a, b int) float64 {
	if a > b {
		a, b = b, a
	}
	if b < e.n {
		return e.initial[a*e.n+b]
	}
	return e.merged[pairKey(a, b)]
}

func (e *denseEngine) live() int                   { return e.liveCount }
func (e *denseEngine) mergeRecords() []mergeRecord { return e.records }

// step performs one merge round: every cluster pair at the globally
// minimum stored distance is merged, lowest ids first. Simultaneous ties
// that chain onto the same target collapse through an alias map, so each
// appended record references the cluster ids that were live when it was
// written. Processing stops early once only stopAt clusters remain.
func (e *denseEngine) step(stopAt int) error {
	dmin := math.Inf(1)
	for i := range e.clusters {
		if e.clusters[i].valid && e.clusters[i].nnDist < dmin {
			dmin = e.clusters[i].nnDist
		}
	}
	if math.IsInf(dmin, 1) {
		return fmt.Errorf("agglo: internal: no mergeable pair among %d clusters", e.liveCount)
	}

	type pair struct{ a, b int }
	var pairs []pair
	seen := make(map[uint64]bool)
	for i := range e.clusters {
		c := &e.clusters[i]
		if !c.valid || c.nnDist != dmin {
			continue
		}
		a, b := i, c.nn
		if a > b {
			a, b = b, a
		}
		if key := pairKey(a, b); !seen[key] {
			seen[key] = true
			pairs = append(pairs, pair{a, b})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})

	alias := make(map[int]int)
	resolve := func(id int) int {
		for {
			next, ok := alias[id]
			if !ok {
				return id
			}
			id = next
		}
	}

	mergedIDs := make(map[int]bool)
	for _, p := range pairs {
		a, b := resolve(p.a), resolve(p.b)
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		e.mergePair(a, b, dmin, alias)
		mergedIDs[a] = true
		mergedIDs[b] = true
		if e.liveCount <= stopAt || e.liveCount == 1 {
			break
		}
	}

	// Clusters whose nearest neighbor disappeared this round need a
	// fresh scan; reducibility guarantees nobody else changed.
	for i := range e.clusters {
		c := &e.clusters[i]
		if c.valid && mergedIDs[c.nn] {
			e.rescanNN(i)
		}
	}

	return nil
}

// mergePair tombstones a and b, appends the merge record, creates the
// merged cluster and computes its distances to every bystander.
func (e *denseEngine) mergePair(a, b int, dist float64, alias map[int]int) int {
	newID := len(e.clusters)
	sizeA := e.clusters[a].size
	sizeB := e.clusters[b].size
	size := sizeA + sizeB

	centroid := make([]float64, e.dims)
	floats.AddScaled(centroid, float64(sizeA), e.clusters[a].centroid)
	floats.AddScaled(centroid, float64(sizeB), e.clusters[b].centroid)
	floats.Scale(1/float64(size), centroid)

	members := make([]int, 0, size)
	members = append(members, e.clusters[a].members...)
	members = append(members, e.clusters[b].members...)

	if e.collect {
		e.records = append(e.records, mergeRecord{left: a, right: b, distance: dist, size: size, id: newID})
	}
	e.clusters = append(e.clusters, denseCluster{
		size:     size,
		centroid: centroid,
		members:  members,
		nn:       -1,
		nnDist:   math.Inf(1),
		valid:    true,
	})
	e.clusters[a].valid = false
	e.clusters[b].valid = false
	alias[a] = newID
	alias[b] = newID
	e.liveCount--

	// Distances from the new cluster to every remaining cluster. Stale
	// entries for a and b are left in the map; nothing reads distances
	// of tombstoned clusters and the map stays O(n²) like the matrix.
	nc := &e.clusters[newID]
	for o := range e.clusters {
		if o == newID || !e.clusters[o].valid {
			continue
		}
		d := e.link.merged(e, a, b, o, newID)
		e.merged[pairKey(newID, o)] = d
		if d < nc.nnDist {
			nc.nn = o
			nc.nnDist = d
		}
	}

	return newID
}

// rescanNN recomputes cluster i's nearest neighbor over all live
// clusters, breaking distance ties toward the lowest id.
func (e *denseEngine) rescanNN(i int) {
	c := &e.clusters[i]
	c.nn = -1
	c.nnDist = math.Inf(1)
	for o := range e.clusters {
		if o == i || !e.clusters[o].valid {
			continue
		}
		if d := e.distance(i, o); d < c.nnDist {
			c.nn = o
			c.nnDist = d
		}
	}
}

// labels reads a per-point label array off the live clusters, assigning
// output slots in ascending cluster-id order.
func (e *denseEngine) labels() []int {
	out := make([]int, e.n)
	for i := range out {
		out[i] = -1
	}
	slot := 0
	for i := range e.clusters {
		if !e.clusters[i].valid {
			continue
		}
		for _, p := range e.clusters[i].members {
			out[p] = slot
		}
		slot++
	}
	return out
}
