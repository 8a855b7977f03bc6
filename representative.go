package agglo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// repPoint is one row of the representative-point table. Coordinates
// live in the spatial index under the same id; the table only tracks
// ownership, the containing leaf, and the point's nearest foreign
// representative, from which cluster-level nearest neighbors derive.
type repPoint struct {
	cluster        int
	leaf           int
	closest        int // rep id of the nearest foreign representative, -1 if none
	closestCluster int
	closestDist    float64
	active         bool
}

// repCluster is one slot in the representative engine's cluster arena.
// Merged clusters are tombstoned, never removed.
type repCluster struct {
	size    int
	members []int
	reps    []int
	nn      int
	nnDist  float64
	valid   bool
}

// repEngine merges clusters using one or more representative points per
// cluster: the point itself for single linkage, the centroid for
// centroid linkage, or a shrunk skeleton of boundary points for CURE.
// Nearest neighbors among representatives are found through the spatial
// index, which is mutated in place as merges relocate representatives.
type repEngine struct {
	metric    DistanceMetric
	linkage   Linkage
	repCap    int
	shrink    float64
	collect   bool // accumulate merge records for a dendrogram
	data      [][]float64
	index     SpatialIndex
	reps      []repPoint
	clusters  []repCluster
	liveCount int
	records   []mergeRecord
}

func newRepEngine(data [][]float64, cfg Config, collect bool) *repEngine {
	n := len(data)
	tree := NewKDTree(data, cfg.Metric, cfg.LeafSize)

	e := &repEngine{
		metric:    cfg.Metric,
		linkage:   cfg.Linkage,
		repCap:    cfg.RepPoints,
		shrink:    cfg.Compression,
		collect:   collect,
		data:      data,
		index:     tree,
		reps:      make([]repPoint, n),
		clusters:  make([]repCluster, n),
		liveCount: n,
	}

	for i := range data {
		e.reps[i] = repPoint{
			cluster:        i,
			leaf:           tree.LeafOf(data[i]),
			closest:        -1,
			closestCluster: -1,
			closestDist:    math.Inf(1),
			active:         true,
		}
		e.clusters[i] = repCluster{
			size:    1,
			members: []int{i},
			reps:    []int{i},
			nn:      -1,
			nnDist:  math.Inf(1),
			valid:   true,
		}
	}

	// Seed every point's closest point/cluster/distance via the index.
	for i := range data {
		e.refreshRep(i)
		e.computeClusterNN(i)
	}

	return e
}

func (e *repEngine) live() int                   { return e.liveCount }
func (e *repEngine) mergeRecords() []mergeRecord { return e.records }

// step merges the cluster with the globally minimum nearest-cluster
// distance into its recorded nearest cluster. Distance ties pick the
// lowest cluster id.
func (e *repEngine) step(_ int) error {
	u := -1
	best := math.Inf(1)
	for i := range e.clusters {
		if e.clusters[i].valid && e.clusters[i].nnDist < best {
			best = e.clusters[i].nnDist
			u = i
		}
	}
	if u == -1 || e.clusters[u].nn < 0 {
		return fmt.Errorf("agglo: internal: no valid nearest neighbor among %d clusters", e.liveCount)
	}
	v := e.clusters[u].nn
	if !e.clusters[v].valid {
		return fmt.Errorf("agglo: internal: cluster %d's nearest neighbor %d is tombstoned", u, v)
	}
	if u > v {
		u, v = v, u
	}

	newID := len(e.clusters)
	size := e.clusters[u].size + e.clusters[v].size
	members := make([]int, 0, size)
	members = append(members, e.clusters[u].members...)
	members = append(members, e.clusters[v].members...)

	if e.collect {
		e.records = append(e.records, mergeRecord{left: u, right: v, distance: best, size: size, id: newID})
	}

	e.clusters = append(e.clusters, repCluster{
		size:    size,
		members: members,
		reps:    nil,
		nn:      -1,
		nnDist:  math.Inf(1),
		valid:   true,
	})
	e.clusters[u].valid = false
	e.clusters[v].valid = false
	e.liveCount--

	switch e.linkage {
	case LinkageSingle:
		e.mergeSingle(u, v, newID)
	default: // centroid, CURE
		e.mergeSkeleton(u, v, newID)
	}

	return nil
}

// mergeSingle reuses both clusters' representative sets unchanged: the
// point-level nearest-neighbor structure already reflects single-link
// distance, so only ownership labels and the handful of representative
// pairs that became internal to the merged cluster need attention.
func (e *repEngine) mergeSingle(u, v, newID int) {
	reps := make([]int, 0, len(e.clusters[u].reps)+len(e.clusters[v].reps))
	reps = append(reps, e.clusters[u].reps...)
	reps = append(reps, e.clusters[v].reps...)
	for _, r := range reps {
		e.reps[r].cluster = newID
	}
	e.clusters[newID].reps = reps

	// Relabel every surviving reference to the merged clusters. Stored
	// distances stay exact because no representative moved.
	for r := range e.reps {
		if !e.reps[r].active {
			continue
		}
		if c := e.reps[r].closestCluster; c == u || c == v {
			e.reps[r].closestCluster = newID
		}
	}
	for c := range e.clusters {
		if c == newID || !e.clusters[c].valid {
			continue
		}
		if nn := e.clusters[c].nn; nn == u || nn == v {
			e.clusters[c].nn = newID
		}
	}

	// Representatives of the merged cluster whose closest point now lies
	// inside it need a fresh index query.
	for _, r := range reps {
		if e.reps[r].closestCluster == newID {
			e.refreshRep(r)
		}
	}
	e.computeClusterNN(newID)
}

// mergeSkeleton recomputes the merged cluster's representatives (the
// centroid, or a CURE skeleton), relocates them in the index, and
// refreshes every neighbor relation that could have changed.
func (e *repEngine) mergeSkeleton(u, v, newID int) {
	centroid := e.centroidOf(e.clusters[newID].members)

	var repCoords [][]float64
	if e.linkage == LinkageCentroid {
		repCoords = [][]float64{centroid}
	} else {
		repCoords = e.cureSkeleton(e.clusters[newID].members, centroid)
	}

	e.retireReps(u)
	e.retireReps(v)

	reps := make([]int, len(repCoords))
	for i, coords := range repCoords {
		reps[i] = e.addRep(newID, coords)
	}
	e.clusters[newID].reps = reps

	e.refreshCluster(newID)

	for w := range e.clusters {
		if w == newID || !e.clusters[w].valid {
			continue
		}
		if nn := e.clusters[w].nn; nn == u || nn == v {
			// The old nearest neighbor no longer exists; a fresh index
			// query is mandatory, not a local patch.
			e.refreshCluster(w)
			continue
		}
		// Centroid and CURE linkage are not reducible: the merged
		// cluster's relocated skeleton can undercut a bystander's
		// stored nearest distance.
		if d := e.skeletonDistance(newID, w); d < e.clusters[w].nnDist {
			e.clusters[w].nn = newID
			e.clusters[w].nnDist = d
		}
	}
}

// cureSkeleton picks up to repCap representative coordinates for a
// cluster: the centroid seeds the chosen set, then the member point
// farthest from everything already chosen joins greedily, and finally
// every boundary point is shrunk toward the centroid by the compression
// factor. With repCap=1 and zero compression this degenerates to plain
// centroid linkage.
func (e *repEngine) cureSkeleton(members []int, centroid []float64) [][]float64 {
	chosen := [][]float64{centroid}
	used := make(map[int]bool, len(members))

	for len(chosen) < e.repCap {
		bestMember := -1
		bestDist := -1.0
		for _, m := range members {
			if used[m] {
				continue
			}
			d := math.Inf(1)
			for _, c := range chosen {
				if dc := e.metric.Distance(e.data[m], c); dc < d {
					d = dc
				}
			}
			if d > bestDist {
				bestDist = d
				bestMember = m
			}
		}
		if bestMember == -1 {
			break
		}
		used[bestMember] = true
		coords := make([]float64, len(e.data[bestMember]))
		copy(coords, e.data[bestMember])
		chosen = append(chosen, coords)
	}

	for i := 1; i < len(chosen); i++ {
		floats.Scale(1-e.shrink, chosen[i])
		floats.AddScaled(chosen[i], e.shrink, centroid)
	}
	return chosen
}

func (e *repEngine) centroidOf(members []int) []float64 {
	centroid := make([]float64, len(e.data[members[0]]))
	for _, m := range members {
		floats.Add(centroid, e.data[m])
	}
	floats.Scale(1/float64(len(members)), centroid)
	return centroid
}

// retireReps deactivates a tombstoned cluster's representatives and
// removes them from their index leaves.
func (e *repEngine) retireReps(c int) {
	for _, r := range e.clusters[c].reps {
		e.reps[r].active = false
		e.index.Remove(e.reps[r].leaf, r)
	}
}

// addRep registers new representative coordinates with the index and the
// representative table under the same fresh id.
func (e *repEngine) addRep(cluster int, coords []float64) int {
	id := e.index.Add(coords)
	leaf := e.index.LeafOf(coords)
	e.index.Insert(leaf, id)
	e.reps = append(e.reps, repPoint{
		cluster:        cluster,
		leaf:           leaf,
		closest:        -1,
		closestCluster: -1,
		closestDist:    math.Inf(1),
		active:         true,
	})
	return id
}

// refreshRep recomputes one representative's nearest foreign
// representative through the index.
func (e *repEngine) refreshRep(r int) {
	owner := e.reps[r].cluster
	id, dist, ok := e.index.NearestNeighbor(e.index.Coords(r), func(cand int) bool {
		return cand != r && e.reps[cand].active && e.reps[cand].cluster != owner
	})
	if !ok {
		e.reps[r].closest = -1
		e.reps[r].closestCluster = -1
		e.reps[r].closestDist = math.Inf(1)
		return
	}
	e.reps[r].closest = id
	e.reps[r].closestCluster = e.reps[id].cluster
	e.reps[r].closestDist = dist
}

// refreshCluster re-queries the index for every representative of c and
// re-derives the cluster-level nearest neighbor.
func (e *repEngine) refreshCluster(c int) {
	for _, r := range e.clusters[c].reps {
		e.refreshRep(r)
	}
	e.computeClusterNN(c)
}

// computeClusterNN derives a cluster's nearest neighbor as the minimum
// over its representatives' closest distances, breaking ties toward the
// lowest cluster id.
func (e *repEngine) computeClusterNN(c int) {
	cl := &e.clusters[c]
	cl.nn = -1
	cl.nnDist = math.Inf(1)
	for _, r := range cl.reps {
		rp := &e.reps[r]
		if rp.closest < 0 {
			continue
		}
		if rp.closestDist < cl.nnDist ||
			(rp.closestDist == cl.nnDist && cl.nn != -1 && rp.closestCluster < cl.nn) {
			cl.nn = rp.closestCluster
			cl.nnDist = rp.closestDist
		}
	}
}

// skeletonDistance is the minimum pairwise distance between two
// clusters' representative skeletons, brute over at most repCap² pairs.
func (e *repEngine) skeletonDistance(a, b int) float64 {
	best := math.Inf(1)
	for _, ra := range e.clusters[a].reps {
		for _, rb := range e.clusters[b].reps {
			if d := e.metric.Distance(e.index.Coords(ra), e.index.Coords(rb)); d < best {
				best = d
			}
		}
	}
	return best
}

// labels reads a per-point label array off the live clusters, assigning
// output slots in ascending cluster-id order.
func (e *repEngine) labels() []int {
	out := make([]int, len(e.data))
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
