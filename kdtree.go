package agglo

import (
	"math"
	"sort"
)

// KDTree is a KD-tree spatial index supporting exact nearest-neighbor
// queries against a filtered candidate set and in-place leaf membership
// mutation. It is built once over the initial points; afterwards points
// may be removed from and inserted into leaves (representative points
// relocating after merges) but the tree never rebalances — only
// membership sets and bounding regions change. Leaves can therefore grow
// past their build-time capacity under pathological insert patterns; the
// tradeoff is acceptable because the number of live points only shrinks
// as clusters merge.
//
// The tree is stored as a complete binary tree in array form:
//   - node i has children at 2*i+1 and 2*i+2
//   - node bounds are stored as min/max per dimension per node
type KDTree struct {
	dims     int
	leafSize int
	metric   DistanceMetric
	points   [][]float64 // id-indexed coordinates; grows via Add
	nodes    []NodeData
	// nodeBoundsMin[node*dims + j] = min value of feature j under node
	nodeBoundsMin []float64
	// nodeBoundsMax[node*dims + j] = max value of feature j under node
	nodeBoundsMax []float64
	members       [][]int // per-node membership sets, populated for leaves
}

var _ SpatialIndex = (*KDTree)(nil)

// KDTreeValidMetric reports whether the metric supports KD-tree
// acceleration. KD-trees require metrics that decompose along coordinate
// axes: Euclidean, squared Euclidean, Manhattan, Chebyshev, Minkowski.
func KDTreeValidMetric(m DistanceMetric) bool {
	switch m.(type) {
	case EuclideanMetric, SquaredEuclideanMetric, ManhattanMetric, ChebyshevMetric, MinkowskiMetric:
		return true
	default:
		return false
	}
}

// NewKDTree builds a KD-tree over the given points. Point i receives id i.
// leafSize controls the max points per leaf at build time.
func NewKDTree(points [][]float64, metric DistanceMetric, leafSize int) *KDTree {
	if leafSize < 1 {
		leafSize = 1
	}

	n := len(points)
	dims := 0
	if n > 0 {
		dims = len(points[0])
	}

	pts := make([][]float64, n)
	ids := make([]int, n)
	for i, p := range points {
		row := make([]float64, len(p))
		copy(row, p)
		pts[i] = row
		ids[i] = i
	}

	maxNodes := kdMaxNodes(n, leafSize)

	t := &KDTree{
		dims:          dims,
		leafSize:      leafSize,
		metric:        metric,
		points:        pts,
		nodes:         make([]NodeData, maxNodes),
		nodeBoundsMin: make([]float64, maxNodes*dims),
		nodeBoundsMax: make([]float64, maxNodes*dims),
		members:       make([][]int, maxNodes),
	}

	if n > 0 {
		t.buildNode(0, ids)
	}

	return t
}

// kdMaxNodes returns an upper bound on the number of nodes needed for a
// binary tree with n points and the given leaf size. Value-based splits
// may be less balanced than this estimate; buildNode grows the arrays on
// demand when that happens.
func kdMaxNodes(n, leafSize int) int {
	if n == 0 {
		return 1
	}
	leaves := (n + leafSize - 1) / leafSize
	depth := 0
	v := 1
	for v < leaves {
		v *= 2
		depth++
	}
	return (1 << (depth + 2)) - 1
}

// buildNode recursively builds the subtree rooted at nodeID over the
// given point ids.
func (t *KDTree) buildNode(nodeID int, ids []int) {
	t.growTo(nodeID)
	t.computeNodeBounds(nodeID, ids)

	if len(ids) <= t.leafSize {
		t.nodes[nodeID] = NodeData{IsLeaf: true}
		t.members[nodeID] = ids
		return
	}

	// Find dimension with greatest spread.
	splitDim := 0
	maxSpread := -1.0
	base := nodeID * t.dims
	for d := 0; d < t.dims; d++ {
		spread := t.nodeBoundsMax[base+d] - t.nodeBoundsMin[base+d]
		if spread > maxSpread {
			maxSpread = spread
			splitDim = d
		}
	}

	// All points coincide: keep them in one oversized leaf.
	if maxSpread <= 0 {
		t.nodes[nodeID] = NodeData{IsLeaf: true}
		t.members[nodeID] = ids
		return
	}

	splitVal := t.splitValue(ids, splitDim)

	var left, right []int
	for _, id := range ids {
		if t.points[id][splitDim] < splitVal {
			left = append(left, id)
		} else {
			right = append(right, id)
		}
	}

	t.nodes[nodeID] = NodeData{SplitDim: splitDim, SplitVal: splitVal}
	t.buildNode(2*nodeID+1, left)
	t.buildNode(2*nodeID+2, right)
}

// splitValue picks the median value along dim, bumped up to the next
// distinct value when the median equals the minimum so that both sides of
// a split are non-empty.
func (t *KDTree) splitValue(ids []int, dim int) float64 {
	vals := make([]float64, len(ids))
	for i, id := range ids {
		vals[i] = t.points[id][dim]
	}
	sort.Float64s(vals)
	splitVal := vals[len(vals)/2]
	if splitVal == vals[0] {
		for _, v := range vals {
			if v > splitVal {
				splitVal = v
				break
			}
		}
	}
	return splitVal
}

// growTo extends the node arrays so nodeID is addressable.
func (t *KDTree) growTo(nodeID int) {
	for nodeID >= len(t.nodes) {
		t.nodes = append(t.nodes, NodeData{})
		t.nodeBoundsMin = append(t.nodeBoundsMin, make([]float64, t.dims)...)
		t.nodeBoundsMax = append(t.nodeBoundsMax, make([]float64, t.dims)...)
		t.members = append(t.members, nil)
	}
}

// computeNodeBounds computes min/max per dimension over the given ids.
func (t *KDTree) computeNodeBounds(nodeID int, ids []int) {
	base := nodeID * t.dims
	for d := 0; d < t.dims; d++ {
		t.nodeBoundsMin[base+d] = math.Inf(1)
		t.nodeBoundsMax[base+d] = math.Inf(-1)
	}
	for _, id := range ids {
		for d := 0; d < t.dims; d++ {
			v := t.points[id][d]
			if v < t.nodeBoundsMin[base+d] {
				t.nodeBoundsMin[base+d] = v
			}
			if v > t.nodeBoundsMax[base+d] {
				t.nodeBoundsMax[base+d] = v
			}
		}
	}
}

// --- SpatialIndex interface ---

// NumPoints returns the number of ids ever registered with the tree.
func (t *KDTree) NumPoints() int { return len(t.points) }

// Coords returns the coordinates registered for id.
func (t *KDTree) Coords(id int) []float64 { return t.points[id] }

// Members returns the current membership set of a leaf node.
func (t *KDTree) Members(leaf int) []int { return t.members[leaf] }

// Add registers coordinates under a fresh id. The point is not placed in
// any leaf; pair with Insert(LeafOf(coords), id).
func (t *KDTree) Add(coords []float64) int {
	row := make([]float64, len(coords))
	copy(row, coords)
	t.points = append(t.points, row)
	return len(t.points) - 1
}

// LeafOf returns the leaf a coordinate currently routes to, by descending
// the stored split planes.
func (t *KDTree) LeafOf(coords []float64) int {
	nodeID := 0
	for !t.nodes[nodeID].IsLeaf {
		nd := t.nodes[nodeID]
		if coords[nd.SplitDim] < nd.SplitVal {
			nodeID = 2*nodeID + 1
		} else {
			nodeID = 2*nodeID + 2
		}
	}
	return nodeID
}

// Insert adds id to a leaf's membership set and widens bounds along the
// leaf's ancestor path so pruning remains exact for points that fall
// outside the build-time bounding boxes.
func (t *KDTree) Insert(leaf, id int) {
	t.members[leaf] = append(t.members[leaf], id)

	coords := t.points[id]
	nodeID := leaf
	for {
		base := nodeID * t.dims
		for d := 0; d < t.dims; d++ {
			if coords[d] < t.nodeBoundsMin[base+d] {
				t.nodeBoundsMin[base+d] = coords[d]
			}
			if coords[d] > t.nodeBoundsMax[base+d] {
				t.nodeBoundsMax[base+d] = coords[d]
			}
		}
		if nodeID == 0 {
			return
		}
		nodeID = (nodeID - 1) / 2
	}
}

// Remove deletes id from a leaf's membership set in O(leaf size).
// Bounds are left untouched; stale-wide bounds only cost pruning
// efficiency, never correctness.
func (t *KDTree) Remove(leaf, id int) {
	m := t.members[leaf]
	for i, v := range m {
		if v == id {
			m[i] = m[len(m)-1]
			t.members[leaf] = m[:len(m)-1]
			return
		}
	}
}

// NearestNeighbor returns the accepted point closest to query, with ties
// broken by lowest id. ok is false when no accepted point exists.
func (t *KDTree) NearestNeighbor(query []float64, accept func(id int) bool) (int, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	if len(t.points) > 0 {
		t.nnSearch(0, query, accept, &best, &bestDist)
	}
	if best == -1 {
		return -1, 0, false
	}
	return best, bestDist, true
}

// nnSearch performs a best-first traversal. Subtrees are pruned only when
// their reduced-distance lower bound strictly exceeds the current best,
// so equal-distance candidates are still visited and the lowest id wins.
func (t *KDTree) nnSearch(nodeID int, query []float64, accept func(id int) bool, best *int, bestDist *float64) {
	node := t.nodes[nodeID]

	if node.IsLeaf {
		for _, id := range t.members[nodeID] {
			if !accept(id) {
				continue
			}
			d := t.metric.Distance(query, t.points[id])
			if d < *bestDist || (d == *bestDist && *best != -1 && id < *best) {
				*best = id
				*bestDist = d
			}
		}
		return
	}

	left := 2*nodeID + 1
	right := 2*nodeID + 2

	leftRdist := t.minRdistPoint(left, query)
	rightRdist := t.minRdistPoint(right, query)

	nearChild, farChild := left, right
	farRdist := rightRdist
	if rightRdist < leftRdist {
		nearChild, farChild = right, left
		farRdist = leftRdist
	}

	t.nnSearch(nearChild, query, accept, best, bestDist)

	if *best == -1 || t.metric.DistToRdist(*bestDist) >= farRdist {
		t.nnSearch(farChild, query, accept, best, bestDist)
	}
}

// minRdistPoint returns a lower bound in reduced-distance space on the
// distance between a point and anything inside the node's bounding box.
func (t *KDTree) minRdistPoint(node int, point []float64) float64 {
	base := node * t.dims

	if _, ok := t.metric.(ChebyshevMetric); ok {
		var rdist float64
		for j := 0; j < t.dims; j++ {
			if d := t.axisGap(base, j, point[j]); d > rdist {
				rdist = d
			}
		}
		return rdist
	}

	var rdist float64
	p := metricP(t.metric)
	for j := 0; j < t.dims; j++ {
		d := t.axisGap(base, j, point[j])
		rdist += math.Pow(d, p)
	}
	return rdist
}

// axisGap returns how far a coordinate lies outside the node's bounds
// along one axis (0 when inside).
func (t *KDTree) axisGap(base, j int, v float64) float64 {
	lo := t.nodeBoundsMin[base+j]
	hi := t.nodeBoundsMax[base+j]
	if v < lo {
		return lo - v
	}
	if v > hi {
		return v - hi
	}
	return 0
}
