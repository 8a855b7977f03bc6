package agglo

// NodeData describes a single node in the spatial index.
type NodeData struct {
	SplitDim int     // split dimension, internal nodes only
	SplitVal float64 // points with coords[SplitDim] < SplitVal route left
	IsLeaf   bool
}

// SpatialIndex is the mutable spatial-index interface used by the
// representative-point engine. Point ids are assigned by Add in
// monotonically increasing order and never reused; every live id is a
// member of exactly one leaf.
type SpatialIndex interface {
	// NearestNeighbor returns the accepted point closest to query under
	// the index's metric. Ties are broken by lowest id. ok is false when
	// no accepted point exists.
	NearestNeighbor(query []float64, accept func(id int) bool) (id int, dist float64, ok bool)

	// LeafOf returns the leaf node a coordinate currently routes to.
	LeafOf(coords []float64) int

	// Add registers coordinates under a fresh id without placing it in
	// any leaf. Callers pair it with Insert(LeafOf(coords), id).
	Add(coords []float64) int

	// Insert adds id to a leaf's membership set and widens the bounding
	// regions along the leaf's ancestor path so pruning stays exact.
	Insert(leaf, id int)

	// Remove deletes id from a leaf's membership set. O(leaf size).
	Remove(leaf, id int)

	// Coords returns the coordinates registered for id.
	Coords(id int) []float64

	// NumPoints returns the number of ids ever registered.
	NumPoints() int
}
