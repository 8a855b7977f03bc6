package agglo

import (
	"fmt"
	"sort"
)

// mergeRecord is a single engine-level merge. left and right are raw
// cluster ids (point indices, or engine table ids for earlier merges);
// id is the raw id of the resulting cluster.
type mergeRecord struct {
	left, right int
	distance    float64
	size        int
	id          int
}

// Dendrogram is the complete merge history of a clustering run in the
// conventional linkage-table encoding: row i is
// [left, right, mergeDistance, mergedSize] and creates cluster id n+i,
// where n is the point count and ids 0..n-1 are the original points.
// A full run over n points has exactly n-1 rows.
//
// A Dendrogram is immutable; CutK and CutDistance are pure functions
// of it.
type Dendrogram struct {
	rows [][4]float64
	n    int
}

// newDendrogram renumbers raw engine cluster ids into the contiguous
// range [0, 2n-2] in first-occurrence order: points keep their indices
// and the cluster produced by record i becomes id n+i.
func newDendrogram(records []mergeRecord, n int) *Dendrogram {
	rows := make([][4]float64, len(records))
	idmap := make(map[int]int, len(records))

	mapID := func(raw int) float64 {
		if raw < n {
			return float64(raw)
		}
		return float64(idmap[raw])
	}

	for i, r := range records {
		rows[i] = [4]float64{mapID(r.left), mapID(r.right), r.distance, float64(r.size)}
		idmap[r.id] = n + i
	}

	return &Dendrogram{rows: rows, n: n}
}

// NumPoints returns the number of input points the dendrogram was built
// over.
func (d *Dendrogram) NumPoints() int { return d.n }

// Rows returns the merge table: one [left, right, distance, size] row per
// merge in temporal order. The slice is the dendrogram's backing storage
// and must not be modified.
func (d *Dendrogram) Rows() [][4]float64 { return d.rows }

// CutK flattens the dendrogram into exactly k clusters. The returned
// slice has one label per input point in [0, k); labels are assigned to
// output clusters in ascending order of the clusters' internal ids, so
// repeated calls return identical labelings. Points that are not
// reachable from any cluster root keep the label -1.
func (d *Dendrogram) CutK(k int) ([]int, error) {
	n := d.n
	if n == 0 {
		return []int{}, nil
	}
	if k < 1 || k > n {
		return nil, fmt.Errorf("agglo: k must be in [1, %d], got %d", n, k)
	}

	labels := make([]int, n)
	if k == 1 {
		return labels, nil
	}
	for i := range labels {
		labels[i] = -1
	}
	if k == n {
		for i := range labels {
			labels[i] = i
		}
		return labels, nil
	}

	if len(d.rows) != n-1 {
		return nil, fmt.Errorf("agglo: internal: dendrogram has %d rows for %d points", len(d.rows), n)
	}

	// Records at index >= cutIdx sit above the cut. The ids they
	// reference that were created below the cut are the roots of the k
	// output clusters.
	cutIdx := n - k
	boundary := n + cutIdx
	var roots []int
	for i := cutIdx; i < len(d.rows); i++ {
		for _, raw := range []float64{d.rows[i][0], d.rows[i][1]} {
			if id := int(raw); id < boundary {
				roots = append(roots, id)
			}
		}
	}
	sort.Ints(roots)

	for slot, root := range roots {
		// Expand the root breadth-first down to original points. Ids at
		// or above the cut boundary are never expanded.
		queue := []int{root}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if id < n {
				labels[id] = slot
				continue
			}
			if id >= boundary {
				continue
			}
			row := d.rows[id-n]
			queue = append(queue, int(row[0]), int(row[1]))
		}
	}

	return labels, nil
}

// CutDistance flattens the dendrogram into the clusters separated by
// more than the given distance threshold: it counts merges whose
// distance exceeds the threshold, translates that into an equivalent
// cluster count, and delegates to CutK.
func (d *Dendrogram) CutDistance(threshold float64) []int {
	if d.n == 0 {
		return []int{}
	}
	k := 1
	for _, row := range d.rows {
		if row[2] > threshold {
			k++
		}
	}
	if k > d.n {
		k = d.n
	}
	labels, _ := d.CutK(k) // k is in [1, n] by construction
	return labels
}
