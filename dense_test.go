package agglo

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// twoTriangles is 6 points in 2D forming two well-separated triangles:
// points 0-2 around the origin, points 3-5 shifted by +10 in x.
func twoTriangles() [][]float64 {
	return [][]float64{
		{0, 0}, {1, 0}, {0.5, 1},
		{10, 0}, {11, 0}, {10.5, 1},
	}
}

func TestDense_CompleteLinkage_FourPointExample(t *testing.T) {
	data := [][]float64{{0, 0}, {0, 1}, {10, 0}, {10, 1}}
	cfg := DefaultConfig()
	cfg.Linkage = LinkageComplete

	labels, err := KClusters(data, cfg, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if labels[0] != labels[1] || labels[2] != labels[3] || labels[0] == labels[2] {
		t.Errorf("labels = %v, want {0,1} and {2,3} separated", labels)
	}
}

func TestDense_TwoTriangles_WithinBeforeAcross(t *testing.T) {
	data := twoTriangles()

	cases := []struct {
		linkage Linkage
		metric  DistanceMetric
	}{
		{LinkageComplete, EuclideanMetric{}},
		{LinkageAverage, EuclideanMetric{}},
		{LinkageWard, SquaredEuclideanMetric{}},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		cfg.Linkage = tc.linkage
		cfg.Metric = tc.metric

		dend, err := Cluster(data, cfg)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.linkage, err)
		}
		rows := dend.Rows()
		if len(rows) != 5 {
			t.Fatalf("%s: got %d rows, want 5", tc.linkage, len(rows))
		}

		// The first four merges build the two triangles; only the final
		// merge crosses between them.
		labels, err := dend.CutK(2)
		if err != nil {
			t.Fatalf("%s: CutK: %v", tc.linkage, err)
		}
		want := []int{labels[0], labels[0], labels[0], labels[3], labels[3], labels[3]}
		if diff := cmp.Diff(want, labels); diff != "" {
			t.Errorf("%s: triangles split across clusters:\n%s", tc.linkage, diff)
		}
		if labels[0] == labels[3] {
			t.Errorf("%s: the two triangles were not separated", tc.linkage)
		}
	}
}

func TestDense_AverageLinkage_HandComputed(t *testing.T) {
	// 1D points 0, 1, 5. First merge joins 0 and 1 at distance 1; the
	// average distance from {0,1} to {5} is (5+4)/2 = 4.5.
	data := [][]float64{{0}, {1}, {5}}
	cfg := DefaultConfig()
	cfg.Linkage = LinkageAverage

	dend, err := Cluster(data, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := dend.Rows()
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][0] != 0 || rows[0][1] != 1 || !almostEqual(rows[0][2], 1, floatTol) || rows[0][3] != 2 {
		t.Errorf("rows[0] = %v, want [0 1 1 2]", rows[0])
	}
	if rows[1][0] != 2 || rows[1][1] != 3 || !almostEqual(rows[1][2], 4.5, floatTol) || rows[1][3] != 3 {
		t.Errorf("rows[1] = %v, want [2 3 4.5 3]", rows[1])
	}
}

func TestDense_CompleteLinkage_HandComputed(t *testing.T) {
	// Same 1D points; complete distance from {0,1} to {5} is max(5,4) = 5.
	data := [][]float64{{0}, {1}, {5}}
	cfg := DefaultConfig()
	cfg.Linkage = LinkageComplete

	dend, err := Cluster(data, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := dend.Rows()
	if !almostEqual(rows[1][2], 5, floatTol) {
		t.Errorf("final merge distance = %v, want 5", rows[1][2])
	}
}

func TestDense_WardLinkage_HandComputed(t *testing.T) {
	// 1D points 0, 1, 5 under squared Euclidean. Singleton pairs merge
	// at d²/2, so {0,1} joins at 0.5. The merged centroid is 0.5 with
	// size 2, and the increase in variance against {5} is
	// (2·1/3) · (5-0.5)² = 13.5.
	data := [][]float64{{0}, {1}, {5}}
	cfg := DefaultConfig()
	cfg.Linkage = LinkageWard
	cfg.Metric = SquaredEuclideanMetric{}

	dend, err := Cluster(data, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := dend.Rows()
	if !almostEqual(rows[0][2], 0.5, floatTol) {
		t.Errorf("rows[0] distance = %v, want 0.5", rows[0][2])
	}
	if !almostEqual(rows[1][2], 13.5, 1e-9) {
		t.Errorf("rows[1] distance = %v, want 13.5", rows[1][2])
	}
}

func TestDense_TieRound_MergesBothPairs(t *testing.T) {
	// Two disjoint pairs at identical distance 1 merge in the same
	// round, lowest ids first, each with its own record.
	data := [][]float64{{0}, {1}, {10}, {11}}
	cfg := DefaultConfig()
	cfg.Linkage = LinkageComplete

	dend, err := Cluster(data, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := dend.Rows()
	want := [][4]float64{
		{0, 1, 1, 2},
		{2, 3, 1, 2},
		{4, 5, 11, 4},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch:\n%s", diff)
	}
}

func TestDense_ChainTie_CollapsesInOneRound(t *testing.T) {
	// 1D points 0, 1, 2: both adjacent pairs tie at distance 1 and the
	// second tie chains onto the first merge's result.
	data := [][]float64{{0}, {1}, {2}}
	cfg := DefaultConfig()
	cfg.Linkage = LinkageComplete

	dend, err := Cluster(data, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := dend.Rows()
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][0] != 0 || rows[0][1] != 1 || rows[0][3] != 2 {
		t.Errorf("rows[0] = %v, want merge of points 0 and 1", rows[0])
	}
	// The chained record joins point 2 with the cluster created by the
	// first record (renumbered id 3) at the tie distance.
	if rows[1][0] != 2 || rows[1][1] != 3 || rows[1][2] != 1 || rows[1][3] != 3 {
		t.Errorf("rows[1] = %v, want [2 3 1 3]", rows[1])
	}
}

func TestDense_KClusters_StopsMidTieRound(t *testing.T) {
	data := [][]float64{{0}, {1}, {10}, {11}}
	cfg := DefaultConfig()
	cfg.Linkage = LinkageComplete

	labels, err := KClusters(data, cfg, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Only the lowest-id tie pair merges before the target count is hit.
	if labels[0] != labels[1] {
		t.Errorf("labels = %v, want 0 and 1 together", labels)
	}
	if labels[2] == labels[3] || labels[2] == labels[0] || labels[3] == labels[0] {
		t.Errorf("labels = %v, want 2 and 3 still separate", labels)
	}
}

func TestDense_Determinism(t *testing.T) {
	data := twoTriangles()
	cfg := DefaultConfig()
	cfg.Linkage = LinkageAverage
	cfg.Workers = 4

	first, err := Cluster(data, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Cluster(data, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(first.Rows(), second.Rows()); diff != "" {
		t.Errorf("repeated runs diverged:\n%s", diff)
	}
}

func TestDense_CosineMetric_Accepted(t *testing.T) {
	// Cosine distance is dense-engine only; two direction groups.
	data := [][]float64{{1, 0}, {2, 0.1}, {0, 1}, {0.1, 2}}
	cfg := DefaultConfig()
	cfg.Linkage = LinkageAverage
	cfg.Metric = CosineMetric{}

	labels, err := KClusters(data, cfg, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if labels[0] != labels[1] || labels[2] != labels[3] || labels[0] == labels[2] {
		t.Errorf("labels = %v, want direction groups separated", labels)
	}
}
