package agglo

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// partitionsEqual reports whether two labelings induce the same
// partition of the points, ignoring the label values themselves.
func partitionsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	ab := make(map[int]int)
	ba := make(map[int]int)
	for i := range a {
		if la, ok := ab[a[i]]; ok && la != b[i] {
			return false
		}
		if lb, ok := ba[b[i]]; ok && lb != a[i] {
			return false
		}
		ab[a[i]] = b[i]
		ba[b[i]] = a[i]
	}
	return true
}

func TestCluster_ConfigErrors(t *testing.T) {
	data := [][]float64{{0}, {1}}

	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "unknown linkage",
			cfg:  Config{Linkage: "median"},
			want: "unknown linkage",
		},
		{
			name: "ward without squared euclidean",
			cfg:  Config{Linkage: LinkageWard, Metric: EuclideanMetric{}},
			want: "Ward linkage requires",
		},
		{
			name: "centroid with manhattan",
			cfg:  Config{Linkage: LinkageCentroid, Metric: ManhattanMetric{}},
			want: "Euclidean-family metric",
		},
		{
			name: "single with cosine",
			cfg:  Config{Linkage: LinkageSingle, Metric: CosineMetric{}},
			want: "KD-tree-valid metric",
		},
		{
			name: "cure with negative compression",
			cfg:  Config{Linkage: LinkageCURE, Compression: -0.5},
			want: "Compression must be",
		},
		{
			name: "cure with compression above one",
			cfg:  Config{Linkage: LinkageCURE, Compression: 1.5},
			want: "Compression must be",
		},
		{
			name: "negative rep points",
			cfg:  Config{Linkage: LinkageCURE, RepPoints: -3},
			want: "RepPoints must be",
		},
		{
			name: "negative leaf size",
			cfg:  Config{Linkage: LinkageSingle, LeafSize: -1},
			want: "LeafSize must be",
		},
		{
			name: "negative workers",
			cfg:  Config{Workers: -2},
			want: "Workers must be",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Cluster(data, tc.cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCluster_RaggedData(t *testing.T) {
	data := [][]float64{{0, 0}, {1}, {2, 2}}
	if _, err := Cluster(data, DefaultConfig()); err == nil {
		t.Error("expected error for ragged data")
	}

	empty := [][]float64{{}, {}}
	if _, err := Cluster(empty, DefaultConfig()); err == nil {
		t.Error("expected error for zero-dimensional points")
	}
}

func TestCluster_ZeroConfigGetsDefaults(t *testing.T) {
	// A zero Config must behave like DefaultConfig, not fail validation.
	data := twoTriangles()
	dend, err := Cluster(data, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dend.Rows()) != len(data)-1 {
		t.Errorf("got %d rows, want %d", len(dend.Rows()), len(data)-1)
	}
}

func TestKClusters_OutOfRangeK(t *testing.T) {
	data := [][]float64{{0}, {1}, {2}}
	if _, err := KClusters(data, DefaultConfig(), 0); err == nil {
		t.Error("expected error for k=0")
	}
	if _, err := KClusters(data, DefaultConfig(), 4); err == nil {
		t.Error("expected error for k>n")
	}
}

func TestKClusters_MatchesDendrogramCut(t *testing.T) {
	// The direct k-cluster path must induce the same partition as
	// cutting the full dendrogram, for every linkage and every k.
	data := twoTriangles()

	for _, linkage := range []Linkage{
		LinkageSingle, LinkageComplete, LinkageAverage, LinkageWard, LinkageCentroid, LinkageCURE,
	} {
		cfg := DefaultConfig()
		cfg.Linkage = linkage
		if linkage == LinkageWard {
			cfg.Metric = SquaredEuclideanMetric{}
		}

		dend, err := Cluster(data, cfg)
		if err != nil {
			t.Fatalf("%s: Cluster: %v", linkage, err)
		}
		for k := 1; k <= len(data); k++ {
			direct, err := KClusters(data, cfg, k)
			if err != nil {
				t.Fatalf("%s: KClusters(%d): %v", linkage, k, err)
			}
			cut, err := dend.CutK(k)
			if err != nil {
				t.Fatalf("%s: CutK(%d): %v", linkage, k, err)
			}
			if !partitionsEqual(direct, cut) {
				t.Errorf("%s k=%d: KClusters %v and CutK %v induce different partitions",
					linkage, k, direct, cut)
			}
		}
	}
}

func TestKClusters_EmptyData(t *testing.T) {
	labels, err := KClusters(nil, DefaultConfig(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(labels) != 0 {
		t.Errorf("got %v, want empty labels", labels)
	}
}

func TestCURE_EntryPointValidation(t *testing.T) {
	data := [][]float64{{0}, {1}}
	if _, err := CURE(data, ManhattanMetric{}, 3, 0.3); err == nil {
		t.Error("expected error for CURE with Manhattan metric")
	}
	if _, err := CURE(data, EuclideanMetric{}, 3, 2); err == nil {
		t.Error("expected error for compression > 1")
	}
	// An explicit zero must be rejected, not silently defaulted.
	if _, err := CURE(data, EuclideanMetric{}, 0, 0.3); err == nil ||
		!strings.Contains(err.Error(), "RepPoints must be") {
		t.Errorf("CURE with repPoints=0: got %v, want RepPoints error", err)
	}
}

func TestCluster_WorkersDoNotChangeResult(t *testing.T) {
	data := twoTriangles()
	var baseline [][4]float64
	for _, workers := range []int{1, 2, 8} {
		cfg := DefaultConfig()
		cfg.Linkage = LinkageAverage
		cfg.Workers = workers
		dend, err := Cluster(data, cfg)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if baseline == nil {
			baseline = dend.Rows()
			continue
		}
		if diff := cmp.Diff(baseline, dend.Rows()); diff != "" {
			t.Errorf("workers=%d changed the merge table:\n%s", workers, diff)
		}
	}
}
