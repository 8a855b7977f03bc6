package agglo

import (
	"fmt"
	"runtime"
)

// Linkage selects the rule for computing distance between two clusters
// from their members or representatives.
type Linkage string

const (
	// LinkageSingle merges by the minimum distance between any two
	// member points, realized via nearest-representative search.
	LinkageSingle Linkage = "single"
	// LinkageComplete merges by the maximum pairwise distance across
	// the two clusters' members.
	LinkageComplete Linkage = "complete"
	// LinkageAverage merges by the mean pairwise distance across the
	// two clusters' members.
	LinkageAverage Linkage = "average"
	// LinkageWard merges by the increase-in-variance criterion.
	// Requires SquaredEuclideanMetric.
	LinkageWard Linkage = "ward"
	// LinkageCentroid merges by the distance between cluster centroids.
	LinkageCentroid Linkage = "centroid"
	// LinkageCURE merges by the nearest pair drawn from each cluster's
	// compressed representative skeleton.
	LinkageCURE Linkage = "cure"
)

// Config controls agglomerative clustering behavior.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// Linkage selects the cluster-distance rule. Complete, average and
	// Ward run on the dense engine; single, centroid and CURE run on
	// the representative-point engine. Default: complete.
	Linkage Linkage

	// Metric is the pairwise distance function. Built-in:
	// EuclideanMetric, SquaredEuclideanMetric, ManhattanMetric,
	// ChebyshevMetric, MinkowskiMetric, CosineMetric. Use DistanceFunc
	// to wrap a custom function (dense linkages only).
	// Default: EuclideanMetric.
	Metric DistanceMetric

	// RepPoints caps the number of representative points per cluster
	// for CURE linkage (the centroid plus up to RepPoints-1 boundary
	// points). Ignored by other linkages. Default: 10.
	RepPoints int

	// Compression is the CURE shrink factor in [0, 1]: every boundary
	// representative moves this fraction of the way toward the cluster
	// centroid. 0 keeps boundary points in place; 1 collapses them all
	// onto the centroid. Ignored by other linkages. Default: 0.3.
	Compression float64

	// LeafSize controls the maximum number of points in a spatial index
	// leaf at build time. Only used by the representative engine.
	// Default: 40.
	LeafSize int

	// Workers controls the number of goroutines for the initial
	// pairwise distance computation on the dense engine. 0 means use
	// runtime.NumCPU(). Default: 0 (auto).
	Workers int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Linkage:     LinkageComplete,
		Metric:      EuclideanMetric{},
		RepPoints:   10,
		Compression: 0.3,
		LeafSize:    40,
	}
}

// applyDefaults fills in zero-valued config fields with their defaults.
// Compression is left alone: zero is a meaningful value (no shrinking).
func applyDefaults(cfg *Config) {
	if cfg.Linkage == "" {
		cfg.Linkage = LinkageComplete
	}
	if cfg.Metric == nil {
		cfg.Metric = EuclideanMetric{}
	}
	if cfg.RepPoints == 0 {
		cfg.RepPoints = 10
	}
	if cfg.LeafSize == 0 {
		cfg.LeafSize = 40
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
}

// validateConfig checks cfg before any clustering work begins and
// returns a descriptive error for the first invalid field. Metric and
// linkage compatibility is rejected here, never mid-run.
func validateConfig(cfg *Config) error {
	switch cfg.Linkage {
	case LinkageSingle, LinkageComplete, LinkageAverage, LinkageWard, LinkageCentroid, LinkageCURE:
		// valid
	default:
		return fmt.Errorf("agglo: unknown linkage %q", cfg.Linkage)
	}

	switch cfg.Linkage {
	case LinkageWard:
		if _, ok := cfg.Metric.(SquaredEuclideanMetric); !ok {
			return fmt.Errorf("agglo: Ward linkage requires SquaredEuclideanMetric, got %T", cfg.Metric)
		}
	case LinkageCentroid, LinkageCURE:
		switch cfg.Metric.(type) {
		case EuclideanMetric, SquaredEuclideanMetric:
			// centroids are coordinate-wise means; only Euclidean-family
			// metrics are meaningful against them
		default:
			return fmt.Errorf("agglo: %s linkage requires a Euclidean-family metric, got %T", cfg.Linkage, cfg.Metric)
		}
	case LinkageSingle:
		if !KDTreeValidMetric(cfg.Metric) {
			return fmt.Errorf("agglo: single linkage requires a KD-tree-valid metric, got %T", cfg.Metric)
		}
	}

	if cfg.Linkage == LinkageCURE {
		if cfg.RepPoints < 1 {
			return fmt.Errorf("agglo: RepPoints must be >= 1, got %d", cfg.RepPoints)
		}
		if cfg.Compression < 0 || cfg.Compression > 1 {
			return fmt.Errorf("agglo: Compression must be in [0, 1], got %f", cfg.Compression)
		}
	}
	if cfg.LeafSize < 1 {
		return fmt.Errorf("agglo: LeafSize must be >= 1, got %d", cfg.LeafSize)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("agglo: Workers must be >= 0, got %d", cfg.Workers)
	}
	return nil
}

// validateData rejects ragged or zero-dimensional input up front.
func validateData(data [][]float64) error {
	if len(data) == 0 {
		return nil
	}
	dims := len(data[0])
	if dims == 0 {
		return fmt.Errorf("agglo: point 0 has no coordinates")
	}
	for i, row := range data {
		if len(row) != dims {
			return fmt.Errorf("agglo: point %d has %d coordinates, want %d", i, len(row), dims)
		}
	}
	return nil
}

// engine is one merge strategy driven to a target live-cluster count.
// step performs one merge round and may stop early once only stopAt
// clusters remain.
type engine interface {
	step(stopAt int) error
	live() int
	mergeRecords() []mergeRecord
	labels() []int
}

// newEngine selects the dense or representative engine for the
// configured linkage.
func newEngine(data [][]float64, cfg Config, collect bool) (engine, error) {
	switch cfg.Linkage {
	case LinkageComplete, LinkageAverage, LinkageWard:
		return newDenseEngine(data, cfg, collect)
	default:
		return newRepEngine(data, cfg, collect), nil
	}
}

// run drives an engine until only target clusters remain.
func run(e engine, target int) error {
	for e.live() > target {
		if err := e.step(target); err != nil {
			return err
		}
	}
	return nil
}

// Cluster performs agglomerative hierarchical clustering on the given
// data and returns the full dendrogram (n-1 merges for n points). Each
// element of data is a point; all points must have the same
// dimensionality. Returns an error if the config is invalid.
func Cluster(data [][]float64, cfg Config) (*Dendrogram, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if err := validateData(data); err != nil {
		return nil, err
	}

	n := len(data)
	if n == 0 {
		return &Dendrogram{n: 0}, nil
	}

	e, err := newEngine(data, cfg, true)
	if err != nil {
		return nil, err
	}
	if err := run(e, 1); err != nil {
		return nil, err
	}
	return newDendrogram(e.mergeRecords(), n), nil
}

// CURE performs CURE clustering: each cluster is summarized by up to
// repPoints boundary representatives shrunk toward the centroid by the
// compression factor, which approximates non-spherical cluster shapes
// while damping sensitivity to outliers. Returns the full dendrogram.
func CURE(data [][]float64, metric DistanceMetric, repPoints int, compression float64) (*Dendrogram, error) {
	// An explicit zero must not fall through to the config default.
	if repPoints < 1 {
		return nil, fmt.Errorf("agglo: RepPoints must be >= 1, got %d", repPoints)
	}
	cfg := DefaultConfig()
	cfg.Linkage = LinkageCURE
	cfg.Metric = metric
	cfg.RepPoints = repPoints
	cfg.Compression = compression
	return Cluster(data, cfg)
}

// KClusters clusters data directly into k clusters without materializing
// a dendrogram. The returned slice has one label per point in [0, k).
func KClusters(data [][]float64, cfg Config, k int) ([]int, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if err := validateData(data); err != nil {
		return nil, err
	}

	n := len(data)
	if n == 0 {
		return []int{}, nil
	}
	if k < 1 || k > n {
		return nil, fmt.Errorf("agglo: k must be in [1, %d], got %d", n, k)
	}

	e, err := newEngine(data, cfg, false)
	if err != nil {
		return nil, err
	}
	if err := run(e, k); err != nil {
		return nil, err
	}
	return e.labels(), nil
}
