// Package agglo implements agglomerative hierarchical clustering over
// points in a metric space.
//
// The library records every merge as a dendrogram (a binary merge tree
// with join distances) which can then be flattened into exactly k
// clusters or into clusters separated by a distance threshold, without
// re-running the algorithm per granularity.
//
// Basic usage:
//
//	cfg := agglo.DefaultConfig()
//	cfg.Linkage = agglo.LinkageAverage
//	dend, err := agglo.Cluster(data, cfg)
//	labels, err := dend.CutK(3)
//	// labels[i] is the cluster ID for point i (-1 = unassigned)
//
// For direct k-cluster output without materializing the dendrogram:
//
//	labels, err := agglo.KClusters(data, cfg, 3)
//
// # Linkage selection
//
// Complete, average and Ward linkage run on a dense pairwise-distance
// table (O(n²) memory). Single, centroid and CURE linkage keep one or
// more representative points per cluster and find neighbors through a
// KD-tree, which is significantly cheaper for large inputs:
//
//	cfg.Linkage = agglo.LinkageWard   // requires SquaredEuclideanMetric
//	cfg.Linkage = agglo.LinkageSingle // representative engine
//	dend, err := agglo.CURE(data, agglo.EuclideanMetric{}, 10, 0.3)
package agglo
