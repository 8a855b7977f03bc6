package agglo

import "testing"

func TestComputePairwiseDistancesParallel_BitwiseIdentical(t *testing.T) {
	data := []float64{
		0, 0,
		3, 0,
		0, 4,
		1, 1,
		5, 5,
	}
	n, dims := 5, 2
	metric := EuclideanMetric{}

	sequential := ComputePairwiseDistances(data, n, dims, metric)

	for _, workers := range []int{1, 2, 4, 8} {
		parallel := ComputePairwiseDistancesParallel(data, n, dims, metric, workers)

		if len(parallel) != len(sequential) {
			t.Fatalf("workers=%d: length mismatch %d != %d", workers, len(parallel), len(sequential))
		}
		for i := range sequential {
			if parallel[i] != sequential[i] {
				t.Errorf("workers=%d: result[%d] = %v, expected %v (bitwise)",
					workers, i, parallel[i], sequential[i])
			}
		}
	}
}

func TestComputePairwiseDistancesParallel_MoreWorkersThanRows(t *testing.T) {
	data := []float64{
		0, 0,
		3, 4,
	}
	n, dims := 2, 2

	parallel := ComputePairwiseDistancesParallel(data, n, dims, SquaredEuclideanMetric{}, 16)
	if parallel[0*n+1] != 25 || parallel[1*n+0] != 25 {
		t.Errorf("unexpected matrix: %v", parallel)
	}
}
