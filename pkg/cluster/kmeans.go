package cluster

import "sort"

const maxKMeansIterations = 100

// kmeans runs Lloyd's algorithm with a deterministic initial assignment
// (evenly spaced picks from points sorted by latitude then longitude,
// rather than scikit-learn's randomized k-means++) so results are
// reproducible without a configured random seed. Grounded on
// enhancement/clustering.py's KMeansClustering.cluster.
func kmeans(points [][2]float64, k int) []int {
	n := len(points)
	if k <= 0 {
		k = 1
	}

	if k > n {
		k = n
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := points[order[i]], points[order[j]]
		if a[0] != b[0] {
			return a[0] < b[0]
		}

		return a[1] < b[1]
	})

	centroids := make([][2]float64, k)
	for c := 0; c < k; c++ {
		centroids[c] = points[order[c*n/k]]
	}

	labels := make([]int, n)

	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false

		for i, p := range points {
			best, bestDist := 0, euclidean(p, centroids[0])

			for c := 1; c < k; c++ {
				if d := euclidean(p, centroids[c]); d < bestDist {
					best, bestDist = c, d
				}
			}

			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}

		sums := make([][2]float64, k)
		counts := make([]int, k)

		for i, p := range points {
			c := labels[i]
			sums[c][0] += p[0]
			sums[c][1] += p[1]
			counts[c]++
		}

		for c := 0; c < k; c++ {
			if counts[c] > 0 {
				centroids[c] = [2]float64{sums[c][0] / float64(counts[c]), sums[c][1] / float64(counts[c])}
			}
		}

		if !changed {
			break
		}
	}

	return labels
}
