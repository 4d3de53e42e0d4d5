package cluster

import "math"

// noiseLabel marks a point DBSCAN could not assign to any cluster.
const noiseLabel = -1

// dbscan labels each point with a cluster id (>= 0) or noiseLabel, following
// the classic expand-from-core-point algorithm. Grounded on
// enhancement/clustering.py's DBSCANClustering.cluster, generalized from
// scikit-learn's DBSCAN to a direct O(n^2) neighbourhood scan — adequate
// since a single country's generator set is the whole working set.
func dbscan(points [][2]float64, eps float64, minSamples int) []int {
	n := len(points)
	labels := make([]int, n)

	for i := range labels {
		labels[i] = noiseLabel
	}

	visited := make([]bool, n)
	nextLabel := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}

		visited[i] = true

		neighbors := regionQuery(points, i, eps)
		if len(neighbors) < minSamples {
			continue
		}

		labels[i] = nextLabel
		expandCluster(points, labels, visited, neighbors, nextLabel, eps, minSamples)
		nextLabel++
	}

	return labels
}

func expandCluster(points [][2]float64, labels []int, visited []bool, seeds []int, label int, eps float64, minSamples int) {
	queue := append([]int{}, seeds...)

	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]

		if !visited[j] {
			visited[j] = true

			jNeighbors := regionQuery(points, j, eps)
			if len(jNeighbors) >= minSamples {
				queue = append(queue, jNeighbors...)
			}
		}

		if labels[j] == noiseLabel {
			labels[j] = label
		}
	}
}

func regionQuery(points [][2]float64, i int, eps float64) []int {
	var out []int

	for j := range points {
		if euclidean(points[i], points[j]) <= eps {
			out = append(out, j)
		}
	}

	return out
}

func euclidean(a, b [2]float64) float64 {
	dLat := a[0] - b[0]
	dLon := a[1] - b[1]

	return math.Sqrt(dLat*dLat + dLon*dLon)
}
