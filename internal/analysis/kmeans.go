package analysis

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Standardize centres every column on zero and scales it to unit population
// variance. Constant columns become zero.
func Standardize(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	cols := len(rows[0])
	out := make([][]float64, len(rows))
	for i := range out {
		out[i] = make([]float64, cols)
	}

	column := make([]float64, len(rows))
	for j := 0; j < cols; j++ {
		for i, row := range rows {
			column[i] = row[j]
		}
		mu, sd := stat.PopMeanStdDev(column, nil)
		for i := range rows {
			if sd == 0 || math.IsNaN(sd) {
				out[i][j] = 0
				continue
			}
			out[i][j] = (rows[i][j] - mu) / sd
		}
	}
	return out
}

// ReduceDimensions projects rows onto their first principal components. Rows
// are returned unchanged when they already have no more than the requested
// number of columns.
func ReduceDimensions(rows [][]float64, components int) [][]float64 {
	if len(rows) == 0 || len(rows[0]) <= components {
		return rows
	}
	n, d := len(rows), len(rows[0])
	x := mat.NewDense(n, d, nil)
	for i, row := range rows {
		x.SetRow(i, row)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return rows
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, available := vecs.Dims()
	k := min(components, available)

	var centred mat.Dense
	centred.CloneFrom(x)
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, x)
		mu := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			centred.Set(i, j, col[i]-mu)
		}
	}

	var proj mat.Dense
	proj.Mul(&centred, vecs.Slice(0, d, 0, k))

	out := make([][]float64, n)
	for i := range out {
		out[i] = mat.Row(nil, i, &proj)
	}
	return out
}

// UniqueRows counts distinct rows by exact value.
func UniqueRows(rows [][]float64) int {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		seen[rowKey(row)] = struct{}{}
	}
	return len(seen)
}

func rowKey(row []float64) string {
	var b strings.Builder
	for _, v := range row {
		// fold -0 into 0
		b.WriteString(strconv.FormatUint(math.Float64bits(v+0), 16))
		b.WriteByte(',')
	}
	return b.String()
}

// KMeansResult is the best of several seeded Lloyd runs.
type KMeansResult struct {
	K         int
	Labels    []int
	Centroids [][]float64
	Inertia   float64
}

// KMeans clusters rows into k groups with k-means++ seeding. The generator
// is seeded from seed and k alone, so equal input always yields equal labels.
func KMeans(rows [][]float64, k int, seed uint64, inits, maxIter int) KMeansResult {
	rng := rand.New(rand.NewPCG(seed, uint64(k)))
	best := KMeansResult{K: k, Inertia: math.Inf(1)}
	for run := 0; run < max(1, inits); run++ {
		centroids := seedCentroids(rows, k, rng)
		labels, inertia := lloyd(rows, centroids, maxIter)
		if inertia < best.Inertia {
			best = KMeansResult{K: k, Labels: labels, Centroids: centroids, Inertia: inertia}
		}
	}
	return best
}

func seedCentroids(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, cloneRow(rows[rng.IntN(len(rows))]))

	dist := make([]float64, len(rows))
	for len(centroids) < k {
		var total float64
		for i, row := range rows {
			d := math.Inf(1)
			for _, c := range centroids {
				d = min(d, squaredDistance(row, c))
			}
			dist[i] = d
			total += d
		}

		next := rng.IntN(len(rows))
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				target -= d
				if target <= 0 {
					next = i
					break
				}
			}
		}
		centroids = append(centroids, cloneRow(rows[next]))
	}
	return centroids
}

func lloyd(rows [][]float64, centroids [][]float64, maxIter int) ([]int, float64) {
	labels := make([]int, len(rows))
	for i := range labels {
		labels[i] = -1
	}
	dims := len(rows[0])

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, row := range rows {
			label := nearest(row, centroids)
			if label != labels[i] {
				labels[i] = label
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, len(centroids))
		counts := make([]int, len(centroids))
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, row := range rows {
			counts[labels[i]]++
			for j, v := range row {
				sums[labels[i]][j] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				// an emptied centroid keeps its position
				continue
			}
			for j := range sums[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}

	var inertia float64
	for i, row := range rows {
		inertia += squaredDistance(row, centroids[labels[i]])
	}
	return labels, inertia
}

// nearest returns the closest centroid, preferring the lowest index on ties.
func nearest(row []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(row, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func cloneRow(row []float64) []float64 {
	return append([]float64(nil), row...)
}

// ElbowK picks the k following the largest single drop in inertia. With
// fewer than two candidates it returns the smallest k.
func ElbowK(ks []int, inertias []float64) int {
	if len(ks) == 0 {
		return 0
	}
	best, bestDrop := ks[0], math.Inf(-1)
	for i := 0; i+1 < len(inertias); i++ {
		if drop := inertias[i] - inertias[i+1]; drop > bestDrop {
			best, bestDrop = ks[i+1], drop
		}
	}
	return best
}
