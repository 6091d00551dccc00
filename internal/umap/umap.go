// Package umap reduces high-dimensional vectors to a low-dimensional layout
// that preserves their cosine neighbourhood structure.
package umap

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const (
	DefaultNeighbors  = 15
	DefaultMinDist    = 0.1
	DefaultComponents = 3
	DefaultSeed       = 42

	spread             = 1.0
	negativeSampleRate = 5
	initRange          = 10.0
	gradientClip       = 4.0
)

var ErrInvalidParams = errors.New("invalid reduction parameters")

// Params controls a reduction. Zero values select defaults, except MinDist
// where zero is meaningful.
type Params struct {
	Neighbors  int
	MinDist    float64
	Components int

	// Epochs is the number of optimisation rounds. Zero picks 500 for small
	// inputs and 200 above 10000 points.
	Epochs int
	Seed   int64
}

// DefaultParams returns the parameters used by the topic map.
func DefaultParams() Params {
	return Params{
		Neighbors:  DefaultNeighbors,
		MinDist:    DefaultMinDist,
		Components: DefaultComponents,
		Seed:       DefaultSeed,
	}
}

func (p Params) withDefaults(n int) Params {
	if p.Neighbors <= 0 {
		p.Neighbors = DefaultNeighbors
	}
	if p.Components <= 0 {
		p.Components = DefaultComponents
	}
	if p.Epochs <= 0 {
		p.Epochs = 500
		if n > 10000 {
			p.Epochs = 200
		}
	}
	return p
}

// Reduce embeds vectors into p.Components dimensions. Output row i belongs
// to vectors[i]. Identical input and parameters give identical output.
func Reduce(vectors [][]float32, p Params) ([][]float64, error) {
	n := len(vectors)
	p = p.withDefaults(n)
	if p.MinDist < 0 || p.MinDist > 1 || math.IsNaN(p.MinDist) {
		return nil, fmt.Errorf("%w: min_dist %v outside [0, 1]", ErrInvalidParams, p.MinDist)
	}
	for i := 1; i < n; i++ {
		if len(vectors[i]) != len(vectors[0]) {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrInvalidParams, i, len(vectors[i]), len(vectors[0]))
		}
	}

	if n == 0 {
		return [][]float64{}, nil
	}
	if n <= 3 {
		return simplex(n, p.Components), nil
	}

	k := min(p.Neighbors, n-1)
	knnIdx, knnDist := nearestNeighbors(vectors, k)
	graph := fuzzySimplicialSet(knnIdx, knnDist, k)

	a, b := fitCurve(spread, p.MinDist)
	rng := rand.New(rand.NewSource(p.Seed))
	embedding := make([][]float64, n)
	for i := range embedding {
		row := make([]float64, p.Components)
		for d := range row {
			row[d] = rng.Float64()*2*initRange - initRange
		}
		embedding[i] = row
	}

	optimize(embedding, graph, a, b, p.Epochs, rng)
	return embedding, nil
}

// simplex places up to three points on a unit circle in the first two
// components.
func simplex(n, components int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, components)
		if n > 1 {
			angle := 2 * math.Pi * float64(i) / float64(n)
			row[0] = math.Cos(angle)
			if components > 1 {
				row[1] = math.Sin(angle)
			}
		}
		out[i] = row
	}
	return out
}

// nearestNeighbors returns, per point, the indices and cosine distances of
// its k nearest other points, nearest first.
func nearestNeighbors(vectors [][]float32, k int) ([][]int, [][]float64) {
	n := len(vectors)
	norms := make([]float64, n)
	for i, v := range vectors {
		var s float64
		for _, x := range v {
			s += float64(x) * float64(x)
		}
		norms[i] = math.Sqrt(s)
	}

	type cand struct {
		j int
		d float64
	}
	idx := make([][]int, n)
	dist := make([][]float64, n)
	cands := make([]cand, 0, n-1)
	for i := 0; i < n; i++ {
		cands = cands[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			var dot float64
			for c := range vectors[i] {
				dot += float64(vectors[i][c]) * float64(vectors[j][c])
			}
			d := 1.0
			if norms[i] > 0 && norms[j] > 0 {
				d = 1 - dot/(norms[i]*norms[j])
			}
			cands = append(cands, cand{j, math.Max(d, 0)})
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].d != cands[b].d {
				return cands[a].d < cands[b].d
			}
			return cands[a].j < cands[b].j
		})
		idx[i] = make([]int, k)
		dist[i] = make([]float64, k)
		for m := 0; m < k; m++ {
			idx[i][m] = cands[m].j
			dist[i][m] = cands[m].d
		}
	}
	return idx, dist
}

type edge struct {
	from, to int
	weight   float64
}

// fuzzySimplicialSet builds the symmetric membership graph from the kNN
// lists. Edges come back sorted by (from, to).
func fuzzySimplicialSet(knnIdx [][]int, knnDist [][]float64, k int) []edge {
	n := len(knnIdx)
	target := math.Log2(float64(k))

	var meanDist float64
	for _, row := range knnDist {
		for _, d := range row {
			meanDist += d
		}
	}
	meanDist /= float64(n * k)

	directed := make(map[[2]int]float64, n*k)
	for i := 0; i < n; i++ {
		rho := 0.0
		for _, d := range knnDist[i] {
			if d > 0 {
				rho = d
				break
			}
		}
		sigma := smoothKNNSigma(knnDist[i], rho, target)
		if sigma < 1e-3*meanDist {
			sigma = 1e-3 * meanDist
		}
		for m, j := range knnIdx[i] {
			var w float64
			switch d := knnDist[i][m] - rho; {
			case d <= 0 || sigma == 0:
				w = 1
			default:
				w = math.Exp(-d / sigma)
			}
			directed[[2]int{i, j}] = w
		}
	}

	merged := make(map[[2]int]float64, len(directed))
	for key := range directed {
		i, j := key[0], key[1]
		if i > j {
			i, j = j, i
		}
		if _, done := merged[[2]int{i, j}]; done {
			continue
		}
		a := directed[[2]int{i, j}]
		b := directed[[2]int{j, i}]
		merged[[2]int{i, j}] = a + b - a*b
	}

	edges := make([]edge, 0, len(merged))
	for key, w := range merged {
		if w > 0 {
			edges = append(edges, edge{from: key[0], to: key[1], weight: w})
		}
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].from != edges[b].from {
			return edges[a].from < edges[b].from
		}
		return edges[a].to < edges[b].to
	})
	return edges
}

// smoothKNNSigma binary-searches the bandwidth for which the memberships of
// a point's neighbours sum to target.
func smoothKNNSigma(dists []float64, rho, target float64) float64 {
	lo, hi, mid := 0.0, math.Inf(1), 1.0
	for iter := 0; iter < 64; iter++ {
		var psum float64
		for _, d := range dists {
			if v := d - rho; v > 0 {
				psum += math.Exp(-v / mid)
			} else {
				psum++
			}
		}
		if math.Abs(psum-target) < 1e-5 {
			break
		}
		if psum > target {
			hi = mid
			mid = (lo + hi) / 2
		} else {
			lo = mid
			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}
	}
	return mid
}

// fitCurve finds a, b such that 1/(1+a*x^(2b)) approximates the target
// membership curve for minDist by least squares over a refining grid.
func fitCurve(spread, minDist float64) (float64, float64) {
	const samples = 300
	xs := make([]float64, samples)
	ys := make([]float64, samples)
	for i := range xs {
		x := 3 * spread * float64(i+1) / samples
		xs[i] = x
		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}
	loss := func(a, b float64) float64 {
		var s float64
		for i, x := range xs {
			r := 1/(1+a*math.Pow(x, 2*b)) - ys[i]
			s += r * r
		}
		return s
	}

	bestA, bestB := 1.5, 0.9
	stepA, stepB := 1.0, 0.5
	best := loss(bestA, bestB)
	for round := 0; round < 500 && stepA > 1e-6; round++ {
		improved := false
		for _, da := range []float64{-stepA, 0, stepA} {
			for _, db := range []float64{-stepB, 0, stepB} {
				a, b := bestA+da, bestB+db
				if a <= 0 || b <= 0 {
					continue
				}
				if l := loss(a, b); l < best {
					best, bestA, bestB = l, a, b
					improved = true
				}
			}
		}
		if !improved {
			stepA /= 2
			stepB /= 2
		}
	}
	return bestA, bestB
}

// optimize runs stochastic gradient descent on the layout with the edge
// weights as sampling rates and uniform negative samples.
func optimize(y [][]float64, edges []edge, a, b float64, epochs int, rng *rand.Rand) {
	if len(edges) == 0 {
		return
	}
	n := len(y)
	dim := len(y[0])

	var maxW float64
	for _, e := range edges {
		maxW = math.Max(maxW, e.weight)
	}
	kept := edges[:0:0]
	for _, e := range edges {
		if e.weight >= maxW/float64(epochs) {
			kept = append(kept, e)
		}
	}

	perSample := make([]float64, len(kept))
	nextSample := make([]float64, len(kept))
	perNeg := make([]float64, len(kept))
	nextNeg := make([]float64, len(kept))
	for i, e := range kept {
		perSample[i] = maxW / e.weight
		nextSample[i] = perSample[i]
		perNeg[i] = perSample[i] / negativeSampleRate
		nextNeg[i] = perNeg[i]
	}

	for epoch := 1; epoch <= epochs; epoch++ {
		alpha := 1 - float64(epoch-1)/float64(epochs)
		fe := float64(epoch)
		for i, e := range kept {
			if nextSample[i] > fe {
				continue
			}
			cur, other := y[e.from], y[e.to]
			d2 := sqDist(cur, other)
			if d2 > 0 {
				coef := -2 * a * b * math.Pow(d2, b-1) / (a*math.Pow(d2, b) + 1)
				for d := 0; d < dim; d++ {
					g := clip(coef*(cur[d]-other[d])) * alpha
					cur[d] += g
					other[d] -= g
				}
			}
			nextSample[i] += perSample[i]

			negs := int((fe - nextNeg[i]) / perNeg[i])
			for s := 0; s < negs; s++ {
				k := rng.Intn(n)
				if k == e.from {
					continue
				}
				neg := y[k]
				d2 := sqDist(cur, neg)
				var coef float64
				if d2 > 0 {
					coef = 2 * b / ((0.001 + d2) * (a*math.Pow(d2, b) + 1))
				}
				for d := 0; d < dim; d++ {
					g := gradientClip
					if coef > 0 {
						g = clip(coef * (cur[d] - neg[d]))
					}
					cur[d] += g * alpha
				}
			}
			nextNeg[i] += float64(negs) * perNeg[i]
		}
	}
}

func sqDist(x, y []float64) float64 {
	var s float64
	for i := range x {
		d := x[i] - y[i]
		s += d * d
	}
	return s
}

func clip(v float64) float64 {
	return math.Max(-gradientClip, math.Min(gradientClip, v))
}
