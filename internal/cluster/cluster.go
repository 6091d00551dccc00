// Package cluster fits topic models over embedded documents.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
)

// DefaultMinTopicSize is the smallest cluster kept as a topic.
const DefaultMinTopicSize = 10

// Clusterer fits a topic model over (documents, embeddings). vectors[i]
// belongs to texts[i].
type Clusterer interface {
	FitTopics(ctx context.Context, texts []string, vectors [][]float32) (*topicmodel.Model, error)
}

// Density clusters documents by cosine-distance density. A document is a
// core point when its MinTopicSize-th nearest neighbour lies within the
// median core distance; clusters grow from core points, and clusters smaller
// than MinTopicSize fall into the outlier topic.
type Density struct {
	MinTopicSize int
	Vectorizer   Vectorizer
	Logger       *slog.Logger
}

// NewDensity returns a Density clusterer with the given vectorizer settings.
func NewDensity(ngramMax, minDF int) *Density {
	return &Density{
		MinTopicSize: DefaultMinTopicSize,
		Vectorizer:   Vectorizer{NgramMax: ngramMax, MinDF: minDF, TopTerms: DefaultTopTerms},
		Logger:       slog.Default(),
	}
}

// FitTopics implements Clusterer.
func (d *Density) FitTopics(ctx context.Context, texts []string, vectors [][]float32) (*topicmodel.Model, error) {
	if len(texts) != len(vectors) {
		return nil, fmt.Errorf("got %d documents but %d embeddings", len(texts), len(vectors))
	}
	for i := 1; i < len(vectors); i++ {
		if len(vectors[i]) != len(vectors[0]) {
			return nil, fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(vectors[i]), len(vectors[0]))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	vec := d.Vectorizer
	if vec.Logger == nil {
		vec.Logger = logger
	}

	labels := d.assign(vectors)
	ranked := vec.RankTerms(texts, labels)

	members := make(map[int][]int)
	for i, id := range labels {
		members[id] = append(members[id], i)
	}

	topics := make([]topicmodel.Topic, 0, len(members))
	for id, idx := range members {
		topics = append(topics, topicmodel.Topic{
			ID:     id,
			Count:  len(idx),
			Vector: meanVector(vectors, idx),
			Terms:  ranked[id],
		})
	}

	m := topicmodel.New(topics, labels, d.Vectorizer.NgramMax, d.Vectorizer.MinDF)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	logger.Info("fitted topic model", "documents", len(texts), "topics", m.TopicCount(), "outliers", len(members[topicmodel.OutlierID]))
	return m, nil
}

// assign returns a topic ID per document. Real topics are numbered by size,
// largest first.
func (d *Density) assign(vectors [][]float32) []int {
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = topicmodel.OutlierID
	}

	minSize := d.MinTopicSize
	if minSize < 2 {
		minSize = 2
	}
	if n < minSize {
		return labels
	}

	dist := distances(vectors)
	k := min(minSize, n-1)

	core := make([]float64, n)
	row := make([]float64, n-1)
	for i := 0; i < n; i++ {
		row = row[:0]
		for j := 0; j < n; j++ {
			if j != i {
				row = append(row, float64(dist[i*n+j]))
			}
		}
		sort.Float64s(row)
		core[i] = row[k-1]
	}

	sorted := append([]float64(nil), core...)
	sort.Float64s(sorted)
	eps := sorted[n/2]

	raw := make([]int, n)
	for i := range raw {
		raw[i] = -1
	}
	next := 0
	for i := 0; i < n; i++ {
		if raw[i] != -1 || core[i] > eps {
			continue
		}
		raw[i] = next
		queue := []int{i}
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]
			for j := 0; j < n; j++ {
				if raw[j] != -1 || float64(dist[q*n+j]) > eps {
					continue
				}
				raw[j] = next
				if core[j] <= eps {
					queue = append(queue, j)
				}
			}
		}
		next++
	}

	sizes := make([]int, next)
	first := make([]int, next)
	for c := range first {
		first[c] = n
	}
	for i, c := range raw {
		if c >= 0 {
			sizes[c]++
			first[c] = min(first[c], i)
		}
	}

	order := make([]int, 0, next)
	for c := 0; c < next; c++ {
		if sizes[c] >= minSize {
			order = append(order, c)
		}
	}
	sort.Slice(order, func(a, b int) bool {
		ca, cb := order[a], order[b]
		if sizes[ca] != sizes[cb] {
			return sizes[ca] > sizes[cb]
		}
		return first[ca] < first[cb]
	})

	renumber := make(map[int]int, len(order))
	for id, c := range order {
		renumber[c] = id
	}
	for i, c := range raw {
		if id, ok := renumber[c]; ok {
			labels[i] = id
		}
	}
	return labels
}

// distances returns the row-major cosine distance matrix.
func distances(vectors [][]float32) []float32 {
	n := len(vectors)
	norms := make([]float64, n)
	for i, v := range vectors {
		var s float64
		for _, x := range v {
			s += float64(x) * float64(x)
		}
		norms[i] = math.Sqrt(s)
	}

	dist := make([]float32, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var dot float64
			for k := range vectors[i] {
				dot += float64(vectors[i][k]) * float64(vectors[j][k])
			}
			sim := 0.0
			if norms[i] > 0 && norms[j] > 0 {
				sim = dot / (norms[i] * norms[j])
			}
			dist[i*n+j] = float32(1 - sim)
			dist[j*n+i] = float32(1 - sim)
		}
	}
	return dist
}

// meanVector averages the rows idx of vectors.
func meanVector(vectors [][]float32, idx []int) []float32 {
	if len(idx) == 0 || len(vectors[idx[0]]) == 0 {
		return nil
	}
	sum := make([]float64, len(vectors[idx[0]]))
	for _, i := range idx {
		for k, x := range vectors[i] {
			sum[k] += float64(x)
		}
	}
	mean := make([]float32, len(sum))
	for k, s := range sum {
		mean[k] = float32(s / float64(len(idx)))
	}
	return mean
}
