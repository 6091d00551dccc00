// Package projection lays out topic centroids in three dimensions for the
// topic map.
package projection

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/maxonary/ai-trend-clustering/internal/cache"
	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
	"github.com/maxonary/ai-trend-clustering/internal/umap"
)

const (
	DefaultNeighbors  = umap.DefaultNeighbors
	DefaultMinDist    = umap.DefaultMinDist
	DefaultHoverTerms = 5
	DefaultLabelTerms = 3

	// Bubble sizes are rescaled into [SizeFloor, SizeCeil].
	SizeFloor = 20.0
	SizeCeil  = 60.0

	sizeEpsilon = 1e-6
)

var ErrInvalidParams = errors.New("invalid projection parameters")

// Reducer maps vectors to 3-D coordinates. Output row i belongs to
// vectors[i].
type Reducer interface {
	ReduceTo3D(vectors [][]float32, neighbors int, minDist float64) ([][3]float64, error)
}

// UMAPReducer is the default Reducer.
type UMAPReducer struct {
	Seed   int64
	Epochs int
}

// ReduceTo3D implements Reducer.
func (r UMAPReducer) ReduceTo3D(vectors [][]float32, neighbors int, minDist float64) ([][3]float64, error) {
	p := umap.DefaultParams()
	p.Neighbors = neighbors
	p.MinDist = minDist
	p.Components = 3
	p.Epochs = r.Epochs
	if r.Seed != 0 {
		p.Seed = r.Seed
	}

	rows, err := umap.Reduce(vectors, p)
	if err != nil {
		return nil, err
	}
	out := make([][3]float64, len(rows))
	for i, row := range rows {
		copy(out[i][:], row)
	}
	return out, nil
}

// Point is one topic on the map.
type Point struct {
	TopicID int               `json:"topic_id"`
	Count   int               `json:"count"`
	X       float64           `json:"x"`
	Y       float64           `json:"y"`
	Z       float64           `json:"z"`
	Size    float64           `json:"size"`
	Label   string            `json:"label"`
	Hover   string            `json:"hover"`
	Terms   []topicmodel.Term `json:"terms"`
}

// Projection is the topic map of one model under one parameter pair.
type Projection struct {
	ModelID   string  `json:"model_id"`
	Neighbors int     `json:"neighbors"`
	MinDist   float64 `json:"min_dist"`
	Points    []Point `json:"points"`
}

type key struct {
	modelID   string
	neighbors int
	minDist   float64
}

// Projector computes projections and memoizes them per (model, neighbors,
// min_dist).
type Projector struct {
	reducer    Reducer
	hoverTerms int
	labelTerms int
	memo       *cache.Memo[key, *Projection]
	logger     *slog.Logger
}

// Option configures a Projector.
type Option func(*Projector)

// WithHoverTerms sets how many ranked terms the hover text lists.
func WithHoverTerms(n int) Option {
	return func(p *Projector) {
		if n > 0 {
			p.hoverTerms = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Projector) {
		p.logger = l
	}
}

// NewProjector returns a Projector using r. capacity bounds the memo; zero
// means unbounded.
func NewProjector(r Reducer, capacity int, opts ...Option) *Projector {
	if r == nil {
		r = UMAPReducer{}
	}
	p := &Projector{
		reducer:    r,
		hoverTerms: DefaultHoverTerms,
		labelTerms: DefaultLabelTerms,
		memo:       cache.New[key, *Projection](capacity),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate checks the user-adjustable parameters.
func Validate(neighbors int, minDist float64) error {
	if neighbors < 2 {
		return fmt.Errorf("%w: neighbors must be at least 2, got %d", ErrInvalidParams, neighbors)
	}
	if math.IsNaN(minDist) || minDist < 0 || minDist > 1 {
		return fmt.Errorf("%w: min_dist must be within [0, 1], got %v", ErrInvalidParams, minDist)
	}
	return nil
}

// Project lays out the real topics of m. The outlier topic is never
// included. Results are shared between callers and must not be modified.
func (p *Projector) Project(m *topicmodel.Model, neighbors int, minDist float64) (*Projection, error) {
	if err := Validate(neighbors, minDist); err != nil {
		return nil, err
	}
	k := key{modelID: m.ID, neighbors: neighbors, minDist: minDist}
	return p.memo.Get(k, func() (*Projection, error) {
		p.logger.Debug("computing projection", "model", m.ID, "neighbors", neighbors, "min_dist", minDist)
		return p.compute(m, neighbors, minDist)
	})
}

// Stats reports memo usage.
func (p *Projector) Stats() cache.Stats {
	return p.memo.Stats()
}

func (p *Projector) compute(m *topicmodel.Model, neighbors int, minDist float64) (*Projection, error) {
	topics := m.RealTopics()
	proj := &Projection{
		ModelID:   m.ID,
		Neighbors: neighbors,
		MinDist:   minDist,
		Points:    make([]Point, len(topics)),
	}
	if len(topics) == 0 {
		return proj, nil
	}

	vectors := make([][]float32, len(topics))
	counts := make([]int, len(topics))
	for i, t := range topics {
		vectors[i] = t.Vector
		counts[i] = t.Count
	}

	coords, err := p.reducer.ReduceTo3D(vectors, neighbors, minDist)
	if err != nil {
		return nil, fmt.Errorf("reducing topic vectors: %w", err)
	}
	if len(coords) != len(topics) {
		return nil, fmt.Errorf("reducer returned %d points for %d topics", len(coords), len(topics))
	}

	sizes := BubbleSizes(counts, SizeFloor, SizeCeil)
	for i, t := range topics {
		terms := m.TopTerms(t.ID, p.hoverTerms)
		proj.Points[i] = Point{
			TopicID: t.ID,
			Count:   t.Count,
			X:       coords[i][0],
			Y:       coords[i][1],
			Z:       coords[i][2],
			Size:    sizes[i],
			Label:   m.Label(t.ID, p.labelTerms),
			Hover:   hoverText(t, terms),
			Terms:   terms,
		}
	}
	return proj, nil
}

// BubbleSizes linearly rescales counts into [floor, ceil]. Equal counts all
// map to floor.
func BubbleSizes(counts []int, floor, ceil float64) []float64 {
	sizes := make([]float64, len(counts))
	if len(counts) == 0 {
		return sizes
	}
	lo, hi := counts[0], counts[0]
	for _, c := range counts[1:] {
		lo = min(lo, c)
		hi = max(hi, c)
	}
	span := float64(hi-lo) + sizeEpsilon
	for i, c := range counts {
		sizes[i] = floor + (ceil-floor)*float64(c-lo)/span
	}
	return sizes
}

func hoverText(t topicmodel.Topic, terms []topicmodel.Term) string {
	words := make([]string, len(terms))
	for i, term := range terms {
		words[i] = term.Text
	}
	return fmt.Sprintf("%s<br>(Topic %d · %d docs)", strings.Join(words, ", "), t.ID, t.Count)
}
