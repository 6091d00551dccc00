package projection

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
)

type stubReducer struct {
	calls int
	err   error
}

func (s *stubReducer) ReduceTo3D(vectors [][]float32, neighbors int, minDist float64) ([][3]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][3]float64, len(vectors))
	for i := range out {
		out[i] = [3]float64{float64(i), float64(neighbors), minDist}
	}
	return out, nil
}

func testModel() *topicmodel.Model {
	return topicmodel.New([]topicmodel.Topic{
		{ID: topicmodel.OutlierID, Count: 2, Vector: []float32{1, 1, 1}, Terms: []topicmodel.Term{{Text: "misc", Weight: 0.1}}},
		{ID: 0, Count: 5, Vector: []float32{1, 0, 0}, Terms: []topicmodel.Term{
			{Text: "language", Weight: 0.9}, {Text: "model", Weight: 0.8}, {Text: "large", Weight: 0.7},
			{Text: "llm", Weight: 0.6}, {Text: "prompt", Weight: 0.5}, {Text: "token", Weight: 0.4},
		}},
		{ID: 1, Count: 3, Vector: []float32{0, 1, 0}, Terms: []topicmodel.Term{{Text: "speech", Weight: 0.5}}},
		{ID: 2, Count: 1, Vector: []float32{0, 0, 1}, Terms: []topicmodel.Term{{Text: "graph", Weight: 0.5}}},
	}, []int{0, 0, 0, 0, 0, 1, 1, 1, 2, -1, -1}, 2, 5)
}

func TestProject_ExcludesOutliers(t *testing.T) {
	r := &stubReducer{}
	p := NewProjector(r, 0)

	proj, err := p.Project(testModel(), 15, 0.1)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if len(proj.Points) != 3 {
		t.Fatalf("got %d points, want 3", len(proj.Points))
	}
	for i, pt := range proj.Points {
		if pt.TopicID == topicmodel.OutlierID {
			t.Error("outlier topic projected")
		}
		if pt.TopicID != i || pt.X != float64(i) {
			t.Errorf("point %d = %+v", i, pt)
		}
	}
}

func TestProject_LabelsAndHover(t *testing.T) {
	proj, err := NewProjector(&stubReducer{}, 0).Project(testModel(), 15, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	top := proj.Points[0]
	if top.Label != "language model large" {
		t.Errorf("Label = %q", top.Label)
	}
	if len(top.Terms) != DefaultHoverTerms {
		t.Errorf("hover lists %d terms, want %d", len(top.Terms), DefaultHoverTerms)
	}
	if !strings.Contains(top.Hover, "(Topic 0 · 5 docs)") || !strings.Contains(top.Hover, "prompt") {
		t.Errorf("Hover = %q", top.Hover)
	}
	if strings.Contains(top.Hover, "token") {
		t.Errorf("Hover lists more than %d terms: %q", DefaultHoverTerms, top.Hover)
	}
}

func TestProject_Memoized(t *testing.T) {
	r := &stubReducer{}
	p := NewProjector(r, 0)
	m := testModel()

	first, _ := p.Project(m, 15, 0.1)
	second, _ := p.Project(m, 15, 0.1)
	if r.calls != 1 {
		t.Errorf("reducer called %d times, want 1", r.calls)
	}
	if first != second {
		t.Error("expected the memoized projection")
	}

	p.Project(m, 15, 0.2)
	p.Project(m, 10, 0.1)
	if r.calls != 3 {
		t.Errorf("reducer called %d times after parameter changes, want 3", r.calls)
	}
	if s := p.Stats(); s.Hits != 1 || s.Misses != 3 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestProject_Errors(t *testing.T) {
	tests := []struct {
		name      string
		neighbors int
		minDist   float64
	}{
		{"too few neighbors", 1, 0.1},
		{"negative min_dist", 15, -0.1},
		{"min_dist above one", 15, 1.1},
		{"NaN min_dist", 15, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProjector(&stubReducer{}, 0).Project(testModel(), tt.neighbors, tt.minDist)
			if !errors.Is(err, ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
		})
	}

	boom := errors.New("boom")
	r := &stubReducer{err: boom}
	p := NewProjector(r, 0)
	if _, err := p.Project(testModel(), 15, 0.1); !errors.Is(err, boom) {
		t.Errorf("expected reducer error, got %v", err)
	}
	r.err = nil
	if _, err := p.Project(testModel(), 15, 0.1); err != nil {
		t.Errorf("failed projection should not be cached: %v", err)
	}
}

func TestProject_NoRealTopics(t *testing.T) {
	m := topicmodel.New([]topicmodel.Topic{
		{ID: topicmodel.OutlierID, Count: 2, Vector: []float32{1, 0}},
	}, []int{-1, -1}, 2, 5)
	r := &stubReducer{}
	proj, err := NewProjector(r, 0).Project(m, 15, 0.1)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if len(proj.Points) != 0 || r.calls != 0 {
		t.Errorf("expected empty projection without reduction, got %+v", proj)
	}
}

func TestProject_UMAPDeterministic(t *testing.T) {
	m := testModel()
	a, err := NewProjector(UMAPReducer{Epochs: 30}, 0).Project(m, 15, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewProjector(UMAPReducer{Epochs: 30}, 0).Project(m, 15, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Points, b.Points) {
		t.Error("separate projectors produced different coordinates")
	}
}

func TestBubbleSizes(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   []float64
	}{
		{"empty", nil, []float64{}},
		{"spread", []int{10, 30, 20}, []float64{20, 60, 40}},
		{"all equal", []int{7, 7, 7}, []float64{20, 20, 20}},
		{"single", []int{4}, []float64{20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BubbleSizes(tt.counts, SizeFloor, SizeCeil)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.IsNaN(got[i]) || math.Abs(got[i]-tt.want[i]) > 1e-4 {
					t.Errorf("size[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
