// Package topicmodel defines the fitted topic model artifact and its
// on-disk bundle.
package topicmodel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OutlierID is the reserved topic for documents not assigned to any cluster.
const OutlierID = -1

// ErrInvalidModel is wrapped by every Validate failure.
var ErrInvalidModel = errors.New("invalid topic model")

// Term is a ranked characteristic term of a topic.
type Term struct {
	Text   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Topic is one cluster of the model.
type Topic struct {
	ID     int       `json:"id"`
	Count  int       `json:"count"`
	Vector []float32 `json:"-"`
	Terms  []Term    `json:"terms"`
}

// Model is a fitted topic model. It is immutable once fitted; ID is its
// identity for caching and versioning.
type Model struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Vectorizer settings the terms were extracted with.
	NgramMax int `json:"ngram_max"`
	MinDF    int `json:"min_df"`

	// Topics are ordered by ID; the outlier topic, when present, comes first.
	Topics []Topic `json:"topics"`

	// Assignments maps document index to topic ID.
	Assignments []int `json:"-"`

	byID map[int]int
}

// New builds a model with a fresh identity. Topics are sorted by ID.
func New(topics []Topic, assignments []int, ngramMax, minDF int) *Model {
	m := &Model{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		NgramMax:    ngramMax,
		MinDF:       minDF,
		Topics:      topics,
		Assignments: assignments,
	}
	m.index()
	return m
}

func (m *Model) index() {
	sort.Slice(m.Topics, func(i, j int) bool { return m.Topics[i].ID < m.Topics[j].ID })
	m.byID = make(map[int]int, len(m.Topics))
	for i, t := range m.Topics {
		m.byID[t.ID] = i
	}
}

// Validate checks the model invariants: assigned topics exist, counts match
// the assignments, terms are weight-descending, and vectors share one
// dimensionality.
func (m *Model) Validate() error {
	if m.byID == nil {
		m.index()
	}
	if len(m.byID) != len(m.Topics) {
		return fmt.Errorf("%w: duplicate topic IDs", ErrInvalidModel)
	}

	counts := make(map[int]int, len(m.Topics))
	for i, id := range m.Assignments {
		if _, ok := m.byID[id]; !ok {
			return fmt.Errorf("%w: document %d assigned to unknown topic %d", ErrInvalidModel, i, id)
		}
		counts[id]++
	}

	dims := -1
	for _, t := range m.Topics {
		if t.ID < OutlierID {
			return fmt.Errorf("%w: topic ID %d below outlier ID", ErrInvalidModel, t.ID)
		}
		if t.Count < 0 || t.Count != counts[t.ID] {
			return fmt.Errorf("%w: topic %d count %d, but %d documents assigned", ErrInvalidModel, t.ID, t.Count, counts[t.ID])
		}
		for k := 1; k < len(t.Terms); k++ {
			if t.Terms[k].Weight > t.Terms[k-1].Weight {
				return fmt.Errorf("%w: topic %d terms not ranked by weight", ErrInvalidModel, t.ID)
			}
		}
		if len(t.Vector) == 0 {
			continue
		}
		if dims == -1 {
			dims = len(t.Vector)
		} else if len(t.Vector) != dims {
			return fmt.Errorf("%w: topic %d vector has %d dimensions, want %d", ErrInvalidModel, t.ID, len(t.Vector), dims)
		}
	}
	return nil
}

// Topic returns the topic with the given ID.
func (m *Model) Topic(id int) (Topic, bool) {
	if m.byID == nil {
		m.index()
	}
	i, ok := m.byID[id]
	if !ok {
		return Topic{}, false
	}
	return m.Topics[i], true
}

// RealTopics returns every topic except the outlier bucket, in ID order.
func (m *Model) RealTopics() []Topic {
	out := make([]Topic, 0, len(m.Topics))
	for _, t := range m.Topics {
		if t.ID != OutlierID {
			out = append(out, t)
		}
	}
	return out
}

// TopicCount returns the number of topics excluding the outlier bucket.
func (m *Model) TopicCount() int {
	return len(m.RealTopics())
}

// HasOutliers reports whether the model carries the outlier bucket.
func (m *Model) HasOutliers() bool {
	_, ok := m.Topic(OutlierID)
	return ok
}

// DocumentCount returns the number of documents the model was fitted on.
func (m *Model) DocumentCount() int {
	return len(m.Assignments)
}

// Dimensions returns the dimensionality of the representative vectors, or 0
// when the model has none.
func (m *Model) Dimensions() int {
	for _, t := range m.Topics {
		if len(t.Vector) > 0 {
			return len(t.Vector)
		}
	}
	return 0
}

// TopTerms returns up to n highest-ranked terms of a topic.
func (m *Model) TopTerms(id, n int) []Term {
	t, ok := m.Topic(id)
	if !ok || n <= 0 {
		return nil
	}
	if n > len(t.Terms) {
		n = len(t.Terms)
	}
	return t.Terms[:n]
}

// Label joins the top n terms of a topic with spaces.
func (m *Model) Label(id, n int) string {
	terms := m.TopTerms(id, n)
	words := make([]string, len(terms))
	for i, t := range terms {
		words[i] = t.Text
	}
	return strings.Join(words, " ")
}
