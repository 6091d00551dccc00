// Package trend aggregates topic frequencies over time windows.
package trend

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/maxonary/ai-trend-clustering/internal/cluster"
	"github.com/maxonary/ai-trend-clustering/internal/paper"
	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
)

const (
	DefaultBins = 20
	MinBins     = 1
	MaxBins     = 1000

	// DefaultWindowWords is the number of top words kept per topic and window.
	DefaultWindowWords = 5
)

var (
	ErrInvalidBins = errors.New("bin count must be between 1 and 1000")

	// ErrMisaligned is returned when the corpus and the model's assignments
	// disagree on the number of documents.
	ErrMisaligned = errors.New("corpus does not match model assignments")
)

// Window is one time bin. The last window includes its End.
type Window struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Center time.Time `json:"center"`
}

// Series is the frequency of one topic per window.
type Series struct {
	TopicID int        `json:"topic_id"`
	Label   string     `json:"label"`
	Counts  []int      `json:"counts"`
	Words   [][]string `json:"words"`
}

// Total returns the sum of the counts.
func (s Series) Total() int {
	var n int
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// Trend is the per-topic time series of a model over a corpus. Documents in
// the outlier topic are not counted.
type Trend struct {
	ModelID string   `json:"model_id"`
	Bins    int      `json:"bins"`
	Windows []Window `json:"windows"`
	Topics  []Series `json:"topics"`
}

// ValidateBins checks bins against [MinBins, MaxBins].
func ValidateBins(bins int) error {
	if bins < MinBins || bins > MaxBins {
		return fmt.Errorf("%w: got %d", ErrInvalidBins, bins)
	}
	return nil
}

// TopicsOverTime partitions the corpus date range into bins equal-width
// windows and counts documents per topic and window. docs[i] must be the
// document assigned m.Assignments[i]. A corpus with no documents or a single
// distinct date yields one window.
func TopicsOverTime(m *topicmodel.Model, docs []paper.Document, bins int) (*Trend, error) {
	if err := ValidateBins(bins); err != nil {
		return nil, err
	}
	if len(docs) != len(m.Assignments) {
		return nil, fmt.Errorf("%w: %d documents, %d assignments", ErrMisaligned, len(docs), len(m.Assignments))
	}

	windows, index := binDates(paper.Dates(docs), bins)

	topics := m.RealTopics()
	series := make([]Series, len(topics))
	pos := make(map[int]int, len(topics))
	for i, t := range topics {
		pos[t.ID] = i
		series[i] = Series{
			TopicID: t.ID,
			Label:   m.Label(t.ID, 3),
			Counts:  make([]int, len(windows)),
			Words:   make([][]string, len(windows)),
		}
	}

	// Terms present per (topic, window), gathered from member abstracts.
	vec := cluster.Vectorizer{NgramMax: max(m.NgramMax, 1)}
	present := make(map[[2]int]map[string]struct{})
	for i, id := range m.Assignments {
		s, ok := pos[id]
		if !ok {
			continue
		}
		w := index[i]
		series[s].Counts[w]++

		k := [2]int{id, w}
		if present[k] == nil {
			present[k] = make(map[string]struct{})
		}
		for _, term := range vec.Analyze(docs[i].Abstract) {
			present[k][term] = struct{}{}
		}
	}

	for s, t := range topics {
		for w := range windows {
			found := present[[2]int{t.ID, w}]
			words := []string{}
			for _, term := range t.Terms {
				if len(words) == DefaultWindowWords {
					break
				}
				if _, ok := found[term.Text]; ok {
					words = append(words, term.Text)
				}
			}
			series[s].Words[w] = words
		}
	}

	return &Trend{
		ModelID: m.ID,
		Bins:    bins,
		Windows: windows,
		Topics:  series,
	}, nil
}

// binDates returns the windows and the window index of every date.
func binDates(dates []time.Time, bins int) ([]Window, []int) {
	index := make([]int, len(dates))
	if len(dates) == 0 {
		return []Window{{}}, index
	}

	lo, hi := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(lo) {
			lo = d
		}
		if d.After(hi) {
			hi = d
		}
	}
	if lo.Equal(hi) {
		return []Window{{Start: lo, End: hi, Center: lo}}, index
	}

	span := float64(hi.Sub(lo))
	width := span / float64(bins)
	windows := make([]Window, bins)
	for i := range windows {
		start := lo.Add(time.Duration(math.Round(width * float64(i))))
		end := lo.Add(time.Duration(math.Round(width * float64(i+1))))
		if i == bins-1 {
			end = hi
		}
		windows[i] = Window{Start: start, End: end, Center: start.Add(end.Sub(start) / 2)}
	}
	for i, d := range dates {
		b := int(float64(d.Sub(lo)) / width)
		index[i] = min(max(b, 0), bins-1)
	}
	return windows, index
}
