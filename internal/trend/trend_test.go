package trend

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/maxonary/ai-trend-clustering/internal/paper"
	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
)

func day(s string) paper.Date {
	d, err := paper.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fixture() (*topicmodel.Model, []paper.Document) {
	docs := []paper.Document{
		{Title: "a", Abstract: "large language model alignment", Published: day("2023-01-01")},
		{Title: "b", Abstract: "language model prompting", Published: day("2023-01-05")},
		{Title: "c", Abstract: "speech recognition", Published: day("2023-01-06")},
		{Title: "d", Abstract: "noise", Published: day("2023-01-07")},
		{Title: "e", Abstract: "instruction tuned language model", Published: day("2023-01-11")},
		{Title: "f", Abstract: "speech synthesis", Published: day("2023-01-11")},
	}
	m := topicmodel.New([]topicmodel.Topic{
		{ID: topicmodel.OutlierID, Count: 1},
		{ID: 0, Count: 3, Terms: []topicmodel.Term{{Text: "language model", Weight: 0.9}, {Text: "language", Weight: 0.8}, {Text: "alignment", Weight: 0.5}, {Text: "instruction", Weight: 0.4}}},
		{ID: 1, Count: 2, Terms: []topicmodel.Term{{Text: "speech", Weight: 0.9}, {Text: "synthesis", Weight: 0.3}}},
	}, []int{0, 0, 1, -1, 0, 1}, 2, 1)
	return m, docs
}

func TestTopicsOverTime_Binning(t *testing.T) {
	m, docs := fixture()
	tr, err := TopicsOverTime(m, docs, 2)
	if err != nil {
		t.Fatalf("TopicsOverTime failed: %v", err)
	}

	if len(tr.Windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(tr.Windows))
	}
	first, last := tr.Windows[0], tr.Windows[1]
	if !first.Start.Equal(day("2023-01-01").Time) || !last.End.Equal(day("2023-01-11").Time) {
		t.Errorf("windows do not span the corpus: %+v", tr.Windows)
	}
	if !first.End.Equal(day("2023-01-06").Time) || !last.Start.Equal(first.End) {
		t.Errorf("windows not equal width: %+v", tr.Windows)
	}
	if want := day("2023-01-01").Time.Add(60 * time.Hour); !first.Center.Equal(want) {
		t.Errorf("first center = %v, want %v", first.Center, want)
	}

	if len(tr.Topics) != 2 {
		t.Fatalf("got %d series, want 2 (outliers excluded)", len(tr.Topics))
	}
	// 2023-01-06 falls on the boundary and belongs to the second window.
	if got := tr.Topics[0].Counts; !reflect.DeepEqual(got, []int{2, 1}) {
		t.Errorf("topic 0 counts = %v", got)
	}
	if got := tr.Topics[1].Counts; !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("topic 1 counts = %v", got)
	}
}

func TestTopicsOverTime_WindowWords(t *testing.T) {
	m, docs := fixture()
	tr, err := TopicsOverTime(m, docs, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := tr.Topics[0].Words[0]; !reflect.DeepEqual(got, []string{"language model", "language", "alignment"}) {
		t.Errorf("topic 0 window 0 words = %v", got)
	}
	if got := tr.Topics[0].Words[1]; !reflect.DeepEqual(got, []string{"language model", "language", "instruction"}) {
		t.Errorf("topic 0 window 1 words = %v", got)
	}
	if got := tr.Topics[1].Words[0]; len(got) != 0 {
		t.Errorf("empty window should have no words, got %v", got)
	}
}

func TestTopicsOverTime_SingleBinMatchesCounts(t *testing.T) {
	m, docs := fixture()
	tr, err := TopicsOverTime(m, docs, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range tr.Topics {
		topic, _ := m.Topic(s.TopicID)
		if s.Total() != topic.Count {
			t.Errorf("topic %d total = %d, want %d", s.TopicID, s.Total(), topic.Count)
		}
	}
}

func TestTopicsOverTime_Degenerate(t *testing.T) {
	t.Run("no documents", func(t *testing.T) {
		m := topicmodel.New(nil, nil, 2, 5)
		tr, err := TopicsOverTime(m, nil, 10)
		if err != nil {
			t.Fatalf("TopicsOverTime failed: %v", err)
		}
		if len(tr.Windows) != 1 || len(tr.Topics) != 0 {
			t.Errorf("got %+v", tr)
		}
	})

	t.Run("single date", func(t *testing.T) {
		m, docs := fixture()
		for i := range docs {
			docs[i].Published = day("2024-03-01")
		}
		tr, err := TopicsOverTime(m, docs, 10)
		if err != nil {
			t.Fatalf("TopicsOverTime failed: %v", err)
		}
		if len(tr.Windows) != 1 {
			t.Fatalf("got %d windows, want 1", len(tr.Windows))
		}
		if tr.Topics[0].Counts[0] != 3 {
			t.Errorf("counts = %v", tr.Topics[0].Counts)
		}
	})

	t.Run("invalid bins", func(t *testing.T) {
		m, docs := fixture()
		for _, bins := range []int{0, -3, MaxBins + 1, 5_000_000} {
			if _, err := TopicsOverTime(m, docs, bins); !errors.Is(err, ErrInvalidBins) {
				t.Errorf("bins=%d: expected ErrInvalidBins, got %v", bins, err)
			}
		}
		if _, err := TopicsOverTime(m, docs, MaxBins); err != nil {
			t.Errorf("bins=MaxBins: %v", err)
		}
	})

	t.Run("misaligned", func(t *testing.T) {
		m, docs := fixture()
		if _, err := TopicsOverTime(m, docs[:3], 5); !errors.Is(err, ErrMisaligned) {
			t.Errorf("expected ErrMisaligned, got %v", err)
		}
	})
}

func TestTopicsOverTime_BinCount(t *testing.T) {
	m, docs := fixture()
	tr, err := TopicsOverTime(m, docs, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Windows) != 10 {
		t.Errorf("got %d windows, want 10", len(tr.Windows))
	}
	total := 0
	for _, s := range tr.Topics {
		total += s.Total()
	}
	if total != 5 {
		t.Errorf("total = %d, want 5 non-outlier documents", total)
	}
}

func TestAggregator_Memoized(t *testing.T) {
	m, docs := fixture()
	path := filepath.Join(t.TempDir(), "papers.json")
	if err := paper.WriteCorpus(path, docs); err != nil {
		t.Fatal(err)
	}

	a := NewAggregator(0, nil)
	first, err := a.Compute(m, path, 5)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	second, err := a.Compute(m, path, 5)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("expected memoized trend")
	}
	if _, err := a.Compute(m, path, 6); err != nil {
		t.Fatal(err)
	}

	// Rewriting the corpus changes its identity.
	docs[0].Published = day("2022-12-01")
	if err := paper.WriteCorpus(path, docs); err != nil {
		t.Fatal(err)
	}
	third, err := a.Compute(m, path, 5)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Error("changed corpus served from cache")
	}
	if s := a.Stats(); s.Hits != 1 || s.Misses != 3 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestAggregator_RejectsBinsOutOfRange(t *testing.T) {
	m, docs := fixture()
	path := filepath.Join(t.TempDir(), "papers.json")
	if err := paper.WriteCorpus(path, docs); err != nil {
		t.Fatal(err)
	}

	a := NewAggregator(0, nil)
	for _, bins := range []int{0, MaxBins + 1} {
		if _, err := a.Compute(m, path, bins); !errors.Is(err, ErrInvalidBins) {
			t.Errorf("bins=%d: expected ErrInvalidBins, got %v", bins, err)
		}
	}
	if s := a.Stats(); s.Misses != 0 {
		t.Errorf("rejected bins reached the memo: %+v", s)
	}
}

func TestAggregator_MetadataErrors(t *testing.T) {
	m, _ := fixture()
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		index   int
	}{
		{"malformed date", `[{"title":"a","abstract":"b","date":"01/02/2023"}]`, 0},
		{"missing field", `[{"title":"a","date":"2023-01-02"},{"title":"a","abstract":"b","date":"2023-01-02"}]`, 0},
		{"not json", `{{`, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := NewAggregator(0, nil).Compute(m, path, 5)
			var me *MetadataError
			if !errors.As(err, &me) {
				t.Fatalf("expected *MetadataError, got %v", err)
			}
			if me.Index != tt.index {
				t.Errorf("Index = %d, want %d", me.Index, tt.index)
			}
		})
	}

	_, err := NewAggregator(0, nil).Compute(m, filepath.Join(dir, "missing.json"), 5)
	if !IsMetadataError(err) {
		t.Errorf("missing corpus should be a metadata error, got %v", err)
	}
}
