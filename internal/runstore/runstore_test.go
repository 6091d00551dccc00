package runstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maxonary/ai-trend-clustering/internal/embedding"
	"github.com/maxonary/ai-trend-clustering/internal/paper"
	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
)

var t0 = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

// populate writes all three artifacts for h.
func populate(t *testing.T, h Handle) {
	t.Helper()
	docs := []paper.Document{
		{Title: "a", Abstract: "x", Published: paper.NewDate(t0)},
		{Title: "b", Abstract: "y", Published: paper.NewDate(t0)},
	}
	if err := paper.WriteCorpus(h.CorpusPath(), docs); err != nil {
		t.Fatal(err)
	}
	m := embedding.NewMatrix("stub", 2)
	m.Append([]float32{1, 0})
	m.Append([]float32{0, 1})
	if err := m.Save(h.EmbeddingsPath()); err != nil {
		t.Fatal(err)
	}
	model := topicmodel.New([]topicmodel.Topic{
		{ID: 0, Count: 2, Vector: []float32{0.5, 0.5}, Terms: []topicmodel.Term{{Text: "x", Weight: 1}}},
	}, []int{0, 0}, 2, 1)
	if err := model.Save(h.ModelPath()); err != nil {
		t.Fatal(err)
	}
}

func TestCreate(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "runs"))
	h, err := s.Create("cs.CL", t0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if h.ID != "2024-05-01_093000_cs.CL" {
		t.Errorf("ID = %q", h.ID)
	}
	if h.Category != "cs.CL" || !h.CreatedAt.Equal(t0) {
		t.Errorf("handle = %+v", h)
	}
	if info, err := os.Stat(h.Dir); err != nil || !info.IsDir() {
		t.Errorf("run directory not created: %v", err)
	}

	if _, err := s.Create("cs.CL", t0); !errors.Is(err, ErrRunExists) {
		t.Errorf("expected ErrRunExists, got %v", err)
	}
	if _, err := s.Create("../etc", t0); err == nil {
		t.Error("expected error for unsafe category")
	}
}

func TestList_NewestFirst(t *testing.T) {
	s := New(t.TempDir())
	var ids []string
	for i := 0; i < 3; i++ {
		h, err := s.Create("cs.LG", t0.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		populate(t, h)
		ids = append(ids, h.ID)
	}

	runs, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	for i, want := range []string{ids[2], ids[1], ids[0]} {
		if runs[i].ID != want {
			t.Errorf("runs[%d] = %s, want %s", i, runs[i].ID, want)
		}
	}

	latest, err := s.Latest()
	if err != nil || latest.ID != ids[2] {
		t.Errorf("Latest() = %v, %v", latest.ID, err)
	}
}

func TestList_SkipsIncomplete(t *testing.T) {
	s := New(t.TempDir())
	done, _ := s.Create("cs.CL", t0)
	populate(t, done)

	partial, _ := s.Create("cs.CL", t0.Add(time.Hour))
	if err := paper.WriteCorpus(partial.CorpusPath(), nil); err != nil {
		t.Fatal(err)
	}
	os.Mkdir(filepath.Join(s.Root, "notes"), 0755)

	runs, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != done.ID {
		t.Errorf("List() = %+v", runs)
	}

	all, err := s.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("Scan() returned %d runs, want 2", len(all))
	}
	if all[0].Complete || len(all[0].Missing) != 2 {
		t.Errorf("partial run status = %+v", all[0])
	}
	if !all[1].Complete {
		t.Errorf("complete run status = %+v", all[1])
	}
}

func TestLatest_Empty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent"))
	if _, err := s.Latest(); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	s := New(t.TempDir())
	h, _ := s.Create("cs.CL", t0)

	if _, err := s.Open(h); !errors.Is(err, ErrRunIncomplete) {
		t.Errorf("expected ErrRunIncomplete, got %v", err)
	}

	populate(t, h)
	run, err := s.Open(h)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if run.Embeddings.Len() != 2 || run.Model.TopicCount() != 1 {
		t.Errorf("run = %+v", run)
	}
	docs, err := run.Corpus()
	if err != nil || len(docs) != 2 {
		t.Errorf("Corpus() = %d docs, %v", len(docs), err)
	}

	ghost := Handle{ID: "2020-01-01_000000_cs.CL", Dir: filepath.Join(s.Root, "2020-01-01_000000_cs.CL")}
	if _, err := s.Open(ghost); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestOpen_MalformedCorpus(t *testing.T) {
	s := New(t.TempDir())
	h, _ := s.Create("cs.CL", t0)
	populate(t, h)
	if err := os.WriteFile(h.CorpusPath(), []byte(`[{"title":"a","abstract":"b","date":"March"}]`), 0644); err != nil {
		t.Fatal(err)
	}

	run, err := s.Open(h)
	if err != nil {
		t.Fatalf("Open should not read the corpus, got %v", err)
	}
	if run.Model.TopicCount() != 1 {
		t.Errorf("model topics = %d, want 1", run.Model.TopicCount())
	}
	var pe *paper.ParseError
	if _, err := run.Corpus(); !errors.As(err, &pe) || pe.Field != "date" {
		t.Errorf("Corpus() error = %v, want date ParseError", err)
	}
}

func TestGet(t *testing.T) {
	s := New(t.TempDir())
	h, _ := s.Create("cs.CL", t0)

	got, err := s.Get(h.ID)
	if err != nil || got.Dir != h.Dir {
		t.Errorf("Get() = %+v, %v", got, err)
	}
	if _, err := s.Get("2020-01-01_000000_cs.CL"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := s.Get("../../etc"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
}

func TestLoader_LoadsOnce(t *testing.T) {
	s := New(t.TempDir())
	h, _ := s.Create("cs.CL", t0)
	populate(t, h)

	l := NewLoader(s, 0, nil)
	first, err := l.Load(h.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := l.Load(h.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("expected the cached run")
	}
	if st := l.Stats(); st.Misses != 1 || st.Hits != 1 {
		t.Errorf("Stats() = %+v", st)
	}

	if _, err := l.Load("2020-01-01_000000_cs.CL"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestLoader_ForgetsRemovedRun(t *testing.T) {
	s := New(t.TempDir())
	h, _ := s.Create("cs.CL", t0)
	populate(t, h)

	l := NewLoader(s, 0, nil)
	if _, err := l.Load(h.ID); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st := l.Stats(); st.Entries != 1 {
		t.Fatalf("Stats() = %+v, want one entry", st)
	}

	if err := os.RemoveAll(h.Dir); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load(h.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if st := l.Stats(); st.Entries != 0 {
		t.Errorf("removed run still cached: %+v", st)
	}
}
