// Package runstore manages run directories: one immutable snapshot of the
// ingest, embed and cluster pipeline per directory.
package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/maxonary/ai-trend-clustering/internal/embedding"
	"github.com/maxonary/ai-trend-clustering/internal/paper"
	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
)

// Fixed artifact names inside a run directory.
const (
	CorpusFile     = "papers.json"
	EmbeddingsFile = "embeddings.gob"
	ModelDir       = "topic_model"

	// TimestampLayout prefixes every run directory name.
	TimestampLayout = "2006-01-02_150405"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrRunIncomplete = errors.New("run is incomplete")
	ErrRunExists     = errors.New("run directory already exists")
	ErrInvalidID     = errors.New("invalid run id")
)

// CategoryPattern matches category codes usable in a directory name.
var CategoryPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

var runName = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}_\d{6})_(.+)$`)

// Handle locates a run directory.
type Handle struct {
	ID        string    `json:"id"`
	Dir       string    `json:"dir"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// CorpusPath returns the path of the corpus artifact.
func (h Handle) CorpusPath() string {
	return filepath.Join(h.Dir, CorpusFile)
}

// EmbeddingsPath returns the path of the embeddings artifact.
func (h Handle) EmbeddingsPath() string {
	return filepath.Join(h.Dir, EmbeddingsFile)
}

// ModelPath returns the path of the topic model directory.
func (h Handle) ModelPath() string {
	return filepath.Join(h.Dir, ModelDir)
}

// Missing lists the artifacts not present yet.
func (h Handle) Missing() []string {
	var missing []string
	if !isFile(h.CorpusPath()) {
		missing = append(missing, CorpusFile)
	}
	if !isFile(h.EmbeddingsPath()) {
		missing = append(missing, EmbeddingsFile)
	}
	if !topicmodel.Exists(h.ModelPath()) {
		missing = append(missing, ModelDir)
	}
	return missing
}

// Complete reports whether all three artifacts are present.
func (h Handle) Complete() bool {
	return len(h.Missing()) == 0
}

// Status is a run directory found by Scan.
type Status struct {
	Handle
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing,omitempty"`
}

// Run is a loaded, complete run.
type Run struct {
	Handle     Handle
	Embeddings *embedding.Matrix
	Model      *topicmodel.Model
}

// Corpus reads the run's papers.json. It is read on every call.
func (r *Run) Corpus() ([]paper.Document, error) {
	return paper.ReadCorpus(r.Handle.CorpusPath())
}

// Store is a directory of runs.
type Store struct {
	Root string
}

// New returns a Store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

// Create makes the directory for a new run of category started at now.
func (s *Store) Create(category string, now time.Time) (Handle, error) {
	if !CategoryPattern.MatchString(category) {
		return Handle{}, fmt.Errorf("invalid category %q", category)
	}
	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return Handle{}, fmt.Errorf("creating runs root: %w", err)
	}

	id := now.UTC().Format(TimestampLayout) + "_" + category
	h, _ := s.handle(id)
	if err := os.Mkdir(h.Dir, 0755); err != nil {
		if os.IsExist(err) {
			return Handle{}, fmt.Errorf("%w: %s", ErrRunExists, h.Dir)
		}
		return Handle{}, fmt.Errorf("creating run directory: %w", err)
	}
	return h, nil
}

// Scan returns every run directory, complete or not, newest first.
func (s *Store) Scan() ([]Status, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading runs root: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && runName.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	out := make([]Status, 0, len(names))
	for _, name := range names {
		h, err := s.handle(name)
		if err != nil {
			continue
		}
		missing := h.Missing()
		out = append(out, Status{Handle: h, Complete: len(missing) == 0, Missing: missing})
	}
	return out, nil
}

// List returns the complete runs, newest first.
func (s *Store) List() ([]Handle, error) {
	all, err := s.Scan()
	if err != nil {
		return nil, err
	}
	var out []Handle
	for _, st := range all {
		if st.Complete {
			out = append(out, st.Handle)
		}
	}
	return out, nil
}

// Latest returns the newest complete run.
func (s *Store) Latest() (Handle, error) {
	runs, err := s.List()
	if err != nil {
		return Handle{}, err
	}
	if len(runs) == 0 {
		return Handle{}, fmt.Errorf("%w: no complete runs in %s", ErrRunNotFound, s.Root)
	}
	return runs[0], nil
}

// Get resolves a run ID to its handle.
func (s *Store) Get(id string) (Handle, error) {
	h, err := s.handle(id)
	if err != nil {
		return Handle{}, err
	}
	info, err := os.Stat(h.Dir)
	if err != nil || !info.IsDir() {
		return Handle{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return h, nil
}

// Open loads the embeddings and topic model of a complete run. The corpus
// is left on disk: a malformed papers.json only fails the views that read
// it, through Run.Corpus or the trend aggregator.
func (s *Store) Open(h Handle) (*Run, error) {
	info, err := os.Stat(h.Dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, h.ID)
	}
	if missing := h.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s lacks %s", ErrRunIncomplete, h.ID, strings.Join(missing, ", "))
	}

	mat, err := embedding.Load(h.EmbeddingsPath())
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}
	model, err := topicmodel.Load(h.ModelPath())
	if err != nil {
		return nil, fmt.Errorf("loading topic model: %w", err)
	}
	return &Run{Handle: h, Embeddings: mat, Model: model}, nil
}

func (s *Store) handle(id string) (Handle, error) {
	m := runName.FindStringSubmatch(id)
	if m == nil || filepath.Base(id) != id {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	created, err := time.Parse(TimestampLayout, m[1])
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return Handle{
		ID:        id,
		Dir:       filepath.Join(s.Root, id),
		Category:  m[2],
		CreatedAt: created,
	}, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
