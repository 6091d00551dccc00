package trend

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/maxonary/ai-trend-clustering/internal/cache"
	"github.com/maxonary/ai-trend-clustering/internal/paper"
	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
)

// MetadataError reports a corpus that could not be used for trend
// aggregation. Callers render it inline instead of failing the whole view.
type MetadataError struct {
	Path  string
	Index int
	Field string
	Err   error
}

func (e *MetadataError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("could not read metadata %s (record %d %s): %v", e.Path, e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("could not read metadata %s: %v", e.Path, e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// IsMetadataError reports whether err is a *MetadataError.
func IsMetadataError(err error) bool {
	var me *MetadataError
	return errors.As(err, &me)
}

type key struct {
	modelID string
	corpus  string
	bins    int
}

// Aggregator computes trends from a corpus file and memoizes them per
// (model, corpus content, bins).
type Aggregator struct {
	memo   *cache.Memo[key, *Trend]
	logger *slog.Logger
}

// NewAggregator returns an Aggregator whose memo holds at most capacity
// trends; zero means unbounded.
func NewAggregator(capacity int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		memo:   cache.New[key, *Trend](capacity),
		logger: logger,
	}
}

// Compute returns the trend of m over the corpus at corpusPath. The corpus
// identity is its content hash, so a rewritten file is a different key.
func (a *Aggregator) Compute(m *topicmodel.Model, corpusPath string, bins int) (*Trend, error) {
	if err := ValidateBins(bins); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(corpusPath)
	if err != nil {
		return nil, &MetadataError{Path: corpusPath, Index: -1, Err: err}
	}

	k := key{modelID: m.ID, corpus: paper.IdentityOf(data), bins: bins}
	return a.memo.Get(k, func() (*Trend, error) {
		a.logger.Debug("computing trend", "model", m.ID, "corpus", corpusPath, "bins", bins)
		docs, err := paper.DecodeCorpus(corpusPath, data)
		if err != nil {
			return nil, metadataError(corpusPath, err)
		}
		t, err := TopicsOverTime(m, docs, bins)
		if errors.Is(err, ErrMisaligned) {
			return nil, &MetadataError{Path: corpusPath, Index: -1, Err: err}
		}
		return t, err
	})
}

// Stats reports memo usage.
func (a *Aggregator) Stats() cache.Stats {
	return a.memo.Stats()
}

func metadataError(path string, err error) error {
	var pe *paper.ParseError
	if errors.As(err, &pe) {
		return &MetadataError{Path: path, Index: pe.Index, Field: pe.Field, Err: pe.Err}
	}
	return &MetadataError{Path: path, Index: -1, Err: err}
}
