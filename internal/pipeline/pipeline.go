// Package pipeline runs ingest, embed and cluster into a new run directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maxonary/ai-trend-clustering/internal/arxiv"
	"github.com/maxonary/ai-trend-clustering/internal/cluster"
	"github.com/maxonary/ai-trend-clustering/internal/embedding"
	"github.com/maxonary/ai-trend-clustering/internal/paper"
	"github.com/maxonary/ai-trend-clustering/internal/runstore"
)

// Phase names a pipeline stage.
type Phase string

const (
	PhaseFetching   Phase = "fetching"
	PhaseEmbedding  Phase = "embedding"
	PhaseClustering Phase = "clustering"
	PhaseDone       Phase = "done"
)

// State is the progress of a phase.
type State string

const (
	StateStarted  State = "started"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// Defaults for an interactive run.
const (
	DefaultCategory   = "cs.CL"
	DefaultStartYear  = 2020
	DefaultMaxResults = 500
)

// Event reports a phase transition.
type Event struct {
	RunID  string    `json:"run_id"`
	Phase  Phase     `json:"phase"`
	State  State     `json:"state"`
	Detail string    `json:"detail,omitempty"`
	Time   time.Time `json:"time"`
}

// ProgressFunc receives events in order from the goroutine calling Run.
type ProgressFunc func(Event)

// StageError reports the phase a run failed in.
type StageError struct {
	Stage Phase
	RunID string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage of run %s: %v", e.Stage, e.RunID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves a corpus.
type Fetcher interface {
	Fetch(ctx context.Context, q arxiv.Query) ([]paper.Document, error)
}

// Embedder embeds a corpus.
type Embedder interface {
	Generate(ctx context.Context, docs []paper.Document) (*embedding.Matrix, error)
}

// ClustererFunc builds a clusterer for the vectorizer settings of a request.
type ClustererFunc func(ngramMax, minDF int) cluster.Clusterer

// DensityClusterer is the default ClustererFunc.
func DensityClusterer(ngramMax, minDF int) cluster.Clusterer {
	return cluster.NewDensity(ngramMax, minDF)
}

// Request describes one run.
type Request struct {
	Category   string `json:"category"`
	MaxResults int    `json:"max_results"`
	StartYear  int    `json:"start_year"`
	NgramMax   int    `json:"ngram_max"`
	MinDF      int    `json:"min_df"`
}

func (r Request) withDefaults() Request {
	if r.NgramMax <= 0 {
		r.NgramMax = cluster.DefaultNgramMax
	}
	if r.MinDF <= 0 {
		r.MinDF = cluster.DefaultMinDF
	}
	return r
}

func (r Request) query() arxiv.Query {
	return arxiv.Query{Category: r.Category, MaxResults: r.MaxResults, StartYear: r.StartYear}
}

// Result summarizes a finished run.
type Result struct {
	Run       runstore.Handle `json:"run"`
	Documents int             `json:"documents"`
	Topics    int             `json:"topics"`
	Outliers  int             `json:"outliers"`
}

// Runner executes requests against a run store.
type Runner struct {
	Store     *runstore.Store
	Fetcher   Fetcher
	Embedder  Embedder
	Clusterer ClustererFunc
	Logger    *slog.Logger

	// Now stamps new runs; defaults to time.Now.
	Now func() time.Time
}

// Run executes all phases into a new run directory. Cancellation of ctx is
// honoured only between phases; a phase in flight always completes. On
// failure the run directory stays incomplete and the error is a
// *StageError, or the context error when cancelled.
func (r *Runner) Run(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	req = req.withDefaults()
	if err := req.query().Validate(); err != nil {
		return nil, err
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}
	newClusterer := r.Clusterer
	if newClusterer == nil {
		newClusterer = DensityClusterer
	}
	if progress == nil {
		progress = func(Event) {}
	}

	h, err := r.Store.Create(req.Category, now())
	if err != nil {
		return nil, err
	}
	logger = logger.With("run", h.ID)
	phaseCtx := context.WithoutCancel(ctx)

	emit := func(p Phase, s State, detail string) {
		progress(Event{RunID: h.ID, Phase: p, State: s, Detail: detail, Time: now()})
	}
	fail := func(p Phase, err error) error {
		logger.Error("pipeline phase failed", "phase", p, "error", err)
		emit(p, StateFailed, err.Error())
		return &StageError{Stage: p, RunID: h.ID, Err: err}
	}
	boundary := func(next Phase) error {
		if err := ctx.Err(); err != nil {
			logger.Info("pipeline cancelled", "before", next)
			emit(next, StateFailed, "cancelled")
			return err
		}
		emit(next, StateStarted, "")
		logger.Info("pipeline phase started", "phase", next)
		return nil
	}

	if err := boundary(PhaseFetching); err != nil {
		return nil, err
	}
	docs, err := r.Fetcher.Fetch(phaseCtx, req.query())
	if err != nil {
		return nil, fail(PhaseFetching, err)
	}
	if err := paper.WriteCorpus(h.CorpusPath(), docs); err != nil {
		return nil, fail(PhaseFetching, err)
	}
	emit(PhaseFetching, StateFinished, fmt.Sprintf("%d papers", len(docs)))

	if err := boundary(PhaseEmbedding); err != nil {
		return nil, err
	}
	mat, err := r.Embedder.Generate(phaseCtx, docs)
	if err != nil {
		return nil, fail(PhaseEmbedding, err)
	}
	if err := mat.Save(h.EmbeddingsPath()); err != nil {
		return nil, fail(PhaseEmbedding, err)
	}
	emit(PhaseEmbedding, StateFinished, fmt.Sprintf("%d x %d", mat.Len(), mat.Dimensions))

	if err := boundary(PhaseClustering); err != nil {
		return nil, err
	}
	model, err := newClusterer(req.NgramMax, req.MinDF).FitTopics(phaseCtx, paper.Texts(docs), mat.Rows)
	if err != nil {
		return nil, fail(PhaseClustering, err)
	}
	if err := model.Save(h.ModelPath()); err != nil {
		return nil, fail(PhaseClustering, err)
	}
	emit(PhaseClustering, StateFinished, fmt.Sprintf("%d topics", model.TopicCount()))

	outliers := 0
	for _, id := range model.Assignments {
		if id < 0 {
			outliers++
		}
	}
	res := &Result{Run: h, Documents: len(docs), Topics: model.TopicCount(), Outliers: outliers}
	emit(PhaseDone, StateFinished, h.ID)
	logger.Info("pipeline finished", "documents", res.Documents, "topics", res.Topics)
	return res, nil
}

// IsStageError reports whether err is a *StageError and returns it.
func IsStageError(err error) (*StageError, bool) {
	var se *StageError
	ok := errors.As(err, &se)
	return se, ok
}
