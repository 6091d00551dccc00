package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/maxonary/ai-trend-clustering/internal/arxiv"
	"github.com/maxonary/ai-trend-clustering/internal/config"
	"github.com/maxonary/ai-trend-clustering/internal/embedding"
	"github.com/maxonary/ai-trend-clustering/internal/paper"
	"github.com/maxonary/ai-trend-clustering/internal/pipeline"
	"github.com/maxonary/ai-trend-clustering/internal/runstore"
	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
	"github.com/maxonary/ai-trend-clustering/internal/trend"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"generic", errors.New("boom"), ExitError},
		{"invalid config", fmt.Errorf("%w: cache_entries must be positive", config.ErrInvalidConfig), ExitConfigError},
		{"run not found", fmt.Errorf("%w: x", runstore.ErrRunNotFound), ExitRunNotFound},
		{"run incomplete", fmt.Errorf("%w: x", runstore.ErrRunIncomplete), ExitRunNotFound},
		{"arxiv status", &arxiv.APIError{StatusCode: 500, Message: "oops"}, ExitUpstreamError},
		{"arxiv network", fmt.Errorf("fetching page at 0: %w", arxiv.ErrNetworkError), ExitUpstreamError},
		{"arxiv throttled", arxiv.ErrRateLimited, ExitUpstreamError},
		{"ollama down", fmt.Errorf("embedding batch 0: %w", embedding.ErrUpstream), ExitUpstreamError},
		{"corpus parse", &paper.ParseError{Path: "p.json", Index: 2, Field: "date", Err: errors.New("bad")}, ExitDataError},
		{"corpus missing", fmt.Errorf("%w: p.json", paper.ErrCorpusNotFound), ExitDataError},
		{"embeddings version", embedding.ErrUnsupportedVersion, ExitDataError},
		{"model missing", topicmodel.ErrNotFound, ExitDataError},
		{"metadata", &trend.MetadataError{Path: "p.json", Index: -1, Err: errors.New("bad")}, ExitDataError},
		{"stage wraps cause", &pipeline.StageError{Stage: pipeline.PhaseFetching, RunID: "r", Err: arxiv.ErrNetworkError}, ExitUpstreamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestPlural(t *testing.T) {
	if got := plural(1, "topic"); got != "1 topic" {
		t.Errorf("plural(1) = %q", got)
	}
	if got := plural(0, "topic"); got != "0 topics" {
		t.Errorf("plural(0) = %q", got)
	}
}
