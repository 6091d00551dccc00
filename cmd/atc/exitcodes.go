package main

import (
	"errors"

	"github.com/maxonary/ai-trend-clustering/internal/arxiv"
	"github.com/maxonary/ai-trend-clustering/internal/config"
	"github.com/maxonary/ai-trend-clustering/internal/embedding"
	"github.com/maxonary/ai-trend-clustering/internal/paper"
	"github.com/maxonary/ai-trend-clustering/internal/runstore"
	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
	"github.com/maxonary/ai-trend-clustering/internal/trend"
)

// Exit codes
const (
	ExitSuccess       = 0 // Success
	ExitError         = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError   = 2 // Configuration error (unreadable or invalid config)
	ExitDataError     = 3 // Data error (malformed corpus, embeddings or model)
	ExitUpstreamError = 4 // arXiv or Ollama request failed
	ExitModelNotFound = 5 // Embedding model not pulled in Ollama
	ExitRunNotFound   = 6 // Run directory missing or incomplete
)

// exitCodeFor classifies err into an exit code.
func exitCodeFor(err error) int {
	var (
		parseErr *paper.ParseError
		apiErr   *arxiv.APIError
	)
	switch {
	case errors.Is(err, config.ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, runstore.ErrRunNotFound), errors.Is(err, runstore.ErrRunIncomplete), errors.Is(err, runstore.ErrInvalidID):
		return ExitRunNotFound
	case errors.As(err, &apiErr),
		errors.Is(err, arxiv.ErrNetworkError),
		errors.Is(err, arxiv.ErrRateLimited),
		errors.Is(err, arxiv.ErrInvalidResponse),
		errors.Is(err, embedding.ErrUpstream):
		return ExitUpstreamError
	case errors.As(err, &parseErr),
		trend.IsMetadataError(err),
		errors.Is(err, paper.ErrCorpusNotFound),
		errors.Is(err, embedding.ErrNotFound),
		errors.Is(err, embedding.ErrUnsupportedVersion),
		errors.Is(err, embedding.ErrDimensionMismatch),
		errors.Is(err, topicmodel.ErrNotFound),
		errors.Is(err, topicmodel.ErrUnsupportedVersion),
		errors.Is(err, topicmodel.ErrInvalidModel):
		return ExitDataError
	default:
		return ExitError
	}
}
