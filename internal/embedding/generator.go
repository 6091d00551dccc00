package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/maxonary/ai-trend-clustering/internal/paper"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxTextLength is the maximum text length in bytes to embed. Longer
	// abstracts are cut at the last rune boundary before this limit.
	MaxTextLength = 8000

	// DefaultConcurrency bounds in-flight requests to the provider.
	DefaultConcurrency = 4

	// DefaultBatchSize is the number of texts per request for batch providers.
	DefaultBatchSize = 32
)

// ProgressFunc receives progress updates during generation.
type ProgressFunc func(done, total int)

// Generator embeds a corpus with bounded concurrency.
type Generator struct {
	provider    Provider
	concurrency int
	batchSize   int
	progress    ProgressFunc
	logger      *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithConcurrency bounds the number of concurrent provider calls.
func WithConcurrency(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithBatchSize sets the batch size used with a BatchProvider.
func WithBatchSize(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// WithProgress sets a progress callback. It may be called from several
// goroutines.
func WithProgress(fn ProgressFunc) GeneratorOption {
	return func(g *Generator) {
		g.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = l
	}
}

// NewGenerator creates a generator for the given provider.
func NewGenerator(provider Provider, opts ...GeneratorOption) *Generator {
	g := &Generator{
		provider:    provider,
		concurrency: DefaultConcurrency,
		batchSize:   DefaultBatchSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Provider returns the underlying provider.
func (g *Generator) Provider() Provider {
	return g.provider
}

// truncate limits text to MaxTextLength bytes without splitting a rune.
func truncate(text string) string {
	if len(text) <= MaxTextLength {
		return text
	}
	cut := MaxTextLength
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// Generate embeds the abstract of every document. Row i of the result
// corresponds to docs[i].
func (g *Generator) Generate(ctx context.Context, docs []paper.Document) (*Matrix, error) {
	m := NewMatrix(g.provider.ModelName(), g.provider.Dimensions())
	if len(docs) == 0 {
		return m, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = truncate(d.Abstract)
	}

	rows := make([][]float32, len(docs))
	var done atomic.Int64
	report := func(n int) {
		total := done.Add(int64(n))
		if g.progress != nil {
			g.progress(int(total), len(docs))
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	if bp, ok := g.provider.(BatchProvider); ok {
		for lo := 0; lo < len(texts); lo += g.batchSize {
			hi := min(lo+g.batchSize, len(texts))
			eg.Go(func() error {
				embs, err := bp.EmbedBatch(egCtx, texts[lo:hi])
				if err != nil {
					return fmt.Errorf("embedding documents %d-%d: %w", lo, hi-1, err)
				}
				if len(embs) != hi-lo {
					return fmt.Errorf("embedding documents %d-%d: got %d vectors", lo, hi-1, len(embs))
				}
				for j, e := range embs {
					rows[lo+j] = e.Vector
				}
				report(hi - lo)
				return nil
			})
		}
	} else {
		for i, text := range texts {
			eg.Go(func() error {
				e, err := g.provider.Embed(egCtx, text)
				if err != nil {
					return fmt.Errorf("embedding document %d: %w", i, err)
				}
				rows[i] = e.Vector
				report(1)
				return nil
			})
		}
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i, row := range rows {
		if err := m.Append(row); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}

	g.logger.Info("generated embeddings", "model", m.Model, "rows", m.Len(), "dimensions", m.Dimensions)
	return m, nil
}

// EmbedFile reads the corpus at inPath, embeds it, and writes the matrix to
// outPath.
func (g *Generator) EmbedFile(ctx context.Context, inPath, outPath string) (*Matrix, error) {
	docs, err := paper.ReadCorpus(inPath)
	if err != nil {
		return nil, err
	}

	m, err := g.Generate(ctx, docs)
	if err != nil {
		return nil, err
	}

	if err := m.Save(outPath); err != nil {
		return nil, err
	}
	return m, nil
}
