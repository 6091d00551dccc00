package cluster

import (
	"context"
	"fmt"

	"github.com/maxonary/ai-trend-clustering/internal/embedding"
	"github.com/maxonary/ai-trend-clustering/internal/paper"
	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
)

// FitFiles reads the corpus and embeddings artifacts, fits a model with c,
// and saves it to outDir.
func FitFiles(ctx context.Context, c Clusterer, metadataPath, embeddingsPath, outDir string) (*topicmodel.Model, error) {
	docs, err := paper.ReadCorpus(metadataPath)
	if err != nil {
		return nil, err
	}

	m, err := embedding.Load(embeddingsPath)
	if err != nil {
		return nil, err
	}
	if m.Len() != len(docs) {
		return nil, fmt.Errorf("embeddings have %d rows but corpus has %d documents", m.Len(), len(docs))
	}

	model, err := c.FitTopics(ctx, paper.Texts(docs), m.Rows)
	if err != nil {
		return nil, fmt.Errorf("fitting topics: %w", err)
	}

	if err := model.Save(outDir); err != nil {
		return nil, fmt.Errorf("saving topic model: %w", err)
	}
	return model, nil
}
