package viz

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/maxonary/ai-trend-clustering/internal/projection"
	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
	"github.com/maxonary/ai-trend-clustering/internal/trend"
)

// Render3D loads the model in modelDir, projects it, and writes the topic
// map page to outHTML.
func Render3D(modelDir, outHTML string, p *projection.Projector, neighbors int, minDist float64) (*projection.Projection, error) {
	model, err := topicmodel.Load(modelDir)
	if err != nil {
		return nil, err
	}
	proj, err := p.Project(model, neighbors, minDist)
	if err != nil {
		return nil, err
	}
	page, err := TopicMapHTML(proj, DefaultOptions())
	if err != nil {
		return nil, err
	}
	if err := WriteHTML(outHTML, page); err != nil {
		return nil, err
	}
	return proj, nil
}

// RenderTrend loads the model in modelDir, aggregates the corpus at
// metadataPath into bins windows, and writes the trend page to outHTML.
func RenderTrend(metadataPath, modelDir, outHTML string, a *trend.Aggregator, bins int) (*trend.Trend, error) {
	model, err := topicmodel.Load(modelDir)
	if err != nil {
		return nil, err
	}
	t, err := a.Compute(model, metadataPath, bins)
	if err != nil {
		return nil, err
	}
	page, err := TrendHTML(t, DefaultOptions())
	if err != nil {
		return nil, err
	}
	if err := WriteHTML(outHTML, page); err != nil {
		return nil, err
	}
	return t, nil
}

// WriteHTML writes page to path through a temp file and rename.
func WriteHTML(path, page string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(page), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
