package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/maxonary/ai-trend-clustering/internal/projection"
	"github.com/maxonary/ai-trend-clustering/internal/trend"
	"github.com/maxonary/ai-trend-clustering/internal/umap"
	"github.com/maxonary/ai-trend-clustering/internal/viz"
)

var (
	render3DModel     string
	render3DOut       string
	render3DNeighbors int
	render3DMinDist   float64
	render3DSeed      int64
	render3DHover     int

	renderTrendMetadata string
	renderTrendModel    string
	renderTrendOut      string
	renderTrendBins     int
)

func init() {
	render3DCmd.Flags().StringVar(&render3DModel, "model", "topic_model", "Topic model directory")
	render3DCmd.Flags().StringVarP(&render3DOut, "out", "o", "topics_3d.html", "Output HTML file")
	render3DCmd.Flags().IntVar(&render3DNeighbors, "neighbors", umap.DefaultNeighbors, "UMAP neighbourhood size (>= 2)")
	render3DCmd.Flags().Float64Var(&render3DMinDist, "min-dist", umap.DefaultMinDist, "UMAP minimum distance, 0 to 1")
	render3DCmd.Flags().Int64Var(&render3DSeed, "seed", umap.DefaultSeed, "Random seed of the layout")
	render3DCmd.Flags().IntVar(&render3DHover, "hover-terms", projection.DefaultHoverTerms, "Top terms listed when hovering a topic")

	renderTrendCmd.Flags().StringVar(&renderTrendMetadata, "metadata", "papers.json", "Corpus file the model was fitted on")
	renderTrendCmd.Flags().StringVar(&renderTrendModel, "model", "topic_model", "Topic model directory")
	renderTrendCmd.Flags().StringVarP(&renderTrendOut, "out", "o", "topics_over_time.html", "Output HTML file")
	renderTrendCmd.Flags().IntVar(&renderTrendBins, "bins", trend.DefaultBins, "Number of time windows (1-1000)")

	rootCmd.AddCommand(render3DCmd, renderTrendCmd)
}

var render3DCmd = &cobra.Command{
	Use:   "render-3d",
	Short: "Render the 3-D topic map as HTML",
	Long: `Project topic centroids into three dimensions and write an interactive
Plotly scatter plot. Bubble size follows topic size; hovering shows the
top terms of a topic.`,
	Args: cobra.NoArgs,
	RunE: runRender3D,
}

func runRender3D(cmd *cobra.Command, args []string) error {
	start := time.Now()
	p := projection.NewProjector(projection.UMAPReducer{Seed: render3DSeed}, 1,
		projection.WithHoverTerms(render3DHover),
		projection.WithLogger(logger),
	)
	proj, err := viz.Render3D(render3DModel, render3DOut, p, render3DNeighbors, render3DMinDist)
	if err != nil {
		exitOnError(err)
	}

	outputStage(StageResponse{
		Status:          "ok",
		Output:          render3DOut,
		Topics:          len(proj.Points),
		DurationSeconds: time.Since(start).Seconds(),
	}, "Mapped "+plural(len(proj.Points), "topic"))
	return nil
}

var renderTrendCmd = &cobra.Command{
	Use:   "render-trend",
	Short: "Render topic frequencies over time as HTML",
	Long: `Count each topic's papers in equal-width time windows and write an
interactive line chart. Outlier papers are not counted.`,
	Args: cobra.NoArgs,
	RunE: runRenderTrend,
}

func runRenderTrend(cmd *cobra.Command, args []string) error {
	start := time.Now()
	a := trend.NewAggregator(1, logger)
	t, err := viz.RenderTrend(renderTrendMetadata, renderTrendModel, renderTrendOut, a, renderTrendBins)
	if err != nil {
		exitOnError(err)
	}

	outputStage(StageResponse{
		Status:          "ok",
		Output:          renderTrendOut,
		Topics:          len(t.Topics),
		DurationSeconds: time.Since(start).Seconds(),
	}, "Charted "+plural(len(t.Topics), "topic"))
	return nil
}
