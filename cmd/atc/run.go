package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maxonary/ai-trend-clustering/internal/cluster"
	"github.com/maxonary/ai-trend-clustering/internal/embedding"
	"github.com/maxonary/ai-trend-clustering/internal/pipeline"
)

var runRequest pipeline.Request

func init() {
	runCmd.Flags().StringVar(&runRequest.Category, "category", pipeline.DefaultCategory, "arXiv category to fetch")
	runCmd.Flags().IntVar(&runRequest.MaxResults, "max-results", pipeline.DefaultMaxResults, "Maximum number of papers")
	runCmd.Flags().IntVar(&runRequest.StartYear, "start-year", pipeline.DefaultStartYear, "Stop at papers submitted before this year")
	runCmd.Flags().IntVar(&runRequest.NgramMax, "ngram-max", cluster.DefaultNgramMax, "Longest n-gram used for topic terms")
	runCmd.Flags().IntVar(&runRequest.MinDF, "min-df", cluster.DefaultMinDF, "Minimum document frequency of a topic term")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, embed and cluster into a new run",
	Long: `Run the whole pipeline into a new timestamped directory under the runs root.

The run directory holds papers.json, embeddings.gob and topic_model/.
Interrupting the command stops it at the next stage boundary; the stage in
progress is allowed to finish and the run is left incomplete.

Examples:
  atc run --category cs.LG --max-results 800 --human
  atc serve    # explore the result`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	provider := newOllamaProvider()
	mustValidateOllama(ctx, provider)

	runner := newRunner(provider, progressPrinter())
	res, err := runner.Run(ctx, runRequest, printEvent)
	if err != nil {
		exitOnError(err)
	}

	if humanOutput {
		outputHuman("Run %s: %s, %s, %d outliers\n", res.Run.ID,
			plural(res.Documents, "paper"), plural(res.Topics, "topic"), res.Outliers)
		outputHuman("  %s\n", res.Run.Dir)
		return nil
	}
	return outputJSON(res)
}

// newRunner wires the pipeline to arXiv, Ollama and the run store.
func newRunner(provider embedding.Provider, progress embedding.ProgressFunc) *pipeline.Runner {
	return &pipeline.Runner{
		Store:     newStore(),
		Fetcher:   newArxivClient(),
		Embedder:  newGenerator(provider, progress),
		Clusterer: pipeline.DensityClusterer,
		Logger:    logger,
	}
}

// printEvent reports phase transitions on stderr in human mode.
func printEvent(e pipeline.Event) {
	if !humanOutput {
		return
	}
	switch e.State {
	case pipeline.StateStarted:
		fmt.Fprintf(os.Stderr, "%s...\n", e.Phase)
	case pipeline.StateFailed:
		fmt.Fprintf(os.Stderr, "%s failed: %s\n", e.Phase, e.Detail)
	case pipeline.StateFinished:
		if e.Phase != pipeline.PhaseDone {
			fmt.Fprintf(os.Stderr, "%s done (%s)\n", e.Phase, e.Detail)
		}
	}
}
