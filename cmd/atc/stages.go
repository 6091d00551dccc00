package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxonary/ai-trend-clustering/internal/arxiv"
	"github.com/maxonary/ai-trend-clustering/internal/cluster"
	"github.com/maxonary/ai-trend-clustering/internal/pipeline"
)

var (
	ingestCategory   string
	ingestMaxResults int
	ingestStartYear  int
	ingestOut        string

	embedIn  string
	embedOut string

	clusterMetadata     string
	clusterEmbeddings   string
	clusterOut          string
	clusterNgramMax     int
	clusterMinDF        int
	clusterMinTopicSize int
)

func init() {
	ingestCmd.Flags().StringVar(&ingestCategory, "category", pipeline.DefaultCategory, "arXiv category to fetch (e.g. cs.CL)")
	ingestCmd.Flags().IntVar(&ingestMaxResults, "max-results", pipeline.DefaultMaxResults, "Maximum number of papers")
	ingestCmd.Flags().IntVar(&ingestStartYear, "start-year", pipeline.DefaultStartYear, "Stop at papers submitted before this year")
	ingestCmd.Flags().StringVarP(&ingestOut, "out", "o", "papers.json", "Output corpus file")

	embedCmd.Flags().StringVar(&embedIn, "in", "papers.json", "Input corpus file")
	embedCmd.Flags().StringVarP(&embedOut, "out", "o", "embeddings.gob", "Output embeddings file")

	clusterCmd.Flags().StringVar(&clusterMetadata, "metadata", "papers.json", "Corpus file")
	clusterCmd.Flags().StringVar(&clusterEmbeddings, "embeddings", "embeddings.gob", "Embeddings file")
	clusterCmd.Flags().StringVarP(&clusterOut, "out", "o", "topic_model", "Output model directory")
	clusterCmd.Flags().IntVar(&clusterNgramMax, "ngram-max", cluster.DefaultNgramMax, "Longest n-gram used for topic terms")
	clusterCmd.Flags().IntVar(&clusterMinDF, "min-df", cluster.DefaultMinDF, "Minimum document frequency of a topic term")
	clusterCmd.Flags().IntVar(&clusterMinTopicSize, "min-topic-size", cluster.DefaultMinTopicSize, "Smallest cluster kept as a topic")

	rootCmd.AddCommand(ingestCmd, embedCmd, clusterCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch paper abstracts from arXiv",
	Long: `Fetch the newest papers of an arXiv category and write them as a JSON corpus.

Fetching stops at --max-results papers or at the first paper submitted
before --start-year. If arXiv fails part-way, the papers collected so far
are still written and the command exits with code 4.

Examples:
  atc ingest --category cs.LG --max-results 1000 --out papers.json`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	q := arxiv.Query{Category: ingestCategory, MaxResults: ingestMaxResults, StartYear: ingestStartYear}
	docs, err := newArxivClient().Ingest(ctx, q, ingestOut)
	if err != nil && docs == nil {
		exitOnError(err)
	}

	resp := StageResponse{
		Status:          "ok",
		Output:          ingestOut,
		Documents:       len(docs),
		DurationSeconds: time.Since(start).Seconds(),
	}
	if err != nil {
		resp.Status = "partial"
		resp.Warning = err.Error()
	}
	outputStage(resp, "Fetched "+plural(len(docs), "paper"))
	if err != nil {
		os.Exit(exitCodeFor(err))
	}
	return nil
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed abstracts with Ollama",
	Long: `Embed every abstract of a corpus with the configured Ollama model.

Requires Ollama to be running with the embedding model pulled:
  ollama pull all-minilm:l6-v2

Rows of the output keep the order of the corpus.`,
	Args: cobra.NoArgs,
	RunE: runEmbed,
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	provider := newOllamaProvider()
	mustValidateOllama(ctx, provider)

	start := time.Now()
	m, err := newGenerator(provider, progressPrinter()).EmbedFile(ctx, embedIn, embedOut)
	if err != nil {
		exitOnError(err)
	}

	outputStage(StageResponse{
		Status:          "ok",
		Output:          embedOut,
		Documents:       m.Len(),
		Dimensions:      m.Dimensions,
		DurationSeconds: time.Since(start).Seconds(),
	}, "Embedded "+plural(m.Len(), "abstract"))
	return nil
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Group embedded abstracts into topics",
	Long: `Cluster the embeddings of a corpus into topics and rank each topic's terms.

Papers that fit no dense group land in the outlier topic (-1), which is
not counted as a topic.`,
	Args: cobra.NoArgs,
	RunE: runCluster,
}

func runCluster(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c := cluster.NewDensity(clusterNgramMax, clusterMinDF)
	c.MinTopicSize = clusterMinTopicSize
	c.Logger = logger

	start := time.Now()
	model, err := cluster.FitFiles(ctx, c, clusterMetadata, clusterEmbeddings, clusterOut)
	if err != nil {
		exitOnError(err)
	}

	outputStage(StageResponse{
		Status:          "ok",
		Output:          clusterOut,
		Documents:       model.DocumentCount(),
		Topics:          model.TopicCount(),
		DurationSeconds: time.Since(start).Seconds(),
	}, "Found "+plural(model.TopicCount(), "topic"))
	return nil
}
