package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/maxonary/ai-trend-clustering/internal/paper"
	"github.com/maxonary/ai-trend-clustering/internal/runstore"
)

var runsAll bool

func init() {
	runsListCmd.Flags().BoolVar(&runsAll, "all", false, "Include incomplete runs")
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved runs",
}

// RunsResponse is the output of runs list.
type RunsResponse struct {
	Root string            `json:"root"`
	Runs []runstore.Status `json:"runs"`
}

// RunDetail is the output of runs show.
type RunDetail struct {
	runstore.Status
	Documents  int    `json:"documents"`
	Topics     int    `json:"topics"`
	Outliers   int    `json:"outliers"`
	Dimensions int    `json:"dimensions"`
	CorpusHash string `json:"corpus_sha256,omitempty"`
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newStore()
		statuses, err := store.Scan()
		if err != nil {
			exitOnError(err)
		}

		runs := make([]runstore.Status, 0, len(statuses))
		for _, s := range statuses {
			if s.Complete || runsAll {
				runs = append(runs, s)
			}
		}

		if !humanOutput {
			return outputJSON(RunsResponse{Root: store.Root, Runs: runs})
		}
		if len(runs) == 0 {
			outputHuman("No runs in %s\n", store.Root)
			return nil
		}
		for _, s := range runs {
			line := s.ID
			if !s.Complete {
				line += "  (incomplete: missing " + strings.Join(s.Missing, ", ") + ")"
			}
			outputHuman("%s\n", line)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run's artifacts and topic counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newStore()
		h, err := store.Get(args[0])
		if err != nil {
			exitOnError(err)
		}
		run, err := store.Open(h)
		if err != nil {
			exitOnError(err)
		}

		d := RunDetail{
			Status:     runstore.Status{Handle: h, Complete: true},
			Documents:  run.Model.DocumentCount(),
			Topics:     run.Model.TopicCount(),
			Dimensions: run.Embeddings.Dimensions,
		}
		if hash, err := paper.Identity(h.CorpusPath()); err == nil {
			d.CorpusHash = hash
		} else {
			logger.Warn("could not hash corpus", "run", h.ID, "error", err)
		}
		for _, id := range run.Model.Assignments {
			if id < 0 {
				d.Outliers++
			}
		}

		if !humanOutput {
			return outputJSON(d)
		}
		outputHuman("Run:        %s\n", h.ID)
		outputHuman("Directory:  %s\n", h.Dir)
		outputHuman("Category:   %s\n", h.Category)
		outputHuman("Created:    %s\n", h.CreatedAt.Format("2006-01-02 15:04:05"))
		outputHuman("Papers:     %d (%d outliers)\n", d.Documents, d.Outliers)
		outputHuman("Topics:     %d\n", d.Topics)
		outputHuman("Embeddings: %s, %d dims\n", run.Embeddings.Model, d.Dimensions)
		if d.CorpusHash != "" {
			outputHuman("Corpus:     sha256 %s\n", d.CorpusHash[:12])
		}
		for _, t := range run.Model.RealTopics() {
			outputHuman("  %3d  %4d  %s\n", t.ID, t.Count, run.Model.Label(t.ID, 5))
		}
		return nil
	},
}
