package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/v1gneshkum4r21/face-clustering/internal/config"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Find cluster pairs that probably show the same person",
	Long: `Compare every pair of clusters and list those where the share of
matching face pairs exceeds the threshold. Nothing is modified; use
"cluster merge" to act on the suggestions.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Float64("threshold", 0, "Minimum similarity score (0-1, default SIMILARITY_THRESHOLD)")
	analyzeCmd.Flags().Bool("json", false, "Output as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	threshold := cfg.Clustering.SimilarityThreshold
	if cmd.Flags().Changed("threshold") {
		threshold = mustGetFloat64(cmd, "threshold")
	}
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %g", threshold)
	}

	eng, err := openEngine(cfg)
	if err != nil {
		return err
	}
	pairs, err := eng.manager.FindSimilarPairs(context.Background(), threshold)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(map[string]any{"threshold": threshold, "pairs": pairs})
	}
	if len(pairs) == 0 {
		fmt.Printf("No cluster pairs above %.0f%% similarity\n", threshold*100)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLUSTER A\tCLUSTER B\tSCORE\tMATCHES")
	fmt.Fprintln(w, "---------\t---------\t-----\t-------")
	for _, p := range pairs {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%d\n", p.ClusterA, p.ClusterB, p.Score*100, p.MatchingCount)
	}
	w.Flush()

	fmt.Printf("\nFound %d similar pairs (threshold %.0f%%)\n", len(pairs), threshold*100)
	return nil
}
