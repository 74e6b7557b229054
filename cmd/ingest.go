package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/v1gneshkum4r21/face-clustering/internal/config"
	"github.com/v1gneshkum4r21/face-clustering/internal/embedding"
	"github.com/v1gneshkum4r21/face-clustering/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Cluster every image in a directory",
	Long: `Walk a directory (DATASET_DIR by default), compute a face embedding for
every .jpg, .jpeg and .png file and copy each image into the cluster of its
nearest face. Images without a face are skipped; a failing file is reported
and the run carries on.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
	ingestCmd.Flags().Int("limit", 0, "Limit number of images to process (0 = no limit)")
}

// ingestResult is the JSON output of the ingest command
type ingestResult struct {
	ingest.Summary
	DurationMs    int64  `json:"duration_ms"`
	DurationHuman string `json:"duration_human,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	limit := mustGetInt(cmd, "limit")

	cfg := config.Load()
	root := cfg.Clustering.DatasetDir
	if len(args) == 1 {
		root = args[0]
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, stopping after the current image...")
		cancel()
	}()

	eng, err := openEngine(cfg)
	if err != nil {
		return err
	}

	paths, err := ingest.CollectImages(root)
	if err != nil {
		return err
	}
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	if len(paths) == 0 {
		if jsonOutput {
			return printJSON(ingestResult{})
		}
		fmt.Printf("No images found in %s\n", root)
		return nil
	}

	provider := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.MaxImageSize)
	pipeline := ingest.NewPipeline(provider, eng.manager)

	if !jsonOutput {
		fmt.Printf("Found %d images in %s\n\n", len(paths), root)
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("Clustering faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	start := time.Now()
	summary, err := pipeline.ProcessFiles(ctx, paths, func(done, total int, out ingest.Outcome, err error) {
		if bar != nil {
			bar.Add(1)
		}
	})
	elapsed := time.Since(start)
	if err != nil && ctx.Err() == nil {
		return err
	}

	if jsonOutput {
		return printJSON(ingestResult{
			Summary:       summary,
			DurationMs:    elapsed.Milliseconds(),
			DurationHuman: formatDuration(elapsed),
		})
	}

	fmt.Println()
	if ctx.Err() != nil {
		fmt.Println("\nIngestion interrupted")
	}
	fmt.Printf("\nCompleted in %s: %d clustered, %d without face, %d failed\n",
		formatDuration(elapsed), summary.Clustered, summary.NoFace, summary.Failed)
	if len(summary.Clusters) > 0 {
		fmt.Printf("Clusters touched: %d\n", len(summary.Clusters))
	}
	for _, fe := range summary.Errors {
		fmt.Printf("  %s: %s\n", filepath.Base(fe.Path), fe.Err)
	}
	clusters, faces := eng.store.Len()
	fmt.Printf("Store now holds %d embeddings in %d clusters\n", faces, clusters)
	return nil
}

// formatDuration formats a duration as a human-readable string
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
