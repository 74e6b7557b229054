package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/v1gneshkum4r21/face-clustering/internal/config"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect and edit clusters",
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all clusters",
	Args:  cobra.NoArgs,
	RunE:  runClusterList,
}

var clusterShowCmd = &cobra.Command{
	Use:   "show [cluster-id]",
	Short: "List the images of a cluster",
	Args:  cobra.ExactArgs(1),
	RunE:  runClusterShow,
}

var clusterRenameCmd = &cobra.Command{
	Use:   "rename [cluster-id] [new-name]",
	Short: "Rename a cluster",
	Long: `Rename a cluster directory and its embeddings. The new name has its
diacritics stripped and whitespace replaced by underscores.`,
	Args: cobra.ExactArgs(2),
	RunE: runClusterRename,
}

var clusterDeleteCmd = &cobra.Command{
	Use:   "delete [cluster-id]",
	Short: "Delete a cluster with all its images",
	Args:  cobra.ExactArgs(1),
	RunE:  runClusterDelete,
}

var clusterMergeCmd = &cobra.Command{
	Use:   "merge [source-id] [target-id]",
	Short: "Move every image of source into target",
	Args:  cobra.ExactArgs(2),
	RunE:  runClusterMerge,
}

var clusterMoveCmd = &cobra.Command{
	Use:   "move [source-id] [image] [target-id]",
	Short: "Move one image to another cluster",
	Args:  cobra.ExactArgs(3),
	RunE:  runClusterMove,
}

var clusterCompareCmd = &cobra.Command{
	Use:   "compare [cluster-a] [cluster-b]",
	Short: "Score how alike two clusters are",
	Args:  cobra.ExactArgs(2),
	RunE:  runClusterCompare,
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterCmd.AddCommand(clusterListCmd, clusterShowCmd, clusterRenameCmd, clusterDeleteCmd,
		clusterMergeCmd, clusterMoveCmd, clusterCompareCmd)

	clusterListCmd.Flags().Bool("json", false, "Output as JSON")
	clusterShowCmd.Flags().Bool("json", false, "Output as JSON")
	clusterMergeCmd.Flags().Bool("json", false, "Output as JSON")
	clusterCompareCmd.Flags().Bool("json", false, "Output as JSON")
	clusterDeleteCmd.Flags().Bool("yes", false, "Do not ask for confirmation")
}

func runClusterList(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(config.Load())
	if err != nil {
		return err
	}
	clusters, err := eng.manager.Clusters()
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return printJSON(clusters)
	}
	if len(clusters) == 0 {
		fmt.Println("No clusters found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tIMAGES\tFACES")
	fmt.Fprintln(w, "--\t------\t-----")
	for _, c := range clusters {
		fmt.Fprintf(w, "%s\t%d\t%d\n", c.ID, c.ImageCount, c.FaceCount)
	}
	w.Flush()

	stats, err := eng.layout.Stats()
	if err == nil {
		fmt.Printf("\nTotal: %d clusters, %d images, %s\n", len(clusters), stats.Images, stats.SizeHuman)
	}
	return nil
}

func runClusterShow(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(config.Load())
	if err != nil {
		return err
	}
	detail, err := eng.manager.Cluster(args[0])
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return printJSON(detail)
	}
	fmt.Printf("Cluster: %s\n", detail.ID)
	fmt.Printf("Faces:   %d\n", detail.FaceCount)
	fmt.Printf("Images:  %d\n", len(detail.Images))
	for _, name := range detail.Images {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func runClusterRename(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(config.Load())
	if err != nil {
		return err
	}
	newID, err := eng.manager.RenameCluster(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Renamed %s to %s\n", args[0], newID)
	return nil
}

func runClusterDelete(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(config.Load())
	if err != nil {
		return err
	}
	detail, err := eng.manager.Cluster(args[0])
	if err != nil {
		return err
	}
	if !mustGetBool(cmd, "yes") && !confirm(fmt.Sprintf("Delete %s with %d images?", detail.ID, len(detail.Images))) {
		fmt.Println("Aborted.")
		return nil
	}
	if err := eng.manager.DeleteCluster(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runClusterMerge(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(config.Load())
	if err != nil {
		return err
	}
	result, err := eng.manager.Merge(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return printJSON(result)
	}

	fmt.Printf("Moved %d images from %s to %s\n", len(result.Succeeded), result.Source, result.Target)
	for _, f := range result.Failed {
		fmt.Printf("  %s: %s\n", f.Image, f.Reason)
	}
	if result.SourceDeleted {
		fmt.Printf("Removed %s\n", result.Source)
	} else {
		fmt.Printf("Kept %s because some images could not be moved\n", result.Source)
	}
	return nil
}

func runClusterMove(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(config.Load())
	if err != nil {
		return err
	}
	result, err := eng.manager.MoveImage(context.Background(), args[0], args[2], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Moved %s from %s to %s\n", result.Image, result.From, result.To)
	if !result.EmbeddingMoved {
		fmt.Println("Note: no stored embedding referenced this image")
	}
	return nil
}

func runClusterCompare(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(config.Load())
	if err != nil {
		return err
	}
	sim, err := eng.manager.CompareClusters(args[0], args[1])
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return printJSON(sim)
	}
	fmt.Printf("%s (%d faces) vs %s (%d faces)\n", sim.ClusterA, sim.SizeA, sim.ClusterB, sim.SizeB)
	fmt.Printf("Matching pairs: %d\n", sim.MatchingCount)
	fmt.Printf("Score:          %.1f%%\n", sim.Score*100)
	return nil
}

// confirm asks a yes/no question on stdin
func confirm(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil {
		return false
	}
	return answer == "y" || answer == "Y" || answer == "yes"
}
