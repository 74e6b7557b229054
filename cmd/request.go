package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/v1gneshkum4r21/face-clustering/internal/config"
	"github.com/v1gneshkum4r21/face-clustering/internal/constants"
	"github.com/v1gneshkum4r21/face-clustering/internal/database"
	"github.com/v1gneshkum4r21/face-clustering/internal/workflow"
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Review photo requests",
}

var requestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List photo requests",
	Args:  cobra.NoArgs,
	RunE:  runRequestList,
}

var requestApproveCmd = &cobra.Command{
	Use:   "approve [request-id]",
	Short: "Share the matched cluster and email the requester",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequestApprove,
}

var requestRejectCmd = &cobra.Command{
	Use:   "reject [request-id]",
	Short: "Reject a pending request",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequestReject,
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.AddCommand(requestListCmd, requestApproveCmd, requestRejectCmd)

	requestListCmd.Flags().String("status", "", "Filter by status: pending, approved, rejected")
	requestListCmd.Flags().Int("limit", 100, "Maximum number of requests to show")
	requestListCmd.Flags().Bool("json", false, "Output as JSON")
}

// newReviewService opens everything approving a request needs
func newReviewService(ctx context.Context, cfg *config.Config) (*workflow.Service, error) {
	eng, err := openEngine(cfg)
	if err != nil {
		return nil, err
	}
	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	dispatcher, err := newDispatcher(ctx, cfg, eng.manager)
	if err != nil {
		return nil, err
	}
	// no uploads are staged from the CLI
	return workflow.NewService(nil, ledger, dispatcher, ""), nil
}

func runRequestList(cmd *cobra.Command, args []string) error {
	status := database.RequestStatus(mustGetString(cmd, "status"))
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q (supported: pending, approved, rejected)", status)
	}
	limit := min(mustGetInt(cmd, "limit"), constants.DefaultRequestListLimit)

	ctx := context.Background()
	cfg := config.Load()
	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.CloseBackend()

	requests, err := ledger.ListRequests(ctx, status, limit)
	if err != nil {
		return err
	}
	stats, err := ledger.RequestStats(ctx)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(map[string]any{"requests": requests, "stats": stats})
	}
	if len(requests) == 0 {
		fmt.Println("No requests found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tCLUSTER\tSTATUS\tSUBMITTED")
	fmt.Fprintln(w, "--\t-----\t-------\t------\t---------")
	for _, r := range requests {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Email, r.ClusterID, r.Status, humanize.Time(r.SubmittedAt))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d (%d pending, %d approved, %d rejected)\n",
		stats.Total, stats.Pending, stats.Approved, stats.Rejected)
	return nil
}

func runRequestApprove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := newReviewService(ctx, config.Load())
	if err != nil {
		return err
	}
	defer database.CloseBackend()

	res, err := svc.Approve(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Approved %s\n", args[0])
	fmt.Printf("Share link: %s\n", res.Link)
	return nil
}

func runRequestReject(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()
	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.CloseBackend()

	svc := workflow.NewService(nil, ledger, nil, "")
	if err := svc.Reject(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Rejected %s\n", args[0])
	return nil
}
