package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/store"
)

var (
	queueTenant string
	queueStatus string
	queueLimit  int
	queueUser   string
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and work the review queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List review queue items by priority",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := env.Reviews.List(ctx, queueTenant, store.QueueFilter{
			Status: model.QueueStatus(queueStatus),
			Limit:  queueLimit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tPRIORITY\tSTATUS\tCLAIMED BY\tAGE\tDOCUMENT")
		for _, item := range items {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
				item.ID,
				item.Priority,
				item.Status,
				item.ClaimedBy,
				time.Since(item.CreatedAt).Round(time.Minute),
				item.DocumentID,
			)
		}
		return w.Flush()
	},
}

var queueClaimCmd = &cobra.Command{
	Use:   "claim <item-id>",
	Short: "Claim a pending item for review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		item, err := env.Reviews.Claim(ctx, queueTenant, args[0], queueUser)
		if err != nil {
			return err
		}
		zap.L().Info("item claimed",
			zap.String("item_id", item.ID),
			zap.String("claimed_by", item.ClaimedBy),
			zap.Int("priority", item.Priority),
		)
		return nil
	},
}

var queueCompleteCmd = &cobra.Command{
	Use:   "complete <item-id>",
	Short: "Complete a claimed item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		item, err := env.Reviews.Complete(ctx, queueTenant, args[0], queueUser)
		if err != nil {
			return err
		}
		zap.L().Info("item completed", zap.String("item_id", item.ID))
		return nil
	},
}

var queueSkipCmd = &cobra.Command{
	Use:   "skip <item-id>",
	Short: "Skip an item without review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		item, err := env.Reviews.Skip(ctx, queueTenant, args[0], queueUser)
		if err != nil {
			return err
		}
		zap.L().Info("item skipped", zap.String("item_id", item.ID))
		return nil
	},
}

func init() {
	queueCmd.PersistentFlags().StringVar(&queueTenant, "tenant", "", "tenant ID (required)")
	_ = queueCmd.MarkPersistentFlagRequired("tenant")

	queueListCmd.Flags().StringVar(&queueStatus, "status", "", "filter by status (pending, claimed, completed, skipped)")
	queueListCmd.Flags().IntVar(&queueLimit, "limit", 50, "max items to list")

	for _, c := range []*cobra.Command{queueClaimCmd, queueCompleteCmd} {
		c.Flags().StringVar(&queueUser, "user", "", "reviewer user ID (required)")
		_ = c.MarkFlagRequired("user")
	}
	// Skipping a pending item needs no claimant.
	queueSkipCmd.Flags().StringVar(&queueUser, "user", "", "reviewer user ID (required only for claimed items)")

	queueCmd.AddCommand(queueListCmd, queueClaimCmd, queueCompleteCmd, queueSkipCmd)
	rootCmd.AddCommand(queueCmd)
}
