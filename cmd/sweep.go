package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepInterval time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Release stale review claims",
	Long:  "Returns claimed queue items whose reviewer went silent past the claim timeout to pending. Runs once by default; with --interval, keeps sweeping until interrupted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		released, err := env.Reviews.ReleaseStale(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("stale claims released", zap.Int64("released", released))

		if sweepInterval == 0 {
			return nil
		}

		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				released, err := env.Reviews.ReleaseStale(ctx)
				if err != nil {
					zap.L().Error("sweep failed", zap.Error(err))
					continue
				}
				if released > 0 {
					zap.L().Info("stale claims released", zap.Int64("released", released))
				}
			}
		}
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "sweep repeatedly at this interval (0 = run once)")
	rootCmd.AddCommand(sweepCmd)
}
