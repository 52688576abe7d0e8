package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/store"
)

var (
	ingestTenant     string
	ingestSource     string
	ingestConcurrent int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest documents and run extraction",
	Long:  "Registers each file (skipping content already seen for the tenant), runs the parser chain, and queues low-confidence results for review.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := ingestConcurrent
		if concurrency == 0 {
			concurrency = cfg.Ingest.MaxConcurrent
		}

		var ingested, skipped, failed atomic.Int64

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, path := range args {
			g.Go(func() error {
				switch err := ingestOne(gctx, env, path); {
				case err == nil:
					ingested.Add(1)
				case errors.Is(err, store.ErrDuplicate):
					skipped.Add(1)
					zap.L().Info("document already ingested", zap.String("file", path))
				default:
					failed.Add(1)
					zap.L().Error("ingest failed", zap.String("file", path), zap.Error(err))
					// A transient parser failure on one file never aborts the
					// batch; context cancellation does.
					if gctx.Err() != nil {
						return gctx.Err()
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "ingest batch")
		}

		zap.L().Info("ingest complete",
			zap.Int64("ingested", ingested.Load()),
			zap.Int64("skipped", skipped.Load()),
			zap.Int64("failed", failed.Load()),
		)
		if failed.Load() > 0 {
			return eris.Errorf("%d of %d files failed", failed.Load(), len(args))
		}
		return nil
	},
}

// ingestOne registers the file and runs extraction. A duplicate content hash
// for the tenant returns store.ErrDuplicate without a new extraction.
func ingestOne(ctx context.Context, env *pipelineEnv, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "read file")
	}

	sum := sha256.Sum256(content)
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	doc, err := env.Store.CreateDocument(ctx, &model.Document{
		TenantID:    ingestTenant,
		FileName:    filepath.Base(path),
		ContentHash: hex.EncodeToString(sum[:]),
		MimeType:    mimeType,
		SizeBytes:   int64(len(content)),
		SourceType:  model.SourceType(ingestSource),
		Status:      model.DocumentPending,
	})
	if err != nil {
		return err
	}

	ext, err := env.Orchestrator.Process(ctx, ingestTenant, doc, content)
	if err != nil {
		return err
	}

	zap.L().Info("document ingested",
		zap.String("file", path),
		zap.String("document_id", doc.ID),
		zap.String("extraction_id", ext.ID),
		zap.Int("version", ext.Version),
		zap.Float64("confidence", ext.Confidence),
	)
	return nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTenant, "tenant", "", "tenant ID (required)")
	ingestCmd.Flags().StringVar(&ingestSource, "source", string(model.SourceUpload), "source type (upload, sync, email)")
	ingestCmd.Flags().IntVar(&ingestConcurrent, "concurrency", 0, "max concurrent files (default from config)")
	_ = ingestCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(ingestCmd)
}
