package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/extraction"
	"github.com/sells-group/docpipe/internal/llm"
	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/normalize"
	"github.com/sells-group/docpipe/internal/parser"
	"github.com/sells-group/docpipe/internal/redact"
	"github.com/sells-group/docpipe/internal/resilience"
	"github.com/sells-group/docpipe/internal/review"
	"github.com/sells-group/docpipe/internal/store"
	"github.com/sells-group/docpipe/pkg/anthropic"
)

// pipelineEnv bundles the wired components every command needs.
type pipelineEnv struct {
	Store        store.Store
	Schema       *model.FieldSchema
	Router       *parser.Router
	Reviews      *review.Service
	Orchestrator *extraction.Orchestrator
}

func (e *pipelineEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "docpipe.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initRouter registers the built-in parsers plus every configured external
// service and wires them into the configured fallback chains.
func initRouter() (*parser.Router, error) {
	chains := cfg.Parsers.Chains
	router := parser.NewRouter(parser.RouterConfig{
		Chains:         chains,
		AdapterTimeout: time.Duration(cfg.Parsers.AdapterTimeoutSecs) * time.Second,
	})

	router.Register(parser.NewPDFText())
	router.Register(parser.NewXLSX())

	for name, svc := range cfg.Services {
		if svc.BaseURL == "" {
			return nil, eris.Errorf("service %s: base_url is required", name)
		}
		var opts []parser.ServiceOption
		if svc.RatePerSec > 0 {
			opts = append(opts, parser.WithRateLimit(svc.RatePerSec, 1))
		}
		if svc.Retries > 0 {
			retry := resilience.DefaultRetryConfig()
			retry.MaxAttempts = svc.Retries
			opts = append(opts, parser.WithRetry(retry))
		}
		if svc.Confidence > 0 {
			opts = append(opts, parser.WithDefaultConfidence(svc.Confidence))
		}
		router.Register(parser.NewServiceAdapter(name, svc.BaseURL, svc.Key, svc.MimeTypes, opts...))
		zap.L().Debug("registered parser service",
			zap.String("parser", name),
			zap.String("base_url", svc.BaseURL),
		)
	}

	return router, nil
}

func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	schema, err := model.LoadFieldSchema(cfg.Schema.Path)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load field schema")
	}

	router, err := initRouter()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var redactor redact.Redactor = redact.Passthrough{}
	if cfg.Redact.BaseURL != "" {
		redactor = redact.NewService(cfg.Redact.BaseURL, cfg.Redact.Key)
		zap.L().Info("redaction service enabled")
	} else {
		zap.L().Warn("no redaction service configured, content stored as extracted")
	}

	reviews := review.NewService(st, schema, review.Config{
		ConfidenceThreshold:  cfg.Review.ConfidenceThreshold,
		FieldConfidenceFloor: cfg.Review.FieldConfidenceFloor,
		FallbackParser:       cfg.Review.FallbackParser,
		ClaimTimeout:         cfg.Review.ClaimTimeout(),
	})

	var supplement extraction.FieldExtractor
	if cfg.LLM.Enabled && cfg.LLM.Key != "" {
		client := anthropic.NewSDKClient(cfg.LLM.Key)
		supplement = llm.NewExtractor(client, cfg.LLM.Model, schema)
		zap.L().Info("llm field supplement enabled", zap.String("model", cfg.LLM.Model))
	}

	orch := extraction.NewOrchestrator(st, router, normalize.New(schema), redactor, reviews, supplement)

	return &pipelineEnv{
		Store:        st,
		Schema:       schema,
		Router:       router,
		Reviews:      reviews,
		Orchestrator: orch,
	}, nil
}
