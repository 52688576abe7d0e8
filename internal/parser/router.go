package parser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/resilience"
)

// RouterConfig controls adapter selection and time bounds.
type RouterConfig struct {
	// Chains maps a mime type to the ordered list of adapter names to try.
	// Order encodes the quality/cost preference: best structural parser
	// first, generic fallback last.
	Chains map[string][]string

	// AdapterTimeout bounds a single adapter attempt. A hung adapter is cut
	// off and the chain advances. Default: 60s.
	AdapterTimeout time.Duration
}

// Router sequences adapters for a document's mime type, falling through the
// chain on adapter failure. Exhausting the chain is terminal for the attempt.
type Router struct {
	mu       sync.RWMutex
	adapters map[string]Parser
	breakers map[string]*resilience.Breaker
	cfg      RouterConfig
}

// NewRouter creates a Router with the given config and no adapters.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = 60 * time.Second
	}
	return &Router{
		adapters: make(map[string]Parser),
		breakers: make(map[string]*resilience.Breaker),
		cfg:      cfg,
	}
}

// Register adds an adapter to the router's registry.
func (r *Router) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[p.Name()] = p
	r.breakers[p.Name()] = resilience.NewBreaker(3, 30*time.Second, 60*time.Second)
}

// Adapters returns the registered adapter names.
func (r *Router) Adapters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// Chain returns the configured adapter chain for a mime type. Unknown mime
// types fall back to the "*" chain if one is configured.
func (r *Router) Chain(mimeType string) []string {
	if chain, ok := r.cfg.Chains[mimeType]; ok {
		return chain
	}
	return r.cfg.Chains["*"]
}

// Parse tries each adapter in the mime type's chain in order. The first
// success wins; adapter failures are logged and the chain advances. When all
// adapters fail the last error is returned wrapped, preserving the *Error in
// the chain for the caller's transient/terminal distinction.
func (r *Router) Parse(ctx context.Context, content []byte, mimeType string) (*ParseResult, string, error) {
	chain := r.Chain(mimeType)
	if len(chain) == 0 {
		return nil, "", eris.Errorf("router: no parser chain for mime type %q", mimeType)
	}

	var lastErr error
	for _, name := range chain {
		r.mu.RLock()
		adapter := r.adapters[name]
		breaker := r.breakers[name]
		r.mu.RUnlock()

		if adapter == nil {
			zap.L().Warn("router: chain references unregistered adapter",
				zap.String("parser", name),
				zap.String("mime_type", mimeType),
			)
			continue
		}
		if !adapter.Supports(mimeType) {
			continue
		}
		if err := breaker.Allow(); err != nil {
			zap.L().Debug("router: circuit open, skipping adapter",
				zap.String("parser", name),
			)
			lastErr = NewTransientError(name, err)
			continue
		}

		result, err := r.parseOne(ctx, adapter, content, mimeType)
		breaker.Record(err)
		if err == nil && result != nil {
			return result, name, nil
		}

		if ctx.Err() != nil {
			// The run itself was cancelled; do not burn the rest of the chain.
			return nil, "", NewTransientError(name, ctx.Err())
		}

		zap.L().Warn("router: adapter failed, trying next",
			zap.String("parser", name),
			zap.String("mime_type", mimeType),
			zap.Error(err),
		)
		lastErr = err
	}

	if lastErr != nil {
		return nil, "", eris.Wrap(lastErr, "router: all parsers failed")
	}
	return nil, "", eris.Errorf("router: no suitable parser for mime type %q", mimeType)
}

// parseOne runs a single adapter under the per-adapter deadline. A deadline
// hit is reported as a transient *Error so the chain advances.
func (r *Router) parseOne(ctx context.Context, adapter Parser, content []byte, mimeType string) (*ParseResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.AdapterTimeout)
	defer cancel()

	result, err := adapter.Parse(attemptCtx, content, mimeType)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, NewTransientError(adapter.Name(), eris.Errorf("timed out after %s", r.cfg.AdapterTimeout))
		}
		var pe *Error
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, NewError(adapter.Name(), err)
	}
	return result, nil
}

// HealthCheck probes every registered adapter and returns a map of adapter
// name to probe error (nil on success).
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error, len(r.adapters))
	for name, adapter := range r.adapters {
		out[name] = adapter.HealthCheck(ctx)
	}
	return out
}
