// Package review maintains the human-review queue: queueing rules, priority
// scoring, exclusive claims, and stale-claim recovery. The store's
// conditional updates are the only arbiter of claim races.
package review

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/store"
)

// Config holds the queueing thresholds.
type Config struct {
	// ConfidenceThreshold queues any extraction whose overall confidence
	// falls below it. Default: 0.85.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`

	// FieldConfidenceFloor queues an extraction when any single field falls
	// below it. Default: 0.70.
	FieldConfidenceFloor float64 `yaml:"field_confidence_floor" mapstructure:"field_confidence_floor"`

	// FallbackParser is the designated low-quality parser; everything it
	// produces is reviewed. Default: pdftext.
	FallbackParser string `yaml:"fallback_parser" mapstructure:"fallback_parser"`

	// ClaimTimeout is how long a claim may sit before it is auto-released.
	// Default: 30m.
	ClaimTimeout time.Duration `yaml:"claim_timeout" mapstructure:"claim_timeout"`
}

// DefaultConfig returns the standard queueing thresholds.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:  0.85,
		FieldConfidenceFloor: 0.70,
		FallbackParser:       "pdftext",
		ClaimTimeout:         30 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = d.ConfidenceThreshold
	}
	if c.FieldConfidenceFloor <= 0 {
		c.FieldConfidenceFloor = d.FieldConfidenceFloor
	}
	if c.FallbackParser == "" {
		c.FallbackParser = d.FallbackParser
	}
	if c.ClaimTimeout <= 0 {
		c.ClaimTimeout = d.ClaimTimeout
	}
	return c
}

// Service is the review queue service.
type Service struct {
	store  store.Store
	schema *model.FieldSchema
	cfg    Config
	now    func() time.Time
}

// NewService creates a review queue service.
func NewService(st store.Store, schema *model.FieldSchema, cfg Config) *Service {
	return &Service{
		store:  st,
		schema: schema,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// ShouldQueue decides whether a completed extraction needs human review, and
// names the rule that fired. An "entity resolution pending" rule exists in
// the product requirements but has no confirmed semantics yet; it is not
// implemented.
func (s *Service) ShouldQueue(ext *model.Extraction, fields []model.ExtractionField) (bool, string) {
	if ext.Confidence < s.cfg.ConfidenceThreshold {
		return true, "low_overall_confidence"
	}
	if ext.ParserUsed == s.cfg.FallbackParser {
		return true, "fallback_parser"
	}
	for _, f := range fields {
		if f.Confidence < s.cfg.FieldConfidenceFloor {
			return true, "low_field_confidence"
		}
	}
	return false, ""
}

// Evaluate applies the queueing rules to a completed extraction and, when
// one fires, upserts a queue item with a freshly computed priority. Returns
// (nil, nil) when no rule fires. Priority is recomputed every time; existing
// active items get the new priority, terminal items are left alone.
func (s *Service) Evaluate(ctx context.Context, ext *model.Extraction, fields []model.ExtractionField) (*model.ReviewQueueItem, error) {
	if ext.Status != model.ExtractionCompleted {
		return nil, nil
	}
	queue, rule := s.ShouldQueue(ext, fields)
	if !queue {
		return nil, nil
	}

	priority := model.Priority(
		ext.Confidence,
		model.CountLowConfidenceCritical(s.schema, fields),
		s.now().Sub(ext.CreatedAt),
	)

	item, err := s.store.UpsertQueueItem(ctx, &model.ReviewQueueItem{
		TenantID:     ext.TenantID,
		DocumentID:   ext.DocumentID,
		ExtractionID: ext.ID,
		Priority:     priority,
		Status:       model.QueuePending,
	})
	if err != nil {
		return nil, eris.Wrap(err, "review: enqueue")
	}

	zap.L().Info("review: extraction queued",
		zap.String("tenant_id", ext.TenantID),
		zap.String("document_id", ext.DocumentID),
		zap.String("extraction_id", ext.ID),
		zap.String("rule", rule),
		zap.Int("priority", priority),
	)
	return item, nil
}

// List returns queue items for a tenant sorted by priority desc then
// creation time asc. Stale claims are released first so the listing never
// hides items whose claim has already timed out. The release sweep is the
// one deliberately tenant-unscoped write: a claim times out on the clock,
// not per tenant, and the sweep only moves claimed items back to pending.
func (s *Service) List(ctx context.Context, tenantID string, filter store.QueueFilter) ([]model.ReviewQueueItem, error) {
	if _, err := s.ReleaseStale(ctx); err != nil {
		// Listing still works if the sweep fails; the next caller retries.
		zap.L().Warn("review: stale-claim release failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}
	return s.store.ListQueue(ctx, tenantID, filter)
}

// Claim takes exclusive ownership of a pending item for user.
func (s *Service) Claim(ctx context.Context, tenantID, itemID, user string) (*model.ReviewQueueItem, error) {
	item, err := s.store.ClaimQueueItem(ctx, tenantID, itemID, user)
	if err == nil {
		zap.L().Info("review: item claimed",
			zap.String("tenant_id", tenantID),
			zap.String("item_id", itemID),
			zap.String("user", user),
		)
		return item, nil
	}
	if !errors.Is(err, store.ErrStateConflict) {
		return nil, eris.Wrap(err, "review: claim")
	}
	return nil, s.conflictError(ctx, tenantID, itemID, user, "claim")
}

// Complete marks a claimed item done. Only the claim holder may complete.
func (s *Service) Complete(ctx context.Context, tenantID, itemID, user string) (*model.ReviewQueueItem, error) {
	return s.finish(ctx, tenantID, itemID, user, model.QueueCompleted, "complete")
}

// Skip releases an item without completing it. The claim holder may skip a
// claimed item; anyone may skip a pending one.
func (s *Service) Skip(ctx context.Context, tenantID, itemID, user string) (*model.ReviewQueueItem, error) {
	item, err := s.store.FinishQueueItem(ctx, tenantID, itemID, user, model.QueueSkipped)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, store.ErrStateConflict) {
		return nil, eris.Wrap(err, "review: skip")
	}

	// Not claimed by this user; a pending item can still be skipped directly.
	item, err = s.store.SkipPendingQueueItem(ctx, tenantID, itemID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, store.ErrStateConflict) {
		return nil, eris.Wrap(err, "review: skip pending")
	}
	return nil, s.conflictError(ctx, tenantID, itemID, user, "skip")
}

// ReleaseStale resets claims older than the claim timeout back to pending.
// Idempotent and safe under concurrent callers.
func (s *Service) ReleaseStale(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.ClaimTimeout)
	n, err := s.store.ReleaseStaleClaims(ctx, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "review: release stale claims")
	}
	if n > 0 {
		zap.L().Info("review: stale claims released", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Service) finish(ctx context.Context, tenantID, itemID, user string, to model.QueueStatus, op string) (*model.ReviewQueueItem, error) {
	item, err := s.store.FinishQueueItem(ctx, tenantID, itemID, user, to)
	if err == nil {
		zap.L().Info("review: item finished",
			zap.String("tenant_id", tenantID),
			zap.String("item_id", itemID),
			zap.String("user", user),
			zap.String("status", string(to)),
		)
		return item, nil
	}
	if !errors.Is(err, store.ErrStateConflict) {
		return nil, eris.Wrapf(err, "review: %s", op)
	}
	return nil, s.conflictError(ctx, tenantID, itemID, user, op)
}

// conflictError turns a CAS miss into the precise user-facing error by
// inspecting the item's current state.
func (s *Service) conflictError(ctx context.Context, tenantID, itemID, user, op string) error {
	item, err := s.store.GetQueueItem(ctx, tenantID, itemID)
	if err != nil {
		return eris.Wrapf(err, "review: %s conflict", op)
	}
	switch {
	case op == "claim" && item.Status == model.QueueClaimed:
		return &AlreadyClaimedError{ItemID: itemID, ClaimedBy: item.ClaimedBy}
	case item.Status == model.QueueClaimed && item.ClaimedBy != user:
		return &NotClaimOwnerError{ItemID: itemID, Owner: item.ClaimedBy}
	default:
		return &InvalidStateTransitionError{ItemID: itemID, From: string(item.Status), Op: op}
	}
}
