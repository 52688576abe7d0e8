package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/docpipe/internal/db"
	"github.com/sells-group/docpipe/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// versionRetries bounds how often CreateExtraction replays its transaction
// after losing a version race to a concurrent orchestrator.
const versionRetries = 5

const extractionColumns = `id, tenant_id, document_id, version, status, confidence, document_type, parser_used, is_current, error_message, created_at, completed_at`

const queueColumns = `id, tenant_id, document_id, extraction_id, priority, status, claimed_by, claimed_at, completed_at, created_at, updated_at`

const documentColumns = `id, tenant_id, file_name, content_hash, mime_type, size_bytes, source_type, status, error_message, created_at, updated_at`

const fieldColumns = `id, extraction_id, key, value, raw_text, confidence, source, page_number, bounds, is_override, override_value, overridden_by, overridden_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id            UUID PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	file_name     TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	mime_type     TEXT NOT NULL,
	size_bytes    BIGINT NOT NULL DEFAULT 0,
	source_type   TEXT NOT NULL DEFAULT 'upload',
	status        TEXT NOT NULL DEFAULT 'pending',
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (tenant_id, content_hash)
);

CREATE TABLE IF NOT EXISTS extractions (
	id            UUID PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	document_id   UUID NOT NULL REFERENCES documents(id),
	version       INT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'processing',
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	document_type TEXT NOT NULL DEFAULT '',
	parser_used   TEXT NOT NULL DEFAULT '',
	is_current    BOOLEAN NOT NULL DEFAULT false,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ,
	UNIQUE (document_id, version)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_extractions_current
	ON extractions(document_id) WHERE is_current;
CREATE INDEX IF NOT EXISTS idx_extractions_tenant_doc
	ON extractions(tenant_id, document_id);

CREATE TABLE IF NOT EXISTS extraction_fields (
	id             UUID PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	extraction_id  UUID NOT NULL REFERENCES extractions(id),
	key            TEXT NOT NULL,
	value          JSONB,
	raw_text       TEXT NOT NULL DEFAULT '',
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	source         TEXT NOT NULL DEFAULT 'parser',
	page_number    INT NOT NULL DEFAULT 0,
	bounds         JSONB,
	is_override    BOOLEAN NOT NULL DEFAULT false,
	override_value JSONB,
	overridden_by  TEXT NOT NULL DEFAULT '',
	overridden_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_extraction_fields_extraction
	ON extraction_fields(extraction_id);

CREATE TABLE IF NOT EXISTS extraction_tables (
	id            UUID PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	extraction_id UUID NOT NULL REFERENCES extractions(id),
	name          TEXT NOT NULL DEFAULT '',
	page_number   INT NOT NULL DEFAULT 0,
	headers       JSONB NOT NULL,
	rows          JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extraction_tables_extraction
	ON extraction_tables(extraction_id);

CREATE TABLE IF NOT EXISTS review_queue (
	id            UUID PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	document_id   UUID NOT NULL,
	extraction_id UUID NOT NULL UNIQUE,
	priority      INT NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'pending',
	claimed_by    TEXT NOT NULL DEFAULT '',
	claimed_at    TIMESTAMPTZ,
	completed_at  TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_review_queue_listing
	ON review_queue(tenant_id, status, priority DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_review_queue_stale
	ON review_queue(claimed_at) WHERE status = 'claimed';
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// -- documents --

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *model.Document) (*model.Document, error) {
	out := *doc
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now
	if out.Status == "" {
		out.Status = model.DocumentPending
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, tenant_id, file_name, content_hash, mime_type, size_bytes, source_type, status, error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		out.ID, out.TenantID, out.FileName, out.ContentHash, out.MimeType, out.SizeBytes, out.SourceType, out.Status, out.ErrorMessage, out.CreatedAt, out.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, eris.Wrap(err, "postgres: create document")
	}
	return &out, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, tenantID, id string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	return scanDocument(row)
}

func (s *PostgresStore) GetDocumentByHash(ctx context.Context, tenantID, contentHash string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant_id = $1 AND content_hash = $2`,
		tenantID, contentHash,
	)
	return scanDocument(row)
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, tenantID, id string, status model.DocumentStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $1, error_message = $2, updated_at = $3 WHERE tenant_id = $4 AND id = $5`,
		status, errMsg, time.Now().UTC(), tenantID, id,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update document status")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// -- extractions --

// CreateExtraction flips the prior current extraction and inserts the next
// version in one transaction. The unique (document_id, version) constraint
// and the partial is_current index turn concurrent races into 23505 errors,
// which are resolved by replaying the transaction.
func (s *PostgresStore) CreateExtraction(ctx context.Context, tenantID, documentID string) (*model.Extraction, error) {
	var lastErr error
	for attempt := 0; attempt < versionRetries; attempt++ {
		ext, err := s.tryCreateExtraction(ctx, tenantID, documentID)
		if err == nil {
			return ext, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, eris.Wrap(lastErr, "postgres: create extraction: version contention")
}

func (s *PostgresStore) tryCreateExtraction(ctx context.Context, tenantID, documentID string) (*model.Extraction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE extractions SET is_current = false WHERE tenant_id = $1 AND document_id = $2 AND is_current`,
		tenantID, documentID,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: supersede current extraction")
	}

	ext := &model.Extraction{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		DocumentID: documentID,
		Status:     model.ExtractionProcessing,
		IsCurrent:  true,
		CreatedAt:  time.Now().UTC(),
	}
	row := tx.QueryRow(ctx,
		`INSERT INTO extractions (id, tenant_id, document_id, version, status, is_current, created_at)
		 SELECT $1, $2, $3, COALESCE(MAX(version), 0) + 1, $4, true, $5
		 FROM extractions WHERE tenant_id = $2 AND document_id = $3
		 RETURNING version`,
		ext.ID, tenantID, documentID, ext.Status, ext.CreatedAt,
	)
	if err := row.Scan(&ext.Version); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ext, nil
}

func (s *PostgresStore) FinalizeExtraction(ctx context.Context, tenantID, id string, fin ExtractionFinal) (*model.Extraction, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE extractions
		 SET status = $1, confidence = $2, document_type = $3, parser_used = $4, error_message = $5, completed_at = $6
		 WHERE tenant_id = $7 AND id = $8 AND status = 'processing'
		 RETURNING `+extractionColumns,
		fin.Status, fin.Confidence, fin.DocumentType, fin.ParserUsed, fin.ErrorMessage, time.Now().UTC(), tenantID, id,
	)
	ext, err := scanExtraction(row)
	if errors.Is(err, ErrNotFound) {
		// Either the row is gone or it already reached a terminal state.
		if _, getErr := s.GetExtraction(ctx, tenantID, id); getErr == nil {
			return nil, ErrStateConflict
		}
		return nil, ErrNotFound
	}
	return ext, err
}

func (s *PostgresStore) GetExtraction(ctx context.Context, tenantID, id string) (*model.Extraction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	return scanExtraction(row)
}

func (s *PostgresStore) GetCurrentExtraction(ctx context.Context, tenantID, documentID string) (*model.Extraction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE tenant_id = $1 AND document_id = $2 AND is_current`,
		tenantID, documentID,
	)
	return scanExtraction(row)
}

func (s *PostgresStore) ListExtractions(ctx context.Context, tenantID, documentID string) ([]model.Extraction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE tenant_id = $1 AND document_id = $2 ORDER BY version DESC`,
		tenantID, documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list extractions")
	}
	defer rows.Close()

	var out []model.Extraction
	for rows.Next() {
		ext, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ext)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list extractions")
}

// -- fields and tables --

func (s *PostgresStore) InsertFields(ctx context.Context, tenantID, extractionID string, fields []model.ExtractionField) error {
	rows := make([][]any, 0, len(fields))
	for _, f := range fields {
		id := f.ID
		if id == "" {
			id = uuid.New().String()
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal field %s", f.Key)
		}
		var bounds []byte
		if f.Bounds != nil {
			if bounds, err = json.Marshal(f.Bounds); err != nil {
				return eris.Wrapf(err, "postgres: marshal bounds for %s", f.Key)
			}
		}
		rows = append(rows, []any{
			id, tenantID, extractionID, f.Key, value, f.RawText, f.Confidence, string(f.Source), f.PageNumber, bounds,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "extraction_fields",
		[]string{"id", "tenant_id", "extraction_id", "key", "value", "raw_text", "confidence", "source", "page_number", "bounds"},
		rows,
	)
	return err
}

func (s *PostgresStore) InsertTables(ctx context.Context, tenantID, extractionID string, tables []model.ExtractionTable) error {
	rows := make([][]any, 0, len(tables))
	for _, t := range tables {
		id := t.ID
		if id == "" {
			id = uuid.New().String()
		}
		headers, err := json.Marshal(t.Headers)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal table headers")
		}
		body, err := json.Marshal(t.Rows)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal table rows")
		}
		rows = append(rows, []any{id, tenantID, extractionID, t.Name, t.PageNumber, headers, body})
	}

	_, err := db.CopyFrom(ctx, s.pool, "extraction_tables",
		[]string{"id", "tenant_id", "extraction_id", "name", "page_number", "headers", "rows"},
		rows,
	)
	return err
}

func (s *PostgresStore) ListFields(ctx context.Context, tenantID, extractionID string) ([]model.ExtractionField, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+fieldColumns+` FROM extraction_fields WHERE tenant_id = $1 AND extraction_id = $2 ORDER BY key`,
		tenantID, extractionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fields")
	}
	defer rows.Close()

	var out []model.ExtractionField
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list fields")
}

func (s *PostgresStore) ListTables(ctx context.Context, tenantID, extractionID string) ([]model.ExtractionTable, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, extraction_id, name, page_number, headers, rows FROM extraction_tables WHERE tenant_id = $1 AND extraction_id = $2`,
		tenantID, extractionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tables")
	}
	defer rows.Close()

	var out []model.ExtractionTable
	for rows.Next() {
		var t model.ExtractionTable
		var headers, body []byte
		if err := rows.Scan(&t.ID, &t.ExtractionID, &t.Name, &t.PageNumber, &headers, &body); err != nil {
			return nil, eris.Wrap(err, "postgres: scan table")
		}
		if err := json.Unmarshal(headers, &t.Headers); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal table headers")
		}
		if err := json.Unmarshal(body, &t.Rows); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal table rows")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list tables")
}

func (s *PostgresStore) OverrideField(ctx context.Context, tenantID, fieldID string, value any, actor string) (*model.ExtractionField, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal override value")
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE extraction_fields
		 SET is_override = true, override_value = $1, overridden_by = $2, overridden_at = $3
		 WHERE tenant_id = $4 AND id = $5
		 RETURNING `+fieldColumns,
		encoded, actor, time.Now().UTC(), tenantID, fieldID,
	)
	return scanField(row)
}

// -- review queue --

func (s *PostgresStore) UpsertQueueItem(ctx context.Context, item *model.ReviewQueueItem) (*model.ReviewQueueItem, error) {
	out := *item
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now
	if out.Status == "" {
		out.Status = model.QueuePending
	}

	// The conflict branch refreshes priority on an active item but leaves
	// terminal items untouched.
	row := s.pool.QueryRow(ctx,
		`INSERT INTO review_queue (id, tenant_id, document_id, extraction_id, priority, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (extraction_id) DO UPDATE
		 SET priority = EXCLUDED.priority, updated_at = EXCLUDED.updated_at
		 WHERE review_queue.status IN ('pending', 'claimed')
		 RETURNING `+queueColumns,
		out.ID, out.TenantID, out.DocumentID, out.ExtractionID, out.Priority, out.Status, out.CreatedAt, out.UpdatedAt,
	)
	existing, err := scanQueueItem(row)
	if errors.Is(err, ErrNotFound) {
		// Terminal item: nothing updated; return it as-is.
		return s.getQueueItemByExtraction(ctx, item.TenantID, item.ExtractionID)
	}
	return existing, err
}

func (s *PostgresStore) getQueueItemByExtraction(ctx context.Context, tenantID, extractionID string) (*model.ReviewQueueItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM review_queue WHERE tenant_id = $1 AND extraction_id = $2`,
		tenantID, extractionID,
	)
	return scanQueueItem(row)
}

func (s *PostgresStore) GetQueueItem(ctx context.Context, tenantID, id string) (*model.ReviewQueueItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM review_queue WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	return scanQueueItem(row)
}

func (s *PostgresStore) ListQueue(ctx context.Context, tenantID string, filter QueueFilter) ([]model.ReviewQueueItem, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	status := filter.Status
	if status == "" {
		status = model.QueuePending
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+queueColumns+` FROM review_queue
		 WHERE tenant_id = $1 AND status = $2
		 ORDER BY priority DESC, created_at ASC
		 LIMIT $3`,
		tenantID, status, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list queue")
	}
	defer rows.Close()

	var out []model.ReviewQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list queue")
}

// ClaimQueueItem is a single conditional update: claim if and only if the
// item is still pending. Losing a race surfaces ErrStateConflict.
func (s *PostgresStore) ClaimQueueItem(ctx context.Context, tenantID, id, user string) (*model.ReviewQueueItem, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE review_queue
		 SET status = 'claimed', claimed_by = $1, claimed_at = $2, updated_at = $2
		 WHERE tenant_id = $3 AND id = $4 AND status = 'pending'
		 RETURNING `+queueColumns,
		user, time.Now().UTC(), tenantID, id,
	)
	item, err := scanQueueItem(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.GetQueueItem(ctx, tenantID, id); getErr == nil {
			return nil, ErrStateConflict
		}
		return nil, ErrNotFound
	}
	return item, err
}

func (s *PostgresStore) FinishQueueItem(ctx context.Context, tenantID, id, user string, to model.QueueStatus) (*model.ReviewQueueItem, error) {
	if !to.Terminal() {
		return nil, eris.Errorf("postgres: finish queue item: %q is not terminal", to)
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE review_queue
		 SET status = $1, completed_at = $2, updated_at = $2
		 WHERE tenant_id = $3 AND id = $4 AND status = 'claimed' AND claimed_by = $5
		 RETURNING `+queueColumns,
		to, time.Now().UTC(), tenantID, id, user,
	)
	item, err := scanQueueItem(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.GetQueueItem(ctx, tenantID, id); getErr == nil {
			return nil, ErrStateConflict
		}
		return nil, ErrNotFound
	}
	return item, err
}

func (s *PostgresStore) SkipPendingQueueItem(ctx context.Context, tenantID, id string) (*model.ReviewQueueItem, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE review_queue
		 SET status = 'skipped', completed_at = $1, updated_at = $1
		 WHERE tenant_id = $2 AND id = $3 AND status = 'pending'
		 RETURNING `+queueColumns,
		time.Now().UTC(), tenantID, id,
	)
	item, err := scanQueueItem(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.GetQueueItem(ctx, tenantID, id); getErr == nil {
			return nil, ErrStateConflict
		}
		return nil, ErrNotFound
	}
	return item, err
}

// ReleaseStaleClaims resets claims older than the cutoff back to pending.
// Safe to run concurrently: each caller's update is conditional and the
// outcome is the same.
func (s *PostgresStore) ReleaseStaleClaims(ctx context.Context, claimedBefore time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE review_queue
		 SET status = 'pending', claimed_by = '', claimed_at = NULL, updated_at = $1
		 WHERE status = 'claimed' AND claimed_at < $2`,
		time.Now().UTC(), claimedBefore,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: release stale claims")
	}
	return tag.RowsAffected(), nil
}

// -- scan helpers --

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.TenantID, &d.FileName, &d.ContentHash, &d.MimeType, &d.SizeBytes, &d.SourceType, &d.Status, &d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan document")
	}
	return &d, nil
}

func scanExtraction(row rowScanner) (*model.Extraction, error) {
	var e model.Extraction
	err := row.Scan(&e.ID, &e.TenantID, &e.DocumentID, &e.Version, &e.Status, &e.Confidence, &e.DocumentType, &e.ParserUsed, &e.IsCurrent, &e.ErrorMessage, &e.CreatedAt, &e.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan extraction")
	}
	return &e, nil
}

func scanQueueItem(row rowScanner) (*model.ReviewQueueItem, error) {
	var q model.ReviewQueueItem
	err := row.Scan(&q.ID, &q.TenantID, &q.DocumentID, &q.ExtractionID, &q.Priority, &q.Status, &q.ClaimedBy, &q.ClaimedAt, &q.CompletedAt, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan queue item")
	}
	return &q, nil
}

func scanField(row rowScanner) (*model.ExtractionField, error) {
	var f model.ExtractionField
	var value, bounds, overrideValue []byte
	err := row.Scan(&f.ID, &f.ExtractionID, &f.Key, &value, &f.RawText, &f.Confidence, &f.Source, &f.PageNumber, &bounds, &f.IsOverride, &overrideValue, &f.OverriddenBy, &f.OverriddenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan field")
	}
	if len(value) > 0 {
		if err := json.Unmarshal(value, &f.Value); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal field value")
		}
	}
	if len(bounds) > 0 {
		f.Bounds = &model.BoundingBox{}
		if err := json.Unmarshal(bounds, f.Bounds); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal field bounds")
		}
	}
	if len(overrideValue) > 0 {
		if err := json.Unmarshal(overrideValue, &f.OverrideValue); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal override value")
		}
	}
	return &f, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
