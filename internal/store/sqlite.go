package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/docpipe/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. SQLite serializes
// writers, so the conditional-update semantics match Postgres without the
// version retry loop.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	file_name     TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	mime_type     TEXT NOT NULL,
	size_bytes    INTEGER NOT NULL DEFAULT 0,
	source_type   TEXT NOT NULL DEFAULT 'upload',
	status        TEXT NOT NULL DEFAULT 'pending',
	error_message TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL,
	UNIQUE (tenant_id, content_hash)
);

CREATE TABLE IF NOT EXISTS extractions (
	id            TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	document_id   TEXT NOT NULL REFERENCES documents(id),
	version       INTEGER NOT NULL,
	status        TEXT NOT NULL DEFAULT 'processing',
	confidence    REAL NOT NULL DEFAULT 0,
	document_type TEXT NOT NULL DEFAULT '',
	parser_used   TEXT NOT NULL DEFAULT '',
	is_current    INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	completed_at  DATETIME,
	UNIQUE (document_id, version)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_extractions_current
	ON extractions(document_id) WHERE is_current;

CREATE TABLE IF NOT EXISTS extraction_fields (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	extraction_id  TEXT NOT NULL REFERENCES extractions(id),
	key            TEXT NOT NULL,
	value          TEXT,
	raw_text       TEXT NOT NULL DEFAULT '',
	confidence     REAL NOT NULL DEFAULT 0,
	source         TEXT NOT NULL DEFAULT 'parser',
	page_number    INTEGER NOT NULL DEFAULT 0,
	bounds         TEXT,
	is_override    INTEGER NOT NULL DEFAULT 0,
	override_value TEXT,
	overridden_by  TEXT NOT NULL DEFAULT '',
	overridden_at  DATETIME
);
CREATE INDEX IF NOT EXISTS idx_extraction_fields_extraction
	ON extraction_fields(extraction_id);

CREATE TABLE IF NOT EXISTS extraction_tables (
	id            TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	extraction_id TEXT NOT NULL REFERENCES extractions(id),
	name          TEXT NOT NULL DEFAULT '',
	page_number   INTEGER NOT NULL DEFAULT 0,
	headers       TEXT NOT NULL,
	rows          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS review_queue (
	id            TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	document_id   TEXT NOT NULL,
	extraction_id TEXT NOT NULL UNIQUE,
	priority      INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'pending',
	claimed_by    TEXT NOT NULL DEFAULT '',
	claimed_at    DATETIME,
	completed_at  DATETIME,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_review_queue_listing
	ON review_queue(tenant_id, status, priority DESC, created_at ASC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// -- documents --

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *model.Document) (*model.Document, error) {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, tenant_id, file_name, content_hash, mime_type, size_bytes, source_type, status, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.TenantID, out.FileName, out.ContentHash, out.MimeType, out.SizeBytes, out.SourceType, out.Status, out.ErrorMessage, out.CreatedAt, out.UpdatedAt,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrDuplicate
		}
		return nil, eris.Wrap(err, "sqlite: create document")
	}
	return &out, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, tenantID, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)
	return scanSQLiteDocument(row)
}

func (s *SQLiteStore) GetDocumentByHash(ctx context.Context, tenantID, contentHash string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant_id = ? AND content_hash = ?`,
		tenantID, contentHash,
	)
	return scanSQLiteDocument(row)
}

func (s *SQLiteStore) UpdateDocumentStatus(ctx context.Context, tenantID, id string, status model.DocumentStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error_message = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		status, errMsg, time.Now().UTC(), tenantID, id,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update document status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// -- extractions --

func (s *SQLiteStore) CreateExtraction(ctx context.Context, tenantID, documentID string) (*model.Extraction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE extractions SET is_current = 0 WHERE tenant_id = ? AND document_id = ? AND is_current`,
		tenantID, documentID,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: supersede current extraction")
	}

	ext := &model.Extraction{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		DocumentID: documentID,
		Status:     model.ExtractionProcessing,
		IsCurrent:  true,
		CreatedAt:  time.Now().UTC(),
	}
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM extractions WHERE tenant_id = ? AND document_id = ?`,
		tenantID, documentID,
	)
	if err := row.Scan(&ext.Version); err != nil {
		return nil, eris.Wrap(err, "sqlite: next version")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO extractions (id, tenant_id, document_id, version, status, is_current, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)`,
		ext.ID, tenantID, documentID, ext.Version, ext.Status, ext.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert extraction")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return ext, nil
}

func (s *SQLiteStore) FinalizeExtraction(ctx context.Context, tenantID, id string, fin ExtractionFinal) (*model.Extraction, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE extractions
		 SET status = ?, confidence = ?, document_type = ?, parser_used = ?, error_message = ?, completed_at = ?
		 WHERE tenant_id = ? AND id = ? AND status = 'processing'`,
		fin.Status, fin.Confidence, fin.DocumentType, fin.ParserUsed, fin.ErrorMessage, time.Now().UTC(), tenantID, id,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: finalize extraction")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := s.GetExtraction(ctx, tenantID, id); getErr == nil {
			return nil, ErrStateConflict
		}
		return nil, ErrNotFound
	}
	return s.GetExtraction(ctx, tenantID, id)
}

func (s *SQLiteStore) GetExtraction(ctx context.Context, tenantID, id string) (*model.Extraction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)
	return scanSQLiteExtraction(row)
}

func (s *SQLiteStore) GetCurrentExtraction(ctx context.Context, tenantID, documentID string) (*model.Extraction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE tenant_id = ? AND document_id = ? AND is_current`,
		tenantID, documentID,
	)
	return scanSQLiteExtraction(row)
}

func (s *SQLiteStore) ListExtractions(ctx context.Context, tenantID, documentID string) ([]model.Extraction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE tenant_id = ? AND document_id = ? ORDER BY version DESC`,
		tenantID, documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list extractions")
	}
	defer rows.Close()

	var out []model.Extraction
	for rows.Next() {
		ext, err := scanSQLiteExtraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ext)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list extractions")
}

// -- fields and tables --

func (s *SQLiteStore) InsertFields(ctx context.Context, tenantID, extractionID string, fields []model.ExtractionField) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO extraction_fields (id, tenant_id, extraction_id, key, value, raw_text, confidence, source, page_number, bounds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert field")
	}
	defer stmt.Close()

	for _, f := range fields {
		id := f.ID
		if id == "" {
			id = uuid.New().String()
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal field %s", f.Key)
		}
		var bounds any
		if f.Bounds != nil {
			b, err := json.Marshal(f.Bounds)
			if err != nil {
				return eris.Wrapf(err, "sqlite: marshal bounds for %s", f.Key)
			}
			bounds = string(b)
		}
		if _, err := stmt.ExecContext(ctx, id, tenantID, extractionID, f.Key, string(value), f.RawText, f.Confidence, string(f.Source), f.PageNumber, bounds); err != nil {
			return eris.Wrapf(err, "sqlite: insert field %s", f.Key)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit fields")
}

func (s *SQLiteStore) InsertTables(ctx context.Context, tenantID, extractionID string, tables []model.ExtractionTable) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	for _, t := range tables {
		id := t.ID
		if id == "" {
			id = uuid.New().String()
		}
		headers, err := json.Marshal(t.Headers)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal table headers")
		}
		body, err := json.Marshal(t.Rows)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal table rows")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO extraction_tables (id, tenant_id, extraction_id, name, page_number, headers, rows)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, tenantID, extractionID, t.Name, t.PageNumber, string(headers), string(body),
		); err != nil {
			return eris.Wrap(err, "sqlite: insert table")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit tables")
}

func (s *SQLiteStore) ListFields(ctx context.Context, tenantID, extractionID string) ([]model.ExtractionField, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fieldColumns+` FROM extraction_fields WHERE tenant_id = ? AND extraction_id = ? ORDER BY key`,
		tenantID, extractionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list fields")
	}
	defer rows.Close()

	var out []model.ExtractionField
	for rows.Next() {
		f, err := scanSQLiteField(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list fields")
}

func (s *SQLiteStore) ListTables(ctx context.Context, tenantID, extractionID string) ([]model.ExtractionTable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, extraction_id, name, page_number, headers, rows FROM extraction_tables WHERE tenant_id = ? AND extraction_id = ?`,
		tenantID, extractionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tables")
	}
	defer rows.Close()

	var out []model.ExtractionTable
	for rows.Next() {
		var t model.ExtractionTable
		var headers, body string
		if err := rows.Scan(&t.ID, &t.ExtractionID, &t.Name, &t.PageNumber, &headers, &body); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan table")
		}
		if err := json.Unmarshal([]byte(headers), &t.Headers); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal table headers")
		}
		if err := json.Unmarshal([]byte(body), &t.Rows); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal table rows")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list tables")
}

func (s *SQLiteStore) OverrideField(ctx context.Context, tenantID, fieldID string, value any, actor string) (*model.ExtractionField, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal override value")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_fields
		 SET is_override = 1, override_value = ?, overridden_by = ?, overridden_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		string(encoded), actor, time.Now().UTC(), tenantID, fieldID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: override field")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fieldColumns+` FROM extraction_fields WHERE tenant_id = ? AND id = ?`,
		tenantID, fieldID,
	)
	return scanSQLiteField(row)
}

// -- review queue --

func (s *SQLiteStore) UpsertQueueItem(ctx context.Context, item *model.ReviewQueueItem) (*model.ReviewQueueItem, error) {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_queue (id, tenant_id, document_id, extraction_id, priority, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (extraction_id) DO UPDATE
		 SET priority = excluded.priority, updated_at = excluded.updated_at
		 WHERE review_queue.status IN ('pending', 'claimed')`,
		out.ID, out.TenantID, out.DocumentID, out.ExtractionID, out.Priority, out.Status, out.CreatedAt, out.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert queue item")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM review_queue WHERE tenant_id = ? AND extraction_id = ?`,
		item.TenantID, item.ExtractionID,
	)
	return scanSQLiteQueueItem(row)
}

func (s *SQLiteStore) GetQueueItem(ctx context.Context, tenantID, id string) (*model.ReviewQueueItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM review_queue WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)
	return scanSQLiteQueueItem(row)
}

func (s *SQLiteStore) ListQueue(ctx context.Context, tenantID string, filter QueueFilter) ([]model.ReviewQueueItem, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	status := filter.Status
	if status == "" {
		status = model.QueuePending
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queueColumns+` FROM review_queue
		 WHERE tenant_id = ? AND status = ?
		 ORDER BY priority DESC, created_at ASC
		 LIMIT ?`,
		tenantID, status, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list queue")
	}
	defer rows.Close()

	var out []model.ReviewQueueItem
	for rows.Next() {
		item, err := scanSQLiteQueueItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list queue")
}

func (s *SQLiteStore) ClaimQueueItem(ctx context.Context, tenantID, id, user string) (*model.ReviewQueueItem, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue
		 SET status = 'claimed', claimed_by = ?, claimed_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND status = 'pending'`,
		user, time.Now().UTC(), time.Now().UTC(), tenantID, id,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: claim queue item")
	}
	return s.afterConditionalUpdate(ctx, tenantID, id, res)
}

func (s *SQLiteStore) FinishQueueItem(ctx context.Context, tenantID, id, user string, to model.QueueStatus) (*model.ReviewQueueItem, error) {
	if !to.Terminal() {
		return nil, eris.Errorf("sqlite: finish queue item: %q is not terminal", to)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue
		 SET status = ?, completed_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND status = 'claimed' AND claimed_by = ?`,
		to, now, now, tenantID, id, user,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: finish queue item")
	}
	return s.afterConditionalUpdate(ctx, tenantID, id, res)
}

func (s *SQLiteStore) SkipPendingQueueItem(ctx context.Context, tenantID, id string) (*model.ReviewQueueItem, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue
		 SET status = 'skipped', completed_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND status = 'pending'`,
		now, now, tenantID, id,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: skip queue item")
	}
	return s.afterConditionalUpdate(ctx, tenantID, id, res)
}

func (s *SQLiteStore) ReleaseStaleClaims(ctx context.Context, claimedBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue
		 SET status = 'pending', claimed_by = '', claimed_at = NULL, updated_at = ?
		 WHERE status = 'claimed' AND claimed_at < ?`,
		time.Now().UTC(), claimedBefore,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: release stale claims")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: release stale claims")
}

// afterConditionalUpdate resolves the outcome of a CAS-style update: the
// refreshed row on success, ErrStateConflict when the row exists but was not
// in the required state, ErrNotFound otherwise.
func (s *SQLiteStore) afterConditionalUpdate(ctx context.Context, tenantID, id string, res sql.Result) (*model.ReviewQueueItem, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if _, getErr := s.GetQueueItem(ctx, tenantID, id); getErr == nil {
			return nil, ErrStateConflict
		}
		return nil, ErrNotFound
	}
	return s.GetQueueItem(ctx, tenantID, id)
}

// -- scan helpers --

func scanSQLiteDocument(row rowScanner) (*model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.TenantID, &d.FileName, &d.ContentHash, &d.MimeType, &d.SizeBytes, &d.SourceType, &d.Status, &d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan document")
	}
	return &d, nil
}

func scanSQLiteExtraction(row rowScanner) (*model.Extraction, error) {
	var e model.Extraction
	var completedAt sql.NullTime
	err := row.Scan(&e.ID, &e.TenantID, &e.DocumentID, &e.Version, &e.Status, &e.Confidence, &e.DocumentType, &e.ParserUsed, &e.IsCurrent, &e.ErrorMessage, &e.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan extraction")
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	return &e, nil
}

func scanSQLiteQueueItem(row rowScanner) (*model.ReviewQueueItem, error) {
	var q model.ReviewQueueItem
	var claimedAt, completedAt sql.NullTime
	err := row.Scan(&q.ID, &q.TenantID, &q.DocumentID, &q.ExtractionID, &q.Priority, &q.Status, &q.ClaimedBy, &claimedAt, &completedAt, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan queue item")
	}
	if claimedAt.Valid {
		q.ClaimedAt = &claimedAt.Time
	}
	if completedAt.Valid {
		q.CompletedAt = &completedAt.Time
	}
	return &q, nil
}

func scanSQLiteField(row rowScanner) (*model.ExtractionField, error) {
	var f model.ExtractionField
	var value, bounds, overrideValue sql.NullString
	var overriddenAt sql.NullTime
	err := row.Scan(&f.ID, &f.ExtractionID, &f.Key, &value, &f.RawText, &f.Confidence, &f.Source, &f.PageNumber, &bounds, &f.IsOverride, &overrideValue, &f.OverriddenBy, &overriddenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan field")
	}
	if value.Valid && value.String != "" {
		if err := json.Unmarshal([]byte(value.String), &f.Value); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal field value")
		}
	}
	if bounds.Valid && bounds.String != "" {
		f.Bounds = &model.BoundingBox{}
		if err := json.Unmarshal([]byte(bounds.String), f.Bounds); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal field bounds")
		}
	}
	if overrideValue.Valid && overrideValue.String != "" {
		if err := json.Unmarshal([]byte(overrideValue.String), &f.OverrideValue); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal override value")
		}
	}
	if overriddenAt.Valid {
		f.OverriddenAt = &overriddenAt.Time
	}
	return &f, nil
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
