package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *AnalysisRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS item_analyses (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	item_id TEXT NOT NULL,
	category TEXT,
	headline TEXT NOT NULL,
	summary TEXT,
	labels JSONB NOT NULL DEFAULT '[]'::jsonb,
	extracted_text TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_item_analyses_tenant ON item_analyses(tenant_id);
CREATE INDEX IF NOT EXISTS idx_item_analyses_status ON item_analyses(status);
CREATE INDEX IF NOT EXISTS idx_item_analyses_created_at ON item_analyses(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) Create(ctx context.Context, a *domain.ItemAnalysis) error {
	labelsJSON, err := json.Marshal(a.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO item_analyses (
	id, tenant_id, item_id, category, headline, summary, labels, extracted_text, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		a.ID, a.TenantID, a.ItemID, a.Category, a.Headline, a.Summary, labelsJSON,
		a.ExtractedText, string(a.Status), a.Error, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*domain.ItemAnalysis, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, item_id, category, headline, summary, labels, extracted_text, status, error_message, created_at, updated_at
FROM item_analyses
WHERE id = $1
`, id)

	var a domain.ItemAnalysis
	var labelsRaw []byte
	var status string

	err := row.Scan(
		&a.ID, &a.TenantID, &a.ItemID, &a.Category, &a.Headline, &a.Summary,
		&labelsRaw, &a.ExtractedText, &status, &a.Error, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrAnalysisNotFound, "get analysis", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}

	if err := json.Unmarshal(labelsRaw, &a.Labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels: %w", err)
	}
	a.Status = domain.AnalysisStatus(status)
	return &a, nil
}

func (r *AnalysisRepository) UpdateStatus(ctx context.Context, id string, status domain.AnalysisStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE item_analyses
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update analysis status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrAnalysisNotFound, "update analysis status", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *AnalysisRepository) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM item_analyses
WHERE id = $1 AND tenant_id = $2
`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrAnalysisNotFound, "delete analysis", fmt.Errorf("id %s", id))
	}
	return nil
}
