package store

import (
	"context"
	"encoding/json"
	"fmt"

	"edgarbulk/pkg/models"
)

// ResultsRepo persists pipeline batch rows. It implements
// pipeline.ResultSink.
type ResultsRepo struct {
	db *DB
}

// NewResultsRepo creates a repository over an open DB.
func NewResultsRepo(db *DB) *ResultsRepo {
	return &ResultsRepo{db: db}
}

// SaveBatch upserts one row per filing, keyed on (operation, accession)
// so re-running a batch refreshes rather than duplicates. The full row
// is kept as JSONB alongside the queryable identifying columns.
func (r *ResultsRepo) SaveBatch(ctx context.Context, batchID, operation string, rows []models.FilingResult) error {
	const query = `
		INSERT INTO edgar_batch_results
			(batch_id, operation, accession, cik, company_name, form_type, date_filed, status, row_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (operation, accession)
		DO UPDATE SET
			batch_id = EXCLUDED.batch_id,
			status   = EXCLUDED.status,
			row_json = EXCLUDED.row_json,
			created_at = now();
	`

	for _, row := range rows {
		rowJSON, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal result row: %w", err)
		}
		_, err = r.db.pool.Exec(ctx, query,
			batchID, operation, row.Accession, row.CIK, row.CompanyName,
			row.FormType, row.DateFiled, row.Status, rowJSON)
		if err != nil {
			return fmt.Errorf("failed to save result for %s: %w", row.Accession, err)
		}
	}
	return nil
}
