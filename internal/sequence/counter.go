package sequence

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/stockflow/internal/platform/db"
)

// PGCounter keeps one row per series in document_sequences.
type PGCounter struct {
	db db.DBTX
}

// NewPGCounter binds the counter to a pool or transaction.
func NewPGCounter(conn db.DBTX) *PGCounter {
	return &PGCounter{db: conn}
}

// Next increments the series in a single upsert. A new row starts after the
// highest number already issued for the series, so documents created before
// the counter existed are never reissued.
func (c *PGCounter) Next(ctx context.Context, docType DocType, year int) (int64, error) {
	var seq int64
	err := c.db.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, year, seq)
		VALUES ($1, $2, 1 + COALESCE((
			SELECT MAX(split_part(number, '-', 2)::BIGINT)
			FROM documents
			WHERE doc_type = $1 AND number LIKE $3 AND split_part(number, '-', 2) ~ '^[0-9]+$'
		), 0))
		ON CONFLICT (doc_type, year)
		DO UPDATE SET seq = document_sequences.seq + 1, updated_at = NOW()
		RETURNING seq`,
		string(docType), year, fmt.Sprintf("%04d-%%", year)).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("sequence: next %s/%d: %w", docType, year, err)
	}
	return seq, nil
}
