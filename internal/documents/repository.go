package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockflow/internal/items"
	"github.com/odyssey-erp/stockflow/internal/platform/db"
	"github.com/odyssey-erp/stockflow/internal/sequence"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

// TxRepository exposes the statements a document issue runs in its transaction.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id int64) (items.Item, error)
	SetQuantity(ctx context.Context, itemID int64, quantity int) error
	NextNumber(ctx context.Context, docType sequence.DocType, year int) (string, error)
	InsertDocument(ctx context.Context, doc Document) (Document, error)
}

// Repository persists documents in PostgreSQL.
type Repository struct {
	pool       *pgxpool.Pool
	numbers    *sequence.Generator
	maxRetries int
}

// NewRepository constructs Repository. Numbers are drawn from numbers inside
// each document transaction.
func NewRepository(pool *pgxpool.Pool, numbers *sequence.Generator, maxRetries int) *Repository {
	return &Repository{pool: pool, numbers: numbers, maxRetries: maxRetries}
}

type txRepository struct {
	tx      pgx.Tx
	items   *items.Queries
	numbers *sequence.Generator
}

// WithTx executes fn inside a repeatable-read transaction with retries.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("documents repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, r.maxRetries, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, items: items.NewQueries(tx), numbers: r.numbers})
	})
}

const documentColumns = `id, doc_type, number, location_id, customer_name, notes, total, created_by, created_at, COALESCE(idempotency_key, '')`

// numberConstraint is the unique constraint on (doc_type, number).
const numberConstraint = "documents_doc_type_number_key"

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	var docType string
	err := row.Scan(&d.ID, &docType, &d.Number, &d.LocationID, &d.CustomerName, &d.Notes, &d.Total, &d.CreatedBy, &d.CreatedAt, &d.IdempotencyKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	d.DocType = sequence.DocType(docType)
	return d, nil
}

// Get loads a document with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Document, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		return Document{}, err
	}
	return r.withLines(ctx, doc)
}

// GetByIdempotencyKey loads the document issued for key.
func (r *Repository) GetByIdempotencyKey(ctx context.Context, key string) (Document, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE idempotency_key = $1`, key))
	if err != nil {
		return Document{}, err
	}
	return r.withLines(ctx, doc)
}

func (r *Repository) withLines(ctx context.Context, doc Document) (Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, item_id, name, quantity, unit_price, line_total
		FROM document_lines WHERE document_id = $1 ORDER BY line_order`, doc.ID)
	if err != nil {
		return Document{}, err
	}
	doc.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Line, error) {
		var l Line
		err := row.Scan(&l.ID, &l.ItemID, &l.Name, &l.Quantity, &l.UnitPrice, &l.LineTotal)
		return l, err
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// List returns document headers newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	var (
		where []string
		args  []any
	)
	if filter.DocType != "" {
		args = append(args, string(filter.DocType))
		where = append(where, fmt.Sprintf("doc_type = $%d", len(args)))
	}
	if filter.Year != 0 {
		args = append(args, fmt.Sprintf("%04d-%%", filter.Year))
		where = append(where, fmt.Sprintf("number LIKE $%d", len(args)))
	}
	if filter.LocationID != 0 {
		args = append(args, filter.LocationID)
		where = append(where, fmt.Sprintf("location_id = $%d", len(args)))
	}
	sql := `SELECT ` + documentColumns + ` FROM documents`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit)
	sql += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (t *txRepository) GetItemForUpdate(ctx context.Context, id int64) (items.Item, error) {
	return t.items.GetForUpdate(ctx, id)
}

func (t *txRepository) SetQuantity(ctx context.Context, itemID int64, quantity int) error {
	return t.items.SetQuantity(ctx, itemID, quantity)
}

func (t *txRepository) NextNumber(ctx context.Context, docType sequence.DocType, year int) (string, error) {
	return t.numbers.NextInTx(ctx, t.tx, docType, year)
}

// InsertDocument stores the header and its lines. The header insert runs
// under a savepoint so a taken number leaves tx usable for another draw.
func (t *txRepository) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	inserted, err := t.insertHeader(ctx, doc)
	if err != nil {
		return Document{}, err
	}
	batch := &pgx.Batch{}
	for i, line := range doc.Lines {
		batch.Queue(`
			INSERT INTO document_lines (document_id, item_id, name, quantity, unit_price, line_total, line_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			inserted.ID, line.ItemID, line.Name, line.Quantity, line.UnitPrice, line.LineTotal, i+1)
	}
	results := t.tx.SendBatch(ctx, batch)
	inserted.Lines = make([]Line, len(doc.Lines))
	for i, line := range doc.Lines {
		if err := results.QueryRow().Scan(&line.ID); err != nil {
			_ = results.Close()
			return Document{}, err
		}
		inserted.Lines[i] = line
	}
	if err := results.Close(); err != nil {
		return Document{}, err
	}
	return inserted, nil
}

func (t *txRepository) insertHeader(ctx context.Context, doc Document) (Document, error) {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return Document{}, err
	}
	var key *string
	if doc.IdempotencyKey != "" {
		key = &doc.IdempotencyKey
	}
	inserted, err := scanDocument(sp.QueryRow(ctx, `
		INSERT INTO documents (doc_type, number, location_id, customer_name, notes, total, created_by, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+documentColumns,
		string(doc.DocType), doc.Number, doc.LocationID, doc.CustomerName, doc.Notes, doc.Total, doc.CreatedBy, key))
	if err != nil {
		_ = sp.Rollback(ctx)
		var pgErr *pgconn.PgError
		switch {
		case db.IsForeignKeyViolation(err):
			return Document{}, items.ErrLocationNotFound
		case errors.As(err, &pgErr) && db.IsUniqueViolation(err) && pgErr.ConstraintName == numberConstraint:
			return Document{}, fmt.Errorf("%s: %w", doc.Number, ErrNumberTaken)
		case db.IsUniqueViolation(err):
			return Document{}, fmt.Errorf("document %s: %w", doc.Number, shared.ErrDuplicate)
		}
		return Document{}, err
	}
	return inserted, sp.Commit(ctx)
}
