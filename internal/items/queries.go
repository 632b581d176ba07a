package items

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/stockflow/internal/platform/db"
)

// Queries runs item statements against a pool or a transaction. Transfer
// and document flows reuse it inside their own transactions.
type Queries struct {
	db db.DBTX
}

// NewQueries binds Queries to a pool or transaction.
func NewQueries(conn db.DBTX) *Queries {
	return &Queries{db: conn}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const itemColumns = `id, location_id, name, category, description, unit, quantity, min_threshold, price, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.LocationID, &it.Name, &it.Category, &it.Description, &it.Unit,
		&it.Quantity, &it.MinThreshold, &it.Price, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	out := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Insert stores a new item and returns it with generated fields.
func (q *Queries) Insert(ctx context.Context, it Item) (Item, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO items (location_id, name, category, description, unit, match_key, quantity, min_threshold, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+itemColumns,
		it.LocationID, it.Name, it.Category, it.Description, it.Unit, it.MatchKey(), it.Quantity, it.MinThreshold, it.Price)
	created, err := scanItem(row)
	if err != nil {
		return Item{}, translateWriteErr(err)
	}
	return created, nil
}

// Get loads one item.
func (q *Queries) Get(ctx context.Context, id int64) (Item, error) {
	return scanItem(q.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
}

// GetForUpdate loads and row-locks one item.
func (q *Queries) GetForUpdate(ctx context.Context, id int64) (Item, error) {
	return scanItem(q.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id))
}

// FindByMatchKeyForUpdate row-locks the item sharing key at locationID.
func (q *Queries) FindByMatchKeyForUpdate(ctx context.Context, locationID int64, key string) (Item, error) {
	return scanItem(q.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE location_id = $1 AND match_key = $2 FOR UPDATE`, locationID, key))
}

// Update writes every mutable field of it.
func (q *Queries) Update(ctx context.Context, it Item) (Item, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE items
		SET name = $2, category = $3, description = $4, unit = $5, match_key = $6,
		    quantity = $7, min_threshold = $8, price = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING `+itemColumns,
		it.ID, it.Name, it.Category, it.Description, it.Unit, it.MatchKey(), it.Quantity, it.MinThreshold, it.Price)
	updated, err := scanItem(row)
	if err != nil {
		return Item{}, translateWriteErr(err)
	}
	return updated, nil
}

// SetQuantity overwrites the quantity of one item.
func (q *Queries) SetQuantity(ctx context.Context, id int64, quantity int) error {
	tag, err := q.db.Exec(ctx, `UPDATE items SET quantity = $2, updated_at = NOW() WHERE id = $1`, id, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one item.
func (q *Queries) Delete(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns items at one location ordered by name.
func (q *Queries) List(ctx context.Context, filter ListFilter) ([]Item, error) {
	var (
		where = []string{"location_id = $1"}
		args  = []any{filter.LocationID}
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR category ILIKE $%d)", len(args), len(args)))
	}
	args = append(args, filter.Limit)
	sql := fmt.Sprintf(`SELECT %s FROM items WHERE %s ORDER BY name, id LIMIT $%d`,
		itemColumns, strings.Join(where, " AND "), len(args))
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// ListByLocations returns every item held at any of locationIDs.
func (q *Queries) ListByLocations(ctx context.Context, locationIDs []int64) ([]Item, error) {
	if len(locationIDs) == 0 {
		return []Item{}, nil
	}
	rows, err := q.db.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE location_id = ANY($1) ORDER BY location_id, name, id`, locationIDs)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// LowStock returns items at locationID whose quantity reached the threshold.
func (q *Queries) LowStock(ctx context.Context, locationID int64) ([]Item, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE location_id = $1 AND quantity <= min_threshold ORDER BY quantity, name`, locationID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func translateWriteErr(err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	case db.IsForeignKeyViolation(err):
		return ErrLocationNotFound
	}
	return err
}
