package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockflow/internal/items"
	"github.com/odyssey-erp/stockflow/internal/platform/db"
)

// TxRepository exposes the statements a withdrawal runs inside its transaction.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id int64) (items.Item, error)
	FindItemForUpdate(ctx context.Context, locationID int64, matchKey string) (items.Item, error)
	CreateItem(ctx context.Context, it items.Item) (items.Item, error)
	SetQuantity(ctx context.Context, itemID int64, quantity int) error
	InsertRecord(ctx context.Context, rec Record) (Record, error)
}

// ErrRecordNotFound indicates no transfer carries the operation id.
var ErrRecordNotFound = errors.New("transfer record not found")

// errDuplicateOperation signals a concurrent insert of the same operation id.
var errDuplicateOperation = errors.New("transfer operation already recorded")

// Repository persists transfer history in PostgreSQL.
type Repository struct {
	pool       *pgxpool.Pool
	maxRetries int
}

// NewRepository constructs Repository. maxRetries bounds serialization retries.
func NewRepository(pool *pgxpool.Pool, maxRetries int) *Repository {
	return &Repository{pool: pool, maxRetries: maxRetries}
}

type txRepository struct {
	tx    pgx.Tx
	items *items.Queries
}

// WithTx executes fn inside a repeatable-read transaction, replaying it on
// serialization failures and deadlocks.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("transfer repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, r.maxRetries, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, items: items.NewQueries(tx)})
	})
}

const recordColumns = `id, operation_id::text, type, item_id, item_name, category, unit, quantity, depot_id, shop_id, shop_item_id, actor_id, actor_name, created_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var typ string
	err := row.Scan(&rec.ID, &rec.OperationID, &typ, &rec.ItemID, &rec.ItemName, &rec.Category, &rec.Unit,
		&rec.Quantity, &rec.DepotID, &rec.ShopID, &rec.ShopItemID, &rec.ActorID, &rec.ActorName, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	rec.Type = Mode(typ)
	return rec, nil
}

// GetByOperationID returns the record written for an operation id.
func (r *Repository) GetByOperationID(ctx context.Context, operationID string) (Record, error) {
	return scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM transfers WHERE operation_id = $1`, operationID))
}

// History lists records newest first.
func (r *Repository) History(ctx context.Context, filter HistoryFilter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	add := func(column string, v int64) {
		if v == 0 {
			return
		}
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("depot_id", filter.DepotID)
	add("shop_id", filter.ShopID)
	add("item_id", filter.ItemID)
	sql := `SELECT ` + recordColumns + ` FROM transfers`
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
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ItemsAt lists the items held at any of the given locations.
func (r *Repository) ItemsAt(ctx context.Context, locationIDs []int64) ([]items.Item, error) {
	return items.NewQueries(r.pool).ListByLocations(ctx, locationIDs)
}

func (t *txRepository) GetItemForUpdate(ctx context.Context, id int64) (items.Item, error) {
	return t.items.GetForUpdate(ctx, id)
}

func (t *txRepository) FindItemForUpdate(ctx context.Context, locationID int64, matchKey string) (items.Item, error) {
	return t.items.FindByMatchKeyForUpdate(ctx, locationID, matchKey)
}

func (t *txRepository) CreateItem(ctx context.Context, it items.Item) (items.Item, error) {
	return t.items.Insert(ctx, it)
}

func (t *txRepository) SetQuantity(ctx context.Context, itemID int64, quantity int) error {
	return t.items.SetQuantity(ctx, itemID, quantity)
}

func (t *txRepository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO transfers (operation_id, type, item_id, item_name, category, unit, quantity, depot_id, shop_id, shop_item_id, actor_id, actor_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+recordColumns,
		rec.OperationID, string(rec.Type), rec.ItemID, rec.ItemName, rec.Category, rec.Unit, rec.Quantity,
		rec.DepotID, rec.ShopID, rec.ShopItemID, rec.ActorID, rec.ActorName)
	inserted, err := scanRecord(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Record{}, errDuplicateOperation
		}
		return Record{}, err
	}
	return inserted, nil
}
