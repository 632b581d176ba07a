package items

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockflow/internal/platform/db"
)

// Repository persists items.
type Repository interface {
	Create(ctx context.Context, it Item) (Item, error)
	Get(ctx context.Context, id int64) (Item, error)
	// Update locks the item, hands it to apply and stores the result in the
	// same transaction, so concurrent stock movements are never overwritten.
	Update(ctx context.Context, id int64, apply func(Item) (Item, error)) (Item, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListFilter) ([]Item, error)
	LowStock(ctx context.Context, locationID int64) ([]Item, error)
}

type repository struct {
	pool *pgxpool.Pool
	q    *Queries
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool, q: NewQueries(pool)}
}

func (r *repository) Create(ctx context.Context, it Item) (Item, error) {
	return r.q.Insert(ctx, it)
}

func (r *repository) Get(ctx context.Context, id int64) (Item, error) {
	return r.q.Get(ctx, id)
}

func (r *repository) Update(ctx context.Context, id int64, apply func(Item) (Item, error)) (Item, error) {
	var updated Item
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		q := r.q.WithTx(tx)
		current, err := q.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := apply(current)
		if err != nil {
			return err
		}
		next.ID = current.ID
		updated, err = q.Update(ctx, next)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return r.q.Delete(ctx, id)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Item, error) {
	return r.q.List(ctx, filter)
}

func (r *repository) LowStock(ctx context.Context, locationID int64) ([]Item, error) {
	return r.q.LowStock(ctx, locationID)
}
