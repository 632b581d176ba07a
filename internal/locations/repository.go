package locations

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockflow/internal/platform/db"
)

// Repository persists locations and the shop/depot link table.
type Repository interface {
	Create(ctx context.Context, input CreateInput) (Location, error)
	Get(ctx context.Context, id int64) (Location, error)
	Update(ctx context.Context, id int64, input UpdateInput) (Location, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListFilter) ([]Location, error)
	Link(ctx context.Context, shopID, depotID int64) error
	Unlink(ctx context.Context, shopID, depotID int64) error
	LinkedDepotIDs(ctx context.Context, shopID int64) ([]int64, error)
	LinkedShopIDs(ctx context.Context, depotID int64) ([]int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const locationColumns = `id, kind, name, address, contact_name, contact_phone, contact_email, created_at, updated_at`

func scanLocation(row pgx.Row) (Location, error) {
	var l Location
	var kind string
	err := row.Scan(&l.ID, &kind, &l.Name, &l.Address, &l.ContactName, &l.ContactPhone, &l.ContactEmail, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrNotFound
		}
		return Location{}, err
	}
	l.Kind = Kind(kind)
	return l, nil
}

func (r *repository) Create(ctx context.Context, input CreateInput) (Location, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO locations (kind, name, address, contact_name, contact_phone, contact_email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+locationColumns,
		string(input.Kind), input.Name, input.Address, input.ContactName, input.ContactPhone, input.ContactEmail)
	return scanLocation(row)
}

func (r *repository) Get(ctx context.Context, id int64) (Location, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id)
	return scanLocation(row)
}

func (r *repository) Update(ctx context.Context, id int64, input UpdateInput) (Location, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE locations
		SET name = $2, address = $3, contact_name = $4, contact_phone = $5, contact_email = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+locationColumns,
		id, input.Name, input.Address, input.ContactName, input.ContactPhone, input.ContactEmail)
	return scanLocation(row)
}

// Delete removes the location. Links and items cascade, pruning every
// back-reference in the same statement.
func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List uses a dynamic query because both filters are optional.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE 1=1`
	args := []any{}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += ` AND kind = $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += ` AND name ILIKE $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Link inserts the single row that represents both directions of the
// relation. The kind check runs under row locks so a concurrent delete
// cannot slip between check and insert.
func (r *repository) Link(ctx context.Context, shopID, depotID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		kinds := make(map[int64]Kind, 2)
		rows, err := tx.Query(ctx, `SELECT id, kind FROM locations WHERE id = ANY($1) FOR SHARE`, []int64{shopID, depotID})
		if err != nil {
			return err
		}
		for rows.Next() {
			var id int64
			var kind string
			if err := rows.Scan(&id, &kind); err != nil {
				rows.Close()
				return err
			}
			kinds[id] = Kind(kind)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		shopKind, okShop := kinds[shopID]
		depotKind, okDepot := kinds[depotID]
		if !okShop || !okDepot {
			return ErrNotFound
		}
		if shopKind != KindShop || depotKind != KindDepot {
			return ErrInvalidLink
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO location_links (shop_id, depot_id) VALUES ($1, $2)
			ON CONFLICT (shop_id, depot_id) DO NOTHING`, shopID, depotID)
		if err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
		return nil
	})
}

func (r *repository) Unlink(ctx context.Context, shopID, depotID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM location_links WHERE shop_id = $1 AND depot_id = $2`, shopID, depotID)
	return err
}

func (r *repository) LinkedDepotIDs(ctx context.Context, shopID int64) ([]int64, error) {
	return r.collectIDs(ctx, `SELECT depot_id FROM location_links WHERE shop_id = $1 ORDER BY depot_id`, shopID)
}

func (r *repository) LinkedShopIDs(ctx context.Context, depotID int64) ([]int64, error) {
	return r.collectIDs(ctx, `SELECT shop_id FROM location_links WHERE depot_id = $1 ORDER BY shop_id`, depotID)
}

func (r *repository) collectIDs(ctx context.Context, query string, arg int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
