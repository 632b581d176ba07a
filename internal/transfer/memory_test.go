package transfer

import (
	"context"
	"maps"
	"sort"
	"time"

	"github.com/odyssey-erp/stockflow/internal/items"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

type memoryRepo struct {
	items      map[int64]items.Item
	records    []Record
	nextItemID int64
	failWith   error
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]items.Item)}
}

func (r *memoryRepo) seed(it items.Item) items.Item {
	r.nextItemID++
	it.ID = r.nextItemID
	r.items[it.ID] = it
	return it
}

// WithTx rolls every change back when fn fails.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.failWith != nil {
		return r.failWith
	}
	savedItems := maps.Clone(r.items)
	savedRecords := append([]Record(nil), r.records...)
	savedNext := r.nextItemID
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.items, r.records, r.nextItemID = savedItems, savedRecords, savedNext
		return err
	}
	return nil
}

func (r *memoryRepo) GetByOperationID(ctx context.Context, operationID string) (Record, error) {
	for _, rec := range r.records {
		if rec.OperationID == operationID {
			return rec, nil
		}
	}
	return Record{}, ErrRecordNotFound
}

func (r *memoryRepo) History(ctx context.Context, filter HistoryFilter) ([]Record, error) {
	out := []Record{}
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if filter.DepotID != 0 && rec.DepotID != filter.DepotID {
			continue
		}
		if filter.ShopID != 0 && (rec.ShopID == nil || *rec.ShopID != filter.ShopID) {
			continue
		}
		if filter.ItemID != 0 && rec.ItemID != filter.ItemID {
			continue
		}
		out = append(out, rec)
	}
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memoryRepo) ItemsAt(ctx context.Context, locationIDs []int64) ([]items.Item, error) {
	out := []items.Item{}
	for _, it := range r.items {
		for _, loc := range locationIDs {
			if it.LocationID == loc {
				out = append(out, it)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) at(locationID int64) []items.Item {
	list, _ := r.ItemsAt(context.Background(), []int64{locationID})
	return list
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, id int64) (items.Item, error) {
	it, ok := tx.repo.items[id]
	if !ok {
		return items.Item{}, items.ErrNotFound
	}
	return it, nil
}

func (tx *memoryTx) FindItemForUpdate(ctx context.Context, locationID int64, matchKey string) (items.Item, error) {
	for _, it := range tx.repo.items {
		if it.LocationID == locationID && it.MatchKey() == matchKey {
			return it, nil
		}
	}
	return items.Item{}, items.ErrNotFound
}

func (tx *memoryTx) CreateItem(ctx context.Context, it items.Item) (items.Item, error) {
	if _, err := tx.FindItemForUpdate(ctx, it.LocationID, it.MatchKey()); err == nil {
		return items.Item{}, items.ErrDuplicate
	}
	return tx.repo.seed(it), nil
}

func (tx *memoryTx) SetQuantity(ctx context.Context, itemID int64, quantity int) error {
	it, ok := tx.repo.items[itemID]
	if !ok {
		return items.ErrNotFound
	}
	it.Quantity = quantity
	tx.repo.items[itemID] = it
	return nil
}

func (tx *memoryTx) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	if _, err := tx.repo.GetByOperationID(ctx, rec.OperationID); err == nil {
		return Record{}, errDuplicateOperation
	}
	rec.ID = int64(len(tx.repo.records) + 1)
	rec.CreatedAt = time.Now().UTC()
	tx.repo.records = append(tx.repo.records, rec)
	return rec, nil
}

type staticLinks map[int64][]int64

func (l staticLinks) IsLinked(ctx context.Context, shopID, depotID int64) (bool, error) {
	for _, id := range l[shopID] {
		if id == depotID {
			return true, nil
		}
	}
	return false, nil
}

func (l staticLinks) LinkedDepots(ctx context.Context, shopID int64) ([]int64, error) {
	return l[shopID], nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type recordingJobs struct {
	itemIDs []int64
	err     error
}

func (j *recordingJobs) EnqueueLowStockCheck(ctx context.Context, itemID int64) error {
	j.itemIDs = append(j.itemIDs, itemID)
	return j.err
}

type memoryIdempotency struct {
	keys map[string]string
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys == nil {
		m.keys = make(map[string]string)
	}
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}
