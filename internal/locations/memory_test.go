package locations

import (
	"context"
	"sort"
	"sync"
	"time"
)

type link struct{ shop, depot int64 }

type memoryRepo struct {
	mu        sync.Mutex
	nextID    int64
	locations map[int64]Location
	links     map[link]struct{}
	linkReads int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{locations: make(map[int64]Location), links: make(map[link]struct{})}
}

func (r *memoryRepo) Create(ctx context.Context, input CreateInput) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now().UTC()
	loc := Location{ID: r.nextID, Kind: input.Kind, Name: input.Name, Address: input.Address,
		ContactName: input.ContactName, ContactPhone: input.ContactPhone, ContactEmail: input.ContactEmail,
		CreatedAt: now, UpdatedAt: now}
	r.locations[loc.ID] = loc
	return loc, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locations[id]
	if !ok {
		return Location{}, ErrNotFound
	}
	return loc, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, input UpdateInput) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locations[id]
	if !ok {
		return Location{}, ErrNotFound
	}
	loc.Name, loc.Address = input.Name, input.Address
	loc.ContactName, loc.ContactPhone, loc.ContactEmail = input.ContactName, input.ContactPhone, input.ContactEmail
	loc.UpdatedAt = time.Now().UTC()
	r.locations[id] = loc
	return loc, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locations[id]; !ok {
		return ErrNotFound
	}
	delete(r.locations, id)
	for l := range r.links {
		if l.shop == id || l.depot == id {
			delete(r.links, l)
		}
	}
	return nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Location
	for _, loc := range r.locations {
		if filter.Kind != "" && loc.Kind != filter.Kind {
			continue
		}
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) Link(ctx context.Context, shopID, depotID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	shop, okShop := r.locations[shopID]
	depot, okDepot := r.locations[depotID]
	if !okShop || !okDepot {
		return ErrNotFound
	}
	if shop.Kind != KindShop || depot.Kind != KindDepot {
		return ErrInvalidLink
	}
	r.links[link{shopID, depotID}] = struct{}{}
	return nil
}

func (r *memoryRepo) Unlink(ctx context.Context, shopID, depotID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links, link{shopID, depotID})
	return nil
}

func (r *memoryRepo) LinkedDepotIDs(ctx context.Context, shopID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linkReads++
	ids := []int64{}
	for l := range r.links {
		if l.shop == shopID {
			ids = append(ids, l.depot)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *memoryRepo) LinkedShopIDs(ctx context.Context, depotID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linkReads++
	ids := []int64{}
	for l := range r.links {
		if l.depot == depotID {
			ids = append(ids, l.shop)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
