package locations

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/stockflow/internal/platform/cache"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

// Service manages locations and keeps the shop/depot graph symmetric.
type Service struct {
	repo   Repository
	cache  *cache.Versioned
	logger *slog.Logger
	group  singleflight.Group
}

// NewService builds Service. cache may be nil.
func NewService(repo Repository, linkCache *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: linkCache, logger: logger}
}

// Create validates and stores a new location.
func (s *Service) Create(ctx context.Context, input CreateInput) (Location, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := shared.ValidateStruct(input); err != nil {
		return Location{}, err
	}
	return s.repo.Create(ctx, input)
}

// Get returns the location with its linked ids resolved.
func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, ErrNotFound
	}
	loc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Location{}, err
	}
	return s.withLinks(ctx, loc)
}

// Update replaces descriptive fields.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Location, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := shared.ValidateStruct(input); err != nil {
		return Location{}, err
	}
	loc, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return Location{}, err
	}
	return s.withLinks(ctx, loc)
}

// Delete removes the location together with every link that mentions it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// List returns locations, optionally filtered by kind.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Location, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", shared.ErrValidation, filter.Kind)
	}
	locs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if locs == nil {
		locs = []Location{}
	}
	return locs, nil
}

// Link connects a depot to a shop. Linking an existing pair is a no-op.
func (s *Service) Link(ctx context.Context, shopID, depotID int64) error {
	if shopID <= 0 || depotID <= 0 || shopID == depotID {
		return ErrInvalidLink
	}
	if err := s.repo.Link(ctx, shopID, depotID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Unlink disconnects a depot from a shop on both sides.
func (s *Service) Unlink(ctx context.Context, shopID, depotID int64) error {
	if shopID <= 0 || depotID <= 0 {
		return ErrInvalidLink
	}
	if err := s.repo.Unlink(ctx, shopID, depotID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// LinkedDepots lists the depots that supply shopID.
func (s *Service) LinkedDepots(ctx context.Context, shopID int64) ([]int64, error) {
	return s.cachedIDs(ctx, "shop", shopID, s.repo.LinkedDepotIDs)
}

// LinkedShops lists the shops supplied by depotID.
func (s *Service) LinkedShops(ctx context.Context, depotID int64) ([]int64, error) {
	return s.cachedIDs(ctx, "depot", depotID, s.repo.LinkedShopIDs)
}

// IsLinked reports whether depotID supplies shopID. It reads the store
// directly so write paths never act on a stale cache entry.
func (s *Service) IsLinked(ctx context.Context, shopID, depotID int64) (bool, error) {
	ids, err := s.repo.LinkedDepotIDs(ctx, shopID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == depotID {
			return true, nil
		}
	}
	return false, nil
}

// Links returns the neighbourhood of a location, whichever its kind.
func (s *Service) Links(ctx context.Context, id int64) (Links, error) {
	loc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Links{}, err
	}
	var ids []int64
	if loc.Kind == KindShop {
		ids, err = s.LinkedDepots(ctx, id)
	} else {
		ids, err = s.LinkedShops(ctx, id)
	}
	if err != nil {
		return Links{}, err
	}
	return Links{LocationID: id, Kind: loc.Kind, LinkedIDs: ids}, nil
}

func (s *Service) withLinks(ctx context.Context, loc Location) (Location, error) {
	var err error
	switch loc.Kind {
	case KindShop:
		loc.LinkedDepotIDs, err = s.LinkedDepots(ctx, loc.ID)
	case KindDepot:
		loc.LinkedShopIDs, err = s.LinkedShops(ctx, loc.ID)
	}
	if err != nil {
		return Location{}, err
	}
	return loc, nil
}

func (s *Service) cachedIDs(ctx context.Context, side string, id int64, load func(context.Context, int64) ([]int64, error)) ([]int64, error) {
	idStr := strconv.FormatInt(id, 10)
	key, err := s.cache.Key(ctx, side, idStr)
	if err != nil {
		s.logger.Warn("link cache key", slog.Any("error", err))
		return load(ctx, id)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		var ids []int64
		err := s.cache.FetchJSON(ctx, key, &ids, func(ctx context.Context) (any, error) {
			return load(ctx, id)
		})
		if err != nil {
			s.logger.Warn("link cache fetch", slog.String("key", key), slog.Any("error", err))
			return load(ctx, id)
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	ids, _ := v.([]int64)
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("link cache bump", slog.Any("error", err))
	}
}
