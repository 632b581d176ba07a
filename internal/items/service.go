package items

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/stockflow/internal/shared"
)

// Service validates item writes and serves item reads.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Create validates and stores a new item. The threshold defaults to
// DefaultMinThreshold when omitted.
func (s *Service) Create(ctx context.Context, input CreateInput) (Item, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	if err := shared.ValidateStruct(input); err != nil {
		return Item{}, err
	}
	if !input.Price.IsPositive() {
		return Item{}, ErrInvalidPrice
	}
	threshold := DefaultMinThreshold
	if input.MinThreshold != nil {
		threshold = *input.MinThreshold
	}
	return s.repo.Create(ctx, Item{
		LocationID:   input.LocationID,
		Name:         input.Name,
		Category:     input.Category,
		Description:  input.Description,
		Unit:         input.Unit,
		Quantity:     input.Quantity,
		MinThreshold: threshold,
		Price:        input.Price,
	})
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Update applies a partial change to the locked row. Fields the caller
// omits, the threshold and quantity included, keep their stored value.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Item, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Item{}, err
	}
	if input.Price != nil && !input.Price.IsPositive() {
		return Item{}, ErrInvalidPrice
	}
	if id <= 0 {
		return Item{}, ErrNotFound
	}
	return s.repo.Update(ctx, id, func(current Item) (Item, error) {
		next := input.Apply(current)
		if next.Name == "" {
			return Item{}, fmt.Errorf("%w: Name is required", shared.ErrValidation)
		}
		return next, nil
	})
}

// Delete removes one item.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

// List returns items at a location.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Item, error) {
	filter.Limit = shared.ClampLimit(filter.Limit)
	return s.repo.List(ctx, filter)
}

// LowStock returns items at a location whose quantity reached the threshold.
func (s *Service) LowStock(ctx context.Context, locationID int64) ([]Item, error) {
	return s.repo.LowStock(ctx, locationID)
}
