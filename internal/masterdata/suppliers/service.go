package suppliers

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitedesk-erp/sitedesk/internal/masterdata/shared"
)

type Service struct {
	repo  Repository
	cache *CatalogCache
}

// NewService constructs the supplier service. cache may be nil.
func NewService(repo Repository, cache *CatalogCache) *Service {
	return &Service{repo: repo, cache: cache}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	filters.Normalize()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	if err := validate(supplier); err != nil {
		return Supplier{}, err
	}
	supplier.IsActive = true
	return s.repo.Create(ctx, supplier)
}

func (s *Service) Update(ctx context.Context, id int64, supplier Supplier) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := validate(supplier); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, supplier)
}

// Catalog returns the supplier's priced items, served from cache when warm.
func (s *Service) Catalog(ctx context.Context, supplierID int64) ([]CatalogItem, error) {
	if supplierID <= 0 {
		return nil, shared.ErrInvalidID
	}
	if _, err := s.repo.Get(ctx, supplierID); err != nil {
		return nil, err
	}
	return s.cache.Fetch(ctx, supplierID, func(ctx context.Context) ([]CatalogItem, error) {
		return s.repo.ListCatalog(ctx, supplierID)
	})
}

func (s *Service) AddCatalogItem(ctx context.Context, item CatalogItem) (CatalogItem, error) {
	if item.SupplierID <= 0 {
		return CatalogItem{}, shared.ErrInvalidID
	}
	if strings.TrimSpace(item.Description) == "" {
		return CatalogItem{}, fmt.Errorf("%w: description", shared.ErrRequiredField)
	}
	if item.UnitPrice.IsNegative() {
		return CatalogItem{}, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}
	if !item.VATType.Valid() {
		return CatalogItem{}, fmt.Errorf("%w: unknown vat type %q", shared.ErrValidation, item.VATType)
	}
	if _, err := s.repo.Get(ctx, item.SupplierID); err != nil {
		return CatalogItem{}, err
	}
	created, err := s.repo.CreateCatalogItem(ctx, item)
	if err != nil {
		return CatalogItem{}, err
	}
	if err := s.cache.Invalidate(ctx, item.SupplierID); err != nil {
		return CatalogItem{}, err
	}
	return created, nil
}

func (s *Service) RemoveCatalogItem(ctx context.Context, supplierID, itemID int64) error {
	if supplierID <= 0 || itemID <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.repo.DeleteCatalogItem(ctx, supplierID, itemID); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, supplierID)
}

func validate(supplier Supplier) error {
	if strings.TrimSpace(supplier.Code) == "" {
		return fmt.Errorf("%w: code", shared.ErrRequiredField)
	}
	if strings.TrimSpace(supplier.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	return nil
}
