package suppliers

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk-erp/sitedesk/internal/masterdata/shared"
	"github.com/sitedesk-erp/sitedesk/internal/money"
)

type mockRepo struct {
	suppliers    map[int64]Supplier
	catalog      map[int64][]CatalogItem
	catalogCalls int
	nextItemID   int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		suppliers:  map[int64]Supplier{},
		catalog:    map[int64][]CatalogItem{},
		nextItemID: 1,
	}
}

func (m *mockRepo) List(_ context.Context, _ shared.ListFilters) ([]Supplier, int, error) {
	var list []Supplier
	for _, s := range m.suppliers {
		list = append(list, s)
	}
	return list, len(list), nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *mockRepo) Create(_ context.Context, s Supplier) (Supplier, error) {
	s.ID = int64(len(m.suppliers) + 1)
	m.suppliers[s.ID] = s
	return s, nil
}

func (m *mockRepo) Update(_ context.Context, id int64, s Supplier) error {
	if _, ok := m.suppliers[id]; !ok {
		return shared.ErrNotFound
	}
	s.ID = id
	m.suppliers[id] = s
	return nil
}

func (m *mockRepo) ListCatalog(_ context.Context, supplierID int64) ([]CatalogItem, error) {
	m.catalogCalls++
	return m.catalog[supplierID], nil
}

func (m *mockRepo) CreateCatalogItem(_ context.Context, item CatalogItem) (CatalogItem, error) {
	item.ID = m.nextItemID
	m.nextItemID++
	m.catalog[item.SupplierID] = append(m.catalog[item.SupplierID], item)
	return item, nil
}

func (m *mockRepo) DeleteCatalogItem(_ context.Context, supplierID, itemID int64) error {
	items := m.catalog[supplierID]
	for i, item := range items {
		if item.ID == itemID {
			m.catalog[supplierID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func newTestService(t *testing.T) (*Service, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCatalogCache(client, time.Minute)), repo
}

func TestCreateSupplierValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), Supplier{Name: "No Code"})
	assert.ErrorIs(t, err, shared.ErrRequiredField)

	created, err := svc.Create(context.Background(), Supplier{Code: "ACME", Name: "Acme Aggregates"})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.NotZero(t, created.ID)
}

func TestCatalogServedFromCache(t *testing.T) {
	svc, repo := newTestService(t)
	supplier, err := svc.Create(context.Background(), Supplier{Code: "ACME", Name: "Acme"})
	require.NoError(t, err)

	_, err = svc.AddCatalogItem(context.Background(), CatalogItem{
		SupplierID:  supplier.ID,
		Description: "Cement 25kg",
		Unit:        "bag",
		UnitPrice:   decimal.RequireFromString("5.00"),
		VATType:     money.VATStandard,
	})
	require.NoError(t, err)

	first, err := svc.Catalog(context.Background(), supplier.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.Catalog(context.Background(), supplier.ID)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 1, repo.catalogCalls, "second read should hit the cache")
}

func TestCatalogCacheInvalidatedOnMutation(t *testing.T) {
	svc, repo := newTestService(t)
	supplier, err := svc.Create(context.Background(), Supplier{Code: "ACME", Name: "Acme"})
	require.NoError(t, err)

	_, err = svc.Catalog(context.Background(), supplier.ID)
	require.NoError(t, err)
	require.Equal(t, 1, repo.catalogCalls)

	item, err := svc.AddCatalogItem(context.Background(), CatalogItem{
		SupplierID:  supplier.ID,
		Description: "Rebar 12mm",
		Unit:        "length",
		UnitPrice:   decimal.RequireFromString("8.40"),
		VATType:     money.VATReverseCharge,
	})
	require.NoError(t, err)

	items, err := svc.Catalog(context.Background(), supplier.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, repo.catalogCalls, "mutation should force a reload")

	require.NoError(t, svc.RemoveCatalogItem(context.Background(), supplier.ID, item.ID))
	items, err = svc.Catalog(context.Background(), supplier.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAddCatalogItemValidation(t *testing.T) {
	svc, _ := newTestService(t)
	supplier, err := svc.Create(context.Background(), Supplier{Code: "ACME", Name: "Acme"})
	require.NoError(t, err)

	_, err = svc.AddCatalogItem(context.Background(), CatalogItem{
		SupplierID: supplier.ID,
		Unit:       "bag",
		UnitPrice:  decimal.RequireFromString("5.00"),
		VATType:    money.VATStandard,
	})
	assert.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.AddCatalogItem(context.Background(), CatalogItem{
		SupplierID:  supplier.ID,
		Description: "Cement",
		Unit:        "bag",
		UnitPrice:   decimal.RequireFromString("-1.00"),
		VATType:     money.VATStandard,
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.AddCatalogItem(context.Background(), CatalogItem{
		SupplierID:  supplier.ID,
		Description: "Cement",
		Unit:        "bag",
		UnitPrice:   decimal.RequireFromString("5.00"),
		VATType:     money.VATType("exempt"),
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.AddCatalogItem(context.Background(), CatalogItem{
		SupplierID:  999,
		Description: "Cement",
		Unit:        "bag",
		UnitPrice:   decimal.RequireFromString("5.00"),
		VATType:     money.VATStandard,
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
