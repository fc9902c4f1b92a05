package suppliers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitedesk-erp/sitedesk/internal/money"
)

// Supplier represents a supplier entity.
type Supplier struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CatalogItem is a priced line a supplier offers. Requisition forms use the
// catalog to prefill description, unit price and VAT treatment.
type CatalogItem struct {
	ID          int64           `json:"id"`
	SupplierID  int64           `json:"supplier_id"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VATType     money.VATType   `json:"vat_type"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
