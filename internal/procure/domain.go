// Package procure implements the requisition-to-purchase-order approval
// workflow: document numbering, the status state machine and the decision
// orchestration with its follow-on delivery effects.
package procure

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitedesk-erp/sitedesk/internal/money"
)

// Requisition lifecycle statuses.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusDraft     POStatus = "draft"
	POStatusIssued    POStatus = "issued"
	POStatusReceived  POStatus = "received"
	POStatusCancelled POStatus = "cancelled"
)

// Requisition is a project's request to purchase from a supplier, pending
// financial approval. Number is immutable once assigned.
type Requisition struct {
	ID                   int64     `json:"id"`
	Number               string    `json:"requisition_number"`
	ProjectID            int64     `json:"project_id"`
	SupplierID           int64     `json:"supplier_id"`
	RequestedBy          int64     `json:"requested_by_id"`
	RequestDate          time.Time `json:"request_date"`
	DeliveryDate         time.Time `json:"delivery_date"`
	DeliveryAddress      string    `json:"delivery_address"`
	DeliveryInstructions string    `json:"delivery_instructions,omitempty"`
	Status               Status    `json:"status"`
	RejectionReason      string    `json:"rejection_reason,omitempty"`
	DecidedBy            int64     `json:"decided_by_id,omitempty"`
	TotalAmount          string    `json:"total_amount"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// RequisitionItem belongs to exactly one requisition. TotalPrice is the
// pre-VAT line amount; VATAmount is derived by the amount engine.
type RequisitionItem struct {
	ID            int64           `json:"id"`
	RequisitionID int64           `json:"requisition_id"`
	Description   string          `json:"description"`
	Quantity      int64           `json:"quantity"`
	Unit          string          `json:"unit"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	VATType       money.VATType   `json:"vat_type"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	VATAmount     decimal.Decimal `json:"vat_amount"`
}

// PurchaseOrder is the binding order issued to a supplier when a requisition
// is approved. Exactly one exists per requisition, enforced by a unique
// index on requisition_id.
type PurchaseOrder struct {
	ID            int64     `json:"id"`
	Number        string    `json:"po_number"`
	RequisitionID int64     `json:"requisition_id"`
	ApprovedBy    int64     `json:"approved_by_id"`
	IssueDate     time.Time `json:"issue_date"`
	Status        POStatus  `json:"status"`
	TotalAmount   string    `json:"total_amount"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EngineLines maps items to the amount engine's input.
func EngineLines(items []RequisitionItem) []money.Line {
	lines := make([]money.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, money.Line{
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			VATType:   item.VATType,
		})
	}
	return lines
}

var (
	// ErrNotFound indicates the requisition or purchase order is missing.
	ErrNotFound = errors.New("procure: not found")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("procure: invalid input")
	// ErrConflict occurs on duplicate purchase orders, decisions against a
	// terminal requisition and exhausted numbering retries.
	ErrConflict = errors.New("procure: conflicting state")
	// ErrForbidden indicates the actor may not perform the transition.
	ErrForbidden = errors.New("procure: forbidden")
)
