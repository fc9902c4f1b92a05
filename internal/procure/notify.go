package procure

import (
	"context"

	"github.com/sitedesk-erp/sitedesk/internal/money"
)

// DocumentPayload is the denormalized data the document and notification
// gateways are called with. Reference fields may be zero-valued; renderers
// substitute fallback text rather than failing.
type DocumentPayload struct {
	Requisition   Requisition
	Items         []RequisitionItem
	PurchaseOrder *PurchaseOrder
	Totals        money.Totals
	Project       ProjectInfo
	Supplier      SupplierInfo
	Requester     UserInfo
}

// Notifier delivers follow-on effects of workflow events. Implementations
// are best effort: the caller logs failures and reports degraded success,
// it never rolls back the committed decision.
type Notifier interface {
	// RequisitionSubmitted tells finance a new requisition awaits a decision.
	RequisitionSubmitted(ctx context.Context, payload DocumentPayload) error
	// DecisionRecorded delivers the decision outcome: on approval the
	// purchase order PDF goes to the supplier and requester, on rejection or
	// cancellation the requester is informed.
	DecisionRecorded(ctx context.Context, payload DocumentPayload, d Decision) error
}
