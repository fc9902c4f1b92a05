package procure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitedesk-erp/sitedesk/internal/money"
	"github.com/sitedesk-erp/sitedesk/internal/sequence"
	"github.com/sitedesk-erp/sitedesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRequisition(ctx context.Context, id int64) (Requisition, []RequisitionItem, error)
	GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	GetPurchaseOrderByRequisition(ctx context.Context, requisitionID int64) (PurchaseOrder, error)
	ListRequisitions(ctx context.Context, limit, offset int, filters ListFilters) ([]Requisition, int, error)
}

// ReferencePort loads the denormalized context documents are rendered with.
// Implementations tolerate missing rows by returning zero values.
type ReferencePort interface {
	Project(ctx context.Context, id int64) (ProjectInfo, error)
	Supplier(ctx context.Context, id int64) (SupplierInfo, error)
	User(ctx context.Context, id int64) (UserInfo, error)
}

// ProjectInfo is the slice of project data the workflow needs.
type ProjectInfo struct {
	ID          int64
	Code        string
	Name        string
	SiteAddress string
}

// SupplierInfo is the slice of supplier data the workflow needs.
type SupplierInfo struct {
	ID    int64
	Code  string
	Name  string
	Email string
}

// UserInfo identifies a requester or approver for notifications.
type UserInfo struct {
	ID    int64
	Name  string
	Email string
}

// Service orchestrates the requisition workflow.
type Service struct {
	repo     RepositoryPort
	refs     ReferencePort
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the workflow service.
func NewService(repo RepositoryPort, refs ReferencePort, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, refs: refs, notifier: notifier, logger: logger, now: time.Now}
}

// CreateInput describes a submitted requisition.
type CreateInput struct {
	ProjectID            int64
	SupplierID           int64
	DeliveryDate         time.Time
	DeliveryAddress      string
	DeliveryInstructions string
	Items                []ItemInput
}

// ItemInput describes a submitted line.
type ItemInput struct {
	Description string
	Quantity    int64
	Unit        string
	UnitPrice   decimal.Decimal
	VATType     money.VATType
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	for i, item := range items {
		if strings.TrimSpace(item.Description) == "" {
			return fmt.Errorf("%w: item %d description required", ErrValidation, i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrValidation, i+1)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d unit price must not be negative", ErrValidation, i+1)
		}
		if !item.VATType.Valid() {
			return fmt.Errorf("%w: item %d has unknown vat type %q", ErrValidation, i+1, item.VATType)
		}
	}
	return nil
}

func buildItems(inputs []ItemInput) []RequisitionItem {
	items := make([]RequisitionItem, 0, len(inputs))
	for _, in := range inputs {
		line := money.Line{Quantity: in.Quantity, UnitPrice: in.UnitPrice, VATType: in.VATType}
		items = append(items, RequisitionItem{
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			Unit:        in.Unit,
			UnitPrice:   in.UnitPrice,
			VATType:     in.VATType,
			TotalPrice:  money.LineNet(line),
			VATAmount:   money.LineVAT(line),
		})
	}
	return items
}

// CreateResult is returned by CreateRequisition. Delivered is false when the
// requisition committed but the finance notification degraded.
type CreateResult struct {
	Requisition    Requisition
	Items          []RequisitionItem
	Delivered      bool
	DeliveryDetail string
}

// CreateRequisition validates input, computes totals through the amount
// engine, assigns the next REQ number and persists header plus items in one
// transaction. The finance notification afterwards is best effort and
// reported through the Delivered flag, never as an error.
func (s *Service) CreateRequisition(ctx context.Context, actor *shared.Actor, input CreateInput) (CreateResult, error) {
	if actor == nil {
		return CreateResult{}, fmt.Errorf("%w: no actor", ErrForbidden)
	}
	if input.ProjectID <= 0 {
		return CreateResult{}, fmt.Errorf("%w: project required", ErrValidation)
	}
	if input.SupplierID <= 0 {
		return CreateResult{}, fmt.Errorf("%w: supplier required", ErrValidation)
	}
	if strings.TrimSpace(input.DeliveryAddress) == "" {
		return CreateResult{}, fmt.Errorf("%w: delivery address required", ErrValidation)
	}
	if err := validateItems(input.Items); err != nil {
		return CreateResult{}, err
	}

	items := buildItems(input.Items)
	totals := money.Compute(EngineLines(items))

	now := s.now()
	req := Requisition{
		ProjectID:            input.ProjectID,
		SupplierID:           input.SupplierID,
		RequestedBy:          actor.ID,
		RequestDate:          now,
		DeliveryDate:         input.DeliveryDate,
		DeliveryAddress:      strings.TrimSpace(input.DeliveryAddress),
		DeliveryInstructions: strings.TrimSpace(input.DeliveryInstructions),
		Status:               StatusPending,
		TotalAmount:          totals.GrandTotalString(),
	}

	var created Requisition
	err := sequence.Retry(ctx, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			number, err := sequence.Next(ctx, tx, sequence.RequisitionPrefix, now.Year(), sequence.RequisitionWidth)
			if err != nil {
				return err
			}
			req.Number = number
			id, err := tx.CreateRequisition(ctx, req)
			if err != nil {
				return err
			}
			for i := range items {
				items[i].RequisitionID = id
				itemID, err := tx.InsertItem(ctx, items[i])
				if err != nil {
					return err
				}
				items[i].ID = itemID
			}
			created = req
			created.ID = id
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, sequence.ErrExhausted) {
			return CreateResult{}, fmt.Errorf("%w: requisition numbering contention", ErrConflict)
		}
		return CreateResult{}, err
	}

	result := CreateResult{Requisition: created, Items: items, Delivered: true}
	if s.notifier != nil {
		if err := s.notifier.RequisitionSubmitted(ctx, s.payload(ctx, created, items, nil, totals)); err != nil {
			s.logger.Warn("finance notification failed",
				slog.String("requisition", created.Number), slog.Any("error", err))
			result.Delivered = false
			result.DeliveryDetail = err.Error()
		}
	}
	return result, nil
}

// DecisionResult is returned by ProcessDecision. Delivered is false when the
// decision committed but PDF or email delivery degraded.
type DecisionResult struct {
	Requisition    Requisition
	PurchaseOrder  *PurchaseOrder
	Delivered      bool
	DeliveryDetail string
}

// ProcessDecision executes an approve, reject or cancel transition. Status
// change and purchase order creation commit atomically; delivery effects run
// after commit and never revert the decision.
func (s *Service) ProcessDecision(ctx context.Context, requisitionID int64, actor *shared.Actor, d Decision) (DecisionResult, error) {
	req, items, err := s.repo.GetRequisition(ctx, requisitionID)
	if err != nil {
		return DecisionResult{}, err
	}
	if err := ValidateTransition(req.Status, req.RequestedBy, actor, d); err != nil {
		return DecisionResult{}, err
	}
	if d.Type == DecisionApprove {
		if _, err := s.repo.GetPurchaseOrderByRequisition(ctx, requisitionID); err == nil {
			return DecisionResult{}, fmt.Errorf("%w: purchase order already exists for %s", ErrConflict, req.Number)
		} else if !errors.Is(err, ErrNotFound) {
			return DecisionResult{}, err
		}
	}

	target := statusAfter(d.Type)
	totals := money.Compute(EngineLines(items))
	now := s.now()

	var po *PurchaseOrder
	err = sequence.Retry(ctx, func(ctx context.Context) error {
		po = nil
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			moved, err := tx.UpdateStatusIfPending(ctx, requisitionID, target, d.Reason, actor.ID)
			if err != nil {
				return err
			}
			if !moved {
				return fmt.Errorf("%w: requisition %s is no longer pending", ErrConflict, req.Number)
			}
			if d.Type != DecisionApprove {
				return nil
			}
			number := d.PONumber
			if number == "" {
				number, err = sequence.Next(ctx, tx, sequence.PurchaseOrderPrefix, now.Year(), sequence.PurchaseOrderWidth)
				if err != nil {
					return err
				}
			}
			order := PurchaseOrder{
				Number:        number,
				RequisitionID: requisitionID,
				ApprovedBy:    actor.ID,
				IssueDate:     now,
				Status:        POStatusIssued,
				TotalAmount:   totals.GrandTotalString(),
			}
			id, err := tx.CreatePurchaseOrder(ctx, order)
			if err != nil {
				return err
			}
			order.ID = id
			po = &order
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, sequence.ErrExhausted) {
			return DecisionResult{}, fmt.Errorf("%w: purchase order numbering contention", ErrConflict)
		}
		return DecisionResult{}, err
	}

	req.Status = target
	req.DecidedBy = actor.ID
	req.TotalAmount = totals.GrandTotalString()
	if d.Type == DecisionReject {
		req.RejectionReason = d.Reason
	}

	result := DecisionResult{Requisition: req, PurchaseOrder: po, Delivered: true}
	if s.notifier != nil {
		if err := s.notifier.DecisionRecorded(ctx, s.payload(ctx, req, items, po, totals), d); err != nil {
			s.logger.Error("decision delivery degraded",
				slog.String("requisition", req.Number),
				slog.String("decision", string(d.Type)),
				slog.Any("error", err))
			result.Delivered = false
			result.DeliveryDetail = err.Error()
		}
	}
	return result, nil
}

// UpdateItems replaces the items of a still-pending requisition and
// recomputes the stored total server side, keeping the total column and the
// engine output from drifting. Edits after a decision are a conflict.
func (s *Service) UpdateItems(ctx context.Context, requisitionID int64, actor *shared.Actor, inputs []ItemInput) (Requisition, []RequisitionItem, error) {
	req, _, err := s.repo.GetRequisition(ctx, requisitionID)
	if err != nil {
		return Requisition{}, nil, err
	}
	if actor == nil || (!actor.CanDecide() && actor.ID != req.RequestedBy) {
		return Requisition{}, nil, fmt.Errorf("%w: only the requester or finance may edit items", ErrForbidden)
	}
	if req.Status != StatusPending {
		return Requisition{}, nil, fmt.Errorf("%w: requisition %s is %s", ErrConflict, req.Number, req.Status)
	}
	if err := validateItems(inputs); err != nil {
		return Requisition{}, nil, err
	}

	items := buildItems(inputs)
	totals := money.Compute(EngineLines(items))

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteItems(ctx, requisitionID); err != nil {
			return err
		}
		for i := range items {
			items[i].RequisitionID = requisitionID
			id, err := tx.InsertItem(ctx, items[i])
			if err != nil {
				return err
			}
			items[i].ID = id
		}
		return tx.UpdateTotalAmount(ctx, requisitionID, totals.GrandTotalString())
	})
	if err != nil {
		return Requisition{}, nil, err
	}
	req.TotalAmount = totals.GrandTotalString()
	return req, items, nil
}

// PreviewTotals exposes the amount engine to render contexts without
// persisting anything.
func (s *Service) PreviewTotals(inputs []ItemInput) (money.Totals, error) {
	if err := validateItems(inputs); err != nil {
		return money.Totals{}, err
	}
	return money.Compute(EngineLines(buildItems(inputs))), nil
}

// GetRequisition loads a requisition with items and its recomputed totals.
func (s *Service) GetRequisition(ctx context.Context, id int64) (Requisition, []RequisitionItem, money.Totals, error) {
	req, items, err := s.repo.GetRequisition(ctx, id)
	if err != nil {
		return Requisition{}, nil, money.Totals{}, err
	}
	totals := money.Compute(EngineLines(items))
	if req.TotalAmount != "" && req.TotalAmount != totals.GrandTotalString() {
		// Data quality signal, not a processing failure.
		s.logger.Warn("stored total drifted from engine output",
			slog.String("requisition", req.Number),
			slog.String("stored", req.TotalAmount),
			slog.String("computed", totals.GrandTotalString()))
	}
	return req, items, totals, nil
}

// GetPurchaseOrder loads a purchase order by ID.
func (s *Service) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetPurchaseOrder(ctx, id)
}

// ListRequisitions returns a page of requisitions with the total row count.
func (s *Service) ListRequisitions(ctx context.Context, limit, offset int, filters ListFilters) ([]Requisition, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListRequisitions(ctx, limit, offset, filters)
}

// payload assembles the denormalized document payload, tolerating missing
// reference data so renderers can fall back to "N/A".
func (s *Service) payload(ctx context.Context, req Requisition, items []RequisitionItem, po *PurchaseOrder, totals money.Totals) DocumentPayload {
	p := DocumentPayload{Requisition: req, Items: items, PurchaseOrder: po, Totals: totals}
	if s.refs == nil {
		return p
	}
	var err error
	if p.Project, err = s.refs.Project(ctx, req.ProjectID); err != nil {
		s.logger.Warn("load project for document", slog.Int64("project_id", req.ProjectID), slog.Any("error", err))
	}
	if p.Supplier, err = s.refs.Supplier(ctx, req.SupplierID); err != nil {
		s.logger.Warn("load supplier for document", slog.Int64("supplier_id", req.SupplierID), slog.Any("error", err))
	}
	if p.Requester, err = s.refs.User(ctx, req.RequestedBy); err != nil {
		s.logger.Warn("load requester for document", slog.Int64("user_id", req.RequestedBy), slog.Any("error", err))
	}
	return p
}
