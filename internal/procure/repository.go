package procure

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sitedesk-erp/sitedesk/internal/money"
	"github.com/sitedesk-erp/sitedesk/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations of a decision or
// creation. MaxSequence runs inside the transaction so the proposed number
// and its insert are retried as a unit.
type TxRepository interface {
	CreateRequisition(ctx context.Context, req Requisition) (int64, error)
	InsertItem(ctx context.Context, item RequisitionItem) (int64, error)
	DeleteItems(ctx context.Context, requisitionID int64) error
	UpdateTotalAmount(ctx context.Context, requisitionID int64, total string) error
	UpdateStatusIfPending(ctx context.Context, requisitionID int64, to Status, reason string, decidedBy int64) (bool, error)
	CreatePurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	MaxSequence(ctx context.Context, prefix string, year int) (int, bool, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// ListFilters narrows requisition listings.
type ListFilters struct {
	Status     string
	ProjectID  int64
	SupplierID int64
	Search     string
	SortBy     string
	SortDir    string
}

const requisitionColumns = `id, number, project_id, supplier_id, requested_by, request_date,
	delivery_date, delivery_address, COALESCE(delivery_instructions, ''),
	status, COALESCE(rejection_reason, ''), COALESCE(decided_by, 0),
	total_amount, created_at, updated_at`

func scanRequisition(row pgx.Row) (Requisition, error) {
	var req Requisition
	var status string
	err := row.Scan(&req.ID, &req.Number, &req.ProjectID, &req.SupplierID, &req.RequestedBy,
		&req.RequestDate, &req.DeliveryDate, &req.DeliveryAddress, &req.DeliveryInstructions,
		&status, &req.RejectionReason, &req.DecidedBy, &req.TotalAmount, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return Requisition{}, err
	}
	req.Status = Status(status)
	return req, nil
}

// GetRequisition returns a requisition and its items.
func (r *Repository) GetRequisition(ctx context.Context, id int64) (Requisition, []RequisitionItem, error) {
	req, err := scanRequisition(r.pool.QueryRow(ctx,
		`SELECT `+requisitionColumns+` FROM requisitions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Requisition{}, nil, ErrNotFound
		}
		return Requisition{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, requisition_id, description, quantity, unit,
		unit_price::text, vat_type, total_price::text, vat_amount::text
	FROM requisition_items WHERE requisition_id = $1 ORDER BY id`, id)
	if err != nil {
		return Requisition{}, nil, err
	}
	defer rows.Close()

	var items []RequisitionItem
	for rows.Next() {
		var item RequisitionItem
		var unitPrice, totalPrice, vatAmount, vatType string
		if err := rows.Scan(&item.ID, &item.RequisitionID, &item.Description, &item.Quantity,
			&item.Unit, &unitPrice, &vatType, &totalPrice, &vatAmount); err != nil {
			return Requisition{}, nil, err
		}
		item.VATType = money.VATType(vatType)
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return Requisition{}, nil, fmt.Errorf("parse unit price: %w", err)
		}
		if item.TotalPrice, err = decimal.NewFromString(totalPrice); err != nil {
			return Requisition{}, nil, fmt.Errorf("parse total price: %w", err)
		}
		if item.VATAmount, err = decimal.NewFromString(vatAmount); err != nil {
			return Requisition{}, nil, fmt.Errorf("parse vat amount: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Requisition{}, nil, err
	}
	return req, items, nil
}

const purchaseOrderColumns = `id, number, requisition_id, approved_by, issue_date, status,
	total_amount, created_at, updated_at`

func scanPurchaseOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status string
	err := row.Scan(&po.ID, &po.Number, &po.RequisitionID, &po.ApprovedBy, &po.IssueDate,
		&status, &po.TotalAmount, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Status = POStatus(status)
	return po, nil
}

// GetPurchaseOrder returns a purchase order by ID.
func (r *Repository) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanPurchaseOrder(r.pool.QueryRow(ctx,
		`SELECT `+purchaseOrderColumns+` FROM purchase_orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, err
}

// GetPurchaseOrderByRequisition returns the single purchase order backing a
// requisition, ErrNotFound when none was issued yet.
func (r *Repository) GetPurchaseOrderByRequisition(ctx context.Context, requisitionID int64) (PurchaseOrder, error) {
	po, err := scanPurchaseOrder(r.pool.QueryRow(ctx,
		`SELECT `+purchaseOrderColumns+` FROM purchase_orders WHERE requisition_id = $1`, requisitionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, err
}

// ListRequisitions returns a filtered page plus the total row count.
func (r *Repository) ListRequisitions(ctx context.Context, limit, offset int, filters ListFilters) ([]Requisition, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if filters.ProjectID > 0 {
		where += fmt.Sprintf(` AND project_id = $%d`, argNum)
		args = append(args, filters.ProjectID)
		argNum++
	}
	if filters.SupplierID > 0 {
		where += fmt.Sprintf(` AND supplier_id = $%d`, argNum)
		args = append(args, filters.SupplierID)
		argNum++
	}
	if filters.Search != "" {
		where += fmt.Sprintf(` AND number ILIKE $%d`, argNum)
		args = append(args, "%"+filters.Search+"%")
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM requisitions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + requisitionColumns + ` FROM requisitions` + where +
		` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reqs []Requisition
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			return nil, 0, err
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

// sortOrder returns a safe ORDER BY clause for requisition queries.
func sortOrder(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "number":
		return "number " + dir
	case "status":
		return "status " + dir
	case "delivery_date":
		return "delivery_date " + dir
	case "total":
		return "total_amount::numeric " + dir
	default:
		return "created_at DESC"
	}
}

func (tx *txRepo) CreateRequisition(ctx context.Context, req Requisition) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO requisitions
		(number, project_id, supplier_id, requested_by, request_date, delivery_date,
		 delivery_address, delivery_instructions, status, total_amount, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, NOW(), NOW())
	RETURNING id`,
		req.Number, req.ProjectID, req.SupplierID, req.RequestedBy, req.RequestDate,
		req.DeliveryDate, req.DeliveryAddress, req.DeliveryInstructions,
		string(req.Status), req.TotalAmount).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertItem(ctx context.Context, item RequisitionItem) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO requisition_items
		(requisition_id, description, quantity, unit, unit_price, vat_type, total_price, vat_amount)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`,
		item.RequisitionID, item.Description, item.Quantity, item.Unit,
		item.UnitPrice.StringFixed(2), string(item.VATType),
		item.TotalPrice.StringFixed(2), item.VATAmount.StringFixed(2)).Scan(&id)
	return id, err
}

func (tx *txRepo) DeleteItems(ctx context.Context, requisitionID int64) error {
	_, err := tx.tx.Exec(ctx, `DELETE FROM requisition_items WHERE requisition_id = $1`, requisitionID)
	return err
}

func (tx *txRepo) UpdateTotalAmount(ctx context.Context, requisitionID int64, total string) error {
	_, err := tx.tx.Exec(ctx, `UPDATE requisitions SET total_amount = $1, updated_at = NOW()
	WHERE id = $2`, total, requisitionID)
	return err
}

// UpdateStatusIfPending performs the optimistic transition guard: the row
// only moves when it is still pending, so a concurrent second decision
// observes moved=false instead of duplicating side effects. The reason
// column only applies to rejections; other transitions null it.
func (tx *txRepo) UpdateStatusIfPending(ctx context.Context, requisitionID int64, to Status, reason string, decidedBy int64) (bool, error) {
	if to != StatusRejected {
		reason = ""
	}
	tag, err := tx.tx.Exec(ctx, `UPDATE requisitions
	SET status = $1, rejection_reason = NULLIF($2, ''), decided_by = $3, updated_at = NOW()
	WHERE id = $4 AND status = $5`,
		string(to), reason, decidedBy, requisitionID, string(StatusPending))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (tx *txRepo) CreatePurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO purchase_orders
		(number, requisition_id, approved_by, issue_date, status, total_amount, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	RETURNING id`,
		po.Number, po.RequisitionID, po.ApprovedBy, po.IssueDate,
		string(po.Status), po.TotalAmount).Scan(&id)
	return id, err
}

// MaxSequence reads the highest sequence already issued for a prefix/year
// within the transaction. The number column's unique index stays the real
// duplicate guard.
func (tx *txRepo) MaxSequence(ctx context.Context, prefix string, year int) (int, bool, error) {
	table := "requisitions"
	if prefix == "PO" {
		table = "purchase_orders"
	}
	pattern := fmt.Sprintf("%s-%d-%%", prefix, year)
	var max *int
	err := tx.tx.QueryRow(ctx, `SELECT MAX(split_part(number, '-', 3)::int)
	FROM `+table+` WHERE number LIKE $1`, pattern).Scan(&max)
	if err != nil {
		return 0, false, err
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}
