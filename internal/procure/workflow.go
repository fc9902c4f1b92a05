package procure

import (
	"fmt"

	"github.com/sitedesk-erp/sitedesk/internal/shared"
)

// DecisionType enumerates the transitions out of pending.
type DecisionType string

const (
	DecisionApprove DecisionType = "approve"
	DecisionReject  DecisionType = "reject"
	DecisionCancel  DecisionType = "cancel"
)

// Decision is a requested transition with its payload. PONumber may be
// supplied on approval; left empty the next sequential number is assigned.
// Reason is stored on rejection and surfaced to the requester.
type Decision struct {
	Type     DecisionType
	PONumber string
	Reason   string
}

// statusAfter maps a decision to the resulting terminal status.
func statusAfter(t DecisionType) Status {
	switch t {
	case DecisionApprove:
		return StatusApproved
	case DecisionReject:
		return StatusRejected
	case DecisionCancel:
		return StatusCancelled
	}
	return ""
}

// ValidateTransition checks the decision against the state machine and its
// role guards. Approval and rejection are finance/admin only; a requester may
// additionally cancel their own still-pending requisition. Terminal statuses
// admit no decision at all.
func ValidateTransition(current Status, requestedBy int64, actor *shared.Actor, d Decision) error {
	if statusAfter(d.Type) == "" {
		return fmt.Errorf("%w: unknown decision %q", ErrValidation, d.Type)
	}
	if actor == nil {
		return fmt.Errorf("%w: no actor", ErrForbidden)
	}
	switch d.Type {
	case DecisionApprove, DecisionReject:
		if !actor.CanDecide() {
			return fmt.Errorf("%w: role %s may not %s", ErrForbidden, actor.Role, d.Type)
		}
	case DecisionCancel:
		if !actor.CanDecide() && actor.ID != requestedBy {
			return fmt.Errorf("%w: only the requester or finance may cancel", ErrForbidden)
		}
	}
	if current.Terminal() {
		return fmt.Errorf("%w: requisition already %s", ErrConflict, current)
	}
	if current != StatusPending {
		return fmt.Errorf("%w: cannot %s a %s requisition", ErrConflict, d.Type, current)
	}
	return nil
}
