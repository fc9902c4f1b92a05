// Package notify turns workflow events into emails and rendered documents.
// Everything here runs after the database transaction has committed, so
// failures degrade the response instead of rolling back the decision.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/sitedesk-erp/sitedesk/internal/mail"
	"github.com/sitedesk-erp/sitedesk/internal/procure"
	"github.com/sitedesk-erp/sitedesk/jobs"
)

// Renderer produces the printable documents attached to notifications.
type Renderer interface {
	RequisitionPDF(ctx context.Context, payload procure.DocumentPayload) ([]byte, error)
	PurchaseOrderPDF(ctx context.Context, payload procure.DocumentPayload) ([]byte, error)
}

// Enqueuer submits email tasks to the background queue.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Dispatcher implements procure.Notifier. Plain status emails go through the
// queue when one is configured; PDF deliveries always go direct because
// attachments do not fit the queued payload.
type Dispatcher struct {
	renderer     Renderer
	mailer       mail.Mailer
	enqueuer     Enqueuer
	financeEmail string
	logger       *slog.Logger
}

// NewDispatcher wires the notification gateway. enqueuer may be nil, in which
// case every message is sent synchronously.
func NewDispatcher(renderer Renderer, mailer mail.Mailer, enqueuer Enqueuer, financeEmail string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		renderer:     renderer,
		mailer:       mailer,
		enqueuer:     enqueuer,
		financeEmail: financeEmail,
		logger:       logger,
	}
}

var _ procure.Notifier = (*Dispatcher)(nil)

// RequisitionSubmitted notifies finance that a requisition awaits a decision.
func (d *Dispatcher) RequisitionSubmitted(ctx context.Context, payload procure.DocumentPayload) error {
	if d.financeEmail == "" {
		d.logger.Warn("no finance address configured, skipping submission notice",
			slog.String("requisition", payload.Requisition.Number))
		return nil
	}
	req := payload.Requisition
	body := fmt.Sprintf(
		"Requisition %s was submitted by %s and awaits your decision.\n\n"+
			"Project:  %s\nSupplier: %s\nTotal:    %s\nDelivery: %s to %s\n",
		req.Number, nameOrFallback(payload.Requester.Name),
		nameOrFallback(payload.Project.Name), nameOrFallback(payload.Supplier.Name),
		req.TotalAmount, req.DeliveryDate.Format("2006-01-02"), req.DeliveryAddress)

	msg := jobs.SendEmailPayload{
		To:      []string{d.financeEmail},
		Subject: fmt.Sprintf("Requisition %s awaiting decision", req.Number),
		Text:    body,
	}
	if d.enqueuer != nil {
		_, err := d.enqueuer.EnqueueSendEmail(ctx, msg)
		if err == nil {
			return nil
		}
		d.logger.Warn("enqueue failed, sending submission notice directly", slog.Any("error", err))
	}
	return d.send(ctx, mail.Message{To: msg.To, Subject: msg.Subject, Text: msg.Text})
}

// DecisionRecorded delivers the outcome of a decision. On approval the
// purchase order PDF is sent to the supplier and requester; on rejection or
// cancellation the requester gets a plain notice.
func (d *Dispatcher) DecisionRecorded(ctx context.Context, payload procure.DocumentPayload, dec procure.Decision) error {
	switch dec.Type {
	case procure.DecisionApprove:
		return d.deliverApproval(ctx, payload)
	case procure.DecisionReject:
		return d.deliverOutcome(ctx, payload, "rejected", dec.Reason)
	case procure.DecisionCancel:
		return d.deliverOutcome(ctx, payload, "cancelled", dec.Reason)
	default:
		return fmt.Errorf("notify: unknown decision %q", dec.Type)
	}
}

func (d *Dispatcher) deliverApproval(ctx context.Context, payload procure.DocumentPayload) error {
	po := payload.PurchaseOrder
	if po == nil {
		return errors.New("notify: approval without purchase order")
	}
	var pdf []byte
	if d.renderer != nil {
		var err error
		pdf, err = d.renderer.PurchaseOrderPDF(ctx, payload)
		if err != nil {
			// Deliver the notice anyway; the document can be regenerated.
			d.logger.Warn("purchase order render failed, sending without attachment",
				slog.String("po", po.Number), slog.Any("error", err))
			pdf = nil
		}
	}

	ref := uuid.NewString()
	var attachments []mail.Attachment
	if pdf != nil {
		attachments = []mail.Attachment{{
			Filename:    po.Number + ".pdf",
			ContentType: "application/pdf",
			Content:     pdf,
		}}
	}

	g, gctx := errgroup.WithContext(ctx)
	if payload.Supplier.Email != "" {
		g.Go(func() error {
			return d.send(gctx, mail.Message{
				To:      []string{payload.Supplier.Email},
				Subject: fmt.Sprintf("Purchase order %s", po.Number),
				Text: fmt.Sprintf("Please find attached purchase order %s for requisition %s.\n"+
					"Total amount: %s\nDelivery reference: %s\n",
					po.Number, payload.Requisition.Number, po.TotalAmount, ref),
				Attachments: attachments,
			})
		})
	} else {
		d.logger.Warn("supplier has no email address",
			slog.String("supplier", payload.Supplier.Name), slog.String("po", po.Number))
	}
	if payload.Requester.Email != "" {
		g.Go(func() error {
			return d.send(gctx, mail.Message{
				To:      []string{payload.Requester.Email},
				Subject: fmt.Sprintf("Requisition %s approved", payload.Requisition.Number),
				Text: fmt.Sprintf("Your requisition %s was approved. Purchase order %s has been issued.\n",
					payload.Requisition.Number, po.Number),
				Attachments: attachments,
			})
		})
	}
	return g.Wait()
}

func (d *Dispatcher) deliverOutcome(ctx context.Context, payload procure.DocumentPayload, outcome, reason string) error {
	if payload.Requester.Email == "" {
		d.logger.Warn("requester has no email address",
			slog.String("requisition", payload.Requisition.Number))
		return nil
	}
	body := fmt.Sprintf("Your requisition %s was %s.\n", payload.Requisition.Number, outcome)
	if reason != "" {
		body += fmt.Sprintf("Reason: %s\n", reason)
	}
	return d.send(ctx, mail.Message{
		To:      []string{payload.Requester.Email},
		Subject: fmt.Sprintf("Requisition %s %s", payload.Requisition.Number, outcome),
		Text:    body,
	})
}

func (d *Dispatcher) send(ctx context.Context, msg mail.Message) error {
	if d.mailer == nil {
		return errors.New("notify: no mailer configured")
	}
	return d.mailer.Send(ctx, msg)
}

func nameOrFallback(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
