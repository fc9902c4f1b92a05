package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk-erp/sitedesk/internal/mail"
	"github.com/sitedesk-erp/sitedesk/internal/procure"
	"github.com/sitedesk-erp/sitedesk/jobs"
)

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeRenderer struct {
	pdf []byte
	err error
}

func (r *fakeRenderer) RequisitionPDF(context.Context, procure.DocumentPayload) ([]byte, error) {
	return r.pdf, r.err
}

func (r *fakeRenderer) PurchaseOrderPDF(context.Context, procure.DocumentPayload) ([]byte, error) {
	return r.pdf, r.err
}

type fakeEnqueuer struct {
	enqueued []jobs.SendEmailPayload
	err      error
}

func (e *fakeEnqueuer) EnqueueSendEmail(_ context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.enqueued = append(e.enqueued, payload)
	return &asynq.TaskInfo{}, nil
}

func approvalPayload() procure.DocumentPayload {
	return procure.DocumentPayload{
		Requisition: procure.Requisition{Number: "REQ-2026-0003", TotalAmount: "160.00"},
		PurchaseOrder: &procure.PurchaseOrder{
			Number:      "PO-2026-00002",
			TotalAmount: "160.00",
		},
		Supplier:  procure.SupplierInfo{Name: "Acme Aggregates", Email: "orders@acme.test"},
		Requester: procure.UserInfo{Name: "Dana", Email: "dana@sitedesk.test"},
	}
}

func TestRequisitionSubmittedPrefersQueue(t *testing.T) {
	mailer := &fakeMailer{}
	queue := &fakeEnqueuer{}
	d := NewDispatcher(nil, mailer, queue, "finance@sitedesk.test", nil)

	err := d.RequisitionSubmitted(context.Background(), approvalPayload())
	require.NoError(t, err)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, []string{"finance@sitedesk.test"}, queue.enqueued[0].To)
	assert.Contains(t, queue.enqueued[0].Subject, "REQ-2026-0003")
	assert.Empty(t, mailer.sent)
}

func TestRequisitionSubmittedFallsBackToDirectSend(t *testing.T) {
	mailer := &fakeMailer{}
	queue := &fakeEnqueuer{err: errors.New("redis down")}
	d := NewDispatcher(nil, mailer, queue, "finance@sitedesk.test", nil)

	require.NoError(t, d.RequisitionSubmitted(context.Background(), approvalPayload()))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"finance@sitedesk.test"}, mailer.sent[0].To)
}

func TestRequisitionSubmittedSkipsWithoutFinanceAddress(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewDispatcher(nil, mailer, nil, "", nil)

	require.NoError(t, d.RequisitionSubmitted(context.Background(), approvalPayload()))
	assert.Empty(t, mailer.sent)
}

func TestDecisionRecordedApprovalFansOut(t *testing.T) {
	mailer := &fakeMailer{}
	renderer := &fakeRenderer{pdf: []byte("%PDF-1.4 fake")}
	d := NewDispatcher(renderer, mailer, nil, "finance@sitedesk.test", nil)

	err := d.DecisionRecorded(context.Background(), approvalPayload(), procure.Decision{Type: procure.DecisionApprove})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 2)

	recipients := map[string]mail.Message{}
	for _, msg := range mailer.sent {
		recipients[msg.To[0]] = msg
	}
	supplierMsg, ok := recipients["orders@acme.test"]
	require.True(t, ok)
	require.Len(t, supplierMsg.Attachments, 1)
	assert.Equal(t, "PO-2026-00002.pdf", supplierMsg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", supplierMsg.Attachments[0].ContentType)

	requesterMsg, ok := recipients["dana@sitedesk.test"]
	require.True(t, ok)
	assert.Contains(t, requesterMsg.Subject, "approved")
}

func TestDecisionRecordedApprovalWithoutRenderStillDelivers(t *testing.T) {
	mailer := &fakeMailer{}
	renderer := &fakeRenderer{err: errors.New("gotenberg unavailable")}
	d := NewDispatcher(renderer, mailer, nil, "finance@sitedesk.test", nil)

	err := d.DecisionRecorded(context.Background(), approvalPayload(), procure.Decision{Type: procure.DecisionApprove})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 2)
	for _, msg := range mailer.sent {
		assert.Empty(t, msg.Attachments)
	}
}

func TestDecisionRecordedApprovalReportsDeliveryFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp: connection refused")}
	d := NewDispatcher(&fakeRenderer{pdf: []byte("pdf")}, mailer, nil, "finance@sitedesk.test", nil)

	err := d.DecisionRecorded(context.Background(), approvalPayload(), procure.Decision{Type: procure.DecisionApprove})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp")
}

func TestDecisionRecordedRejectionNotifiesRequester(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewDispatcher(nil, mailer, nil, "finance@sitedesk.test", nil)

	payload := approvalPayload()
	payload.PurchaseOrder = nil
	err := d.DecisionRecorded(context.Background(), payload, procure.Decision{
		Type:   procure.DecisionReject,
		Reason: "over budget",
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"dana@sitedesk.test"}, mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Text, "over budget")
	assert.Contains(t, mailer.sent[0].Subject, "rejected")
}

func TestDecisionRecordedToleratesMissingRequesterEmail(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewDispatcher(nil, mailer, nil, "finance@sitedesk.test", nil)

	payload := approvalPayload()
	payload.PurchaseOrder = nil
	payload.Requester.Email = ""
	err := d.DecisionRecorded(context.Background(), payload, procure.Decision{Type: procure.DecisionCancel})
	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
}
