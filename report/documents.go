package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sitedesk-erp/sitedesk/internal/procure"
)

var gbpPrinter = message.NewPrinter(language.BritishEnglish)

// FormatGBP renders a decimal amount string as pounds with locale grouping.
// Unparseable values fall through with a plain symbol prefix.
func FormatGBP(amount string) string {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "£" + amount
	}
	f, _ := d.Float64()
	return gbpPrinter.Sprintf("£%.2f", f)
}

var docFuncs = template.FuncMap{
	"gbp": FormatGBP,
	"gbpd": func(d decimal.Decimal) string {
		return FormatGBP(d.StringFixed(2))
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "N/A"
		}
		return t.Format("02 Jan 2006")
	},
	"orNA": func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	},
}

var requisitionTmpl = template.Must(template.New("requisition").Funcs(docFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #1a1a1a; margin: 40px; }
  h1 { font-size: 20px; margin-bottom: 2px; }
  .meta { color: #555; margin-bottom: 24px; }
  table { width: 100%; border-collapse: collapse; margin-top: 16px; }
  th, td { border-bottom: 1px solid #ddd; padding: 6px 8px; text-align: left; }
  th { background: #f4f4f4; }
  td.num, th.num { text-align: right; }
  .totals { margin-top: 16px; width: 40%; margin-left: auto; }
  .totals td { border: none; padding: 3px 8px; }
  .grand { font-weight: bold; border-top: 2px solid #1a1a1a; }
</style>
</head>
<body>
  <h1>Purchase Requisition {{.Requisition.Number}}</h1>
  <div class="meta">
    Status: {{.Requisition.Status}} &middot; Requested {{date .Requisition.RequestDate}} by {{orNA .Requester.Name}}
  </div>
  <table>
    <tr><td><strong>Project</strong></td><td>{{orNA .Project.Name}} ({{orNA .Project.Code}})</td></tr>
    <tr><td><strong>Supplier</strong></td><td>{{orNA .Supplier.Name}} ({{orNA .Supplier.Code}})</td></tr>
    <tr><td><strong>Delivery date</strong></td><td>{{date .Requisition.DeliveryDate}}</td></tr>
    <tr><td><strong>Delivery address</strong></td><td>{{orNA .Requisition.DeliveryAddress}}</td></tr>
    {{if .Requisition.DeliveryInstructions}}<tr><td><strong>Instructions</strong></td><td>{{.Requisition.DeliveryInstructions}}</td></tr>{{end}}
  </table>
  <table>
    <tr><th>Description</th><th class="num">Qty</th><th>Unit</th><th class="num">Unit price</th><th>VAT</th><th class="num">Net</th></tr>
    {{range .Items}}
    <tr>
      <td>{{.Description}}</td>
      <td class="num">{{.Quantity}}</td>
      <td>{{orNA .Unit}}</td>
      <td class="num">{{gbpd .UnitPrice}}</td>
      <td>{{.VATType}}</td>
      <td class="num">{{gbpd .TotalPrice}}</td>
    </tr>
    {{end}}
  </table>
  <table class="totals">
    <tr><td>Subtotal</td><td class="num">{{gbpd .Totals.Subtotal}}</td></tr>
    <tr><td>VAT (20%)</td><td class="num">{{gbpd .Totals.VAT.Standard}}</td></tr>
    {{if not .Totals.VAT.ReverseChargeOut.IsZero}}<tr><td>Reverse charge VAT</td><td class="num">{{gbpd .Totals.VAT.ReverseChargeOut}}</td></tr>{{end}}
    <tr class="grand"><td>Total</td><td class="num">{{gbpd .Totals.GrandTotal}}</td></tr>
  </table>
</body>
</html>`))

var purchaseOrderTmpl = template.Must(template.New("purchase_order").Funcs(docFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #1a1a1a; margin: 40px; }
  h1 { font-size: 22px; margin-bottom: 2px; }
  .meta { color: #555; margin-bottom: 24px; }
  .parties { display: flex; gap: 40px; margin-bottom: 16px; }
  .party { flex: 1; }
  .party h2 { font-size: 13px; text-transform: uppercase; color: #888; margin-bottom: 4px; }
  table { width: 100%; border-collapse: collapse; margin-top: 16px; }
  th, td { border-bottom: 1px solid #ddd; padding: 6px 8px; text-align: left; }
  th { background: #f4f4f4; }
  td.num, th.num { text-align: right; }
  .totals { margin-top: 16px; width: 40%; margin-left: auto; }
  .totals td { border: none; padding: 3px 8px; }
  .grand { font-weight: bold; border-top: 2px solid #1a1a1a; }
  .footer { margin-top: 32px; color: #777; font-size: 11px; }
</style>
</head>
<body>
  <h1>Purchase Order {{.PurchaseOrder.Number}}</h1>
  <div class="meta">
    Issued {{date .PurchaseOrder.IssueDate}} &middot; Requisition {{.Requisition.Number}} &middot; Status {{.PurchaseOrder.Status}}
  </div>
  <div class="parties">
    <div class="party">
      <h2>Supplier</h2>
      <p>{{orNA .Supplier.Name}}<br>{{orNA .Supplier.Email}}</p>
    </div>
    <div class="party">
      <h2>Deliver to</h2>
      <p>{{orNA .Project.Name}}<br>{{orNA .Requisition.DeliveryAddress}}<br>By {{date .Requisition.DeliveryDate}}</p>
    </div>
  </div>
  {{if .Requisition.DeliveryInstructions}}<p><strong>Delivery instructions:</strong> {{.Requisition.DeliveryInstructions}}</p>{{end}}
  <table>
    <tr><th>Description</th><th class="num">Qty</th><th>Unit</th><th class="num">Unit price</th><th>VAT</th><th class="num">Net</th><th class="num">VAT amount</th></tr>
    {{range .Items}}
    <tr>
      <td>{{.Description}}</td>
      <td class="num">{{.Quantity}}</td>
      <td>{{orNA .Unit}}</td>
      <td class="num">{{gbpd .UnitPrice}}</td>
      <td>{{.VATType}}</td>
      <td class="num">{{gbpd .TotalPrice}}</td>
      <td class="num">{{gbpd .VATAmount}}</td>
    </tr>
    {{end}}
  </table>
  <table class="totals">
    <tr><td>Subtotal</td><td class="num">{{gbpd .Totals.Subtotal}}</td></tr>
    <tr><td>VAT (20%)</td><td class="num">{{gbpd .Totals.VAT.Standard}}</td></tr>
    {{if not .Totals.VAT.ReverseChargeOut.IsZero}}<tr><td>Reverse charge VAT</td><td class="num">{{gbpd .Totals.VAT.ReverseChargeOut}}</td></tr>{{end}}
    <tr class="grand"><td>Order total</td><td class="num">{{gbp .PurchaseOrder.TotalAmount}}</td></tr>
  </table>
  {{if not .Totals.VAT.ReverseChargeOut.IsZero}}<p class="footer">Reverse charge: customer to account for VAT to HMRC on reverse charge lines.</p>{{end}}
  <div class="footer">This purchase order is binding once issued. Quote the PO number on all invoices and delivery notes.</div>
</body>
</html>`))

// Renderer produces printable documents for the procurement workflow.
type Renderer struct {
	client *Client
}

// NewRenderer wraps a Gotenberg client.
func NewRenderer(client *Client) *Renderer {
	return &Renderer{client: client}
}

// RequisitionHTML builds the requisition document body.
func RequisitionHTML(payload procure.DocumentPayload) (string, error) {
	var buf bytes.Buffer
	if err := requisitionTmpl.Execute(&buf, payload); err != nil {
		return "", fmt.Errorf("report: requisition template: %w", err)
	}
	return buf.String(), nil
}

// PurchaseOrderHTML builds the purchase order document body. The payload must
// carry a purchase order.
func PurchaseOrderHTML(payload procure.DocumentPayload) (string, error) {
	if payload.PurchaseOrder == nil {
		return "", fmt.Errorf("report: payload for %s has no purchase order", payload.Requisition.Number)
	}
	var buf bytes.Buffer
	if err := purchaseOrderTmpl.Execute(&buf, payload); err != nil {
		return "", fmt.Errorf("report: purchase order template: %w", err)
	}
	return buf.String(), nil
}

// RequisitionPDF renders the requisition document to PDF.
func (r *Renderer) RequisitionPDF(ctx context.Context, payload procure.DocumentPayload) ([]byte, error) {
	html, err := RequisitionHTML(payload)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}

// PurchaseOrderPDF renders the purchase order document to PDF.
func (r *Renderer) PurchaseOrderPDF(ctx context.Context, payload procure.DocumentPayload) ([]byte, error) {
	html, err := PurchaseOrderHTML(payload)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}
