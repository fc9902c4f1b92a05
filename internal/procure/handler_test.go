package procure

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk-erp/sitedesk/internal/shared"
)

func newTestRouter(svc *Service) http.Handler {
	actors := map[int64]*shared.Actor{
		finance.ID:   finance,
		admin.ID:     admin,
		requester.ID: requester,
		stranger.ID:  stranger,
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if header := req.Header.Get("X-User-ID"); header != "" {
				id, _ := strconv.ParseInt(header, 10, 64)
				if actor, ok := actors[id]; ok {
					req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
				}
			}
			next.ServeHTTP(w, req)
		})
	})
	NewHandler(nil, svc).MountRoutes(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, actor *shared.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("X-User-ID", strconv.FormatInt(actor.ID, 10))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createBody() map[string]any {
	return map[string]any{
		"project_id":       1,
		"supplier_id":      1,
		"delivery_date":    time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		"delivery_address": "14 Acre Lane, London",
		"items": []map[string]any{
			{"description": "Cement 25kg", "quantity": 10, "unit": "bag", "unit_price": "5.00", "vat_type": "standard"},
			{"description": "Site survey", "quantity": 1, "unit": "job", "unit_price": "100.00", "vat_type": "zero"},
		},
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandlerCreateRequisition(t *testing.T) {
	router := newTestRouter(newTestService(newMemRepo(), &stubNotifier{}))

	rec := doJSON(t, router, http.MethodPost, "/requisitions", requester, createBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	out := decode(t, rec)
	req := out["requisition"].(map[string]any)
	assert.Equal(t, fmt.Sprintf("REQ-%d-0001", time.Now().Year()), req["requisition_number"])
	assert.Equal(t, "pending", req["status"])
	assert.Equal(t, "160.00", req["total_amount"])
	assert.Equal(t, true, out["delivered"])
	assert.Len(t, out["items"].([]any), 2)
}

func TestHandlerCreateReportsDegradedDelivery(t *testing.T) {
	repo := newMemRepo()
	notifier := &stubNotifier{fail: errors.New("smtp: connection refused")}
	router := newTestRouter(newTestService(repo, notifier))

	rec := doJSON(t, router, http.MethodPost, "/requisitions", requester, createBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, false, out["delivered"])
	assert.Contains(t, out["delivery_detail"], "smtp")
	// The requisition itself committed.
	assert.Len(t, repo.reqs, 1)
}

func TestHandlerCreateValidation(t *testing.T) {
	router := newTestRouter(newTestService(newMemRepo(), &stubNotifier{}))

	body := createBody()
	delete(body, "delivery_address")
	rec := doJSON(t, router, http.MethodPost, "/requisitions", requester, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	assert.NotEmpty(t, out["fields"])
}

func TestHandlerCreateBadUnitPrice(t *testing.T) {
	router := newTestRouter(newTestService(newMemRepo(), &stubNotifier{}))

	body := createBody()
	body["items"] = []map[string]any{
		{"description": "Cement", "quantity": 1, "unit": "bag", "unit_price": "five", "vat_type": "standard"},
	}
	rec := doJSON(t, router, http.MethodPost, "/requisitions", requester, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	fields := out["fields"].(map[string]any)
	assert.Contains(t, fields, "items[0].unit_price")
}

func TestHandlerDecisionApprove(t *testing.T) {
	svc := newTestService(newMemRepo(), &stubNotifier{})
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/requisitions", requester, createBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/requisitions/1/decision", finance, map[string]any{"action": "approve"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, true, out["delivered"])
	po := out["purchase_order"].(map[string]any)
	assert.Equal(t, fmt.Sprintf("PO-%d-00001", time.Now().Year()), po["po_number"])
	assert.Equal(t, "issued", po["status"])

	// A second decision against the same requisition conflicts.
	rec = doJSON(t, router, http.MethodPost, "/requisitions/1/decision", finance, map[string]any{"action": "reject", "reason": "late"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerDecisionForbiddenWithoutActor(t *testing.T) {
	router := newTestRouter(newTestService(newMemRepo(), &stubNotifier{}))

	rec := doJSON(t, router, http.MethodPost, "/requisitions", requester, createBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/requisitions/1/decision", nil, map[string]any{"action": "approve"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerGetMissingRequisition(t *testing.T) {
	router := newTestRouter(newTestService(newMemRepo(), &stubNotifier{}))

	rec := doJSON(t, router, http.MethodGet, "/requisitions/99", finance, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/requisitions/banana", finance, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerPreview(t *testing.T) {
	router := newTestRouter(newTestService(newMemRepo(), &stubNotifier{}))

	rec := doJSON(t, router, http.MethodPost, "/requisitions/preview", requester, map[string]any{
		"items": []map[string]any{
			{"description": "Rebar", "quantity": 4, "unit": "length", "unit_price": "25.00", "vat_type": "reverse-charge"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	totals := out["totals"].(map[string]any)
	assert.Equal(t, "100.00", totals["subtotal"])
	assert.Equal(t, "20.00", totals["reverse_charge_vat_out"])
	assert.Equal(t, "20.00", totals["reverse_charge_vat_in"])
	assert.Equal(t, "100.00", totals["grand_total"])
}

func TestHandlerMalformedJSON(t *testing.T) {
	router := newTestRouter(newTestService(newMemRepo(), &stubNotifier{}))

	req := httptest.NewRequest(http.MethodPost, "/requisitions", bytes.NewBufferString("{nope"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
