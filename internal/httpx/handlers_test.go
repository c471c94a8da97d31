package httpx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/domain"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/httpx"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/service"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/service/servicetest"
	"github.com/Molemo21/ConnectSA-k9-sub007/pkg/retry"
)

type rig struct {
	store  *servicetest.MemStore
	gw     *servicetest.FakeGateway
	router http.Handler
}

func newRig() *rig {
	store := servicetest.NewMemStore()
	gw := &servicetest.FakeGateway{Secret: testSecret}
	pol := retry.Policy{MaxAttempts: 1}

	bookings := service.NewBookingSvc(store, gw, nil)
	escrow := service.NewEscrowSvc(store, gw, nil, pol)
	providers := service.NewProviderSvc(store)
	webhooks := service.NewWebhookSvc(store, nil, 1000)

	r := httpx.NewRouter(
		httpx.NewBookingHandler(bookings, escrow),
		httpx.NewProviderHandler(providers),
		httpx.NewWebhookHandler(gw, webhooks),
	)
	return &rig{store: store, gw: gw, router: r}
}

func (r *rig) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.router.ServeHTTP(w, req)
	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (r *rig) webhook(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", strings.NewReader(body))
	req.Header.Set("X-Gateway-Signature", gateway.Sign([]byte(body), testSecret))
	w := httptest.NewRecorder()
	r.router.ServeHTTP(w, req)
	return w
}

// Drives one booking from creation to completed payout through the public
// API, with gateway confirmations arriving as webhooks.
func TestBookingLifecycleOverHTTP(t *testing.T) {
	r := newRig()
	r.store.Providers["pr-1"] = &domain.Provider{ID: "pr-1"}

	w, out := r.do(t, http.MethodPost, "/v1/bookings", `{
		"client_id":"cl-1","provider_id":"pr-1","service_id":"sv-1",
		"scheduled_at":"2026-09-02T10:00:00Z","duration_min":90,
		"amount":1000,"currency":"ZAR"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	id := out["ID"].(string)

	if w, _ := r.do(t, http.MethodPost, "/v1/bookings/"+id+"/accept", ""); w.Code != http.StatusOK {
		t.Fatalf("accept: %d", w.Code)
	}

	w, out = r.do(t, http.MethodPost, "/v1/bookings/"+id+"/pay", `{"card_token":"tok_1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("pay: %d %s", w.Code, w.Body.String())
	}
	chargeRef := out["gateway_ref"].(string)

	if w := r.webhook(t, `{"id":"evt_1","key":"charge.complete","data":{"id":"`+chargeRef+`","status":"successful","amount":1000}}`); w.Code != http.StatusOK {
		t.Fatalf("charge webhook: %d", w.Code)
	}

	if w, _ := r.do(t, http.MethodPost, "/v1/bookings/"+id+"/start", ""); w.Code != http.StatusOK {
		t.Fatalf("start: %d", w.Code)
	}
	if w, _ := r.do(t, http.MethodPost, "/v1/bookings/"+id+"/complete", ""); w.Code != http.StatusOK {
		t.Fatalf("complete: %d", w.Code)
	}

	// confirm without payout details is rejected with guidance
	w, out = r.do(t, http.MethodPost, "/v1/bookings/"+id+"/confirm", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("confirm without details: %d", w.Code)
	}
	if out["action_required"] == nil {
		t.Fatal("no action_required in response")
	}

	w, _ = r.do(t, http.MethodPut, "/v1/providers/pr-1/payout-details", `{
		"name":"Thandi M","bank_name":"capitec","account_name":"T Mokoena","account_number":"123456789"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("payout details: %d %s", w.Code, w.Body.String())
	}

	w, out = r.do(t, http.MethodPost, "/v1/bookings/"+id+"/confirm", "")
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", w.Code, w.Body.String())
	}
	payoutID := out["payout_id"].(string)

	if w := r.webhook(t, `{"id":"evt_2","key":"transfer.pay","data":{"id":"trsf_`+payoutID+`","status":"paid","reference":"`+payoutID+`"}}`); w.Code != http.StatusOK {
		t.Fatalf("transfer webhook: %d", w.Code)
	}

	b, err := r.store.BookingByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != domain.BookingCompleted {
		t.Fatalf("booking %s", b.Status)
	}
	p, _ := r.store.PaymentByBookingID(context.Background(), id)
	if p.Status != domain.PaymentReleased {
		t.Fatalf("payment %s", p.Status)
	}

	// the booking view carries booking, payment and payout history
	w, out = r.do(t, http.MethodGet, "/v1/bookings/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	if out["payment"] == nil {
		t.Fatal("view missing payment")
	}
	payouts, ok := out["payouts"].([]any)
	if !ok || len(payouts) != 1 {
		t.Fatalf("view payouts %v", out["payouts"])
	}
	po := payouts[0].(map[string]any)
	if po["Status"] != string(domain.PayoutCompleted) {
		t.Fatalf("payout view status %v", po["Status"])
	}
}

func TestErrorMapping(t *testing.T) {
	t.Run("invalid transition is a 409", func(t *testing.T) {
		r := newRig()
		r.store.Bookings["bk-1"] = &domain.Booking{ID: "bk-1", Status: domain.BookingPending}
		if w, _ := r.do(t, http.MethodPost, "/v1/bookings/bk-1/start", ""); w.Code != http.StatusConflict {
			t.Fatalf("status %d", w.Code)
		}
	})

	t.Run("unknown booking is a 404", func(t *testing.T) {
		r := newRig()
		if w, _ := r.do(t, http.MethodGet, "/v1/bookings/nope", ""); w.Code != http.StatusNotFound {
			t.Fatalf("status %d", w.Code)
		}
	})

	t.Run("ambiguous transfer outcome is a 202", func(t *testing.T) {
		r := newRig()
		r.store.Bookings["bk-1"] = &domain.Booking{ID: "bk-1", ProviderID: "pr-1", Status: domain.BookingAwaitingConfirmation}
		r.store.Payments["pay-1"] = &domain.Payment{ID: "pay-1", BookingID: "bk-1", Amount: 1000, EscrowAmount: 900, Status: domain.PaymentEscrow}
		r.store.Providers["pr-1"] = &domain.Provider{
			ID: "pr-1", BankName: "capitec", AccountName: "T", AccountNumber: "1", RecipientRef: "recp_1",
		}
		r.gw.TransferFunc = func(amount int64, recipientRef, reference string) (string, error) {
			return "", gateway.ErrAmbiguousOutcome
		}
		w, out := r.do(t, http.MethodPost, "/v1/bookings/bk-1/confirm", "")
		if w.Code != http.StatusAccepted {
			t.Fatalf("status %d", w.Code)
		}
		if out["status"] != "pending_reconciliation" {
			t.Fatalf("body %v", out)
		}
	})
}
