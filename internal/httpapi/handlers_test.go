package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/ledger"
	"stockroom/backend/internal/lock"
	"stockroom/backend/internal/service"
	"stockroom/backend/internal/store"
	"stockroom/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo, err := memory.NewSeeded()
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	engine := ledger.NewEngine(repo, lock.NewLocal(time.Second))
	svc := service.New(engine, nil, nil)
	auth := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour, repo)

	return New(svc, auth, "*", nil)
}

func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	payload, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (body: %s)", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.AccessToken
}

func call(t *testing.T, handler http.Handler, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()
	rec := call(t, handler, "", http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decodeInto(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	handler := newTestAPI(t).Handler()
	rec := call(t, handler, "", http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{Username: "admin", Password: "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestStockFlowOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "keeper", "keeper123")

	rec := call(t, handler, token, http.MethodPost, "/api/v1/items", domain.ItemCreateRequest{Name: "Glue Stick", SKU: "GLU-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Item domain.Item `json:"item"`
	}
	decodeInto(t, rec, &created)

	rec = call(t, handler, token, http.MethodPost, "/api/v1/stock-ins", map[string]any{
		"details": []map[string]any{
			{"item_id": created.Item.ID, "quantity": 10, "unit_cost": "0.75", "location_id": "loc-main-warehouse"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create stock-in: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var draft struct {
		StockIn domain.StockIn `json:"stock_in"`
	}
	decodeInto(t, rec, &draft)

	rec = call(t, handler, token, http.MethodPost, "/api/v1/stock-ins/"+draft.StockIn.ID+"/receive", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("receive: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	rec = call(t, handler, token, http.MethodPost, "/api/v1/stock-ins/"+draft.StockIn.ID+"/receive", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second receive: expected 409, got %d", rec.Code)
	}

	rec = call(t, handler, token, http.MethodPost, "/api/v1/stock/issues", domain.IssueRequest{
		ItemID: created.Item.ID, LocationID: "loc-main-warehouse", Quantity: 11,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over-issue: expected 422, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = call(t, handler, token, http.MethodPost, "/api/v1/stock/moves", domain.MoveRequest{
		ItemID: created.Item.ID, FromLocationID: "loc-main-warehouse", ToLocationID: "loc-store-room", Quantity: 4,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("move: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = call(t, handler, token, http.MethodGet, "/api/v1/items/"+created.Item.ID+"/reconciliation", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reconcile: expected 200, got %d", rec.Code)
	}
	var report domain.ReconciliationReport
	decodeInto(t, rec, &report)
	if !report.Consistent || report.OnHand != 10 || report.SplitTotal != 10 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestUnknownItemReturns404(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "staff", "staff123")

	rec := call(t, handler, token, http.MethodGet, "/api/v1/items/item-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEmployeeRoleLimits(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "staff", "staff123")

	rec := call(t, handler, token, http.MethodPost, "/api/v1/items", domain.ItemCreateRequest{Name: "Chalk", SKU: "CHK"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("employee create item: expected 403, got %d", rec.Code)
	}
	rec = call(t, handler, token, http.MethodGet, "/api/v1/stock/transactions", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("employee list transactions: expected 403, got %d", rec.Code)
	}
	rec = call(t, handler, token, http.MethodGet, "/api/v1/requests", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("employee list requests: expected 200, got %d", rec.Code)
	}
}

func TestRequestApprovalOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()
	manager := login(t, handler, "keeper", "keeper123")
	employee := login(t, handler, "staff", "staff123")

	rec := call(t, handler, manager, http.MethodPost, "/api/v1/items", domain.ItemCreateRequest{Name: "Projector", SKU: "PRJ-1"})
	var created struct {
		Item domain.Item `json:"item"`
	}
	decodeInto(t, rec, &created)

	rec = call(t, handler, employee, http.MethodPost, "/api/v1/requests", domain.RequestCreateRequest{
		Kind: domain.RequestAsset, ItemID: created.Item.ID, Quantity: 1, Reason: "lecture",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var submitted struct {
		Request domain.Request `json:"request"`
	}
	decodeInto(t, rec, &submitted)

	rec = call(t, handler, employee, http.MethodPost, "/api/v1/requests/"+submitted.Request.ID+"/approve", domain.ApproveRequest{Quantity: 1})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("employee approve: expected 403, got %d", rec.Code)
	}

	rec = call(t, handler, manager, http.MethodPost, "/api/v1/requests/"+submitted.Request.ID+"/confirm", domain.ConfirmRequest{})
	if rec.Code != http.StatusConflict {
		t.Fatalf("confirm pending: expected 409, got %d", rec.Code)
	}

	rec = call(t, handler, manager, http.MethodPost, "/api/v1/requests/"+submitted.Request.ID+"/reject", domain.RejectRequest{Reason: "no budget"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	rec = call(t, handler, manager, http.MethodPost, "/api/v1/requests/"+submitted.Request.ID+"/approve", domain.ApproveRequest{Quantity: 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("approve after reject: expected 409, got %d", rec.Code)
	}

	rec = call(t, handler, employee, http.MethodGet, "/api/v1/requests/"+submitted.Request.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner read: expected 200, got %d", rec.Code)
	}
	var fetched struct {
		Request domain.Request `json:"request"`
	}
	decodeInto(t, rec, &fetched)
	if fetched.Request.Status != domain.RequestRejected || fetched.Request.RejectionReason != "no budget" {
		t.Fatalf("unexpected request %+v", fetched.Request)
	}
}

func TestCloseRequestOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()
	manager := login(t, handler, "keeper", "keeper123")
	employee := login(t, handler, "staff", "staff123")

	rec := call(t, handler, manager, http.MethodPost, "/api/v1/items", domain.ItemCreateRequest{Name: "Chalk Box", SKU: "CHK-1"})
	var created struct {
		Item domain.Item `json:"item"`
	}
	decodeInto(t, rec, &created)

	rec = call(t, handler, employee, http.MethodPost, "/api/v1/requests", domain.RequestCreateRequest{ItemID: created.Item.ID, Quantity: 2, Reason: "lessons"})
	var submitted struct {
		Request domain.Request `json:"request"`
	}
	decodeInto(t, rec, &submitted)
	path := "/api/v1/requests/" + submitted.Request.ID

	rec = call(t, handler, manager, http.MethodPost, path+"/close", domain.CloseRequest{Reason: "not approved yet"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("close pending: expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec = call(t, handler, manager, http.MethodPost, path+"/approve", domain.ApproveRequest{Quantity: 2}); rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec = call(t, handler, employee, http.MethodPost, path+"/close", domain.CloseRequest{Reason: "mine"}); rec.Code != http.StatusForbidden {
		t.Fatalf("employee close: expected 403, got %d", rec.Code)
	}
	if rec = call(t, handler, manager, http.MethodPost, path+"/close", domain.CloseRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("close without reason: expected 400, got %d", rec.Code)
	}

	rec = call(t, handler, manager, http.MethodPost, path+"/close", domain.CloseRequest{Reason: "term ended"})
	if rec.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var closed struct {
		Request domain.Request `json:"request"`
	}
	decodeInto(t, rec, &closed)
	if closed.Request.Status != domain.RequestClosed || closed.Request.CloseReason != "term ended" {
		t.Fatalf("unexpected request %+v", closed.Request)
	}
}

func TestStatusForMapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("item x: %w", store.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad qty", store.ErrInvalidInput), http.StatusBadRequest},
		{store.ErrBusy, http.StatusServiceUnavailable},
		{store.ErrOverReceipt, http.StatusUnprocessableEntity},
		{store.ErrCapacityExceeded, http.StatusUnprocessableEntity},
		{store.ErrInvalidTransition, http.StatusConflict},
		{store.ErrDuplicate, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
