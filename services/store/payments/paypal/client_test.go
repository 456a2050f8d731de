package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/supplements-store/services/store/payments"
)

func newServer(t *testing.T, captureHandler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var tokenCalls int32
	intentID := "7f1c3a2e-0000-4000-8000-000000000001"

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body createOrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		if assert.Len(t, body.PurchaseUnits, 1) {
			assert.Equal(t, "USD", body.PurchaseUnits[0].Amount.CurrencyCode)
			assert.Equal(t, "2.63", body.PurchaseUnits[0].Amount.Value)
			assert.Equal(t, intentID, body.PurchaseUnits[0].CustomID)
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"id":     "ORDER-1",
			"status": "CREATED",
			"links": []map[string]string{
				{"rel": "self", "href": "https://api/orders/ORDER-1"},
				{"rel": "approve", "href": "https://paypal/approve/ORDER-1"},
			},
		})
	})
	mux.HandleFunc("/v2/checkout/orders/ORDER-1/capture", captureHandler)
	mux.HandleFunc("/v2/checkout/orders/ORDER-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     "ORDER-1",
			"status": "COMPLETED",
			"purchase_units": []map[string]any{
				{"custom_id": intentID},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func completedCapture(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     "ORDER-1",
		"status": "COMPLETED",
		"purchase_units": []map[string]any{{
			"payments": map[string]any{
				"captures": []map[string]any{{
					"id":        "CAP-1",
					"status":    "COMPLETED",
					"custom_id": "7f1c3a2e-0000-4000-8000-000000000001",
				}},
			},
		}},
	})
}

func TestClient_CreateCharge(t *testing.T) {
	srv, tokenCalls := newServer(t, completedCapture)
	c := New(Config{BaseURL: srv.URL, ClientID: "client", Secret: "secret"})

	ref, err := c.CreateCharge(context.Background(), payments.Charge{
		IntentID: uuid.MustParse("7f1c3a2e-0000-4000-8000-000000000001"),
		Amount:   decimal.RequireFromString("2.63"),
		Currency: "USD",
	})

	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", ref.ID)
	assert.Equal(t, "https://paypal/approve/ORDER-1", ref.RedirectURL)
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenCalls))
}

func TestClient_ConfirmCharge(t *testing.T) {
	srv, tokenCalls := newServer(t, completedCapture)
	c := New(Config{BaseURL: srv.URL, ClientID: "client", Secret: "secret"})

	conf, err := c.ConfirmCharge(context.Background(), "ORDER-1")
	require.NoError(t, err)
	_, err = c.ConfirmCharge(context.Background(), "ORDER-1")
	require.NoError(t, err)

	assert.Equal(t, payments.ChargeApproved, conf.Status)
	assert.Equal(t, "ORDER-1", conf.TransactionID)
	assert.Equal(t, "7f1c3a2e-0000-4000-8000-000000000001", conf.Reference)
	// token reaproveitado
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenCalls))
}

func TestClient_ConfirmAlreadyCaptured(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"name":    "UNPROCESSABLE_ENTITY",
			"message": "The requested action could not be performed",
			"details": []map[string]string{{"issue": "ORDER_ALREADY_CAPTURED"}},
		})
	})
	c := New(Config{BaseURL: srv.URL, ClientID: "client", Secret: "secret"})

	conf, err := c.ConfirmCharge(context.Background(), "ORDER-1")

	require.NoError(t, err)
	assert.Equal(t, payments.ChargeApproved, conf.Status)
	assert.Equal(t, "7f1c3a2e-0000-4000-8000-000000000001", conf.Reference)
}

func TestClient_ConfirmDeclined(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":     "ORDER-1",
			"status": "COMPLETED",
			"purchase_units": []map[string]any{{
				"payments": map[string]any{
					"captures": []map[string]any{{"id": "CAP-1", "status": "DECLINED"}},
				},
			}},
		})
	})
	c := New(Config{BaseURL: srv.URL, ClientID: "client", Secret: "secret"})

	conf, err := c.ConfirmCharge(context.Background(), "ORDER-1")

	require.NoError(t, err)
	assert.Equal(t, payments.ChargeDeclined, conf.Status)
}

func TestClient_ServerError(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"name": "INTERNAL_SERVER_ERROR", "message": "boom"})
	})
	c := New(Config{BaseURL: srv.URL, ClientID: "client", Secret: "secret"})

	_, err := c.ConfirmCharge(context.Background(), "ORDER-1")

	assert.ErrorContains(t, err, "status 500")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
