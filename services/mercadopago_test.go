package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) *MercadoPagoGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	gw, err := NewMercadoPagoGateway(srv.URL, "test-token")
	require.NoError(t, err)
	return gw
}

func TestMercadoPagoCreatePreference(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bill1_bob", body["external_reference"])
		assert.Equal(t, "approved", body["auto_return"])
		items := body["items"].([]interface{})
		item := items[0].(map[string]interface{})
		assert.Equal(t, 333.33, item["unit_price"])
		assert.Equal(t, "ARS", item["currency_id"])
		backURLs := body["back_urls"].(map[string]interface{})
		assert.Equal(t, "https://rata.example.com/bill/bill1?status=success", backURLs["success"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://mp.example.com/checkout/pref-1"}`))
	})

	url, err := gw.CreatePreference(context.Background(), PaymentPreference{
		ItemID: "bill1", Title: "Pizza", Amount: decimal.RequireFromString("333.333"),
		Currency: "ARS", ExternalReference: "bill1_bob",
		SuccessURL: "https://rata.example.com/bill/bill1?status=success",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://mp.example.com/checkout/pref-1", url)
}

func TestMercadoPagoGetPayment(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/123456", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":123456,"status":"approved","external_reference":"bill1_bob"}`))
	})

	info, err := gw.GetPayment(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "123456", info.ID)
	assert.Equal(t, "approved", info.Status)
	assert.Equal(t, "bill1_bob", info.ExternalReference)
}

func TestMercadoPagoErrors(t *testing.T) {
	var calls atomic.Int32
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/checkout/preferences":
			_, _ = w.Write([]byte(`{"id":"pref-2"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid access token"}`))
		}
	})

	_, err := gw.GetPayment(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get payment 1")

	_, err = gw.CreatePreference(context.Background(), PaymentPreference{Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init_point")

	before := calls.Load()
	_, err = gw.GetPayment(context.Background(), "abc")
	require.Error(t, err)
	assert.Equal(t, before, calls.Load(), "non-numeric ids never reach the gateway")
}

func TestMercadoPagoInvalidBaseURL(t *testing.T) {
	_, err := NewMercadoPagoGateway("::not a url", "token")
	assert.Error(t, err)
}
