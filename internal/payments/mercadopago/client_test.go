package mercadopago_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servifield/servifield/internal/payments/mercadopago"
	"github.com/servifield/servifield/internal/provider/resilience"
)

func TestClient_ListPaymentMethods(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_methods", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		response := []map[string]interface{}{
			{"id": "visa", "name": "Visa", "payment_type_id": "credit_card", "status": "active"},
			{"id": "account_money", "name": "Dinero en cuenta", "payment_type_id": "account_money", "status": "active"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := mercadopago.NewClient(mercadopago.ClientConfig{
		AccessToken: "test-token",
		BaseURL:     server.URL,
		HTTPClient:  resilience.NewClient(resilience.DefaultClientConfig("test")),
	})

	methods, err := client.ListPaymentMethods(context.Background())
	require.NoError(t, err)
	require.Len(t, methods, 2)

	assert.Equal(t, "visa", methods[0].ID)
	assert.Equal(t, "credit_card", methods[0].PaymentTypeID)
	assert.Equal(t, "active", methods[1].Status)
}

func TestClient_GetPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/12345", r.URL.Path)

		response := map[string]interface{}{
			"id":                 12345,
			"status":             "approved",
			"status_detail":      "accredited",
			"transaction_amount": 1500.50,
			"currency_id":        "ARS",
			"external_reference": "wo_789",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := mercadopago.NewClient(mercadopago.ClientConfig{
		AccessToken: "test-token",
		BaseURL:     server.URL,
		HTTPClient:  resilience.NewClient(resilience.DefaultClientConfig("test")),
	})

	payment, err := client.GetPayment(context.Background(), 12345)
	require.NoError(t, err)
	require.NotNil(t, payment)

	assert.Equal(t, int64(12345), payment.ID)
	assert.Equal(t, "approved", payment.Status)
	assert.Equal(t, 1500.50, payment.TransactionAmount)
	assert.Equal(t, "wo_789", payment.ExternalReference)
}

func TestClient_GetPayment_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := mercadopago.NewClient(mercadopago.ClientConfig{
		AccessToken: "test-token",
		BaseURL:     server.URL,
		HTTPClient:  resilience.NewClient(resilience.DefaultClientConfig("test")),
	})

	_, err := client.GetPayment(context.Background(), 99)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestClient_CreatePreference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got mercadopago.PreferenceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Len(t, got.Items, 1)
		assert.Equal(t, "Reparación de caldera", got.Items[0].Title)
		assert.Equal(t, "wo_123", got.ExternalReference)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"id":         "pref_abc",
			"init_point": "https://mercadopago.example/checkout/pref_abc",
		})
	}))
	defer server.Close()

	client := mercadopago.NewClient(mercadopago.ClientConfig{
		AccessToken: "test-token",
		BaseURL:     server.URL,
		HTTPClient:  resilience.NewClient(resilience.DefaultClientConfig("test")),
	})

	pref, err := client.CreatePreference(context.Background(), mercadopago.PreferenceRequest{
		Items: []mercadopago.PreferenceItem{
			{Title: "Reparación de caldera", Quantity: 1, UnitPrice: 25000, CurrencyID: "ARS"},
		},
		ExternalReference: "wo_123",
	})
	require.NoError(t, err)
	require.NotNil(t, pref)

	assert.Equal(t, "pref_abc", pref.ID)
	assert.Contains(t, pref.InitPoint, "pref_abc")
}

func TestClient_CheckStatus_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := resilience.DefaultClientConfig("test")
	cfg.MaxRetries = 1
	cfg.InitialInterval = 1
	client := mercadopago.NewClient(mercadopago.ClientConfig{
		AccessToken: "test-token",
		BaseURL:     server.URL,
		HTTPClient:  resilience.NewClient(cfg),
	})

	err := client.CheckStatus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_Name(t *testing.T) {
	client := mercadopago.NewClient(mercadopago.ClientConfig{AccessToken: "test-token"})
	assert.Equal(t, "mercadopago", client.Name())
}

func TestClient_Probe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]string{})
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := mercadopago.NewClient(mercadopago.ClientConfig{
		AccessToken: "test-token",
		BaseURL:     server.URL,
		Registry:    registry,
	})

	state, err := client.Probe().CheckState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", string(state.Status))
	assert.Equal(t, 1, registry.ProviderCount())
}
