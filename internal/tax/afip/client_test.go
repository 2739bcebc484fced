package afip_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servifield/servifield/internal/provider/resilience"
	"github.com/servifield/servifield/internal/tax/afip"
)

func dummyResponse(app, db, auth string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <FEDummyResponse xmlns="http://ar.gov.afip.dif.FEV1/">
      <FEDummyResult>
        <AppServer>%s</AppServer>
        <DbServer>%s</DbServer>
        <AuthServer>%s</AuthServer>
      </FEDummyResult>
    </FEDummyResponse>
  </soap:Body>
</soap:Envelope>`, app, db, auth)
}

func TestClient_FEDummy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "text/xml")
		assert.Equal(t, "http://ar.gov.afip.dif.FEV1/FEDummy", r.Header.Get("SOAPAction"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "FEDummy")

		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		fmt.Fprint(w, dummyResponse("OK", "OK", "OK"))
	}))
	defer server.Close()

	client := afip.NewClient(afip.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("test")),
	})

	status, err := client.FEDummy(context.Background())
	require.NoError(t, err)
	require.NotNil(t, status)

	assert.Equal(t, "OK", status.AppServer)
	assert.Equal(t, "OK", status.DbServer)
	assert.Equal(t, "OK", status.AuthServer)
	assert.True(t, status.OK())
}

func TestClient_CheckStatus_AllTiersUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		fmt.Fprint(w, dummyResponse("OK", "OK", "OK"))
	}))
	defer server.Close()

	client := afip.NewClient(afip.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("test")),
	})

	require.NoError(t, client.CheckStatus(context.Background()))
}

func TestClient_CheckStatus_TierDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		fmt.Fprint(w, dummyResponse("OK", "DOWN", "OK"))
	}))
	defer server.Close()

	client := afip.NewClient(afip.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("test")),
	})

	err := client.CheckStatus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db=DOWN")
}

func TestClient_FEDummy_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := resilience.DefaultClientConfig("test")
	cfg.MaxRetries = 1
	cfg.InitialInterval = 1

	client := afip.NewClient(afip.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(cfg),
	})

	_, err := client.FEDummy(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClient_Name(t *testing.T) {
	client := afip.NewClient(afip.ClientConfig{})
	assert.Equal(t, "afip", client.Name())
}

func TestServerStatus_OK(t *testing.T) {
	up := &afip.ServerStatus{AppServer: "OK", DbServer: "OK", AuthServer: "OK"}
	assert.True(t, up.OK())

	down := &afip.ServerStatus{AppServer: "OK", DbServer: "DOWN", AuthServer: "OK"}
	assert.False(t, down.OK())
}
