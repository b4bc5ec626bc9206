package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rezkam/torque/internal/application/auth"
	"github.com/rezkam/torque/internal/broker"
	"github.com/rezkam/torque/internal/domain"
	"github.com/rezkam/torque/internal/httpapi"
	"github.com/rezkam/torque/internal/store/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	s := memory.New()
	require.NoError(t, s.CreateApplication(context.Background(), domain.Application{ID: "app-1", Name: "test"}))
	apiKey, err := auth.CreateAPIKey(context.Background(), s, "app-1", "svc", "torque", "v1", "test key", nil)
	require.NoError(t, err)

	authenticator := auth.NewAuthenticator(s, auth.Config{})
	t.Cleanup(func() { _ = authenticator.Shutdown(context.Background()) })

	b := broker.NewMemory(4)
	server := httpapi.NewServer(s, b, httpapi.Config{DefaultTimeout: 30})
	router := httpapi.NewRouter(server, authenticator, httpapi.RouterConfig{})

	return httptest.NewServer(router), apiKey
}

func TestHealth_NoAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEnqueue_RequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/?url=http://example.com/hook", "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEnqueue_RejectsInvalidURL(t *testing.T) {
	srv, apiKey := newTestServer(t)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/?url=not-a-url", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnqueue_RoundTripsToStatus(t *testing.T) {
	srv, apiKey := newTestServer(t)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/?url=http://example.com/hook&timeout=5", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	location := resp.Header.Get("Location")
	require.NotEmpty(t, location)

	statusReq, err := http.NewRequest(http.MethodGet, srv.URL+location, nil)
	require.NoError(t, err)
	statusReq.Header.Set("Authorization", "Bearer "+apiKey)

	statusResp, err := http.DefaultClient.Do(statusReq)
	require.NoError(t, err)
	defer statusResp.Body.Close()
	require.Equal(t, http.StatusOK, statusResp.StatusCode)
}

func TestStatus_RejectsNonBearerAuthorization(t *testing.T) {
	srv, apiKey := newTestServer(t)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/?url=http://example.com/hook", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	location := resp.Header.Get("Location")

	statusReq, err := http.NewRequest(http.MethodGet, srv.URL+location, nil)
	require.NoError(t, err)
	statusReq.Header.Set("Authorization", "not-a-bearer-token")
	statusResp, err := http.DefaultClient.Do(statusReq)
	require.NoError(t, err)
	defer statusResp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, statusResp.StatusCode)
}
