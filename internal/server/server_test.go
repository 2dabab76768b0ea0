package server_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketport/ticketport/internal/api"
	"github.com/ticketport/ticketport/internal/importer"
	"github.com/ticketport/ticketport/internal/server"
	"github.com/ticketport/ticketport/internal/storage/memory"
)

func TestDetermineAccess(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr        string
		allowRemote bool
		wantRemote  bool
		wantErr     bool
	}{
		{"127.0.0.1:0", false, false, false},
		{"localhost:8484", false, false, false},
		{"[::1]:8484", false, false, false},
		{"0.0.0.0:0", false, false, true},
		{":8484", false, false, true},
		{"10.1.2.3:8484", true, true, false},
		{"no-port", false, false, true},
	}
	for _, tt := range tests {
		remote, err := server.DetermineAccess(tt.addr, tt.allowRemote)
		if tt.wantErr {
			assert.Error(t, err, tt.addr)
			continue
		}
		require.NoError(t, err, tt.addr)
		assert.Equal(t, tt.wantRemote, remote, tt.addr)
	}
}

func newHandler(t *testing.T) http.Handler {
	t.Helper()
	store := memory.New()
	h, err := api.NewHandler(api.Config{Importer: importer.New(store, importer.Options{}), Store: store})
	require.NoError(t, err)
	handler, err := server.NewHandler(h)
	require.NoError(t, err)
	return handler
}

func TestHealthz(t *testing.T) {
	ts := httptest.NewServer(newHandler(t))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestImportRoutesRequireAuth(t *testing.T) {
	ts := httptest.NewServer(newHandler(t))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/import/tickets", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, server.Config{Addr: addr, ImportTimeout: time.Second}, newHandler(t))
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeRejectsRemoteBind(t *testing.T) {
	err := server.Serve(context.Background(), server.Config{Addr: "0.0.0.0:0"}, http.NotFoundHandler())
	assert.Error(t, err)
}
