// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package contract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ManuGH/getprobe/internal/getapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specPath = "testdata/getapp.yaml"

func jsonHeader() http.Header {
	return http.Header{"Content-Type": []string{"application/json"}}
}

func TestLoad(t *testing.T) {
	v, err := Load(context.Background(), specPath)
	require.NoError(t, err)
	assert.Equal(t, 12, v.Operations())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), "testdata/missing.yaml")
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("openapi: 3.0.3\ninfo: {}\npaths: {}\n"), 0o644))
	_, err = Load(context.Background(), bad)
	require.Error(t, err)
}

func TestValidateResponse(t *testing.T) {
	v, err := Load(context.Background(), specPath)
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		url     string
		status  int
		body    string
		wantErr bool
	}{
		{"status ok", http.MethodGet, "http://getapp.local/api/map/import/status/abc", 200, `{"status":"Done"}`, false},
		{"status missing", http.MethodGet, "http://getapp.local/api/map/import/status/abc", 200, `{"importRequestId":"abc"}`, true},
		{"status wrong type", http.MethodGet, "http://getapp.local/api/map/import/status/abc", 200, `{"status":3}`, true},
		{"login ok", http.MethodPost, "http://getapp.local/api/login", 200, `{"accessToken":"t"}`, false},
		{"login empty token", http.MethodPost, "http://getapp.local/api/login", 200, `{"accessToken":""}`, true},
		{"create 201", http.MethodPost, "http://other.host/api/map/import/create", 201, `{"importRequestId":"x"}`, false},
		{"undocumented status ignored", http.MethodGet, "http://getapp.local/api/map/checkHealth", 204, `{}`, false},
		{"download not documented", http.MethodGet, "http://getapp.local/downloads/x.gpkg", 200, `binary`, false},
		{"method not documented", http.MethodDelete, "http://getapp.local/api/login", 200, `{}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, nil)
			err := v.ValidateResponse(context.Background(), req, tt.status, jsonHeader(), []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidator_MockServerHonoursContract(t *testing.T) {
	v, err := Load(context.Background(), specPath)
	require.NoError(t, err)

	srv := getapp.NewMockServer()
	defer srv.Close()
	ctx := context.Background()
	c := getapp.New(srv.URL, getapp.Options{Validator: v, StrictContract: true})

	require.NoError(t, c.Login(ctx, getapp.MockUsername, getapp.MockPassword))
	id, err := c.CreateImport(ctx, "getprobe-1000", getapp.MapProperties{ZoomLevel: 12})
	require.NoError(t, err)
	_, err = c.ImportStatus(ctx, id)
	require.NoError(t, err)
	prepared, err := c.PreparedDelivery(ctx, id)
	require.NoError(t, err)
	_, err = c.Download(ctx, prepared.URL, getapp.FileTypeGPKG)
	require.NoError(t, err)
	for _, ep := range getapp.HealthEndpoints {
		require.NoError(t, c.CheckHealth(ctx, ep))
	}
}
