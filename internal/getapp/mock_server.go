// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package getapp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Mock server defaults.
const (
	MockUsername = "probe"
	MockPassword = "secret"
	MockToken    = "mock-access-token"
	MockImportID = "import-0001"
)

// MockServer is an in-process GetApp API for tests. Zero configuration gives a
// server on which a full scenario passes.
type MockServer struct {
	*httptest.Server

	mu          sync.Mutex
	statuses    []string
	statusIdx   int
	deliveryURL string
	failures    map[string]int
	delays      map[string]time.Duration
	calls       map[string]int
	bodies      map[string][]byte
	gpkg        []byte
}

// NewMockServer starts a mock API. Callers must Close it.
func NewMockServer() *MockServer {
	m := &MockServer{
		statuses:    []string{"InProgress", ImportStatusDone},
		deliveryURL: "/downloads/" + MockImportID + ".gpkg",
		failures:    make(map[string]int),
		delays:      make(map[string]time.Duration),
		calls:       make(map[string]int),
		bodies:      make(map[string][]byte),
		gpkg:        []byte("GPKG mock geopackage payload"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", m.handleLogin)
	mux.HandleFunc("POST /api/device/discover", m.handleOK)
	mux.HandleFunc("POST /api/map/import/create", m.handleCreateImport)
	mux.HandleFunc("GET /api/map/import/status/{id}", m.handleImportStatus)
	mux.HandleFunc("POST /api/delivery/updateDownloadStatus", m.handleOK)
	mux.HandleFunc("POST /api/delivery/prepareDelivery", m.handleOK)
	mux.HandleFunc("GET /api/delivery/preparedDelivery/{id}", m.handlePrepared)
	mux.HandleFunc("POST /api/map/inventory/updates", m.handleOK)
	mux.HandleFunc("GET /api/{service}/checkHealth", m.handleOK)
	mux.HandleFunc("GET /downloads/{file}", m.handleDownload)

	m.Server = httptest.NewServer(m.intercept(mux))
	return m
}

// SetImportStatuses sets the sequence returned by the status endpoint. The
// last value repeats.
func (m *MockServer) SetImportStatuses(statuses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = statuses
	m.statusIdx = 0
}

// SetDeliveryURL sets the url returned for a prepared delivery.
func (m *MockServer) SetDeliveryURL(u string) {
	m.mu.Lock()
	m.deliveryURL = u
	m.mu.Unlock()
}

// Fail makes every request to path answer with status.
func (m *MockServer) Fail(path string, status int) {
	m.mu.Lock()
	m.failures[path] = status
	m.mu.Unlock()
}

// Delay holds requests to path for d or until the client gives up.
func (m *MockServer) Delay(path string, d time.Duration) {
	m.mu.Lock()
	m.delays[path] = d
	m.mu.Unlock()
}

// Calls returns how often path was requested.
func (m *MockServer) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

// LastBody returns the most recent request body sent to path.
func (m *MockServer) LastBody(path string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bodies[path]
}

// GPKGSize is the size of the served GeoPackage.
func (m *MockServer) GPKGSize() int { return len(m.gpkg) }

func (m *MockServer) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		m.mu.Lock()
		m.calls[r.URL.Path]++
		if len(body) > 0 {
			m.bodies[r.URL.Path] = body
		}
		status := m.failures[r.URL.Path]
		delay := m.delays[r.URL.Path]
		m.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") && r.URL.Path != "/api/login" &&
			r.Header.Get("Authorization") != "Bearer "+MockToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *MockServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Username != MockUsername || req.Password != MockPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{AccessToken: MockToken, RefreshToken: "mock-refresh"})
}

func (m *MockServer) handleOK(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (m *MockServer) handleCreateImport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, CreateImportResponse{ImportRequestID: MockImportID, Status: "Pending"})
}

func (m *MockServer) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	status := ""
	if len(m.statuses) > 0 {
		idx := m.statusIdx
		if idx >= len(m.statuses) {
			idx = len(m.statuses) - 1
		}
		status = m.statuses[idx]
		m.statusIdx++
	}
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, ImportStatusResponse{ImportRequestID: r.PathValue("id"), Status: status})
}

func (m *MockServer) handlePrepared(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	u := m.deliveryURL
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, PreparedDeliveryResponse{CatalogID: r.PathValue("id"), Status: "done", URL: u})
}

func (m *MockServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.PathValue("file"), ".gpkg"):
		w.Header().Set("Content-Type", "application/geopackage+sqlite3")
		_, _ = w.Write(m.gpkg)
	case strings.HasSuffix(r.PathValue("file"), ".json"):
		writeJSON(w, http.StatusOK, map[string]string{"productId": MockImportID})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
