package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirrobot01/dbforge/pkg/config"
	"github.com/sirrobot01/dbforge/pkg/database"
	"github.com/sirrobot01/dbforge/pkg/export"
	"github.com/sirrobot01/dbforge/pkg/query"
	"github.com/sirrobot01/dbforge/pkg/runtime"
	"github.com/sirrobot01/dbforge/pkg/schema"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

// MockRuntimeClient implements runtime.Client for testing
type MockRuntimeClient struct{}

func (m *MockRuntimeClient) Close() error                                          { return nil }
func (m *MockRuntimeClient) Ping(ctx context.Context) error                        { return nil }
func (m *MockRuntimeClient) PullImage(ctx context.Context, imageName string) error { return nil }
func (m *MockRuntimeClient) CreateContainer(ctx context.Context, cfg *runtime.ContainerConfig) (string, error) {
	return "test-container-id", nil
}
func (m *MockRuntimeClient) StartContainer(ctx context.Context, id string) error { return nil }
func (m *MockRuntimeClient) StopContainer(ctx context.Context, id string) error  { return nil }
func (m *MockRuntimeClient) RemoveContainer(ctx context.Context, id string, force bool) error {
	return nil
}
func (m *MockRuntimeClient) RemoveContainerByName(ctx context.Context, name string) error {
	return nil
}
func (m *MockRuntimeClient) GetContainerStatus(ctx context.Context, id string) (string, error) {
	return "running", nil
}
func (m *MockRuntimeClient) GetContainerStats(ctx context.Context, id string) (*runtime.ContainerStats, error) {
	return &runtime.ContainerStats{}, nil
}
func (m *MockRuntimeClient) GetContainerLogs(ctx context.Context, id string, tail int) (string, error) {
	return "test logs", nil
}
func (m *MockRuntimeClient) DeleteVolume(ctx context.Context, name string) error { return nil }

// noopGateway skips the live readiness probe during tests.
type noopGateway struct{}

func (noopGateway) WaitReady(ctx context.Context, inst *storage.Instance) error { return nil }
func (noopGateway) Bootstrap(ctx context.Context, inst *storage.Instance, ddl string) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxRunningInstances: 8,
		InstanceCPULimit:    0.25,
		InstanceMemoryLimit: 256 * 1024 * 1024,
		PortRanges: map[string]config.PortRange{
			"postgresql": {Start: 42432, End: 42441},
			"redis":      {Start: 42379, End: 42388},
		},
	}
}

func setupTestServer(t *testing.T) (*Server, http.Handler, storage.Storage) {
	t.Helper()

	tmpDir := t.TempDir()
	store, err := storage.New(tmpDir+"/test.db", tmpDir)
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	manager := database.NewManager(store, &MockRuntimeClient{}, testConfig(), noopGateway{})
	introspector := schema.NewIntrospector()
	server := NewServer(manager, store, query.NewRouter(), introspector, export.NewExporter(introspector))
	return server, server.Handler(), store
}

func ownedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("X-Owner-ID", "7")
	return req
}

func TestHealthEndpoint(t *testing.T) {
	_, handler, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got '%v'", response["status"])
	}
}

func TestListEngines(t *testing.T) {
	_, handler, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/engines", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var engines []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &engines); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(engines) != 5 {
		t.Errorf("expected 5 engines, got %d", len(engines))
	}
}

func TestMissingOwnerHeader(t *testing.T) {
	_, handler, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/databases", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without X-Owner-ID, got %d", w.Code)
	}
}

func TestListInstancesEmpty(t *testing.T) {
	_, handler, _ := setupTestServer(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, ownedRequest("GET", "/api/v1/databases", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestCreateInstanceValidation(t *testing.T) {
	_, handler, _ := setupTestServer(t)

	tests := []struct {
		name           string
		body           map[string]interface{}
		expectedStatus int
	}{
		{
			name:           "empty body",
			body:           map[string]interface{}{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing engine",
			body: map[string]interface{}{
				"name": "test-db",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown engine",
			body: map[string]interface{}{
				"name":   "test-db",
				"engine": "sqlite",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown version",
			body: map[string]interface{}{
				"name":    "test-db",
				"engine":  "postgresql",
				"version": "9.6",
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.body)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, ownedRequest("POST", "/api/v1/databases", body))

			if w.Code != tc.expectedStatus {
				t.Errorf("expected status %d, got %d: %s", tc.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateInstance(t *testing.T) {
	_, handler, _ := setupTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"name":   "Sales DB",
		"engine": "postgresql",
	})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, ownedRequest("POST", "/api/v1/databases", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["status"] != "running" {
		t.Errorf("expected status running, got %v", response["status"])
	}
	if _, leaked := response["password"]; leaked {
		t.Error("password must not appear in responses")
	}
}

func TestInstanceNotFound(t *testing.T) {
	_, handler, _ := setupTestServer(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, ownedRequest("GET", "/api/v1/databases/nonexistent-id", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func createTestInstance(t *testing.T, store storage.Storage, name string) *storage.Instance {
	t.Helper()

	inst := &storage.Instance{
		ID:            "test-" + name,
		OwnerID:       7,
		Name:          name,
		Engine:        "postgresql",
		Version:       "16",
		Status:        storage.StatusRunning,
		Host:          "localhost",
		Port:          42432,
		Username:      "testuser",
		Database:      name,
		ContainerID:   "test-container-id",
		ContainerName: "dbforge_7_postgresql_" + name,
		CreatedAt:     time.Now(),
	}
	if err := store.CreateInstance(inst); err != nil {
		t.Fatalf("failed to create test instance: %v", err)
	}
	return inst
}

func TestForeignOwnerForbidden(t *testing.T) {
	_, handler, store := setupTestServer(t)
	inst := createTestInstance(t, store, "private")

	req := httptest.NewRequest("GET", "/api/v1/databases/"+inst.ID, nil)
	req.Header.Set("X-Owner-ID", "8")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status 403 for foreign owner, got %d", w.Code)
	}
}

func TestGetLogs(t *testing.T) {
	_, handler, store := setupTestServer(t)
	inst := createTestInstance(t, store, "logsdb")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, ownedRequest("GET", "/api/v1/databases/"+inst.ID+"/logs", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["logs"] != "test logs" {
		t.Errorf("expected logs 'test logs', got '%v'", response["logs"])
	}
}

func TestGetConnectionString(t *testing.T) {
	_, handler, store := setupTestServer(t)
	inst := createTestInstance(t, store, "conn")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, ownedRequest("GET", "/api/v1/databases/"+inst.ID+"/connection-string", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["connectionString"] == "" {
		t.Error("expected a connection string")
	}
}

func TestQueryValidation(t *testing.T) {
	_, handler, store := setupTestServer(t)
	inst := createTestInstance(t, store, "querydb")

	body, _ := json.Marshal(map[string]string{})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, ownedRequest("POST", "/api/v1/databases/"+inst.ID+"/query", body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for empty query, got %d", w.Code)
	}
}

func TestPublicQueryByToken(t *testing.T) {
	_, handler, store := setupTestServer(t)

	inst := &storage.Instance{
		ID:        "test-public",
		OwnerID:   7,
		Name:      "public",
		Engine:    "redis",
		Status:    storage.StatusRunning,
		Host:      "localhost",
		Port:      42379,
		APIToken:  "publictesttoken0123456789abcdef",
		CreatedAt: time.Now(),
	}
	if err := store.CreateInstance(inst); err != nil {
		t.Fatalf("failed to seed instance: %v", err)
	}

	// No X-Owner-ID header: the token in the URL is the credential. The
	// unsupported command comes back as a failure payload, proving the
	// executor ran.
	body, _ := json.Marshal(map[string]string{"query": "SUBSCRIBE ch"})
	req := httptest.NewRequest("POST", "/api/v1/public/"+inst.APIToken+"/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var result map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if success, _ := result["success"].(bool); success {
		t.Error("expected a failure payload for an unsupported command")
	}

	// Unknown tokens resolve to nothing.
	req = httptest.NewRequest("POST", "/api/v1/public/not-a-token/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for an unknown token, got %d", w.Code)
	}
}

func TestBearerTokenVerification(t *testing.T) {
	_, handler, _ := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"name": "cli"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, ownedRequest("POST", "/api/v1/tokens", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var created map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	raw, _ := created["token"].(string)

	// A presented bearer token must verify against the claimed owner.
	req := ownedRequest("GET", "/api/v1/databases", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 with a valid bearer token, got %d", w.Code)
	}

	req = ownedRequest("GET", "/api/v1/databases", nil)
	req.Header.Set("Authorization", "Bearer dfg_live_bogus")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 with a bogus bearer token, got %d", w.Code)
	}
}

func TestAccountTokenLifecycle(t *testing.T) {
	_, handler, _ := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"name": "ci"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, ownedRequest("POST", "/api/v1/tokens", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var created map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	raw, _ := created["token"].(string)
	if raw == "" {
		t.Fatal("expected the raw token in the creation response")
	}
	id, _ := created["id"].(string)

	// The list never exposes the raw token.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, ownedRequest("GET", "/api/v1/tokens", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte(raw)) {
		t.Error("raw token leaked in the token list")
	}

	// Foreign owners cannot revoke.
	req := httptest.NewRequest("DELETE", "/api/v1/tokens/"+id, nil)
	req.Header.Set("X-Owner-ID", "8")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, ownedRequest("DELETE", "/api/v1/tokens/"+id, nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d: %s", w.Code, w.Body.String())
	}
}
