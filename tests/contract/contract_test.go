// Package contract validates API requests and responses against the OpenAPI document.
package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"golang.org/x/crypto/bcrypt"

	"github.com/secondchance/secondchance/internal/auth"
	"github.com/secondchance/secondchance/internal/handler"
	"github.com/secondchance/secondchance/internal/metrics"
	"github.com/secondchance/secondchance/internal/middleware"
	"github.com/secondchance/secondchance/internal/server"
	"github.com/secondchance/secondchance/internal/service"
	"github.com/secondchance/secondchance/internal/store"
	"github.com/secondchance/secondchance/internal/testutil"
)

// specPath returns OPENAPI_SPEC_PATH or docs/api/openapi.yaml under the project root.
func specPath(t *testing.T) string {
	t.Helper()

	if path := os.Getenv("OPENAPI_SPEC_PATH"); path != "" {
		return path
	}
	root, err := testutil.ProjectRoot()
	if err != nil {
		t.Fatalf("project root: %v", err)
	}
	return filepath.Join(root, "docs", "api", "openapi.yaml")
}

// loadSpec loads and validates the OpenAPI document. Servers are cleared
// so routes match whatever host the test server listens on.
func loadSpec(t *testing.T) (*openapi3.T, routers.Router) {
	t.Helper()

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(specPath(t))
	if err != nil {
		t.Fatalf("load OpenAPI document: %v", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI document is invalid: %v", err)
	}

	doc.Servers = nil
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		t.Fatalf("build router from document: %v", err)
	}
	return doc, router
}

// startAPI serves the real router on a memory store.
func startAPI(t *testing.T) string {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher, err := auth.NewHasher(auth.AlgoBcrypt, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("contract-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	gw := store.NewMemory()
	rec := metrics.NewInMemory()

	h := server.NewRouter(server.RouterDeps{
		Logger:         logger,
		Health:         handler.NewHealthHandler(gw, nil),
		Metrics:        handler.NewMetricsHandler(rec),
		Auth:           handler.NewAuthHandler(service.NewIdentityService(gw, hasher, tokens, logger, rec), logger),
		Items:          handler.NewItemHandler(service.NewListingService(gw, nil, logger, rec), logger),
		AuthRateLimit:  middleware.RateLimitConfig{Logger: logger},
		Security:       middleware.SecurityConfig{IsDevelopment: true},
		CORS:           middleware.DefaultCORSConfig(),
		MaxRequestBody: 1 << 20,
	})

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

type contractClient struct {
	t       *testing.T
	baseURL string
	router  routers.Router
	http    *http.Client
}

// call sends a request, validates both sides of the exchange against the
// document, and returns the status and raw body.
func (c *contractClient) call(method, path string, headers map[string]string, body any) (int, []byte) {
	c.t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal payload: %v", err)
		}
	}

	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	route, pathParams, err := c.router.FindRoute(req)
	if err != nil {
		c.t.Fatalf("%s %s is not documented: %v", method, path, err)
	}

	reqInput := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options:    &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc},
	}
	if err := openapi3filter.ValidateRequest(context.Background(), reqInput); err != nil {
		c.t.Errorf("%s %s request does not match document: %v", method, path, err)
	}
	// ValidateRequest drains the body.
	req.Body = io.NopCloser(bytes.NewReader(payload))

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("request %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read response: %v", err)
	}

	respInput := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: reqInput,
		Status:                 resp.StatusCode,
		Header:                 resp.Header,
		Body:                   io.NopCloser(bytes.NewReader(respBody)),
	}
	if err := openapi3filter.ValidateResponse(context.Background(), respInput); err != nil {
		c.t.Errorf("%s %s response %d does not match document: %v\nbody: %s", method, path, resp.StatusCode, err, respBody)
	}

	return resp.StatusCode, respBody
}

func newContractClient(t *testing.T) *contractClient {
	t.Helper()
	_, router := loadSpec(t)
	return &contractClient{
		t:       t,
		baseURL: startAPI(t),
		router:  router,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func TestOpenAPISpecValid(t *testing.T) {
	doc, _ := loadSpec(t)

	expectedPaths := []string{
		"/healthz",
		"/readyz",
		"/api/auth/register",
		"/api/auth/login",
		"/api/auth/update",
		"/api/secondchance/items",
		"/api/secondchance/items/{id}",
		"/api/secondchance/search",
	}
	for _, path := range expectedPaths {
		if doc.Paths.Find(path) == nil {
			t.Errorf("expected path %s in document", path)
		}
	}
}

func TestProbesMatchContract(t *testing.T) {
	c := newContractClient(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		status, _ := c.call(http.MethodGet, path, nil, nil)
		if status != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, status)
		}
	}
}

func TestAuthFlowMatchesContract(t *testing.T) {
	c := newContractClient(t)
	email := testutil.UniqueEmail("contract")

	status, _ := c.call(http.MethodPost, "/api/auth/register", nil, map[string]any{
		"email": email, "password": "s3cret", "firstName": "Grace", "lastName": "Hopper",
	})
	if status != http.StatusOK {
		t.Fatalf("register: expected 200, got %d", status)
	}

	status, _ = c.call(http.MethodPost, "/api/auth/register", nil, map[string]any{
		"email": email, "password": "s3cret",
	})
	if status != http.StatusConflict {
		t.Errorf("duplicate register: expected 409, got %d", status)
	}

	status, _ = c.call(http.MethodPost, "/api/auth/login", nil, map[string]any{
		"email": email, "password": "s3cret",
	})
	if status != http.StatusOK {
		t.Errorf("login: expected 200, got %d", status)
	}

	status, _ = c.call(http.MethodPost, "/api/auth/login", nil, map[string]any{
		"email": email, "password": "wrong",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", status)
	}

	status, _ = c.call(http.MethodPost, "/api/auth/login", nil, map[string]any{
		"email": testutil.UniqueEmail("missing"), "password": "s3cret",
	})
	if status != http.StatusNotFound {
		t.Errorf("unknown user: expected 404, got %d", status)
	}

	status, _ = c.call(http.MethodPut, "/api/auth/update", map[string]string{"email": email}, map[string]any{
		"name": "Amazing Grace",
	})
	if status != http.StatusOK {
		t.Errorf("update: expected 200, got %d", status)
	}

	status, _ = c.call(http.MethodPut, "/api/auth/update", nil, map[string]any{"name": "x"})
	if status != http.StatusBadRequest {
		t.Errorf("update without email header: expected 400, got %d", status)
	}
}

func TestItemLifecycleMatchesContract(t *testing.T) {
	c := newContractClient(t)

	status, body := c.call(http.MethodPost, "/api/secondchance/items", nil, map[string]any{
		"name": "Oak chair", "category": "Furniture", "condition": "Good",
		"description": "Sturdy", "age_days": 400,
	})
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", status)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		t.Fatalf("create response has no id: %s", body)
	}

	itemPath := "/api/secondchance/items/" + created.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"list", http.MethodGet, "/api/secondchance/items", nil, http.StatusOK},
		{"get", http.MethodGet, itemPath, nil, http.StatusOK},
		{"search", http.MethodGet, "/api/secondchance/search?category=Furniture&age_years=2", nil, http.StatusOK},
		{"search bad age", http.MethodGet, "/api/secondchance/search?age_years=old", nil, http.StatusBadRequest},
		{"update", http.MethodPut, itemPath, map[string]any{"condition": "Fair"}, http.StatusOK},
		{"create without name", http.MethodPost, "/api/secondchance/items", map[string]any{"category": "Misc", "name": ""}, http.StatusBadRequest},
		{"delete", http.MethodDelete, itemPath, nil, http.StatusOK},
		{"get deleted", http.MethodGet, itemPath, nil, http.StatusNotFound},
		{"update deleted", http.MethodPut, itemPath, map[string]any{"condition": "Poor"}, http.StatusNotFound},
		{"delete deleted", http.MethodDelete, itemPath, nil, http.StatusNotFound},
	}

	// Steps share one client and run in order, so no subtests.
	for _, tt := range tests {
		tt := tt
		status, body := c.call(tt.method, tt.path, nil, tt.body)
		if status != tt.want {
			t.Errorf("%s: expected %d, got %d: %s", tt.name, tt.want, status, body)
		}
		if status >= 400 && !strings.Contains(string(body), `"code"`) {
			t.Errorf("%s: error body missing code: %s", tt.name, body)
		}
	}
}
