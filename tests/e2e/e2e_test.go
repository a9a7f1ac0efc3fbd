//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

type registerResponse struct {
	AuthToken string `json:"authtoken"`
	Email     string `json:"email"`
}

type loginResponse struct {
	AuthToken string `json:"authtoken"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

type itemResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
	AgeDays     int     `json:"age_days"`
	AgeYears    float64 `json:"age_years"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// TestE2ESmoke drives a running API through the account and listing flows.
func TestE2ESmoke(t *testing.T) {
	baseURL := envOrDefault("SECONDCHANCE_BASE_URL", "http://localhost:3060")
	waitForReady(t, baseURL)

	suffix := ulid.Make().String()
	email := fmt.Sprintf("e2e-%s@example.com", suffix)
	password := "e2e-password"

	var reg registerResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/auth/register", nil, map[string]any{
		"email":     email,
		"password":  password,
		"firstName": "Ada",
		"lastName":  "Lovelace",
	}, &reg)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from register, got %d", status)
	}
	if reg.AuthToken == "" || reg.Email != email {
		t.Fatalf("register response missing fields: %+v", reg)
	}

	var dup errorResponse
	status = doJSON(t, http.MethodPost, baseURL+"/api/auth/register", nil, map[string]any{
		"email": email, "password": password, "firstName": "Ada",
	}, &dup)
	if status != http.StatusConflict || dup.Code != "USER_EXISTS" {
		t.Fatalf("expected 409 USER_EXISTS on duplicate register, got %d %q", status, dup.Code)
	}

	var login loginResponse
	status = doJSON(t, http.MethodPost, baseURL+"/api/auth/login", nil, map[string]any{
		"email": email, "password": password,
	}, &login)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from login, got %d", status)
	}
	if login.Name != "Ada" || login.AuthToken == "" {
		t.Fatalf("unexpected login response: %+v", login)
	}

	var wrong errorResponse
	status = doJSON(t, http.MethodPost, baseURL+"/api/auth/login", nil, map[string]any{
		"email": email, "password": "not-" + password,
	}, &wrong)
	if status != http.StatusUnauthorized || wrong.Code != "WRONG_PASSWORD" {
		t.Fatalf("expected 401 WRONG_PASSWORD, got %d %q", status, wrong.Code)
	}

	var updated map[string]string
	status = doJSON(t, http.MethodPut, baseURL+"/api/auth/update", map[string]string{"email": email},
		map[string]any{"name": "Augusta"}, &updated)
	if status != http.StatusOK || updated["authtoken"] == "" {
		t.Fatalf("expected 200 with token from update, got %d %v", status, updated)
	}

	itemName := "e2e-lamp-" + suffix
	var created itemResponse
	status = doJSON(t, http.MethodPost, baseURL+"/api/secondchance/items", nil, map[string]any{
		"name":        itemName,
		"category":    "Lighting",
		"condition":   "Good",
		"description": "Brass desk lamp",
		"age_days":    730,
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from item create, got %d", status)
	}
	if created.ID == "" || created.AgeYears != 2.0 {
		t.Fatalf("unexpected created item: %+v", created)
	}

	itemURL := baseURL + "/api/secondchance/items/" + created.ID

	var fetched itemResponse
	status = doJSON(t, http.MethodGet, itemURL, nil, nil, &fetched)
	if status != http.StatusOK || fetched.Name != itemName {
		t.Fatalf("expected created item from GET, got %d %+v", status, fetched)
	}

	var found []itemResponse
	query := url.Values{"name": {itemName}, "category": {"Lighting"}}
	status = doJSON(t, http.MethodGet, baseURL+"/api/secondchance/search?"+query.Encode(), nil, nil, &found)
	if status != http.StatusOK || len(found) != 1 || found[0].ID != created.ID {
		t.Fatalf("expected search to find item %s, got %d %+v", created.ID, status, found)
	}

	var upload map[string]string
	status = doJSON(t, http.MethodPut, itemURL, nil, map[string]any{
		"condition": "Fair",
		"age_days":  365,
	}, &upload)
	if status != http.StatusOK || upload["uploaded"] != "success" {
		t.Fatalf("expected uploaded=success, got %d %v", status, upload)
	}

	status = doJSON(t, http.MethodGet, itemURL, nil, nil, &fetched)
	if status != http.StatusOK || fetched.Condition != "Fair" || fetched.AgeYears != 1.0 {
		t.Fatalf("update not visible: %d %+v", status, fetched)
	}

	var deleted map[string]string
	status = doJSON(t, http.MethodDelete, itemURL, nil, nil, &deleted)
	if status != http.StatusOK || deleted["deleted"] != "success" {
		t.Fatalf("expected deleted=success, got %d %v", status, deleted)
	}

	var gone errorResponse
	status = doJSON(t, http.MethodGet, itemURL, nil, nil, &gone)
	if status != http.StatusNotFound || gone.Code != "ITEM_NOT_FOUND" {
		t.Fatalf("expected 404 ITEM_NOT_FOUND after delete, got %d %q", status, gone.Code)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func waitForReady(t *testing.T, baseURL string) {
	t.Helper()

	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/readyz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("API at %s did not become ready", baseURL)
}

func doJSON(t *testing.T, method, target string, headers map[string]string, body any, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		buf = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, target, buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && resp.ContentLength != 0 {
			t.Fatalf("decode response: %v", err)
		}
	}

	return resp.StatusCode
}
