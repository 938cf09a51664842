package console

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wispberry-tech/wispy-admin/core"
	"github.com/wispberry-tech/wispy-admin/entities"
	"github.com/wispberry-tech/wispy-admin/store/sqlstore"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testConsole struct {
	server *httptest.Server
	client *http.Client // keeps the session cookie
	clock  *fakeClock
	store  *sqlstore.Store
}

func mustCreateTestConsole(t *testing.T, provision bool) *testConsole {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
	sessions, err := core.NewSessionStore(core.Config{
		Storage: core.NewMemoryStorage(),
		Clock:   clock,
		Policy:  core.DefaultAdminPolicy(),
	})
	if err != nil {
		t.Fatalf("NewSessionStore() error = %v", err)
	}

	backend, err := sqlstore.OpenSQLite(":memory:", sqlstore.DefaultOptions())
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	if provision {
		if err := backend.Schema().EnsureSchema(context.Background()); err != nil {
			t.Fatalf("EnsureSchema() error = %v", err)
		}
	}

	gws, err := entities.NewGateways(backend)
	if err != nil {
		t.Fatalf("NewGateways() error = %v", err)
	}
	h, err := New(Config{Sessions: sessions, Resources: ResourcesFor(gws)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &testConsole{server: srv, client: mustCreateCookieClient(t, srv), clock: clock, store: backend}
}

func mustCreateCookieClient(t *testing.T, srv *httptest.Server) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}
	return &http.Client{Transport: srv.Client().Transport, Jar: jar}
}

func (c *testConsole) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	return c.send(t, c.client, "", method, path, body)
}

// send issues a request with the given client, adding a bearer token when set.
func (c *testConsole) send(t *testing.T, client *http.Client, token, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.server.URL+path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode %s %s response: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func (c *testConsole) login(t *testing.T) string {
	t.Helper()
	status, body := c.do(t, http.MethodPost, "/admin/login", LoginRequest{Identifier: "admin@club.example", Secret: "pw"})
	if status != http.StatusOK || body["authenticated"] != true {
		t.Fatalf("login = %d %v", status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %v", body)
	}
	return token
}

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without sessions succeeded")
	}

	sessions, err := core.NewSessionStore(core.Config{Storage: core.NewMemoryStorage()})
	if err != nil {
		t.Fatalf("NewSessionStore() error = %v", err)
	}
	gws, err := entities.NewGateways(&sqlstore.Store{})
	if err != nil {
		t.Fatalf("NewGateways() error = %v", err)
	}
	res := NewResource(gws.News)
	if _, err := New(Config{Sessions: sessions, Resources: []Resource{res, res}}); err == nil {
		t.Error("New() with a duplicate kind succeeded")
	}
}

func TestHealth(t *testing.T) {
	c := mustCreateTestConsole(t, true)
	status, body := c.do(t, http.MethodGet, "/health", nil)
	if status != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("GET /health = %d %v", status, body)
	}
}

func TestSessionEndpoints(t *testing.T) {
	c := mustCreateTestConsole(t, true)

	status, body := c.do(t, http.MethodGet, "/admin/session", nil)
	if status != http.StatusOK || body["authenticated"] != false {
		t.Fatalf("session before login = %d %v", status, body)
	}

	status, body = c.do(t, http.MethodPost, "/admin/login", LoginRequest{Identifier: "coach@club.example", Secret: "pw"})
	if status != http.StatusUnauthorized || body["error"] != "Invalid credentials" {
		t.Errorf("login with non-admin = %d %v", status, body)
	}

	status, _ = c.do(t, http.MethodPost, "/admin/login", "{not json")
	if status != http.StatusBadRequest {
		t.Errorf("login with bad body = %d, want 400", status)
	}

	c.login(t)
	status, body = c.do(t, http.MethodGet, "/admin/session", nil)
	if status != http.StatusOK || body["authenticated"] != true {
		t.Fatalf("session after login = %d %v", status, body)
	}
	session, _ := body["session"].(map[string]any)
	if session["subject"] != "admin@club.example" {
		t.Errorf("session = %v", session)
	}

	status, body = c.do(t, http.MethodPost, "/admin/logout", nil)
	if status != http.StatusOK || body["message"] != "Logged out" {
		t.Errorf("logout = %d %v", status, body)
	}
	// logout twice is fine
	if status, _ = c.do(t, http.MethodPost, "/admin/logout", nil); status != http.StatusOK {
		t.Errorf("second logout = %d", status)
	}

	_, body = c.do(t, http.MethodGet, "/admin/session", nil)
	if body["authenticated"] != false {
		t.Errorf("session after logout = %v", body)
	}
}

func TestAPI_RequiresAdminSession(t *testing.T) {
	c := mustCreateTestConsole(t, true)

	status, body := c.do(t, http.MethodGet, "/api/news", nil)
	if status != http.StatusUnauthorized || body["error"] != "Admin session required" {
		t.Fatalf("GET /api/news without session = %d %v", status, body)
	}

	c.login(t)
	if status, _ = c.do(t, http.MethodGet, "/api/news", nil); status != http.StatusOK {
		t.Fatalf("GET /api/news with session = %d", status)
	}

	c.clock.Advance(core.DefaultSessionTimeout)
	if status, _ = c.do(t, http.MethodGet, "/api/news", nil); status != http.StatusUnauthorized {
		t.Errorf("GET /api/news after expiry = %d, want 401", status)
	}
	_, body = c.do(t, http.MethodGet, "/admin/session", nil)
	if body["authenticated"] != false {
		t.Errorf("session after expiry = %v", body)
	}
}

func TestAPI_AnonymousClientRejectedWhileAdminLoggedIn(t *testing.T) {
	c := mustCreateTestConsole(t, true)
	token := c.login(t)

	anonymous := &http.Client{Transport: c.server.Client().Transport}
	status, body := c.send(t, anonymous, "", http.MethodGet, "/api/news", nil)
	if status != http.StatusUnauthorized || body["error"] != "Admin session required" {
		t.Errorf("anonymous GET /api/news = %d %v, want 401", status, body)
	}
	status, _ = c.send(t, anonymous, "", http.MethodPost, "/api/news", map[string]any{"title": "Injected"})
	if status != http.StatusUnauthorized {
		t.Errorf("anonymous POST /api/news = %d, want 401", status)
	}
	if _, body = c.send(t, anonymous, "", http.MethodGet, "/admin/session", nil); body["authenticated"] != false {
		t.Errorf("anonymous session = %v", body)
	}
	if status, _ = c.send(t, anonymous, "not-the-token", http.MethodGet, "/api/news", nil); status != http.StatusUnauthorized {
		t.Errorf("GET /api/news with a wrong bearer token = %d, want 401", status)
	}

	// a bearer token from the login response works without cookies
	if status, _ = c.send(t, anonymous, token, http.MethodGet, "/api/news", nil); status != http.StatusOK {
		t.Errorf("GET /api/news with bearer token = %d, want 200", status)
	}

	// an anonymous logout must not end the admin's session
	if status, _ = c.send(t, anonymous, "", http.MethodPost, "/admin/logout", nil); status != http.StatusOK {
		t.Errorf("anonymous logout = %d", status)
	}
	if status, _ = c.do(t, http.MethodGet, "/api/news", nil); status != http.StatusOK {
		t.Errorf("GET /api/news after anonymous logout = %d, want 200", status)
	}

	// the cookie-holding client can end it
	c.do(t, http.MethodPost, "/admin/logout", nil)
	if status, _ = c.send(t, anonymous, token, http.MethodGet, "/api/news", nil); status != http.StatusUnauthorized {
		t.Errorf("GET /api/news with token after logout = %d, want 401", status)
	}
}

func TestAPI_Kinds(t *testing.T) {
	c := mustCreateTestConsole(t, true)
	c.login(t)

	status, body := c.do(t, http.MethodGet, "/api/", nil)
	if status != http.StatusOK {
		t.Fatalf("GET /api/ = %d %v", status, body)
	}
	kinds, _ := body["kinds"].([]any)
	var got []string
	for _, k := range kinds {
		got = append(got, k.(string))
	}
	want := "community_highlight,live_match,news,product,registration,sport"
	if strings.Join(got, ",") != want {
		t.Errorf("kinds = %v, want %s", got, want)
	}
}

func TestAPI_CRUD(t *testing.T) {
	c := mustCreateTestConsole(t, true)
	c.login(t)

	status, body := c.do(t, http.MethodPost, "/api/product", map[string]any{
		"name":      "Home jersey",
		"price":     49.9,
		"stock":     12,
		"available": true,
	})
	if status != http.StatusCreated {
		t.Fatalf("create = %d %v", status, body)
	}
	created, _ := body["data"].(map[string]any)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("create returned no id: %v", body)
	}

	status, body = c.do(t, http.MethodPatch, "/api/product/"+id, map[string]any{"stock": 10})
	if status != http.StatusOK {
		t.Fatalf("update = %d %v", status, body)
	}

	status, body = c.do(t, http.MethodGet, "/api/product/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("get = %d %v", status, body)
	}
	data := body["data"].(map[string]any)["data"].(map[string]any)
	if data["stock"] != float64(10) || data["name"] != "Home jersey" || data["price"] != 49.9 {
		t.Errorf("get data = %v", data)
	}

	status, body = c.do(t, http.MethodGet, "/api/product?orderBy=name&dir=asc", nil)
	if status != http.StatusOK {
		t.Fatalf("list = %d %v", status, body)
	}
	if list, _ := body["data"].([]any); len(list) != 1 {
		t.Errorf("list = %v", body["data"])
	}

	status, body = c.do(t, http.MethodDelete, "/api/product/"+id, nil)
	if status != http.StatusOK || body["message"] != "Deleted" {
		t.Fatalf("delete = %d %v", status, body)
	}
	if status, _ = c.do(t, http.MethodGet, "/api/product/"+id, nil); status != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", status)
	}
}

func TestAPI_Errors(t *testing.T) {
	c := mustCreateTestConsole(t, true)
	c.login(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantKind   string
	}{
		{"unknown kind", http.MethodGet, "/api/fixture", nil, http.StatusNotFound, ""},
		{"malformed body", http.MethodPost, "/api/news", "{", http.StatusBadRequest, "validation"},
		{"unknown field", http.MethodPost, "/api/news", map[string]any{"title": "x", "views": 3}, http.StatusBadRequest, "validation"},
		{"missing required", http.MethodPost, "/api/registration", map[string]any{"email": "a@example.com"}, http.StatusBadRequest, "validation"},
		{"bad order field", http.MethodGet, "/api/news?orderBy=views", nil, http.StatusBadRequest, "validation"},
		{"update missing id", http.MethodPatch, "/api/news/nope", map[string]any{"title": "x"}, http.StatusBadRequest, "validation"},
		{"empty patch", http.MethodPatch, "/api/news/nope", map[string]any{}, http.StatusBadRequest, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := c.do(t, tt.method, tt.path, tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (%v)", status, tt.wantStatus, body)
			}
			if tt.wantKind != "" && body["errorKind"] != tt.wantKind {
				t.Errorf("errorKind = %v, want %s", body["errorKind"], tt.wantKind)
			}
			if body["error"] == "" || body["error"] == nil {
				t.Errorf("response has no error message: %v", body)
			}
		})
	}
}

func TestAPI_UnprovisionedStoreIsServiceUnavailable(t *testing.T) {
	c := mustCreateTestConsole(t, false)
	c.login(t)

	status, body := c.do(t, http.MethodGet, "/api/sport", nil)
	if status != http.StatusServiceUnavailable || body["errorKind"] != "resource_missing" {
		t.Fatalf("list = %d %v", status, body)
	}
	if msg, _ := body["error"].(string); strings.Contains(msg, "no such table") {
		t.Errorf("error %q leaks the backend message", msg)
	}
}
