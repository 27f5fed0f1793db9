package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testApp(t *testing.T) *App {
	t.Helper()

	t.Setenv("TRAQ_TOKEN_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("TRAQ_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("TRAQ_ARGON2_ITERATIONS", "1")
	t.Setenv("TRAQ_ARGON2_PARALLELISM", "1")

	cfg := LoadConfig()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_FailsWithoutTokenSecret(t *testing.T) {
	t.Setenv("TRAQ_TOKEN_SECRET", "")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := New(LoadConfig(), log); err == nil {
		t.Fatalf("expected startup error without TRAQ_TOKEN_SECRET")
	}
}

func TestApp_HealthAndReadiness(t *testing.T) {
	a := testApp(t)
	h := a.httpHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
}

func TestApp_ReadinessRequiresDB(t *testing.T) {
	t.Setenv("TRAQ_READINESS_REQUIRE_DB", "true")

	a := testApp(t)
	h := a.httpHandler()

	// Memory mode with the readiness gate on: not ready until a DB exists.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rec.Code)
	}
}

func TestApp_LoginThroughFullStack(t *testing.T) {
	a := testApp(t)
	h := a.httpHandler()

	body := `{"username":"admin@example.com","password":"Admin123!"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("security headers not applied: %q", got)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Role != "admin" || resp.AccessToken == "" {
		t.Fatalf("resp = %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me = %d, body %s", rec.Code, rec.Body)
	}
}

func TestApp_MetricsEndpoint(t *testing.T) {
	a := testApp(t)
	h := a.httpHandler()

	// Any request through the chain lands in the request counters.
	warm := httptest.NewRecorder()
	h.ServeHTTP(warm, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if warm.Code != http.StatusOK {
		t.Fatalf("healthz = %d", warm.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("metrics output missing runtime collectors")
	}
	if !strings.Contains(body, "traq_http_requests_total") {
		t.Fatalf("metrics output missing request counters")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("log defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.ReadHeaderTimeout != 5*time.Second {
		t.Fatalf("ReadHeaderTimeout = %v", cfg.ReadHeaderTimeout)
	}
	if cfg.DBSchema != "traq" {
		t.Fatalf("DBSchema = %q", cfg.DBSchema)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty (memory mode)", cfg.DatabaseURL)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TRAQ_TEST_STR", "  value  ")
	t.Setenv("TRAQ_TEST_BOOL", "true")
	t.Setenv("TRAQ_TEST_INT", "42")
	t.Setenv("TRAQ_TEST_DUR", "90s")
	t.Setenv("TRAQ_TEST_LIST", "a, b ,,c")

	if got := EnvString("TRAQ_TEST_STR", "x"); got != "value" {
		t.Fatalf("EnvString = %q", got)
	}
	if !EnvBool("TRAQ_TEST_BOOL", false) {
		t.Fatalf("EnvBool = false")
	}
	if got := EnvInt("TRAQ_TEST_INT", 1); got != 42 {
		t.Fatalf("EnvInt = %d", got)
	}
	if got := EnvDuration("TRAQ_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration = %v", got)
	}
	if got := EnvStrings("TRAQ_TEST_LIST", nil); len(got) != 3 || got[2] != "c" {
		t.Fatalf("EnvStrings = %v", got)
	}

	// Invalid values fall back to defaults.
	t.Setenv("TRAQ_TEST_INT", "-3")
	if got := EnvInt("TRAQ_TEST_INT", 7); got != 7 {
		t.Fatalf("EnvInt fallback = %d", got)
	}
	t.Setenv("TRAQ_TEST_DUR", "soon")
	if got := EnvDuration("TRAQ_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("EnvDuration fallback = %v", got)
	}
}
