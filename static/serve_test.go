package static

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ee-insight/config"
	"ee-insight/logging"
)

func setup(t *testing.T) *http.ServeMux {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>{API_BASE}/api</p>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("nope"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{}
	cfg.Server.Static = dir
	cfg.Server.StaticAllowed = []string{"index.html", "*.js"}
	cfg.Server.TemplateVars = map[string]string{"API_BASE": "http://localhost:8080"}

	mux := http.NewServeMux()
	RegisterStaticHandler(mux, cfg, logging.Discard())
	return mux
}

func TestServeIndexWithMacros(t *testing.T) {
	mux := setup(t)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Body.String(); got != "<p>http://localhost:8080/api</p>" {
		t.Errorf("body = %q", got)
	}
}

func TestServeRefusesUnlisted(t *testing.T) {
	mux := setup(t)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/secret.txt", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestServeMissingAllowedFile(t *testing.T) {
	mux := setup(t)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/app.js", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestIsAllowedWildcard(t *testing.T) {
	allowed := []string{"index.html", "*/legend.css"}
	if !isAllowedWildcard("css/legend.css", allowed) {
		t.Error("subfolder pattern should match")
	}
	if isAllowedWildcard("config.yaml", allowed) {
		t.Error("config.yaml should not be allowed")
	}
}
