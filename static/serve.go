package static

import (
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ee-insight/config"
	"ee-insight/logging"
)

// RegisterStaticHandler serves the map page and its assets from
// cfg.Server.Static. Only whitelisted names are served and {VAR} macros are
// replaced with cfg.Server.TemplateVars.
func RegisterStaticHandler(mux *http.ServeMux, cfg *config.Config, accessLogger *logging.Logger) {
	staticDir := cfg.Server.Static
	if staticDir == "" {
		staticDir = "./static"
	}
	allowed := cfg.Server.StaticAllowed
	vars := cfg.Server.TemplateVars

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		reqPath := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if reqPath == "" {
			reqPath = "index.html"
		}

		if !isAllowedWildcard(reqPath, allowed) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			accessLogger.Write("[STATIC_REFUSED] " + reqPath)
			return
		}

		filePath := filepath.Join(staticDir, filepath.FromSlash(reqPath))
		content, err := os.ReadFile(filePath)
		if err != nil {
			http.NotFound(w, r)
			accessLogger.Write("[STATIC_NOTFOUND] " + reqPath)
			return
		}
		if ct := mime.TypeByExtension(filepath.Ext(filePath)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.Write([]byte(applyTemplateMacros(string(content), vars)))
		accessLogger.Write("[STATIC_OK] " + reqPath)
	})
}

func applyTemplateMacros(content string, vars map[string]string) string {
	for key, val := range vars {
		content = strings.ReplaceAll(content, "{"+key+"}", val)
	}
	return content
}

// isAllowedWildcard matches fileName against the whitelist. "*/x" patterns
// match x in any subfolder.
func isAllowedWildcard(fileName string, allowed []string) bool {
	for _, pattern := range allowed {
		if matched, _ := filepath.Match(pattern, fileName); matched {
			return true
		}
		if strings.HasPrefix(pattern, "*/") && strings.HasSuffix(fileName, pattern[2:]) {
			return true
		}
	}
	return false
}
