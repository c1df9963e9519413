package handlers

import (
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/Lixing-Zhang/storefront/internal/uploads"
	"github.com/go-chi/chi/v5"
)

// StaticHandler serves uploaded photos and the single-page front-end
type StaticHandler struct {
	uploads  *uploads.Store
	frontend fs.FS
	logger   *slog.Logger
}

// NewStaticHandler creates a handler serving photos from store and the
// front-end bundle from frontendDir
func NewStaticHandler(store *uploads.Store, frontendDir string, logger *slog.Logger) *StaticHandler {
	return &StaticHandler{
		uploads:  store,
		frontend: os.DirFS(frontendDir),
		logger:   logger,
	}
}

// Upload handles GET /static/uploads/{filename}
func (h *StaticHandler) Upload(w http.ResponseWriter, r *http.Request) {
	filePath, ok := h.uploads.Path(chi.URLParam(r, "filename"))
	if !ok {
		WriteError(w, http.StatusNotFound, "Not found", h.logger)
		return
	}
	if info, err := os.Stat(filePath); err != nil || info.IsDir() {
		WriteError(w, http.StatusNotFound, "Not found", h.logger)
		return
	}
	http.ServeFile(w, r, filePath)
}

// Frontend serves the bundle for every other GET path. Existing files are
// served as is and unknown paths fall back to index.html so client-side routes
// work. Unknown /api and /static paths get a JSON 404.
func (h *StaticHandler) Frontend(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		WriteError(w, http.StatusNotFound, "Not found", h.logger)
		return
	}
	if strings.HasPrefix(name, "api") || strings.HasPrefix(name, "static") {
		WriteError(w, http.StatusNotFound, "Not found", h.logger)
		return
	}

	if name != "" {
		if info, err := fs.Stat(h.frontend, name); err == nil && !info.IsDir() {
			http.ServeFileFS(w, r, h.frontend, name)
			return
		}
	}

	if _, err := fs.Stat(h.frontend, "index.html"); err != nil {
		WriteError(w, http.StatusNotFound, "Not found", h.logger)
		return
	}
	http.ServeFileFS(w, r, h.frontend, "index.html")
}
