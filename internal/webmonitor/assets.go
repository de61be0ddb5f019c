package webmonitor

import (
	"net/http"
	"os"
	"path/filepath"
)

// assetHandler serves a file from the build directory when present, otherwise from the
// assets directory. Only the base name of the request path is used.
type assetHandler struct {
	buildDir  string
	assetsDir string
}

func newAssetHandler(buildDir, assetsDir string) *assetHandler {
	return &assetHandler{
		buildDir:  buildDir,
		assetsDir: assetsDir,
	}
}

func (h *assetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(r.URL.Path)
	if filename == "." || filename == "/" {
		http.NotFound(w, r)
		return
	}
	for _, dir := range []string{h.buildDir, h.assetsDir} {
		if dir == "" {
			continue
		}
		if path := filepath.Join(dir, filename); fileExists(path) {
			http.ServeFile(w, r, path)
			return
		}
	}
	http.NotFound(w, r)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
