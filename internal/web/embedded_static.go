package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// EmbeddedFS holds the page templates and the static assets
//
//go:embed static/* templates/*
var EmbeddedFS embed.FS

// ListEmbeddedFiles returns a list of all embedded files for debugging
func ListEmbeddedFiles() ([]string, error) {
	var files []string
	err := fs.WalkDir(EmbeddedFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// EmbeddedStaticHandler returns a Gin handler for serving embedded static files
func EmbeddedStaticHandler(prefix string) gin.HandlerFunc {
	staticFS, err := fs.Sub(EmbeddedFS, "static")
	if err != nil {
		panic("Failed to create embedded static filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(staticFS))

	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Request.URL.Path, prefix)
		if path == "" || path == "/" || strings.HasSuffix(path, "/") {
			// no directory listings
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		c.Request.URL.Path = path
		c.Header("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}
