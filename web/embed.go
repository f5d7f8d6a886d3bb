package web

import (
	"embed"
	"fmt"

	"boletos/internal/mounts"
)

//go:embed static
var StaticEmbeddedFS embed.FS

//go:embed templates
var TemplatesEmbeddedFS embed.FS

// Mounts returns the static and templates file mounts. Empty paths use the files
// embedded in the binary.
func Mounts(staticPath, templatesPath string) (static, templates *mounts.FileMount, err error) {
	static, err = mounts.NewFileMount("static", StaticEmbeddedFS, staticPath)
	if err != nil {
		return nil, nil, fmt.Errorf("static file mount error: %w", err)
	}
	templates, err = mounts.NewFileMount("templates", TemplatesEmbeddedFS, templatesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("templates file mount error: %w", err)
	}
	return static, templates, nil
}
