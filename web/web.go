package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates
var templatesFS embed.FS

// GetTemplatesFS returns the embedded templates filesystem
func GetTemplatesFS() fs.FS {
	sub, _ := fs.Sub(templatesFS, "templates")
	return sub
}

// EmailTemplates parses every email template. Each file defines one named
// template ("qualified", "invitation").
func EmailTemplates() (*template.Template, error) {
	return template.ParseFS(GetTemplatesFS(), "email/*.html")
}
