package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed index.html js
var content embed.FS

// IndexTemplate parses the report page. It is executed with the report data
// encoded as a JSON string.
func IndexTemplate() (*template.Template, error) {
	return template.ParseFS(content, "index.html")
}

// Scripts holds the files served under static/js.
func Scripts() (fs.FS, error) {
	return fs.Sub(content, "js")
}
