// Package web embeds the single-page analyzer UI.
package web

import (
	"embed"
	"net/http"
)

//go:embed index.html
var content embed.FS

// IndexHandler serves the embedded analyzer page.
func IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := content.ReadFile("index.html")
		if err != nil {
			http.Error(w, "page unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	}
}
