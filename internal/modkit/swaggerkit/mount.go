// Package swaggerkit serves the generated OpenAPI document and the Swagger UI
package swaggerkit

import (
	"encoding/json"
	"net/http"

	phttp "rollcall/internal/platform/net/http"

	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag/v2"
)

// instance is the name swag registers the generated document under
const instance = "rollcall"

// placeholder is served when the binary was built without generated docs
const placeholder = `{"swagger":"2.0","info":{"title":"rollcall API","version":"dev"},"paths":{}}`

func readDoc() string {
	doc, err := swag.ReadDoc(instance)
	if err != nil {
		return placeholder
	}
	return doc
}

// Mount serves the UI under /api/docs when enabled
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	r.Get("/api/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/docs/", http.StatusPermanentRedirect)
	})
	r.Get("/api/docs/doc.json", serveDoc(readDoc))
	r.Handle("/api/docs/*", httpSwagger.Handler(
		httpSwagger.InstanceName(instance),
		httpSwagger.URL("/api/docs/doc.json"),
	))
}

func serveDoc(read func() string) phttp.Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc map[string]any
		if err := json.Unmarshal([]byte(read()), &doc); err != nil {
			http.Error(w, "swagger document is not valid JSON", http.StatusInternalServerError)
			return
		}
		decorate(doc, "/api/v1")

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(doc)
	}
}
