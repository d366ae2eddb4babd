// Package openapi serves the API description and a Swagger UI.
package openapi

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

const (
	swaggerUIVersion = "5.11.0"
	cacheMaxAge      = time.Hour
)

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui.css" crossorigin="anonymous">
  <style>body { margin: 0; }</style>
</head>
<body>
  <div id="docs"></div>
  <script src="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui-bundle.js" crossorigin="anonymous"></script>
  <script>
    SwaggerUIBundle({
      url: {{.SpecURL}},
      dom_id: "#docs",
      validatorUrl: null,
      supportedSubmitMethods: ["get", "post"]
    });
  </script>
</body>
</html>
`))

// Document returns the API description converted to JSON.
func Document() ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(openAPIYAML, &doc); err != nil {
		return nil, fmt.Errorf("parsing openapi.yaml: %w", err)
	}

	return json.MarshalIndent(doc, "", "  ")
}

// Mount registers /openapi.yaml, /openapi.json and /docs on r.
func Mount(r chi.Router) error {
	asJSON, err := Document()
	if err != nil {
		return err
	}

	var page bytes.Buffer
	if err := docsPage.Execute(&page, struct {
		Title, Version, SpecURL string
	}{"Bone SOP API", swaggerUIVersion, "/openapi.json"}); err != nil {
		return fmt.Errorf("rendering docs page: %w", err)
	}

	r.Get("/openapi.yaml", static("application/yaml", openAPIYAML, true))
	r.Get("/openapi.json", static("application/json", asJSON, true))
	r.Get("/docs", static("text/html; charset=utf-8", page.Bytes(), false))

	return nil
}

func static(contentType string, body []byte, cacheable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)

		if cacheable {
			w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(cacheMaxAge.Seconds())))
		}

		_, _ = w.Write(body)
	}
}
