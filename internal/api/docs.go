package api

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// DocsPrefix is where the API description is served.
const DocsPrefix = "/documentation"

// openAPIJSON renders the embedded document as JSON.
func openAPIJSON() ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(openAPIYAML, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render OpenAPI document: %w", err)
	}
	return data, nil
}

// initDocsRoutes serves the OpenAPI document as YAML and JSON.
func (s *Server) initDocsRoutes() error {
	jsonDoc, err := openAPIJSON()
	if err != nil {
		return err
	}

	g := s.echo.Group(DocsPrefix)
	g.GET("/openapi.yaml", func(c echo.Context) error {
		return c.Blob(http.StatusOK, "application/yaml", openAPIYAML)
	})
	g.GET("/openapi.json", func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, jsonDoc)
	})
	return nil
}
