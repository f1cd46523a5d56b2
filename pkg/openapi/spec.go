// Package openapi builds the OpenAPI 3.1 document served beside the API routes.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// ServeMux wildcards, including the {name...} remainder form.
var muxWildcard = regexp.MustCompile(`\{([^}.]+)(?:\.\.\.)?\}`)

// Spec is the root OpenAPI document.
type Spec struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Servers    []Server            `json:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components *Components         `json:"components,omitempty"`
}

// NewSpec creates an empty document carrying the shared components.
func NewSpec(title, version string) *Spec {
	return &Spec{
		OpenAPI:    "3.1.0",
		Info:       Info{Title: title, Version: version},
		Paths:      make(map[string]PathItem),
		Components: NewComponents(),
	}
}

func (s *Spec) AddServer(url string) {
	s.Servers = append(s.Servers, Server{URL: url})
}

func (s *Spec) SetDescription(desc string) {
	s.Info.Description = desc
}

// AddOperation documents op under a ServeMux-style path.
func (s *Spec) AddOperation(method, path string, op *Operation) {
	path = muxWildcard.ReplaceAllString(path, "{$1}")
	if path == "" {
		path = "/"
	}
	item, ok := s.Paths[path]
	if !ok {
		item = make(PathItem)
		s.Paths[path] = item
	}
	item[strings.ToLower(method)] = op
}

// Handler serializes the document once and returns a handler serving it.
// Later changes to s are not reflected.
func (s *Spec) Handler() (http.Handler, error) {
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal openapi document: %w", err)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", jsonMedia+"; charset=utf-8")
		w.Write(body)
	}), nil
}
