// Package routes declares HTTP endpoints as a tree of prefixed groups that
// registers on a ServeMux and documents itself into an OpenAPI spec.
package routes

import (
	"net/http"
	"slices"

	"github.com/JaimeStill/tawarruq/pkg/openapi"
)

// Route binds an HTTP method and pattern to a handler.
// OpenAPI, when set, documents the route in the generated spec.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
	OpenAPI *openapi.Operation
}

// Group shares a path prefix and tags across its routes and children.
// Children without tags inherit the nearest ancestor's.
type Group struct {
	Prefix   string
	Tags     []string
	Routes   []Route
	Children []Group
	Schemas  map[string]*openapi.Schema
}

// Register adds every route in groups to mux under its full pattern.
func Register(mux *http.ServeMux, groups ...Group) {
	walk(groups, "", nil, func(prefix string, _ []string, g *Group) {
		for _, r := range g.Routes {
			mux.HandleFunc(r.Method+" "+prefix+r.Pattern, r.Handler)
		}
	})
}

// Document adds group schemas and every route carrying an operation to spec.
func Document(spec *openapi.Spec, groups ...Group) {
	walk(groups, "", nil, func(prefix string, tags []string, g *Group) {
		spec.Components.AddSchemas(g.Schemas)
		for _, r := range g.Routes {
			if r.OpenAPI == nil {
				continue
			}
			if len(r.OpenAPI.Tags) == 0 {
				r.OpenAPI.Tags = slices.Clone(tags)
			}
			spec.AddOperation(r.Method, prefix+r.Pattern, r.OpenAPI)
		}
	})
}

func walk(groups []Group, prefix string, tags []string, visit func(string, []string, *Group)) {
	for i := range groups {
		g := &groups[i]
		t := tags
		if len(g.Tags) > 0 {
			t = g.Tags
		}
		visit(prefix+g.Prefix, t, g)
		walk(g.Children, prefix+g.Prefix, t, visit)
	}
}
