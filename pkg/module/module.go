// Package module mounts independent HTTP surfaces under single-segment path
// prefixes. Each Module owns its middleware chain and sees request paths with
// its prefix removed.
package module

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JaimeStill/tawarruq/pkg/middleware"
)

// Module serves an inner handler beneath a prefix such as "/api".
type Module struct {
	prefix string
	inner  http.Handler
	chain  middleware.Chain
}

// New creates a Module. prefix must be one path segment with a leading slash.
func New(prefix string, inner http.Handler) (*Module, error) {
	if !validPrefix(prefix) {
		return nil, fmt.Errorf("module prefix %q must be a single segment like /api", prefix)
	}
	return &Module{prefix: prefix, inner: inner}, nil
}

// Prefix returns the mount prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Use appends middleware to the module chain. The first registered is outermost.
func (m *Module) Use(mw ...func(http.Handler) http.Handler) {
	m.chain.Use(mw...)
}

// ServeHTTP strips the prefix and runs the inner handler through the chain.
func (m *Module) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	inner := r.Clone(r.Context())
	inner.URL.Path = strings.TrimPrefix(r.URL.Path, m.prefix)
	if inner.URL.Path == "" {
		inner.URL.Path = "/"
	}
	inner.URL.RawPath = ""
	m.chain.Then(m.inner).ServeHTTP(w, inner)
}

func validPrefix(prefix string) bool {
	rest, ok := strings.CutPrefix(prefix, "/")
	return ok && rest != "" && !strings.Contains(rest, "/")
}

// Router picks a mounted Module by the first path segment and sends
// everything else to a fallback ServeMux. Trailing slashes are trimmed
// before dispatch so "/api/transactions/" reaches "/transactions".
type Router struct {
	modules  map[string]*Module
	fallback *http.ServeMux
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{
		modules:  make(map[string]*Module),
		fallback: http.NewServeMux(),
	}
}

// Mount registers m under its prefix, replacing any module already there.
func (rt *Router) Mount(m *Module) {
	rt.modules[m.prefix] = m
}

// HandleNative registers a route on the fallback mux, outside every module.
func (rt *Router) HandleNative(pattern string, handler http.HandlerFunc) {
	rt.fallback.HandleFunc(pattern, handler)
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p := r.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
		r.URL.Path = strings.TrimRight(p, "/")
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}
	}

	if m, ok := rt.modules[firstSegment(r.URL.Path)]; ok {
		m.ServeHTTP(w, r)
		return
	}
	rt.fallback.ServeHTTP(w, r)
}

func firstSegment(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	return "/" + seg
}
