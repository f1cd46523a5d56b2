package api

import (
	"net/http"

	"github.com/JaimeStill/tawarruq/internal/config"
	"github.com/JaimeStill/tawarruq/pkg/openapi"
	"github.com/JaimeStill/tawarruq/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain, cfg *config.Config) error {
	certs := domain.Certificates.Handler()

	groups := []routes.Group{
		domain.Transactions.Handler().Routes(),
		domain.Compliance.Handler().Routes(),
		certs.TransactionRoutes(),
		certs.Routes(),
		domain.AuditLog.Handler().Routes(),
	}

	routes.Register(mux, groups...)

	spec, err := document(cfg, groups...).Handler()
	if err != nil {
		return err
	}
	mux.Handle("GET /openapi.json", spec)

	return nil
}

func document(cfg *config.Config, groups ...routes.Group) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)
	routes.Document(spec, groups...)
	return spec
}
