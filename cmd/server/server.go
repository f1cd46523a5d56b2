package main

import (
	"fmt"
	"time"

	"github.com/JaimeStill/tawarruq/internal/api"
	"github.com/JaimeStill/tawarruq/internal/config"
	"github.com/JaimeStill/tawarruq/internal/infrastructure"
)

// server owns the process: shared infrastructure, the routed handler tree,
// and the listener serving it.
type server struct {
	infra *infrastructure.Infrastructure
	http  *httpServer
}

func newServer(cfg *config.Config) (*server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, fmt.Errorf("api module: %w", err)
	}

	router := probeRouter(infra.Lifecycle)
	router.Mount(apiModule)

	return &server{
		infra: infra,
		http:  newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

// start brings up infrastructure before the listener so no request arrives
// ahead of migrations. Readiness flips once every startup hook returns.
func (s *server) start() error {
	if err := s.infra.Start(); err != nil {
		return err
	}
	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()
	return nil
}

func (s *server) shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown", "timeout", timeout)
	return s.infra.Lifecycle.Shutdown(timeout)
}
