package source

import (
	"fmt"
	"log/slog"

	"github.com/mmcdole/covergen/internal/adapter"
	"github.com/mmcdole/covergen/internal/adapter/source/jellyfin"
	"github.com/mmcdole/covergen/internal/service"
)

// NewClient creates the media server client for one configured server.
// This factory function abstracts away the specific backend implementation.
func NewClient(cfg adapter.ServerConfig, logger *slog.Logger) (service.Server, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("server %q: URL is required", cfg.Name)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("server %q: API key is required", cfg.Name)
	}

	switch cfg.Type {
	case adapter.SourceTypeEmby:
		return jellyfin.NewClient(cfg.Name, jellyfin.FlavorEmby, cfg.URL, cfg.APIKey, cfg.UserID, logger), nil

	case adapter.SourceTypeJellyfin:
		return jellyfin.NewClient(cfg.Name, jellyfin.FlavorJellyfin, cfg.URL, cfg.APIKey, cfg.UserID, logger), nil

	default:
		return nil, fmt.Errorf("server %q: unknown server type: %s", cfg.Name, cfg.Type)
	}
}

// NewClientsFromConfig creates a client for every configured server
func NewClientsFromConfig(cfg *adapter.Config, logger *slog.Logger) ([]service.Server, error) {
	servers := make([]service.Server, 0, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		srv, err := NewClient(sc, logger)
		if err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, nil
}
