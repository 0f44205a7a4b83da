package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/embed"
)

// New builds the store backend selected by cfg. The embedder is shared
// with the caller; the store never closes it.
func New(ctx context.Context, cfg config.StoreConfig, embedder embed.Embedder) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendLocal:
		dir := cfg.DataDir
		if dir == "" {
			dir = ".codescope"
		}
		return NewLocalStore(dir, embedder)
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend requires store.postgres_dsn")
		}
		return NewPostgresStore(ctx, cfg.PostgresDSN, embedder)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
