// Package cmd turns command-line settings into the backends the binaries run
// on.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/agentgraph/pkg/persistence"
	"github.com/dukex/agentgraph/pkg/persistence/file"
	"github.com/dukex/agentgraph/pkg/persistence/postgresql"
	"github.com/dukex/agentgraph/pkg/persistence/redis"
)

var (
	ErrUnsupportedPersistence = errors.New("unsupported persistence provider")
	ErrUnsupportedEventBus    = errors.New("unsupported event bus provider")
	ErrUnsupportedMemoryStore = errors.New("unsupported memory store")
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "redis", "rediss"}

// NewPersistence opens the persistence named by databaseURL. An empty URL
// means no persistence and returns nil. A bare path is a file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	if databaseURL == "" {
		return nil, nil
	}

	provider, err := parsePersistenceProvider(databaseURL)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Opening persistence", "provider", provider)

	switch provider {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return p, nil
	case "redis", "rediss":
		p, err := redis.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return p, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) (string, error) {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file", nil
	}

	for _, supported := range supportedPersistenceProviders {
		if scheme == supported {
			return scheme, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedPersistence, scheme)
}
