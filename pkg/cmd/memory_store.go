package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/agentgraph/pkg/nodes/memory"
	goredis "github.com/redis/go-redis/v9"
)

// NewMemoryStore opens the store behind memory nodes. An empty URL or
// "memory" keeps entries in process; a redis URL keeps them in Redis, with
// an optional "ttl" query parameter such as ttl=1h. The returned close
// function releases the store.
func NewMemoryStore(ctx context.Context, url string) (memory.Store, func() error, error) {
	noop := func() error { return nil }

	switch {
	case url == "", url == "memory":
		return memory.NewInMemoryStore(), noop, nil
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedMemoryStore, url)
	}

	url, ttl, err := splitTTL(url)
	if err != nil {
		return nil, nil, err
	}

	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid memory store url: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, nil, fmt.Errorf("failed to connect to memory store: %w", err)
	}

	return memory.NewRedisStore(client, ttl), client.Close, nil
}

// splitTTL removes the ttl query parameter, which go-redis does not accept.
func splitTTL(url string) (string, time.Duration, error) {
	base, query, found := strings.Cut(url, "?")
	if !found {
		return url, 0, nil
	}

	var (
		ttl  time.Duration
		kept []string
	)

	for _, param := range strings.Split(query, "&") {
		value, ok := strings.CutPrefix(param, "ttl=")
		if !ok {
			kept = append(kept, param)

			continue
		}

		d, err := time.ParseDuration(value)
		if err != nil {
			return "", 0, fmt.Errorf("invalid memory store ttl %q: %w", value, err)
		}

		ttl = d
	}

	if len(kept) > 0 {
		base += "?" + strings.Join(kept, "&")
	}

	return base, ttl, nil
}
