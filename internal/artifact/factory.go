package artifact

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Options selects and configures a Store backend.
type Options struct {
	Backend  string // auto|disk|redis|memory
	Dir      string
	RedisURL string
	TTL      time.Duration
}

// NewStore creates the configured backend. Under "auto" it prefers
// redis when a URL is set, otherwise local disk.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = "auto"
	}
	switch backend {
	case "redis":
		return NewRedisStore(ctx, opts.RedisURL, opts.TTL)
	case "disk":
		return NewDiskStore(opts.Dir, opts.TTL)
	case "memory":
		return NewMemStore(opts.TTL), nil
	case "auto":
		if strings.TrimSpace(opts.RedisURL) != "" {
			return NewRedisStore(ctx, opts.RedisURL, opts.TTL)
		}
		return NewDiskStore(opts.Dir, opts.TTL)
	default:
		return nil, fmt.Errorf("invalid ARTIFACT_BACKEND: %q (expected auto|disk|redis|memory)", opts.Backend)
	}
}
