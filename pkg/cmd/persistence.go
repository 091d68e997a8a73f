// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence"
	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence/file"
	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence/postgresql"
	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

// NewPersistence opens the store named by databaseURL. The query runner for
// data nodes is only available on postgres and is nil otherwise.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, protocol.QueryRunner, error) {
	switch provider := parsePersistenceProvider(databaseURL); provider {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres persistence: %w", err)
		}

		return store, store.QueryRunner(), nil
	case "file":
		logger.InfoContext(ctx, "Using file persistence", "root", databaseURL)

		return file.NewPersistence(databaseURL), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported persistence provider %q (supported: %s)",
			provider, strings.Join(supportedPersistenceProviders, ", "))
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
