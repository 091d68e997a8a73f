package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/penguintechinc/waddlebot-sub014/pkg/license"
)

var ErrLicenseServerRequired = errors.New("license server url is required when enforcement is enabled")

// LicenseConfig gathers the admission flags.
type LicenseConfig struct {
	ServerURL         string
	APIKey            string
	SigningKey        string
	RedisURL          string
	Enforce           bool
	FreeWorkflowLimit int
}

// NewLicenseController builds the admission controller. When a redis URL is
// given the verdict cache is shared through redis with an in-process fallback.
// The returned closer releases the redis client.
func NewLicenseController(
	ctx context.Context,
	cfg LicenseConfig,
	counter license.WorkflowCounter,
	logger *slog.Logger,
) (*license.Controller, func() error, error) {
	closer := func() error { return nil }

	if cfg.Enforce && cfg.ServerURL == "" {
		return nil, closer, ErrLicenseServerRequired
	}

	opts := []license.Option{
		license.WithLogger(logger),
		license.WithEnforcement(cfg.Enforce),
		license.WithFreeWorkflowLimit(cfg.FreeWorkflowLimit),
	}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, closer, fmt.Errorf("parse redis url: %w", err)
		}

		client := redis.NewClient(redisOpts)
		closer = client.Close

		if err := client.Ping(ctx).Err(); err != nil {
			logger.WarnContext(ctx, "Redis unreachable, license verdicts cached in process until it returns", "error", err)
		}

		cache := license.NewFallbackCache(license.NewRedisCache(client), license.NewMemoryCache(time.Now), logger)
		opts = append(opts, license.WithCache(cache))
	}

	server := license.NewClient(license.ClientConfig{
		BaseURL:    cfg.ServerURL,
		APIKey:     cfg.APIKey,
		SigningKey: []byte(cfg.SigningKey),
	})

	return license.NewController(server, counter, opts...), closer, nil
}
