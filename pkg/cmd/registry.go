package cmd

import (
	"log/slog"
	"net/http"

	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
	"github.com/penguintechinc/waddlebot-sub014/pkg/registry"
	"github.com/penguintechinc/waddlebot-sub014/pkg/router"
)

// NewRegistry registers every built-in node executor. Without a router URL
// messages and module calls are only logged.
func NewRegistry(logger *slog.Logger, routerURL, routerAPIKey string, queries protocol.QueryRunner) *registry.Registry {
	httpClient := &http.Client{Timeout: router.DefaultTimeout}

	deps := registry.Dependencies{
		QueryRunner: queries,
		HTTPClient:  httpClient,
	}

	if routerURL == "" {
		logRouter := router.NewLogRouter(logger)
		deps.Messenger = logRouter
		deps.ModuleCaller = logRouter
	} else {
		client := router.NewClient(routerURL, routerAPIKey, httpClient)
		deps.Messenger = client
		deps.ModuleCaller = client
	}

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes(deps)

	return reg
}
