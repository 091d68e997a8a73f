package router

import (
	"context"
	"log/slog"

	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
)

// LogRouter records side effects in the log instead of delivering them.
// Used by local runs that have no router to talk to.
type LogRouter struct {
	logger *slog.Logger
}

func NewLogRouter(logger *slog.Logger) *LogRouter {
	return &LogRouter{logger: logger.With("module", "log_router")}
}

func (r *LogRouter) SendMessage(ctx context.Context, req protocol.MessageRequest) (map[string]any, error) {
	r.logger.InfoContext(ctx, "message",
		"community_id", req.CommunityID,
		"platform", req.Platform,
		"channel_id", req.ChannelID,
		"message", req.Message)

	return map[string]any{"delivered": false, "message": req.Message}, nil
}

func (r *LogRouter) CallModule(ctx context.Context, req protocol.ModuleRequest) (map[string]any, error) {
	r.logger.InfoContext(ctx, "module call",
		"community_id", req.CommunityID,
		"module", req.Module,
		"action", req.Action,
		"parameters", req.Parameters)

	return map[string]any{"delivered": false, "module": req.Module}, nil
}
