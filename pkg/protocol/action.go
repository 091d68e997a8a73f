package protocol

import (
	"context"
)

// MessageRequest is a chat message to deliver on a platform channel.
type MessageRequest struct {
	CommunityID string `json:"community_id"`
	Platform    string `json:"platform"`
	ChannelID   string `json:"channel_id"`
	Message     string `json:"message"`
}

// Messenger delivers chat messages to community platforms.
type Messenger interface {
	SendMessage(ctx context.Context, req MessageRequest) (map[string]any, error)
}

// ModuleRequest invokes an installed community module.
type ModuleRequest struct {
	CommunityID string         `json:"community_id"`
	Module      string         `json:"module"`
	Action      string         `json:"action,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ModuleCaller invokes community modules.
type ModuleCaller interface {
	CallModule(ctx context.Context, req ModuleRequest) (map[string]any, error)
}

// QueryRunner runs read-only parameterized queries for data nodes.
type QueryRunner interface {
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}
