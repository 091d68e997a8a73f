package models

import "time"

// TriggerEvent is an incoming platform event offered to a workflow's trigger nodes.
type TriggerEvent struct {
	Type        string         `json:"type"                   validate:"required,oneof=command message cron event"`
	Platform    string         `json:"platform,omitempty"`
	CommunityID string         `json:"community_id,omitempty"`
	Command     string         `json:"command,omitempty"`
	Args        []string       `json:"args,omitempty"`
	Message     string         `json:"message,omitempty"`
	User        string         `json:"user,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	ChannelID   string         `json:"channel_id,omitempty"`
	EventName   string         `json:"event_name,omitempty"`
	Time        time.Time      `json:"time,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}
