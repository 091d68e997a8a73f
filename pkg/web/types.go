// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"time"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

// ExecuteRequest is the body of POST /workflows/:id/execute and POST /communities/:id/events.
type ExecuteRequest struct {
	Type      string         `json:"type"                 validate:"required,oneof=command message cron event"`
	Platform  string         `json:"platform,omitempty"`
	Command   string         `json:"command,omitempty"`
	Args      []string       `json:"args,omitempty"`
	Message   string         `json:"message,omitempty"`
	User      string         `json:"user,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	ChannelID string         `json:"channel_id,omitempty"`
	EventName string         `json:"event_name,omitempty"`
	Time      *time.Time     `json:"time,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// TriggerEvent converts the request into the engine's event for communityID.
func (r ExecuteRequest) TriggerEvent(communityID string) models.TriggerEvent {
	event := models.TriggerEvent{
		Type:        r.Type,
		Platform:    r.Platform,
		CommunityID: communityID,
		Command:     r.Command,
		Args:        r.Args,
		Message:     r.Message,
		User:        r.User,
		UserID:      r.UserID,
		ChannelID:   r.ChannelID,
		EventName:   r.EventName,
		Data:        r.Data,
	}

	if r.Time != nil {
		event.Time = r.Time.UTC()
	}

	return event
}

// DispatchResponse lists the executions started by one platform event.
type DispatchResponse struct {
	Executions []*models.ExecutionResult `json:"executions"`
	Count      int                       `json:"count"`
}

// LicenseResponse is a community's current admission verdict.
type LicenseResponse struct {
	CommunityID   string               `json:"community_id"`
	Tier          models.Tier          `json:"tier"`
	Status        models.LicenseStatus `json:"status"`
	WorkflowLimit *int                 `json:"workflow_limit"`
	Features      []string             `json:"features,omitempty"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
}

func NewLicenseResponse(verdict *models.LicenseVerdict) LicenseResponse {
	return LicenseResponse{
		CommunityID:   verdict.CommunityID,
		Tier:          verdict.Tier,
		Status:        verdict.Status,
		WorkflowLimit: verdict.WorkflowLimit,
		Features:      verdict.Features,
		ExpiresAt:     verdict.ExpiresAt,
	}
}
