// Package action provides the node executor that dispatches to external collaborators.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
	"github.com/penguintechinc/waddlebot-sub014/pkg/template"
)

// DefaultTimeout bounds every external call made by an action node.
const DefaultTimeout = 10 * time.Second

const maxResponseBody = 1 << 20

var (
	ErrNoMessenger    = errors.New("no messenger configured")
	ErrNoModuleCaller = errors.New("no module caller configured")
)

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Executor runs action nodes against explicitly injected collaborators.
type Executor struct {
	messenger protocol.Messenger
	modules   protocol.ModuleCaller
	client    *http.Client
}

// New creates an action executor. A nil client is replaced by a dedicated
// client bounded by DefaultTimeout.
func New(messenger protocol.Messenger, modules protocol.ModuleCaller, client *http.Client) *Executor {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	return &Executor{
		messenger: messenger,
		modules:   modules,
		client:    client,
	}
}

// Type returns the node type.
func (e *Executor) Type() models.NodeType {
	return models.NodeTypeAction
}

// Execute dispatches the configured action.
func (e *Executor) Execute(ctx context.Context, req protocol.Request) (protocol.Result, error) {
	cfg, err := protocol.ConfigAs[*models.ActionConfig](req.Node)
	if err != nil {
		return protocol.Result{}, err
	}

	if cfg.ActionType == models.ActionTypeDelay {
		return e.delay(ctx, cfg)
	}

	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var output map[string]any

	switch cfg.ActionType {
	case models.ActionTypeSendMessage:
		output, err = e.sendMessage(ctx, cfg, req.Context)
	case models.ActionTypeCallModule:
		output, err = e.callModule(ctx, cfg, req.Context)
	case models.ActionTypeHTTPRequest:
		output, err = e.httpRequest(ctx, cfg, req.Context, http.MethodGet, cfg.Body)
	case models.ActionTypeWebhook:
		body := cfg.Body
		if body == "" {
			body, err = webhookPayload(req.Context)
			if err != nil {
				return protocol.Result{}, err
			}
		}

		output, err = e.httpRequest(ctx, cfg, req.Context, http.MethodPost, body)
	default:
		return protocol.Result{}, fmt.Errorf("%w: unsupported action type %q", protocol.ErrInvalidConfig, cfg.ActionType)
	}

	if err != nil {
		return protocol.Result{}, fmt.Errorf("%s: %w", cfg.ActionType, err)
	}

	return protocol.Result{Port: models.PortDefault, Output: output}, nil
}

// delay suspends only the calling branch and returns early on cancellation.
func (e *Executor) delay(ctx context.Context, cfg *models.ActionConfig) (protocol.Result, error) {
	duration := cfg.Duration.Std()

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return protocol.Result{}, fmt.Errorf("delay interrupted: %w", ctx.Err())
	case <-timer.C:
		return protocol.Result{
			Port:   models.PortDefault,
			Output: map[string]any{"delayed": duration.String()},
		}, nil
	}
}

func (e *Executor) sendMessage(ctx context.Context, cfg *models.ActionConfig, ectx *models.ExecutionContext) (map[string]any, error) {
	if e.messenger == nil {
		return nil, ErrNoMessenger
	}

	message, err := template.RenderStringWithContext(cfg.Message, ectx)
	if err != nil {
		return nil, err
	}

	platform := cfg.Platform
	if platform == "" {
		platform = stringVariable(ectx, "platform")
	}

	channelID := cfg.ChannelID
	if channelID == "" {
		channelID = stringVariable(ectx, "channel_id")
	}

	response, err := e.messenger.SendMessage(ctx, protocol.MessageRequest{
		CommunityID: ectx.CommunityID,
		Platform:    platform,
		ChannelID:   channelID,
		Message:     message,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"message":  message,
		"platform": platform,
		"response": response,
	}, nil
}

func (e *Executor) callModule(ctx context.Context, cfg *models.ActionConfig, ectx *models.ExecutionContext) (map[string]any, error) {
	if e.modules == nil {
		return nil, ErrNoModuleCaller
	}

	params := make(map[string]any, len(cfg.Parameters))

	for key, value := range cfg.Parameters {
		s, ok := value.(string)
		if !ok {
			params[key] = value

			continue
		}

		rendered, err := template.RenderWithContext(s, ectx)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", key, err)
		}

		params[key] = rendered
	}

	response, err := e.modules.CallModule(ctx, protocol.ModuleRequest{
		CommunityID: ectx.CommunityID,
		Module:      cfg.Module,
		Action:      cfg.ModuleAction,
		Parameters:  params,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"module":   cfg.Module,
		"response": response,
	}, nil
}

func (e *Executor) httpRequest(ctx context.Context, cfg *models.ActionConfig, ectx *models.ExecutionContext, defaultMethod, body string) (map[string]any, error) {
	url, err := template.RenderStringWithContext(cfg.URL, ectx)
	if err != nil {
		return nil, fmt.Errorf("failed to render URL template: %w", err)
	}

	if body != "" {
		body, err = template.RenderStringWithContext(body, ectx)
		if err != nil {
			return nil, fmt.Errorf("failed to render body template: %w", err)
		}
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = defaultMethod
	}

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range cfg.Headers {
		rendered, err := template.RenderStringWithContext(value, ectx)
		if err != nil {
			rendered = value
		}

		req.Header.Set(key, rendered)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		result["json"] = jsonBody
	}

	return result, nil
}

func webhookPayload(ectx *models.ExecutionContext) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"execution_id": ectx.ID,
		"workflow_id":  ectx.WorkflowID,
		"community_id": ectx.CommunityID,
		"variables":    ectx.Variables(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	return string(payload), nil
}

func stringVariable(ectx *models.ExecutionContext, key string) string {
	value, _ := ectx.Variable(key)
	s, _ := value.(string)

	return s
}
