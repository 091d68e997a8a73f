package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/penguintechinc/waddlebot-sub014/pkg/license"
	"github.com/penguintechinc/waddlebot-sub014/pkg/mocks"
	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence/file"
	"github.com/penguintechinc/waddlebot-sub014/pkg/registry"
	"github.com/penguintechinc/waddlebot-sub014/pkg/services"
	"github.com/penguintechinc/waddlebot-sub014/pkg/web"
	"github.com/penguintechinc/waddlebot-sub014/pkg/workflow"
)

const weatherDocument = `{
  "community_id": "community-1",
  "name": "Weather",
  "nodes": [
    {"id": "trigger", "type": "trigger", "position": {"x": 10, "y": 20},
     "config": {"triggerType": "command", "command": "!weather", "platform": "twitch"}},
    {"id": "reply", "type": "action",
     "config": {"actionType": "send_message", "message": "Sunny for {{ .user }}"}}
  ],
  "edges": [{"source": "trigger", "target": "reply"}]
}`

type testApp struct {
	app       *fiber.App
	admission *mocks.MockAdmission
	messenger *mocks.MockMessenger
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	persistence := file.NewPersistence(t.TempDir())
	admission := &mocks.MockAdmission{}
	messenger := &mocks.MockMessenger{}

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes(registry.Dependencies{Messenger: messenger})

	engine := workflow.NewEngine(reg, workflow.WithLogger(logger))

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(persistence, admission, logger),
		services.NewPublishing(persistence, nil, logger),
		services.NewExecution(persistence, admission, engine, nil, logger),
		services.NewLicense(admission, nil, logger),
		validator.New(validator.WithRequiredStructEnabled()),
		reg,
	)

	app := fiber.New()
	handlers.Register(app)

	t.Cleanup(func() {
		admission.AssertExpectations(t)
		messenger.AssertExpectations(t)
	})

	return &testApp{app: app, admission: admission, messenger: messenger}
}

func (a *testApp) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.app.Test(req)
	require.NoError(t, err)

	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, payload
}

func (a *testApp) createWeather(t *testing.T) *models.WorkflowDefinition {
	t.Helper()

	status, body := a.do(t, http.MethodPost, "/workflows", weatherDocument)
	require.Equal(t, http.StatusCreated, status, string(body))

	var created models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &created))

	return &created
}

func (a *testApp) publish(t *testing.T, id string) *models.WorkflowDefinition {
	t.Helper()

	status, body := a.do(t, http.MethodPost, "/workflows/"+id+"/publish", "")
	require.Equal(t, http.StatusCreated, status, string(body))

	var published models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &published))

	return &published
}

func decodeProblem(t *testing.T, body []byte) map[string]any {
	t.Helper()

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))

	return problem
}

func TestAPIHandlers_WorkflowLifecycle(t *testing.T) {
	a := setupTestApp(t)
	a.admission.On("ValidateWorkflowCreation", mock.Anything, "community-1", mock.Anything).Return(nil)
	a.admission.On("ValidateWorkflowExecution", mock.Anything, mock.Anything, "community-1").Return(nil)
	a.messenger.On("SendMessage", mock.Anything, mock.Anything).
		Return(map[string]any{"delivered": true}, nil).Once()

	created := a.createWeather(t)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)

	published := a.publish(t, created.ID)
	assert.Equal(t, created.ID, published.ParentID)

	status, body := a.do(t, http.MethodPost, "/workflows/"+published.ID+"/execute",
		`{"type":"command","platform":"twitch","command":"!weather","user":"penguin","channel_id":"c-1"}`)
	require.Equal(t, http.StatusOK, status, string(body))

	var result models.ExecutionResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)

	status, body = a.do(t, http.MethodGet, "/executions/"+result.ID, "")
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = a.do(t, http.MethodGet, "/executions/"+result.ID+"/trace", "")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"workflowId":"`+published.ID+`"`)
	assert.Contains(t, string(body), `"nodeId":"reply"`)

	status, body = a.do(t, http.MethodGet, "/workflows?community_id=community-1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"total_count":2`)

	status, body = a.do(t, http.MethodPost, "/workflows/"+published.ID+"/drafts", "")
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.Contains(t, string(body), `"version":2`)
}

func TestAPIHandlers_CreateWorkflow_Errors(t *testing.T) {
	a := setupTestApp(t)

	status, body := a.do(t, http.MethodPost, "/workflows", `{"name": "no nodes"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", decodeProblem(t, body)["type"])

	status, _ = a.do(t, http.MethodPost, "/workflows", `{not json`)
	assert.Equal(t, http.StatusBadRequest, status)

	a.admission.On("ValidateWorkflowCreation", mock.Anything, "community-1", mock.Anything).
		Return(&license.DeniedError{CommunityID: "community-1", Reason: "free tier allows 1 workflows, community has 1"}).Once()

	status, body = a.do(t, http.MethodPost, "/workflows", weatherDocument)
	assert.Equal(t, http.StatusPaymentRequired, status)

	problem := decodeProblem(t, body)
	assert.Equal(t, "license_denied", problem["type"])
	assert.Equal(t, "free tier allows 1 workflows, community has 1", problem["detail"])
}

func TestAPIHandlers_PublishInvalidDraft(t *testing.T) {
	a := setupTestApp(t)
	a.admission.On("ValidateWorkflowCreation", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	orphaned := `{
  "community_id": "community-1",
  "name": "Broken",
  "nodes": [
    {"id": "trigger", "type": "trigger", "config": {"triggerType": "command", "command": "!hi"}},
    {"id": "orphan", "type": "action", "config": {"actionType": "send_message", "message": "never"}}
  ]
}`

	status, body := a.do(t, http.MethodPost, "/workflows", orphaned)
	require.Equal(t, http.StatusCreated, status, string(body))

	var created models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &created))

	status, body = a.do(t, http.MethodPost, "/workflows/"+created.ID+"/publish", "")
	assert.Equal(t, http.StatusBadRequest, status)

	problem := decodeProblem(t, body)
	problems, ok := problem["problems"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, problems)
	assert.Equal(t, workflow.CodeUnreachable, problems[0].(map[string]any)["code"])
}

func TestAPIHandlers_UpdatePublishedConflicts(t *testing.T) {
	a := setupTestApp(t)
	a.admission.On("ValidateWorkflowCreation", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	published := a.publish(t, a.createWeather(t).ID)

	status, body := a.do(t, http.MethodPut, "/workflows/"+published.ID, weatherDocument)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", decodeProblem(t, body)["type"])
}

func TestAPIHandlers_NotFound(t *testing.T) {
	a := setupTestApp(t)

	status, body := a.do(t, http.MethodGet, "/workflows/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "workflow_not_found", decodeProblem(t, body)["type"])

	status, _ = a.do(t, http.MethodDelete, "/workflows/missing", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = a.do(t, http.MethodGet, "/executions/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "execution_not_found", decodeProblem(t, body)["type"])
}

func TestAPIHandlers_ExecuteRequestValidation(t *testing.T) {
	a := setupTestApp(t)

	status, _ := a.do(t, http.MethodPost, "/workflows/any/execute", `{"type":"telepathy"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(t, http.MethodPost, "/communities/community-1/events", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_DispatchEvent(t *testing.T) {
	a := setupTestApp(t)
	a.admission.On("ValidateWorkflowCreation", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	a.admission.On("ValidateWorkflowExecution", mock.Anything, mock.Anything, "community-1").Return(nil)
	a.messenger.On("SendMessage", mock.Anything, mock.Anything).Return(map[string]any{}, nil).Once()

	a.publish(t, a.createWeather(t).ID)

	status, body := a.do(t, http.MethodPost, "/communities/community-1/events",
		`{"type":"command","platform":"twitch","command":"!WEATHER","user":"penguin"}`)
	require.Equal(t, http.StatusOK, status, string(body))

	var response web.DispatchResponse
	require.NoError(t, json.Unmarshal(body, &response))
	assert.Equal(t, 1, response.Count)
}

func TestAPIHandlers_License(t *testing.T) {
	a := setupTestApp(t)

	limit := 1
	a.admission.On("CheckLicenseStatus", mock.Anything, "community-1").Return(&models.LicenseVerdict{
		CommunityID:   "community-1",
		Tier:          models.TierFree,
		Status:        models.LicenseStatusActive,
		WorkflowLimit: &limit,
	}, nil).Once()
	a.admission.On("InvalidateCache", mock.Anything, "community-1").Return(nil).Once()

	status, body := a.do(t, http.MethodGet, "/communities/community-1/license", "")
	require.Equal(t, http.StatusOK, status)

	var verdict web.LicenseResponse
	require.NoError(t, json.Unmarshal(body, &verdict))
	assert.Equal(t, models.TierFree, verdict.Tier)
	require.NotNil(t, verdict.WorkflowLimit)
	assert.Equal(t, 1, *verdict.WorkflowLimit)

	status, _ = a.do(t, http.MethodDelete, "/communities/community-1/license/cache", "")
	assert.Equal(t, http.StatusNoContent, status)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	a := setupTestApp(t)

	status, body := a.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"status":"healthy"`)
}
