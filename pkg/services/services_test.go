package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/penguintechinc/waddlebot-sub014/pkg/mocks"
	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence/file"
	"github.com/penguintechinc/waddlebot-sub014/pkg/registry"
	"github.com/penguintechinc/waddlebot-sub014/pkg/services"
	"github.com/penguintechinc/waddlebot-sub014/pkg/workflow"
)

type fixture struct {
	persistence *file.Persistence
	admission   *mocks.MockAdmission
	messenger   *mocks.MockMessenger
	bus         *mocks.MockEventBus
	workflows   *services.Workflow
	publishing  *services.Publishing
	executions  *services.Execution
	license     *services.License
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := discardLogger()
	f := &fixture{
		persistence: file.NewPersistence(t.TempDir()),
		admission:   &mocks.MockAdmission{},
		messenger:   &mocks.MockMessenger{},
		bus:         &mocks.MockEventBus{},
	}

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes(registry.Dependencies{Messenger: f.messenger})

	engine := workflow.NewEngine(reg, workflow.WithLogger(logger))

	f.workflows = services.NewWorkflow(f.persistence, f.admission, logger)
	f.publishing = services.NewPublishing(f.persistence, f.bus, logger)
	f.executions = services.NewExecution(f.persistence, f.admission, engine, f.bus, logger)
	f.license = services.NewLicense(f.admission, f.bus, logger)

	t.Cleanup(func() {
		f.admission.AssertExpectations(t)
		f.messenger.AssertExpectations(t)
		f.bus.AssertExpectations(t)
	})

	return f
}

func (f *fixture) allowCreation() {
	f.admission.On("ValidateWorkflowCreation", mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func (f *fixture) allowExecution() {
	f.admission.On("ValidateWorkflowExecution", mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func (f *fixture) expectEvents(n int) {
	f.bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Times(n)
}

func background() context.Context {
	return context.Background()
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()

	var serviceErr *services.ServiceError

	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, code, serviceErr.Code)
}
