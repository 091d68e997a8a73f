package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
)

// MockMessenger is a mock implementation of protocol.Messenger.
type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) SendMessage(ctx context.Context, req protocol.MessageRequest) (map[string]any, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]any), args.Error(1)
}

// MockModuleCaller is a mock implementation of protocol.ModuleCaller.
type MockModuleCaller struct {
	mock.Mock
}

func (m *MockModuleCaller) CallModule(ctx context.Context, req protocol.ModuleRequest) (map[string]any, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]any), args.Error(1)
}

// MockQueryRunner is a mock implementation of protocol.QueryRunner.
type MockQueryRunner struct {
	mock.Mock
}

func (m *MockQueryRunner) Query(ctx context.Context, query string, params ...any) ([]map[string]any, error) {
	args := m.Called(ctx, query, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]map[string]any), args.Error(1)
}
