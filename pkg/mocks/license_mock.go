package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

// MockLicenseServer is a mock implementation of license.Server.
type MockLicenseServer struct {
	mock.Mock
}

func (m *MockLicenseServer) Validate(ctx context.Context, communityID string) (*models.LicenseVerdict, error) {
	args := m.Called(ctx, communityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.LicenseVerdict), args.Error(1)
}

// MockWorkflowCounter is a mock implementation of license.WorkflowCounter.
type MockWorkflowCounter struct {
	mock.Mock
}

func (m *MockWorkflowCounter) CountWorkflows(ctx context.Context, communityID string) (int, error) {
	args := m.Called(ctx, communityID)

	return args.Int(0), args.Error(1)
}

// MockAdmission is a mock implementation of services.Admission.
type MockAdmission struct {
	mock.Mock
}

func (m *MockAdmission) CheckLicenseStatus(ctx context.Context, communityID string) (*models.LicenseVerdict, error) {
	args := m.Called(ctx, communityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.LicenseVerdict), args.Error(1)
}

func (m *MockAdmission) ValidateWorkflowCreation(ctx context.Context, communityID, entityID string) error {
	args := m.Called(ctx, communityID, entityID)

	return args.Error(0)
}

func (m *MockAdmission) ValidateWorkflowExecution(ctx context.Context, workflowID, communityID string) error {
	args := m.Called(ctx, workflowID, communityID)

	return args.Error(0)
}

func (m *MockAdmission) InvalidateCache(ctx context.Context, communityID string) error {
	args := m.Called(ctx, communityID)

	return args.Error(0)
}
