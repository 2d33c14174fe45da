package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"taxportal/internal/model"
	"taxportal/internal/service"
)

type MockRegionService struct {
	mock.Mock
}

func (m *MockRegionService) List(ctx context.Context) ([]model.Region, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Region), args.Error(1)
}

func (m *MockRegionService) Get(ctx context.Context, id string) (*model.Region, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Region), args.Error(1)
}

func (m *MockRegionService) Create(ctx context.Context, in service.RegionInput) (*model.Region, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Region), args.Error(1)
}

func (m *MockRegionService) Update(ctx context.Context, id string, in service.RegionInput) (*model.Region, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Region), args.Error(1)
}

func (m *MockRegionService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRegionService) AssignRegions(ctx context.Context, userID string, regionIDs []string) ([]model.Region, error) {
	args := m.Called(ctx, userID, regionIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Region), args.Error(1)
}

func (m *MockRegionService) ListForUser(ctx context.Context, userID string) ([]model.Region, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Region), args.Error(1)
}
