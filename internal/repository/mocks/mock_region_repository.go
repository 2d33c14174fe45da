package mocks

import (
	"context"

	"taxportal/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockRegionRepository struct {
	mock.Mock
}

func (m *MockRegionRepository) Create(ctx context.Context, r *model.Region) (*model.Region, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Region), args.Error(1)
}

func (m *MockRegionRepository) Update(ctx context.Context, r *model.Region) (*model.Region, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Region), args.Error(1)
}

func (m *MockRegionRepository) FindByID(ctx context.Context, id string) (*model.Region, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Region), args.Error(1)
}

func (m *MockRegionRepository) List(ctx context.Context) ([]model.Region, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Region), args.Error(1)
}

func (m *MockRegionRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRegionRepository) ReplaceAssignments(ctx context.Context, userID string, regionIDs []string) error {
	return m.Called(ctx, userID, regionIDs).Error(0)
}

func (m *MockRegionRepository) ListForUser(ctx context.Context, userID string) ([]model.Region, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Region), args.Error(1)
}
