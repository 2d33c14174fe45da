package mocks

import (
	"context"
	"time"

	"taxportal/internal/model"
	"taxportal/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *model.User) (*model.User, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, role model.Role, pq repository.PageQuery) (*repository.PageResult[model.User], error) {
	args := m.Called(ctx, role, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.User]), args.Error(1)
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, id string, role model.Role) error {
	return m.Called(ctx, id, role).Error(0)
}

func (m *MockUserRepository) RecordLoginFailure(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) SetLockedUntil(ctx context.Context, id string, until time.Time) error {
	return m.Called(ctx, id, until).Error(0)
}

func (m *MockUserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockUserRepository) Unlock(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
