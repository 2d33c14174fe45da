package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"taxportal/internal/model"
	"taxportal/internal/service"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Initiate(ctx context.Context, actor service.Actor, in service.InitiatePaymentInput) (*service.InitiatePaymentResult, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.InitiatePaymentResult), args.Error(1)
}

func (m *MockPaymentService) HandleCallback(ctx context.Context, fields map[string]string) (*model.PaymentTransaction, error) {
	args := m.Called(ctx, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentTransaction), args.Error(1)
}

func (m *MockPaymentService) ListMine(ctx context.Context, actor service.Actor, limit, offset int) (*service.ListResult[model.PaymentTransaction], error) {
	args := m.Called(ctx, actor, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult[model.PaymentTransaction]), args.Error(1)
}

func (m *MockPaymentService) List(ctx context.Context, limit, offset int) (*service.ListResult[model.PaymentTransaction], error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult[model.PaymentTransaction]), args.Error(1)
}
