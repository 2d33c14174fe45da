package mocks

import (
	"context"
	"encoding/json"
	"time"

	"taxportal/internal/model"
	"taxportal/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, t *model.PaymentTransaction) (*model.PaymentTransaction, error) {
	args := m.Called(ctx, t)
	if f, ok := args.Get(0).(func(context.Context, *model.PaymentTransaction) *model.PaymentTransaction); ok {
		return f(ctx, t), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentTransaction), args.Error(1)
}

func (m *MockPaymentRepository) FindByTxnID(ctx context.Context, txnID string) (*model.PaymentTransaction, error) {
	args := m.Called(ctx, txnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentTransaction), args.Error(1)
}

func (m *MockPaymentRepository) Settle(ctx context.Context, txnID string, status model.TransactionStatus, gatewayRef string, raw json.RawMessage, at time.Time) error {
	return m.Called(ctx, txnID, status, gatewayRef, raw, at).Error(0)
}

func (m *MockPaymentRepository) List(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.PaymentTransaction], error) {
	args := m.Called(ctx, userID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.PaymentTransaction]), args.Error(1)
}
