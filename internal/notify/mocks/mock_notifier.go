package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"taxportal/internal/notify"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, msg notify.Message) {
	m.Called(ctx, msg)
}
