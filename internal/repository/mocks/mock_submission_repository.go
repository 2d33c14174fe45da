package mocks

import (
	"context"
	"time"

	"taxportal/internal/model"
	"taxportal/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockSubmissionRepository struct {
	mock.Mock
}

func (m *MockSubmissionRepository) Create(ctx context.Context, s *model.Submission) (*model.Submission, error) {
	args := m.Called(ctx, s)
	if f, ok := args.Get(0).(func(context.Context, *model.Submission) *model.Submission); ok {
		return f(ctx, s), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *MockSubmissionRepository) FindByID(ctx context.Context, id string) (*model.Submission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *MockSubmissionRepository) List(ctx context.Context, f repository.SubmissionFilter, pq repository.PageQuery) (*repository.PageResult[model.Submission], error) {
	args := m.Called(ctx, f, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Submission]), args.Error(1)
}

func (m *MockSubmissionRepository) UpdateStatus(ctx context.Context, id string, from, to model.SubmissionStatus, at time.Time) error {
	return m.Called(ctx, id, from, to, at).Error(0)
}

func (m *MockSubmissionRepository) AddNote(ctx context.Context, n *model.Note) (*model.Note, error) {
	args := m.Called(ctx, n)
	if f, ok := args.Get(0).(func(context.Context, *model.Note) *model.Note); ok {
		return f(ctx, n), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Note), args.Error(1)
}

func (m *MockSubmissionRepository) ListNotes(ctx context.Context, submissionID string) ([]model.Note, error) {
	args := m.Called(ctx, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Note), args.Error(1)
}

func (m *MockSubmissionRepository) FindAttachment(ctx context.Context, submissionID, attachmentID string) (*model.Attachment, error) {
	args := m.Called(ctx, submissionID, attachmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attachment), args.Error(1)
}
