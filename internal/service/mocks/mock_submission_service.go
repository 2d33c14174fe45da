package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"taxportal/internal/model"
	"taxportal/internal/service"
)

type MockSubmissionService struct {
	mock.Mock
}

func (m *MockSubmissionService) Create(ctx context.Context, actor service.Actor, in service.CreateSubmissionInput) (*model.Submission, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *MockSubmissionService) ListMine(ctx context.Context, actor service.Actor, limit, offset int) (*service.ListResult[model.Submission], error) {
	args := m.Called(ctx, actor, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult[model.Submission]), args.Error(1)
}

func (m *MockSubmissionService) Get(ctx context.Context, actor service.Actor, id string) (*model.Submission, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *MockSubmissionService) ListForStaff(ctx context.Context, actor service.Actor, f service.StaffFilter, limit, offset int) (*service.ListResult[model.Submission], error) {
	args := m.Called(ctx, actor, f, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult[model.Submission]), args.Error(1)
}

func (m *MockSubmissionService) UpdateStatus(ctx context.Context, actor service.Actor, id string, status model.SubmissionStatus, note string) (*model.Submission, error) {
	args := m.Called(ctx, actor, id, status, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *MockSubmissionService) AddNote(ctx context.Context, actor service.Actor, id, body string) (*model.Note, error) {
	args := m.Called(ctx, actor, id, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Note), args.Error(1)
}

func (m *MockSubmissionService) ListNotes(ctx context.Context, actor service.Actor, id string) ([]model.Note, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Note), args.Error(1)
}

func (m *MockSubmissionService) AttachmentURL(ctx context.Context, actor service.Actor, submissionID, attachmentID string) (string, error) {
	args := m.Called(ctx, actor, submissionID, attachmentID)
	return args.String(0), args.Error(1)
}
