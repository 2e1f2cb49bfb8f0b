package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockPagesmithRepository struct {
	mock.Mock
}

func (m *MockPagesmithRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockPagesmithRepository) GetUserById(ctx context.Context, userId string) (User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockPagesmithRepository) CreateDocument(ctx context.Context, params CreateDocumentParams) (Document, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Document), args.Error(1)
}
func (m *MockPagesmithRepository) GetDocumentById(ctx context.Context, documentId string) (Document, error) {
	args := m.Called(ctx, documentId)
	return args.Get(0).(Document), args.Error(1)
}
func (m *MockPagesmithRepository) ListDocumentsForUser(ctx context.Context, userId string) ([]Document, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]Document), args.Error(1)
}
func (m *MockPagesmithRepository) UpdateDocumentContent(ctx context.Context, documentId, content string) error {
	args := m.Called(ctx, documentId, content)
	return args.Error(0)
}
func (m *MockPagesmithRepository) SetDocumentCollaborator(ctx context.Context, documentId string, collaborator Collaborator) (Document, error) {
	args := m.Called(ctx, documentId, collaborator)
	return args.Get(0).(Document), args.Error(1)
}
func (m *MockPagesmithRepository) RemoveDocumentCollaborator(ctx context.Context, documentId, userId string) (Document, error) {
	args := m.Called(ctx, documentId, userId)
	return args.Get(0).(Document), args.Error(1)
}
func (m *MockPagesmithRepository) DeleteDocument(ctx context.Context, documentId string) error {
	args := m.Called(ctx, documentId)
	return args.Error(0)
}
