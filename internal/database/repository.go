package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a user or document does not exist.
var ErrNotFound = errors.New("not found")

type PagesmithRepository interface {
	Ping(ctx context.Context) error
	GetUserById(ctx context.Context, userId string) (User, error)
	CreateDocument(ctx context.Context, params CreateDocumentParams) (Document, error)
	GetDocumentById(ctx context.Context, documentId string) (Document, error)
	ListDocumentsForUser(ctx context.Context, userId string) ([]Document, error)
	UpdateDocumentContent(ctx context.Context, documentId, content string) error
	SetDocumentCollaborator(ctx context.Context, documentId string, collaborator Collaborator) (Document, error)
	RemoveDocumentCollaborator(ctx context.Context, documentId, userId string) (Document, error)
	DeleteDocument(ctx context.Context, documentId string) error
}
