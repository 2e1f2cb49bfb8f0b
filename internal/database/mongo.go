package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection     = "users"
	documentsCollection = "documents"
)

type MongoPagesmithRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoPagesmithRepository(ctx context.Context, uri, dbName string) (*MongoPagesmithRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &MongoPagesmithRepository{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

func (r *MongoPagesmithRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoPagesmithRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

func (r *MongoPagesmithRepository) users() *mongo.Collection {
	return r.db.Collection(usersCollection)
}

func (r *MongoPagesmithRepository) documents() *mongo.Collection {
	return r.db.Collection(documentsCollection)
}

func (r *MongoPagesmithRepository) GetUserById(ctx context.Context, userId string) (User, error) {
	var user User
	err := r.users().FindOne(ctx, bson.M{"_id": userId}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}

	return user, nil
}

func (r *MongoPagesmithRepository) CreateDocument(ctx context.Context, params CreateDocumentParams) (Document, error) {
	now := time.Now().UTC()
	doc := Document{
		Id:            params.Id,
		OwnerId:       params.OwnerId,
		Title:         params.Title,
		Content:       params.Content,
		Collaborators: []Collaborator{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := r.documents().InsertOne(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}

	return doc, nil
}

func (r *MongoPagesmithRepository) GetDocumentById(ctx context.Context, documentId string) (Document, error) {
	var doc Document
	err := r.documents().FindOne(ctx, bson.M{"_id": documentId}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("find document: %w", err)
	}

	return doc, nil
}

func (r *MongoPagesmithRepository) ListDocumentsForUser(ctx context.Context, userId string) ([]Document, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"owner_id": userId},
		bson.M{"collaborators.user_id": userId},
	}}

	cursor, err := r.documents().Find(ctx, filter, options.Find().SetSort(bson.M{"updated_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}

	var docs []Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}

	return docs, nil
}

func (r *MongoPagesmithRepository) UpdateDocumentContent(ctx context.Context, documentId, content string) error {
	res, err := r.documents().UpdateOne(ctx, bson.M{"_id": documentId}, bson.M{
		"$set": bson.M{
			"content":    content,
			"updated_at": time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("update document content: %w", err)
	}

	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// SetDocumentCollaborator replaces any existing collaborator entry for the
// user, keeping at most one entry per user on the document.
func (r *MongoPagesmithRepository) SetDocumentCollaborator(ctx context.Context, documentId string, collaborator Collaborator) (Document, error) {
	res, err := r.documents().UpdateOne(ctx, bson.M{"_id": documentId}, bson.M{
		"$pull": bson.M{"collaborators": bson.M{"user_id": collaborator.UserId}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return Document{}, fmt.Errorf("remove existing collaborator: %w", err)
	}
	if res.MatchedCount == 0 {
		return Document{}, ErrNotFound
	}

	if _, err := r.documents().UpdateOne(ctx, bson.M{"_id": documentId}, bson.M{
		"$push": bson.M{"collaborators": collaborator},
	}); err != nil {
		return Document{}, fmt.Errorf("add collaborator: %w", err)
	}

	return r.GetDocumentById(ctx, documentId)
}

func (r *MongoPagesmithRepository) RemoveDocumentCollaborator(ctx context.Context, documentId, userId string) (Document, error) {
	res, err := r.documents().UpdateOne(ctx, bson.M{"_id": documentId}, bson.M{
		"$pull": bson.M{"collaborators": bson.M{"user_id": userId}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return Document{}, fmt.Errorf("remove collaborator: %w", err)
	}
	if res.MatchedCount == 0 {
		return Document{}, ErrNotFound
	}

	return r.GetDocumentById(ctx, documentId)
}

func (r *MongoPagesmithRepository) DeleteDocument(ctx context.Context, documentId string) error {
	res, err := r.documents().DeleteOne(ctx, bson.M{"_id": documentId})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if res.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}
