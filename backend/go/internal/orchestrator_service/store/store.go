// Package store 持久化 /ask 请求记录。
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Conductor/backend/go/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultCollection 是请求记录所在的集合。
const DefaultCollection = "asks"

// ErrNotFound 表示记录不存在。
var ErrNotFound = errors.New("ask record not found")

// AskStore 保存请求记录。
type AskStore interface {
	Create(ctx context.Context, rec *models.AskRecord) error
	Complete(ctx context.Context, id string, status models.TaskStatus, response, errMsg string) error
	Get(ctx context.Context, id string) (*models.AskRecord, error)
}

// MongoStore 把请求记录保存在 MongoDB 中。
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a MongoStore.
func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoStore{collection: client.Database(database).Collection(collection)}
}

// Create inserts a new record.
func (s *MongoStore) Create(ctx context.Context, rec *models.AskRecord) error {
	if _, err := s.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert ask record: %w", err)
	}
	return nil
}

// Complete 写入最终状态和完成时间。
func (s *MongoStore) Complete(ctx context.Context, id string, status models.TaskStatus, response, errMsg string) error {
	update := bson.M{"$set": bson.M{
		"status":       status,
		"response":     response,
		"error":        errMsg,
		"completed_at": time.Now(),
	}}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update ask record: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the record with the given id.
func (s *MongoStore) Get(ctx context.Context, id string) (*models.AskRecord, error) {
	var rec models.AskRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ask record: %w", err)
	}
	return &rec, nil
}
