package store

import (
	"context"
	"os"
	"testing"
	"time"

	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/internal/database/mongo"
	"Conductor/backend/go/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要真实的 MongoDB：设置 CONDUCTOR_TEST_MONGO_URI 后运行。
func TestMongoStore_Lifecycle(t *testing.T) {
	uri := os.Getenv("CONDUCTOR_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CONDUCTOR_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := mongo.Open(ctx, &config.MongoConfig{Address: uri})
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	s := NewMongoStore(client, "conductor_test", "asks_test")
	id := uuid.NewString()
	require.NoError(t, s.Create(ctx, &models.AskRecord{
		ID: id, Status: models.TaskStatusPending, Message: "hi", SubmittedAt: time.Now(),
	}))
	require.NoError(t, s.Complete(ctx, id, models.TaskStatusSuccess, "hello", ""))

	rec, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSuccess, rec.Status)
	assert.Equal(t, "hello", rec.Response)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Complete(ctx, "missing", models.TaskStatusFailed, "", "x"), ErrNotFound)
}
