package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"Conductor/backend/go/internal/agent"
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/internal/orchestrator_service/store"
	"Conductor/backend/go/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrchestrator struct {
	answer string
	err    error
}

func (f *fakeOrchestrator) AskObserved(_ context.Context, _ string, obs agent.Observer) (string, error) {
	call := &models.FunctionCall{ID: "c1", Name: "database", Args: map[string]any{"instruction": "x"}}
	obs.OnThinking(1)
	obs.OnToolCall(call)
	obs.OnToolResult(call, map[string]any{"success": true})
	return f.answer, f.err
}

func (f *fakeOrchestrator) Capabilities() []agent.Metadata {
	return []agent.Metadata{{Name: "database"}}
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*models.AskRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]*models.AskRecord{}}
}

func (m *memoryStore) Create(_ context.Context, rec *models.AskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *memoryStore) Complete(_ context.Context, id string, status models.TaskStatus, response, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.Status, rec.Response, rec.Error = status, response, errMsg
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (*models.AskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

type recordingPublisher struct {
	entries []*models.TaskLogEntry
}

func (r *recordingPublisher) LogTaskProgress(_ context.Context, e *models.TaskLogEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func statuses(entries []*models.TaskLogEntry) []models.TaskLogStatus {
	out := make([]models.TaskLogStatus, len(entries))
	for i, e := range entries {
		out[i] = e.Status
	}
	return out
}

func TestAsk_RecordsAndPublishes(t *testing.T) {
	st := newMemoryStore()
	pub := &recordingPublisher{}
	svc := NewAskService(&fakeOrchestrator{answer: "done"},
		WithStore(st), WithPublisher(pub), WithLogger(logger.Discard()))

	res, err := svc.Ask(context.Background(), "user-1", "insert a note")
	require.NoError(t, err)
	assert.Equal(t, "done", res.Response)

	rec, err := svc.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSuccess, rec.Status)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, "done", rec.Response)

	assert.Equal(t, []models.TaskLogStatus{
		models.StatusThinking, models.StatusCallingSubAgent, models.StatusObserving, models.StatusFinished,
	}, statuses(pub.entries))
	for _, e := range pub.entries {
		assert.Equal(t, res.ID, e.TaskID)
	}
}

func TestAsk_FailureIsRecorded(t *testing.T) {
	st := newMemoryStore()
	pub := &recordingPublisher{}
	svc := NewAskService(&fakeOrchestrator{err: errors.New("reached max iterations")},
		WithStore(st), WithPublisher(pub), WithLogger(logger.Discard()))

	res, err := svc.Ask(context.Background(), "", "loop forever")
	require.Error(t, err)

	rec, gerr := st.Get(context.Background(), res.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.TaskStatusFailed, rec.Status)
	assert.Equal(t, "reached max iterations", rec.Error)
	assert.Equal(t, models.StatusError, pub.entries[len(pub.entries)-1].Status)
}

func TestAsk_WithoutStoreOrPublisher(t *testing.T) {
	svc := NewAskService(&fakeOrchestrator{answer: "ok"}, WithLogger(logger.Discard()))
	res, err := svc.Ask(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Response)
	assert.False(t, svc.HasHistory())
	_, err = svc.Get(context.Background(), res.ID)
	assert.Error(t, err)
}
