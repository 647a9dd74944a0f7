// Package service 处理 /ask 请求：记录请求、运行编排器并发布进度事件。
package service

import (
	"context"
	"fmt"
	"time"

	"Conductor/backend/go/internal/agent"
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/internal/orchestrator_service/store"
	"Conductor/backend/go/pkg/logger"
	"Conductor/backend/go/pkg/metrics"

	"github.com/google/uuid"
)

// Orchestrator 是服务依赖的编排器接口。
type Orchestrator interface {
	AskObserved(ctx context.Context, message string, observer agent.Observer) (string, error)
	Capabilities() []agent.Metadata
}

// ProgressPublisher 发布任务进度事件。
type ProgressPublisher interface {
	LogTaskProgress(ctx context.Context, entry *models.TaskLogEntry) error
}

// AskService 是 /ask 的业务层。store 和 publisher 都可以为空。
type AskService struct {
	orchestrator Orchestrator
	store        store.AskStore
	publisher    ProgressPublisher
	metrics      *metrics.Metrics
	log          *logger.Logger
}

// Option configures an AskService.
type Option func(*AskService)

// WithStore 记录每次请求。
func WithStore(s store.AskStore) Option {
	return func(a *AskService) { a.store = s }
}

// WithPublisher 发布进度事件。
func WithPublisher(p ProgressPublisher) Option {
	return func(a *AskService) { a.publisher = p }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *AskService) { a.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *AskService) { a.log = l }
}

// NewAskService creates an AskService.
func NewAskService(o Orchestrator, opts ...Option) *AskService {
	s := &AskService{orchestrator: o, log: logger.New("orchestrator_service", "", "")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capabilities returns the orchestrator's capabilities.
func (s *AskService) Capabilities() []agent.Metadata {
	return s.orchestrator.Capabilities()
}

// HasHistory 表示是否启用了请求记录。
func (s *AskService) HasHistory() bool {
	return s.store != nil
}

// Result 是一次请求的结果。
type Result struct {
	ID       string
	Response string
}

// Ask 运行一次请求。记录和发布失败只写日志，不影响回答。
func (s *AskService) Ask(ctx context.Context, userID, message string) (*Result, error) {
	id := uuid.NewString()
	log := s.log.WithTrace(id)
	start := time.Now()

	if s.store != nil {
		err := s.store.Create(ctx, &models.AskRecord{
			ID:          id,
			UserID:      userID,
			Status:      models.TaskStatusPending,
			Message:     message,
			SubmittedAt: start,
		})
		if err != nil {
			log.WithErr(err).Warn("failed to record ask")
		}
	}

	progress := &progressObserver{ctx: ctx, taskID: id, publisher: s.publisher, log: log}
	answer, err := s.orchestrator.AskObserved(ctx, message, progress)

	status := models.TaskStatusSuccess
	errMsg := ""
	if err != nil {
		status = models.TaskStatusFailed
		errMsg = err.Error()
		progress.publish(models.StatusError, "request failed", errMsg)
	} else {
		progress.publish(models.StatusFinished, "request finished", answer)
	}
	s.metrics.ObserveAsk(string(status), time.Since(start))

	if s.store != nil {
		// 请求被取消时仍然写入最终状态
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if serr := s.store.Complete(storeCtx, id, status, answer, errMsg); serr != nil {
			log.WithErr(serr).Warn("failed to complete ask record")
		}
		cancel()
	}

	if err != nil {
		return &Result{ID: id}, err
	}
	return &Result{ID: id, Response: answer}, nil
}

// Get returns a stored ask record.
func (s *AskService) Get(ctx context.Context, id string) (*models.AskRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("ask history is not enabled")
	}
	return s.store.Get(ctx, id)
}

// progressObserver 把工具循环的进度转换成 TaskLogEntry。
type progressObserver struct {
	ctx       context.Context
	taskID    string
	publisher ProgressPublisher
	log       *logger.Logger
}

func (p *progressObserver) OnThinking(iteration int) {
	p.publish(models.StatusThinking, fmt.Sprintf("thinking (step %d)", iteration), nil)
}

func (p *progressObserver) OnToolCall(call *models.FunctionCall) {
	p.publish(models.StatusCallingSubAgent, "calling "+call.Name, call.Args)
}

func (p *progressObserver) OnToolResult(call *models.FunctionCall, response map[string]any) {
	p.publish(models.StatusObserving, "result from "+call.Name, response)
}

func (p *progressObserver) publish(status models.TaskLogStatus, message string, content interface{}) {
	if p.publisher == nil {
		return
	}
	err := p.publisher.LogTaskProgress(context.WithoutCancel(p.ctx), &models.TaskLogEntry{
		TaskID:    p.taskID,
		Timestamp: time.Now(),
		Status:    status,
		Message:   message,
		Content:   content,
	})
	if err != nil {
		p.log.WithErr(err).Warn("failed to publish task progress")
	}
}
