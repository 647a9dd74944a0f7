// Package service 实现数据库 Agent 的三个操作：insert、fetch 和 schema_command。
package service

import (
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/pkg/logger"
	"Conductor/backend/go/pkg/metrics"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultCategoriesTable 是保存分类标签的表。
const DefaultCategoriesTable = "categories"

// DatabaseService 持有数据库 Agent 的全部共享状态，并发安全。
// 领域内的失败以 AgentResponse 返回；error 只用于配置错误（例如缺少存储凭据）。
type DatabaseService struct {
	store           *lazyStore
	cache           *SchemaCache
	classifier      Classifier
	locker          CategoryLocker
	categoriesTable string
	metrics         *metrics.Metrics
	log             *logger.Logger
}

// Option 配置 DatabaseService。
type Option func(*DatabaseService)

// WithCategoriesTable 设置分类表名。
func WithCategoriesTable(name string) Option {
	return func(s *DatabaseService) {
		if name != "" {
			s.categoriesTable = name
		}
	}
}

// WithLocker 替换默认的进程内分类锁。
func WithLocker(l CategoryLocker) Option {
	return func(s *DatabaseService) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithMetrics 设置指标。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *DatabaseService) { s.metrics = m }
}

// WithLogger 设置日志记录器。
func WithLogger(l *logger.Logger) Option {
	return func(s *DatabaseService) {
		if l != nil {
			s.log = l
		}
	}
}

// NewDatabaseService 创建服务。存储在第一次使用时才通过 factory 创建。
func NewDatabaseService(factory StoreFactory, classifier Classifier, cacheSize int, opts ...Option) (*DatabaseService, error) {
	s := &DatabaseService{
		store:           &lazyStore{factory: factory},
		classifier:      classifier,
		locker:          NewLocalLocker(),
		categoriesTable: DefaultCategoriesTable,
		log:             logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	cache, err := NewSchemaCache(cacheSize, s.loadSchema)
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

func (s *DatabaseService) loadSchema(ctx context.Context, table string) (*models.TableSchema, error) {
	store, err := s.store.get()
	if err != nil {
		return nil, err
	}
	cols, err := store.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	return models.NewTableSchema(table, cols), nil
}

// InsertRequest 是 insert 操作的输入。
type InsertRequest struct {
	Table         string          `json:"table"`
	Data          map[string]any  `json:"data"`
	SchemaChanges []SchemaCommand `json:"schema_changes,omitempty"`
}

// Insert 校验并写入一行数据。缺少 category 时调用分类器补齐。
func (s *DatabaseService) Insert(ctx context.Context, req InsertRequest) (resp *models.AgentResponse, err error) {
	defer func() { s.record("insert", resp, err) }()

	store, err := s.store.get()
	if err != nil {
		return nil, err
	}

	for _, cmd := range req.SchemaChanges {
		if r := s.applySchemaCommand(ctx, store, cmd); !r.Success {
			return r, nil
		}
	}

	schema, err := s.cache.Get(ctx, req.Table)
	if err != nil {
		return models.Fail("Failed to load table schema", models.CodeStoreError, err.Error()), nil
	}

	// 不修改调用方的 map
	data := make(map[string]any, len(req.Data)+1)
	for k, v := range req.Data {
		data[k] = v
	}

	if problems := schema.Validate(data); len(problems) > 0 {
		return models.Fail("Validation error", models.CodeValidationError, strings.Join(problems, "; ")), nil
	}

	if _, ok := data[models.CategoryColumn]; !ok {
		category, fail := s.resolveCategory(ctx, store, data)
		if fail != nil {
			return fail, nil
		}
		data[models.CategoryColumn] = category
	}

	rows, err := store.Upsert(ctx, req.Table, data)
	if err != nil {
		return models.Fail("Insert failed", models.CodeStoreError, err.Error()), nil
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return models.OK("Inserted", rows), nil
}

// resolveCategory 让分类器选择分类；新分类在锁内复查后只插入一次。
func (s *DatabaseService) resolveCategory(ctx context.Context, store Store, data map[string]any) (string, *models.AgentResponse) {
	existing, err := s.categories(ctx, store)
	if err != nil {
		return "", models.Fail("Failed to load categories", models.CodeStoreError, err.Error())
	}

	category, err := s.classifier.Classify(ctx, data, existing)
	if err != nil {
		return "", models.Fail("Classification failed", models.CodeClassificationError, err.Error())
	}
	if known, ok := lookup(existing, category); ok {
		return known, nil
	}

	unlock, err := s.locker.Lock(ctx, category)
	if err != nil {
		return "", models.Fail("Failed to lock category", models.CodeStoreError, err.Error())
	}
	defer unlock()

	rows, err := store.Select(ctx, s.categoriesTable, map[string]any{"name": category})
	if err != nil {
		return "", models.Fail("Failed to load categories", models.CodeStoreError, err.Error())
	}
	if len(rows) == 0 {
		if _, err := store.Upsert(ctx, s.categoriesTable, map[string]any{"name": category}); err != nil {
			return "", models.Fail("Failed to save category", models.CodeStoreError, err.Error())
		}
		s.log.WithPayload(map[string]interface{}{"category": category}).Info("New category created")
	}
	return category, nil
}

func (s *DatabaseService) categories(ctx context.Context, store Store) ([]string, error) {
	rows, err := store.Select(ctx, s.categoriesTable, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Fetch 返回所有满足等值条件的行，没有匹配时返回空列表。
func (s *DatabaseService) Fetch(ctx context.Context, table string, filters map[string]any) (resp *models.AgentResponse, err error) {
	defer func() { s.record("fetch", resp, err) }()

	store, err := s.store.get()
	if err != nil {
		return nil, err
	}
	if filters == nil {
		filters = map[string]any{}
	}
	rows, err := store.Select(ctx, table, filters)
	if err != nil {
		return models.Fail("Fetch failed", models.CodeStoreError, err.Error()), nil
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return models.OK("Fetched", rows), nil
}

// SchemaCommand 执行 add_column 或 create_table，成功后清空整个表结构缓存。
func (s *DatabaseService) SchemaCommand(ctx context.Context, cmd SchemaCommand) (resp *models.AgentResponse, err error) {
	defer func() { s.record("schema_command", resp, err) }()

	// 未知命令不需要存储
	if cmd.Type != CommandAddColumn && cmd.Type != CommandCreateTable {
		return models.Fail("Unknown command type", models.CodeUnknownCommand, fmt.Sprintf("%+v", cmd)), nil
	}
	store, err := s.store.get()
	if err != nil {
		return nil, err
	}
	return s.applySchemaCommand(ctx, store, cmd), nil
}

func (s *DatabaseService) applySchemaCommand(ctx context.Context, store Store, cmd SchemaCommand) *models.AgentResponse {
	sql, err := cmd.SQL()
	if err != nil {
		var unknown errUnknownCommand
		if errors.As(err, &unknown) {
			return models.Fail("Unknown command type", models.CodeUnknownCommand, fmt.Sprintf("%+v", cmd))
		}
		return models.Fail("Invalid schema command", models.CodeValidationError, err.Error())
	}

	if err := store.ExecuteSQL(ctx, sql); err != nil {
		s.log.WithErr(err).WithPayload(map[string]interface{}{"sql": sql}).Warn("Schema command failed")
		return models.Fail("Schema command failed", models.CodeSchemaError, err.Error())
	}
	s.cache.Purge()
	s.log.WithPayload(map[string]interface{}{"sql": sql}).Info("Schema command executed")
	return models.OK(cmd.SuccessMessage(), nil)
}

func (s *DatabaseService) record(op string, resp *models.AgentResponse, err error) {
	success := resp != nil && resp.Success
	s.metrics.DatabaseOperation(op, metrics.Outcome(success, resp.ErrorCode(), err))
}

// lookup 忽略大小写查找已有分类，返回已有的写法。
func lookup(list []string, v string) (string, bool) {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return item, true
		}
	}
	return "", false
}
