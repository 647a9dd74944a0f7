// Package mysql 提供数据库 Agent 的 MySQL 存储实现。
package mysql

import (
	"context"
	"fmt"
	"sort"
	"time"

	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Open 根据配置建立连接并设置连接池。
func Open(cfg *config.MySQLConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username,
		cfg.Password,
		cfg.Address,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("无法连接到 MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("无法获取底层 SQL DB 实例: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
	return db, nil
}

// Store 用 GORM 实现数据库 Agent 的存储接口。
type Store struct {
	db *gorm.DB
}

// New wraps an open connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Columns 读取表的列定义。没有默认值、不可为空且非自增的列视为必填。
func (s *Store) Columns(ctx context.Context, table string) ([]models.Column, error) {
	types, err := s.db.WithContext(ctx).Migrator().ColumnTypes(table)
	if err != nil {
		return nil, fmt.Errorf("读取表 %s 的列失败: %w", table, err)
	}
	infos := make([]columnInfo, len(types))
	for i, t := range types {
		infos[i] = t
	}
	return toColumns(infos), nil
}

// columnInfo 是 gorm.ColumnType 中用到的部分。
type columnInfo interface {
	Name() string
	DatabaseTypeName() string
	Nullable() (nullable bool, ok bool)
	DefaultValue() (value string, ok bool)
	AutoIncrement() (isAutoIncrement bool, ok bool)
}

func toColumns(types []columnInfo) []models.Column {
	cols := make([]models.Column, 0, len(types))
	for _, t := range types {
		nullable, _ := t.Nullable()
		_, hasDefault := t.DefaultValue()
		autoInc, _ := t.AutoIncrement()
		cols = append(cols, models.Column{
			Name:     t.Name(),
			Kind:     models.KindFromType(t.DatabaseTypeName()),
			Required: !nullable && !hasDefault && !autoInc,
		})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols
}

// Upsert 插入一行，唯一键冲突时更新所有提供的列。MySQL 不支持 RETURNING，返回写入的行。
func (s *Store) Upsert(ctx context.Context, table string, row map[string]any) ([]map[string]any, error) {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	err := s.db.WithContext(ctx).Table(table).
		Clauses(clause.OnConflict{DoUpdates: clause.AssignmentColumns(cols)}).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	return []map[string]any{row}, nil
}

// Select 返回满足全部等值条件的行。
func (s *Store) Select(ctx context.Context, table string, filters map[string]any) ([]map[string]any, error) {
	rows := []map[string]any{}
	q := s.db.WithContext(ctx).Table(table)
	if len(filters) > 0 {
		q = q.Where(filters)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ExecuteSQL 执行一条结构变更语句。
func (s *Store) ExecuteSQL(ctx context.Context, sql string) error {
	return s.db.WithContext(ctx).Exec(sql).Error
}

// Close 关闭底层连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 SQL DB 实例失败: %w", err)
	}
	return sqlDB.Close()
}

// HealthCheck 检查数据库连接的健康状况。
func (s *Store) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("无法获取底层 SQL DB 实例进行健康检查: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
