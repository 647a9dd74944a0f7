package service

import (
	"Conductor/backend/go/internal/models"
	"context"
	"errors"
	"sync"
)

// fakeStore 是内存中的 Store，记录每一次调用。
type fakeStore struct {
	mu          sync.Mutex
	columns     map[string][]models.Column
	rows        map[string][]map[string]any
	columnCalls int
	upserts     []string // 表名，按调用顺序
	selects     []map[string]any
	sqls        []string
	sqlErr      error
	upsertErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		columns: map[string][]models.Column{
			"notes": {
				{Name: "id", Kind: models.KindInteger},
				{Name: "title", Kind: models.KindString, Required: true},
				{Name: "body", Kind: models.KindString},
				{Name: "category", Kind: models.KindString, Required: true},
			},
			"categories": {{Name: "name", Kind: models.KindString, Required: true}},
		},
		rows: map[string][]map[string]any{},
	}
}

func (f *fakeStore) Columns(_ context.Context, table string) ([]models.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.columnCalls++
	cols, ok := f.columns[table]
	if !ok {
		return nil, errors.New("relation does not exist")
	}
	return cols, nil
}

func (f *fakeStore) Upsert(_ context.Context, table string, row map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, table)
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.rows[table] = append(f.rows[table], row)
	return []map[string]any{row}, nil
}

func (f *fakeStore) Select(_ context.Context, table string, filters map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selects = append(f.selects, filters)
	var out []map[string]any
	for _, row := range f.rows[table] {
		match := true
		for k, v := range filters {
			if row[k] != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) ExecuteSQL(_ context.Context, sql string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sqls = append(f.sqls, sql)
	return f.sqlErr
}

func (f *fakeStore) upsertsTo(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.upserts {
		if t == table {
			n++
		}
	}
	return n
}

// fakeClassifier 返回固定标签并计数。
type fakeClassifier struct {
	mu    sync.Mutex
	label string
	err   error
	calls int
}

func (c *fakeClassifier) Classify(context.Context, map[string]any, []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.label, c.err
}
