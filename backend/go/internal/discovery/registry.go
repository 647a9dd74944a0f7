// Package discovery 维护远端 Agent 注册表，并为查询挑选最合适的 Agent。
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"Conductor/backend/go/internal/models"
)

// Source 提供一组 Agent 描述。
type Source interface {
	Descriptors(ctx context.Context) ([]models.AgentDescriptor, error)
}

// Registry 是启动时由配置构建的静态注册表，构建后不可修改。
type Registry struct {
	byName map[string]models.AgentDescriptor
	sorted []models.AgentDescriptor
}

// NewRegistry 校验并构建注册表，名称重复或端口非法时返回错误。
func NewRegistry(descriptors []models.AgentDescriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]models.AgentDescriptor, len(descriptors))}
	for _, d := range descriptors {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return nil, errors.New("agent descriptor without name")
		}
		if d.Port <= 0 || d.Port > 65535 {
			return nil, fmt.Errorf("agent %q: invalid port %d", d.Name, d.Port)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("agent %q registered twice", d.Name)
		}
		r.byName[d.Name] = d
		r.sorted = append(r.sorted, d)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].Name < r.sorted[j].Name })
	return r, nil
}

// List 按名称顺序返回所有条目的副本。
func (r *Registry) List() []models.AgentDescriptor {
	return append([]models.AgentDescriptor(nil), r.sorted...)
}

// Get looks up an agent by name.
func (r *Registry) Get(name string) (models.AgentDescriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return len(r.sorted)
}

// Descriptors implements Source.
func (r *Registry) Descriptors(context.Context) ([]models.AgentDescriptor, error) {
	return r.List(), nil
}

// MultiSource 按名称合并多个来源，排在前面的来源优先。
// 单个来源失败不影响其他来源，所有错误合并后一起返回。
type MultiSource []Source

// Descriptors implements Source.
func (m MultiSource) Descriptors(ctx context.Context) ([]models.AgentDescriptor, error) {
	seen := make(map[string]bool)
	var (
		out  []models.AgentDescriptor
		errs []error
	)
	for _, src := range m {
		descs, err := src.Descriptors(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, d := range descs {
			if seen[d.Name] {
				continue
			}
			seen[d.Name] = true
			out = append(out, d)
		}
	}
	return out, errors.Join(errs...)
}
