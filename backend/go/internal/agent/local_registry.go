package agent

import (
	"fmt"
	"sort"
	"sync"
)

// LocalRegistry 在内存中存储和管理能力实例。
type LocalRegistry struct {
	capabilities map[string]Capability
	mutex        sync.RWMutex
}

// NewLocalRegistry 创建一个新的本地注册表实例。
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{
		capabilities: make(map[string]Capability),
	}
}

// Register 将一个能力添加到注册表，名称重复时返回错误。
func (r *LocalRegistry) Register(c Capability) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.capabilities[c.Name()]; exists {
		return fmt.Errorf("capability '%s' already registered", c.Name())
	}
	r.capabilities[c.Name()] = c
	return nil
}

// Get 根据名称检索一个能力。
func (r *LocalRegistry) Get(name string) (Capability, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	c, found := r.capabilities[name]
	return c, found
}

// List 返回所有已注册的能力，按名称排序。
func (r *LocalRegistry) List() []Capability {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	list := make([]Capability, 0, len(r.capabilities))
	for _, c := range r.capabilities {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Metadata 返回所有已注册能力的描述，顺序与 List 相同。
func (r *LocalRegistry) Metadata() []Metadata {
	caps := r.List()
	out := make([]Metadata, 0, len(caps))
	for _, c := range caps {
		out = append(out, MetadataOf(c))
	}
	return out
}
