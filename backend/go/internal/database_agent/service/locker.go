package service

import (
	"context"
	"sync"
)

// CategoryLocker 串行化同名分类的写入，避免并发插入同一个新分类。
type CategoryLocker interface {
	Lock(ctx context.Context, name string) (unlock func(), err error)
}

// LocalLocker 是进程内的按键互斥锁。
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{} // 容量为 1，持有即加锁
	refs int
}

// NewLocalLocker 创建进程内锁。
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

// Lock 实现 CategoryLocker，ctx 取消时放弃等待。
func (l *LocalLocker) Lock(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	k, ok := l.locks[name]
	if !ok {
		k = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[name] = k
	}
	k.refs++
	l.mu.Unlock()

	select {
	case k.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(name, k)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-k.ch
			l.release(name, k)
		})
	}, nil
}

func (l *LocalLocker) release(name string, k *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.locks, name)
	}
}
