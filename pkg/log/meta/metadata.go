package meta

import (
	"context"
	"sync"
)

// 元信息对象
type metadata struct {
	// 读写锁，确保并发安全
	carrier map[interface{}]interface{}
	mu      sync.RWMutex
}

func (c *metadata) Value(key interface{}) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.carrier[key]
}

func (c *metadata) WithValue(key, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carrier[key] = value
}

type contextKey struct{}

var metaContextKey = contextKey{}

type requestIDKey struct{}

// Begin 开启元信息对象
// 注意：
//
//	1.该方法在上下文中注入元信息对象，应该在尽量靠近根上下文处调用，如HTTP请求入口
//	2.多次调用数据安全：
//		如父类上下文中存在元信息对象，则直接返回父类上下文
//		如父类上下文中不存在元信息对象，则返回包含元信息对象的指针的子类上下文
func Begin(parent context.Context) context.Context {
	if parent.Value(metaContextKey) != nil {
		return parent
	}
	return context.WithValue(parent, metaContextKey, &metadata{
		carrier: make(map[interface{}]interface{}),
	})
}

// 从父类上下文获取元信息对象
func metadataFrom(parent context.Context) *metadata {
	if parent == nil {
		return nil
	}
	value, _ := parent.Value(metaContextKey).(*metadata)
	return value
}

// WithValue 设置键值对至上下文的元信息对象，未调用Begin时忽略
func WithValue(parent context.Context, key, val interface{}) {
	meta := metadataFrom(parent)
	if meta == nil {
		return
	}
	meta.WithValue(key, val)
}

// Value 从上下文的元信息对象中获取对应key的值
func Value(parent context.Context, key interface{}) interface{} {
	meta := metadataFrom(parent)
	if meta == nil {
		return nil
	}
	return meta.Value(key)
}

// WithRequestID stores the request id of the current call.
func WithRequestID(parent context.Context, id string) {
	WithValue(parent, requestIDKey{}, id)
}

// RequestID returns the request id stored by WithRequestID, or "-".
func RequestID(parent context.Context) string {
	if id, ok := Value(parent, requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return "-"
}
