package tracing

import "sync"

// MapCallContext is a map-backed CallContext, usable both as the
// carrier for hosts without their own request-context machinery and as
// a test double. Safe for concurrent use by multiple goroutines.
type MapCallContext struct {
	mu         sync.RWMutex
	transients map[string]any
	headers    map[string]string
}

// NewCallContext creates an empty MapCallContext.
func NewCallContext() *MapCallContext {
	return &MapCallContext{
		transients: make(map[string]any),
		headers:    make(map[string]string),
	}
}

// GetTransient returns the transient value for key, or nil.
func (c *MapCallContext) GetTransient(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transients[key]
}

// PutTransient stores an in-process value under key.
func (c *MapCallContext) PutTransient(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transients[key] = value
}

// GetHeader returns the header value for key, or "".
func (c *MapCallContext) GetHeader(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.headers[key]
}

// PutHeader stores a string header under key.
func (c *MapCallContext) PutHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// Headers returns a copy of the current headers, in the shape they
// would be sent on an outbound call.
func (c *MapCallContext) Headers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		out[k] = v
	}
	return out
}

// Handoff returns the call context a same-process child task receives:
// the local span context handle reappears under its inbound
// ParentPrefix-ed name. Headers are carried over unchanged so that a
// child can still see request identity such as OpaqueIDHeader.
func (c *MapCallContext) Handoff() *MapCallContext {
	c.mu.RLock()
	defer c.mu.RUnlock()

	child := NewCallContext()
	if v, ok := c.transients[LocalContextKey]; ok {
		child.transients[ParentPrefix+LocalContextKey] = v
	}
	for k, v := range c.headers {
		child.headers[k] = v
	}
	return child
}

// Remote returns the call context a remote node receives after the
// outbound headers cross the wire: header values reappear as
// ParentPrefix-ed transients on the far side, and transient object
// handles do not survive the boundary.
func (c *MapCallContext) Remote() *MapCallContext {
	c.mu.RLock()
	defer c.mu.RUnlock()

	child := NewCallContext()
	for k, v := range c.headers {
		child.transients[ParentPrefix+k] = v
		child.headers[k] = v
	}
	return child
}
