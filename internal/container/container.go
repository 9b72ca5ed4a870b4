// Package container provides the shared context handed to pipeline
// participants: a caller-owned key/value store passed by reference.
//
// One container serves one in-flight request. The pipeline overwrites the
// latestRequest and latestResponse keys on every dispatch step (last writer
// wins), so participants without access to the call arguments can still
// observe the exchange as it moves through the chain.
package container

import (
	"maps"
	"slices"
	"sync"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
)

// Reserved keys.
const (
	// KeyLatestRequest and KeyLatestResponse are written by the pipeline.
	KeyLatestRequest  = "latestRequest"
	KeyLatestResponse = "latestResponse"

	// KeyRequestID is written by the request id participant.
	KeyRequestID = "requestID"
	// KeyRecoveredError is written by the error handler when it recovers.
	KeyRecoveredError = "recoveredError"
	// KeySubject is written by the auth participant.
	KeySubject = "subject"
	// KeyContentTypes holds the negotiation registry serializers fill.
	KeyContentTypes = "contentTypes"
)

// Container is a concurrency-safe key/value store.
type Container struct {
	mu     sync.RWMutex
	values map[string]any
}

// New creates an empty container.
func New() *Container {
	return &Container{values: make(map[string]any)}
}

// Set stores value under key, replacing any previous value.
func (c *Container) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get returns the value stored under key.
func (c *Container) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key is set.
func (c *Container) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key.
func (c *Container) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
}

// Keys returns the set keys in sorted order.
func (c *Container) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.values))
}

// String returns the string stored under key, or "".
func (c *Container) String(key string) string {
	v, _ := c.Get(key)
	s, _ := v.(string)
	return s
}

// LatestRequest returns the request of the most recent dispatch step.
func (c *Container) LatestRequest() *domain.Request {
	v, _ := c.Get(KeyLatestRequest)
	r, _ := v.(*domain.Request)
	return r
}

// LatestResponse returns the response of the most recent dispatch step.
func (c *Container) LatestResponse() *domain.Response {
	v, _ := c.Get(KeyLatestResponse)
	r, _ := v.(*domain.Response)
	return r
}

// RecoveredError returns the error the error handler recovered from, if any.
func (c *Container) RecoveredError() error {
	v, _ := c.Get(KeyRecoveredError)
	err, _ := v.(error)
	return err
}
