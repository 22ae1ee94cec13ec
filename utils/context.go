package utils

import (
	"context"
	"time"
)

// Request budgets for API handlers. Pipeline work runs in the worker and is
// bounded by the task timeout instead.
const (
	// StoreTimeout covers MongoDB lookups and small writes
	StoreTimeout = 10 * time.Second

	// EmbedTimeout covers upload writes and query embedding
	EmbedTimeout = 30 * time.Second
)

// WithTimeout bounds a handler's store access.
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, StoreTimeout)
}

// WithLongTimeout bounds handlers that call the embedding model or stream an upload to disk.
func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, EmbedTimeout)
}
