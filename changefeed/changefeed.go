// Package changefeed carries document change events from the document store
// to interested consumers. It replaces platform-specific document triggers
// with explicit publish/consume over a feed backend.
package changefeed

import (
	"context"
	"time"
)

type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Event describes one document mutation. Before is nil for creations and
// After is nil for deletions.
type Event struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	DocID      string    `json:"doc_id"`
	Op         Op        `json:"op"`
	Before     []byte    `json:"before,omitempty"`
	After      []byte    `json:"after,omitempty"`
	At         time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Handler processes a single change event. Returning an error leaves the
// event eligible for redelivery; handlers must therefore be idempotent.
type Handler interface {
	HandleChange(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev Event) error

func (f HandlerFunc) HandleChange(ctx context.Context, ev Event) error { return f(ctx, ev) }
