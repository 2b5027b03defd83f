// Package docstore defines the document-store boundary used for all
// persistent state: schemaless JSON documents grouped into collections and
// keyed by id.
package docstore

import (
	"context"
	"errors"
)

// Document is a stored document together with its id.
type Document struct {
	ID   string
	Data []byte
}

// UpdateFunc mutates a single document inside a store-level transaction.
// current is nil and found is false when the document does not exist.
// Returning (nil, nil) deletes the document; returning an error aborts the
// update and propagates the error unchanged to the caller.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// ErrUnchanged can be returned from an UpdateFunc to abort the update
// without treating it as a failure.
var ErrUnchanged = errors.New("docstore: document unchanged")

// Store is a minimal document database interface. Implementations must make
// Update atomic per document: concurrent updates of the same collection+id
// must not lose writes.
type Store interface {
	// Get returns the raw document, or found=false when absent.
	Get(ctx context.Context, collection, id string) ([]byte, bool, error)
	// Set creates or replaces the document.
	Set(ctx context.Context, collection, id string, doc []byte) error
	// Update applies fn to the document under a per-document transaction.
	Update(ctx context.Context, collection, id string, fn UpdateFunc) error
	// Delete removes the document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// List returns every document in the collection.
	List(ctx context.Context, collection string) ([]Document, error)
	// Count returns the number of documents in the collection.
	Count(ctx context.Context, collection string) (int, error)
}
