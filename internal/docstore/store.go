// Package docstore defines the document database contract the chat engine
// synchronizes against, together with the query evaluator shared by store
// implementations and an in-process store.
package docstore

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("document not found")

// Fields is the raw, loosely typed content of a document. Values are strings,
// numbers, booleans, time.Time timestamps, map[string]any, []any or nil.
type Fields map[string]any

// Document is one stored record.
type Document struct {
	ID     string
	Fields Fields
}

// Snapshot is one change batch: the complete set of documents currently
// matching a subscription, or a stream level error.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Store is the document database used by the chat engine.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set creates or overwrites a document.
	Set(ctx context.Context, collection, id string, fields Fields) error
	// Add creates a document with a generated id.
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, collection, id string, fields Fields) error
	Query(ctx context.Context, q Query) ([]Document, error)
	// Subscribe delivers a full snapshot now and after every change. The
	// channel is closed once ctx is done.
	Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error)
}

// Path joins collection path segments: Path("rooms", id, "messages").
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}
