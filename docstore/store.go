package docstore

import (
	"context"
)

// PredicateKeyString is a type alias for string, representing a payload field name.
type PredicateKeyString = string

// PredicateValString is a type alias for string, representing a payload field value.
type PredicateValString = string

// Predicate matches documents whose JSON payload contains the given key/value pair.
type Predicate struct {
	key PredicateKeyString
	val PredicateValString
}

// P is a factory method for Predicate.
func P(key PredicateKeyString, val PredicateValString) Predicate {
	return Predicate{key: key, val: val}
}

// Key returns the payload field name of this predicate.
func (p Predicate) Key() PredicateKeyString {
	return p.key
}

// Val returns the payload field value of this predicate.
func (p Predicate) Val() PredicateValString {
	return p.val
}

// Write describes one document mutation within an atomic batch.
//
// ExpectedVersion 0 means "insert": the document must not exist yet and is
// persisted with version 1. Any other value means "compare-and-swap update":
// the stored version must equal ExpectedVersion, and the document is persisted
// with ExpectedVersion+1. A batch with a failing guard aborts completely.
type Write struct {
	Doc             Document
	ExpectedVersion VersionUint
}

// InsertOf builds a Write that inserts a new document.
func InsertOf(doc Document) Write {
	return Write{Doc: doc, ExpectedVersion: 0}
}

// UpdateOf builds a Write that replaces an existing document guarded by its current version.
func UpdateOf(doc Document) Write {
	return Write{Doc: doc, ExpectedVersion: doc.Version}
}

// Store is the narrow contract the lending components depend on.
//
// Load returns ErrNotFound when no document exists.
// Commit applies the whole write batch atomically or not at all; a stale
// version guard surfaces as ErrConcurrencyConflict, transient backend
// failures as ErrStoreUnavailable.
type Store interface {
	Load(ctx context.Context, collection string, id string) (Document, error)
	List(ctx context.Context, collection string) (Documents, error)
	ListMatching(ctx context.Context, collection string, predicates ...Predicate) (Documents, error)
	Commit(ctx context.Context, write Write, additionalWrites ...Write) error
}

// ChangeFeed is the capability to observe acknowledged writes per collection.
// It replaces ambient listener-mutated state: consumers subscribe explicitly
// and derive their projections from the documents they receive.
type ChangeFeed interface {
	Subscribe(collection string, fn func(Document)) (cancel func())
}
