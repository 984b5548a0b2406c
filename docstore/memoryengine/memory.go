// Package memoryengine provides an in-process docstore.Store implementation.
//
// It is used by the component test suites and by demo setups that do not want
// a database dependency. Semantics mirror the SQL engines: per-document
// version counters, all-or-nothing write batches, and change-feed publication
// after a batch is acknowledged.
package memoryengine

import (
	"context"
	"errors"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/openshelf/lending-engine-go/docstore"
)

// ErrCorruptPayload is returned when a stored payload cannot be decoded for predicate matching.
var ErrCorruptPayload = errors.New("stored payload is not decodable")

// DocumentStore is an in-memory document store with optimistic concurrency.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]docstore.Document
	changeHub   *docstore.ChangeHub
}

// NewDocumentStore creates an empty in-memory DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]map[string]docstore.Document),
		changeHub:   docstore.NewChangeHub(),
	}
}

// Load returns the document for the given collection and ID, or docstore.ErrNotFound.
func (s *DocumentStore) Load(_ context.Context, collection string, id string) (docstore.Document, error) {
	if collection == "" {
		return docstore.Document{}, docstore.ErrEmptyCollectionName
	}

	if id == "" {
		return docstore.Document{}, docstore.ErrEmptyDocumentID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}

	return doc, nil
}

// List returns all documents of a collection ordered by ID.
func (s *DocumentStore) List(_ context.Context, collection string) (docstore.Documents, error) {
	if collection == "" {
		return nil, docstore.ErrEmptyCollectionName
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make(docstore.Documents, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	return docs, nil
}

// ListMatching returns all documents of a collection whose payload contains
// every given key/value pair, matching the JSONB containment semantics of the
// SQL engines (string-valued fields only).
func (s *DocumentStore) ListMatching(ctx context.Context, collection string, predicates ...docstore.Predicate) (docstore.Documents, error) {
	all, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	matching := make(docstore.Documents, 0, len(all))

	for _, doc := range all {
		fields := make(map[string]any)
		if unmarshalErr := jsoniter.ConfigFastest.Unmarshal(doc.PayloadJSON, &fields); unmarshalErr != nil {
			return nil, errors.Join(ErrCorruptPayload, unmarshalErr)
		}

		if payloadContains(fields, predicates) {
			matching = append(matching, doc)
		}
	}

	return matching, nil
}

func payloadContains(fields map[string]any, predicates []docstore.Predicate) bool {
	for _, predicate := range predicates {
		val, ok := fields[predicate.Key()].(string)
		if !ok || val != predicate.Val() {
			return false
		}
	}

	return true
}

// Commit applies the write batch atomically: every version guard is checked
// under the store lock before anything is mutated. Committed documents are
// published to the change feed after the batch is acknowledged.
func (s *DocumentStore) Commit(_ context.Context, write docstore.Write, additionalWrites ...docstore.Write) error {
	allWrites := append([]docstore.Write{write}, additionalWrites...)

	committed, err := s.applyBatch(allWrites)
	if err != nil {
		return err
	}

	for _, doc := range committed {
		s.changeHub.Publish(doc)
	}

	return nil
}

func (s *DocumentStore) applyBatch(allWrites []docstore.Write) (docstore.Documents, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Guard phase: nothing is mutated until every write has been validated.
	for _, w := range allWrites {
		if w.Doc.Collection == "" {
			return nil, docstore.ErrEmptyCollectionName
		}

		if w.Doc.ID == "" {
			return nil, docstore.ErrEmptyDocumentID
		}

		stored, exists := s.collections[w.Doc.Collection][w.Doc.ID]

		if w.ExpectedVersion == 0 {
			if exists {
				return nil, docstore.ErrDuplicateDocument
			}
			continue
		}

		if !exists || stored.Version != w.ExpectedVersion {
			return nil, docstore.ErrConcurrencyConflict
		}
	}

	committed := make(docstore.Documents, 0, len(allWrites))

	for _, w := range allWrites {
		if s.collections[w.Doc.Collection] == nil {
			s.collections[w.Doc.Collection] = make(map[string]docstore.Document)
		}

		doc := w.Doc
		doc.Version = w.ExpectedVersion + 1
		s.collections[w.Doc.Collection][w.Doc.ID] = doc
		committed = append(committed, doc)
	}

	return committed, nil
}

// Subscribe registers fn for all committed documents of the given collection.
func (s *DocumentStore) Subscribe(collection string, fn func(docstore.Document)) (cancel func()) {
	return s.changeHub.Subscribe(collection, fn)
}

// Ensure DocumentStore implements the store contracts.
var (
	_ docstore.Store      = (*DocumentStore)(nil)
	_ docstore.ChangeFeed = (*DocumentStore)(nil)
)
