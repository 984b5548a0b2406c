package shell

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/openshelf/lending-engine-go/docstore"
)

// Collection names used by the lending components. Every component addresses
// the document store through these, so the storage layout is defined once.
const (
	BooksCollection        = "books_catalog"
	BookRequestsCollection = "book_requests"
	TransactionsCollection = "transactions"
	FinesCollection        = "fines"
	SettingsCollection     = "settings"
)

// ErrDecodingPayloadFailed is returned when a stored payload does not
// unmarshal into the expected entity shape.
var ErrDecodingPayloadFailed = errors.New("decoding document payload failed")

// ErrEncodingEntityFailed is returned when an entity cannot be marshaled.
var ErrEncodingEntityFailed = errors.New("encoding entity failed")

var marshaler = jsoniter.ConfigFastest

// DocumentFor encodes an entity into a Document carrying the given identity
// and version. Version 0 means the entity was never persisted, so committing
// the result as an insert claims the identity.
func DocumentFor[T any](collection string, id string, version docstore.VersionUint, entity T, updatedAt time.Time) (docstore.Document, error) {
	payload, err := marshaler.Marshal(entity)
	if err != nil {
		return docstore.Document{}, errors.Join(ErrEncodingEntityFailed, err)
	}

	doc, err := docstore.BuildDocument(collection, id, version, payload, updatedAt)
	if err != nil {
		return docstore.Document{}, err
	}

	return doc, nil
}

// EntityFrom decodes a Document's payload into the entity type.
func EntityFrom[T any](doc docstore.Document) (T, error) {
	var entity T

	if err := marshaler.Unmarshal(doc.PayloadJSON, &entity); err != nil {
		return entity, errors.Join(ErrDecodingPayloadFailed, err)
	}

	return entity, nil
}

// EntitiesFrom decodes a list of Documents into entities, preserving order.
func EntitiesFrom[T any](docs docstore.Documents) ([]T, error) {
	entities := make([]T, 0, len(docs))

	for _, doc := range docs {
		entity, err := EntityFrom[T](doc)
		if err != nil {
			return nil, err
		}

		entities = append(entities, entity)
	}

	return entities, nil
}
