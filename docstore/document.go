package docstore

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// ErrInvalidPayloadJSON is returned when a document payload is not valid JSON.
var ErrInvalidPayloadJSON = errors.New("payload json is not valid")

// Documents is an alias type for a slice of Document.
type Documents = []Document

// Document is a DTO (data transfer object) used by the document store to
// persist and load entity state.
//
// It is built on scalars to stay completely agnostic of the domain entities
// in client code. While its properties are exported, it should only be
// constructed with the supplied factory method BuildDocument.
type Document struct {
	Collection  string
	ID          string
	Version     VersionUint
	PayloadJSON []byte
	UpdatedAt   time.Time
}

// BuildDocument is a factory method for Document.
//
// It populates the Document with the given scalar input.
// Returns an error if collection or id are empty or payloadJSON is not valid JSON.
func BuildDocument(collection string, id string, version VersionUint, payloadJSON []byte, updatedAt time.Time) (Document, error) {
	if collection == "" {
		return Document{}, ErrEmptyCollectionName
	}

	if id == "" {
		return Document{}, ErrEmptyDocumentID
	}

	if !jsoniter.ConfigFastest.Valid(payloadJSON) {
		return Document{}, ErrInvalidPayloadJSON
	}

	return Document{
		Collection:  collection,
		ID:          id,
		Version:     version,
		PayloadJSON: payloadJSON,
		UpdatedAt:   updatedAt,
	}, nil
}
