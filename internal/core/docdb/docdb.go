// Package docdb defines the document database interface.
package docdb

import (
	"context"
	"errors"

	"github.com/unifiedui/docstore/internal/domain/models"
)

// ErrNoDocuments is returned by single-document operations that match nothing.
var ErrNoDocuments = errors.New("docdb: no documents in result")

// Collection is a ready, authenticated, index-provisioned collection handle.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// InsertOne inserts a single document and returns its identifier.
	InsertOne(ctx context.Context, document models.Document) (interface{}, error)

	// FindOne finds a single document matching the filter.
	FindOne(ctx context.Context, filter models.Selector) (models.Document, error)

	// Find returns every document matching the filter.
	Find(ctx context.Context, filter models.Selector) ([]models.Document, error)

	// FindOneAndReplace replaces the first document in sort order that
	// matches filter and returns the new version. The stored identifier and
	// creation timestamp are kept, as is the modification timestamp when the
	// replacement does not carry one.
	FindOneAndReplace(ctx context.Context, filter models.Selector, sort models.Sort, replacement models.Document) (models.Document, error)

	// FindOneAndUpdate merges fields into the first document in sort order
	// that matches filter and returns the new version.
	FindOneAndUpdate(ctx context.Context, filter models.Selector, sort models.Sort, fields models.Document) (models.Document, error)

	// FindOneAndDelete deletes the first document in sort order that matches
	// filter and returns it.
	FindOneAndDelete(ctx context.Context, filter models.Selector, sort models.Sort) (models.Document, error)

	// CreateIndex ensures the index exists.
	CreateIndex(ctx context.Context, spec models.IndexSpec) error
}

// ErrorTranslator maps store-reported failures onto domain errors. doc is
// the document involved in the write, if any.
type ErrorTranslator interface {
	Translate(err error, doc models.Document) error
}

// ErrorTranslatorFunc adapts a function to ErrorTranslator.
type ErrorTranslatorFunc func(err error, doc models.Document) error

// Translate calls f.
func (f ErrorTranslatorFunc) Translate(err error, doc models.Document) error {
	return f(err, doc)
}

// PassThrough returns errors unchanged.
var PassThrough ErrorTranslator = ErrorTranslatorFunc(func(err error, _ models.Document) error {
	return err
})
