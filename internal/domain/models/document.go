// Package models contains domain models for the docstore service.
package models

import "time"

// Reserved field names managed by the access layer.
const (
	FieldID       = "_id"
	FieldCreated  = "created"
	FieldModified = "modified"
)

// Document is a free-form record stored in a collection.
// The access layer manages FieldID, FieldCreated and FieldModified; every other
// field is opaque to it.
type Document map[string]interface{}

// Selector is a store-native query filter.
type Selector map[string]interface{}

// SortOrder represents a sort direction.
type SortOrder int

const (
	// SortAsc sorts in ascending order.
	SortAsc SortOrder = 1
	// SortDesc sorts in descending order.
	SortDesc SortOrder = -1
)

// SortField is a single sort key.
type SortField struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

// Sort is an ordered tie-break specification. The first document in sort
// order wins when a selector matches several documents.
type Sort []SortField

// ByID is the tie-break used by identifier based operations.
var ByID = Sort{{Field: FieldID, Order: SortAsc}}

// IndexSpec describes an index to provision on a collection.
type IndexSpec struct {
	Keys   Sort   `json:"keys"`
	Unique bool   `json:"unique"`
	Name   string `json:"name,omitempty"`
}

// HasID reports whether the document already carries an identifier.
func (d Document) HasID() bool {
	_, ok := d[FieldID]
	return ok
}

// ID returns the document identifier, or nil.
func (d Document) ID() interface{} {
	return d[FieldID]
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Stamp sets both timestamps to ts.
func (d Document) Stamp(ts time.Time) {
	d[FieldCreated] = ts
	d[FieldModified] = ts
}

// Modified returns the modification timestamp, if present.
func (d Document) Modified() (time.Time, bool) {
	ts, ok := d[FieldModified].(time.Time)
	return ts, ok
}

// Created returns the creation timestamp, if present.
func (d Document) Created() (time.Time, bool) {
	ts, ok := d[FieldCreated].(time.Time)
	return ts, ok
}
