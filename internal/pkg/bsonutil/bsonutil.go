// Package bsonutil converts between decoded BSON values and plain documents.
package bsonutil

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/unifiedui/docstore/internal/domain/models"
)

// ToDocument converts a decoded BSON document into a plain Document: nested
// documents become Documents, arrays become slices and BSON datetimes become
// UTC time values.
func ToDocument(m bson.M) models.Document {
	doc := make(models.Document, len(m))
	for k, v := range m {
		doc[k] = Normalize(v)
	}
	return doc
}

// Normalize converts a single decoded BSON value.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return ToDocument(t)
	case bson.D:
		doc := make(models.Document, len(t))
		for _, e := range t {
			doc[e.Key] = Normalize(e.Value)
		}
		return doc
	case bson.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

// MarshalDocument encodes a document as canonical extended JSON, which keeps
// identifiers, datetimes and number widths intact.
func MarshalDocument(doc models.Document) ([]byte, error) {
	data, err := bson.MarshalExtJSON(bson.M(doc), true, false)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

// UnmarshalDocument decodes canonical extended JSON produced by MarshalDocument.
func UnmarshalDocument(data []byte) (models.Document, error) {
	var m bson.M
	if err := bson.UnmarshalExtJSON(data, true, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return ToDocument(m), nil
}
