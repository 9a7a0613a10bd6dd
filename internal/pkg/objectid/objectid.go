// Package objectid converts external string identifiers into store-native
// object identifiers.
package objectid

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// New returns a freshly generated identifier.
func New() primitive.ObjectID {
	return primitive.NewObjectID()
}

// Parse converts a hex string into an ObjectID. Hex digits are accepted in
// either case.
func Parse(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.ToLower(strings.TrimSpace(id)))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid object id %q: %w", id, err)
	}
	return oid, nil
}

// Normalize accepts either a string or an ObjectID and returns the native
// identifier. Any other type is rejected.
func Normalize(id interface{}) (primitive.ObjectID, error) {
	switch v := id.(type) {
	case primitive.ObjectID:
		if v.IsZero() {
			return primitive.NilObjectID, fmt.Errorf("object id is zero")
		}
		return v, nil
	case string:
		return Parse(v)
	case nil:
		return primitive.NilObjectID, fmt.Errorf("object id is required")
	default:
		return primitive.NilObjectID, fmt.Errorf("unsupported object id type %T", id)
	}
}
