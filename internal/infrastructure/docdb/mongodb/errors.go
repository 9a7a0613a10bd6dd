// Package mongodb provides the duplicate key error translation.
package mongodb

import (
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	domainerrors "github.com/unifiedui/docstore/internal/domain/errors"
	"github.com/unifiedui/docstore/internal/domain/models"
	"github.com/unifiedui/docstore/internal/pkg/bsonutil"
)

// dupKeyPattern matches both the legacy "index: db.coll.$email_1 dup key: { : "x" }"
// and the current "index: email_1 dup key: { email: "x" }" diagnostics.
var dupKeyPattern = regexp.MustCompile(`index: (?:\S+\.\$)?(\S+)\s+dup key: \{\s*([^\s:]*)\s*:\s*(.*?)\s*\}`)

// indexFieldPattern extracts the first field of a default index name such as
// "email_1" or "last_name_-1_first_name_1".
var indexFieldPattern = regexp.MustCompile(`^(.+?)_-?1(?:_|$)`)

// ErrorTranslator turns duplicate key failures into conflict errors and
// passes every other error through unchanged.
type ErrorTranslator struct{}

// NewErrorTranslator creates a new duplicate key translator.
func NewErrorTranslator() *ErrorTranslator {
	return &ErrorTranslator{}
}

// Translate implements docdb.ErrorTranslator.
func (t *ErrorTranslator) Translate(err error, doc models.Document) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}

	field, value := DuplicateKey(err)
	if v, ok := doc[field]; ok {
		value = v
	}
	return domainerrors.NewConflictError(field, value, err)
}

// DuplicateKey extracts the offending field and value from a duplicate key
// error. The server's structured keyValue is preferred; the diagnostic
// message is parsed only when it is absent. Message parsing depends on the
// server's wording and may yield an empty field on unknown formats.
func DuplicateKey(err error) (string, interface{}) {
	for _, raw := range rawServerErrors(err) {
		if field, value, ok := keyValue(raw); ok {
			return field, value
		}
	}
	return parseDuplicateKeyMessage(err.Error())
}

// rawServerErrors collects the raw server documents attached to err.
func rawServerErrors(err error) []bson.Raw {
	var out []bson.Raw

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 && len(e.Raw) > 0 {
				out = append(out, e.Raw)
			}
		}
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) && len(ce.Raw) > 0 {
		out = append(out, ce.Raw)
	}

	return out
}

func keyValue(raw bson.Raw) (string, interface{}, bool) {
	rv, err := raw.LookupErr("keyValue")
	if err != nil {
		return "", nil, false
	}
	kv, ok := rv.DocumentOK()
	if !ok {
		return "", nil, false
	}
	elems, err := kv.Elements()
	if err != nil || len(elems) == 0 {
		return "", nil, false
	}

	var value interface{}
	if err := elems[0].Value().Unmarshal(&value); err != nil {
		return elems[0].Key(), nil, true
	}
	return elems[0].Key(), bsonutil.Normalize(value), true
}

func parseDuplicateKeyMessage(msg string) (string, interface{}) {
	m := dupKeyPattern.FindStringSubmatch(msg)
	if m == nil {
		return "", nil
	}

	field := m[2]
	if field == "" {
		field = m[1]
		if fm := indexFieldPattern.FindStringSubmatch(m[1]); fm != nil {
			field = fm[1]
		}
	}

	value := strings.TrimSpace(m[3])
	if i := strings.Index(value, ","); i >= 0 && !strings.HasPrefix(value, `"`) {
		value = value[:i]
	}
	if strings.HasPrefix(value, `"`) {
		if end := strings.Index(value[1:], `"`); end >= 0 {
			value = value[1 : end+1]
		}
	}
	return field, value
}
