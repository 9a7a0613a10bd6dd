// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"fmt"
	"strings"

	"github.com/unifiedui/docstore/internal/domain/models"
	"github.com/unifiedui/docstore/internal/pkg/objectid"
)

// SortFieldRequest is one entry of a tie-break specification.
type SortFieldRequest struct {
	Field string `json:"field" binding:"required"`
	Order int    `json:"order" binding:"required,oneof=1 -1"`
}

// SelectorRequest selects documents.
type SelectorRequest struct {
	Selector map[string]interface{} `json:"selector"`
}

// TargetRequest selects a single document by selector and tie-break.
type TargetRequest struct {
	Selector map[string]interface{} `json:"selector" binding:"required"`
	Sort     []SortFieldRequest     `json:"sort" binding:"required,min=1,dive"`
}

// UpdateByRequest replaces or merges into the selected document.
type UpdateByRequest struct {
	TargetRequest
	Document         map[string]interface{} `json:"document" binding:"required"`
	PreserveModified bool                   `json:"preserveModified"`
}

// logicalOperators are the only top-level query operators accepted from
// clients. Each takes an array of selectors, checked recursively.
var logicalOperators = map[string]bool{"$and": true, "$or": true, "$nor": true}

// ToSelector converts a request selector. A string "_id" is decoded into
// the store's identifier type so it matches stored documents. Top-level
// operators other than $and, $or and $nor (e.g. $where, $expr) are rejected.
func ToSelector(in map[string]interface{}) (models.Selector, error) {
	if in == nil {
		return nil, nil
	}
	if err := checkOperators(in); err != nil {
		return nil, err
	}
	out := make(models.Selector, len(in))
	for k, v := range in {
		out[k] = v
	}
	if raw, ok := in[models.FieldID].(string); ok {
		oid, err := objectid.Parse(raw)
		if err != nil {
			return nil, err
		}
		out[models.FieldID] = oid
	}
	return out, nil
}

func checkOperators(selector map[string]interface{}) error {
	for k, v := range selector {
		if !strings.HasPrefix(k, "$") {
			continue
		}
		if !logicalOperators[k] {
			return fmt.Errorf("operator %s is not allowed", k)
		}
		clauses, ok := v.([]interface{})
		if !ok {
			return fmt.Errorf("operator %s requires an array of selectors", k)
		}
		for _, clause := range clauses {
			nested, ok := clause.(map[string]interface{})
			if !ok {
				return fmt.Errorf("operator %s requires an array of selectors", k)
			}
			if err := checkOperators(nested); err != nil {
				return err
			}
		}
	}
	return nil
}

// ToSort converts a request tie-break specification.
func ToSort(in []SortFieldRequest) models.Sort {
	out := make(models.Sort, 0, len(in))
	for _, f := range in {
		out = append(out, models.SortField{Field: f.Field, Order: models.SortOrder(f.Order)})
	}
	return out
}
