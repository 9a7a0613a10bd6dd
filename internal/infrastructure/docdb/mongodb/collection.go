// Package mongodb provides the MongoDB collection handle.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unifiedui/docstore/internal/core/docdb"
	"github.com/unifiedui/docstore/internal/domain/models"
	"github.com/unifiedui/docstore/internal/pkg/bsonutil"
)

// Collection implements the docdb.Collection interface for MongoDB.
type Collection struct {
	collection *mongo.Collection
}

// NewCollection creates a new MongoDB collection wrapper.
func NewCollection(collection *mongo.Collection) *Collection {
	return &Collection{
		collection: collection,
	}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.collection.Name()
}

// InsertOne inserts a single document.
func (c *Collection) InsertOne(ctx context.Context, document models.Document) (interface{}, error) {
	result, err := c.collection.InsertOne(ctx, bson.M(document))
	if err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}
	return result.InsertedID, nil
}

// FindOne finds a single document matching the filter.
func (c *Collection) FindOne(ctx context.Context, filter models.Selector) (models.Document, error) {
	return decodeSingle(c.collection.FindOne(ctx, filterDoc(filter)), "find document")
}

// Find finds all documents matching the filter.
func (c *Collection) Find(ctx context.Context, filter models.Selector) ([]models.Document, error) {
	cursor, err := c.collection.Find(ctx, filterDoc(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}

	docs := make([]models.Document, 0, len(raw))
	for _, r := range raw {
		docs = append(docs, bsonutil.ToDocument(r))
	}
	return docs, nil
}

// FindOneAndReplace replaces the first matching document in sort order.
// The replacement runs as an update pipeline so that _id and created survive
// and modified is kept when the replacement does not set it.
func (c *Collection) FindOneAndReplace(ctx context.Context, filter models.Selector, sort models.Sort, replacement models.Document) (models.Document, error) {
	preserved := bson.M{
		models.FieldID:       "$" + models.FieldID,
		models.FieldCreated:  "$" + models.FieldCreated,
		models.FieldModified: "$" + models.FieldModified,
	}
	update := mongo.Pipeline{
		{{Key: "$replaceWith", Value: bson.M{
			"$mergeObjects": bson.A{preserved, bson.M{"$literal": bson.M(replacement)}},
		}}},
	}

	opts := options.FindOneAndUpdate().
		SetSort(sortDoc(sort)).
		SetReturnDocument(options.After)

	return decodeSingle(c.collection.FindOneAndUpdate(ctx, filterDoc(filter), update, opts), "replace document")
}

// FindOneAndUpdate sets fields on the first matching document in sort order.
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter models.Selector, sort models.Sort, fields models.Document) (models.Document, error) {
	if len(fields) == 0 {
		// An empty $set is rejected by the server.
		opts := options.FindOne().SetSort(sortDoc(sort))
		return decodeSingle(c.collection.FindOne(ctx, filterDoc(filter), opts), "update document")
	}

	opts := options.FindOneAndUpdate().
		SetSort(sortDoc(sort)).
		SetReturnDocument(options.After)

	update := bson.M{"$set": bson.M(fields)}
	return decodeSingle(c.collection.FindOneAndUpdate(ctx, filterDoc(filter), update, opts), "update document")
}

// FindOneAndDelete deletes the first matching document in sort order.
func (c *Collection) FindOneAndDelete(ctx context.Context, filter models.Selector, sort models.Sort) (models.Document, error) {
	opts := options.FindOneAndDelete().SetSort(sortDoc(sort))
	return decodeSingle(c.collection.FindOneAndDelete(ctx, filterDoc(filter), opts), "delete document")
}

// CreateIndex ensures the index described by spec exists.
func (c *Collection) CreateIndex(ctx context.Context, spec models.IndexSpec) error {
	if len(spec.Keys) == 0 {
		return fmt.Errorf("index requires at least one key")
	}

	opts := options.Index().SetUnique(spec.Unique)
	if spec.Name != "" {
		opts.SetName(spec.Name)
	}

	_, err := c.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    sortDoc(spec.Keys),
		Options: opts,
	})
	if err != nil {
		return fmt.Errorf("failed to create index on %s: %w", c.collection.Name(), err)
	}
	return nil
}

// decodeSingle decodes a single result, mapping a miss to docdb.ErrNoDocuments.
func decodeSingle(result *mongo.SingleResult, op string) (models.Document, error) {
	var raw bson.M
	if err := result.Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, docdb.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return bsonutil.ToDocument(raw), nil
}

func filterDoc(filter models.Selector) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}

func sortDoc(sort models.Sort) bson.D {
	d := make(bson.D, 0, len(sort))
	for _, f := range sort {
		order := f.Order
		if order == 0 {
			order = models.SortAsc
		}
		d = append(d, bson.E{Key: f.Field, Value: int(order)})
	}
	return d
}
