package mongodb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/unifiedui/docstore/internal/core/docdb"
	domainerrors "github.com/unifiedui/docstore/internal/domain/errors"
	"github.com/unifiedui/docstore/internal/domain/models"
	"github.com/unifiedui/docstore/internal/infrastructure/docdb/mongodb"
)

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestCollection(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("InsertOne returns the identifier", func(mt *mtest.T) {
		coll := mongodb.NewCollection(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		inserted, err := coll.InsertOne(ctx, models.Document{models.FieldID: id, "name": "a"})

		require.NoError(t, err)
		assert.Equal(t, id, inserted)
	})

	mt.Run("InsertOne duplicate key is translatable", func(mt *mtest.T) {
		coll := mongodb.NewCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: `E11000 duplicate key error collection: test.users index: name_1 dup key: { name: "a" }`,
		}))

		_, err := coll.InsertOne(ctx, models.Document{"name": "a"})

		require.Error(t, err)
		assert.True(t, mongo.IsDuplicateKeyError(err))
		translated := mongodb.NewErrorTranslator().Translate(err, models.Document{"name": "a"})
		assert.True(t, domainerrors.IsConflict(translated))
	})

	mt.Run("FindOne normalizes nested values", func(mt *mtest.T) {
		coll := mongodb.NewCollection(mt.Coll)
		id := primitive.NewObjectID()
		created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "a"},
			{Key: "created", Value: primitive.NewDateTimeFromTime(created)},
			{Key: "address", Value: bson.D{{Key: "city", Value: "Berlin"}}},
			{Key: "tags", Value: bson.A{"x", "y"}},
		}))

		doc, err := coll.FindOne(ctx, models.Selector{models.FieldID: id})

		require.NoError(t, err)
		assert.Equal(t, id, doc.ID())
		assert.Equal(t, "a", doc["name"])
		createdAt, ok := doc.Created()
		require.True(t, ok)
		assert.True(t, created.Equal(createdAt))
		assert.Equal(t, models.Document{"city": "Berlin"}, doc["address"])
		assert.Equal(t, []interface{}{"x", "y"}, doc["tags"])
	})

	mt.Run("FindOne miss maps to ErrNoDocuments", func(mt *mtest.T) {
		coll := mongodb.NewCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := coll.FindOne(ctx, models.Selector{"name": "missing"})

		assert.ErrorIs(t, err, docdb.ErrNoDocuments)
	})

	mt.Run("Find materializes every document", func(mt *mtest.T) {
		coll := mongodb.NewCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "name", Value: "a"}},
			bson.D{{Key: "name", Value: "b"}},
		))

		docs, err := coll.Find(ctx, nil)

		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "a", docs[0]["name"])
		assert.Equal(t, "b", docs[1]["name"])
	})

	mt.Run("FindOneAndReplace returns the new version", func(mt *mtest.T) {
		coll := mongodb.NewCollection(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "b"},
		}}))

		doc, err := coll.FindOneAndReplace(ctx, models.Selector{models.FieldID: id}, models.ByID, models.Document{"name": "b"})

		require.NoError(t, err)
		assert.Equal(t, "b", doc["name"])
	})

	mt.Run("FindOneAndUpdate miss maps to ErrNoDocuments", func(mt *mtest.T) {
		coll := mongodb.NewCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := coll.FindOneAndUpdate(ctx, models.Selector{"name": "missing"}, models.ByID, models.Document{"x": 1})

		assert.ErrorIs(t, err, docdb.ErrNoDocuments)
	})

	mt.Run("FindOneAndDelete returns the removed document", func(mt *mtest.T) {
		coll := mongodb.NewCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "name", Value: "gone"},
		}}))

		doc, err := coll.FindOneAndDelete(ctx, models.Selector{"name": "gone"}, models.ByID)

		require.NoError(t, err)
		assert.Equal(t, "gone", doc["name"])
	})

	mt.Run("CreateIndex", func(mt *mtest.T) {
		coll := mongodb.NewCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := coll.CreateIndex(ctx, models.IndexSpec{
			Keys:   models.Sort{{Field: "email", Order: models.SortAsc}},
			Unique: true,
		})

		assert.NoError(t, err)
	})

	mt.Run("CreateIndex requires keys", func(mt *mtest.T) {
		coll := mongodb.NewCollection(mt.Coll)

		assert.Error(t, coll.CreateIndex(ctx, models.IndexSpec{}))
	})

	mt.Run("VerifyAuthenticated", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "authInfo", Value: bson.D{
			{Key: "authenticatedUsers", Value: bson.A{
				bson.D{{Key: "user", Value: "svc"}, {Key: "db", Value: mt.DB.Name()}},
			}},
		}}))

		assert.NoError(t, mongodb.VerifyAuthenticated(ctx, mt.DB, "svc"))
	})

	mt.Run("VerifyAuthenticated unknown user", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "authInfo", Value: bson.D{
			{Key: "authenticatedUsers", Value: bson.A{}},
		}}))

		assert.Error(t, mongodb.VerifyAuthenticated(ctx, mt.DB, "svc"))
	})
}
