// Package mongostore provides a MongoDB-backed document store. Each docstore
// collection maps to a Mongo collection; Update uses a revision-based
// compare-and-swap loop so concurrent mutations of the same document retry
// instead of losing writes.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kehilla-app/accounts/docstore"
)

const maxCASRetries = 10

type Store struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

type mongoDoc struct {
	ID        string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	Rev       int64     `bson:"rev"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (s *Store) Get(ctx context.Context, collection, id string) ([]byte, bool, error) {
	var d mongoDoc
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return d.Data, true, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc []byte) error {
	_, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{"data": doc, "updated_at": time.Now().UTC()},
			"$inc": bson.M{"rev": int64(1)},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Store) Update(ctx context.Context, collection, id string, fn docstore.UpdateFunc) error {
	col := s.db.Collection(collection)
	for i := 0; i < maxCASRetries; i++ {
		var d mongoDoc
		found := true
		err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
		if errors.Is(err, mongo.ErrNoDocuments) {
			found = false
		} else if err != nil {
			return err
		}

		var current []byte
		if found {
			current = d.Data
		}
		next, err := fn(current, found)
		if errors.Is(err, docstore.ErrUnchanged) {
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case next == nil && !found:
			return nil
		case next == nil:
			res, err := col.DeleteOne(ctx, bson.M{"_id": id, "rev": d.Rev})
			if err != nil {
				return err
			}
			if res.DeletedCount == 1 {
				return nil
			}
		case !found:
			_, err := col.InsertOne(ctx, mongoDoc{ID: id, Data: next, Rev: 1, UpdatedAt: time.Now().UTC()})
			if err == nil {
				return nil
			}
			if !mongo.IsDuplicateKeyError(err) {
				return err
			}
		default:
			res, err := col.UpdateOne(ctx,
				bson.M{"_id": id, "rev": d.Rev},
				bson.M{
					"$set": bson.M{"data": next, "updated_at": time.Now().UTC()},
					"$inc": bson.M{"rev": int64(1)},
				},
			)
			if err != nil {
				return err
			}
			if res.ModifiedCount == 1 {
				return nil
			}
		}
		// Lost the race; reread and retry.
	}
	return fmt.Errorf("mongostore: update of %s/%s exceeded %d retries", collection, id, maxCASRetries)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *Store) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []docstore.Document
	for cur.Next(ctx) {
		var d mongoDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, docstore.Document{ID: d.ID, Data: d.Data})
	}
	return out, cur.Err()
}

func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{})
	return int(n), err
}
