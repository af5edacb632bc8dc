package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const _INDEX_TIMEOUT = 30 * time.Second

type StoreOption[T any] func(store *Store[T]) error

// WithIndex makes sure an ascending index over fields exists.
func WithIndex[T any](fields ...string) StoreOption[T] {
	return func(store *Store[T]) error {
		return createIndex(store.collection, fields, false)
	}
}

// WithUniqueIndex is WithIndex with a uniqueness constraint.
func WithUniqueIndex[T any](fields ...string) StoreOption[T] {
	return func(store *Store[T]) error {
		return createIndex(store.collection, fields, true)
	}
}

func createIndex(collection *mongo.Collection, fields []string, unique bool) error {
	keys := make(bson.D, 0, len(fields))
	for _, field := range fields {
		keys = append(keys, bson.E{Key: field, Value: 1})
	}
	ctx, cancel := context.WithTimeout(context.Background(), _INDEX_TIMEOUT)
	defer cancel()
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(unique),
	})
	return err
}
