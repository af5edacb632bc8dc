package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is a thin typed wrapper over one mongo collection.
type Store[T any] struct {
	name       string
	collection *mongo.Collection
}

func New[T any](client *mongo.Client, database, collection string, opts ...StoreOption[T]) (*Store[T], error) {
	store := &Store[T]{
		name:       fmt.Sprintf("%s/%s", database, collection),
		collection: client.Database(database).Collection(collection),
	}
	for _, opt := range opts {
		if err := opt(store); err != nil {
			return nil, eris.Wrapf(err, "configuring %s", store.name)
		}
	}
	return store, nil
}

func (store *Store[T]) Add(ctx context.Context, docs []T) (int, error) {
	if len(docs) == 0 {
		log.Printf("[%s]: Empty list of docs, nothing to insert.\n", store.name)
		return 0, nil
	}
	items := make([]any, len(docs))
	for i := range docs {
		items[i] = docs[i]
	}
	res, err := store.collection.InsertMany(ctx, items)
	if err != nil {
		log.Printf("[%s]: Insertion failed. %v\n", store.name, err)
		return 0, eris.Wrapf(err, "inserting into %s", store.name)
	}
	log.Printf("[%s]: %d items inserted.\n", store.name, len(res.InsertedIDs))
	return len(res.InsertedIDs), nil
}

func (store *Store[T]) AddOne(ctx context.Context, doc T) error {
	_, err := store.collection.InsertOne(ctx, doc)
	return err
}

func (store *Store[T]) Get(ctx context.Context, filter JSON, sort_by JSON, top_n int) ([]T, error) {
	find_options := options.Find()
	if len(sort_by) > 0 {
		find_options = find_options.SetSort(sort_by)
	}
	if top_n > 0 {
		find_options = find_options.SetLimit(int64(top_n))
	}
	cursor, err := store.collection.Find(ctx, filter, find_options)
	if err != nil {
		log.Printf("[%s]: Couldn't retrieve items. %v\n", store.name, err)
		return nil, eris.Wrapf(err, "reading %s", store.name)
	}
	defer cursor.Close(ctx)

	var contents []T
	if err = cursor.All(ctx, &contents); err != nil {
		return nil, eris.Wrapf(err, "decoding %s", store.name)
	}
	return contents, nil
}

// FindAndUpdate atomically applies update to the first document matching filter
// and returns it post-update. A nil result with nil error means nothing matched.
func (store *Store[T]) FindAndUpdate(ctx context.Context, filter JSON, update JSON, sort_by JSON) (*T, error) {
	update_options := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if len(sort_by) > 0 {
		update_options = update_options.SetSort(sort_by)
	}
	var doc T
	err := store.collection.FindOneAndUpdate(ctx, filter, update, update_options).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "claiming from %s", store.name)
	}
	return &doc, nil
}

func (store *Store[T]) Update(ctx context.Context, filter JSON, update JSON) (int64, error) {
	res, err := store.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		log.Printf("[%s]: Update failed. %v\n", store.name, err)
		return 0, eris.Wrapf(err, "updating %s", store.name)
	}
	log.Printf("[%s]: %d items updated.\n", store.name, res.ModifiedCount)
	return res.ModifiedCount, nil
}

func createMongoClient(ctx context.Context, connection_string string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connection_string))
	if err != nil {
		return nil, eris.Wrap(err, "connecting to mongo")
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, eris.Wrap(err, "pinging mongo")
	}
	return client, nil
}
