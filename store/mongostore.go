package store

import (
	"context"
	"log"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStore keeps payloads, briefs and tenants in three collections of one database.
type MongoStore struct {
	client   *mongo.Client
	payloads *Store[FeedPayload]
	briefs   *Store[Brief]
	tenants  *Store[Tenant]
	now      func() time.Time
}

func NewMongoStore(ctx context.Context, connection_string, database string, dedupe_briefs bool) (*MongoStore, error) {
	client, err := createMongoClient(ctx, connection_string)
	if err != nil {
		return nil, err
	}
	if database == "" {
		database = EVENTSACK
	}

	payloads, err := New(client, database, FEED_PAYLOADS,
		WithIndex[FeedPayload]("processed", "scraped_at"))
	if err != nil {
		return nil, err
	}
	brief_options := []StoreOption[Brief]{WithIndex[Brief]("tenant_id", "created_at")}
	if dedupe_briefs {
		brief_options = append(brief_options, WithUniqueIndex[Brief]("fingerprint"))
	}
	briefs, err := New(client, database, BRIEFS, brief_options...)
	if err != nil {
		return nil, err
	}
	tenants, err := New[Tenant](client, database, TENANTS)
	if err != nil {
		return nil, err
	}
	return &MongoStore{client: client, payloads: payloads, briefs: briefs, tenants: tenants, now: time.Now}, nil
}

func (s *MongoStore) AddPayloads(ctx context.Context, payloads []FeedPayload) (int, error) {
	return s.payloads.Add(ctx, payloads)
}

// ClaimUnprocessed hands out up to limit unprocessed payloads. With a zero lease
// it is a plain read and two overlapping scans can both get the same rows.
func (s *MongoStore) ClaimUnprocessed(ctx context.Context, worker_id string, lease time.Duration, limit int) ([]FeedPayload, error) {
	limit = limitOrDefault(limit)
	oldest_first := JSON{"scraped_at": 1}
	if lease <= 0 {
		return s.payloads.Get(ctx, JSON{"processed": false}, oldest_first, limit)
	}

	now := s.now()
	expires := now.Add(lease)
	filter := JSON{
		"processed": false,
		"$or": []JSON{
			{"claim_expires_at": JSON{"$exists": false}},
			{"claim_expires_at": nil},
			{"claim_expires_at": JSON{"$lt": now}},
		},
	}
	update := JSON{"$set": JSON{"claimed_by": worker_id, "claim_expires_at": expires}}

	claimed := make([]FeedPayload, 0, 16)
	for len(claimed) < limit {
		payload, err := s.payloads.FindAndUpdate(ctx, filter, update, oldest_first)
		if err != nil {
			return claimed, err
		}
		if payload == nil {
			break
		}
		claimed = append(claimed, *payload)
	}
	log.Printf("[mongostore] %s claimed %d payloads until %s\n", worker_id, len(claimed), expires.Format(time.RFC3339))
	return claimed, nil
}

func (s *MongoStore) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.payloads.Update(ctx,
		JSON{"_id": JSON{"$in": ids}},
		JSON{
			"$set":   JSON{"processed": true},
			"$unset": JSON{"claimed_by": "", "claim_expires_at": ""},
		})
	return err
}

func (s *MongoStore) InsertBrief(ctx context.Context, brief *Brief) error {
	err := s.briefs.AddOne(ctx, *brief)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateBrief
	}
	if err != nil {
		return eris.Wrap(err, "inserting brief")
	}
	return nil
}

func (s *MongoStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	return s.tenants.Get(ctx, JSON{}, JSON{"_id": 1}, -1)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
