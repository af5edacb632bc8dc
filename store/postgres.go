package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

const _UNIQUE_VIOLATION = "23505"

const _SCHEMA = `
CREATE TABLE IF NOT EXISTS feed_payloads (
	id               TEXT PRIMARY KEY,
	source_url       TEXT NOT NULL,
	source_name      TEXT NOT NULL,
	raw_content      TEXT NOT NULL,
	content_length   INTEGER NOT NULL,
	processed        BOOLEAN NOT NULL DEFAULT FALSE,
	scraped_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	claimed_by       TEXT,
	claim_expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS feed_payloads_unprocessed_idx ON feed_payloads (scraped_at) WHERE NOT processed;

CREATE TABLE IF NOT EXISTS research_briefs (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	theme           TEXT NOT NULL,
	key_points      TEXT[] NOT NULL,
	event_name      TEXT NOT NULL,
	event_date      DATE NOT NULL,
	event_location  TEXT NOT NULL,
	context_summary TEXT NOT NULL,
	fingerprint     TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS research_briefs_tenant_idx ON research_briefs (tenant_id, created_at);

CREATE TABLE IF NOT EXISTS tenants (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	location     TEXT NOT NULL DEFAULT ''
);
`

const _UNIQUE_FINGERPRINT = `CREATE UNIQUE INDEX IF NOT EXISTS research_briefs_fingerprint_idx ON research_briefs (fingerprint)`

const _PAYLOAD_COLUMNS = `id, source_url, source_name, raw_content, content_length, processed, scraped_at, claimed_by, claim_expires_at`

// PostgresStore is the relational alternative to MongoStore, same contract.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string, max_conns int32, dedupe_briefs bool) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "parsing postgres dsn")
	}
	if max_conns > 0 {
		cfg.MaxConns = max_conns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "opening postgres pool")
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "pinging postgres")
	}
	s := &PostgresStore{pool: pool}
	if err = s.ensureSchema(ctx, dedupe_briefs); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context, dedupe_briefs bool) error {
	if _, err := s.pool.Exec(ctx, _SCHEMA); err != nil {
		return eris.Wrap(err, "creating schema")
	}
	if dedupe_briefs {
		if _, err := s.pool.Exec(ctx, _UNIQUE_FINGERPRINT); err != nil {
			return eris.Wrap(err, "creating fingerprint index")
		}
	}
	return nil
}

func (s *PostgresStore) AddPayloads(ctx context.Context, payloads []FeedPayload) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for i := range payloads {
		p := &payloads[i]
		batch.Queue(
			`INSERT INTO feed_payloads (id, source_url, source_name, raw_content, content_length, processed, scraped_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, p.SourceURL, p.SourceName, p.RawContent, p.ContentLength, p.Processed, p.ScrapedAt)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range payloads {
		if _, err := results.Exec(); err != nil {
			return inserted, eris.Wrap(err, "inserting feed payload")
		}
		inserted++
	}
	log.Printf("[pgstore] %d payloads inserted.\n", inserted)
	return inserted, nil
}

// ClaimUnprocessed uses SKIP LOCKED so overlapping scans split the backlog
// instead of both taking it. A zero lease degrades to a plain read.
func (s *PostgresStore) ClaimUnprocessed(ctx context.Context, worker_id string, lease time.Duration, limit int) ([]FeedPayload, error) {
	limit = limitOrDefault(limit)
	var rows pgx.Rows
	var err error
	if lease <= 0 {
		rows, err = s.pool.Query(ctx,
			`SELECT `+_PAYLOAD_COLUMNS+` FROM feed_payloads WHERE NOT processed ORDER BY scraped_at LIMIT $1`,
			limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`UPDATE feed_payloads SET claimed_by = $1, claim_expires_at = now() + $2::interval
			 WHERE id IN (
				SELECT id FROM feed_payloads
				WHERE NOT processed AND (claim_expires_at IS NULL OR claim_expires_at < now())
				ORDER BY scraped_at
				LIMIT $3
				FOR UPDATE SKIP LOCKED)
			 RETURNING `+_PAYLOAD_COLUMNS,
			worker_id, lease, limit)
	}
	if err != nil {
		return nil, eris.Wrap(err, "claiming feed payloads")
	}
	defer rows.Close()

	payloads := make([]FeedPayload, 0, 16)
	for rows.Next() {
		var p FeedPayload
		var claimed_by *string
		if err := rows.Scan(&p.ID, &p.SourceURL, &p.SourceName, &p.RawContent, &p.ContentLength,
			&p.Processed, &p.ScrapedAt, &claimed_by, &p.ClaimExpiresAt); err != nil {
			return nil, eris.Wrap(err, "scanning feed payload")
		}
		if claimed_by != nil {
			p.ClaimedBy = *claimed_by
		}
		payloads = append(payloads, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "reading feed payloads")
	}
	return payloads, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE feed_payloads SET processed = TRUE, claimed_by = NULL, claim_expires_at = NULL WHERE id = ANY($1)`,
		ids)
	if err != nil {
		return eris.Wrap(err, "marking payloads processed")
	}
	return nil
}

func (s *PostgresStore) InsertBrief(ctx context.Context, brief *Brief) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO research_briefs (id, tenant_id, theme, key_points, event_name, event_date, event_location, context_summary, fingerprint, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		brief.ID, brief.TenantID, brief.Theme, brief.KeyPoints, brief.EventName, brief.EventDate,
		brief.EventLocation, brief.ContextSummary, brief.Fingerprint, brief.CreatedAt)
	var pg_err *pgconn.PgError
	if errors.As(err, &pg_err) && pg_err.Code == _UNIQUE_VIOLATION {
		return ErrDuplicateBrief
	}
	if err != nil {
		return eris.Wrap(err, "inserting brief")
	}
	return nil
}

func (s *PostgresStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, display_name, location FROM tenants ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "reading tenants")
	}
	defer rows.Close()

	tenants := make([]Tenant, 0, 8)
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.DisplayName, &t.Location); err != nil {
			return nil, eris.Wrap(err, "scanning tenant")
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "reading tenants")
	}
	return tenants, nil
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}
