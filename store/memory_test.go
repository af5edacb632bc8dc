package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soumitsalman/eventsack/store"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func seeded(t *testing.T, c *clock, n int) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore(false).WithClock(c.now)
	payloads := make([]store.FeedPayload, n)
	for i := range payloads {
		payloads[i] = store.FeedPayload{
			SourceURL:  "https://patch.com/feed",
			SourceName: "Patch",
			RawContent: "<item><title>Spring Fair</title></item>",
			ScrapedAt:  c.t.Add(time.Duration(i) * time.Minute),
		}
	}
	if _, err := s.AddPayloads(context.Background(), payloads); err != nil {
		t.Fatalf("AddPayloads: %v", err)
	}
	return s
}

func TestClaimWithoutLeaseDoubleReads(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
	s := seeded(t, c, 2)
	ctx := context.Background()

	first, _ := s.ClaimUnprocessed(ctx, "a", 0, 0)
	second, _ := s.ClaimUnprocessed(ctx, "b", 0, 0)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("plain reads should both see every row, got %d and %d", len(first), len(second))
	}
}

func TestClaimWithLeaseIsExclusive(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
	s := seeded(t, c, 3)
	ctx := context.Background()

	first, _ := s.ClaimUnprocessed(ctx, "a", time.Minute, 2)
	second, _ := s.ClaimUnprocessed(ctx, "b", time.Minute, 0)
	if len(first) != 2 || len(second) != 1 {
		t.Fatalf("expected 2 and 1 claimed, got %d and %d", len(first), len(second))
	}
	if first[0].ScrapedAt.After(first[1].ScrapedAt) {
		t.Errorf("claims should be oldest first")
	}

	c.t = c.t.Add(2 * time.Minute)
	expired, _ := s.ClaimUnprocessed(ctx, "c", time.Minute, 0)
	if len(expired) != 3 {
		t.Errorf("expired leases should be claimable again, got %d", len(expired))
	}
}

func TestMarkProcessedClearsClaim(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
	s := seeded(t, c, 2)
	ctx := context.Background()

	claimed, _ := s.ClaimUnprocessed(ctx, "a", time.Hour, 1)
	if err := s.MarkProcessed(ctx, []string{claimed[0].ID}); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	for _, p := range s.Payloads() {
		if p.ID == claimed[0].ID && (!p.Processed || p.ClaimedBy != "" || p.ClaimExpiresAt != nil) {
			t.Errorf("processed row still carries claim: %+v", p)
		}
	}
	rest, _ := s.ClaimUnprocessed(ctx, "b", 0, 0)
	if len(rest) != 1 {
		t.Errorf("expected 1 unprocessed row, got %d", len(rest))
	}
}

func TestInsertBriefDedupe(t *testing.T) {
	ctx := context.Background()
	brief := store.Brief{ID: "1", TenantID: "t1", Fingerprint: "abc"}

	loose := store.NewMemoryStore(false)
	_ = loose.InsertBrief(ctx, &brief)
	if err := loose.InsertBrief(ctx, &brief); err != nil {
		t.Errorf("duplicates are allowed without dedupe: %v", err)
	}

	strict := store.NewMemoryStore(true)
	_ = strict.InsertBrief(ctx, &brief)
	if err := strict.InsertBrief(ctx, &brief); !errors.Is(err, store.ErrDuplicateBrief) {
		t.Errorf("expected ErrDuplicateBrief, got %v", err)
	}
	if len(strict.Briefs()) != 1 {
		t.Errorf("expected 1 brief, got %d", len(strict.Briefs()))
	}
}
