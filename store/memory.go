package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. Used for local runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	payloads []FeedPayload
	briefs   []Brief
	tenants  []Tenant
	dedupe   bool
	now      func() time.Time

	// FailBrief, when set, is consulted before every brief insert and its error returned as is.
	FailBrief func(brief *Brief) error
}

func NewMemoryStore(dedupe_briefs bool, tenants ...Tenant) *MemoryStore {
	return &MemoryStore{
		tenants: append([]Tenant(nil), tenants...),
		dedupe:  dedupe_briefs,
		now:     time.Now,
	}
}

// WithClock swaps the clock used for lease bookkeeping.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) AddPayloads(_ context.Context, payloads []FeedPayload) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range payloads {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.ScrapedAt.IsZero() {
			p.ScrapedAt = s.now()
		}
		s.payloads = append(s.payloads, p)
	}
	return len(payloads), nil
}

func (s *MemoryStore) ClaimUnprocessed(_ context.Context, worker_id string, lease time.Duration, limit int) ([]FeedPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit = limitOrDefault(limit)
	now := s.now()

	order := make([]int, 0, len(s.payloads))
	for i := range s.payloads {
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.payloads[order[a]].ScrapedAt.Before(s.payloads[order[b]].ScrapedAt)
	})

	claimed := make([]FeedPayload, 0, 16)
	for _, i := range order {
		if len(claimed) >= limit {
			break
		}
		p := &s.payloads[i]
		if lease <= 0 {
			if !p.Processed {
				claimed = append(claimed, *p)
			}
			continue
		}
		if !p.claimable(now) {
			continue
		}
		expires := now.Add(lease)
		p.ClaimedBy = worker_id
		p.ClaimExpiresAt = &expires
		claimed = append(claimed, *p)
	}
	return claimed, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[string]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for i := range s.payloads {
		if marked[s.payloads[i].ID] {
			s.payloads[i].Processed = true
			s.payloads[i].ClaimedBy = ""
			s.payloads[i].ClaimExpiresAt = nil
		}
	}
	return nil
}

func (s *MemoryStore) InsertBrief(_ context.Context, brief *Brief) error {
	if s.FailBrief != nil {
		if err := s.FailBrief(brief); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dedupe {
		for i := range s.briefs {
			if s.briefs[i].Fingerprint == brief.Fingerprint {
				return ErrDuplicateBrief
			}
		}
	}
	s.briefs = append(s.briefs, *brief)
	return nil
}

func (s *MemoryStore) ListTenants(context.Context) ([]Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Tenant(nil), s.tenants...), nil
}

// SetTenants replaces the tenant roster.
func (s *MemoryStore) SetTenants(tenants ...Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = append([]Tenant(nil), tenants...)
}

func (s *MemoryStore) Payloads() []FeedPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FeedPayload(nil), s.payloads...)
}

func (s *MemoryStore) Briefs() []Brief {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Brief(nil), s.briefs...)
}

func (s *MemoryStore) Close(context.Context) error { return nil }
