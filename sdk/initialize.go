package sdk

import (
	"context"
	"sync"
	"time"

	"github.com/soumitsalman/eventsack/feeds"
	"github.com/soumitsalman/eventsack/nlp"
	"github.com/soumitsalman/eventsack/store"
)

const (
	_DEFAULT_TRADE            = "local hospitality"
	_DEFAULT_CLASSIFIER_BATCH = 20
	_DEFAULT_FANOUT_WORKERS   = 4
	_DEFAULT_WRITE_DELAY      = 50 * time.Millisecond
	_DEFAULT_INGEST_BATCH     = 25
	_DEFAULT_INGEST_DELAY     = 100 * time.Millisecond
	_DEFAULT_WINDOW_DAYS      = 30
	_DEFAULT_LEASE            = 10 * time.Minute
	_EXTRACTION_WORKERS       = 8
)

type PayloadStore interface {
	AddPayloads(ctx context.Context, payloads []store.FeedPayload) (int, error)
	ClaimUnprocessed(ctx context.Context, worker_id string, lease time.Duration, limit int) ([]store.FeedPayload, error)
	MarkProcessed(ctx context.Context, ids []string) error
}

type BriefStore interface {
	InsertBrief(ctx context.Context, brief *store.Brief) error
}

type TenantStore interface {
	ListTenants(ctx context.Context) ([]store.Tenant, error)
}

// Store is everything the pipeline persists to or reads from.
type Store interface {
	PayloadStore
	BriefStore
	TenantStore
}

// Classifier is the completion service side of both classifier stages.
// *nlp.ClassifierClient is the production implementation.
type Classifier interface {
	Admit(ctx context.Context, inputs []nlp.CandidateInput, params nlp.PromptParams) ([]string, error)
	Enrich(ctx context.Context, inputs []nlp.CandidateInput, params nlp.PromptParams) ([]nlp.EventEnrichment, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Service runs scans and ingest pushes. It is safe for concurrent use.
type Service struct {
	store      Store
	classifier Classifier
	fetcher    Fetcher
	registry   *feeds.Registry
	builder    *feeds.Builder
	tokens     *nlp.TokenBudget
	now        func() time.Time

	policy           FailurePolicy
	trade            string
	classifier_batch int

	mu          sync.RWMutex
	competitors []string

	fanout_workers      int
	write_delay         time.Duration
	ingest_batch        int
	ingest_delay        time.Duration
	lease               time.Duration
	claim_limit         int
	default_window_days int
}

// NewService wires a pipeline over st. A nil classifier behaves like an
// unreachable completion service, so every stage runs on its fallback.
func NewService(st Store, classifier Classifier, opts ...Option) *Service {
	svc := &Service{
		store:               st,
		classifier:          classifier,
		registry:            feeds.NewRegistry(nil),
		now:                 time.Now,
		policy:              FailOpen,
		trade:               _DEFAULT_TRADE,
		classifier_batch:    _DEFAULT_CLASSIFIER_BATCH,
		fanout_workers:      _DEFAULT_FANOUT_WORKERS,
		write_delay:         _DEFAULT_WRITE_DELAY,
		ingest_batch:        _DEFAULT_INGEST_BATCH,
		ingest_delay:        _DEFAULT_INGEST_DELAY,
		lease:               _DEFAULT_LEASE,
		default_window_days: _DEFAULT_WINDOW_DAYS,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.fetcher == nil {
		svc.fetcher = feeds.NewFetcher(0)
	}
	svc.builder = feeds.NewBuilder(feeds.NewDateHeuristic(svc.now), svc.registry)
	return svc
}

// SetCompetitors swaps the competitor list used by the gatekeeper.
func (svc *Service) SetCompetitors(competitors []string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.competitors = append([]string(nil), competitors...)
}

func (svc *Service) Competitors() []string {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return append([]string(nil), svc.competitors...)
}

// Registry exposes the source labels so they can be reloaded in place.
func (svc *Service) Registry() *feeds.Registry {
	return svc.registry
}

func (svc *Service) today() time.Time {
	return feeds.ToDate(svc.now())
}
