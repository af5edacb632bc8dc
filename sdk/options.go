package sdk

import (
	"log"
	"time"

	"github.com/soumitsalman/eventsack/feeds"
	"github.com/soumitsalman/eventsack/nlp"
)

type FailurePolicy string

const (
	// FailOpen passes a whole batch through when the gatekeeper can't answer.
	FailOpen FailurePolicy = "fail_open"
	// FailClosed drops it instead.
	FailClosed FailurePolicy = "fail_closed"
)

type Option func(svc *Service)

func WithFailurePolicy(policy FailurePolicy) Option {
	return func(svc *Service) {
		switch policy {
		case FailOpen, FailClosed:
			svc.policy = policy
		case "":
			svc.policy = FailOpen
		default:
			log.Printf("[sdk] unknown failure policy %q, keeping %s\n", policy, FailOpen)
			svc.policy = FailOpen
		}
	}
}

// WithTrade names the tenant trade the classifier prompts are written for.
func WithTrade(trade string) Option {
	return func(svc *Service) {
		if trade != "" {
			svc.trade = trade
		}
	}
}

func WithCompetitors(competitors []string) Option {
	return func(svc *Service) { svc.SetCompetitors(competitors) }
}

func WithClassifierBatchSize(size int) Option {
	return func(svc *Service) {
		if size > 0 {
			svc.classifier_batch = size
		}
	}
}

func WithTokenBudget(budget *nlp.TokenBudget) Option {
	return func(svc *Service) { svc.tokens = budget }
}

// WithFanout bounds concurrent brief writes and spaces each worker's writes by delay.
func WithFanout(workers int, delay time.Duration) Option {
	return func(svc *Service) {
		if workers > 0 {
			svc.fanout_workers = workers
		}
		if delay >= 0 {
			svc.write_delay = delay
		}
	}
}

func WithIngestBatches(size int, delay time.Duration) Option {
	return func(svc *Service) {
		if size > 0 {
			svc.ingest_batch = size
		}
		if delay >= 0 {
			svc.ingest_delay = delay
		}
	}
}

// WithLease sets how long a scan holds the stored payloads it claimed. Zero turns claiming off.
func WithLease(lease time.Duration, limit int) Option {
	return func(svc *Service) {
		svc.lease = lease
		svc.claim_limit = limit
	}
}

func WithDefaultWindow(days int) Option {
	return func(svc *Service) {
		if days > 0 {
			svc.default_window_days = days
		}
	}
}

func WithRegistry(registry *feeds.Registry) Option {
	return func(svc *Service) {
		if registry != nil {
			svc.registry = registry
		}
	}
}

func WithFetcher(fetcher Fetcher) Option {
	return func(svc *Service) { svc.fetcher = fetcher }
}

func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		if now != nil {
			svc.now = now
		}
	}
}
