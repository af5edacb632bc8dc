package sdk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/soumitsalman/eventsack/metrics"
	"github.com/soumitsalman/eventsack/store"
	"golang.org/x/sync/errgroup"
)

const _BRIEF_THEME = "Local event opportunity"

// fanOut writes one brief per (event, tenant) pair and returns how many made it.
// A failed pair is logged and skipped.
func (svc *Service) fanOut(ctx context.Context, events []EnrichedEvent, tenants []store.Tenant) int {
	if len(events) == 0 || len(tenants) == 0 {
		return 0
	}
	var created atomic.Int64
	created_at := svc.now().UTC()

	var g errgroup.Group
	g.SetLimit(svc.fanout_workers)
	for i := range events {
		for j := range tenants {
			event, tenant := &events[i], &tenants[j]
			g.Go(func() error {
				if err := pause(ctx, svc.write_delay); err != nil {
					metrics.BriefsFailed.WithLabelValues("cancelled").Inc()
					return nil
				}
				brief := newBrief(event, tenant, created_at)
				err := svc.store.InsertBrief(ctx, &brief)
				switch {
				case errors.Is(err, store.ErrDuplicateBrief):
					log.Printf("[fanout] %s already has a brief for %q\n", tenant.ID, event.EventName)
					metrics.BriefsFailed.WithLabelValues("duplicate").Inc()
				case err != nil:
					log.Printf("[fanout] brief for %s / %q failed. %v\n", tenant.ID, event.EventName, err)
					metrics.BriefsFailed.WithLabelValues("write").Inc()
				default:
					created.Add(1)
					metrics.BriefsCreated.Inc()
				}
				return nil
			})
		}
	}
	g.Wait()
	log.Printf("[fanout] %d of %d briefs created\n", created.Load(), len(events)*len(tenants))
	return int(created.Load())
}

func newBrief(event *EnrichedEvent, tenant *store.Tenant, created_at time.Time) store.Brief {
	return store.Brief{
		ID:             uuid.NewString(),
		TenantID:       tenant.ID,
		Theme:          _BRIEF_THEME,
		KeyPoints:      keyPoints(event),
		EventName:      event.EventName,
		EventDate:      event.EventDate,
		EventLocation:  event.EventLocation,
		ContextSummary: event.EventSummary,
		Fingerprint:    Fingerprint(event.Title, event.SourceURL, tenant.ID),
		CreatedAt:      created_at,
	}
}

// keyPoints lists every enrichment field in a fixed order.
func keyPoints(event *EnrichedEvent) []string {
	return []string{
		"Event: " + event.EventName,
		"Date: " + event.EventDate.Format(DATE_FORMAT),
		"Location: " + event.EventLocation,
		"Summary: " + event.EventSummary,
		"URL: " + event.EventURL,
		fmt.Sprintf("Relevance: %d/10", event.RelevanceScore),
		"Source: " + event.SourceName,
		"Discovered: " + event.DiscoveredAt.Format(time.RFC3339),
		"Provenance: " + event.Provenance,
	}
}

// Fingerprint identifies a brief by what it is about rather than by run:
// sha256 over the normalized title, the source and the tenant.
func Fingerprint(title, source, tenant_id string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(title)), " ")
	sum := sha256.Sum256([]byte(normalized + "\x00" + strings.ToLower(strings.TrimSpace(source)) + "\x00" + tenant_id))
	return hex.EncodeToString(sum[:])
}

func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
