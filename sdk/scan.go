package sdk

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	datautils "github.com/soumitsalman/data-utils"
	"github.com/soumitsalman/eventsack/feeds"
	"github.com/soumitsalman/eventsack/metrics"
	"github.com/soumitsalman/eventsack/store"
	"golang.org/x/sync/errgroup"
)

// Scan runs one pass of the pipeline over the inline payloads in req, or over
// the stored unprocessed payloads when there are none. Only a bad request and
// an unreachable store fail the scan. Everything else degrades.
func (svc *Service) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	start := time.Now()
	defer func() { metrics.ScanDuration.Observe(time.Since(start).Seconds()) }()

	window, err := svc.resolveWindow(req.DateRange)
	if err != nil {
		return nil, err
	}
	result := &ScanResult{
		Success: true,
		DateRange: ResolvedRange{
			StartDate:    window.Start.Format(DATE_FORMAT),
			EndDate:      window.End.Format(DATE_FORMAT),
			DurationDays: window.Days(),
		},
		Events: []EventView{},
	}

	// the roster is read first so an unreachable store fails before anything is claimed
	tenants, err := svc.store.ListTenants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reading tenant roster")
	}

	var candidates []feeds.Candidate
	if len(req.RawData) > 0 {
		result.DataSource = RAW_DATA
		candidates = svc.extract(svc.inlineFeeds(ctx, req.RawData), window)
	} else {
		payloads, err := svc.claimStored(ctx)
		if err != nil {
			return nil, err
		}
		if len(payloads) == 0 {
			result.DataSource = NONE
			result.Message = "No inline payloads and no unprocessed stored payloads to scan"
			metrics.ScansTotal.WithLabelValues(NONE).Inc()
			return result, nil
		}
		result.DataSource = STORED
		candidates = svc.extract(storedFeeds(payloads), window)
		// every claimed row is consumed, including the ones that gave nothing
		ids := datautils.Transform(payloads, func(p *store.FeedPayload) string { return p.ID })
		if err := svc.store.MarkProcessed(ctx, ids); err != nil {
			return nil, eris.Wrap(err, "marking payloads processed")
		}
	}
	metrics.ScansTotal.WithLabelValues(result.DataSource).Inc()

	result.EventsExtracted = len(candidates)
	metrics.CandidatesTotal.WithLabelValues(metrics.EXTRACTED).Add(float64(len(candidates)))
	if len(candidates) == 0 {
		result.Message = fmt.Sprintf("No candidate events between %s and %s", result.DateRange.StartDate, result.DateRange.EndDate)
		return result, nil
	}

	admitted := svc.gatekeep(ctx, candidates, window)
	result.EventsAfterGatekeeper = len(admitted)
	metrics.CandidatesTotal.WithLabelValues(metrics.GATEKEEPER).Add(float64(len(admitted)))

	events := svc.enrich(ctx, admitted, window, result.DataSource)
	result.EventsFinal = len(events)
	metrics.CandidatesTotal.WithLabelValues(metrics.ENRICHMENT).Add(float64(len(events)))
	if len(events) > 0 {
		result.Events = datautils.Transform(events, newEventView)
	}

	result.BriefsCreated = svc.fanOut(ctx, events, tenants)
	result.Message = svc.summarize(result, len(tenants))
	log.Printf("[scan] %s: %d extracted, %d gatekept, %d final, %d briefs\n",
		result.DataSource, result.EventsExtracted, result.EventsAfterGatekeeper, result.EventsFinal, result.BriefsCreated)
	return result, nil
}

func (svc *Service) summarize(result *ScanResult, tenant_count int) string {
	switch {
	case result.EventsFinal == 0:
		return fmt.Sprintf("%d candidate events found, none survived classification", result.EventsExtracted)
	case tenant_count == 0:
		return fmt.Sprintf("%d events found but no tenants are configured, 0 briefs created", result.EventsFinal)
	default:
		return fmt.Sprintf("%d events found, %d briefs created for %d tenants", result.EventsFinal, result.BriefsCreated, tenant_count)
	}
}

// resolveWindow validates the requested range or falls back to today plus the default span.
func (svc *Service) resolveWindow(date_range *DateRange) (feeds.Window, error) {
	today := svc.today()
	if date_range == nil || (date_range.StartDate == "" && date_range.EndDate == "") {
		return feeds.NewWindow(today, today.AddDate(0, 0, svc.default_window_days)), nil
	}
	start, err := parseRequestDate(date_range.StartDate, today)
	if err != nil {
		return feeds.Window{}, ValidationError(fmt.Sprintf("invalid start_date %q", date_range.StartDate))
	}
	end, err := parseRequestDate(date_range.EndDate, start.AddDate(0, 0, svc.default_window_days))
	if err != nil {
		return feeds.Window{}, ValidationError(fmt.Sprintf("invalid end_date %q", date_range.EndDate))
	}
	if end.Before(start) {
		return feeds.Window{}, ValidationError("end_date is before start_date")
	}
	return feeds.NewWindow(start, end), nil
}

func parseRequestDate(raw string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	if t, err := time.Parse(DATE_FORMAT, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (svc *Service) claimStored(ctx context.Context) ([]store.FeedPayload, error) {
	worker_id := uuid.NewString()
	payloads, err := svc.store.ClaimUnprocessed(ctx, worker_id, svc.lease, svc.claim_limit)
	if err != nil {
		return nil, eris.Wrap(err, "reading unprocessed payloads")
	}
	log.Printf("[scan] %s picked up %d stored payloads\n", worker_id, len(payloads))
	return payloads, nil
}

// inlineFeeds fetches the payloads that came with a url but no content.
// A failed fetch leaves the feed empty.
func (svc *Service) inlineFeeds(ctx context.Context, raw_data []RawData) []feeds.Feed {
	result := make([]feeds.Feed, len(raw_data))
	var g errgroup.Group
	g.SetLimit(_EXTRACTION_WORKERS)
	for i := range raw_data {
		result[i] = feeds.Feed{SourceURL: raw_data[i].SourceURL, Content: raw_data[i].RawContent}
		if strings.TrimSpace(raw_data[i].RawContent) != "" || raw_data[i].SourceURL == "" {
			continue
		}
		g.Go(func() error {
			content, err := svc.fetcher.Fetch(ctx, raw_data[i].SourceURL)
			if err != nil {
				log.Printf("[scan] fetching %s failed. %v\n", raw_data[i].SourceURL, err)
				return nil
			}
			result[i].Content = content
			return nil
		})
	}
	g.Wait()
	return result
}

func storedFeeds(payloads []store.FeedPayload) []feeds.Feed {
	return datautils.Transform(payloads, func(p *store.FeedPayload) feeds.Feed {
		return feeds.Feed{SourceURL: p.SourceURL, SourceName: p.SourceName, Content: p.RawContent}
	})
}

// extract builds candidates for every feed in parallel and flattens them in feed order.
func (svc *Service) extract(list []feeds.Feed, window feeds.Window) []feeds.Candidate {
	per_feed := make([][]feeds.Candidate, len(list))
	var g errgroup.Group
	g.SetLimit(_EXTRACTION_WORKERS)
	for i := range list {
		g.Go(func() error {
			per_feed[i] = svc.builder.Build(list[i], window)
			return nil
		})
	}
	g.Wait()

	candidates := make([]feeds.Candidate, 0, 16)
	for _, c := range per_feed {
		candidates = append(candidates, c...)
	}
	return candidates
}
