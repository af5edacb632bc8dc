package sdk

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/soumitsalman/eventsack/feeds"
	"github.com/soumitsalman/eventsack/metrics"
	"github.com/soumitsalman/eventsack/nlp"
)

const (
	MIN_RELEVANCE_SCORE      = 6
	MAX_RELEVANCE_SCORE      = 10
	FALLBACK_RELEVANCE_SCORE = 7

	// undated events with no better guess are parked this far out
	FALLBACK_DATE_OFFSET_DAYS = 30
)

var _service_date_layouts = []string{
	DATE_FORMAT,
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// enrich scores and cleans up gatekept candidates. Events the service leaves
// out or scores under the floor are dropped. A batch the service can't answer
// goes through the local fallback instead.
func (svc *Service) enrich(ctx context.Context, candidates []feeds.Candidate, window feeds.Window, provenance string) []EnrichedEvent {
	if len(candidates) == 0 {
		return nil
	}
	params := svc.promptParams(window)
	discovered_at := svc.now().UTC()
	events := make([]EnrichedEvent, 0, len(candidates))

	for _, batch := range batchInputs(toCandidateInputs(candidates, svc.tokens), svc.classifier_batch, svc.tokens) {
		if svc.classifier == nil {
			metrics.ClassifierFallbacks.WithLabelValues(metrics.ENRICHMENT, metrics.UNAVAILABLE).Inc()
			events = append(events, svc.fallbackEvents(candidates, batch, provenance, discovered_at)...)
			continue
		}
		enrichments, err := svc.classifier.Enrich(ctx, batch, params)
		if err != nil {
			log.Printf("[enrichment] batch of %d failed, using fallback. %v\n", len(batch), err)
			metrics.ClassifierFallbacks.WithLabelValues(metrics.ENRICHMENT, metrics.FAILED).Inc()
			events = append(events, svc.fallbackEvents(candidates, batch, provenance, discovered_at)...)
			continue
		}

		in_batch := batchIDs(batch)
		seen := make(map[int]bool, len(enrichments))
		for j := range enrichments {
			id := strings.TrimSpace(enrichments[j].ID)
			i, ok := candidateIndex(id, len(candidates))
			// answers for ids this batch never carried can't be placed
			if !ok || !in_batch[id] || seen[i] {
				continue
			}
			seen[i] = true
			if event, ok := svc.mergeEnrichment(&candidates[i], &enrichments[j], provenance, discovered_at); ok {
				events = append(events, event)
			}
		}
	}
	log.Printf("[enrichment] %d of %d candidates kept\n", len(events), len(candidates))
	return events
}

// mergeEnrichment lays the service's answer over the candidate. The candidate's
// own date wins over the service's so dated events stay inside the window.
func (svc *Service) mergeEnrichment(candidate *feeds.Candidate, enrichment *nlp.EventEnrichment, provenance string, discovered_at time.Time) (EnrichedEvent, bool) {
	score := clampScore(enrichment.RelevanceScore)
	if score < MIN_RELEVANCE_SCORE {
		return EnrichedEvent{}, false
	}
	event := EnrichedEvent{
		EventName:      firstNonEmpty(enrichment.EventName, candidate.Title),
		EventLocation:  strings.TrimSpace(enrichment.EventLocation),
		EventSummary:   firstNonEmpty(enrichment.EventSummary, candidate.Description),
		EventURL:       firstNonEmpty(enrichment.EventURL, candidate.Link),
		RelevanceScore: score,
		SourceURL:      candidate.SourceURL,
		SourceName:     candidate.SourceName,
		Provenance:     provenance,
		DiscoveredAt:   discovered_at,
		Title:          candidate.Title,
	}
	switch date, ok := parseServiceDate(enrichment.EventDate); {
	case candidate.EventDate != nil:
		event.EventDate = *candidate.EventDate
	case ok:
		event.EventDate = date
	default:
		event.EventDate = svc.fallbackDate()
	}
	return event, true
}

func (svc *Service) fallbackEvents(candidates []feeds.Candidate, batch []nlp.CandidateInput, provenance string, discovered_at time.Time) []EnrichedEvent {
	events := make([]EnrichedEvent, 0, len(batch))
	for _, input := range batch {
		i, ok := candidateIndex(input.ID, len(candidates))
		if !ok {
			continue
		}
		events = append(events, svc.fallbackEvent(&candidates[i], provenance, discovered_at))
	}
	return events
}

// fallbackEvent is the deterministic stand-in for an enrichment.
func (svc *Service) fallbackEvent(candidate *feeds.Candidate, provenance string, discovered_at time.Time) EnrichedEvent {
	event := EnrichedEvent{
		EventName:      candidate.Title,
		EventSummary:   candidate.Description,
		EventURL:       candidate.Link,
		RelevanceScore: FALLBACK_RELEVANCE_SCORE,
		SourceURL:      candidate.SourceURL,
		SourceName:     candidate.SourceName,
		Provenance:     provenance,
		DiscoveredAt:   discovered_at,
		Title:          candidate.Title,
	}
	if candidate.EventDate != nil {
		event.EventDate = *candidate.EventDate
	} else {
		event.EventDate = svc.fallbackDate()
	}
	return event
}

func (svc *Service) fallbackDate() time.Time {
	return svc.today().AddDate(0, 0, FALLBACK_DATE_OFFSET_DAYS)
}

func parseServiceDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range _service_date_layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return feeds.ToDate(t), true
		}
	}
	return time.Time{}, false
}

func clampScore(score int) int {
	switch {
	case score < 1:
		return 1
	case score > MAX_RELEVANCE_SCORE:
		return MAX_RELEVANCE_SCORE
	default:
		return score
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
