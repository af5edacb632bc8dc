package sdk

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	datautils "github.com/soumitsalman/data-utils"
	"github.com/soumitsalman/eventsack/feeds"
	"github.com/soumitsalman/eventsack/metrics"
	"github.com/soumitsalman/eventsack/store"
)

const (
	MAX_INGEST_TITLE_LENGTH       = feeds.MaxTitleLength
	MAX_INGEST_DESCRIPTION_LENGTH = 10000
)

// Ingest validates pushed items and stores each valid one as an unprocessed
// payload for a later scan. Invalid items are skipped, not rejected.
func (svc *Service) Ingest(ctx context.Context, items []IngestItem) (*IngestResult, error) {
	result := &IngestResult{Success: true, Received: len(items), Sources: []string{}}
	received_at := svc.now().UTC()

	payloads := make([]store.FeedPayload, 0, len(items))
	seen_sources := make(map[string]bool)
	for i := range items {
		if err := validateIngestItem(&items[i]); err != nil {
			log.Printf("[ingest] skipping item %d. %v\n", i, err)
			result.Skipped++
			continue
		}
		payload := newFeedPayload(&items[i], svc.registry.Label(items[i].Link), received_at)
		payloads = append(payloads, payload)
		if !seen_sources[payload.SourceName] {
			seen_sources[payload.SourceName] = true
			result.Sources = append(result.Sources, payload.SourceName)
		}
	}

	var store_err error
	batches := 0
	runInBatches(payloads, svc.ingest_batch, func(batch []store.FeedPayload) bool {
		if batches++; batches > 1 {
			if err := pause(ctx, svc.ingest_delay); err != nil {
				store_err = err
				return false
			}
		}
		count, err := svc.store.AddPayloads(ctx, batch)
		result.Processed += count
		if err != nil {
			store_err = err
			return false
		}
		return true
	})
	metrics.IngestedItems.WithLabelValues("stored").Add(float64(result.Processed))
	metrics.IngestedItems.WithLabelValues("skipped").Add(float64(result.Skipped))
	if store_err != nil {
		return nil, eris.Wrapf(store_err, "storing payloads, %d of %d stored", result.Processed, len(payloads))
	}
	log.Printf("[ingest] %d received, %d stored, %d skipped\n", result.Received, result.Processed, result.Skipped)
	return result, nil
}

func validateIngestItem(item *IngestItem) error {
	item.Title = strings.TrimSpace(item.Title)
	item.Description = strings.TrimSpace(item.Description)
	item.Link = strings.TrimSpace(item.Link)
	item.PubDate = strings.TrimSpace(item.PubDate)
	switch {
	case item.Title == "":
		return ValidationError("title is empty")
	case utf8.RuneCountInString(item.Title) > MAX_INGEST_TITLE_LENGTH:
		return ValidationError(fmt.Sprintf("title is longer than %d characters", MAX_INGEST_TITLE_LENGTH))
	case item.Description == "":
		return ValidationError("description is empty")
	case utf8.RuneCountInString(item.Description) > MAX_INGEST_DESCRIPTION_LENGTH:
		return ValidationError(fmt.Sprintf("description is longer than %d characters", MAX_INGEST_DESCRIPTION_LENGTH))
	}
	return nil
}

func newFeedPayload(item *IngestItem, source_name string, received_at time.Time) store.FeedPayload {
	raw := itemMarkup(item)
	return store.FeedPayload{
		ID:            uuid.NewString(),
		SourceURL:     item.Link,
		SourceName:    source_name,
		RawContent:    raw,
		ContentLength: len(raw),
		Processed:     false,
		ScrapedAt:     received_at,
	}
}

// itemMarkup renders an item as a single rss item block so a scan reads it
// back through the same extractor as any other feed.
func itemMarkup(item *IngestItem) string {
	var sb strings.Builder
	sb.WriteString("<item>")
	writeElement(&sb, "title", item.Title)
	writeElement(&sb, "link", item.Link)
	writeElement(&sb, "description", item.Description)
	writeElement(&sb, "pubDate", item.PubDate)
	sb.WriteString("</item>")
	return sb.String()
}

func writeElement(sb *strings.Builder, tag, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "<%s>%s</%s>", tag, html.EscapeString(value), tag)
}

// runInBatches stops at the first batch do rejects.
func runInBatches[T any](items []T, batch_size int, do func(batch []T) bool) {
	for i := 0; i < len(items); i += batch_size {
		if !do(datautils.SafeSlice(items, i, i+batch_size)) {
			return
		}
	}
}
