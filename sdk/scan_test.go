package sdk_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/soumitsalman/eventsack/nlp"
	"github.com/soumitsalman/eventsack/sdk"
	"github.com/soumitsalman/eventsack/store"
)

func TestScanEndToEnd(t *testing.T) {
	st := store.NewMemoryStore(false, twoTenants()...)
	svc := newService(t, st, workingClassifier(), sdk.WithCompetitors([]string{"CompetitorCo"}))

	result := scan(t, svc, sdk.ScanRequest{DateRange: _full_year, RawData: inline(_two_item_feed)})

	if !result.Success || result.DataSource != sdk.RAW_DATA {
		t.Fatalf("unexpected result header: %+v", result)
	}
	if result.EventsExtracted != 2 || result.EventsAfterGatekeeper != 1 || result.EventsFinal != 1 || result.BriefsCreated != 2 {
		t.Fatalf("expected 2/1/1/2, got %d/%d/%d/%d",
			result.EventsExtracted, result.EventsAfterGatekeeper, result.EventsFinal, result.BriefsCreated)
	}
	event := result.Events[0]
	if event.EventDate != "2025-03-15" || event.SourceName != "Visit Loudoun" || event.RelevanceScore != 8 {
		t.Errorf("unexpected event: %+v", event)
	}
	if result.DateRange.StartDate != "2025-01-10" || result.DateRange.EndDate != "2025-12-31" || result.DateRange.DurationDays != 355 {
		t.Errorf("unexpected date range: %+v", result.DateRange)
	}

	briefs := st.Briefs()
	if len(briefs) != 2 {
		t.Fatalf("expected 2 stored briefs, got %d", len(briefs))
	}
	tenants := map[string]bool{}
	for _, b := range briefs {
		tenants[b.TenantID] = true
		if len(b.KeyPoints) != 9 || b.KeyPoints[len(b.KeyPoints)-1] != "Provenance: raw_data" {
			t.Errorf("unexpected key points: %v", b.KeyPoints)
		}
		if b.Fingerprint != sdk.Fingerprint("Loudoun Wine Festival 3/15/2025", "https://www.visitloudoun.org/feed", b.TenantID) {
			t.Errorf("unexpected fingerprint for %s", b.TenantID)
		}
	}
	if !tenants["tenant-1"] || !tenants["tenant-2"] {
		t.Errorf("expected one brief per tenant, got %v", tenants)
	}
}

func TestScanGatekeeperFailOpen(t *testing.T) {
	down := &fakeClassifier{
		admit:  func([]nlp.CandidateInput) ([]string, error) { return nil, errors.New("connection refused") },
		enrich: scoreAll(8),
	}
	cases := []struct {
		name       string
		classifier sdk.Classifier
	}{
		{name: "unreachable", classifier: down},
		{name: "not configured", classifier: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newService(t, store.NewMemoryStore(false, twoTenants()...), tc.classifier)
			result := scan(t, svc, sdk.ScanRequest{DateRange: _full_year, RawData: inline(_two_item_feed)})
			if result.EventsAfterGatekeeper != result.EventsExtracted || result.EventsExtracted != 2 {
				t.Errorf("fail open should pass everything, got %d of %d", result.EventsAfterGatekeeper, result.EventsExtracted)
			}
		})
	}
}

func TestScanGatekeeperFailClosed(t *testing.T) {
	down := &fakeClassifier{
		admit: func([]nlp.CandidateInput) ([]string, error) { return nil, errors.New("timeout") },
	}
	st := store.NewMemoryStore(false, twoTenants()...)
	svc := newService(t, st, down, sdk.WithFailurePolicy(sdk.FailClosed))

	result := scan(t, svc, sdk.ScanRequest{DateRange: _full_year, RawData: inline(_two_item_feed)})
	if !result.Success || result.EventsExtracted != 2 || result.EventsAfterGatekeeper != 0 || result.BriefsCreated != 0 {
		t.Errorf("fail closed should drop the batch: %+v", result)
	}
	if down.enrich_calls != 0 {
		t.Errorf("enrichment should not run on an empty set, ran %d times", down.enrich_calls)
	}
}

func TestScanGatekeeperIgnoresForeignIDs(t *testing.T) {
	confused := &fakeClassifier{
		admit:  func([]nlp.CandidateInput) ([]string, error) { return []string{"1", "9"}, nil },
		enrich: scoreAll(8),
	}
	svc := newService(t, store.NewMemoryStore(false), confused, sdk.WithClassifierBatchSize(1))

	result := scan(t, svc, sdk.ScanRequest{DateRange: _full_year, RawData: inline(_two_item_feed)})
	if confused.admit_calls != 2 {
		t.Fatalf("expected one call per candidate, got %d", confused.admit_calls)
	}
	if result.EventsAfterGatekeeper != 1 || result.Events[0].EventName != "CompetitorCo Anniversary Party" {
		t.Errorf("only the id sent in its own batch should count: %+v", result)
	}
}

func TestScanEnrichmentIgnoresForeignIDs(t *testing.T) {
	feed := `<rss><channel>
<item><title>Leesburg Art Walk</title><link>https://patch.com/e/0</link></item>
<item><title>Ashburn Farmers Market</title><link>https://patch.com/e/1</link></item>
</channel></rss>`
	// numbers every batch from zero, whatever ids it was sent
	restarting := &fakeClassifier{
		admit: rejectCompetitors,
		enrich: func(inputs []nlp.CandidateInput) ([]nlp.EventEnrichment, error) {
			return []nlp.EventEnrichment{{
				ID:             "0",
				EventName:      inputs[0].Title,
				EventURL:       inputs[0].Link,
				RelevanceScore: 8,
			}}, nil
		},
	}
	st := store.NewMemoryStore(false, twoTenants()...)
	svc := newService(t, st, restarting, sdk.WithClassifierBatchSize(1))

	result := scan(t, svc, sdk.ScanRequest{DateRange: _full_year, RawData: inline(feed)})
	if restarting.enrich_calls != 2 {
		t.Fatalf("expected one enrichment call per candidate, got %d", restarting.enrich_calls)
	}
	if result.EventsFinal != 1 || result.BriefsCreated != 2 {
		t.Fatalf("expected 1 event and 2 briefs, got %d and %d", result.EventsFinal, result.BriefsCreated)
	}
	event := result.Events[0]
	if event.EventName != "Leesburg Art Walk" || event.EventURL != "https://patch.com/e/0" {
		t.Errorf("answer attached to the wrong candidate: %+v", event)
	}
	for _, b := range st.Briefs() {
		if b.EventName != "Leesburg Art Walk" {
			t.Errorf("brief mixes events: %+v", b)
		}
	}
}

func TestScanEnrichmentFallback(t *testing.T) {
	down := &fakeClassifier{
		admit:  rejectCompetitors,
		enrich: func([]nlp.CandidateInput) ([]nlp.EventEnrichment, error) { return nil, errors.New("503") },
	}
	feed := `<rss><channel>
<item><title>Loudoun Wine Festival 3/15/2025</title><link>https://visitloudoun.org/wine</link><description>Spring releases.</description></item>
<item><title>Leesburg Flower and Garden Show</title><link>https://visitloudoun.org/flowers</link><description>Plants and vendors downtown.</description></item>
</channel></rss>`
	svc := newService(t, store.NewMemoryStore(false, twoTenants()...), down)

	result := scan(t, svc, sdk.ScanRequest{DateRange: _full_year, RawData: inline(feed)})
	if result.EventsFinal != 2 || result.BriefsCreated != 4 {
		t.Fatalf("fallback should keep every gatekept event: %+v", result)
	}
	want := map[string]string{
		"Loudoun Wine Festival 3/15/2025": "2025-03-15",
		"Leesburg Flower and Garden Show": "2025-02-09",
	}
	for _, event := range result.Events {
		if event.RelevanceScore != 7 {
			t.Errorf("%s: expected fallback score 7, got %d", event.EventName, event.RelevanceScore)
		}
		if event.EventDate != want[event.EventName] {
			t.Errorf("%s: expected date %s, got %s", event.EventName, want[event.EventName], event.EventDate)
		}
		if event.EventURL == "" {
			t.Errorf("%s: fallback should copy the link", event.EventName)
		}
	}
}

func TestScanEnrichmentScoreFloor(t *testing.T) {
	classifier := &fakeClassifier{
		admit: rejectCompetitors,
		enrich: func(inputs []nlp.CandidateInput) ([]nlp.EventEnrichment, error) {
			return []nlp.EventEnrichment{
				{ID: inputs[0].ID, EventName: "Wine Festival", RelevanceScore: 15},
				{ID: inputs[1].ID, EventName: "Garden Show", RelevanceScore: 4},
				{ID: "99", EventName: "Made up", RelevanceScore: 9},
			}, nil
		},
	}
	feed := `<rss><channel>
<item><title>Loudoun Wine Festival 3/15/2025</title><link>https://visitloudoun.org/wine</link></item>
<item><title>Leesburg Flower and Garden Show</title><link>https://visitloudoun.org/flowers</link></item>
</channel></rss>`
	svc := newService(t, store.NewMemoryStore(false), classifier)

	result := scan(t, svc, sdk.ScanRequest{DateRange: _full_year, RawData: inline(feed)})
	if result.EventsFinal != 1 || result.Events[0].EventName != "Wine Festival" || result.Events[0].RelevanceScore != 10 {
		t.Fatalf("expected only the clamped high scorer: %+v", result.Events)
	}
	if result.BriefsCreated != 0 || !strings.Contains(result.Message, "no tenants") {
		t.Errorf("an empty roster should be reported: %q", result.Message)
	}
}

func TestScanWindowInvariant(t *testing.T) {
	// the service insists every event is in 2030, the heuristic dates must win
	liar := &fakeClassifier{
		admit: rejectCompetitors,
		enrich: func(inputs []nlp.CandidateInput) ([]nlp.EventEnrichment, error) {
			out, _ := scoreAll(9)(inputs)
			for i := range out {
				out[i].EventDate = "2030-01-01"
			}
			return out, nil
		},
	}
	feed := `<rss><channel>
<item><title>Spring Craft Fair on March 20</title></item>
<item><title>Summer Jazz Night 7/4/2025</title></item>
<item><title>Harvest Festival 10/12/2025</title></item>
<item><title>Old Town Walking Tour</title></item>
</channel></rss>`
	svc := newService(t, store.NewMemoryStore(false), liar)
	window := &sdk.DateRange{StartDate: "2025-03-01", EndDate: "2025-07-31"}

	result := scan(t, svc, sdk.ScanRequest{DateRange: window, RawData: inline(feed)})
	if result.EventsExtracted != 3 {
		t.Fatalf("expected the October event filtered out, got %d candidates", result.EventsExtracted)
	}
	dated := map[string]string{
		"Spring Craft Fair on March 20": "2025-03-20",
		"Summer Jazz Night 7/4/2025":    "2025-07-04",
		"Old Town Walking Tour":         "2030-01-01",
	}
	for _, event := range result.Events {
		if event.EventDate != dated[event.EventName] {
			t.Errorf("%s: expected %s, got %s", event.EventName, dated[event.EventName], event.EventDate)
		}
	}
}

func TestScanRejectsBadWindow(t *testing.T) {
	svc := newService(t, store.NewMemoryStore(false), nil)
	cases := []sdk.DateRange{
		{StartDate: "not a date", EndDate: "2025-02-01"},
		{StartDate: "2025-02-01", EndDate: "2025/13/01"},
		{StartDate: "2025-03-01", EndDate: "2025-02-01"},
	}
	for _, dr := range cases {
		_, err := svc.Scan(context.Background(), sdk.ScanRequest{DateRange: &dr})
		var validation sdk.ValidationError
		if !errors.As(err, &validation) {
			t.Errorf("%+v: expected ValidationError, got %v", dr, err)
		}
	}
}

func TestScanDefaultWindow(t *testing.T) {
	svc := newService(t, store.NewMemoryStore(false), nil, sdk.WithDefaultWindow(14))
	result := scan(t, svc, sdk.ScanRequest{})
	if result.DateRange.StartDate != "2025-01-10" || result.DateRange.EndDate != "2025-01-24" || result.DateRange.DurationDays != 14 {
		t.Errorf("unexpected default window: %+v", result.DateRange)
	}
	if !result.Success || result.DataSource != sdk.NONE {
		t.Errorf("an empty backlog is a successful no-op: %+v", result)
	}
}

type failingTenants struct{ *store.MemoryStore }

func (failingTenants) ListTenants(context.Context) ([]store.Tenant, error) {
	return nil, errors.New("connection reset")
}

func TestScanFailsWhenRosterUnreadable(t *testing.T) {
	st := failingTenants{store.NewMemoryStore(false)}
	svc := newService(t, st, workingClassifier())
	if _, err := svc.Scan(context.Background(), sdk.ScanRequest{RawData: inline(_two_item_feed)}); err == nil {
		t.Fatal("expected the scan to fail")
	}
}

type staticFetcher map[string]string

func (f staticFetcher) Fetch(_ context.Context, url string) (string, error) {
	if body, ok := f[url]; ok {
		return body, nil
	}
	return "", errors.New("404")
}

func TestScanFetchesEmptyInlinePayloads(t *testing.T) {
	fetcher := staticFetcher{"https://visitloudoun.org/rss": _two_item_feed}
	svc := newService(t, store.NewMemoryStore(false, twoTenants()...), workingClassifier(), sdk.WithFetcher(fetcher))

	result := scan(t, svc, sdk.ScanRequest{
		DateRange: _full_year,
		RawData: []sdk.RawData{
			{SourceURL: "https://visitloudoun.org/rss"},
			{SourceURL: "https://gone.example.com/rss"},
		},
	})
	if result.EventsExtracted != 2 || result.BriefsCreated != 2 {
		t.Errorf("fetched feed should be scanned and the dead one ignored: %+v", result)
	}
}

func TestScanStoredPayloadsConsumedOnce(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(false, twoTenants()...)
	svc := newService(t, st, workingClassifier(), sdk.WithLease(time.Minute, 0))

	_, err := svc.Ingest(ctx, []sdk.IngestItem{
		{Title: "Loudoun Wine Festival 3/15/2025", Link: "https://www.visitloudoun.org/events/wine", Description: "Spring releases & tastings."},
		{Title: "Old", Link: "https://patch.com/x", Description: "title too short to become a candidate"},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	first := scan(t, svc, sdk.ScanRequest{DateRange: _full_year})
	if first.DataSource != sdk.STORED || first.EventsExtracted != 1 || first.BriefsCreated != 2 {
		t.Fatalf("unexpected first scan: %+v", first)
	}
	if first.Events[0].SourceName != "Visit Loudoun" {
		t.Errorf("stored source label should carry through: %+v", first.Events[0])
	}
	for _, p := range st.Payloads() {
		if !p.Processed {
			t.Errorf("payload %s should be processed, even without candidates", p.ID)
		}
	}

	second := scan(t, svc, sdk.ScanRequest{DateRange: _full_year})
	if second.DataSource != sdk.NONE || second.BriefsCreated != 0 {
		t.Errorf("second scan should find nothing: %+v", second)
	}
}
