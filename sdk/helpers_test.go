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

var _today = time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return _today }

const _two_item_feed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Visit Loudoun Events</title>
<item>
  <title>Loudoun Wine Festival 3/15/2025</title>
  <link>https://www.visitloudoun.org/events/wine-festival</link>
  <description><![CDATA[<p>Wineries across the county pour their spring releases.</p>]]></description>
</item>
<item>
  <title>CompetitorCo Anniversary Party</title>
  <link>https://competitorco.com/party</link>
  <description>Celebrate ten years with CompetitorCo.</description>
</item>
</channel></rss>`

var _full_year = &sdk.DateRange{StartDate: "2025-01-10", EndDate: "2025-12-31"}

type fakeClassifier struct {
	admit  func(inputs []nlp.CandidateInput) ([]string, error)
	enrich func(inputs []nlp.CandidateInput) ([]nlp.EventEnrichment, error)

	admit_calls  int
	enrich_calls int
}

func (f *fakeClassifier) Admit(_ context.Context, inputs []nlp.CandidateInput, _ nlp.PromptParams) ([]string, error) {
	f.admit_calls++
	if f.admit == nil {
		return nil, errors.New("admit not wired")
	}
	return f.admit(inputs)
}

func (f *fakeClassifier) Enrich(_ context.Context, inputs []nlp.CandidateInput, _ nlp.PromptParams) ([]nlp.EventEnrichment, error) {
	f.enrich_calls++
	if f.enrich == nil {
		return nil, errors.New("enrich not wired")
	}
	return f.enrich(inputs)
}

// rejectCompetitors admits everything not naming CompetitorCo.
func rejectCompetitors(inputs []nlp.CandidateInput) ([]string, error) {
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if !strings.Contains(in.Title, "CompetitorCo") {
			ids = append(ids, in.ID)
		}
	}
	return ids, nil
}

// scoreAll gives every input the same score and echoes its date.
func scoreAll(score int) func(inputs []nlp.CandidateInput) ([]nlp.EventEnrichment, error) {
	return func(inputs []nlp.CandidateInput) ([]nlp.EventEnrichment, error) {
		out := make([]nlp.EventEnrichment, 0, len(inputs))
		for _, in := range inputs {
			out = append(out, nlp.EventEnrichment{
				ID:             in.ID,
				EventName:      in.Title,
				EventDate:      in.Date,
				EventLocation:  "Leesburg, VA",
				EventSummary:   "Worth a promotion.",
				EventURL:       in.Link,
				RelevanceScore: score,
			})
		}
		return out, nil
	}
}

func workingClassifier() *fakeClassifier {
	return &fakeClassifier{admit: rejectCompetitors, enrich: scoreAll(8)}
}

func twoTenants() []store.Tenant {
	return []store.Tenant{
		{ID: "tenant-1", DisplayName: "Leesburg Bistro", Location: "Leesburg, VA"},
		{ID: "tenant-2", DisplayName: "Ashburn Cafe", Location: "Ashburn, VA"},
	}
}

func newService(t *testing.T, st sdk.Store, classifier sdk.Classifier, opts ...sdk.Option) *sdk.Service {
	t.Helper()
	opts = append([]sdk.Option{
		sdk.WithClock(fixedClock),
		sdk.WithFanout(2, 0),
		sdk.WithIngestBatches(2, 0),
	}, opts...)
	return sdk.NewService(st, classifier, opts...)
}

func scan(t *testing.T, svc *sdk.Service, req sdk.ScanRequest) *sdk.ScanResult {
	t.Helper()
	result, err := svc.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return result
}

func inline(content string) []sdk.RawData {
	return []sdk.RawData{{SourceURL: "https://www.visitloudoun.org/feed", RawContent: content}}
}
