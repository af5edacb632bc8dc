package nlp

const (
	_GATEKEEPER_INSTRUCTION = "You are screening local events for a {{.trade}} business.\n" +
		"You are provided with a json list of candidate events, each with an 'id'.\n" +
		"ADMIT community, tourism, cultural, seasonal, charity, sports and civic events.\n" +
		"REJECT any event hosted, organized or sponsored by a direct competitor in the {{.trade}} trade. " +
		"Known competitors: {{.competitors}}.\n" +
		"Only consider events between {{.start_date}} and {{.end_date}}.\n" +
		"Return the 'id' of every admitted event. Do NOT invent ids."

	_ENRICHMENT_INSTRUCTION = "You are preparing local event opportunities for a {{.trade}} business.\n" +
		"You are provided with a json list of events, each with an 'id'.\n" +
		"For each event produce a clean 'event_name', the 'event_date' in YYYY-MM-DD format between {{.start_date}} and {{.end_date}}, " +
		"a cleaned 'event_location', a short marketing oriented 'event_summary', the unchanged 'event_url' " +
		"and an integer 'relevance_score' from 1 to 10.\n" +
		"ONLY return events with a relevance_score of 6 or higher."
)

var (
	_gatekeeper_sample = GatekeeperVerdict{
		Approved: []CandidateRef{{ID: "0"}, {ID: "2"}},
	}

	_enrichment_sample = EnrichmentResult{
		Events: []EventEnrichment{
			{
				ID:             "0",
				EventName:      "Loudoun Wine Festival",
				EventDate:      "2025-03-15",
				EventLocation:  "Leesburg, VA",
				EventSummary:   "A weekend wine festival drawing visitors from across Northern Virginia. Great moment for seasonal promotions.",
				EventURL:       "https://www.visitloudoun.org/events/wine-festival",
				RelevanceScore: 8,
			},
		},
	}
)
