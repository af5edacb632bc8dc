package nlp

// CandidateInput is how one candidate is shown to the completion service.
type CandidateInput struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
	Source      string `json:"source,omitempty"`
	Date        string `json:"date,omitempty"`
}

type CandidateRef struct {
	ID string `json:"id" jsonschema_description:"The 'id' of an input event that is admitted"`
}

type GatekeeperVerdict struct {
	Approved []CandidateRef `json:"approved" jsonschema_description:"The input events that are NOT hosted or organized by a competitor"`
}

type EventEnrichment struct {
	ID             string `json:"id" jsonschema_description:"The 'id' of the input event this output describes"`
	EventName      string `json:"event_name" jsonschema_description:"A clean, human friendly name of the event"`
	EventDate      string `json:"event_date,omitempty" jsonschema_description:"The date of the event in YYYY-MM-DD format"`
	EventLocation  string `json:"event_location,omitempty" jsonschema_description:"The venue, town or area where the event takes place"`
	EventSummary   string `json:"event_summary" jsonschema_description:"A 1 to 2 sentence marketing oriented summary of why the event matters to local customers"`
	EventURL       string `json:"event_url,omitempty" jsonschema_description:"The link of the input event, unchanged"`
	RelevanceScore int    `json:"relevance_score" jsonschema_description:"Integer from 1 to 10 rating how useful the event is for local marketing"`
}

type EnrichmentResult struct {
	Events []EventEnrichment `json:"events" jsonschema_description:"One entry per input event scoring 6 or higher"`
}
