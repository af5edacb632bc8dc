package sdk

import (
	"time"
)

// data sources reported by a scan
const (
	RAW_DATA = "raw_data"
	STORED   = "stored"
	NONE     = "none"
)

// DATE_FORMAT is the wire format of every calendar date in requests and responses.
const DATE_FORMAT = "2006-01-02"

type ValidationError string

func (err ValidationError) Error() string {
	return string(err)
}

// EnrichedEvent is a candidate that survived both classifier stages.
type EnrichedEvent struct {
	EventName      string    `json:"event_name"`
	EventDate      time.Time `json:"event_date"`
	EventLocation  string    `json:"event_location"`
	EventSummary   string    `json:"event_summary"`
	EventURL       string    `json:"event_url"`
	RelevanceScore int       `json:"relevance_score"`
	SourceURL      string    `json:"source_url"`
	SourceName     string    `json:"source_name"`
	Provenance     string    `json:"provenance"`
	DiscoveredAt   time.Time `json:"discovered_at"`

	// title as it came out of the feed, stable across runs
	Title string `json:"-"`
}

type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type RawData struct {
	SourceURL  string `json:"source_url"`
	RawContent string `json:"raw_content"`
}

type ScanRequest struct {
	DateRange *DateRange `json:"date_range,omitempty"`
	RawData   []RawData  `json:"raw_data,omitempty"`
}

type ResolvedRange struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	DurationDays int    `json:"duration_days"`
}

// EventView is the caller facing slice of an EnrichedEvent.
type EventView struct {
	EventName      string `json:"event_name"`
	EventDate      string `json:"event_date"`
	EventLocation  string `json:"event_location"`
	RelevanceScore int    `json:"relevance_score"`
	SourceName     string `json:"source_name"`
	EventURL       string `json:"event_url"`
}

type ScanResult struct {
	Success               bool          `json:"success"`
	DataSource            string        `json:"data_source"`
	EventsExtracted       int           `json:"events_extracted"`
	EventsAfterGatekeeper int           `json:"events_after_gatekeeper"`
	EventsFinal           int           `json:"events_final"`
	BriefsCreated         int           `json:"briefs_created"`
	DateRange             ResolvedRange `json:"date_range"`
	Events                []EventView   `json:"events"`
	Message               string        `json:"message"`
}

type IngestItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	PubDate     string `json:"pubDate"`
}

type IngestRequest struct {
	Events []IngestItem `json:"events"`
}

type IngestResult struct {
	Success   bool     `json:"success"`
	Received  int      `json:"received"`
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Sources   []string `json:"sources"`
}

func newEventView(event *EnrichedEvent) EventView {
	return EventView{
		EventName:      event.EventName,
		EventDate:      event.EventDate.Format(DATE_FORMAT),
		EventLocation:  event.EventLocation,
		RelevanceScore: event.RelevanceScore,
		SourceName:     event.SourceName,
		EventURL:       event.EventURL,
	}
}
