package feeds

import (
	"time"
	"unicode/utf8"
)

const (
	MinTitleLength = 5
	MaxTitleLength = 500
)

// Feed is one payload of feed markup plus where it came from.
type Feed struct {
	SourceURL  string
	SourceName string
	Content    string
}

// Candidate is an unvalidated, unscored event pulled out of a feed.
type Candidate struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Link          string     `json:"link"`
	PublishedHint string     `json:"published_hint,omitempty"`
	SourceName    string     `json:"source_name"`
	SourceURL     string     `json:"source_url"`
	EventDate     *time.Time `json:"event_date,omitempty"`
}

// Window is a closed range of calendar dates.
type Window struct {
	Start time.Time
	End   time.Time
}

func NewWindow(start, end time.Time) Window {
	return Window{Start: ToDate(start), End: ToDate(end)}
}

// Contains compares calendar dates, both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	d := ToDate(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours() / 24)
}

// Builder turns feed payloads into candidates.
type Builder struct {
	dates    *DateHeuristic
	registry *Registry
}

func NewBuilder(dates *DateHeuristic, registry *Registry) *Builder {
	return &Builder{dates: dates, registry: registry}
}

// Build extracts the candidates of one feed that are either undated or dated
// inside the window.
func (b *Builder) Build(feed Feed, window Window) []Candidate {
	source_name := feed.SourceName
	if source_name == "" {
		source_name = b.registry.Label(feed.SourceURL)
	}

	candidates := make([]Candidate, 0, 8)
	for item := range Items(feed.Content) {
		if n := utf8.RuneCountInString(item.Title); n < MinTitleLength || n > MaxTitleLength {
			continue
		}
		candidate := Candidate{
			Title:         item.Title,
			Description:   item.Description,
			Link:          item.Link,
			PublishedHint: item.Published,
			SourceName:    source_name,
			SourceURL:     feed.SourceURL,
		}
		if date, ok := b.dates.Extract(item.Title, item.Description, item.Published); ok {
			if !window.Contains(date) {
				continue
			}
			candidate.EventDate = &date
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}
