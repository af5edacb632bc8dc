package store

import (
	"time"

	"github.com/rotisserie/eris"
)

const (
	EVENTSACK      = "eventsack"
	FEED_PAYLOADS  = "feed_payloads"
	BRIEFS         = "research_briefs"
	TENANTS        = "tenants"
	_DEFAULT_LIMIT = 500
)

// ErrDuplicateBrief is returned by brief inserts when brief de-duplication is
// switched on and the fingerprint already exists.
var ErrDuplicateBrief = eris.New("brief with the same fingerprint already exists")

type JSON map[string]any

// FeedPayload is a raw feed blob pushed by the scraper and waiting for a scan.
type FeedPayload struct {
	ID             string     `json:"id" bson:"_id"`
	SourceURL      string     `json:"source_url" bson:"source_url"`
	SourceName     string     `json:"source_name" bson:"source_name"`
	RawContent     string     `json:"raw_content" bson:"raw_content"`
	ContentLength  int        `json:"content_length" bson:"content_length"`
	Processed      bool       `json:"processed" bson:"processed"`
	ScrapedAt      time.Time  `json:"scraped_at" bson:"scraped_at"`
	ClaimedBy      string     `json:"claimed_by,omitempty" bson:"claimed_by,omitempty"`
	ClaimExpiresAt *time.Time `json:"claim_expires_at,omitempty" bson:"claim_expires_at,omitempty"`
}

// Brief is the persisted, tenant scoped research brief for one event.
type Brief struct {
	ID             string    `json:"id" bson:"_id"`
	TenantID       string    `json:"tenant_id" bson:"tenant_id"`
	Theme          string    `json:"theme" bson:"theme"`
	KeyPoints      []string  `json:"key_points" bson:"key_points"`
	EventName      string    `json:"event_name" bson:"event_name"`
	EventDate      time.Time `json:"event_date" bson:"event_date"`
	EventLocation  string    `json:"event_location" bson:"event_location"`
	ContextSummary string    `json:"context_summary" bson:"context_summary"`
	Fingerprint    string    `json:"fingerprint" bson:"fingerprint"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// Tenant is owned by tenant management. This service only reads it.
type Tenant struct {
	ID          string `json:"id" bson:"_id"`
	DisplayName string `json:"display_name" bson:"display_name"`
	Location    string `json:"location" bson:"location"`
}

// claimable reports whether a payload may be handed to a new claimant at now.
func (p *FeedPayload) claimable(now time.Time) bool {
	if p.Processed {
		return false
	}
	return p.ClaimedBy == "" || p.ClaimExpiresAt == nil || p.ClaimExpiresAt.Before(now)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return _DEFAULT_LIMIT
	}
	return limit
}
