package feeds

import (
	"net/url"
	"strings"
	"sync"
)

// default labels for the feeds the scraper is known to push
var _DEFAULT_SOURCES = map[string]string{
	"visitloudoun.org":        "Visit Loudoun",
	"loudounnow.com":          "Loudoun Now",
	"patch.com":               "Patch",
	"eventbrite.com":          "Eventbrite",
	"allevents.in":            "AllEvents",
	"virginia.org":            "Virginia Tourism",
	"washingtonian.com":       "Washingtonian",
	"northernvirginiamag.com": "Northern Virginia Magazine",
	"meetup.com":              "Meetup",
	"facebook.com":            "Facebook Events",
}

const _UNKNOWN_SOURCE = "Unknown Source"

// Registry maps a feed origin hostname to a human readable source label.
// Lookups match the exact host first and then each parent domain, so
// "leesburg.patch.com" resolves through "patch.com".
type Registry struct {
	mu     sync.RWMutex
	labels map[string]string
}

func NewRegistry(overrides map[string]string) *Registry {
	r := &Registry{}
	r.Replace(overrides)
	return r
}

// Replace swaps the override set. Defaults are always kept underneath.
func (r *Registry) Replace(overrides map[string]string) {
	labels := make(map[string]string, len(_DEFAULT_SOURCES)+len(overrides))
	for host, label := range _DEFAULT_SOURCES {
		labels[host] = label
	}
	for host, label := range overrides {
		labels[normalizeHost(host)] = label
	}
	r.mu.Lock()
	r.labels = labels
	r.mu.Unlock()
}

// Label resolves a raw url (or bare hostname) to its source label. Unknown hosts
// get the hostname itself minus "www.", unparseable input gets "Unknown Source".
func (r *Registry) Label(raw string) string {
	host := hostOf(raw)
	if host == "" {
		return _UNKNOWN_SOURCE
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for h := host; h != ""; h = parentDomain(h) {
		if label, ok := r.labels[h]; ok {
			return label
		}
	}
	return host
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return normalizeHost(u.Hostname())
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
}

// parentDomain strips the left-most label, stopping before the bare TLD.
func parentDomain(host string) string {
	i := strings.IndexByte(host, '.')
	if i < 0 {
		return ""
	}
	rest := host[i+1:]
	if !strings.Contains(rest, ".") {
		return ""
	}
	return rest
}
