package feeds_test

import (
	"testing"
	"time"

	"github.com/soumitsalman/eventsack/feeds"
)

func fixedClock() time.Time {
	return time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)
}

func TestDateHeuristicExtract(t *testing.T) {
	cases := []struct {
		name        string
		title       string
		description string
		published   string
		want        string
	}{
		{name: "numeric with year", title: "Loudoun Wine Festival 3/15/2025", want: "2025-03-15"},
		{name: "numeric short year", title: "Chili cook-off 6/7/26", want: "2026-06-07"},
		{name: "numeric without year", title: "Polar Plunge", description: "Meet at the lake 12/31", want: "2025-12-31"},
		{name: "month first", title: "Leesburg Flower Show March 15", want: "2025-03-15"},
		{name: "month abbreviation with year", title: "Sat, Mar. 1st, 2026 trivia night", want: "2026-03-01"},
		{name: "day first", title: "Fireworks on the 4th of July", want: "2025-07-04"},
		{name: "day first with year", title: "Harvest dinner 12 October 2025", want: "2025-10-12"},
		{name: "numeric wins over month names", title: "May market moves to 6/20", want: "2025-06-20"},
		{name: "first valid match wins", title: "Rescheduled from 2/30 to 3/2", want: "2025-03-02"},
		{name: "published fallback", title: "Open Mic Night", published: "Fri, 10 Jan 2025 10:00:00 +0000", want: "2025-01-10"},
		{name: "published atom style", title: "Open Mic Night", published: "2025-02-01T18:00:00Z", want: "2025-02-01"},
		{name: "text wins over published", title: "Jazz brunch Jan 26", published: "Fri, 10 Jan 2025 10:00:00 +0000", want: "2025-01-26"},
	}
	h := feeds.NewDateHeuristic(fixedClock)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := h.Extract(tc.title, tc.description, tc.published)
			if !ok {
				t.Fatalf("expected %s, got no date", tc.want)
			}
			if got.Format("2006-01-02") != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got.Format("2006-01-02"))
			}
			if got.Hour() != 0 || got.Location() != time.UTC {
				t.Errorf("expected midnight UTC, got %v", got)
			}
		})
	}
}

func TestDateHeuristicUndated(t *testing.T) {
	cases := []struct {
		name        string
		title       string
		description string
		published   string
	}{
		{name: "no date at all", title: "Open Mic Night", description: "Bring your guitar"},
		{name: "impossible day", title: "Leap party 2/30"},
		{name: "impossible month", title: "Tasting 13/01/2025"},
		{name: "past year", title: "Throwback 3/15/24"},
		{name: "too far ahead", title: "Centennial 3/15/2031"},
		{name: "stale published hint", title: "Open Mic Night", published: "Mon, 02 Jan 2006 15:04:05 +0000"},
		{name: "unparseable published hint", title: "Open Mic Night", published: "sometime soon"},
	}
	h := feeds.NewDateHeuristic(fixedClock)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got, ok := h.Extract(tc.title, tc.description, tc.published); ok {
				t.Errorf("expected undated, got %s", got.Format("2006-01-02"))
			}
		})
	}
}

func TestToDate(t *testing.T) {
	got := feeds.ToDate(time.Date(2025, 3, 15, 23, 59, 0, 0, time.UTC))
	if !got.Equal(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", got)
	}
}
