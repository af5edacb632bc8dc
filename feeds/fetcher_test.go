package feeds_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soumitsalman/eventsack/feeds"
)

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<rss><channel><item><title>Loudoun Restaurant Week</title></item></channel></rss>`))
	}))
	defer server.Close()

	fetcher := feeds.NewFetcher(5 * time.Second)
	body, err := fetcher.Fetch(context.Background(), server.URL+"/feed")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if items := feeds.ExtractItems(body); len(items) != 1 || items[0].Title != "Loudoun Restaurant Week" {
		t.Errorf("unexpected body %q", body)
	}

	_, err = fetcher.Fetch(context.Background(), server.URL+"/missing")
	var fetch_err feeds.FetchError
	if !errors.As(err, &fetch_err) {
		t.Errorf("expected a FetchError, got %v", err)
	}
}
