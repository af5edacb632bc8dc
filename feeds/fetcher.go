package feeds

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"
)

const (
	_FETCH_ATTEMPTS = 3
	_FETCH_DELAY    = 500 * time.Millisecond
	_FETCH_TIMEOUT  = 30 * time.Second
	_USER_AGENT     = "eventsack/1.0 (+feed reader)"
)

type FetchError string

func (err FetchError) Error() string {
	return string(err)
}

// Fetcher pulls raw feed markup for inline scan payloads that only carry a url.
type Fetcher struct {
	client *resty.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = _FETCH_TIMEOUT
	}
	return &Fetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", _USER_AGENT).
			SetHeader("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	var body string
	err := retry.Do(
		func() error {
			resp, err := f.client.R().SetContext(ctx).Get(url)
			if err != nil {
				return err
			}
			if resp.IsError() {
				return FetchError(fmt.Sprintf("%s returned %s", url, resp.Status()))
			}
			body = resp.String()
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(_FETCH_ATTEMPTS),
		retry.Delay(_FETCH_DELAY),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[fetcher] %s attempt %d failed: %v\n", url, n+1, err)
		}),
	)
	return body, err
}
