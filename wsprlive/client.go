// Package wsprlive fetches raw spot reports for a transmitter callsign from
// the wspr.live archive. The downloader endpoint takes a UTC time window and
// returns CSV; a non-200 status or a failed body read is a typed fetch
// failure the pipeline surfaces as fatal. Empty payloads pass through and
// fail at parse, where the distinction between no data and no rows lives.
package wsprlive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"wspranalytics/spot"
)

// DefaultBaseURL is the wspr.live CSV downloader endpoint.
const DefaultBaseURL = "http://wspr.live/wspr_downloader.php"

// Logger is the minimal sink fetch progress is reported to.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// FetchError describes a failed download attempt.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options configures a Client.
type Options struct {
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
	// UserAgent is sent with every request when non-empty.
	UserAgent string
	// Timeout bounds each request; zero means no timeout.
	Timeout time.Duration
	// Client overrides the default HTTP client (tests inject one).
	Client *http.Client
	// Logger receives fetch progress lines. Nil discards them.
	Logger Logger
}

// Client downloads spot CSV payloads. It is safe for concurrent use.
type Client struct {
	baseURL string
	ua      string
	timeout time.Duration
	client  *http.Client
	logger  Logger
	now     func() time.Time
}

// New returns a ready Client.
func New(opts Options) *Client {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Client{
		baseURL: base,
		ua:      opts.UserAgent,
		timeout: opts.Timeout,
		client:  client,
		logger:  logger,
		now:     time.Now,
	}
}

// BuildURL returns the downloader URL for one transmitter over a UTC window.
// The rx_sign wildcard asks for every receiver that heard the callsign.
func (c *Client) BuildURL(callsign string, start, end time.Time) string {
	q := url.Values{}
	q.Set("start", start.UTC().Format(spot.TimeLayout))
	q.Set("end", end.UTC().Format(spot.TimeLayout))
	q.Set("tx_sign", callsign)
	q.Set("rx_sign", "%")
	q.Set("format", "CSV")
	return c.baseURL + "?" + q.Encode()
}

// Window converts a period from the menu into a concrete UTC time window
// ending now.
func (c *Client) Window(period string) (start, end time.Time, err error) {
	d, err := ParsePeriod(period)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end = c.now().UTC().Truncate(time.Second)
	start = end.Add(-d)
	return start, end, nil
}

// Fetch downloads the raw CSV payload for a callsign over the given period.
func (c *Client) Fetch(ctx context.Context, callsign, period string) ([]byte, error) {
	callsign = strings.TrimSpace(callsign)
	if callsign == "" {
		return nil, errors.New("wsprlive: callsign is empty")
	}
	start, end, err := c.Window(period)
	if err != nil {
		return nil, fmt.Errorf("wsprlive: %w", err)
	}
	return c.FetchWindow(ctx, callsign, start, end)
}

// FetchWindow downloads the raw CSV payload for an explicit time window.
func (c *Client) FetchWindow(ctx context.Context, callsign string, start, end time.Time) ([]byte, error) {
	reqURL := c.BuildURL(callsign, start, end)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{URL: reqURL, Err: err}
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}

	began := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: reqURL, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: reqURL, Err: err}
	}
	c.logger.Printf("wsprlive: fetched %s bytes for %s in %s",
		humanize.Comma(int64(len(body))), callsign, time.Since(began).Round(time.Millisecond))
	return body, nil
}
