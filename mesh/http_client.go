package mesh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultFetchTimeout bounds one HTTP request for a scan report
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of attempts made for a scan report
	DefaultMaxRetries = 3

	defaultBaseBackoff = 500 * time.Millisecond

	// a full report of a few hundred scanners stays well below this
	maxReportBytes = 16 << 20

	reportAccept = "application/json, text/plain;q=0.9"
)

// FetchOption configures how scan reports are fetched
type FetchOption func(*scanFetcher)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) FetchOption {
	return func(f *scanFetcher) { f.timeout = d }
}

// WithMaxRetries sets how many attempts are made before giving up
func WithMaxRetries(n int) FetchOption {
	return func(f *scanFetcher) { f.attempts = n }
}

// WithBaseBackoff sets the delay before the second attempt; it doubles for
// each attempt after that
func WithBaseBackoff(d time.Duration) FetchOption {
	return func(f *scanFetcher) { f.backoff = d }
}

// WithHTTPClient replaces the HTTP client, e.g. an httptest server's client
func WithHTTPClient(client *http.Client) FetchOption {
	return func(f *scanFetcher) { f.client = client }
}

// scanFetcher pulls report bodies from a scanner gateway and hands them to a
// decoder chosen from the response media type
type scanFetcher struct {
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	client   *http.Client
}

func newScanFetcher(opts []FetchOption) *scanFetcher {
	f := &scanFetcher{
		timeout:  DefaultFetchTimeout,
		attempts: DefaultMaxRetries,
		backoff:  defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.attempts < 1 {
		f.attempts = 1
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	return f
}

// statusError is a non-200 answer from the gateway
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP GET %s: status %d", e.url, e.code)
}

// retryable reports whether another attempt could succeed. Client errors
// other than 408 and 429 mean the request itself is wrong.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusRequestTimeout || se.code == http.StatusTooManyRequests
	}
	return true
}

// reportBody is one fetched response
type reportBody struct {
	mediaType string
	data      []byte
}

// get fetches url, retrying transport failures and retryable statuses with
// exponential backoff
func (f *scanFetcher) get(ctx context.Context, url string) (reportBody, error) {
	var lastErr error
	delay := f.backoff
	for attempt := 0; attempt < f.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return reportBody{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		body, err := f.getOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return reportBody{}, ctx.Err()
		}
		if !retryable(err) {
			return reportBody{}, err
		}
		lastErr = err
	}
	return reportBody{}, fmt.Errorf("all %d attempts failed: %w", f.attempts, lastErr)
}

func (f *scanFetcher) getOnce(ctx context.Context, url string) (reportBody, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return reportBody{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", reportAccept)

	resp, err := f.client.Do(req)
	if err != nil {
		return reportBody{}, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return reportBody{}, &statusError{url: url, code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBytes+1))
	if err != nil {
		return reportBody{}, fmt.Errorf("reading response from %s: %w", url, err)
	}
	if len(data) > maxReportBytes {
		return reportBody{}, fmt.Errorf("%w: report from %s exceeds %d bytes", ErrMalformedInput, url, maxReportBytes)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}
	return reportBody{mediaType: mediaType, data: data}, nil
}

// decodeReport parses a full report according to its media type. net/http
// servers label undeclared bodies text/plain, so JSON-shaped text is still
// parsed as JSON. Bodies of any other type are sniffed.
func decodeReport(body reportBody) ([]Scan, error) {
	switch {
	case isJSONMediaType(body.mediaType):
		return ParseScanJSON(body.data)
	case body.mediaType == "text/plain" && !jsonShaped(body.data):
		return ParseScanReport(bytes.NewReader(body.data))
	default:
		return ParseScans(body.data)
	}
}

func isJSONMediaType(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func jsonShaped(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// FetchScanReport fetches a full scan report (text or JSON) from url
func FetchScanReport(url string, opts ...FetchOption) ([]Scan, error) {
	return FetchScanReportWithContext(context.Background(), url, opts...)
}

// FetchScanReportWithContext is like FetchScanReport but accepts a context for cancellation
func FetchScanReportWithContext(ctx context.Context, url string, opts ...FetchOption) ([]Scan, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch scans: URL is empty")
	}
	body, err := newScanFetcher(opts).get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch scans: %w", err)
	}
	scans, err := decodeReport(body)
	if err != nil {
		return nil, fmt.Errorf("fetch scans from %s: %w", url, err)
	}
	return scans, nil
}

// FetchScan fetches one scanner's report from url. The body is decoded like
// an MQTT scan payload, so it may omit the scanner header or id.
func FetchScan(url string, scannerID int, opts ...FetchOption) (Scan, error) {
	return FetchScanWithContext(context.Background(), url, scannerID, opts...)
}

// FetchScanWithContext is like FetchScan but accepts a context for cancellation
func FetchScanWithContext(ctx context.Context, url string, scannerID int, opts ...FetchOption) (Scan, error) {
	if url == "" {
		return Scan{}, fmt.Errorf("fetch scanner %d: URL is empty", scannerID)
	}
	body, err := newScanFetcher(opts).get(ctx, url)
	if err != nil {
		return Scan{}, fmt.Errorf("fetch scanner %d: %w", scannerID, err)
	}
	if isJSONMediaType(body.mediaType) && !jsonShaped(body.data) {
		return Scan{}, fmt.Errorf("fetch scanner %d: %w: body is not JSON", scannerID, ErrMalformedInput)
	}
	scan, err := DecodeScanPayload(scannerID, body.data)
	if err != nil {
		return Scan{}, fmt.Errorf("fetch scanner %d: %w", scannerID, err)
	}
	return scan, nil
}
