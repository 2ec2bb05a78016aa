package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"citegraph/internal/logger"

	"github.com/cenkalti/backoff/v5"
)

const maxPDFBytes = 200 << 20

// FetchError is returned once every attempt to fetch a remote resource has
// failed.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed after %d attempt(s): http %d: %v", e.URL, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// retryableStatus reports whether an http status is worth another attempt.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

type PDFDownloader struct {
	http      *http.Client
	userAgent string
	retry     RetryPolicy
	log       *logger.Logger
}

func NewPDFDownloader(log *logger.Logger, userAgent string, timeout time.Duration, retry RetryPolicy) *PDFDownloader {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PDFDownloader{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
		retry:     retry.normalized(),
		log:       log.With("component", "PDFDownloader"),
	}
}

// Fetch downloads url, following redirects.
func (d *PDFDownloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, &FetchError{URL: url, Err: errors.New("empty url")}
	}
	attempts := 0
	body, err := Retry(ctx, d.retry, d.log, "download_pdf", func() ([]byte, error) {
		attempts++
		return d.fetchOnce(ctx, url)
	})
	if err != nil {
		fe := &FetchError{URL: url, Attempts: attempts, Err: err}
		var se *statusError
		if errors.As(err, &se) {
			fe.StatusCode = se.code
		}
		return nil, fe
	}
	return body, nil
}

func (d *PDFDownloader) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
		if retryableStatus(resp.StatusCode) {
			return nil, se
		}
		return nil, backoff.Permanent(se)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "application/pdf") && !strings.HasSuffix(strings.ToLower(url), ".pdf") {
		d.log.Warn("url does not look like a pdf", "content_type", ct, "url", url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxPDFBytes {
		return nil, backoff.Permanent(fmt.Errorf("pdf exceeds %d bytes", maxPDFBytes))
	}
	return body, nil
}
