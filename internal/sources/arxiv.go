package sources

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"citegraph/internal/logger"
	"citegraph/internal/models"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// DefaultCategories is the category filter used by Latest when none is given.
var DefaultCategories = []string{"cs.AI", "cs.CL", "cs.CV"}

type ArxivConfig struct {
	APIURL      string
	UserAgent   string
	MinInterval time.Duration
	Timeout     time.Duration
	Retry       RetryPolicy
}

// ArxivClient queries the arXiv Atom API. Requests are spaced by MinInterval
// as the API terms ask.
type ArxivClient struct {
	apiURL    string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	retry     RetryPolicy
	log       *logger.Logger
}

func NewArxivClient(log *logger.Logger, cfg ArxivConfig) *ArxivClient {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://export.arxiv.org/api/query"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &ArxivClient{
		apiURL:    cfg.APIURL,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, 1),
		retry:     cfg.Retry.normalized(),
		log:       log.With("component", "ArxivClient"),
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// FetchByIDs resolves ids in one request. Unknown ids are absent from the
// result.
func (c *ArxivClient) FetchByIDs(ctx context.Context, ids []string) ([]models.PaperMetadata, error) {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return []models.PaperMetadata{}, nil
	}
	q := url.Values{}
	q.Set("id_list", strings.Join(clean, ","))
	q.Set("max_results", strconv.Itoa(len(clean)))
	c.log.Info("fetching arxiv metadata by id", "count", len(clean))
	return c.query(ctx, q)
}

// Latest returns the newest submissions in any of categories.
func (c *ArxivClient) Latest(ctx context.Context, categories []string, max int) ([]models.PaperMetadata, error) {
	if max <= 0 {
		return []models.PaperMetadata{}, nil
	}
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	terms := make([]string, 0, len(categories))
	for _, cat := range categories {
		terms = append(terms, "cat:"+strings.TrimSpace(cat))
	}
	q := url.Values{}
	q.Set("search_query", strings.Join(terms, " OR "))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	q.Set("max_results", strconv.Itoa(max))
	c.log.Info("fetching latest arxiv papers", "categories", categories, "max", max)
	return c.query(ctx, q)
}

func (c *ArxivClient) query(ctx context.Context, q url.Values) ([]models.PaperMetadata, error) {
	endpoint := c.apiURL + "?" + q.Encode()
	attempts := 0
	raw, err := Retry(ctx, c.retry, c.log, "arxiv_query", func() ([]byte, error) {
		attempts++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		return c.get(ctx, endpoint)
	})
	if err != nil {
		fe := &FetchError{URL: endpoint, Attempts: attempts, Err: err}
		var se *statusError
		if errors.As(err, &se) {
			fe.StatusCode = se.code
		}
		return nil, fe
	}
	return parseFeed(raw)
}

func (c *ArxivClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &statusError{code: resp.StatusCode, body: truncate(string(body), 512)}
		if retryableStatus(resp.StatusCode) {
			return nil, se
		}
		return nil, backoff.Permanent(se)
	}
	return body, nil
}

func parseFeed(raw []byte) ([]models.PaperMetadata, error) {
	var feed atomFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}
	out := make([]models.PaperMetadata, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		id := entryID(e.ID)
		if id == "" {
			continue
		}
		authors := make([]string, 0, len(e.Authors))
		for _, a := range e.Authors {
			if name := collapse(a.Name); name != "" {
				authors = append(authors, name)
			}
		}
		out = append(out, models.PaperMetadata{
			ArxivID:         id,
			Title:           collapse(e.Title),
			Authors:         authors,
			Abstract:        collapse(e.Summary),
			PDFURL:          pdfLink(e, id),
			PublicationDate: publicationDate(e.Published),
		})
	}
	return out, nil
}

// entryID turns "http://arxiv.org/abs/2401.00001v2" into "2401.00001v2".
// Error entries carry an api/errors id and yield "".
func entryID(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/api/errors") {
		return ""
	}
	if i := strings.Index(raw, "/abs/"); i >= 0 {
		return raw[i+len("/abs/"):]
	}
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

func pdfLink(e atomEntry, id string) string {
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return l.Href
		}
	}
	return "https://arxiv.org/pdf/" + id
}

func publicationDate(published string) string {
	published = strings.TrimSpace(published)
	if t, err := time.Parse(time.RFC3339, published); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	if len(published) >= 10 {
		return published[:10]
	}
	return published
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
