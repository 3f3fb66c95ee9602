package taxonomy

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/brocc/internal/taxon"
)

// DefaultEUtilsURL is the NCBI Entrez utilities endpoint.
const DefaultEUtilsURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// EUtils resolves accessions and lineages through NCBI Entrez.
type EUtils struct {
	baseURL    string
	apiKey     string
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
	logger     *zap.Logger
}

// EUtilsOption configures an EUtils client.
type EUtilsOption func(*EUtils)

// WithBaseURL overrides the EUtils endpoint.
func WithBaseURL(u string) EUtilsOption {
	return func(e *EUtils) { e.baseURL = u }
}

// WithAPIKey sends an NCBI API key with each request.
func WithAPIKey(key string) EUtilsOption {
	return func(e *EUtils) { e.apiKey = key }
}

// WithMaxRetries sets the number of attempts per request.
func WithMaxRetries(n int) EUtilsOption {
	return func(e *EUtils) { e.maxRetries = n }
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(d time.Duration) EUtilsOption {
	return func(e *EUtils) { e.retryDelay = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) EUtilsOption {
	return func(e *EUtils) { e.client = c }
}

// WithEUtilsLogger sets the logger for retried requests.
func WithEUtilsLogger(l *zap.Logger) EUtilsOption {
	return func(e *EUtils) { e.logger = l }
}

// NewEUtils creates a client with five attempts per request and a 30s timeout.
func NewEUtils(opts ...EUtilsOption) *EUtils {
	e := &EUtils{
		baseURL:    DefaultEUtilsURL,
		maxRetries: 5,
		retryDelay: 500 * time.Millisecond,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.maxRetries < 1 {
		e.maxRetries = 1
	}
	return e
}

type elinkResult struct {
	LinkSets []struct {
		LinkSetDbs []struct {
			Links []struct {
				ID string `xml:"Id"`
			} `xml:"Link"`
		} `xml:"LinkSetDb"`
	} `xml:"LinkSet"`
}

type taxaSet struct {
	Taxa []taxonRecord `xml:"Taxon"`
}

type taxonRecord struct {
	ScientificName string `xml:"ScientificName"`
	Rank           string `xml:"Rank"`
	LineageEx      *struct {
		Taxa []struct {
			ScientificName string `xml:"ScientificName"`
			Rank           string `xml:"Rank"`
		} `xml:"Taxon"`
	} `xml:"LineageEx"`
}

// TaxonID returns the first taxonomy link of a nucleotide accession.
func (e *EUtils) TaxonID(ctx context.Context, accession string) (string, error) {
	q := url.Values{"dbfrom": {"nucleotide"}, "db": {"taxonomy"}, "id": {accession}}
	body, err := e.get(ctx, "elink.fcgi", q)
	if err != nil {
		return "", fmt.Errorf("accession %s: %w", accession, err)
	}
	var res elinkResult
	if err := xml.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("accession %s: failed to parse elink response: %w", accession, err)
	}
	for _, ls := range res.LinkSets {
		for _, db := range ls.LinkSetDbs {
			for _, l := range db.Links {
				if l.ID != "" {
					return l.ID, nil
				}
			}
		}
	}
	return "", fmt.Errorf("accession %s: %w", accession, ErrNotFound)
}

// Lineage fetches the taxon record and returns its lineage with the taxon
// itself appended.
func (e *EUtils) Lineage(ctx context.Context, taxonID string) ([]taxon.Entry, error) {
	q := url.Values{"db": {"taxonomy"}, "id": {taxonID}, "rettype": {"xml"}}
	body, err := e.get(ctx, "efetch.fcgi", q)
	if err != nil {
		return nil, fmt.Errorf("taxon %s: %w", taxonID, err)
	}
	entries, err := parseTaxonXML(body)
	if err != nil {
		return nil, fmt.Errorf("taxon %s: %w", taxonID, err)
	}
	return entries, nil
}

func parseTaxonXML(body []byte) ([]taxon.Entry, error) {
	var set taxaSet
	if err := xml.Unmarshal(unwrapHTML(body), &set); err != nil {
		return nil, fmt.Errorf("failed to parse efetch response: %w", err)
	}
	if len(set.Taxa) == 0 || set.Taxa[0].LineageEx == nil {
		return nil, ErrNotFound
	}
	t := set.Taxa[0]
	entries := make([]taxon.Entry, 0, len(t.LineageEx.Taxa)+1)
	for _, a := range t.LineageEx.Taxa {
		entries = append(entries, taxon.Entry{Name: a.ScientificName, Rank: a.Rank})
	}
	return append(entries, taxon.Entry{Name: t.ScientificName, Rank: t.Rank}), nil
}

// unwrapHTML extracts the escaped XML that EUtils sometimes serves inside an
// HTML <pre> block.
func unwrapHTML(body []byte) []byte {
	start := bytes.Index(body, []byte("<pre>"))
	if start < 0 {
		return body
	}
	rest := body[start+len("<pre>"):]
	if end := bytes.Index(rest, []byte("</pre>")); end >= 0 {
		rest = rest[:end]
	}
	return []byte(html.UnescapeString(string(rest)))
}

// get performs one EUtils call with retries. HTTP 400 is final and reported
// as ErrNotFound.
func (e *EUtils) get(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	if e.apiKey != "" {
		q.Set("api_key", e.apiKey)
	}
	u := e.baseURL + "/" + endpoint + "?" + q.Encode()

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		body, err := e.fetch(ctx, u)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		e.logger.Debug("retrying eutils request",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < e.maxRetries && e.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("%s failed after %d attempts: %w", endpoint, e.maxRetries, lastErr)
}

func (e *EUtils) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
