package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"proxypool_nexus/internal/shared/logger"
	"proxypool_nexus/proxypool/model"
)

// Provider is a source of unvalidated proxy candidates. Implementations
// should only fetch and parse, never validate. A failed fetch yields an
// empty batch, not an error: the refill controller treats "no candidates"
// and "source down" identically.
type Provider interface {
	// Fetch returns up to n candidates for the given country and protocol.
	Fetch(ctx context.Context, country, protocol string, n int) []*model.Candidate

	// MaxBatch returns the source's own per-request candidate cap.
	MaxBatch() int

	// Name returns the provider's name, used for logging.
	Name() string
}

// maxPerRequest is the batch API's hard cap per call, regardless of the
// requested amount.
const maxPerRequest = 10

// APIProvider fetches candidate batches from the proxy source HTTP API.
// The endpoint returns newline-delimited JSON objects.
type APIProvider struct {
	baseURL string
	client  *http.Client
}

// NewAPIProvider creates a client for the batch API at baseURL.
func NewAPIProvider(baseURL string, timeout time.Duration) *APIProvider {
	return &APIProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider's name.
func (p *APIProvider) Name() string {
	return "batch-api"
}

// MaxBatch returns the API's per-request cap.
func (p *APIProvider) MaxBatch() int {
	return maxPerRequest
}

// apiRecord is one line of the provider response. Port arrives as either a
// JSON number or a quoted string depending on the upstream source.
type apiRecord struct {
	IP       string          `json:"ip"`
	Port     json.RawMessage `json:"port"`
	Username string          `json:"username"`
	Password string          `json:"password"`
}

// Fetch requests a candidate batch. Lines that fail to parse are skipped;
// a non-2xx response or transport error yields an empty batch.
func (p *APIProvider) Fetch(ctx context.Context, country, protocol string, n int) []*model.Candidate {
	l := logger.WithComponent("ProxyPool/Provider")

	if n > maxPerRequest {
		n = maxPerRequest
	}
	if n <= 0 {
		return nil
	}

	url := fmt.Sprintf("%s/random/%s?number=%d&protocol=%s&type=json", p.baseURL, country, n, protocol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		l.Warn().Err(err).Str("url", url).Msg("Failed to create provider request.")
		return nil
	}

	resp, err := p.client.Do(req)
	if err != nil {
		l.Warn().Err(err).Str("source", p.Name()).Msg("Provider fetch failed.")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		l.Warn().Int("status_code", resp.StatusCode).Str("source", p.Name()).Msg("Provider returned non-2xx status.")
		return nil
	}

	var candidates []*model.Candidate
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec apiRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			l.Debug().Str("line", line).Msg("Skipping unparseable provider line.")
			continue
		}

		port, ok := parsePort(rec.Port)
		if !ok {
			l.Debug().Str("ip", rec.IP).Msg("Skipping provider record with bad port.")
			continue
		}
		c, ok := model.NewCandidate(rec.IP, port, rec.Username, rec.Password)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}
	if err := scanner.Err(); err != nil {
		l.Warn().Err(err).Str("source", p.Name()).Msg("Error reading provider response body.")
	}

	l.Debug().Int("count", len(candidates)).Str("source", p.Name()).Msg("Provider batch fetched.")
	return candidates
}

// parsePort accepts both numeric and quoted-string port fields.
func parsePort(raw json.RawMessage) (int, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return 0, false
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return port, true
}
