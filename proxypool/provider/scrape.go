package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"proxypool_nexus/internal/shared/logger"
	"proxypool_nexus/proxypool/model"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// ScrapeProvider is a fallback candidate source that scrapes the free list
// on proxydb.net. It serves when the primary batch API runs dry. Scraped
// rows never carry credentials.
type ScrapeProvider struct {
	baseURL string
	client  *http.Client
}

// NewScrapeProvider creates a scraper against baseURL, which exists as a
// parameter for tests; production callers pass https://proxydb.net.
func NewScrapeProvider(baseURL string, timeout time.Duration) *ScrapeProvider {
	return &ScrapeProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider's name.
func (s *ScrapeProvider) Name() string {
	return "proxydb.net"
}

// MaxBatch returns the page size of the scraped listing.
func (s *ScrapeProvider) MaxBatch() int {
	return 15
}

// Fetch scrapes one listing page and returns up to n candidates.
func (s *ScrapeProvider) Fetch(ctx context.Context, country, protocol string, n int) []*model.Candidate {
	l := logger.WithComponent("ProxyPool/Provider")

	if n > s.MaxBatch() {
		n = s.MaxBatch()
	}
	if n <= 0 {
		return nil
	}

	url := fmt.Sprintf("%s/?country=%s&protocol=%s", s.baseURL, strings.ToUpper(country), protocol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		l.Warn().Err(err).Str("url", url).Str("source", s.Name()).Msg("Failed to create request.")
		return nil
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		l.Warn().Err(err).Str("url", url).Str("source", s.Name()).Msg("Failed to fetch page.")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		l.Warn().Int("status_code", resp.StatusCode).Str("url", url).Str("source", s.Name()).Msg("Received non-200 status code.")
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		l.Warn().Err(err).Str("url", url).Str("source", s.Name()).Msg("Failed to parse HTML document.")
		return nil
	}

	var candidates []*model.Candidate
	doc.Find("tbody tr").Each(func(i int, sel *goquery.Selection) {
		if len(candidates) >= n {
			return
		}
		host := strings.TrimSpace(sel.Find("td").Eq(0).Find("a").Text())
		portStr := strings.TrimSpace(sel.Find("td").Eq(1).Find("a").Text())
		if host == "" || portStr == "" {
			return
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			l.Debug().Str("host", host).Str("port", portStr).Str("source", s.Name()).Msg("Failed to parse port, skipping row.")
			return
		}
		if c, ok := model.NewCandidate(host, port, "", ""); ok {
			candidates = append(candidates, c)
		}
	})

	l.Debug().Int("count", len(candidates)).Str("source", s.Name()).Msg("Scrape finished.")
	return candidates
}
