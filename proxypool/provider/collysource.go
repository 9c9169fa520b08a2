package provider

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"proxypool_nexus/internal/shared/logger"
	"proxypool_nexus/proxypool/model"
)

// fpsListRe matches the JS variable that embeds the proxy list as JSON on
// kuaidaili-style listing pages.
var fpsListRe = regexp.MustCompile(`(var|let|const)\s+fpsList\s*=\s*(\[.*?\]);`)

// CollyProvider is a fallback candidate source that scrapes listing pages
// embedding their proxy table as a JS JSON literal. It ignores the country
// argument; the listing has no country filter.
type CollyProvider struct {
	pageURL   string
	collector *colly.Collector

	mu      sync.Mutex
	scraped []*model.Candidate
}

// tempScrapedProxy is the shape of one element of the embedded JSON list.
type tempScrapedProxy struct {
	IP   string `json:"ip"`
	Port string `json:"port"`
}

// NewCollyProvider creates a scraper for the listing page at pageURL.
// Callbacks are registered once here; colly accumulates them per collector.
func NewCollyProvider(pageURL string, timeout time.Duration) *CollyProvider {
	c := colly.NewCollector(
		colly.UserAgent(browserUserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)

	s := &CollyProvider{
		pageURL:   pageURL,
		collector: c,
	}

	l := logger.WithComponent("ProxyPool/Provider")
	c.OnResponse(func(r *colly.Response) {
		matches := fpsListRe.FindSubmatch(r.Body)
		if len(matches) < 3 {
			l.Warn().Str("url", r.Request.URL.String()).Str("source", s.Name()).Msg("Could not find fpsList variable in response body.")
			return
		}

		var tempList []*tempScrapedProxy
		if err := json.Unmarshal(matches[2], &tempList); err != nil {
			l.Warn().Err(err).Str("url", r.Request.URL.String()).Str("source", s.Name()).Msg("Failed to unmarshal fpsList JSON.")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		for _, p := range tempList {
			port, err := strconv.Atoi(strings.TrimSpace(p.Port))
			if err != nil {
				l.Debug().Str("ip", p.IP).Str("port", p.Port).Str("source", s.Name()).Msg("Failed to parse port, skipping.")
				continue
			}
			if cand, ok := model.NewCandidate(p.IP, port, "", ""); ok {
				s.scraped = append(s.scraped, cand)
			}
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		l.Warn().Err(err).Int("status_code", r.StatusCode).Str("url", r.Request.URL.String()).Str("source", s.Name()).Msg("Scrape request failed.")
	})

	return s
}

// Name returns the provider's name.
func (s *CollyProvider) Name() string {
	return "kuaidaili.com"
}

// MaxBatch returns the listing page size.
func (s *CollyProvider) MaxBatch() int {
	return 20
}

// Fetch scrapes the listing page and returns up to n candidates.
func (s *CollyProvider) Fetch(ctx context.Context, country, protocol string, n int) []*model.Candidate {
	l := logger.WithComponent("ProxyPool/Provider")

	if n > s.MaxBatch() {
		n = s.MaxBatch()
	}
	if n <= 0 {
		return nil
	}

	s.mu.Lock()
	s.scraped = nil
	s.mu.Unlock()

	if err := s.collector.Visit(s.pageURL); err != nil {
		l.Warn().Err(err).Str("url", s.pageURL).Str("source", s.Name()).Msg("Visit failed.")
		return nil
	}
	s.collector.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	candidates := s.scraped
	s.scraped = nil
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	l.Debug().Int("count", len(candidates)).Str("source", s.Name()).Msg("Scrape finished.")
	return candidates
}
