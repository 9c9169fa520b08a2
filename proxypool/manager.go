package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"proxypool_nexus/internal/shared/logger"
	"proxypool_nexus/internal/shared/types"
	"proxypool_nexus/proxypool/cache"
	"proxypool_nexus/proxypool/model"
	"proxypool_nexus/proxypool/provider"
	"proxypool_nexus/proxypool/store"
)

// allowedCountries is the fixed set of country tags the provider API accepts.
var allowedCountries = map[string]struct{}{
	"us": {}, "uk": {}, "jp": {}, "de": {}, "fr": {}, "ca": {},
}

// CandidateValidator probes a single candidate for the given protocol tag.
// The concrete implementation lives in proxypool/validator; the interface
// exists so tests can stub the network away.
type CandidateValidator interface {
	Validate(c *model.Candidate, protocol string) bool
}

// AttemptStats describes the outcome of one refill step. Attempt 0 is the
// cache-first pass; fetch attempts count from 1.
type AttemptStats struct {
	CycleID  string `json:"cycle_id"`
	Attempt  int    `json:"attempt"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	PoolSize int    `json:"pool_size"`
	Target   int    `json:"target"`
}

// AttemptObserver is notified after each refill step. It is optional and
// fully decoupled from the refill algorithm; a slow observer only delays
// the cycle that called it.
type AttemptObserver func(AttemptStats)

// Manager is the proxy pool's total controller: it owns the store, drives
// the refill controller, and runs the threshold scheduler.
type Manager struct {
	cfg       *types.Config
	store     *store.Store
	cache     *cache.ResultCache // nil when the cache is disabled
	providers []provider.Provider
	validator CandidateValidator
	observer  AttemptObserver

	// refilling is the single-flight flag: at most one refill cycle
	// executes at a time system-wide.
	refilling atomic.Bool
	started   atomic.Bool

	countryMu sync.RWMutex
	country   string

	checkTicker *time.Ticker
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// New creates a pool manager. The cache is created internally when enabled
// in cfg; providers are consulted in order on every fetch.
func New(cfg *types.Config, providers []provider.Provider, v CandidateValidator, observer AttemptObserver) *Manager {
	m := &Manager{
		cfg:       cfg,
		store:     store.New(),
		providers: providers,
		validator: v,
		observer:  observer,
		country:   cfg.ProviderConf.Country,
		stopChan:  make(chan struct{}),
	}
	if cfg.CacheConf.Enabled {
		m.cache = cache.New(cfg.CacheTTL())
	}
	return m
}

// Start launches the threshold scheduler and kicks off an initial refill.
// It is idempotent; repeated calls are no-ops.
func (m *Manager) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	l := logger.WithComponent("ProxyPool/Manager")

	m.checkTicker = time.NewTicker(m.cfg.CheckInterval())
	l.Info().
		Int("target_size", m.cfg.PoolConf.TargetSize).
		Int("min_threshold", m.cfg.PoolConf.MinThreshold).
		Dur("check_interval", m.cfg.CheckInterval()).
		Msg("Manager starting.")

	m.wg.Add(1)
	go m.schedulerLoop()

	m.TriggerRefill()
}

// schedulerLoop watches the ticker and the stop signal. Each tick sweeps
// the cache and triggers a refill when the pool is at or below the
// low-water mark.
func (m *Manager) schedulerLoop() {
	defer m.wg.Done()
	l := logger.WithComponent("ProxyPool/Manager")

	for {
		select {
		case <-m.checkTicker.C:
			if m.cache != nil {
				m.cache.SweepExpired()
			}
			if size := m.store.Size(); size <= m.cfg.PoolConf.MinThreshold {
				l.Debug().Int("pool_size", size).Msg("Pool at or below threshold, triggering refill.")
				m.TriggerRefill()
			}

		case <-m.stopChan:
			l.Info().Msg("Stop signal received. Shutting down scheduler.")
			m.checkTicker.Stop()
			return
		}
	}
}

// Stop cancels the scheduler so no further cycles are scheduled. A cycle
// already in flight is allowed to finish; its probes run to their own
// timeouts rather than being torn down mid-connection.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()
	logger.Info().Msg("ProxyPool Manager stopped.")
}

// Acquire returns the next proxy round-robin, or (nil, false) when the
// pool is empty.
func (m *Manager) Acquire() (*model.ValidatedProxy, bool) {
	return m.store.Acquire()
}

// Remove drops the proxy matching host+port and immediately re-checks the
// low-water threshold so a caller signaling a bad proxy gets replenishment
// without waiting for the next tick.
func (m *Manager) Remove(host string, port int) bool {
	removed := m.store.Remove(host, port)
	if removed && m.store.Size() <= m.cfg.PoolConf.MinThreshold {
		m.TriggerRefill()
	}
	return removed
}

// Snapshot returns a defensive copy of the pooled entries.
func (m *Manager) Snapshot() []*model.ValidatedProxy {
	return m.store.Snapshot()
}

// Size returns the current pool size.
func (m *Manager) Size() int {
	return m.store.Size()
}

// Refilling reports whether a refill cycle is currently in flight.
func (m *Manager) Refilling() bool {
	return m.refilling.Load()
}

// Country returns the country tag used for future provider requests.
func (m *Manager) Country() string {
	m.countryMu.RLock()
	defer m.countryMu.RUnlock()
	return m.country
}

// SetCountry changes the country tag for future provider requests only;
// already-pooled proxies are unaffected.
func (m *Manager) SetCountry(code string) error {
	if _, ok := allowedCountries[code]; !ok {
		return fmt.Errorf("unsupported country code %q", code)
	}
	m.countryMu.Lock()
	m.country = code
	m.countryMu.Unlock()
	return nil
}

// TriggerRefill starts a refill cycle unless one is already running, in
// which case it is a silent no-op: triggers are not queued.
func (m *Manager) TriggerRefill() {
	if !m.refilling.CompareAndSwap(false, true) {
		l := logger.WithComponent("ProxyPool/Manager")
		l.Debug().Msg("Refill already in flight, ignoring trigger.")
		return
	}
	go m.runRefill()
}

// runRefill executes one cycle and always clears the single-flight flag,
// even if the cycle dies to an unexpected fault: a crashed cycle must
// never wedge future refills.
func (m *Manager) runRefill() {
	defer func() {
		if r := recover(); r != nil {
			l := logger.WithComponent("ProxyPool/Manager")
			l.Error().Msgf("Refill cycle panicked: %v", r)
		}
		m.refilling.Store(false)
	}()
	m.runRefillCycle()
}

func (m *Manager) runRefillCycle() {
	cycleID := uuid.NewString()[:8]
	l := logger.WithComponent("ProxyPool/Manager").With().Str("cycle", cycleID).Logger()

	target := m.cfg.PoolConf.TargetSize
	size := m.store.Size()
	if size >= target {
		l.Debug().Int("pool_size", size).Msg("Pool already at target, nothing to do.")
		return
	}
	l.Info().Int("pool_size", size).Int("target", target).Msg("Starting refill cycle.")

	if m.cache != nil {
		m.cacheFirstPass(l, cycleID, target)
	}

	attempts := m.cfg.PoolConf.MaxRefillAttempts
	delay := m.cfg.AttemptDelay()

	for attempt := 1; attempt <= attempts; attempt++ {
		size = m.store.Size()
		if size >= target {
			break
		}

		// Over-fetch to offset the expected validation failure rate.
		needed := target - size
		want := needed * m.cfg.PoolConf.OverFetchMultiplier
		if want < m.cfg.PoolConf.BatchSize {
			want = m.cfg.PoolConf.BatchSize
		}

		batch := m.fetchBatch(l, want)
		if len(batch) == 0 {
			l.Debug().Int("attempt", attempt).Msg("Provider returned no candidates.")
			m.notify(AttemptStats{CycleID: cycleID, Attempt: attempt, PoolSize: m.store.Size(), Target: target})
			if attempt < attempts {
				time.Sleep(delay)
			}
			continue
		}

		fresh := m.filterNew(batch)
		if len(fresh) == 0 {
			l.Debug().Int("attempt", attempt).Int("fetched", len(batch)).Msg("All fetched candidates already pooled.")
			m.notify(AttemptStats{CycleID: cycleID, Attempt: attempt, Fetched: len(batch), PoolSize: m.store.Size(), Target: target})
			continue
		}

		inserted := m.validateBatch(l, fresh, target)
		l.Info().
			Int("attempt", attempt).
			Int("fetched", len(batch)).
			Int("inserted", inserted).
			Int("pool_size", m.store.Size()).
			Msg("Refill attempt finished.")
		m.notify(AttemptStats{CycleID: cycleID, Attempt: attempt, Fetched: len(batch), Inserted: inserted, PoolSize: m.store.Size(), Target: target})

		if m.store.Size() < target && attempt < attempts {
			time.Sleep(delay)
		}
	}

	// Partial fulfillment is a normal outcome; the pool simply stays
	// under target until the next trigger.
	final := m.store.Size()
	if final >= target {
		l.Info().Int("pool_size", final).Msg("Refill cycle reached target.")
	} else {
		l.Info().Int("pool_size", final).Int("target", target).Msg("Refill cycle ended under target.")
	}
}

// cacheFirstPass re-validates fresh cache hits before touching providers.
// A hit is only a hint; proxies can die between tests.
func (m *Manager) cacheFirstPass(l zerolog.Logger, cycleID string, target int) {
	need := target - m.store.Size()
	if need <= 0 {
		return
	}

	keys := m.cache.FreshValid(need)
	candidates := make([]*model.Candidate, 0, len(keys))
	for _, key := range keys {
		c, ok := model.ParseCandidate(key)
		if !ok {
			continue
		}
		if m.store.ContainsIdentity(c.Identity()) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return
	}

	inserted := m.validateBatch(l, candidates, target)
	l.Info().Int("cache_hits", len(candidates)).Int("inserted", inserted).Msg("Cache-first pass finished.")
	m.notify(AttemptStats{CycleID: cycleID, Attempt: 0, Fetched: len(candidates), Inserted: inserted, PoolSize: m.store.Size(), Target: target})
}

// fetchBatch asks providers in order and returns the first non-empty batch.
func (m *Manager) fetchBatch(l zerolog.Logger, want int) []*model.Candidate {
	country := m.Country()
	protocol := m.cfg.ProviderConf.Protocol

	for _, p := range m.providers {
		n := want
		if n > p.MaxBatch() {
			n = p.MaxBatch()
		}
		batch := p.Fetch(context.Background(), country, protocol, n)
		if len(batch) > 0 {
			l.Debug().Str("source", p.Name()).Int("count", len(batch)).Msg("Fetched candidate batch.")
			return batch
		}
	}
	return nil
}

// filterNew drops candidates whose identity is already pooled and dedupes
// within the batch itself.
func (m *Manager) filterNew(batch []*model.Candidate) []*model.Candidate {
	seen := make(map[model.Identity]struct{}, len(batch))
	fresh := make([]*model.Candidate, 0, len(batch))
	for _, c := range batch {
		id := c.Identity()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if m.store.ContainsIdentity(id) {
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh
}

// validateBatch probes candidates in sub-batches no larger than the
// configured concurrency. Probes within a sub-batch race freely; the next
// sub-batch never starts before the previous one fully resolves. Every
// outcome is recorded in the cache. Once the pool reaches the target the
// remaining sub-batches of this attempt are skipped so probe traffic is
// not wasted. Returns how many survivors were inserted.
func (m *Manager) validateBatch(l zerolog.Logger, candidates []*model.Candidate, target int) int {
	conc := m.cfg.PoolConf.Concurrency
	protocol := m.cfg.ProviderConf.Protocol
	inserted := 0

	for start := 0; start < len(candidates); start += conc {
		if m.store.Size() >= target {
			l.Debug().Msg("Target reached, skipping remaining sub-batches.")
			break
		}

		end := start + conc
		if end > len(candidates) {
			end = len(candidates)
		}
		sub := candidates[start:end]

		results := make([]bool, len(sub))
		var wg sync.WaitGroup
		for i, c := range sub {
			wg.Add(1)
			go func(i int, c *model.Candidate) {
				defer wg.Done()
				ok := m.validator.Validate(c, protocol)
				results[i] = ok
				if m.cache != nil {
					m.cache.Put(c.Key(), ok)
				}
			}(i, c)
		}
		wg.Wait()

		for i, c := range sub {
			if !results[i] {
				continue
			}
			if m.store.InsertIfAbsent(model.NewValidatedProxy(c, protocol)) {
				inserted++
			}
		}
	}
	return inserted
}

func (m *Manager) notify(stats AttemptStats) {
	if m.observer != nil {
		m.observer(stats)
	}
}
