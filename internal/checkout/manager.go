package checkout

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkutano/hotspot/internal/metrics"
	"github.com/mkutano/hotspot/internal/payment"
	"github.com/mkutano/hotspot/internal/plan"
)

var ErrFlowNotFound = errors.New("checkout: session not found or expired")

// Manager holds the portal's in-flight checkout flows, keyed by an
// opaque session ID handed to the browser. Flows are transient: they
// expire after a TTL and are never persisted.
type Manager struct {
	mu      sync.Mutex
	flows   map[string]*entry
	source  *plan.FallbackSource
	gateway payment.Gateway
	poller  *payment.Poller
	cfg     Config
	ttl     time.Duration
	logger  *slog.Logger
	stop    chan struct{}
	once    sync.Once
}

type entry struct {
	flow    *Flow
	expires time.Time
}

// NewManager creates a flow registry with the given session TTL.
func NewManager(source *plan.FallbackSource, gateway payment.Gateway, poller *payment.Poller, cfg Config, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		flows:   make(map[string]*entry),
		source:  source,
		gateway: gateway,
		poller:  poller,
		cfg:     cfg,
		ttl:     ttl,
		logger:  logger,
		stop:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Begin creates a new flow and returns its session ID.
func (m *Manager) Begin() (string, *Flow) {
	id := uuid.NewString()
	f := New(m.source, m.gateway, m.poller, m.cfg, m.logger)

	m.mu.Lock()
	m.flows[id] = &entry{flow: f, expires: time.Now().Add(m.ttl)}
	metrics.ActiveCheckouts.Set(float64(len(m.flows)))
	m.mu.Unlock()

	return id, f
}

// Get returns the flow for a session ID, refreshing its TTL.
func (m *Manager) Get(id string) (*Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.flows[id]
	if !ok || time.Now().After(e.expires) {
		return nil, ErrFlowNotFound
	}
	e.expires = time.Now().Add(m.ttl)
	return e.flow, nil
}

// End removes a finished or abandoned flow.
func (m *Manager) End(id string) {
	m.mu.Lock()
	delete(m.flows, id)
	metrics.ActiveCheckouts.Set(float64(len(m.flows)))
	m.mu.Unlock()
}

// Close stops the background sweeper.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stop) })
}

// sweep drops expired flows once a minute.
func (m *Manager) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for id, e := range m.flows {
				if now.After(e.expires) {
					delete(m.flows, id)
				}
			}
			metrics.ActiveCheckouts.Set(float64(len(m.flows)))
			m.mu.Unlock()
		}
	}
}
