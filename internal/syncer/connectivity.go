package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sitechron/fieldsync/internal/observability"
	"github.com/sitechron/fieldsync/internal/services"
)

// Events is the subset of the event hub this package publishes through
type Events interface {
	Publish(eventType string, payload interface{})
}

// Prober checks remote reachability; a nil error means reachable
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

// MonitorConfig tunes the connectivity monitor
type MonitorConfig struct {
	// ProbeInterval is how often reachability is checked
	ProbeInterval time.Duration
	// Debounce is how long a state flip must persist before it is emitted,
	// so rapid flapping does not trigger redundant sync cycles
	Debounce time.Duration
}

// Monitor observes network reachability and emits debounced online/offline
// transitions to its listeners and the event hub
type Monitor struct {
	prober Prober
	cfg    MonitorConfig
	events Events
	now    func() time.Time

	mu           sync.RWMutex
	online       bool
	started      bool
	pending      *bool
	pendingSince time.Time
	listeners    []chan<- bool
}

// NewMonitor creates a connectivity monitor; it reports offline until the
// first probe succeeds
func NewMonitor(prober Prober, cfg MonitorConfig, events Events) *Monitor {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 15 * time.Second
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	return &Monitor{
		prober: prober,
		cfg:    cfg,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Online returns the current debounced reachability state; the reconciler
// checks this before each item mid-pass
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Notify registers a listener for online/offline transitions. The channel
// should be buffered; a transition that cannot be delivered is dropped for
// that listener.
func (m *Monitor) Notify(ch chan<- bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, ch)
}

// Run probes reachability until the context is canceled
func (m *Monitor) Run(ctx context.Context) {
	m.observe(ctx)

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.observe(ctx)
		}
	}
}

// observe performs one probe and applies the debounce rule: the first
// observation sets the state directly, after that a flip must hold for the
// debounce window before it is committed and emitted.
func (m *Monitor) observe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeInterval)
	reachable := m.prober.Probe(probeCtx) == nil
	cancel()

	m.mu.Lock()

	if !m.started {
		m.started = true
		m.online = reachable
		m.mu.Unlock()
		m.emit(reachable)
		return
	}

	if reachable == m.online {
		m.pending = nil
		m.mu.Unlock()
		return
	}

	now := m.now()
	if m.pending == nil || *m.pending != reachable {
		m.pending = &reachable
		m.pendingSince = now
		m.mu.Unlock()
		return
	}

	if now.Sub(m.pendingSince) < m.cfg.Debounce {
		m.mu.Unlock()
		return
	}

	m.online = reachable
	m.pending = nil
	m.mu.Unlock()
	m.emit(reachable)
}

func (m *Monitor) emit(online bool) {
	if online {
		observability.Info("Connectivity restored")
	} else {
		observability.Warn("Connectivity lost")
	}
	observability.RecordConnectivityTransition(context.Background(), online)

	if m.events != nil {
		m.events.Publish(services.EventConnectivityChanged, map[string]bool{"online": online})
	}

	m.mu.RLock()
	listeners := make([]chan<- bool, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, ch := range listeners {
		select {
		case ch <- online:
		default:
		}
	}
}
