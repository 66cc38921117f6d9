package geocompare

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jengzang/tour-geocompare/internal/models"
	"github.com/jengzang/tour-geocompare/internal/spatial"
	"github.com/jengzang/tour-geocompare/internal/stats"
)

var (
	// ErrInvalidSegment is returned for a reference segment without usable positions
	ErrInvalidSegment = errors.New("invalid reference segment")
	// ErrManagerClosed is returned by Start after Close
	ErrManagerClosed = errors.New("geo compare manager closed")
)

// Store provides the tours to compare
type Store interface {
	CandidateSource
	TourLoader
}

// Config configures a Manager
type Config struct {
	GeoAccuracy      int
	DistanceAccuracy float64 // Meters
	Workers          int     // 0 uses the number of logical CPUs
	ProgressInterval time.Duration
	Stats            stats.Options
	Now              func() time.Time
}

// DefaultConfig returns the default manager configuration
func DefaultConfig() Config {
	return Config{
		GeoAccuracy:      spatial.DefaultGeoAccuracy,
		DistanceAccuracy: spatial.DefaultDistanceAccuracy,
		ProgressInterval: DefaultProgressInterval,
		Stats:            stats.DefaultOptions(),
	}
}

// ReferenceSegment is the part of a tour to search for
type ReferenceSegment struct {
	TourID     int64
	Samples    []models.TourSample
	FirstIndex int
	LastIndex  int
}

// StartParams are the per-request parameters of Start
type StartParams struct {
	UseAppFilter     bool
	GeoAccuracy      int     // 0 uses the manager default
	DistanceAccuracy float64 // 0 uses the manager default
	Filter           FilterOptions
}

// Manager runs geo comparisons. Each Start supersedes the previous request.
type Manager struct {
	cfg         Config
	resolver    *CandidateResolver
	coordinator *Coordinator

	mu      sync.Mutex
	current *Request
	closed  bool
}

// NewManager creates a manager with its own resolver and worker pool
func NewManager(store Store, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.GeoAccuracy <= 0 {
		cfg.GeoAccuracy = def.GeoAccuracy
	}
	if cfg.DistanceAccuracy <= 0 {
		cfg.DistanceAccuracy = def.DistanceAccuracy
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = def.ProgressInterval
	}
	if cfg.Stats == (stats.Options{}) {
		cfg.Stats = def.Stats
	}

	m := &Manager{cfg: cfg}
	m.coordinator = NewCoordinator(store, CoordinatorConfig{
		Workers:          cfg.Workers,
		ProgressInterval: cfg.ProgressInterval,
		Stats:            cfg.Stats,
		Now:              cfg.Now,
	})
	m.resolver = NewCandidateResolver(store, m.onResolved)

	return m
}

// Start normalizes the reference segment and starts resolving candidates.
// It returns immediately; results are delivered to the request's listeners.
func (m *Manager) Start(ref ReferenceSegment, params StartParams) (*Request, error) {
	if ref.FirstIndex < 0 || ref.LastIndex >= len(ref.Samples) || ref.FirstIndex >= ref.LastIndex {
		return nil, fmt.Errorf("%w: range %d..%d of %d samples", ErrInvalidSegment, ref.FirstIndex, ref.LastIndex, len(ref.Samples))
	}

	geoAccuracy := params.GeoAccuracy
	if geoAccuracy <= 0 {
		geoAccuracy = m.cfg.GeoAccuracy
	}
	distanceAccuracy := params.DistanceAccuracy
	if distanceAccuracy <= 0 {
		distanceAccuracy = m.cfg.DistanceAccuracy
	}

	norm := spatial.Normalize(ref.Samples, ref.FirstIndex, ref.LastIndex, geoAccuracy, distanceAccuracy)
	norm.TourID = ref.TourID
	if norm.Len() == 0 {
		return nil, fmt.Errorf("%w: no positions in range", ErrInvalidSegment)
	}
	cells := spatial.GridCellsFor(ref.Samples, ref.FirstIndex, ref.LastIndex)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	req := m.resolver.Submit(cells, norm, params.UseAppFilter, params.Filter, m.current)
	m.current = req

	logf("[geocompare] generation %d: started for tour %d samples %d..%d (%d grid points, %d cells)",
		req.Generation, ref.TourID, ref.FirstIndex, ref.LastIndex, norm.Len(), len(cells))

	return req, nil
}

// Current returns the most recent request
func (m *Manager) Current() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// OnCandidateCompleted registers a progress listener on a request
func (m *Manager) OnCandidateCompleted(req *Request, fn func(ProgressEvent)) {
	req.OnCandidateCompleted(fn)
}

// OnGenerationCompleted registers a completion listener on a request
func (m *Manager) OnGenerationCompleted(req *Request, fn func(*Request)) {
	req.OnGenerationCompleted(fn)
}

// Cancel stops a request; its remaining results are never published
func (m *Manager) Cancel(req *Request) {
	if req == nil {
		return
	}
	req.Cancel()
	logf("[geocompare] generation %d: canceled", req.Generation)
}

// ApplyFilter returns a sorted and filtered view of the request's current results
func (m *Manager) ApplyFilter(req *Request, opts FilterOptions) FilteredView {
	return req.applyFilter(opts)
}

// Close cancels the current request and stops all workers.
// It must not be called from a request listener.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.current != nil {
		m.current.Cancel()
	}
	m.mu.Unlock()

	m.resolver.Close()
	m.coordinator.Close()
}

func (m *Manager) onResolved(req *Request) {
	if req.Canceled() {
		return
	}
	m.coordinator.Submit(req)
}
