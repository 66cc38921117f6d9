package geocompare

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/jengzang/tour-geocompare/internal/models"
	"github.com/jengzang/tour-geocompare/internal/spatial"
	"github.com/jengzang/tour-geocompare/internal/stats"
)

// DefaultProgressInterval is the minimum time between two progress updates
const DefaultProgressInterval = time.Second

var errCanceled = errors.New("geo compare canceled")

// TourLoader loads a tour with all its samples
type TourLoader interface {
	LoadTour(ctx context.Context, tourID int64) (*models.Tour, error)
}

// CoordinatorConfig configures the compare worker pool
type CoordinatorConfig struct {
	Workers          int // Defaults to the number of logical CPUs
	ProgressInterval time.Duration
	Stats            stats.Options
	Now              func() time.Time // Clock for progress coalescing
}

// Coordinator runs one compare task per candidate tour on a fixed worker pool
type Coordinator struct {
	loader TourLoader
	cfg    CoordinatorConfig

	tasks  chan func()
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	feeders sync.WaitGroup
	workers sync.WaitGroup
}

// NewCoordinator creates a coordinator and starts its workers
func NewCoordinator(loader TourLoader, cfg CoordinatorConfig) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		loader: loader,
		cfg:    cfg,
		tasks:  make(chan func()),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		c.workers.Add(1)
		go c.worker()
	}

	return c
}

// Workers returns the size of the pool
func (c *Coordinator) Workers() int {
	return c.cfg.Workers
}

func (c *Coordinator) worker() {
	defer c.workers.Done()
	for task := range c.tasks {
		task()
	}
}

// Submit queues one task per candidate of a resolved request. It does not block.
func (c *Coordinator) Submit(req *Request) {
	slots, ok := req.beginComparing(c.cfg.ProgressInterval, c.cfg.Now)
	if !ok {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		req.Cancel()
		return
	}
	c.feeders.Add(1)
	c.mu.Unlock()

	logf("[geocompare] generation %d: comparing %d tours on %d workers", req.Generation, len(slots), c.cfg.Workers)

	go func() {
		defer c.feeders.Done()
		for _, slot := range slots {
			if req.Canceled() {
				return
			}
			// The task owns exactly this slot
			task := func() { c.compareTour(req, slot) }
			select {
			case c.tasks <- task:
			case <-c.ctx.Done():
				return
			}
		}
	}()
}

// Close stops the workers after the running tasks have finished
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.feeders.Wait()
	close(c.tasks)
	c.workers.Wait()
}

func (c *Coordinator) compareTour(req *Request, slot *models.GeoComparedTour) {
	if req.Canceled() {
		return
	}

	result, err := c.safeMatchTour(req, slot.TourID)
	switch {
	case errors.Is(err, errCanceled):
		return
	case err != nil:
		logf("[geocompare] generation %d: tour %d failed: %v", req.Generation, slot.TourID, err)
		req.publish(slot, nil)
	default:
		req.publish(slot, result)
	}
}

func (c *Coordinator) safeMatchTour(req *Request, tourID int64) (result *models.GeoComparedTour, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("panic while comparing: %v", p)
		}
	}()
	return c.matchTour(req, tourID)
}

func (c *Coordinator) matchTour(req *Request, tourID int64) (*models.GeoComparedTour, error) {
	tour, err := c.loader.LoadTour(c.ctx, tourID)
	if err != nil {
		if req.Canceled() || c.ctx.Err() != nil {
			return nil, errCanceled
		}
		return nil, fmt.Errorf("failed to load tour: %w", err)
	}
	if tour == nil {
		return nil, fmt.Errorf("tour not found")
	}

	ref := req.Reference
	cand := spatial.Normalize(tour.Samples, 0, tour.NumSamples()-1, ref.GeoAccuracy, ref.DistanceAccuracy)
	cand.TourID = tourID

	match, ok := Match(ref, cand, req.Canceled)
	if !ok {
		return nil, errCanceled
	}

	result := &models.GeoComparedTour{
		TourID:              tourID,
		Generation:          req.Generation,
		TourTitle:           tour.Title,
		TourStartTime:       tour.StartTime,
		DiffCurve:           match.Curve,
		BestMatch:           match.Best,
		BestNormalizedIndex: match.Offset,
		OriginalStartIndex:  -1,
		OriginalEndIndex:    -1,
	}

	if start, end, ok := originalRange(cand, match.Offset, ref.Len()); ok {
		result.OriginalStartIndex = start
		result.OriginalEndIndex = end
		result.Stats = stats.Aggregate(tour.Samples, start, end, c.cfg.Stats)
	}

	return result, nil
}
