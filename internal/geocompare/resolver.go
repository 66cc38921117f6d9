package geocompare

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jengzang/tour-geocompare/internal/models"
)

// CandidateSource finds the tours which pass through any of the grid cells
type CandidateSource interface {
	ResolveCandidates(ctx context.Context, cellIDs []int64, useAppFilter bool) ([]int64, error)
}

// CandidateResolver resolves candidate tours on one background worker.
// At most one resolution runs at a time; a submitted request which has not
// started yet is replaced by the next submission.
type CandidateResolver struct {
	source     CandidateSource
	onResolved func(*Request)

	generation atomic.Int64

	mu      sync.Mutex
	pending *Request
	closed  bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCandidateResolver starts a resolver. onResolved runs on the resolver
// worker for every request which was resolved and is still active.
func NewCandidateResolver(source CandidateSource, onResolved func(*Request)) *CandidateResolver {
	ctx, cancel := context.WithCancel(context.Background())
	r := &CandidateResolver{
		source:     source,
		onResolved: onResolved,
		wake:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go r.run()
	return r
}

// Submit creates a new request, cancels prev and queues the resolution.
// The returned request has no tour ids yet.
func (r *CandidateResolver) Submit(cellIDs []int64, ref *models.NormalizedGeoData, useAppFilter bool, filter FilterOptions, prev *Request) *Request {
	req := newRequest(r.generation.Add(1), ref, cellIDs, useAppFilter, filter)

	if prev != nil {
		prev.Cancel()
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		req.Cancel()
		return req
	}
	if dropped := r.pending; dropped != nil {
		dropped.Cancel()
		logf("[geocompare] generation %d: dropped before resolving", dropped.Generation)
	}
	r.pending = req
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}

	return req
}

// Close stops the worker. A running resolution is waited for.
func (r *CandidateResolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.pending != nil {
		r.pending.Cancel()
		r.pending = nil
	}
	r.mu.Unlock()

	r.cancel()
	<-r.done
}

func (r *CandidateResolver) run() {
	defer close(r.done)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.wake:
		}

		r.mu.Lock()
		req := r.pending
		r.pending = nil
		r.mu.Unlock()

		if req != nil {
			r.resolve(req)
		}
	}
}

func (r *CandidateResolver) resolve(req *Request) {
	if req.Canceled() || !req.transition(StateLoading) {
		logf("[geocompare] generation %d: canceled before resolving", req.Generation)
		return
	}

	start := time.Now()
	tourIDs, err := r.query(req)
	if err != nil {
		if r.ctx.Err() == nil {
			logf("[geocompare] generation %d: failed to resolve candidates: %v", req.Generation, err)
		}
		tourIDs = nil
	}

	if req.Canceled() || !req.resolve(tourIDs) {
		logf("[geocompare] generation %d: discarding %d candidates of a superseded request", req.Generation, len(tourIDs))
		return
	}

	logf("[geocompare] generation %d: %d candidate tours from %d grid cells in %v",
		req.Generation, len(tourIDs), len(req.CellIDs), time.Since(start).Round(time.Millisecond))

	if r.onResolved != nil {
		r.onResolved(req)
	}
}

func (r *CandidateResolver) query(req *Request) (tourIDs []int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			tourIDs = nil
			err = fmt.Errorf("panic while resolving candidates: %v", p)
		}
	}()
	return r.source.ResolveCandidates(r.ctx, req.CellIDs, req.UseAppFilter)
}
