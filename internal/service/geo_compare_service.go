package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jengzang/tour-geocompare/internal/geocompare"
	"github.com/jengzang/tour-geocompare/internal/models"
	"github.com/jengzang/tour-geocompare/internal/repository"
)

// maxSessions bounds the number of sessions kept for status queries
const maxSessions = 32

// ErrSessionNotFound is returned for an unknown or closed session
var ErrSessionNotFound = errors.New("geo compare session not found")

// CompareStore combines the repositories the compare engine reads from
type CompareStore struct {
	*repository.TourRepository
	*repository.GeoPartRepository
}

// GeoCompareService manages geo compare sessions
type GeoCompareService struct {
	tourRepo      *repository.TourRepository
	manager       *geocompare.Manager
	defaultFilter geocompare.FilterOptions

	mu       sync.RWMutex
	sessions map[string]*geocompare.Request
	order    []string
}

// NewGeoCompareService creates a new geo compare service
func NewGeoCompareService(tourRepo *repository.TourRepository, manager *geocompare.Manager, defaultFilter geocompare.FilterOptions) *GeoCompareService {
	return &GeoCompareService{
		tourRepo:      tourRepo,
		manager:       manager,
		defaultFilter: defaultFilter,
		sessions:      make(map[string]*geocompare.Request),
	}
}

// Start starts comparing a segment of a tour against all other tours.
// The previous session is superseded.
func (s *GeoCompareService) Start(ctx context.Context, in models.GeoCompareStartRequest) (*models.GeoCompareStatus, error) {
	tour, err := s.tourRepo.LoadTour(ctx, in.TourID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference tour: %w", err)
	}
	if tour == nil {
		return nil, ErrTourNotFound
	}

	req, err := s.manager.Start(geocompare.ReferenceSegment{
		TourID:     tour.ID,
		Samples:    tour.Samples,
		FirstIndex: in.FirstIndex,
		LastIndex:  in.LastIndex,
	}, geocompare.StartParams{
		UseAppFilter:     in.UseAppFilter,
		GeoAccuracy:      in.GeoAccuracy,
		DistanceAccuracy: in.DistanceAccuracy,
		Filter:           s.filterFor(s.defaultFilter, in.MaxDiffPercent, in.MaxResults),
	})
	if err != nil {
		return nil, err
	}

	s.manager.OnCandidateCompleted(req, func(ev geocompare.ProgressEvent) {
		log.Printf("[geocompare] session %s: %d/%d tours compared", req.ID, ev.Completed, ev.Total)
	})
	s.manager.OnGenerationCompleted(req, func(r *geocompare.Request) {
		maxDiff, _ := r.MaxDiff()
		log.Printf("[geocompare] session %s: done, %d results, max diff %d", r.ID, len(r.Results()), maxDiff)
	})

	s.register(req)
	return statusOf(req), nil
}

// Status returns the state of a session
func (s *GeoCompareService) Status(id string) (*models.GeoCompareStatus, error) {
	req, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return statusOf(req), nil
}

// Results returns the filtered results of a session. Filter values which are
// not given fall back to the filter the session was started with.
func (s *GeoCompareService) Results(id string, filter models.GeoCompareResultFilter) (*geocompare.FilteredView, error) {
	req, err := s.get(id)
	if err != nil {
		return nil, err
	}

	view := s.manager.ApplyFilter(req, s.filterFor(req.Filter, filter.MaxDiffPercent, filter.MaxResults))
	if !filter.WithCurve {
		view = withoutCurves(view)
	}
	return &view, nil
}

// Cancel stops a session
func (s *GeoCompareService) Cancel(id string) (*models.GeoCompareStatus, error) {
	req, err := s.get(id)
	if err != nil {
		return nil, err
	}
	s.manager.Cancel(req)
	return statusOf(req), nil
}

// Close cancels a session and forgets it
func (s *GeoCompareService) Close(id string) error {
	s.mu.Lock()
	req, ok := s.sessions[id]
	if ok {
		s.removeLocked(id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.manager.Cancel(req)
	return nil
}

func (s *GeoCompareService) get(id string) (*geocompare.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return req, nil
}

func (s *GeoCompareService) register(req *geocompare.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[req.ID] = req
	s.order = append(s.order, req.ID)

	for len(s.order) > maxSessions {
		s.removeLocked(s.order[0])
	}
}

func (s *GeoCompareService) removeLocked(id string) {
	delete(s.sessions, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *GeoCompareService) filterFor(base geocompare.FilterOptions, maxDiffPercent *float64, maxResults *int) geocompare.FilterOptions {
	filter := base
	if maxDiffPercent != nil {
		filter.RelativeDiffEnabled = true
		filter.RelativeDiffPercent = *maxDiffPercent
	}
	if maxResults != nil {
		filter.MaxResultsEnabled = true
		filter.MaxResults = *maxResults
	}
	return filter
}

func statusOf(req *geocompare.Request) *models.GeoCompareStatus {
	completed, total := req.Progress()
	return &models.GeoCompareStatus{
		ID:         req.ID,
		Generation: req.Generation,
		State:      req.State().String(),
		Completed:  completed,
		Total:      total,
		Canceled:   req.Canceled(),
	}
}

// withoutCurves copies the view's tours without their difference curves
func withoutCurves(view geocompare.FilteredView) geocompare.FilteredView {
	entries := make([]geocompare.ViewEntry, len(view.Entries))
	for i, e := range view.Entries {
		tour := *e.Tour
		tour.DiffCurve = nil
		entries[i] = geocompare.ViewEntry{Tour: &tour, RelativeDiff: e.RelativeDiff}
	}
	view.Entries = entries
	return view
}
