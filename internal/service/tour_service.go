package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jengzang/tour-geocompare/internal/models"
	"github.com/jengzang/tour-geocompare/internal/repository"
)

var (
	// ErrTourNotFound is returned when a tour does not exist
	ErrTourNotFound = errors.New("tour not found")
	// ErrInvalidTour is returned for a tour which cannot be stored
	ErrInvalidTour = errors.New("invalid tour")
)

// TourService handles business logic for tours
type TourService struct {
	tourRepo *repository.TourRepository
}

// NewTourService creates a new tour service
func NewTourService(tourRepo *repository.TourRepository) *TourService {
	return &TourService{
		tourRepo: tourRepo,
	}
}

// CreateTour validates and stores a tour with its samples
func (s *TourService) CreateTour(ctx context.Context, tour *models.Tour) error {
	if len(tour.Samples) < 2 {
		return fmt.Errorf("%w: at least 2 samples are required", ErrInvalidTour)
	}
	for i := 1; i < len(tour.Samples); i++ {
		if tour.Samples[i].TimeOffset < tour.Samples[i-1].TimeOffset {
			return fmt.Errorf("%w: sample %d goes back in time", ErrInvalidTour, i)
		}
	}

	if err := s.tourRepo.SaveTour(ctx, tour); err != nil {
		return fmt.Errorf("failed to save tour: %w", err)
	}
	return nil
}

// GetTour retrieves a tour with its samples
func (s *TourService) GetTour(ctx context.Context, id int64) (*models.Tour, error) {
	tour, err := s.tourRepo.LoadTour(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get tour: %w", err)
	}
	if tour == nil {
		return nil, ErrTourNotFound
	}
	return tour, nil
}

// DeleteTour removes a tour
func (s *TourService) DeleteTour(ctx context.Context, id int64) error {
	deleted, err := s.tourRepo.DeleteTour(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrTourNotFound
	}
	return nil
}
