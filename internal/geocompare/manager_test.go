package geocompare

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/tour-geocompare/internal/models"
)

func newTestManager(t *testing.T, store *fakeStore) *Manager {
	t.Helper()
	m := NewManager(store, Config{Workers: 2})
	t.Cleanup(m.Close)
	return m
}

func wholeTour(tour *models.Tour) ReferenceSegment {
	return ReferenceSegment{
		TourID:     tour.ID,
		Samples:    tour.Samples,
		FirstIndex: 0,
		LastIndex:  tour.NumSamples() - 1,
	}
}

func blockingStore(tours ...*models.Tour) *fakeStore {
	store := newFakeStore(tours...)
	store.block = make(chan struct{})
	store.entered = make(chan struct{}, 1)
	return store
}

func TestManagerStart(t *testing.T) {
	store := newFakeStore(
		eastTour(1, 100, 47, 8, 40),
		eastTour(2, 200, 47.002, 8, 40),
		eastTour(3, 300, 47, 8, 5),
	)
	m := newTestManager(t, store)

	req, err := m.Start(wholeTour(store.tours[1]), StartParams{
		Filter: FilterOptions{RelativeDiffEnabled: true, RelativeDiffPercent: 10},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Same(t, req, m.Current())

	waitFor(t, awaitDone(req))

	assert.Equal(t, []int64{1, 2, 3}, req.TourIDs())
	assert.Len(t, req.Results(), 3)

	// The initial view uses the filter of the request
	require.NotNil(t, req.View())
	assert.Equal(t, []int64{1}, tourIDs(*req.View()))

	view := m.ApplyFilter(req, FilterOptions{})
	assert.Equal(t, []int64{1, 2, 3}, tourIDs(view))
	assert.Equal(t, req.Generation, view.Generation)
}

func TestManagerStartRejectsInvalidSegment(t *testing.T) {
	m := newTestManager(t, newFakeStore())
	tour := eastTour(1, 100, 47, 8, 10)

	tests := []struct {
		name        string
		first, last int
		samples     []models.TourSample
	}{
		{"empty range", 4, 4, tour.Samples},
		{"reversed", 5, 2, tour.Samples},
		{"negative", -1, 3, tour.Samples},
		{"past the end", 0, 10, tour.Samples},
		{"no positions", 0, 2, make([]models.TourSample, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Start(ReferenceSegment{TourID: 1, Samples: tt.samples, FirstIndex: tt.first, LastIndex: tt.last}, StartParams{})
			assert.ErrorIs(t, err, ErrInvalidSegment)
		})
	}
	assert.Nil(t, m.Current())
}

func TestManagerSupersededGenerationPublishesNothing(t *testing.T) {
	store := blockingStore(
		eastTour(1, 100, 47, 8, 20),
		eastTour(2, 200, 47, 8, 20),
	)
	m := newTestManager(t, store)

	first, err := m.Start(wholeTour(store.tours[1]), StartParams{})
	require.NoError(t, err)
	first.OnCandidateCompleted(func(ProgressEvent) { t.Error("progress of a superseded generation") })
	first.OnGenerationCompleted(func(*Request) { t.Error("completion of a superseded generation") })

	// The first resolution is running when the second start arrives
	waitFor(t, store.entered)
	second, err := m.Start(wholeTour(store.tours[2]), StartParams{})
	require.NoError(t, err)
	assert.Greater(t, second.Generation, first.Generation)
	assert.True(t, first.Canceled())

	close(store.block)
	waitFor(t, awaitDone(second))

	assert.Equal(t, StateCanceled, first.State())
	assert.Empty(t, first.Results())
	assert.Empty(t, first.TourIDs())
	assert.Len(t, second.Results(), 2)
	assert.Equal(t, 2, store.loadCount())
}

func TestManagerDropsPendingRequest(t *testing.T) {
	store := blockingStore(eastTour(1, 100, 47, 8, 20))
	m := newTestManager(t, store)
	ref := wholeTour(store.tours[1])

	first, err := m.Start(ref, StartParams{})
	require.NoError(t, err)
	waitFor(t, store.entered)

	dropped, err := m.Start(ref, StartParams{})
	require.NoError(t, err)
	last, err := m.Start(ref, StartParams{})
	require.NoError(t, err)

	close(store.block)
	waitFor(t, awaitDone(last))

	assert.Equal(t, 2, store.resolveCount())
	assert.Equal(t, StateCanceled, first.State())
	assert.Equal(t, StateCanceled, dropped.State())
	assert.Equal(t, []int64{first.Generation + 1, first.Generation + 2}, []int64{dropped.Generation, last.Generation})
}

func TestManagerResolveError(t *testing.T) {
	store := newFakeStore(eastTour(1, 100, 47, 8, 20))
	store.resolveErr = errStorage
	m := newTestManager(t, store)

	req, err := m.Start(wholeTour(store.tours[1]), StartParams{})
	require.NoError(t, err)
	waitFor(t, awaitDone(req))

	assert.Equal(t, StateDone, req.State())
	assert.Empty(t, req.Results())
	maxDiff, known := req.MaxDiff()
	assert.True(t, known)
	assert.Zero(t, maxDiff)
	assert.Zero(t, store.loadCount())
}

func TestManagerCancel(t *testing.T) {
	store := blockingStore(eastTour(1, 100, 47, 8, 20))
	m := newTestManager(t, store)

	req, err := m.Start(wholeTour(store.tours[1]), StartParams{})
	require.NoError(t, err)
	waitFor(t, store.entered)

	m.Cancel(req)
	close(store.block)
	m.Close()

	assert.Equal(t, StateCanceled, req.State())
	assert.Empty(t, req.Results())
	assert.Zero(t, store.loadCount())

	_, err = m.Start(wholeTour(store.tours[1]), StartParams{})
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestManagerIndependentInstances(t *testing.T) {
	a := newTestManager(t, newFakeStore(eastTour(1, 100, 47, 8, 20)))
	b := newTestManager(t, newFakeStore(eastTour(1, 100, 47, 8, 20), eastTour(2, 200, 47, 8, 20)))
	ref := wholeTour(eastTour(1, 100, 47, 8, 20))

	ra, err := a.Start(ref, StartParams{})
	require.NoError(t, err)
	rb, err := b.Start(ref, StartParams{})
	require.NoError(t, err)

	waitFor(t, awaitDone(ra))
	waitFor(t, awaitDone(rb))

	assert.False(t, ra.Canceled())
	assert.Len(t, ra.Results(), 1)
	assert.Len(t, rb.Results(), 2)
}

func TestManagerProgressInterval(t *testing.T) {
	m := NewManager(newFakeStore(), Config{})
	defer m.Close()

	assert.Equal(t, DefaultProgressInterval, m.cfg.ProgressInterval)
	assert.Equal(t, DefaultConfig().GeoAccuracy, m.cfg.GeoAccuracy)
	assert.Positive(t, m.coordinator.Workers())
	assert.Less(t, m.cfg.Stats.PauseGap, time.Hour)
}
