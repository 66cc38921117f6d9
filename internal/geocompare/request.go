package geocompare

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/tour-geocompare/internal/models"
)

// State is the lifecycle state of a Request
type State int32

const (
	StateCreated   State = iota // Tour ids not resolved yet
	StateLoading                // Candidate resolution is running
	StateResolved               // Tour ids are known, nothing compared
	StateComparing              // Compare tasks are running
	StateDone                   // All candidates are compared
	StateCanceled               // Superseded or canceled, accepts no writes
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoading:
		return "loading"
	case StateResolved:
		return "resolved"
	case StateComparing:
		return "comparing"
	case StateDone:
		return "done"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateDone || s == StateCanceled
}

// ProgressEvent is delivered to candidate listeners
type ProgressEvent struct {
	Generation int64
	Completed  int
	Total      int
	Final      bool
}

// Request is one comparison session for a reference segment
type Request struct {
	ID           string
	Generation   int64
	Reference    *models.NormalizedGeoData
	CellIDs      []int64
	UseAppFilter bool
	Filter       FilterOptions

	canceled atomic.Bool

	mu        sync.Mutex
	state     State
	tourIDs   []int64
	slots     []*models.GeoComparedTour
	results   []*models.GeoComparedTour // append-only while comparing
	completed int
	maxDiff   int64
	view      *FilteredView

	progressInterval time.Duration
	now              func() time.Time
	lastProgress     time.Time

	candidateListeners  []func(ProgressEvent)
	generationListeners []func(*Request)

	// notifyMu guards the delivery queue. Listeners run without it held.
	notifyMu      sync.Mutex
	pending       []delivery
	draining      bool
	finalQueued   bool
	lastCompleted int
}

type delivery struct {
	ev          ProgressEvent
	candidates  []func(ProgressEvent)
	generations []func(*Request)
}

func newRequest(generation int64, ref *models.NormalizedGeoData, cellIDs []int64, useAppFilter bool, filter FilterOptions) *Request {
	return &Request{
		ID:           uuid.NewString(),
		Generation:   generation,
		Reference:    ref,
		CellIDs:      cellIDs,
		UseAppFilter: useAppFilter,
		Filter:       filter,
		state:        StateCreated,
		now:          time.Now,
	}
}

// State returns the current state
func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Canceled reports whether the request was canceled
func (r *Request) Canceled() bool {
	return r.canceled.Load()
}

// Cancel stops the request. A request which is already done stays done.
func (r *Request) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Terminal() {
		return
	}
	r.state = StateCanceled
	r.canceled.Store(true)
}

// TourIDs returns the resolved candidate tour ids
func (r *Request) TourIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.tourIDs)
}

// Results returns a snapshot of the completed results in completion order
func (r *Request) Results() []*models.GeoComparedTour {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.results)
}

// Progress returns the number of processed and of all candidates
func (r *Request) Progress() (completed, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed, len(r.slots)
}

// MaxDiff returns the normalization baseline, which is known once the request is done
func (r *Request) MaxDiff() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxDiff, r.state == StateDone
}

// View returns the last filtered view, nil before the first one was built
func (r *Request) View() *FilteredView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// OnCandidateCompleted registers a listener for coalesced progress updates
func (r *Request) OnCandidateCompleted(fn func(ProgressEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidateListeners = append(r.candidateListeners, fn)
}

// OnGenerationCompleted registers a listener which runs once all candidates
// are compared. It runs immediately when the request is already done.
func (r *Request) OnGenerationCompleted(fn func(*Request)) {
	r.mu.Lock()
	if r.state != StateDone {
		r.generationListeners = append(r.generationListeners, fn)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if !r.Canceled() {
		fn(r)
	}
}

// transition moves to the next state when the move is allowed
func (r *Request) transition(to State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(to)
}

func (r *Request) transitionLocked(to State) bool {
	if r.state.Terminal() {
		return false
	}

	allowed := false
	switch to {
	case StateLoading:
		allowed = r.state == StateCreated
	case StateResolved:
		allowed = r.state == StateLoading
	case StateComparing:
		allowed = r.state == StateResolved
	case StateDone:
		allowed = r.state == StateResolved || r.state == StateComparing
	}
	if allowed {
		r.state = to
	}
	return allowed
}

// resolve stores the candidate tour ids and creates one result slot per tour
func (r *Request) resolve(tourIDs []int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.transitionLocked(StateResolved) {
		return false
	}

	r.tourIDs = slices.Clone(tourIDs)
	r.slots = make([]*models.GeoComparedTour, len(tourIDs))
	for i, id := range tourIDs {
		r.slots[i] = &models.GeoComparedTour{
			TourID:              id,
			Generation:          r.Generation,
			BestMatch:           models.UnsetMatch(),
			BestNormalizedIndex: -1,
			OriginalStartIndex:  -1,
			OriginalEndIndex:    -1,
		}
	}
	return true
}

// beginComparing starts the compare phase and returns the slots to compare.
// A request without candidates is done immediately.
func (r *Request) beginComparing(interval time.Duration, now func() time.Time) ([]*models.GeoComparedTour, bool) {
	r.mu.Lock()

	r.progressInterval = interval
	if now != nil {
		r.now = now
	}

	if len(r.slots) == 0 {
		if !r.transitionLocked(StateDone) {
			r.mu.Unlock()
			return nil, false
		}
		r.finishLocked()
		ev := ProgressEvent{Generation: r.Generation, Final: true}
		candidates, generations := r.listenersLocked()
		r.mu.Unlock()

		r.deliver(ev, candidates, generations)
		return nil, false
	}

	if !r.transitionLocked(StateComparing) {
		r.mu.Unlock()
		return nil, false
	}
	slots := slices.Clone(r.slots)
	r.mu.Unlock()

	return slots, true
}

// publish writes the result of one candidate into its slot. A nil result marks
// a failed candidate, which counts as processed but keeps its unset value.
func (r *Request) publish(slot *models.GeoComparedTour, result *models.GeoComparedTour) {
	r.mu.Lock()

	if r.state != StateComparing || r.Canceled() {
		r.mu.Unlock()
		return
	}
	if slot.Generation != r.Generation || (result != nil && result.Generation != r.Generation) {
		r.mu.Unlock()
		logf("[geocompare] dropped result of tour %d from another generation", slot.TourID)
		return
	}

	if result != nil {
		*slot = *result
		slot.Completed = true
		r.results = append(r.results, slot)
	}
	r.completed++

	final := r.completed == len(r.slots)
	if final {
		r.transitionLocked(StateDone)
		r.finishLocked()
	}

	now := r.now()
	notify := final || r.lastProgress.IsZero() || now.Sub(r.lastProgress) >= r.progressInterval
	if !notify {
		r.mu.Unlock()
		return
	}
	r.lastProgress = now

	ev := ProgressEvent{
		Generation: r.Generation,
		Completed:  r.completed,
		Total:      len(r.slots),
		Final:      final,
	}
	candidates, generations := r.listenersLocked()
	r.mu.Unlock()

	if !final {
		generations = nil
	}
	r.deliver(ev, candidates, generations)
}

// finishLocked computes the baseline and the initial filtered view
func (r *Request) finishLocked() {
	r.maxDiff = MaxValidDiff(r.results)
	view := ApplyFilter(r.Generation, r.results, r.Filter)
	r.view = &view
}

func (r *Request) listenersLocked() ([]func(ProgressEvent), []func(*Request)) {
	return slices.Clone(r.candidateListeners), slices.Clone(r.generationListeners)
}

// deliver queues an update and drains the queue unless another goroutine is
// already draining it. Updates are delivered one at a time in queue order.
func (r *Request) deliver(ev ProgressEvent, candidates []func(ProgressEvent), generations []func(*Request)) {
	r.notifyMu.Lock()

	// Nothing follows the final update, and intermediate counts only grow
	if r.finalQueued || (!ev.Final && ev.Completed <= r.lastCompleted) {
		r.notifyMu.Unlock()
		return
	}
	r.lastCompleted = ev.Completed
	if ev.Final {
		r.finalQueued = true
	}
	r.pending = append(r.pending, delivery{ev: ev, candidates: candidates, generations: generations})

	if r.draining {
		r.notifyMu.Unlock()
		return
	}
	r.draining = true

	for len(r.pending) > 0 {
		d := r.pending[0]
		r.pending = r.pending[1:]
		r.notifyMu.Unlock()

		r.run(d)

		r.notifyMu.Lock()
	}
	r.draining = false
	r.notifyMu.Unlock()
}

func (r *Request) run(d delivery) {
	for _, fn := range d.candidates {
		if r.Canceled() {
			return
		}
		fn(d.ev)
	}
	for _, fn := range d.generations {
		if r.Canceled() {
			return
		}
		fn(r)
	}
}

// applyFilter builds a filtered view of the current results and caches it
func (r *Request) applyFilter(opts FilterOptions) FilteredView {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := ApplyFilter(r.Generation, r.results, opts)
	r.view = &view
	return view
}
