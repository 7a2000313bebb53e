package batch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/mediascribe/internal/domain"
)

var (
	// ErrRunNotFound is returned for unknown or evicted run IDs.
	ErrRunNotFound = errors.New("run not found")
	// ErrRegistryFull is returned when every tracked run is still active.
	ErrRegistryFull = errors.New("too many active runs")
)

type runEntry struct {
	run    domain.Run
	events *EventBus
}

// Registry tracks runs by ID and enforces idle -> running -> completed.
// Completed runs are evicted oldest first once maxRuns is exceeded.
type Registry struct {
	mu        sync.RWMutex
	runs      map[string]*runEntry
	order     []string
	maxRuns   int
	maxEvents int
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(maxRuns, maxEvents int) *Registry {
	if maxRuns <= 0 {
		maxRuns = 100
	}
	return &Registry{
		runs:      make(map[string]*runEntry),
		maxRuns:   maxRuns,
		maxEvents: maxEvents,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create registers an idle run for total items.
func (r *Registry) Create(req domain.ProcessingRequest, total int) (domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.runs) >= r.maxRuns && !r.evictLocked() {
		return domain.Run{}, ErrRegistryFull
	}

	entry := &runEntry{
		run: domain.Run{
			ID:      uuid.NewString(),
			Status:  domain.RunStatusIdle,
			Request: req,
			Total:   total,
		},
		events: NewEventBus(r.maxEvents),
	}
	r.runs[entry.run.ID] = entry
	r.order = append(r.order, entry.run.ID)
	return entry.run, nil
}

// Start moves an idle run to running.
func (r *Registry) Start(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.transitionLocked(id, domain.RunStatusRunning)
	if err != nil {
		return err
	}
	entry.run.StartedAt = r.now()
	entry.events.Publish(Event{RunID: id, Type: EventTypeStatus, Status: entry.run.Status})
	return nil
}

// Progress records one attempted item.
func (r *Registry) Progress(id string, p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.runs[id]
	if !ok || entry.run.Status != domain.RunStatusRunning {
		return
	}
	if p.Completed > entry.run.Completed {
		entry.run.Completed = p.Completed
		entry.run.Progress = p.Fraction
	}
	entry.events.Publish(Event{
		RunID:     id,
		Type:      EventTypeProgress,
		Source:    p.Source,
		Completed: p.Completed,
		Total:     p.Total,
		Progress:  p.Fraction,
	})
}

// Complete stores the outcome and exports and moves the run to completed.
func (r *Registry) Complete(id string, outcome Outcome, exports domain.ExportPaths) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.transitionLocked(id, domain.RunStatusCompleted)
	if err != nil {
		return err
	}
	entry.run.Results = outcome.Results
	entry.run.Notices = outcome.Notices
	entry.run.Exports = exports
	entry.run.FinishedAt = r.now()

	for i := range outcome.Notices {
		entry.events.Publish(Event{RunID: id, Type: EventTypeNotice, Notice: &outcome.Notices[i]})
	}
	for i := range outcome.Results {
		entry.events.Publish(Event{RunID: id, Type: EventTypeResult, Result: &outcome.Results[i]})
	}
	entry.events.Publish(Event{RunID: id, Type: EventTypeStatus, Status: entry.run.Status})
	return nil
}

// Get returns a snapshot of the run.
func (r *Registry) Get(id string) (domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.runs[id]
	if !ok {
		return domain.Run{}, ErrRunNotFound
	}
	run := entry.run
	run.Results = append([]domain.ProcessingResult(nil), entry.run.Results...)
	run.Notices = append([]domain.Notice(nil), entry.run.Notices...)
	return run, nil
}

// Events returns events of the run with sequence greater than since.
func (r *Registry) Events(id string, since int64) ([]Event, error) {
	r.mu.RLock()
	entry, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	return entry.events.Since(since), nil
}

func (r *Registry) transitionLocked(id string, to domain.RunStatus) (*runEntry, error) {
	entry, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	if !isValidTransition(entry.run.Status, to) {
		return nil, fmt.Errorf("invalid transition: %s -> %s", entry.run.Status, to)
	}
	entry.run.Status = to
	return entry, nil
}

// evictLocked drops the oldest completed run. It reports false when every
// run is still active.
func (r *Registry) evictLocked() bool {
	for i, id := range r.order {
		if r.runs[id].run.Status != domain.RunStatusCompleted {
			continue
		}
		delete(r.runs, id)
		r.order = append(r.order[:i:i], r.order[i+1:]...)
		return true
	}
	return false
}

// isValidTransition enforces the run state machine edges.
func isValidTransition(from, to domain.RunStatus) bool {
	switch from {
	case domain.RunStatusIdle:
		return to == domain.RunStatusRunning
	case domain.RunStatusRunning:
		return to == domain.RunStatusCompleted
	default:
		return false
	}
}
