// Package domain holds the activity log and the controller that mutates it.
package domain

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"example.com/activitylog/internal/observability"
)

var (
	// ErrActivityNotFound is returned when no activity carries the requested ID.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrInvalidInput wraps field values that cannot be turned into an Activity.
	ErrInvalidInput = errors.New("invalid activity input")
	// ErrNotReady is returned for calls made before the initial load succeeded.
	ErrNotReady = errors.New("activity list not ready")
	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = errors.New("activity list already initialized")
)

// State is the lifecycle of the in-memory list.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// Store persists the full activity sequence.
type Store interface {
	Load(ctx context.Context) ([]Activity, error)
	Save(ctx context.Context, items []Activity) error
}

// EventType names a change to the list.
type EventType string

const (
	EventActivityCreated EventType = "activity.created"
	EventActivityUpdated EventType = "activity.updated"
	EventActivityDeleted EventType = "activity.deleted"
)

// Event describes a committed mutation.
type Event struct {
	Type       EventType
	Activity   Activity
	OccurredAt time.Time
	// ListSize is the number of activities after the mutation.
	ListSize int
}

// Publisher fans committed mutations out to other systems.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

const (
	eventQueueSize = 256
	publishTimeout = 10 * time.Second
)

// Option configures a Controller.
type Option func(*Controller)

// WithPublisher sets the publisher notified after each committed mutation.
// Events are delivered in commit order by a background goroutine; call Close
// to flush them.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithIDGenerator overrides how new activity IDs are minted.
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) {
		c.newID = newID
	}
}

// Controller owns the ordered in-memory activity list and keeps the store in
// step with it. Every mutation is written through before it becomes visible.
type Controller struct {
	store     Store
	publisher Publisher
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	state   State
	loadErr error
	ready   chan struct{}
	items   []Activity

	events    chan Event
	published chan struct{}
	closed    bool
}

// NewController constructs a Controller in the uninitialized state.
func NewController(store Store, opts ...Option) *Controller {
	c := &Controller{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
		state: StateUninitialized,
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.publisher != nil {
		c.events = make(chan Event, eventQueueSize)
		c.published = make(chan struct{})
		go c.dispatch()
	}
	return c
}

// Close stops queueing events and waits until the queued ones are published.
func (c *Controller) Close(ctx context.Context) error {
	if c.events == nil {
		return nil
	}
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	c.mu.Unlock()

	select {
	case <-c.published:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Init loads the persisted list once. Calls waiting on the load are released
// whether it succeeds or fails.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	c.state = StateLoading
	c.mu.Unlock()

	items, err := c.store.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(c.ready)

	if err != nil {
		c.state = StateFailed
		c.loadErr = err
		return errors.Wrap(err, "load activities")
	}
	c.items = items
	c.state = StateReady
	observability.SetActivityCount(len(items))
	log.Info().Int("activities", len(items)).Msg("activity list loaded")
	return nil
}

// acquire waits for the initial load and locks c.mu on success.
func (c *Controller) acquire(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateUninitialized:
		return ErrNotReady
	case StateLoading:
		select {
		case <-c.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	if c.state != StateReady {
		loadErr := c.loadErr
		c.mu.Unlock()
		return errors.Wrapf(ErrNotReady, "initial load failed: %v", loadErr)
	}
	return nil
}

// List returns a copy of the activities in insertion order.
func (c *Controller) List(ctx context.Context) ([]Activity, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	return slices.Clone(c.items), nil
}

// Get returns the activity with the given ID.
func (c *Controller) Get(ctx context.Context, id string) (Activity, error) {
	if err := c.acquire(ctx); err != nil {
		return Activity{}, err
	}
	defer c.mu.Unlock()

	activity, ok := lo.Find(c.items, func(a Activity) bool { return a.ID == id })
	if !ok {
		return Activity{}, ErrActivityNotFound
	}
	return activity, nil
}

// Add appends a new activity built from input and persists the list.
func (c *Controller) Add(ctx context.Context, input ActivityInput) (Activity, error) {
	typ, duration, date, err := ParseInput(input)
	if err != nil {
		observability.RecordMutation("add", observability.OutcomeInvalid)
		return Activity{}, err
	}
	if err := c.acquire(ctx); err != nil {
		return Activity{}, err
	}
	defer c.mu.Unlock()

	activity := Activity{
		ID:          c.newID(),
		Type:        typ,
		DurationMin: duration,
		Date:        date,
	}
	next := make([]Activity, 0, len(c.items)+1)
	next = append(next, c.items...)
	next = append(next, activity)

	if err := c.commit(ctx, "add", next); err != nil {
		return Activity{}, err
	}
	c.enqueue(EventActivityCreated, activity)
	return activity, nil
}

// Edit replaces the fields of the activity with the given ID, keeping its
// position and ID, and persists the list.
func (c *Controller) Edit(ctx context.Context, id string, input ActivityInput) (Activity, error) {
	typ, duration, date, err := ParseInput(input)
	if err != nil {
		observability.RecordMutation("edit", observability.OutcomeInvalid)
		return Activity{}, err
	}
	if err := c.acquire(ctx); err != nil {
		return Activity{}, err
	}
	defer c.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(c.items, func(a Activity) bool { return a.ID == id })
	if !ok {
		observability.RecordMutation("edit", observability.OutcomeNotFound)
		return Activity{}, ErrActivityNotFound
	}

	next := slices.Clone(c.items)
	next[idx].Type = typ
	next[idx].DurationMin = duration
	next[idx].Date = date

	if err := c.commit(ctx, "edit", next); err != nil {
		return Activity{}, err
	}
	c.enqueue(EventActivityUpdated, next[idx])
	return next[idx], nil
}

// Delete removes every activity carrying id and persists the list. It returns
// how many entries were removed.
func (c *Controller) Delete(ctx context.Context, id string) (int, error) {
	if err := c.acquire(ctx); err != nil {
		return 0, err
	}
	defer c.mu.Unlock()

	removed, found := lo.Find(c.items, func(a Activity) bool { return a.ID == id })
	if !found {
		observability.RecordMutation("delete", observability.OutcomeNotFound)
		return 0, ErrActivityNotFound
	}
	next := lo.Reject(c.items, func(a Activity, _ int) bool { return a.ID == id })
	count := len(c.items) - len(next)

	if err := c.commit(ctx, "delete", next); err != nil {
		return 0, err
	}
	c.enqueue(EventActivityDeleted, removed)
	return count, nil
}

// commit persists next and swaps it in. c.mu must be held.
func (c *Controller) commit(ctx context.Context, op string, next []Activity) error {
	if err := c.store.Save(ctx, next); err != nil {
		observability.RecordMutation(op, observability.OutcomeError)
		return errors.Wrapf(err, "%s activity", op)
	}
	c.items = next
	observability.RecordMutation(op, observability.OutcomeOK)
	observability.SetActivityCount(len(next))
	return nil
}

// enqueue hands an event to the dispatcher without blocking. c.mu must be held.
func (c *Controller) enqueue(typ EventType, activity Activity) {
	if c.events == nil || c.closed {
		return
	}
	event := Event{
		Type:       typ,
		Activity:   activity,
		OccurredAt: c.now().UTC(),
		ListSize:   len(c.items),
	}
	select {
	case c.events <- event:
	default:
		log.Warn().
			Str("event_type", string(typ)).
			Str("activity_id", activity.ID).
			Msg("event queue full, dropping activity event")
	}
}

func (c *Controller) dispatch() {
	defer close(c.published)
	for event := range c.events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := c.publisher.Publish(ctx, event)
		cancel()
		if err != nil {
			log.Warn().Err(err).
				Str("event_type", string(event.Type)).
				Str("activity_id", event.Activity.ID).
				Msg("failed to publish activity event")
		}
	}
}
