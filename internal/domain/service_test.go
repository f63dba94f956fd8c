package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddAppendsAndPersists(t *testing.T) {
	store := &stubStore{items: []Activity{{ID: "a1", Type: "Run", DurationMin: 30, Date: NewDate(2024, time.March, 1)}}}
	publisher := &stubPublisher{}
	c := newReadyController(t, store, WithPublisher(publisher))

	created, err := c.Add(context.Background(), ActivityInput{Type: "Swim", Duration: "45", Date: "2024-03-05"})
	require.NoError(t, err)
	require.Equal(t, "id-1", created.ID)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "a1", loaded[0].ID)
	require.Equal(t, created, loaded[1])
	require.Equal(t, NewDate(2024, time.March, 5), loaded[1].Date)

	require.NoError(t, c.Close(context.Background()))
	events := publisher.published()
	require.Len(t, events, 1)
	require.Equal(t, EventActivityCreated, events[0].Type)
	require.Equal(t, 2, events[0].ListSize)
}

func TestEditChangesFieldsInPlace(t *testing.T) {
	store := &stubStore{items: []Activity{
		{ID: "a1", Type: "Run", DurationMin: 30, Date: NewDate(2024, time.March, 1)},
		{ID: "a2", Type: "Bike", DurationMin: 60, Date: NewDate(2024, time.March, 2)},
	}}
	c := newReadyController(t, store)

	edited, err := c.Edit(context.Background(), "a1", ActivityInput{Type: "Trail run", Duration: "35", Date: "2024-03-03"})
	require.NoError(t, err)
	require.Equal(t, "a1", edited.ID)

	items, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, Activity{ID: "a1", Type: "Trail run", DurationMin: 35, Date: NewDate(2024, time.March, 3)}, items[0])
	require.Equal(t, "a2", items[1].ID)
	require.Equal(t, items, store.saved())
}

func TestEditUnknownIDLeavesStoreUntouched(t *testing.T) {
	store := &stubStore{items: []Activity{{ID: "a1", Type: "Run"}}}
	c := newReadyController(t, store)

	_, err := c.Edit(context.Background(), "missing", ActivityInput{Type: "x", Duration: "1", Date: "2024-01-01"})
	require.ErrorIs(t, err, ErrActivityNotFound)
	require.Zero(t, store.saveCalls)
}

func TestDeleteRemovesOnlyMatchingIDs(t *testing.T) {
	// Same field values, different identity.
	store := &stubStore{items: []Activity{
		{ID: "a1", Type: "Run", DurationMin: 30, Date: NewDate(2024, time.March, 1)},
		{ID: "a2", Type: "Run", DurationMin: 30, Date: NewDate(2024, time.March, 1)},
		{ID: "a1", Type: "Dup", DurationMin: 10, Date: NewDate(2024, time.March, 1)},
	}}
	publisher := &stubPublisher{}
	c := newReadyController(t, store, WithPublisher(publisher))

	removed, err := c.Delete(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	items, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "a2", items[0].ID)
	require.Equal(t, items, store.saved())

	require.NoError(t, c.Close(context.Background()))
	events := publisher.published()
	require.Equal(t, EventActivityDeleted, events[0].Type)
	require.Equal(t, 1, events[0].ListSize)
}

func TestDeleteUnknownID(t *testing.T) {
	store := &stubStore{}
	c := newReadyController(t, store)

	_, err := c.Delete(context.Background(), "nope")
	require.ErrorIs(t, err, ErrActivityNotFound)
	require.Zero(t, store.saveCalls)
}

func TestFailedSaveKeepsMemoryAndStoreReconciled(t *testing.T) {
	store := &stubStore{items: []Activity{{ID: "a1", Type: "Run", DurationMin: 30}}}
	c := newReadyController(t, store)
	store.saveErr = errors.New("disk full")

	_, err := c.Add(context.Background(), ActivityInput{Type: "Swim", Duration: "10", Date: "2024-01-01"})
	require.ErrorContains(t, err, "disk full")

	_, err = c.Delete(context.Background(), "a1")
	require.ErrorContains(t, err, "disk full")

	items, err := c.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Activity{{ID: "a1", Type: "Run", DurationMin: 30}}, items)
	require.Equal(t, items, store.saved())
}

func TestInvalidInputIsRejectedBeforeTouchingState(t *testing.T) {
	store := &stubStore{}
	c := newReadyController(t, store)

	_, err := c.Add(context.Background(), ActivityInput{Type: "Run", Duration: "forty", Date: "2024-01-01"})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, store.saveCalls)
}

func TestEmptyStoreLoadsEmptyList(t *testing.T) {
	c := newReadyController(t, &stubStore{})

	items, err := c.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestCallsBeforeInitAreRejected(t *testing.T) {
	c := NewController(&stubStore{})
	require.Equal(t, StateUninitialized, c.State())

	_, err := c.Add(context.Background(), ActivityInput{Type: "Run", Duration: "1", Date: "2024-01-01"})
	require.ErrorIs(t, err, ErrNotReady)

	_, err = c.List(context.Background())
	require.ErrorIs(t, err, ErrNotReady)
}

func TestCallsDuringLoadWaitForReady(t *testing.T) {
	store := &stubStore{
		items:   []Activity{{ID: "a1", Type: "Run"}},
		release: make(chan struct{}),
	}
	c := NewController(store, WithIDGenerator(sequentialIDs()))

	initDone := make(chan error, 1)
	go func() { initDone <- c.Init(context.Background()) }()
	require.Eventually(t, func() bool { return c.State() == StateLoading }, time.Second, time.Millisecond)

	added := make(chan error, 1)
	go func() {
		_, err := c.Add(context.Background(), ActivityInput{Type: "Swim", Duration: "5", Date: "2024-01-01"})
		added <- err
	}()

	close(store.release)
	require.NoError(t, <-initDone)
	require.NoError(t, <-added)

	items, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "a1", items[0].ID)
}

func TestWaitingCallHonoursContext(t *testing.T) {
	store := &stubStore{release: make(chan struct{})}
	defer close(store.release)
	c := NewController(store)

	go func() { _ = c.Init(context.Background()) }()
	require.Eventually(t, func() bool { return c.State() == StateLoading }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.List(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFailedLoadRejectsCalls(t *testing.T) {
	c := NewController(&stubStore{loadErr: errors.New("corrupt")})

	err := c.Init(context.Background())
	require.ErrorContains(t, err, "corrupt")
	require.Equal(t, StateFailed, c.State())

	_, err = c.List(context.Background())
	require.ErrorIs(t, err, ErrNotReady)
	require.ErrorContains(t, err, "corrupt")

	require.ErrorIs(t, c.Init(context.Background()), ErrAlreadyInitialized)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	store := &stubStore{}
	c := newReadyController(t, store, WithPublisher(&stubPublisher{err: errors.New("broker down")}))

	_, err := c.Add(context.Background(), ActivityInput{Type: "Run", Duration: "1", Date: "2024-01-01"})
	require.NoError(t, err)
	require.Len(t, store.saved(), 1)
}

func TestSlowPublisherDoesNotHoldTheList(t *testing.T) {
	publisher := &stubPublisher{release: make(chan struct{})}
	c := newReadyController(t, &stubStore{}, WithPublisher(publisher))

	_, err := c.Add(context.Background(), ActivityInput{Type: "Run", Duration: "30", Date: "2024-03-05"})
	require.NoError(t, err)

	start := time.Now()
	items, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Less(t, time.Since(start), 200*time.Millisecond)

	_, err = c.Add(context.Background(), ActivityInput{Type: "Swim", Duration: "20", Date: "2024-03-06"})
	require.NoError(t, err)
	require.Empty(t, publisher.published())

	close(publisher.release)
	require.NoError(t, c.Close(context.Background()))
	require.Len(t, publisher.published(), 2)
}

func TestEventsArePublishedInCommitOrder(t *testing.T) {
	publisher := &stubPublisher{}
	c := newReadyController(t, &stubStore{}, WithPublisher(publisher))
	ctx := context.Background()

	created, err := c.Add(ctx, ActivityInput{Type: "Run", Duration: "30", Date: "2024-03-05"})
	require.NoError(t, err)
	_, err = c.Edit(ctx, created.ID, ActivityInput{Type: "Trail", Duration: "35", Date: "2024-03-05"})
	require.NoError(t, err)
	_, err = c.Delete(ctx, created.ID)
	require.NoError(t, err)

	require.NoError(t, c.Close(ctx))
	events := publisher.published()
	require.Len(t, events, 3)
	require.Equal(t, EventActivityCreated, events[0].Type)
	require.Equal(t, EventActivityUpdated, events[1].Type)
	require.Equal(t, "Trail", events[1].Activity.Type)
	require.Equal(t, EventActivityDeleted, events[2].Type)
	require.Equal(t, 0, events[2].ListSize)

	// Mutations after Close still commit; their events are not queued.
	_, err = c.Add(ctx, ActivityInput{Type: "Yoga", Duration: "15", Date: "2024-03-07"})
	require.NoError(t, err)
	require.Len(t, publisher.published(), 3)
}

func TestCloseHonoursContext(t *testing.T) {
	publisher := &stubPublisher{release: make(chan struct{})}
	defer close(publisher.release)
	c := newReadyController(t, &stubStore{}, WithPublisher(publisher))

	_, err := c.Add(context.Background(), ActivityInput{Type: "Run", Duration: "30", Date: "2024-03-05"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.Close(ctx), context.DeadlineExceeded)
}

func TestCloseWithoutPublisher(t *testing.T) {
	c := newReadyController(t, &stubStore{})
	require.NoError(t, c.Close(context.Background()))
}

func TestGet(t *testing.T) {
	c := newReadyController(t, &stubStore{items: []Activity{{ID: "a1", Type: "Run"}}})

	got, err := c.Get(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, "Run", got.Type)

	_, err = c.Get(context.Background(), "a2")
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func newReadyController(t *testing.T, store *stubStore, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	c := NewController(store, opts...)
	require.NoError(t, c.Init(context.Background()))
	require.Equal(t, StateReady, c.State())
	return c
}

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type stubStore struct {
	mu        sync.Mutex
	items     []Activity
	loadErr   error
	saveErr   error
	saveCalls int
	release   chan struct{}
}

func (s *stubStore) Load(context.Context) ([]Activity, error) {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return slices.Clone(s.items), nil
}

func (s *stubStore) Save(_ context.Context, items []Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.items = slices.Clone(items)
	return nil
}

func (s *stubStore) saved() []Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

type stubPublisher struct {
	mu     sync.Mutex
	err    error
	events []Event
	// release, when set, holds every Publish until it is closed.
	release chan struct{}
}

func (p *stubPublisher) Publish(ctx context.Context, event Event) error {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *stubPublisher) published() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}
