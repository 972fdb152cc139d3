package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stridelab/runtracker-go/internal/models"
)

type fakeActivityStore struct {
	mu       sync.Mutex
	inserts  int
	updates  int
	deleted  []string
	latest   *models.Activity
	failNext bool
}

func (s *fakeActivityStore) Insert(a *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errors.New("insert failed")
	}
	s.inserts++
	cp := *a
	s.latest = &cp
	return nil
}

func (s *fakeActivityStore) Update(a *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	cp := *a
	s.latest = &cp
	return nil
}

func (s *fakeActivityStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeActivityStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// quietConfig keeps the real tickers out of the way so tests can drive
// tick() with fabricated times.
func quietConfig() Config {
	return Config{
		Profile:            models.UserProfile{WeightKg: 70, Age: 35},
		TickInterval:       time.Hour,
		CheckpointInterval: time.Hour,
	}
}

func newTestTracker(t *testing.T) (*Tracker, *fakeActivityStore, *fakeReadingStore) {
	t.Helper()
	activities := &fakeActivityStore{}
	readings := &fakeReadingStore{}
	tr := NewTracker(quietConfig(), activities, readings, nil)
	return tr, activities, readings
}

func TestSessionRoundTrip(t *testing.T) {
	tr, activities, readings := newTestTracker(t)

	if err := tr.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if activities.inserts != 1 {
		t.Fatalf("activity not persisted at prepare: %d inserts", activities.inserts)
	}
	if tr.State() != StateIdle {
		t.Fatalf("state after prepare: %s", tr.State())
	}

	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if tr.State() != StateActive {
		t.Fatalf("state after start: %s", tr.State())
	}

	// Feed heart-rate payloads and GPS fixes directly through the event path
	base := time.Now()
	for i := 0; i < 5; i++ {
		tr.handleEvent(rawPayload{
			Source:  models.SourceHRM,
			Payload: []byte{0x00, byte(140 + i*10)},
			At:      base.Add(time.Duration(i) * time.Second),
		})
	}
	tr.handleEvent(gpsSample{Lat: 0, Lon: 0, ElevationM: 50, SpeedMps: 3, At: base})
	tr.handleEvent(gpsSample{Lat: 0.0001, Lon: 0, ElevationM: 50, SpeedMps: 3, At: base.Add(3 * time.Second)})

	// Three seconds of fabricated ticks
	for i := 1; i <= 3; i++ {
		tr.tick(base.Add(time.Duration(i) * time.Second))
	}

	activity, err := tr.End()
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if activity == nil {
		t.Fatal("end returned no activity")
	}
	if activity.Status != models.StatusCompleted {
		t.Fatalf("status: %s", activity.Status)
	}
	if activity.EndTime == nil {
		t.Fatal("end time not set")
	}
	if activity.DurationSec < 3 {
		t.Fatalf("duration: %v", activity.DurationSec)
	}
	if activity.DistanceM < 10 {
		t.Fatalf("distance: %v", activity.DistanceM)
	}

	// Final averages come from exactly the persisted reading set
	stored, _ := readings.GetByActivity(activity.ID)
	if len(stored) == 0 {
		t.Fatal("no readings persisted at end")
	}
	var sum, n int
	for _, r := range stored {
		if r.HeartRate != nil {
			sum += *r.HeartRate
			n++
		}
	}
	if n == 0 || activity.AvgHeartRate == nil {
		t.Fatal("no heart-rate samples finalized")
	}
	if want := sum / n; *activity.AvgHeartRate != want {
		t.Fatalf("final avg HR %d, want %d", *activity.AvgHeartRate, want)
	}
	if activity.MaxHeartRate == nil || *activity.MaxHeartRate != 180 {
		t.Fatalf("max HR: %+v", activity.MaxHeartRate)
	}
}

func TestEndWithoutSessionIsNoOp(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	activity, err := tr.End()
	if err != nil || activity != nil {
		t.Fatalf("expected no-op, got %+v, %v", activity, err)
	}
}

func TestInvalidTransitionsAreNoOps(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	if err := tr.Pause(); err != nil {
		t.Fatalf("pause from idle: %v", err)
	}
	if tr.State() != StateIdle {
		t.Fatalf("pause changed state: %s", tr.State())
	}
	if err := tr.Resume(); err != nil {
		t.Fatalf("resume from idle: %v", err)
	}
	if err := tr.Discard(); err != nil {
		t.Fatalf("discard from idle: %v", err)
	}
	if tr.State() != StateIdle {
		t.Fatalf("state: %s", tr.State())
	}
}

func TestPauseResumeDoesNotDoubleCountDuration(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	if err := tr.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	base := time.Now()
	tr.tick(base.Add(time.Second))
	tr.tick(base.Add(2 * time.Second))

	tr.mu.Lock()
	before := tr.activity.DurationSec
	tr.mu.Unlock()

	if err := tr.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	// Ticks while paused must not advance the duration
	tr.tick(base.Add(10 * time.Second))
	tr.tick(base.Add(20 * time.Second))

	if err := tr.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}

	tr.mu.Lock()
	after := tr.activity.DurationSec
	tr.mu.Unlock()
	if after != before {
		t.Fatalf("paused time counted: %v -> %v", before, after)
	}
}

func TestEventsDroppedWhilePaused(t *testing.T) {
	tr, _, readings := newTestTracker(t)

	if err := tr.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tr.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}

	tr.handleEvent(rawPayload{Source: models.SourceHRM, Payload: []byte{0x00, 0x96}, At: time.Now()})
	if tr.buffer.Len() != 0 || len(readings.stored) != 0 {
		t.Fatal("reading buffered while paused")
	}
}

func TestDiscardDeletesActivityAndReadings(t *testing.T) {
	tr, activities, readings := newTestTracker(t)

	if err := tr.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	tr.handleEvent(rawPayload{Source: models.SourceHRM, Payload: []byte{0x00, 0x96}, At: time.Now()})
	if err := tr.buffer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	tr.mu.Lock()
	id := tr.activity.ID
	tr.mu.Unlock()

	if persisted, _ := readings.GetByActivity(id); len(persisted) != 1 {
		t.Fatalf("expected 1 persisted reading before discard, got %d", len(persisted))
	}

	if err := tr.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if tr.State() != StateDiscarded {
		t.Fatalf("state: %s", tr.State())
	}
	if len(activities.deleted) != 1 || activities.deleted[0] != id {
		t.Fatalf("activity not deleted: %+v", activities.deleted)
	}
	if persisted, _ := readings.GetByActivity(id); len(persisted) != 0 {
		t.Fatalf("readings not deleted on discard: %d left", len(persisted))
	}
	if tr.buffer.Len() != 0 {
		t.Fatal("buffer not cleared on discard")
	}
}

type blockingConnector struct {
	release chan struct{}
	closed  int
	mu      sync.Mutex
}

func (c *blockingConnector) Connect(ctx context.Context, sink Sink) error {
	<-c.release
	return nil
}

func (c *blockingConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func TestStartDuringPrepareIsLatched(t *testing.T) {
	activities := &fakeActivityStore{}
	readings := &fakeReadingStore{}
	conn := &blockingConnector{release: make(chan struct{})}
	tr := NewTracker(quietConfig(), activities, readings, conn)

	done := make(chan error, 1)
	go func() { done <- tr.Prepare(context.Background()) }()

	// Wait until prepare has entered the connecting phase
	for tr.State() != StatePreparing {
		time.Sleep(time.Millisecond)
	}

	// Start while preparing must latch, not drop
	if err := tr.Start(); err != nil {
		t.Fatalf("latched start: %v", err)
	}
	if tr.State() != StatePreparing {
		t.Fatalf("start executed before prepare finished: %s", tr.State())
	}

	close(conn.release)
	if err := <-done; err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if tr.State() != StateActive {
		t.Fatalf("latched start not executed: %s", tr.State())
	}
	if _, err := tr.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
}

func TestPrepareFailureEntersErrorState(t *testing.T) {
	activities := &fakeActivityStore{failNext: true}
	readings := &fakeReadingStore{}
	tr := NewTracker(quietConfig(), activities, readings, nil)

	if err := tr.Prepare(context.Background()); err == nil {
		t.Fatal("expected prepare error")
	}
	if tr.State() != StateError {
		t.Fatalf("state: %s", tr.State())
	}

	// Error state is recoverable through prepare
	if err := tr.Prepare(context.Background()); err != nil {
		t.Fatalf("re-prepare: %v", err)
	}
	if tr.State() != StateIdle {
		t.Fatalf("state after recovery: %s", tr.State())
	}
}

func TestCheckpointPersistsRunningActivity(t *testing.T) {
	tr, activities, _ := newTestTracker(t)

	if err := tr.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	before := activities.updateCount()

	tr.checkpoint()

	deadline := time.Now().Add(time.Second)
	for activities.updateCount() == before {
		if time.Now().After(deadline) {
			t.Fatal("checkpoint never wrote")
		}
		time.Sleep(time.Millisecond)
	}
}
