package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stridelab/runtracker-go/internal/decoder"
	"github.com/stridelab/runtracker-go/internal/fusion"
	"github.com/stridelab/runtracker-go/internal/models"
	"github.com/stridelab/runtracker-go/internal/power"
)

// Config holds tracker construction parameters
type Config struct {
	Profile          models.UserProfile
	UseCustomEconomy bool

	// FlushThreshold defaults to DefaultFlushThreshold
	FlushThreshold int

	// TickInterval defaults to 1s, CheckpointInterval to 5s
	TickInterval       time.Duration
	CheckpointInterval time.Duration
}

// Tracker is the activity session state machine. All sensor streams feed a
// single event channel drained by one goroutine; every state mutation
// happens under one mutex, so a duration tick can never interleave with a
// GPS distance update.
type Tracker struct {
	mu sync.Mutex

	cfg       Config
	state     State
	activity  *models.Activity
	pendStart bool

	activities ActivityStore
	readings   ReadingStore
	buffer     *ReadingBuffer

	fusion  *fusion.Engine
	power   *power.Calculator
	decoder *decoder.Decoder

	connector Connector
	events    chan any
	cancel    context.CancelFunc

	lastTick    time.Time
	lastGPSAt   time.Time
	hasGPSAt    bool
	footpodPow  bool // a foot-pod has delivered power; computed power steps aside
	latestHR    *int
	latestPower *int
	latestCad   *int
}

// NewTracker wires a tracker from its collaborators. Pass a NopConnector
// when samples arrive via the ingestion API only.
func NewTracker(cfg Config, activities ActivityStore, readings ReadingStore, connector Connector) *Tracker {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = 5 * time.Second
	}
	if connector == nil {
		connector = NopConnector{}
	}
	return &Tracker{
		cfg:        cfg,
		state:      StateIdle,
		activities: activities,
		readings:   readings,
		buffer:     NewReadingBuffer(readings, cfg.FlushThreshold),
		fusion:     fusion.NewEngine(),
		power:      power.NewCalculator(cfg.Profile),
		decoder:    decoder.New(),
		connector:  connector,
		events:     make(chan any, 256),
	}
}

// Event payloads posted by the Sink methods

type gpsSample struct {
	Lat, Lon, ElevationM, SpeedMps float64
	At                             time.Time
}

type rawPayload struct {
	Source  models.SensorSource
	Payload []byte
	At      time.Time
}

type accelSample struct {
	X, Y, Z float64
	At      time.Time
}

type baroSample struct {
	PressurePa float64
	At         time.Time
}

type stepSample struct {
	Steps int
	At    time.Time
}

// PushGPS posts a location fix. Never blocks the sensor callback.
func (t *Tracker) PushGPS(lat, lon, elevationM, speedMps float64, at time.Time) {
	t.post(gpsSample{Lat: lat, Lon: lon, ElevationM: elevationM, SpeedMps: speedMps, At: at})
}

// PushRawPayload posts a raw BLE characteristic payload for decoding
func (t *Tracker) PushRawPayload(source models.SensorSource, payload []byte, at time.Time) {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	t.post(rawPayload{Source: source, Payload: buf, At: at})
}

// PushAccelerometer posts an accelerometer sample (fallback input)
func (t *Tracker) PushAccelerometer(ax, ay, az float64, at time.Time) {
	t.post(accelSample{X: ax, Y: ay, Z: az, At: at})
}

// PushBarometer posts a pressure sample (fallback elevation input)
func (t *Tracker) PushBarometer(pressurePa float64, at time.Time) {
	t.post(baroSample{PressurePa: pressurePa, At: at})
}

// PushStepCount posts a cumulative step-counter value (fallback input)
func (t *Tracker) PushStepCount(steps int, at time.Time) {
	t.post(stepSample{Steps: steps, At: at})
}

func (t *Tracker) post(e any) {
	select {
	case t.events <- e:
	default:
		log.Printf("Sensor event queue full, dropping %T", e)
	}
}

// Prepare connects sensors and creates a fresh activity record. On success
// the tracker is idle and ready to start; a Start issued while preparing is
// latched and executed automatically once preparation completes.
func (t *Tracker) Prepare(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case StateIdle, StateError, StateCompleted, StateDiscarded:
	default:
		t.mu.Unlock()
		return nil
	}
	t.state = StatePreparing
	t.mu.Unlock()

	// Sensor connection can take seconds; never under the state lock
	if err := t.connector.Connect(ctx, t); err != nil {
		t.fail()
		return fmt.Errorf("sensor connect failed: %w", err)
	}

	activity := &models.Activity{
		ID:        uuid.NewString(),
		Name:      "Run " + time.Now().Format("2006-01-02 15:04"),
		StartTime: time.Now(),
		Status:    models.StatusNotStarted,
	}
	if err := t.activities.Insert(activity); err != nil {
		t.fail()
		return fmt.Errorf("failed to persist new activity: %w", err)
	}

	t.mu.Lock()
	t.activity = activity
	t.fusion.Reset()
	t.decoder.Reset()
	t.buffer.Clear()
	t.latestHR, t.latestPower, t.latestCad = nil, nil, nil
	t.footpodPow = false
	t.hasGPSAt = false
	t.state = StateIdle
	latched := t.pendStart
	t.pendStart = false
	t.mu.Unlock()

	if latched {
		return t.Start()
	}
	return nil
}

func (t *Tracker) fail() {
	t.mu.Lock()
	t.state = StateError
	t.pendStart = false
	t.mu.Unlock()
}

// Start begins tracking. From preparing it latches the request instead of
// dropping it; from any state other than idle/preparing it is a no-op.
func (t *Tracker) Start() error {
	t.mu.Lock()

	switch t.state {
	case StatePreparing:
		t.pendStart = true
		t.mu.Unlock()
		return nil
	case StateIdle:
	default:
		t.mu.Unlock()
		return nil
	}

	if t.activity == nil {
		t.mu.Unlock()
		return fmt.Errorf("no prepared activity; call Prepare first")
	}

	t.activity.Status = models.StatusInProgress
	t.state = StateActive
	t.lastTick = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.run(ctx)

	activity := t.activity
	t.mu.Unlock()

	if err := t.activities.Update(activity); err != nil {
		log.Printf("Failed to persist activity start (will retry on checkpoint): %v", err)
	}
	return nil
}

// Pause suspends duration/metric accumulation. Active only; otherwise no-op.
func (t *Tracker) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActive {
		return nil
	}
	t.state = StatePaused
	t.activity.Status = models.StatusPaused
	return nil
}

// Resume continues a paused session. The last-tick timestamp is reset so
// paused wall time is never counted into the activity duration.
func (t *Tracker) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePaused {
		return nil
	}
	t.state = StateActive
	t.activity.Status = models.StatusInProgress
	t.lastTick = time.Now()
	return nil
}

// End finalizes the session: flushes the buffer, stops timers and streams,
// reloads the full persisted reading set and recomputes final averages from
// it, then persists and returns the completed activity. Calling End with no
// session in flight returns nil, nil.
func (t *Tracker) End() (*models.Activity, error) {
	t.mu.Lock()
	if t.state != StateActive && t.state != StatePaused {
		t.mu.Unlock()
		return nil, nil
	}

	if t.state == StateActive {
		t.advanceDurationLocked(time.Now())
	}
	t.stopLocked()

	activity := t.activity
	now := time.Now()
	activity.EndTime = &now
	activity.Status = models.StatusCompleted
	activity.DistanceM = maxFloat(activity.DistanceM, t.fusion.TotalDistance())
	activity.ElevationGainM = t.fusion.ElevationGain()
	activity.ElevationLossM = t.fusion.ElevationLoss()
	t.activity = nil
	t.state = StateCompleted
	t.mu.Unlock()

	if err := t.buffer.Flush(); err != nil {
		log.Printf("Final buffer flush failed, %d readings not persisted: %v", t.buffer.Len(), err)
	}

	stored, err := t.readings.GetByActivity(activity.ID)
	if err != nil {
		log.Printf("Failed to reload readings for finalization: %v", err)
	} else {
		finalizeAverages(activity, stored)
	}

	if err := t.activities.Update(activity); err != nil {
		log.Printf("Failed to persist finalized activity %s: %v", activity.ID, err)
	}
	return activity, nil
}

// Discard abandons the session and deletes the activity and its readings
// from storage. Irreversible. Active/paused only; otherwise no-op.
func (t *Tracker) Discard() error {
	t.mu.Lock()
	if t.state != StateActive && t.state != StatePaused {
		t.mu.Unlock()
		return nil
	}

	t.stopLocked()
	id := t.activity.ID
	t.activity = nil
	t.buffer.Clear()
	t.state = StateDiscarded
	t.mu.Unlock()

	if err := t.readings.DeleteByActivity(id); err != nil {
		return fmt.Errorf("failed to delete readings: %w", err)
	}
	if err := t.activities.Delete(id); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	return nil
}

// State returns the current lifecycle state
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Live returns a snapshot of the running session's metrics
func (t *Tracker) Live() LiveMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := LiveMetrics{
		State:          t.state,
		DistanceM:      t.fusion.TotalDistance(),
		ElevationGainM: t.fusion.ElevationGain(),
		ElevationLossM: t.fusion.ElevationLoss(),
		SpeedMps:       t.fusion.FilteredSpeed(),
		PaceSecKm:      t.fusion.PaceSecPerKm(),
		HeartRate:      t.latestHR,
		PowerW:         t.latestPower,
		Cadence:        t.latestCad,
		FallbackActive: t.fusion.FallbackActive(),
	}
	if t.activity != nil {
		m.ActivityID = t.activity.ID
		m.DurationSec = t.activity.DurationSec
	}
	return m
}

// stopLocked cancels the run loop and closes the sensor connector. Safe to
// call from every exit path; both halves are idempotent. Caller holds t.mu.
func (t *Tracker) stopLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if err := t.connector.Close(); err != nil {
		log.Printf("Sensor connector close: %v", err)
	}
}

// run drains sensor events and drives the periodic ticks until cancelled
func (t *Tracker) run(ctx context.Context) {
	tick := time.NewTicker(t.cfg.TickInterval)
	defer tick.Stop()
	checkpoint := time.NewTicker(t.cfg.CheckpointInterval)
	defer checkpoint.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-t.events:
			t.handleEvent(e)
		case now := <-tick.C:
			t.tick(now)
		case <-checkpoint.C:
			t.checkpoint()
		}
	}
}

// handleEvent applies one sensor event to the session state. Events that
// arrive while the session is not active (paused, ending) are dropped.
func (t *Tracker) handleEvent(e any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActive || t.activity == nil {
		return
	}

	switch s := e.(type) {
	case gpsSample:
		t.applyGPSLocked(s)
	case rawPayload:
		t.applyRawLocked(s)
	case accelSample:
		t.fusion.UpdateWithAccelerometer(s.X, s.Y, s.Z, s.At)
	case baroSample:
		t.fusion.UpdateWithBarometer(s.PressurePa, s.At)
	case stepSample:
		t.fusion.UpdateWithStepCounter(s.Steps, s.At)
	default:
		log.Printf("Unknown sensor event %T", e)
	}
}

func (t *Tracker) applyGPSLocked(s gpsSample) {
	report := t.fusion.UpdateWithGPS(s.Lat, s.Lon, s.ElevationM, s.SpeedMps, s.At)
	if report.Rejected {
		return
	}

	t.activity.Route = append(t.activity.Route, models.RoutePoint{Latitude: s.Lat, Longitude: s.Lon})

	// Power from the physics model, unless a foot-pod supplies it directly
	if !t.footpodPow && t.hasGPSAt {
		if dt := s.At.Sub(t.lastGPSAt).Seconds(); dt > 0 {
			watts := t.power.CalculatePower(t.fusion.FilteredSpeed(), report.ElevationDeltaM, dt, t.cfg.UseCustomEconomy)
			adjusted := t.power.ApplySensorFusion(watts, t.latestCad, t.latestHR, nil, nil)
			w := int(adjusted)
			if w > 0 {
				t.latestPower = &w
			}
		}
	}
	t.lastGPSAt = s.At
	t.hasGPSAt = true

	lat, lon, elev := s.Lat, s.Lon, s.ElevationM
	dist := t.fusion.TotalDistance()
	r := models.SensorReading{
		ActivityID: t.activity.ID,
		Timestamp:  s.At,
		Latitude:   &lat,
		Longitude:  &lon,
		ElevationM: &elev,
		DistanceM:  &dist,
		PowerW:     t.latestPower,
		Source:     models.SourceGPS,
	}
	if pace := t.fusion.PaceSecPerKm(); pace > 0 {
		r.PaceSecKm = &pace
	}
	t.buffer.Add(r)
}

func (t *Tracker) applyRawLocked(s rawPayload) {
	reading, err := t.decoder.Decode(s.Payload, s.Source, s.At)
	if err != nil {
		log.Printf("Discarding malformed %s payload: %v", s.Source, err)
		return
	}
	if reading == nil || !reading.HasData() {
		return
	}
	reading.ActivityID = t.activity.ID

	switch s.Source {
	case models.SourceHRM:
		t.latestHR = reading.HeartRate
	case models.SourceFootpod:
		t.fusion.UpdateWithFootpod(reading.DistanceM, reading.PaceSecKm)
		if reading.Cadence != nil {
			t.latestCad = reading.Cadence
		}
		if reading.PowerW != nil {
			t.latestPower = reading.PowerW
			t.footpodPow = true
		}
	}

	t.buffer.Add(*reading)
}

// tick advances duration and refreshes the activity's running metrics.
// While paused it only re-anchors the tick timestamp, so paused time never
// lands in the duration.
func (t *Tracker) tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActive || t.activity == nil {
		t.lastTick = now
		return
	}

	t.advanceDurationLocked(now)

	a := t.activity
	// Monotone by construction; the guard protects against a foot-pod
	// override arriving with a smaller total than the GPS accumulator
	if d := t.fusion.TotalDistance(); d > a.DistanceM {
		a.DistanceM = d
	}
	a.ElevationGainM = t.fusion.ElevationGain()
	a.ElevationLossM = t.fusion.ElevationLoss()

	a.AvgHeartRate = weightedAvg(a.AvgHeartRate, t.latestHR)
	a.AvgPowerW = weightedAvg(a.AvgPowerW, t.latestPower)
	a.AvgCadence = weightedAvg(a.AvgCadence, t.latestCad)
	if pace := t.fusion.PaceSecPerKm(); pace > 0 {
		a.AvgPaceSecKm = weightedAvg(a.AvgPaceSecKm, &pace)
	}

	a.MaxHeartRate = runningMax(a.MaxHeartRate, t.latestHR)
	a.MaxPowerW = runningMax(a.MaxPowerW, t.latestPower)
	a.MaxCadence = runningMax(a.MaxCadence, t.latestCad)
}

func (t *Tracker) advanceDurationLocked(now time.Time) {
	if t.lastTick.IsZero() {
		t.lastTick = now
		return
	}
	if dt := now.Sub(t.lastTick).Seconds(); dt > 0 {
		t.activity.DurationSec += dt
	}
	t.lastTick = now
}

// checkpoint persists the running activity best-effort. A failed write is
// logged and retried on the next interval; it never disturbs tracking.
func (t *Tracker) checkpoint() {
	t.mu.Lock()
	if t.state != StateActive || t.activity == nil {
		t.mu.Unlock()
		return
	}
	snapshot := *t.activity
	snapshot.Route = append([]models.RoutePoint(nil), t.activity.Route...)
	t.mu.Unlock()

	go func() {
		if err := t.activities.Update(&snapshot); err != nil {
			log.Printf("Activity checkpoint failed (retrying next interval): %v", err)
		}
	}()
}

// finalizeAverages recomputes averages and maxima from the full persisted
// reading set, overwriting the running estimates.
func finalizeAverages(a *models.Activity, readings []models.SensorReading) {
	var hr, pw, cad, pace []int
	for _, r := range readings {
		if r.HeartRate != nil {
			hr = append(hr, *r.HeartRate)
		}
		if r.PowerW != nil {
			pw = append(pw, *r.PowerW)
		}
		if r.Cadence != nil {
			cad = append(cad, *r.Cadence)
		}
		if r.PaceSecKm != nil {
			pace = append(pace, *r.PaceSecKm)
		}
	}

	a.AvgHeartRate, a.MaxHeartRate = avgAndMax(hr)
	a.AvgPowerW, a.MaxPowerW = avgAndMax(pw)
	a.AvgCadence, a.MaxCadence = avgAndMax(cad)
	a.AvgPaceSecKm, _ = avgAndMax(pace)
	a.Readings = readings
}
