package fusion

import (
	"math"
	"testing"
	"time"
)

func gpsAt(e *Engine, lat, lon, elev, speed float64, t time.Time) DeltaReport {
	return e.UpdateWithGPS(lat, lon, elev, speed, t)
}

func TestGPSDistanceAccumulation(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	gpsAt(e, 0, 0, 10, 3, base)
	// ~11 m north
	r := gpsAt(e, 0.0001, 0, 10, 3, base.Add(3*time.Second))
	if r.Rejected {
		t.Fatal("small delta rejected")
	}
	d := e.TotalDistance()
	if d < 10 || d > 12 {
		t.Fatalf("distance: %v", d)
	}
}

func TestGPSJumpRejected(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	gpsAt(e, 0, 0, 10, 3, base)
	// ~1.1 km jump
	r := gpsAt(e, 0.01, 0, 10, 3, base.Add(time.Second))
	if !r.Rejected {
		t.Fatal("jump not rejected")
	}
	if e.TotalDistance() != 0 {
		t.Fatalf("jump delta accumulated: %v", e.TotalDistance())
	}
	if e.GPSErrorCount() != 1 {
		t.Fatalf("error count: %d", e.GPSErrorCount())
	}
}

func TestFallbackAfterFiveConsecutiveJumps(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	gpsAt(e, 0, 0, 10, 3, base)
	for i := 0; i < 5; i++ {
		gpsAt(e, 0.01, 0, 10, 3, base.Add(time.Duration(i+1)*time.Second))
	}
	if !e.FallbackActive() {
		t.Fatal("fallback not active after 5 jumps")
	}

	// A good fix must not clear fallback; only Reset does
	gpsAt(e, 0.000001, 0, 10, 3, base.Add(10*time.Second))
	if !e.FallbackActive() {
		t.Fatal("fallback cleared by good fix")
	}

	e.Reset()
	if e.FallbackActive() {
		t.Fatal("fallback survived reset")
	}
}

func TestGoodFixResetsErrorCounter(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	gpsAt(e, 0, 0, 10, 3, base)
	gpsAt(e, 0.01, 0, 10, 3, base.Add(time.Second)) // jump
	gpsAt(e, 0.0001, 0, 10, 3, base.Add(2*time.Second))
	if e.GPSErrorCount() != 0 {
		t.Fatalf("error count not reset: %d", e.GPSErrorCount())
	}
	if e.FallbackActive() {
		t.Fatal("fallback active after non-consecutive jumps")
	}
}

func TestFallbackDisablesGPSDistance(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	gpsAt(e, 0, 0, 10, 3, base)
	for i := 0; i < 5; i++ {
		gpsAt(e, 0.01, 0, 10, 3, base.Add(time.Duration(i+1)*time.Second))
	}
	before := e.TotalDistance()
	gpsAt(e, 0.0001, 0, 10, 3, base.Add(10*time.Second))
	if e.TotalDistance() != before {
		t.Fatalf("GPS distance accumulated in fallback: %v -> %v", before, e.TotalDistance())
	}
}

func TestElevationNoiseBandIgnored(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	gpsAt(e, 0, 0, 100, 3, base)
	for i := 1; i <= 20; i++ {
		// raw wobble of +-0.3 m never moves the filtered level past the band
		elev := 100.0 + 0.3*math.Pow(-1, float64(i))
		gpsAt(e, 0, 0, elev, 3, base.Add(time.Duration(i)*time.Second))
	}
	if e.ElevationGain() != 0 || e.ElevationLoss() != 0 {
		t.Fatalf("noise accumulated: gain=%v loss=%v", e.ElevationGain(), e.ElevationLoss())
	}
}

func TestElevationGainAndLossIndependent(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	gpsAt(e, 0, 0, 100, 3, base)
	// climb: feed 120 m until the filter converges
	for i := 1; i <= 100; i++ {
		gpsAt(e, 0, 0, 120, 3, base.Add(time.Duration(i)*time.Second))
	}
	gain := e.ElevationGain()
	if gain < 15 {
		t.Fatalf("gain too small after climb: %v", gain)
	}
	if e.ElevationLoss() != 0 {
		t.Fatalf("loss accrued during climb: %v", e.ElevationLoss())
	}

	// descend back: loss accrues, gain must not shrink
	for i := 101; i <= 200; i++ {
		gpsAt(e, 0, 0, 100, 3, base.Add(time.Duration(i)*time.Second))
	}
	if e.ElevationGain() != gain {
		t.Fatalf("gain netted against loss: %v -> %v", gain, e.ElevationGain())
	}
	if e.ElevationLoss() < 15 {
		t.Fatalf("loss too small after descent: %v", e.ElevationLoss())
	}
}

func TestAccelerometerOnlyInFallback(t *testing.T) {
	e := NewEngine()
	now := time.Now()

	r := e.UpdateWithAccelerometer(0, 0, 15, now)
	if r.DistanceDeltaM != 0 {
		t.Fatal("step credited outside fallback mode")
	}

	forceFallback(e, now)
	before := e.TotalDistance()

	// rising edge: one step
	e.UpdateWithAccelerometer(0, 0, 15, now)
	// still above threshold: no second step
	e.UpdateWithAccelerometer(0, 0, 16, now.Add(100*time.Millisecond))
	// drop below, then cross again: second step
	e.UpdateWithAccelerometer(0, 0, 5, now.Add(200*time.Millisecond))
	e.UpdateWithAccelerometer(0, 0, 14, now.Add(300*time.Millisecond))

	got := e.TotalDistance() - before
	if math.Abs(got-2*0.7) > 1e-9 {
		t.Fatalf("expected 2 strides (1.4 m), got %v", got)
	}
}

func TestStepCounterFallbackDistance(t *testing.T) {
	e := NewEngine()
	now := time.Now()

	if r := e.UpdateWithStepCounter(100, now); r.DistanceDeltaM != 0 {
		t.Fatal("step counter active outside fallback")
	}

	forceFallback(e, now)
	e.UpdateWithStepCounter(100, now)
	r := e.UpdateWithStepCounter(110, now.Add(7*time.Second))
	if math.Abs(r.DistanceDeltaM-7.0) > 1e-9 {
		t.Fatalf("expected 10 steps * 0.7 m, got %v", r.DistanceDeltaM)
	}
	if e.FilteredSpeed() <= 0 {
		t.Fatalf("speed not derived from steps: %v", e.FilteredSpeed())
	}
}

func TestBarometerElevation(t *testing.T) {
	e := NewEngine()
	now := time.Now()

	if h := pressureToElevation(seaLevelPressurePa); math.Abs(h) > 0.01 {
		t.Fatalf("sea level pressure should map to 0 m, got %v", h)
	}
	// ~900 hPa is roughly 900-1000 m in a standard atmosphere
	h := pressureToElevation(90000)
	if h < 800 || h > 1200 {
		t.Fatalf("implausible barometric elevation: %v", h)
	}

	if r := e.UpdateWithBarometer(-5, now); !r.Rejected {
		t.Fatal("non-positive pressure accepted")
	}
}

func TestBarometerFeedsGainAccumulator(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	e.UpdateWithBarometer(101325, base)
	// drop pressure -> climb; weight 0.85 converges slower than GPS alpha
	for i := 1; i <= 300; i++ {
		e.UpdateWithBarometer(100000, base.Add(time.Duration(i)*time.Second))
	}
	if e.ElevationGain() < 50 {
		t.Fatalf("barometric climb not accumulated: %v", e.ElevationGain())
	}
}

func TestFootpodDistanceOverridesGPS(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	gpsAt(e, 0, 0, 10, 3, base)
	gpsAt(e, 0.0001, 0, 10, 3, base.Add(3*time.Second))

	dist := 2500.0
	e.UpdateWithFootpod(&dist, nil)
	if e.TotalDistance() != 2500 {
		t.Fatalf("foot-pod distance did not override: %v", e.TotalDistance())
	}

	pace := 300
	e.UpdateWithFootpod(nil, &pace)
	if e.PaceSecPerKm() != 300 {
		t.Fatalf("foot-pod pace did not override: %v", e.PaceSecPerKm())
	}
}

func TestPaceFromFilteredSpeed(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	// constant 4 m/s -> 250 sec/km
	for i := 0; i <= 60; i++ {
		gpsAt(e, 0, 0, 10, 4, base.Add(time.Duration(i)*time.Second))
	}
	pace := e.PaceSecPerKm()
	if pace < 245 || pace > 255 {
		t.Fatalf("pace: %d", pace)
	}
}

func TestResetClearsState(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	gpsAt(e, 0, 0, 100, 3, base)
	gpsAt(e, 0.0001, 0, 120, 3, base.Add(3*time.Second))
	dist := 999.0
	e.UpdateWithFootpod(&dist, nil)

	e.Reset()
	if e.TotalDistance() != 0 || e.ElevationGain() != 0 || e.ElevationLoss() != 0 ||
		e.FilteredSpeed() != 0 || e.GPSErrorCount() != 0 {
		t.Fatal("reset left state behind")
	}
}

func TestResetLeavesEngineUsable(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	gpsAt(e, 0, 0, 100, 3, base)
	e.Reset()
	// Reset must not corrupt the engine's lock; every path below
	// re-acquires it
	e.Reset()
	gpsAt(e, 0, 0, 10, 3, base.Add(time.Second))
	r := gpsAt(e, 0.0001, 0, 10, 3, base.Add(4*time.Second))
	if r.Rejected {
		t.Fatal("fresh fix rejected after reset")
	}
	if d := e.TotalDistance(); d < 10 || d > 12 {
		t.Fatalf("distance after reset: %v", d)
	}
}

// forceFallback drives the engine into fallback mode with five jumps
func forceFallback(e *Engine, base time.Time) {
	e.UpdateWithGPS(0, 0, 10, 3, base)
	for i := 0; i < 5; i++ {
		e.UpdateWithGPS(0.01, 0, 10, 3, base.Add(time.Duration(i+1)*time.Second))
	}
}
