// Package fusion reconciles GPS, foot-pod and fallback sensor inputs into a
// single filtered distance/elevation/speed/pace estimate for the active
// session.
//
// GPS is the default source for distance and the authoritative source for
// route and elevation. A foot-pod distance, when present, overrides the
// GPS-accumulated total. After repeated GPS jumps the engine switches to
// fallback mode and accumulates distance from the accelerometer step
// detector and the step counter instead, with the barometer feeding the
// elevation accumulator.
package fusion

import (
	"math"
	"sync"
	"time"

	"github.com/stridelab/runtracker-go/internal/spatial"
)

const (
	// A position delta above this is a GPS jump and is not accumulated
	gpsJumpThresholdM = 50.0

	// Consecutive jumps before the engine stops trusting GPS distance
	maxConsecutiveGPSErrors = 5

	// Exponential low-pass coefficient for elevation, speed and vertical speed
	lowPassAlpha = 0.1

	// Filtered elevation must move this far from the last accumulated level
	// before the delta counts as gain or loss
	elevationNoiseBandM = 0.5

	// Step detector threshold on acceleration magnitude
	stepAccelThreshold = 12.0 // m/s^2

	// Distance credited per detected step
	strideLengthM = 0.7

	// Barometer smoothing weight on history (heavier than GPS elevation
	// because pressure readings are noisier sample to sample)
	barometerFilterWeight = 0.85

	// Barometric formula constants
	seaLevelPressurePa = 101325.0
	standardTempK      = 288.15
	molarMassAir       = 0.0289644 // kg/mol
	gasConstant        = 8.31446   // J/(mol*K)
	gravityMps2        = 9.81
)

// DeltaReport describes what a single update contributed
type DeltaReport struct {
	DistanceDeltaM  float64
	ElevationDeltaM float64
	Rejected        bool
	FallbackActive  bool
}

// Engine holds the per-session fusion state. All methods are safe for
// concurrent use; the session additionally serializes its own mutations.
type Engine struct {
	mu sync.Mutex

	// GPS
	lastLat, lastLon float64
	hasFix           bool
	lastGPSTime      time.Time
	gpsErrors        int
	fallback         bool

	// Filtered state
	filteredElevation float64
	hasElevation      bool
	lastElevTime      time.Time
	filteredSpeed     float64
	hasSpeed          bool
	filteredVSpeed    float64

	// Accumulators
	gpsDistanceM      float64
	fallbackDistanceM float64
	gainM             float64
	lossM             float64

	// Elevation level the gain/loss accumulator last settled on
	accumElevation float64

	// Fallback inputs
	stepAbove     bool
	lastStepCount int
	hasStepCount  bool
	lastStepTime  time.Time

	// Foot-pod override
	footpodDistanceM float64
	hasFootpod       bool
	footpodPace      int
	hasFootpodPace   bool
}

// NewEngine creates an engine with empty state
func NewEngine() *Engine {
	return &Engine{}
}

// UpdateWithGPS folds one GPS fix into the fused state. Deltas above the
// jump threshold are rejected and counted; five consecutive rejections
// switch the engine into fallback mode until Reset.
func (e *Engine) UpdateWithGPS(lat, lon, elevation, speed float64, t time.Time) DeltaReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := DeltaReport{FallbackActive: e.fallback}

	if e.hasFix {
		delta := spatial.HaversineDistance(e.lastLat, e.lastLon, lat, lon)
		if delta > gpsJumpThresholdM {
			e.gpsErrors++
			if e.gpsErrors >= maxConsecutiveGPSErrors {
				e.fallback = true
			}
			report.Rejected = true
			report.FallbackActive = e.fallback
			return report
		}

		e.gpsErrors = 0
		if !e.fallback {
			e.gpsDistanceM += delta
			report.DistanceDeltaM = delta
		}
	}

	e.lastLat, e.lastLon = lat, lon
	e.hasFix = true

	report.ElevationDeltaM = e.filterElevation(elevation, lowPassAlpha, t)
	e.filterSpeed(speed)
	e.lastGPSTime = t

	report.FallbackActive = e.fallback
	return report
}

// UpdateWithAccelerometer runs the threshold step detector. Active only in
// fallback mode; each rising-edge crossing of the magnitude threshold
// credits one stride of distance.
func (e *Engine) UpdateWithAccelerometer(ax, ay, az float64, t time.Time) DeltaReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := DeltaReport{FallbackActive: e.fallback}
	if !e.fallback {
		return report
	}

	mag := math.Sqrt(ax*ax + ay*ay + az*az)
	if mag >= stepAccelThreshold {
		if !e.stepAbove {
			e.stepAbove = true
			e.fallbackDistanceM += strideLengthM
			report.DistanceDeltaM = strideLengthM
		}
	} else {
		e.stepAbove = false
	}
	return report
}

// UpdateWithBarometer converts pressure to elevation via the barometric
// formula and feeds the same gain/loss accumulator GPS elevation uses.
func (e *Engine) UpdateWithBarometer(pressurePa float64, t time.Time) DeltaReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := DeltaReport{FallbackActive: e.fallback}
	if pressurePa <= 0 {
		report.Rejected = true
		return report
	}

	elevation := pressureToElevation(pressurePa)
	report.ElevationDeltaM = e.filterElevation(elevation, 1-barometerFilterWeight, t)
	return report
}

// UpdateWithStepCounter accumulates distance from step-count deltas using
// the stride model and derives speed from elapsed time. Fallback only.
func (e *Engine) UpdateWithStepCounter(steps int, t time.Time) DeltaReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := DeltaReport{FallbackActive: e.fallback}
	if !e.fallback {
		return report
	}

	if !e.hasStepCount {
		e.lastStepCount = steps
		e.lastStepTime = t
		e.hasStepCount = true
		return report
	}

	delta := steps - e.lastStepCount
	if delta <= 0 {
		e.lastStepCount = steps
		e.lastStepTime = t
		return report
	}

	dist := float64(delta) * strideLengthM
	e.fallbackDistanceM += dist
	report.DistanceDeltaM = dist

	if elapsed := t.Sub(e.lastStepTime).Seconds(); elapsed > 0 {
		e.filterSpeed(dist / elapsed)
	}

	e.lastStepCount = steps
	e.lastStepTime = t
	return report
}

// UpdateWithFootpod records a foot-pod direct distance/pace. The foot-pod
// total, when present, overrides the GPS-accumulated distance.
func (e *Engine) UpdateWithFootpod(distanceM *float64, paceSecKm *int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if distanceM != nil {
		e.footpodDistanceM = *distanceM
		e.hasFootpod = true
	}
	if paceSecKm != nil {
		e.footpodPace = *paceSecKm
		e.hasFootpodPace = true
	}
}

// TotalDistance returns the authoritative cumulative distance in meters
func (e *Engine) TotalDistance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hasFootpod {
		return e.footpodDistanceM
	}
	return e.gpsDistanceM + e.fallbackDistanceM
}

// ElevationGain returns cumulative elevation gain in meters
func (e *Engine) ElevationGain() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gainM
}

// ElevationLoss returns cumulative elevation loss in meters
func (e *Engine) ElevationLoss() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lossM
}

// FilteredSpeed returns the low-pass-filtered speed in m/s
func (e *Engine) FilteredSpeed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filteredSpeed
}

// FilteredElevation returns the low-pass-filtered elevation in meters
func (e *Engine) FilteredElevation() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filteredElevation, e.hasElevation
}

// VerticalSpeed returns the filtered vertical speed in m/s
func (e *Engine) VerticalSpeed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filteredVSpeed
}

// PaceSecPerKm derives pace from the fused state: the foot-pod pace when
// one was delivered, otherwise from filtered speed. Returns 0 when no
// plausible pace exists (standing still).
func (e *Engine) PaceSecPerKm() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hasFootpodPace {
		return e.footpodPace
	}
	if e.filteredSpeed <= 0 {
		return 0
	}
	pace := int(1000.0 / e.filteredSpeed)
	if pace < 1 || pace >= 1200 {
		return 0
	}
	return pace
}

// FallbackActive reports whether GPS distance is currently distrusted
func (e *Engine) FallbackActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fallback
}

// GPSErrorCount returns the current consecutive-jump counter
func (e *Engine) GPSErrorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gpsErrors
}

// Reset clears all state for a new session. Fields are zeroed individually
// so the held mutex is never overwritten.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastLat, e.lastLon = 0, 0
	e.hasFix = false
	e.lastGPSTime = time.Time{}
	e.gpsErrors = 0
	e.fallback = false

	e.filteredElevation = 0
	e.hasElevation = false
	e.lastElevTime = time.Time{}
	e.filteredSpeed = 0
	e.hasSpeed = false
	e.filteredVSpeed = 0

	e.gpsDistanceM = 0
	e.fallbackDistanceM = 0
	e.gainM = 0
	e.lossM = 0
	e.accumElevation = 0

	e.stepAbove = false
	e.lastStepCount = 0
	e.hasStepCount = false
	e.lastStepTime = time.Time{}

	e.footpodDistanceM = 0
	e.hasFootpod = false
	e.footpodPace = 0
	e.hasFootpodPace = false
}

// filterElevation low-passes a new elevation sample and accrues gain/loss
// once the filtered level escapes the noise band around the last accumulated
// level. Gain and loss accrue independently and never net against each
// other. Returns the accrued delta (signed), 0 while inside the band.
// Caller holds e.mu.
func (e *Engine) filterElevation(elevation float64, alpha float64, t time.Time) float64 {
	if !e.hasElevation {
		e.filteredElevation = elevation
		e.accumElevation = elevation
		e.hasElevation = true
		e.lastElevTime = t
		return 0
	}

	prev := e.filteredElevation
	e.filteredElevation = prev*(1-alpha) + elevation*alpha

	if dt := t.Sub(e.lastElevTime).Seconds(); dt > 0 {
		vs := (e.filteredElevation - prev) / dt
		e.filteredVSpeed = e.filteredVSpeed*(1-lowPassAlpha) + vs*lowPassAlpha
	}
	e.lastElevTime = t

	delta := e.filteredElevation - e.accumElevation
	if math.Abs(delta) <= elevationNoiseBandM {
		return 0
	}

	if delta > 0 {
		e.gainM += delta
	} else {
		e.lossM += -delta
	}
	e.accumElevation = e.filteredElevation
	return delta
}

// Caller holds e.mu.
func (e *Engine) filterSpeed(speed float64) {
	if speed < 0 {
		speed = 0
	}
	if !e.hasSpeed {
		e.filteredSpeed = speed
		e.hasSpeed = true
		return
	}
	e.filteredSpeed = e.filteredSpeed*(1-lowPassAlpha) + speed*lowPassAlpha
}

// pressureToElevation applies the barometric formula for an isothermal
// standard atmosphere.
func pressureToElevation(pressurePa float64) float64 {
	return (gasConstant * standardTempK / (molarMassAir * gravityMps2)) *
		math.Log(seaLevelPressurePa/pressurePa)
}
