// Package power estimates running power from speed, elevation rate and the
// athlete's mass and running economy, with optional adjustment from
// running-dynamics and heart-rate data.
package power

import (
	"math"

	"github.com/stridelab/runtracker-go/internal/models"
)

const (
	gravityMps2 = 9.81

	// Running-dynamics efficiency bands
	minEfficientCadence = 160   // spm
	maxEfficientCadence = 200   // spm
	maxEfficientVertOsc = 12.0  // cm
	maxEfficientContact = 300.0 // ms

	cadencePenalty = 0.05
	vertOscPenalty = 0.04
	contactPenalty = 0.04

	// Heart-rate correction never swings the estimate outside this band
	// around the physics-based baseline
	maxHRCorrection = 0.15

	// Rough FTP estimate in W/kg for a recreational runner, used only to
	// anchor the expected-heart-rate curve
	estimatedFTPPerKg = 3.0
)

// Calculator derives running power for one athlete profile
type Calculator struct {
	profile models.UserProfile
}

// NewCalculator creates a calculator for the given athlete
func NewCalculator(profile models.UserProfile) *Calculator {
	return &Calculator{profile: profile}
}

// CalculatePower returns the physics-based power estimate in watts.
//
// Horizontal power is mass * economy * speed. Vertical power is credited
// only for climbing; descending instead adds a braking penalty scaled by a
// step function of the grade. A negative speed is a caller sign error and
// is normalized; a non-positive time interval cannot be evaluated and
// yields zero.
func (c *Calculator) CalculatePower(speedMps, elevationChangeM, timeIntervalSec float64, useCustomEconomy bool) float64 {
	if timeIntervalSec <= 0 {
		return 0
	}
	speedMps = math.Abs(speedMps)

	mass := c.profile.WeightKg
	horizontal := mass * c.profile.Economy(useCustomEconomy) * speedMps

	var vertical, penalty float64
	switch {
	case elevationChangeM > 0:
		vertical = mass * gravityMps2 * elevationChangeM / timeIntervalSec
	case elevationChangeM < 0 && speedMps > 0:
		grade := math.Abs(elevationChangeM) / (speedMps * timeIntervalSec)
		penalty = horizontal * downhillPenaltyFactor(grade)
	}

	return horizontal + vertical + penalty
}

// downhillPenaltyFactor maps |grade| to the extra braking cost as a
// fraction of horizontal power
func downhillPenaltyFactor(grade float64) float64 {
	switch {
	case grade <= 0.01:
		return 0
	case grade < 0.05:
		return 0.05
	case grade < 0.10:
		return 0.10
	case grade < 0.15:
		return 0.20
	default:
		return 0.30
	}
}

// ApplySensorFusion refines a physics-based power estimate with whatever
// running-dynamics and heart-rate observations are available. Each dynamic
// outside its efficient band applies an independent multiplicative penalty.
// The heart-rate correction nudges the estimate toward consistency with the
// observed effort but is capped at +-15% of the baseline so noisy HR data
// can never run away with the estimate.
func (c *Calculator) ApplySensorFusion(basicPower float64, cadence, heartRate *int, verticalOscillationCm, groundContactMs *float64) float64 {
	if basicPower <= 0 {
		return basicPower
	}

	adjusted := basicPower

	if cadence != nil && (*cadence < minEfficientCadence || *cadence > maxEfficientCadence) {
		adjusted *= 1 - cadencePenalty
	}
	if verticalOscillationCm != nil && *verticalOscillationCm > maxEfficientVertOsc {
		adjusted *= 1 - vertOscPenalty
	}
	if groundContactMs != nil && *groundContactMs > maxEfficientContact {
		adjusted *= 1 - contactPenalty
	}

	if heartRate != nil {
		expected := c.expectedHeartRate(basicPower)
		if expected > 0 {
			// Half of the relative HR disagreement, clamped
			correction := (float64(*heartRate)/expected - 1) * 0.5
			if correction > maxHRCorrection {
				correction = maxHRCorrection
			}
			if correction < -maxHRCorrection {
				correction = -maxHRCorrection
			}
			adjusted *= 1 + correction
		}
	}

	// Hard cap against the physics baseline
	low := basicPower * (1 - maxHRCorrection)
	high := basicPower * (1 + maxHRCorrection)
	if adjusted < low {
		return low
	}
	if adjusted > high {
		return high
	}
	return adjusted
}

// expectedHeartRate models the heart rate this athlete would show at a
// given power: piecewise linear, flatter below 85% of estimated FTP and
// steeper above it.
func (c *Calculator) expectedHeartRate(watts float64) float64 {
	if c.profile.WeightKg <= 0 {
		return 0
	}

	maxHR := 220.0 - float64(c.profile.Age)
	if c.profile.Age <= 0 {
		maxHR = 190
	}
	restHR := 60.0
	ftp := c.profile.WeightKg * estimatedFTPPerKg
	knee := 0.85 * ftp

	intensity := watts / ftp
	var frac float64 // fraction of heart-rate reserve
	if watts <= knee {
		// 0 W -> 30% HRR, knee -> 75% HRR
		frac = 0.30 + 0.45*(intensity/0.85)
	} else {
		// steeper past the knee, saturating at max
		frac = 0.75 + 1.2*(intensity-0.85)
	}
	if frac > 1 {
		frac = 1
	}

	return restHR + frac*(maxHR-restHR)
}
