package decoder

import (
	"encoding/binary"
	"time"

	"github.com/stridelab/runtracker-go/internal/models"
)

// Plausibility gates for vendor foot-pod values. Anything outside these
// ranges is treated as a misread, not an error: the field stays unset.
const (
	minPlausiblePowerW   = 50
	maxPlausiblePowerW   = 1500
	minPlausibleCadence  = 60
	maxPlausibleCadence  = 240
	maxPlausibleDistance = 100000.0 // meters, per session

	minPlausiblePaceSecKm = 1
	maxPlausiblePaceSecKm = 1200
)

// footpodState carries the inter-payload context the chain needs:
// distance must increase monotonically, and pace is derived from the
// distance delta against the previous payload's timestamp.
type footpodState struct {
	lastDistanceM float64
	lastTime      time.Time
	hasDistance   bool
}

// decodeFootpod runs the strategy chain over a vendor payload. Power,
// cadence and distance are independently optional; each field takes the
// first strategy that yields an in-range value. The fixed-offset layout is
// tried first because it matches the most common firmware; the byte-pair
// scan is the fallback for everything else.
//
// The offsets are reverse-engineered and not guaranteed across firmware
// versions; the plausibility gates are what actually keep bad values out.
func (d *Decoder) decodeFootpod(payload []byte, at time.Time) *models.SensorReading {
	r := &models.SensorReading{
		Timestamp: at,
		Source:    models.SourceFootpod,
	}

	if p, ok := powerFromFixedLayout(payload); ok {
		r.PowerW = &p
	} else if p, ok := scanPower(payload); ok {
		r.PowerW = &p
	}

	if c, ok := cadenceFromFixedLayout(payload); ok {
		r.Cadence = &c
	} else if c, ok := scanCadence(payload); ok {
		r.Cadence = &c
	}

	if dist, ok := distanceFromFixedLayout(payload); ok && d.acceptDistance(dist) {
		r.DistanceM = &dist
	} else if dist, ok := scanDistance(payload, d.lastDistanceFloor()); ok && d.acceptDistance(dist) {
		r.DistanceM = &dist
	}

	if r.DistanceM != nil {
		if pace, ok := d.derivePace(*r.DistanceM, at); ok {
			r.PaceSecKm = &pace
		}
		d.footpod.lastDistanceM = *r.DistanceM
		d.footpod.lastTime = at
		d.footpod.hasDistance = true
	}

	if !r.HasData() {
		return nil
	}
	return r
}

func (d *Decoder) lastDistanceFloor() float64 {
	if !d.footpod.hasDistance {
		return 0
	}
	return d.footpod.lastDistanceM
}

func (d *Decoder) acceptDistance(distM float64) bool {
	if distM < 0 || distM >= maxPlausibleDistance {
		return false
	}
	// Session distance is monotone; anything below the last seen value is a
	// counter reset or a misread and gets dropped.
	if d.footpod.hasDistance && distM < d.footpod.lastDistanceM {
		return false
	}
	return true
}

// derivePace computes pace from the distance delta since the previous
// payload. Results outside [1, 1200) sec/km are implausible (standing still
// or a distance glitch) and leave the field unset.
func (d *Decoder) derivePace(distM float64, at time.Time) (int, bool) {
	if !d.footpod.hasDistance {
		return 0, false
	}
	deltaKm := (distM - d.footpod.lastDistanceM) / 1000.0
	elapsed := at.Sub(d.footpod.lastTime).Seconds()
	if deltaKm <= 0 || elapsed <= 0 {
		return 0, false
	}
	pace := int(elapsed / deltaKm)
	if pace < minPlausiblePaceSecKm || pace >= maxPlausiblePaceSecKm {
		return 0, false
	}
	return pace, true
}

// Fixed-offset layout observed on common firmware: flags byte, power as
// uint16 LE at bytes 1-2, cadence at byte 3, distance in decimeters as
// uint32 LE at bytes 4-7.

func powerFromFixedLayout(payload []byte) (int, bool) {
	if len(payload) < 3 {
		return 0, false
	}
	p := int(binary.LittleEndian.Uint16(payload[1:3]))
	if p < minPlausiblePowerW || p > maxPlausiblePowerW {
		return 0, false
	}
	return p, true
}

func cadenceFromFixedLayout(payload []byte) (int, bool) {
	if len(payload) < 4 {
		return 0, false
	}
	c := int(payload[3])
	if c < minPlausibleCadence || c > maxPlausibleCadence {
		return 0, false
	}
	return c, true
}

func distanceFromFixedLayout(payload []byte) (float64, bool) {
	if len(payload) < 8 {
		return 0, false
	}
	dm := binary.LittleEndian.Uint32(payload[4:8])
	dist := float64(dm) / 10.0
	if dist <= 0 || dist >= maxPlausibleDistance {
		return 0, false
	}
	return dist, true
}

// Scan strategies: walk consecutive byte pairs (or single bytes for
// cadence) and accept the first value inside the physical range.

func scanPower(payload []byte) (int, bool) {
	for i := 0; i+1 < len(payload); i++ {
		p := int(binary.LittleEndian.Uint16(payload[i : i+2]))
		if p >= minPlausiblePowerW && p <= maxPlausiblePowerW {
			return p, true
		}
	}
	return 0, false
}

func scanCadence(payload []byte) (int, bool) {
	for _, b := range payload {
		c := int(b)
		if c >= minPlausibleCadence && c <= maxPlausibleCadence {
			return c, true
		}
	}
	return 0, false
}

func scanDistance(payload []byte, floorM float64) (float64, bool) {
	for i := 0; i+1 < len(payload); i++ {
		dist := float64(binary.LittleEndian.Uint16(payload[i:i+2])) / 10.0
		if dist > floorM && dist < maxPlausibleDistance {
			return dist, true
		}
	}
	return 0, false
}
