// Package quality validates the GPS track of a completed activity.
package quality

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stridelab/runtracker-go/internal/analysis"
	"github.com/stridelab/runtracker-go/internal/repository"
	"github.com/stridelab/runtracker-go/internal/spatial"
	"github.com/stridelab/runtracker-go/internal/stats"
)

func init() {
	analysis.RegisterAnalyzer("gps_quality", func(db *sql.DB) analysis.Analyzer {
		return &GPSQualityAnalyzer{activities: repository.NewActivityRepository(db)}
	})
}

// jumpThresholdM mirrors the fusion engine's GPS jump gate
const jumpThresholdM = 50.0

// GPSQualityAnalyzer computes CEP (circular error probable) percentiles of
// the recorded route points against their centroid, plus jump statistics
// between consecutive fixes. High CEP values or many jumps indicate a run
// tracked with poor GPS reception.
type GPSQualityAnalyzer struct {
	activities *repository.ActivityRepository
}

// GetName returns the analyzer name
func (a *GPSQualityAnalyzer) GetName() string {
	return "gps_quality"
}

// Analyze runs the quality analysis over one activity's route
func (a *GPSQualityAnalyzer) Analyze(ctx context.Context, activityID string) (*analysis.Result, error) {
	activity, err := a.activities.GetByID(activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	if activity == nil {
		return nil, fmt.Errorf("activity %s not found", activityID)
	}

	route := activity.Route
	if len(route) < 2 {
		return &analysis.Result{
			Name:    "gps_quality",
			Values:  map[string]float64{"points": float64(len(route))},
			Message: "route too short to analyze",
		}, nil
	}

	lats := make([]float64, len(route))
	lons := make([]float64, len(route))
	for i, p := range route {
		lats[i] = p.Latitude
		lons[i] = p.Longitude
	}
	cLat, cLon := spatial.Centroid(lats, lons)

	spread := make([]float64, len(route))
	for i := range route {
		spread[i] = spatial.HaversineDistance(cLat, cLon, lats[i], lons[i])
	}

	var jumps int
	var maxDelta float64
	deltas := make([]float64, 0, len(route)-1)
	for i := 1; i < len(route); i++ {
		d := spatial.HaversineDistance(lats[i-1], lons[i-1], lats[i], lons[i])
		deltas = append(deltas, d)
		if d > jumpThresholdM {
			jumps++
		}
		if d > maxDelta {
			maxDelta = d
		}
	}

	return &analysis.Result{
		Name: "gps_quality",
		Values: map[string]float64{
			"points":         float64(len(route)),
			"cep50_m":        stats.Percentile(spread, 50),
			"cep95_m":        stats.Percentile(spread, 95),
			"jumps":          float64(jumps),
			"max_delta_m":    maxDelta,
			"median_delta_m": stats.Percentile(deltas, 50),
		},
	}, nil
}
