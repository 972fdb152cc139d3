package spatial

import "testing"

func TestHaversineDistance(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineDistance(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100000 || d > 140000 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineDistanceShort(t *testing.T) {
	// ~11 m of latitude at the equator
	d := HaversineDistance(0, 0, 0.0001, 0)
	if d < 10 || d > 12 {
		t.Fatalf("unexpected short distance: %v", d)
	}
}

func TestCentroid(t *testing.T) {
	lat, lon := Centroid([]float64{0, 2}, []float64{10, 12})
	if lat != 1 || lon != 11 {
		t.Fatalf("centroid: %v %v", lat, lon)
	}
}
