package models

// DefaultEconomyCoefficient is the energy cost of running (ECOR) used when
// the athlete has not calibrated a custom value, in J/kg/m.
const DefaultEconomyCoefficient = 1.04

// UserProfile holds the athlete parameters the power model needs.
// It is read-only input to the tracking core.
type UserProfile struct {
	WeightKg           float64 `json:"weightKg"`
	HeightCm           float64 `json:"heightCm"`
	Age                int     `json:"age"`
	Sex                string  `json:"sex"`
	EconomyCoefficient float64 `json:"economyCoefficient"`
}

// Economy returns the running-economy coefficient to use.
// The custom value is only trusted when explicitly requested and plausible.
func (p UserProfile) Economy(useCustom bool) float64 {
	if useCustom && p.EconomyCoefficient > 0 {
		return p.EconomyCoefficient
	}
	return DefaultEconomyCoefficient
}
