package config

import (
	"os"
	"strconv"

	"github.com/stridelab/runtracker-go/internal/models"
)

// Config holds application configuration
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string

	// BLE sensor wiring; when disabled all samples arrive via the API
	BLEEnabled  bool
	FootpodUUID string

	// Athlete defaults used until the client pushes a profile
	Profile          models.UserProfile
	UseCustomEconomy bool
}

// Load reads configuration from the environment with sane defaults
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/activities.db"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "your-secret-key-change-in-production"
	}

	return &Config{
		Port:        port,
		DBPath:      dbPath,
		JWTSecret:   jwtSecret,
		BLEEnabled:  os.Getenv("BLE_ENABLED") == "1",
		FootpodUUID: os.Getenv("FOOTPOD_CHAR_UUID"),
		Profile: models.UserProfile{
			WeightKg:           envFloat("ATHLETE_WEIGHT_KG", 70),
			HeightCm:           envFloat("ATHLETE_HEIGHT_CM", 175),
			Age:                envInt("ATHLETE_AGE", 35),
			Sex:                os.Getenv("ATHLETE_SEX"),
			EconomyCoefficient: envFloat("ATHLETE_ECONOMY", 0),
		},
		UseCustomEconomy: os.Getenv("ATHLETE_ECONOMY") != "",
	}
}

func envFloat(key string, fallback float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}
