package main

import (
	"log"

	"github.com/stridelab/runtracker-go/internal/api"
	"github.com/stridelab/runtracker-go/internal/ble"
	"github.com/stridelab/runtracker-go/internal/config"
	"github.com/stridelab/runtracker-go/internal/database"
	"github.com/stridelab/runtracker-go/internal/handler"
	"github.com/stridelab/runtracker-go/internal/repository"
	"github.com/stridelab/runtracker-go/internal/session"

	// Import analyzer packages to register them
	_ "github.com/stridelab/runtracker-go/internal/analysis/quality"
)

func main() {
	cfg := config.Load()

	dbConfig := database.Config{
		Path: cfg.DBPath,
	}
	if err := database.Init(dbConfig); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close()

	db := database.GetDB()
	activities := repository.NewActivityRepository(db)
	readings := repository.NewReadingRepository(db)

	var connector session.Connector = session.NopConnector{}
	if cfg.BLEEnabled {
		connector = ble.NewConnector(cfg.FootpodUUID)
	}

	tracker := session.NewTracker(session.Config{
		Profile:          cfg.Profile,
		UseCustomEconomy: cfg.UseCustomEconomy,
	}, activities, readings, connector)

	router := api.SetupRouter(cfg,
		handler.NewSessionHandler(tracker),
		handler.NewActivityHandler(db),
		handler.NewAuthHandler(cfg.JWTSecret),
	)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
