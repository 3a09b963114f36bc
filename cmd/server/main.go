package main

import (
	"context"
	"log"

	"github.com/johanesalxd/data-clean-room-demo/internal/api"
	"github.com/johanesalxd/data-clean-room-demo/internal/config"
	"github.com/johanesalxd/data-clean-room-demo/internal/database"
	"github.com/johanesalxd/data-clean-room-demo/internal/services"
	"github.com/johanesalxd/data-clean-room-demo/pkg/logging"

	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatal("Failed to initialize config:", err)
	}

	// Initialize logging
	logging.InitLogging()

	// Initialize database
	if err := database.InitDatabase(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.CloseDatabase()

	ctx := context.Background()

	// Initialize BigQuery-backed services
	warehouse, err := services.NewWarehouseService(ctx, config.AppConfig.MerchantProjectID, config.AppConfig.Location)
	if err != nil {
		log.Fatal("Failed to initialize warehouse service:", err)
	}
	defer warehouse.Close()

	locks := services.NewLockService()
	pipeline := services.NewPipelineService(warehouse, locks)
	hashing := services.NewHashingService(warehouse)

	exchange, err := services.NewExchangeService(ctx, warehouse)
	if err != nil {
		log.Fatal("Failed to initialize exchange service:", err)
	}
	defer exchange.Close()

	// Set Gin mode
	gin.SetMode(config.AppConfig.Mode)

	// Create Gin engine
	r := gin.Default()

	// Setup routes
	api.SetupRoutes(r, api.NewHandler(pipeline, hashing, exchange, locks))

	// Start server
	port := config.AppConfig.Port
	logging.Infof("Starting server on port %s", port)

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
