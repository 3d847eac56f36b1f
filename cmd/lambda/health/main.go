// Health Check Lambda entry point
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"underwriting-engine/internal/app"
	"underwriting-engine/internal/config"
	"underwriting-engine/internal/handlers"
	"underwriting-engine/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize logger
	_ = utils.InitLogger(cfg.LogLevel)
	defer utils.Sync()

	a, err := app.New(context.Background(), cfg, utils.GetLogger())
	if err != nil {
		panic("Failed to initialize app: " + err.Error())
	}
	defer a.Close()

	// Create handler
	handler := handlers.NewHealthHandler(a.HealthDB(), a.Registry)

	// Start Lambda
	lambda.Start(handler.Handle)
}
