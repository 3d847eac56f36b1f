// Underwrite Lambda entry point. ROUTE selects the endpoint served by this
// function: underwrite (default), batch, run or products.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

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
	logger := utils.GetLogger()

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize app", zap.Error(err))
	}
	defer a.Close()

	handler := handlers.NewUnderwriteHandler(a.Service, logger.Named("api"))

	var fn handlers.LambdaFunc
	switch route := os.Getenv("ROUTE"); route {
	case "", "underwrite":
		fn = handler.Underwrite
	case "batch":
		fn = handler.Batch
	case "run":
		fn = handler.Run
	case "products":
		fn = handler.Products
	default:
		logger.Fatal("Unknown ROUTE", zap.String("route", route))
	}

	// Start Lambda
	lambda.Start(fn)
}
