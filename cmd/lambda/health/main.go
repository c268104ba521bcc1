// Health Check Lambda entry point
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"mihac/internal/app"
	"mihac/internal/config"
	"mihac/internal/handlers"
	"mihac/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	_ = utils.InitLogger(cfg.LogLevel)
	defer utils.Sync()

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		panic("Failed to initialize application: " + err.Error())
	}
	defer a.Close()

	var store handlers.HealthChecker
	if a.Store != nil {
		store = a.Store
	}
	handler := handlers.NewHealthHandler(store, a.Rules)

	lambda.Start(handler.Handle)
}
