// Batch processor Lambda entry point: evaluates CSV files uploaded to S3.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"mihac/internal/app"
	"mihac/internal/config"
	"mihac/internal/handlers"
	s3service "mihac/internal/services/s3"
	"mihac/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	_ = utils.InitLogger(cfg.LogLevel)
	defer utils.Sync()

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		panic("Failed to initialize application: " + err.Error())
	}
	defer a.Close()

	// Uploads live in the same bucket as the reports.
	uploads := a.Reports
	if uploads == nil {
		uploads, err = s3service.NewService(ctx, cfg)
		if err != nil {
			panic("Failed to create S3 client: " + err.Error())
		}
	}

	handler := handlers.NewBatchProcessorHandler(uploads, a.Engine, a.Recorder)

	lambda.Start(handler.Handle)
}
