package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/resumelab/cv-optimizer/config"
	"github.com/resumelab/cv-optimizer/consumer/worker"
	infraPkg "github.com/resumelab/cv-optimizer/infra"
	"github.com/resumelab/cv-optimizer/repository"
)

func main() {
	err := godotenv.Load("../staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra, cfg)

	if infra.AI == nil {
		log.Fatalf("OPENAI_API_KEY is required for the consumer")
	}

	// Initialize context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer infra.Logger.Shutdown(context.Background())

	optimizeConsumer := worker.NewOptimizeConsumer(infra.RabbitMQ.Channel, infra, repo)
	if err := optimizeConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start optimize consumer: %v", err)
		log.Fatalf("Failed to start optimize consumer: %v", err)
	}

	applyConsumer := worker.NewApplyBatchConsumer(infra.RabbitMQ.Channel, infra, repo)
	if err := applyConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start apply batch consumer: %v", err)
		log.Fatalf("Failed to start apply batch consumer: %v", err)
	}

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()

	infra.Logger.InfoWithContextf(ctx, "Consumer exited properly")
}
