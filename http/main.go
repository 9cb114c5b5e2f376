package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/resumelab/cv-optimizer/config"
	"github.com/resumelab/cv-optimizer/http/controller"
	routes "github.com/resumelab/cv-optimizer/http/route"
	infraPkg "github.com/resumelab/cv-optimizer/infra"
	"github.com/resumelab/cv-optimizer/repository"
)

func main() {
	err := godotenv.Load("staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	defer infra.Logger.Shutdown(context.Background())

	repo := repository.InitRepository(infra, cfg)

	ctrl := controller.NewController(cfg, infra, repo)

	router := routes.SetupRouter(ctrl)

	log.Printf("HTTP Server started on :%s", cfg.EnvConfig.HTTPPort)
	if err := router.Run(":" + cfg.EnvConfig.HTTPPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
