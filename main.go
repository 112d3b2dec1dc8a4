package main

import (
	"log"

	"subscription-api/config"
	"subscription-api/database"
	apphttp "subscription-api/internal/app/http"
	"subscription-api/internal/app/http/middleware"
	"subscription-api/internal/infra/cache"
	"subscription-api/internal/jobs"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadEnv()
	database.InitDB()
	cache.Init()

	r := gin.Default()
	r.Use(middleware.RequestID())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.CORS_ORIGIN},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	apphttp.RegisterRoutes(r)

	scheduler, err := jobs.StartScheduler()
	if err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	if err := r.Run(":" + config.PORT); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
