package main

import (
	"context"
	"log"
	"os"

	"assessment-backend/internal/config"
	"assessment-backend/internal/database"
	"assessment-backend/internal/handlers"
	"assessment-backend/internal/middleware"
	"assessment-backend/internal/services"
	"assessment-backend/internal/ws"

	_ "assessment-backend/docs"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Peer Assessment API
// @version         1.0
// @description     Turn-based peer assessment sessions with realtime moderator and participant channels
// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter "Bearer {token}"

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("database: %v", err)
	}

	var revoker services.TokenRevoker = services.NewMemoryRevoker()
	if cfg.RedisURL != "" {
		redisRevoker, err := services.NewRedisRevoker(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisRevoker.Close()
		revoker = redisRevoker
		log.Println("auth: token revocation backed by redis")
	}

	hub := ws.NewHub(cfg.WSWriteTimeout)

	authService := services.NewAuthService(db, cfg.JWTSecret, cfg.TokenTTL, revoker)
	if err := authService.EnsureModerator(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("auth: %v", err)
	}
	assessmentService := services.NewAssessmentService(db)
	instanceService := services.NewInstanceService(db)
	sessionService := services.NewSessionService(db, hub, cfg.AllowObserverAnswers)

	routes := handlers.Routes{
		Auth:        handlers.NewAuthHandler(authService),
		Assessments: handlers.NewAssessmentHandler(assessmentService),
		Instances:   handlers.NewInstanceHandler(instanceService),
		Session:     handlers.NewSessionHandler(sessionService),
		WS:          handlers.NewWSHandler(hub, sessionService),
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestMetrics())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	routes.Register(r, authService)

	log.Printf("Server starting on :%s", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
