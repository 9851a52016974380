package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"badge-draw-system/handlers"
	"badge-draw-system/middleware"
	"badge-draw-system/models"
	"badge-draw-system/services"
	"badge-draw-system/utils"
	"badge-draw-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // badge artwork uploads
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.LedgerUser{},
		&models.BadgeDefinition{},
		&models.BadgeOwnership{},
		&models.GridCard{},
		&models.GridCell{},
		&models.DrawType{},
		&models.WinningNumber{},
		&models.DrawResult{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	registry := services.NewDefaultRegistry()
	gridService := services.NewGridService(db)
	badgeService := services.NewBadgeService(db, gridService)
	drawService := services.NewDrawService(db, registry)
	rankingService := services.NewRankingService(db)

	// --- Ledger sync configuration ---
	ledgerURL := os.Getenv("LEDGER_SERVICE_URL")
	if ledgerURL == "" {
		log.Fatal("LEDGER_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("BADGE_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("BADGE_SERVICE_TOKEN environment variable not set")
	}

	ownershipSync := workers.NewOwnershipSyncWorker(db, gridService, ledgerURL, "/api/v1/public/holdings", serviceToken)
	winningNumberSync := workers.NewWinningNumberSyncClient(db, drawService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ownershipSync.Start(ctx)
	go workers.PollWinningNumbers(ctx, winningNumberSync, 30*time.Second)
	gridService.StartReconcileScheduler(5 * time.Minute)

	// ✅ Setup routes — Gateway auth enforced globally
	handlers.SetupGridRoutes(app, gridService)
	handlers.SetupDrawRoutes(app, badgeService, drawService, rankingService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Ownership Sync Worker running")
	log.Println("✅ Winning number polling running (every 30s)")
	log.Println("✅ Grid reconciler running (every 5m)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
