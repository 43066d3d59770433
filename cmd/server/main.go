package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ieltsprep_app_echo/internal/handlers"
	authMiddleware "ieltsprep_app_echo/internal/middleware"
	"ieltsprep_app_echo/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}

	authClient, err := services.InitFirebase(credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Auth features will not work until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Redis is optional; the leaderboard degrades to DB queries without it
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	} else {
		log.Println("REDIS_URL not set, leaderboard caching disabled")
	}

	// Payment gateway
	midtransService := services.NewMidtransService()

	// Services
	checkoutService := services.NewCheckoutService(db)
	entitlementService := services.NewEntitlementService(db)
	paymentService := services.NewPaymentService(db, midtransService)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = authMiddleware.CustomErrorHandler

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize handlers
	checkoutHandler := handlers.NewCheckoutHandler(db, checkoutService, entitlementService, paymentService)
	webhookHandler := handlers.NewWebhookHandler(db, midtransService, entitlementService)
	catalogHandler := handlers.NewCatalogHandler(db)
	entitlementHandler := handlers.NewEntitlementHandler(db)
	resultHandler := handlers.NewResultHandler(db, cache)
	preferenceHandler := handlers.NewUserPreferenceHandler(db)

	// Public routes
	e.POST("/payments/midtrans/callback", webhookHandler.MidtransCallback)
	e.GET("/catalog/mock-tests", catalogHandler.ListMockTests)
	e.GET("/catalog/practice-modules", catalogHandler.ListPracticeModules)
	e.GET("/leaderboard/:testID", resultHandler.Leaderboard)

	// Authenticated routes
	authed := e.Group("")
	authed.Use(authMiddleware.RequireAuth(authClient, db))

	authed.POST("/checkout/sessions", checkoutHandler.CreateSession)
	authed.GET("/checkout/sessions/:id", checkoutHandler.GetSession)
	authed.POST("/checkout/sessions/:id/complete-free", checkoutHandler.CompleteFree)
	authed.POST("/checkout/pay", checkoutHandler.Pay)

	authed.GET("/me/purchases", entitlementHandler.MyPurchases)
	authed.GET("/me/registrations", entitlementHandler.MyRegistrations)
	authed.GET("/me/access/:itemType/:slug", entitlementHandler.CheckAccess)
	authed.GET("/me/results", resultHandler.MyResults)
	authed.GET("/me/notification-preference", preferenceHandler.GetPreference)
	authed.PUT("/me/notification-preference", preferenceHandler.UpdatePreference)

	// Admin routes
	admin := authed.Group("/admin")
	admin.Use(authMiddleware.RequireAdmin())

	admin.POST("/mock-tests", catalogHandler.CreateMockTest)
	admin.PUT("/mock-tests/:id", catalogHandler.UpdateMockTest)
	admin.POST("/practice-modules", catalogHandler.CreatePracticeModule)
	admin.POST("/coupons", catalogHandler.CreateCoupon)
	admin.POST("/results", resultHandler.PublishResult)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
