package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"fintrack/internal/config"
	"fintrack/internal/database"
	"fintrack/internal/handlers"
	"fintrack/internal/logger"
	"fintrack/internal/middleware"
	"fintrack/internal/services"
	"fintrack/internal/validator"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Initialize services. The dispatcher connects ledger and goal
	// mutations to alert recomputation; registration happens after the
	// alert service exists.
	db := dbManager.DB()
	dispatcher := services.NewDispatcher()
	categoryService := services.NewCategoryService(db)
	ruleService := services.NewRuleService(db, categoryService)
	budgetService := services.NewBudgetService(db, categoryService, appConfig.DefaultAlertThresholds, dispatcher)
	goalService := services.NewGoalService(db, categoryService, dispatcher)
	alertService := services.NewAlertService(db, budgetService, goalService)
	dispatcher.Register(alertService)
	ledgerService := services.NewLedgerService(db, categoryService, ruleService, dispatcher)
	reportService := services.NewReportService(db, categoryService)
	snapshotService := services.NewSnapshotService(db)

	// Initialize handlers
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	transactionHandler := handlers.NewTransactionHandler(ledgerService, categoryService)
	budgetHandler := handlers.NewBudgetHandler(budgetService)
	goalHandler := handlers.NewGoalHandler(goalService)
	ruleHandler := handlers.NewRuleHandler(ruleService)
	reportHandler := handlers.NewReportHandler(reportService)
	alertHandler := handlers.NewAlertHandler(alertService)
	snapshotHandler := handlers.NewSnapshotHandler(snapshotService, appConfig.SnapshotDir)

	// Register custom request validators
	validator.Register()

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Category routes
	categories := v1.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetCategories)
	categories.GET("/:id", categoryHandler.GetCategory)
	categories.GET("/:id/descendants", categoryHandler.GetCategoryDescendants)
	categories.PUT("/:id", categoryHandler.RenameCategory)
	categories.PUT("/:id/parent", categoryHandler.ReparentCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	// Transaction routes
	transactions := v1.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.POST("/import", transactionHandler.ImportTransactions)
	transactions.GET("", transactionHandler.GetTransactions)
	transactions.GET("/:id", transactionHandler.GetTransaction)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	// Budget routes
	budgets := v1.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.GET("/:id/status", budgetHandler.GetBudgetStatus)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeleteBudget)

	// Goal routes
	goals := v1.Group("/goals")
	goals.POST("", goalHandler.CreateGoal)
	goals.GET("", goalHandler.GetGoals)
	goals.GET("/overdue", goalHandler.GetOverdueGoals)
	goals.GET("/:id", goalHandler.GetGoal)
	goals.GET("/:id/progress", goalHandler.GetGoalProgress)
	goals.POST("/:id/contributions", goalHandler.Contribute)
	goals.PUT("/:id", goalHandler.UpdateGoal)
	goals.PUT("/:id/rank", goalHandler.SetGoalRank)
	goals.DELETE("/:id", goalHandler.DeleteGoal)

	// Rule routes
	rules := v1.Group("/rules")
	rules.POST("", ruleHandler.CreateRule)
	rules.GET("", ruleHandler.GetRules)
	rules.GET("/resolve", ruleHandler.ResolveRule)
	rules.DELETE("/:id", ruleHandler.DeleteRule)

	// Report routes
	v1.GET("/reports", reportHandler.GetReport)

	// Alert routes
	alerts := v1.Group("/alerts")
	alerts.GET("/events", alertHandler.GetRecentEvents)
	alerts.GET("/stream", alertHandler.StreamEvents)

	// Snapshot routes
	snapshots := v1.Group("/snapshots")
	snapshots.GET("/export", snapshotHandler.Export)
	snapshots.POST("/import", snapshotHandler.Import)
	snapshots.POST("/save", snapshotHandler.SaveFile)
	snapshots.POST("/load", snapshotHandler.LoadFile)

	log.Infof("Starting fintrack server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
