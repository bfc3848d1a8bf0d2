package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fintrack/internal/handlers"
	"fintrack/internal/logger"
	"fintrack/internal/middleware"
	"fintrack/internal/models"
	"fintrack/internal/services"
	"fintrack/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB          *gorm.DB
	Router      *gin.Engine
	SnapshotDir string
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.Category{},
		&models.Transaction{},
		&models.Budget{},
		&models.Goal{},
		&models.AutoRule{},
		&models.AlertState{},
		&models.AlertEvent{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)
	snapshotDir := t.TempDir()

	// Services, wired the same way the server wires them.
	dispatcher := services.NewDispatcher()
	categoryService := services.NewCategoryService(db)
	ruleService := services.NewRuleService(db, categoryService)
	budgetService := services.NewBudgetService(db, categoryService, []int{75, 90, 100}, dispatcher)
	goalService := services.NewGoalService(db, categoryService, dispatcher)
	alertService := services.NewAlertService(db, budgetService, goalService)
	dispatcher.Register(alertService)
	ledgerService := services.NewLedgerService(db, categoryService, ruleService, dispatcher)
	reportService := services.NewReportService(db, categoryService)
	snapshotService := services.NewSnapshotService(db)

	// Handlers
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	transactionHandler := handlers.NewTransactionHandler(ledgerService, categoryService)
	budgetHandler := handlers.NewBudgetHandler(budgetService)
	goalHandler := handlers.NewGoalHandler(goalService)
	ruleHandler := handlers.NewRuleHandler(ruleService)
	reportHandler := handlers.NewReportHandler(reportService)
	alertHandler := handlers.NewAlertHandler(alertService)
	snapshotHandler := handlers.NewSnapshotHandler(snapshotService, snapshotDir)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	categories := v1.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetCategories)
	categories.GET("/:id", categoryHandler.GetCategory)
	categories.GET("/:id/descendants", categoryHandler.GetCategoryDescendants)
	categories.PUT("/:id", categoryHandler.RenameCategory)
	categories.PUT("/:id/parent", categoryHandler.ReparentCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	transactions := v1.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.POST("/import", transactionHandler.ImportTransactions)
	transactions.GET("", transactionHandler.GetTransactions)
	transactions.GET("/:id", transactionHandler.GetTransaction)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	budgets := v1.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.GET("/:id/status", budgetHandler.GetBudgetStatus)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeleteBudget)

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

	rules := v1.Group("/rules")
	rules.POST("", ruleHandler.CreateRule)
	rules.GET("", ruleHandler.GetRules)
	rules.GET("/resolve", ruleHandler.ResolveRule)
	rules.DELETE("/:id", ruleHandler.DeleteRule)

	v1.GET("/reports", reportHandler.GetReport)

	alerts := v1.Group("/alerts")
	alerts.GET("/events", alertHandler.GetRecentEvents)

	snapshots := v1.Group("/snapshots")
	snapshots.GET("/export", snapshotHandler.Export)
	snapshots.POST("/import", snapshotHandler.Import)
	snapshots.POST("/save", snapshotHandler.SaveFile)
	snapshots.POST("/load", snapshotHandler.LoadFile)

	return &testApp{DB: db, Router: router, SnapshotDir: snapshotDir}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// createCategory creates a category over HTTP and returns its ID.
func (app *testApp) createCategory(t *testing.T, name, kind string, parentID string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"kind":%q}`, name, kind)
	if parentID != "" {
		body = fmt.Sprintf(`{"name":%q,"kind":%q,"parent_id":%q}`, name, kind, parentID)
	}
	rec := app.request("POST", "/api/v1/categories", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating category %q failed: %d %s", name, rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["category"].(map[string]interface{})["id"].(string)
}

// addTransaction adds a ledger entry over HTTP and returns its ID.
func (app *testApp) addTransaction(t *testing.T, categoryID, kind string, amount int64, date string) string {
	t.Helper()
	body := fmt.Sprintf(`{"category_id":%q,"kind":%q,"amount":%d,"date":%q}`,
		categoryID, kind, amount, date+"T00:00:00Z")
	rec := app.request("POST", "/api/v1/transactions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("adding transaction failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["transaction"].(map[string]interface{})["id"].(string)
}

// alertEvents fetches the recent alert events over HTTP.
func (app *testApp) alertEvents(t *testing.T) []interface{} {
	t.Helper()
	rec := app.request("GET", "/api/v1/alerts/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("fetching alert events failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	events, _ := result["events"].([]interface{})
	return events
}
