package testutils

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/libtrack/libtrack-server/internal/api"
	"github.com/libtrack/libtrack-server/internal/chatbot"
	"github.com/libtrack/libtrack-server/internal/config"
	"github.com/libtrack/libtrack-server/internal/mailer"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/libtrack/libtrack-server/internal/repository"
	"github.com/libtrack/libtrack-server/internal/service"
	"github.com/libtrack/libtrack-server/internal/utils"
	"github.com/libtrack/libtrack-server/internal/ws"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Repository  repository.Repository
	Service     service.Service
	JWTSecret   []byte
	DB          *sqlx.DB
	TestUserID  string
	TestUserJWT string
	AdminID     string
	AdminJWT    string
}

// SetupTestContext creates a new test context with initialized dependencies
func SetupTestContext(t *testing.T) *TestContext {
	// Load configuration from environment
	cfg := config.LoadConfig()

	// Override with test-specific config
	if cfg.Database.DBName == "libtrack" && cfg.Database.TestDBName != "" {
		cfg.Database.DBName = cfg.Database.TestDBName
	} else if cfg.Database.TestDBName == "" {
		// Fallback to hardcoded test DB if not in environment
		cfg.Database.DBName = "libtrack_test"
	}

	// Use a test JWT secret
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "test-secret-key"
	}

	// Set up database
	db, err := config.SetupDatabase(cfg)
	assert.NoError(t, err, "Failed to set up test database")

	// Create repository
	repo := repository.NewPostgresRepository(db)

	logger := utils.NewLogger()

	// Hub runs for real so broadcast paths are exercised; mail is discarded
	hub := ws.NewHub(logger)
	go hub.Run()

	// Create service
	svc := service.NewDefaultService(repo, cfg.Auth.JWTSecret, hub, mailer.NoopMailer{}, logger, cfg.Library)

	bot := chatbot.New(repo)

	// Create API handler
	handler := api.NewHandler(svc, bot, hub, cfg.Uploads, logger)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start from a clean slate, then create test users
	cleanupTestDatabase(t, repo)
	testUserID, userToken := createTestUser(t, repo, cfg.Auth.JWTSecret,
		"testuser@example.com", models.RoleUser, models.PositionStudent)
	adminID, adminToken := createTestUser(t, repo, cfg.Auth.JWTSecret,
		"admin@example.com", models.RoleAdmin, "Librarian")

	return &TestContext{
		Router:      router,
		Repository:  repo,
		Service:     svc,
		JWTSecret:   []byte(cfg.Auth.JWTSecret),
		DB:          db,
		TestUserID:  testUserID,
		TestUserJWT: userToken,
		AdminID:     adminID,
		AdminJWT:    adminToken,
	}
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(t *TestContext) {
	if t.DB != nil {
		cleanupTestDatabase(nil, t.Repository)
		t.DB.Close()
	}
}

// cleanupTestDatabase removes any existing test data
func cleanupTestDatabase(t *testing.T, repo repository.Repository) {
	pgRepo, ok := repo.(*repository.PostgresRepository)
	if !ok {
		return
	}
	db := pgRepo.GetDB()

	// Child tables first to satisfy foreign keys
	tables := []string{"penalties", "transactions", "activity_logs", "books", "research_papers", "system_settings", "users"}
	for _, table := range tables {
		if _, err := db.Exec("DELETE FROM " + table); err != nil && t != nil {
			t.Logf("Warning: Failed to clean %s: %v", table, err)
		}
	}
}

// Helper functions
func createTestUser(t *testing.T, repo repository.Repository, jwtSecret, email, role, position string) (string, string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)

	user := &models.User{
		ID:       uuid.New().String(),
		SchoolID: uuid.New().String()[:8],
		Email:    email,
		Name:     "Test User",
		Password: string(hashedPassword),
		Position: position,
		Role:     role,
		Status:   models.UserStatusApproved,
	}

	err := repo.CreateUser(context.Background(), user)
	assert.NoError(t, err, "Failed to create test user")

	// Generate JWT token with the provided secret key
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID,
		"role": user.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(jwtSecret))
	assert.NoError(t, err, "Failed to generate JWT token")

	return user.ID, tokenString
}

// SeedOverdueBorrow inserts a book plus a borrow transaction whose due date
// is daysOverdue in the past, returning the transaction id.
func SeedOverdueBorrow(t *testing.T, tc *TestContext, userID string, daysOverdue int) string {
	ctx := context.Background()

	book := &models.Book{
		Title:       fmt.Sprintf("Seeded Book %s", uuid.New().String()[:8]),
		Author:      "Seed Author",
		TotalCopies: 1,
	}
	err := tc.Repository.CreateBook(ctx, book)
	assert.NoError(t, err, "Failed to seed book")

	txn := &models.Transaction{
		UserID: userID,
		BookID: sql.NullString{String: book.ID, Valid: true},
	}
	// Back off one hour so the overdue duration stays within daysOverdue
	// whole days even after the test has been running for a moment.
	due := time.Now().UTC().Add(-time.Duration(daysOverdue)*24*time.Hour + time.Hour)
	txn.DueDate = &due

	err = tc.Repository.CreateBorrowTransaction(ctx, txn)
	assert.NoError(t, err, "Failed to seed borrow transaction")

	return txn.TransactionID
}

// CountPenaltyRows returns how many penalty rows exist for a key, split by
// paid and non-paid status.
func CountPenaltyRows(t *testing.T, tc *TestContext, transactionID, userID string) (nonPaid, paid int) {
	err := tc.DB.Get(&nonPaid,
		`SELECT COUNT(*) FROM penalties WHERE transaction_id = $1 AND user_id = $2 AND status != 'Paid'`,
		transactionID, userID)
	assert.NoError(t, err)
	err = tc.DB.Get(&paid,
		`SELECT COUNT(*) FROM penalties WHERE transaction_id = $1 AND user_id = $2 AND status = 'Paid'`,
		transactionID, userID)
	assert.NoError(t, err)
	return nonPaid, paid
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
