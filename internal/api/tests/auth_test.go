package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/libtrack/libtrack-server/internal/api/testutils"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRegister(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Test case 1: Successful registration
	registerReq := models.RegisterRequest{
		SchoolID: "2025-00123",
		Email:    "newuser@example.com",
		Password: "Password123",
		Name:     "New User",
		Position: "Student",
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/register",
		registerReq,
		nil,
	)

	assert.Equal(t, http.StatusCreated, w.Code)

	// Test case 2: Duplicate email
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/register",
		registerReq,
		nil,
	)

	assert.Equal(t, http.StatusConflict, w.Code)

	// Test case 3: Invalid request (missing required fields)
	invalidReq := models.RegisterRequest{
		Email: "invalid@example.com",
		// Missing school id, password and name
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/register",
		invalidReq,
		nil,
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginRequiresApproval(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	registerReq := models.RegisterRequest{
		SchoolID: "2025-00456",
		Email:    "pending@example.com",
		Password: "Password123",
		Name:     "Pending User",
	}

	w := testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/auth/register", registerReq, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	// A freshly registered account is pending and cannot log in
	loginReq := models.LoginRequest{
		Email:    "pending@example.com",
		Password: "Password123",
	}
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/auth/login", loginReq, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Approve the account, then login succeeds
	user, err := testCtx.Repository.GetUserByEmail(context.Background(), "pending@example.com")
	assert.NoError(t, err)
	assert.NotNil(t, user)

	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPut,
		"/api/users/"+user.ID+"/approve",
		models.ApproveUserRequest{Status: models.UserStatusApproved},
		testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/auth/login", loginReq, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Test case 1: Successful login
	loginReq := models.LoginRequest{
		Email:    "testuser@example.com",
		Password: "testpassword",
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/login",
		loginReq,
		nil,
	)

	assert.Equal(t, http.StatusOK, w.Code)

	// Test case 2: Invalid credentials
	invalidLoginReq := models.LoginRequest{
		Email:    "testuser@example.com",
		Password: "wrongpassword",
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/login",
		invalidLoginReq,
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Test case 3: User not found
	nonExistentUserReq := models.LoginRequest{
		Email:    "nonexistent@example.com",
		Password: "testpassword",
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/login",
		nonExistentUserReq,
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	w := testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/penalties/process-overdue",
		nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/penalties/process-overdue",
		nil, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusOK, w.Code)
}
