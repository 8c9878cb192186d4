package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/libtrack/libtrack-server/internal/api/testutils"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func runProcessOverdue(t *testing.T, testCtx *testutils.TestContext) models.BatchPenaltyResponse {
	w := testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/penalties/process-overdue",
		nil, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.BatchPenaltyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestProcessOverdueCreatesPenalty(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	txID := testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 5)

	resp := runProcessOverdue(t, testCtx)
	assert.Equal(t, 1, resp.TotalProcessed)
	assert.Equal(t, 1, resp.PenaltiesCreated)
	assert.Empty(t, resp.Errors)

	penalty, err := testCtx.Repository.GetActivePenalty(context.Background(), txID, testCtx.TestUserID)
	require.NoError(t, err)
	require.NotNil(t, penalty)
	assert.Equal(t, models.PenaltyPending, penalty.Status)

	// Student daily rate defaults to 5, so 5 days overdue owes 25
	assert.True(t, penalty.Fine.Equal(decimal.NewFromInt(25)),
		"expected fine 25, got %s", penalty.Fine)
}

func TestRepeatedRunsLeaveOneRow(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	txID := testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 3)

	first := runProcessOverdue(t, testCtx)
	assert.Equal(t, 1, first.PenaltiesCreated)

	second := runProcessOverdue(t, testCtx)
	assert.Equal(t, 0, second.PenaltiesCreated)
	assert.Equal(t, 1, second.PenaltiesUpdated)

	nonPaid, paid := testutils.CountPenaltyRows(t, testCtx, txID, testCtx.TestUserID)
	assert.Equal(t, 1, nonPaid, "repeated runs must not accumulate rows")
	assert.Equal(t, 0, paid)

	// The surviving row carries the second run's fine, not the sum
	penalty, err := testCtx.Repository.GetActivePenalty(context.Background(), txID, testCtx.TestUserID)
	require.NoError(t, err)
	require.NotNil(t, penalty)
	assert.True(t, penalty.Fine.Equal(decimal.NewFromInt(15)),
		"expected fine 15, got %s", penalty.Fine)
}

func TestPaidPenaltyIsImmutable(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	txID := testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 4)
	runProcessOverdue(t, testCtx)

	penalty, err := testCtx.Repository.GetActivePenalty(context.Background(), txID, testCtx.TestUserID)
	require.NoError(t, err)
	require.NotNil(t, penalty)
	paidFine := penalty.Fine

	// Pay the penalty
	w := testutils.PerformRequest(
		testCtx.Router, http.MethodPut,
		"/api/penalties/"+itoa(penalty.PenaltyID)+"/pay",
		models.PayPenaltyRequest{PaymentMethod: "cash", Notes: "front desk"},
		testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)

	// Reconciling again must skip the paid row and create nothing new
	resp := runProcessOverdue(t, testCtx)
	assert.Equal(t, 1, resp.PenaltiesSkipped)
	assert.Equal(t, 0, resp.PenaltiesCreated)
	assert.Equal(t, 0, resp.PenaltiesUpdated)

	nonPaid, paid := testutils.CountPenaltyRows(t, testCtx, txID, testCtx.TestUserID)
	assert.Equal(t, 0, nonPaid)
	assert.Equal(t, 1, paid)

	stored, err := testCtx.Repository.GetPenaltyByID(context.Background(), penalty.PenaltyID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.PenaltyPaid, stored.Status)
	assert.True(t, stored.Fine.Equal(paidFine), "payment must never change the fine amount")
}

func TestRecalculateUsesCurrentSettings(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	txID := testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 2)
	runProcessOverdue(t, testCtx)

	// Double the student daily rate
	newRate := decimal.NewFromInt(10)
	w := testutils.PerformRequest(
		testCtx.Router, http.MethodPut, "/api/settings",
		models.UpdateSettingsRequest{StudentDailyFine: &newRate},
		testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/penalties/recalculate",
		nil, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)

	penalty, err := testCtx.Repository.GetActivePenalty(context.Background(), txID, testCtx.TestUserID)
	require.NoError(t, err)
	require.NotNil(t, penalty)
	assert.True(t, penalty.Fine.Equal(decimal.NewFromInt(20)),
		"expected recalculated fine 20, got %s", penalty.Fine)
}

func TestCleanupDeletesSupersededRows(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	txID := testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 3)

	// Simulate drift from the pre-reconciler era: duplicate pending rows
	for i := 0; i < 3; i++ {
		_, err := testCtx.DB.Exec(
			`INSERT INTO penalties (transaction_id, user_id, fine, status, created_at, updated_at)
			VALUES ($1, $2, 10, 'Pending Payment', NOW(), NOW())`,
			txID, testCtx.TestUserID)
		require.NoError(t, err)
	}

	w := testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/penalties/cleanup",
		nil, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.CleanupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.RecordsDeleted)

	nonPaid, _ := testutils.CountPenaltyRows(t, testCtx, txID, testCtx.TestUserID)
	assert.Equal(t, 1, nonPaid)

	// Cleanup is idempotent
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/penalties/cleanup",
		nil, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(0), resp.RecordsDeleted)
}
