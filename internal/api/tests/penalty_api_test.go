package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/libtrack/libtrack-server/internal/api/testutils"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPenalties(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 2)
	testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 7)
	runProcessOverdue(t, testCtx)

	w := testutils.PerformRequest(
		testCtx.Router, http.MethodGet, "/api/penalties",
		nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.PenaltyListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Penalties, 2)
	assert.Equal(t, int64(2), resp.Pagination.TotalRows)

	// Filter by user id
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodGet, "/api/penalties?user_id="+testCtx.AdminID,
		nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Penalties)
}

func TestUserPenaltiesTotals(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// 2 days and 7 days overdue at the default student rate of 5/day
	testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 2)
	testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 7)
	runProcessOverdue(t, testCtx)

	w := testutils.PerformRequest(
		testCtx.Router, http.MethodGet, "/api/penalties/user/"+testCtx.TestUserID,
		nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.UserPenaltiesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalCount)
	assert.True(t, resp.TotalFines.Equal(decimal.NewFromInt(45)),
		"expected total 45, got %s", resp.TotalFines)
}

func TestPayPenaltyTransitions(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	txID := testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 3)
	runProcessOverdue(t, testCtx)

	penalty, err := testCtx.Repository.GetActivePenalty(context.Background(), txID, testCtx.TestUserID)
	require.NoError(t, err)
	require.NotNil(t, penalty)

	payReq := models.PayPenaltyRequest{PaymentMethod: "gcash"}

	w := testutils.PerformRequest(
		testCtx.Router, http.MethodPut,
		"/api/penalties/"+itoa(penalty.PenaltyID)+"/pay",
		payReq, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	// Paying twice is a conflict: Paid is terminal
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPut,
		"/api/penalties/"+itoa(penalty.PenaltyID)+"/pay",
		payReq, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusConflict, w.Code)

	// Waiving a paid penalty is also a conflict
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPut,
		"/api/penalties/"+itoa(penalty.PenaltyID)+"/waive",
		models.WaivePenaltyRequest{WaiveReason: "goodwill"},
		testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown penalty id is not found
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPut, "/api/penalties/999999/pay",
		payReq, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWaivePenalty(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	txID := testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 3)
	runProcessOverdue(t, testCtx)

	penalty, err := testCtx.Repository.GetActivePenalty(context.Background(), txID, testCtx.TestUserID)
	require.NoError(t, err)
	require.NotNil(t, penalty)

	w := testutils.PerformRequest(
		testCtx.Router, http.MethodPut,
		"/api/penalties/"+itoa(penalty.PenaltyID)+"/waive",
		models.WaivePenaltyRequest{WaiveReason: "damaged on receipt"},
		testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := testCtx.Repository.GetPenaltyByID(context.Background(), penalty.PenaltyID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.PenaltyWaived, stored.Status)
	assert.Equal(t, "damaged on receipt", stored.WaiveReason.String)
	assert.Equal(t, testCtx.AdminID, stored.WaivedBy.String)
}

func TestFinePreviewDoesNotPersist(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	txID := testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 5)

	w := testutils.PerformRequest(
		testCtx.Router, http.MethodGet,
		"/api/kiosk/fine-calculation/user/"+testCtx.TestUserID,
		nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.FinePreviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, txID, resp.Items[0].TransactionID)
	assert.Equal(t, 5, resp.Items[0].DaysOverdue)
	assert.True(t, resp.TotalFine.Equal(decimal.NewFromInt(25)))

	// The preview must not write penalty rows
	nonPaid, paid := testutils.CountPenaltyRows(t, testCtx, txID, testCtx.TestUserID)
	assert.Equal(t, 0, nonPaid)
	assert.Equal(t, 0, paid)
}
