package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/libtrack/libtrack-server/internal/api/testutils"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBorrowAndReturn(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	book := &models.Book{Title: "The Go Programming Language", Author: "Donovan & Kernighan", TotalCopies: 1}
	require.NoError(t, testCtx.Repository.CreateBook(context.Background(), book))

	// Borrow the only copy
	w := testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/transactions/borrow",
		models.BorrowRequest{BookID: book.ID},
		testutils.AuthHeaders(testCtx.TestUserJWT))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Transaction)
	assert.Equal(t, models.TransactionBorrow, resp.Transaction.TransactionType)
	require.NotNil(t, resp.Transaction.DueDate)

	// Second borrow fails: no copies left
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/transactions/borrow",
		models.BorrowRequest{BookID: book.ID},
		testutils.AuthHeaders(testCtx.TestUserJWT))
	assert.Equal(t, http.StatusConflict, w.Code)

	// Both or neither item id is a validation error
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/transactions/borrow",
		models.BorrowRequest{},
		testutils.AuthHeaders(testCtx.TestUserJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Return the book
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPut,
		"/api/transactions/"+resp.Transaction.TransactionID+"/return",
		nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	require.Equal(t, http.StatusOK, w.Code)

	// Returning twice is a conflict
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPut,
		"/api/transactions/"+resp.Transaction.TransactionID+"/return",
		nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	assert.Equal(t, http.StatusConflict, w.Code)

	// The copy is available again
	stored, err := testCtx.Repository.GetBookByID(context.Background(), book.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.AvailableCopies)
}

func TestReturnedItemNotPickedUpByBatch(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	txID := testutils.SeedOverdueBorrow(t, testCtx, testCtx.TestUserID, 3)

	// Returning flips the transaction type, so the batch no longer sees it
	w := testutils.PerformRequest(
		testCtx.Router, http.MethodPut,
		"/api/transactions/"+txID+"/return",
		nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	require.Equal(t, http.StatusOK, w.Code)

	resp := runProcessOverdue(t, testCtx)
	assert.Equal(t, 0, resp.TotalProcessed)
}
