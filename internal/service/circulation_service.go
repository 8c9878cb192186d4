package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/libtrack/libtrack-server/internal/fines"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/libtrack/libtrack-server/internal/ws"
)

// Borrow checks out a book or research paper for an approved user. The due
// date is the current time plus the borrower's per-role borrow period.
func (s *DefaultService) Borrow(ctx context.Context, userID string, req models.BorrowRequest) (*models.Transaction, error) {
	if (req.BookID == "") == (req.ResearchPaperID == "") {
		return nil, fmt.Errorf("%w: exactly one of bookId or researchPaperId is required", ErrValidation)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if user.Status != models.UserStatusApproved {
		return nil, ErrAccountNotApproved
	}

	settings, err := s.EffectiveSettings(ctx)
	if err != nil {
		return nil, err
	}

	borrowDays := fines.BorrowDaysForPosition(settings, user.Position)
	dueDate := time.Now().UTC().Add(time.Duration(borrowDays) * 24 * time.Hour)

	txn := &models.Transaction{
		UserID:  userID,
		DueDate: &dueDate,
	}
	if req.BookID != "" {
		txn.BookID = sql.NullString{String: req.BookID, Valid: true}
	} else {
		txn.ResearchPaperID = sql.NullString{String: req.ResearchPaperID, Valid: true}
	}

	if err := s.repo.CreateBorrowTransaction(ctx, txn); err != nil {
		return nil, err
	}

	s.logActivity(ctx, userID, "transaction.borrow",
		fmt.Sprintf("transaction_id=%s due=%s", txn.TransactionID, dueDate.Format(time.RFC3339)))
	s.broadcaster.Broadcast(ws.EventItemBorrowed, txn)

	return txn, nil
}

// Return closes out a borrow transaction and releases the item
func (s *DefaultService) Return(ctx context.Context, actorID, transactionID string) (*models.Transaction, error) {
	txn, err := s.repo.ReturnTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, actorID, "transaction.return",
		fmt.Sprintf("transaction_id=%s", transactionID))
	s.broadcaster.Broadcast(ws.EventItemReturned, txn)

	return txn, nil
}
