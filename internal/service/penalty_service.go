package service

import (
	"context"
	"fmt"
	"time"

	"github.com/libtrack/libtrack-server/internal/fines"
	"github.com/libtrack/libtrack-server/internal/mailer"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/libtrack/libtrack-server/internal/repository"
	"github.com/libtrack/libtrack-server/internal/ws"
	"github.com/shopspring/decimal"
)

// ProcessOverdue walks every overdue borrow transaction, computes its fine
// at the borrower's rate, and reconciles the penalties table. Per-row
// failures are collected and the run continues.
func (s *DefaultService) ProcessOverdue(ctx context.Context) (*models.BatchPenaltyResponse, error) {
	return s.runBatch(ctx, true)
}

// Recalculate re-runs the same reconciliation to refresh fines after a rate
// change. Skips are not reported separately.
func (s *DefaultService) Recalculate(ctx context.Context) (*models.BatchPenaltyResponse, error) {
	return s.runBatch(ctx, false)
}

func (s *DefaultService) runBatch(ctx context.Context, countSkipped bool) (*models.BatchPenaltyResponse, error) {
	settings, err := s.EffectiveSettings(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	overdue, err := s.repo.ListOverdueBorrowTransactions(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("error listing overdue transactions: %w", err)
	}

	resp := &models.BatchPenaltyResponse{
		Status: "success",
		Errors: []models.BatchError{},
	}

	for _, txn := range overdue {
		resp.TotalProcessed++

		rate := fines.RateForPosition(settings, txn.Position)
		result := fines.Calculate(txn.DueDate, now, rate)
		if result.Status != fines.StatusOverdue {
			continue
		}

		outcome, err := s.repo.ReconcilePenalty(ctx, txn.TransactionID, txn.UserID, result.Fine)
		if err != nil {
			resp.Errors = append(resp.Errors, models.BatchError{
				TransactionID: txn.TransactionID,
				Message:       err.Error(),
			})
			continue
		}

		switch {
		case outcome.Created:
			resp.PenaltiesCreated++
		case outcome.Updated:
			resp.PenaltiesUpdated++
		case outcome.Skipped && countSkipped:
			resp.PenaltiesSkipped++
		}
	}

	s.logActivity(ctx, "", "penalties.batch",
		fmt.Sprintf("processed=%d created=%d updated=%d errors=%d",
			resp.TotalProcessed, resp.PenaltiesCreated, resp.PenaltiesUpdated, len(resp.Errors)))
	s.broadcaster.Broadcast(ws.EventBatchReconciled, resp)

	return resp, nil
}

// CleanupPenalties deletes superseded duplicate non-paid rows
func (s *DefaultService) CleanupPenalties(ctx context.Context, actorID string) (int64, error) {
	deleted, err := s.repo.CleanupDuplicatePenalties(ctx)
	if err != nil {
		return 0, fmt.Errorf("error cleaning up penalties: %w", err)
	}

	s.logActivity(ctx, actorID, "penalties.cleanup", fmt.Sprintf("deleted=%d", deleted))

	return deleted, nil
}

// PayPenalty marks a pending penalty as paid, emails a receipt, and pushes
// a PENALTY_PAID event to connected dashboards. The fine amount is never
// touched by payment.
func (s *DefaultService) PayPenalty(ctx context.Context, actorID string, penaltyID int64, req models.PayPenaltyRequest) (*models.Penalty, error) {
	penalty, err := s.repo.MarkPenaltyPaid(ctx, penaltyID, req.PaymentMethod, req.Notes)
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, actorID, "penalty.pay",
		fmt.Sprintf("penalty_id=%d method=%s", penaltyID, req.PaymentMethod))
	s.broadcaster.Broadcast(ws.EventPenaltyPaid, penalty)

	if user, err := s.repo.GetUserByID(ctx, penalty.UserID); err == nil && user != nil {
		receipt := mailerReceipt(penalty, user.Name)
		if err := s.mail.SendPaymentReceipt(user.Email, receipt); err != nil {
			s.logger.Warn("Failed to send payment receipt to %s: %v", user.Email, err)
		}
	}

	return penalty, nil
}

// WaivePenalty waives a pending penalty with a recorded reason
func (s *DefaultService) WaivePenalty(ctx context.Context, actorID string, penaltyID int64, req models.WaivePenaltyRequest) (*models.Penalty, error) {
	penalty, err := s.repo.WaivePenalty(ctx, penaltyID, req.WaiveReason, actorID)
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, actorID, "penalty.waive", fmt.Sprintf("penalty_id=%d", penaltyID))
	s.broadcaster.Broadcast(ws.EventPenaltyWaived, penalty)

	return penalty, nil
}

// ListPenalties returns the filtered penalty list plus pagination metadata
func (s *DefaultService) ListPenalties(ctx context.Context, filter repository.PenaltyFilter) (*models.PenaltyListResponse, error) {
	penalties, total, err := s.repo.ListPenalties(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing penalties: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	if penalties == nil {
		penalties = []models.Penalty{}
	}

	return &models.PenaltyListResponse{
		Status:    "success",
		Penalties: penalties,
		Pagination: models.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalRows:  total,
			TotalPages: totalPages,
		},
	}, nil
}

// UserPenalties returns a user's penalty rows plus outstanding totals
func (s *DefaultService) UserPenalties(ctx context.Context, userID string) (*models.UserPenaltiesResponse, error) {
	penalties, total, err := s.repo.ListUserPenalties(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing user penalties: %w", err)
	}

	if penalties == nil {
		penalties = []models.Penalty{}
	}

	return &models.UserPenaltiesResponse{
		Status:     "success",
		UserID:     userID,
		TotalCount: len(penalties),
		TotalFines: total,
		Penalties:  penalties,
	}, nil
}

// FinePreview computes what a user currently owes without persisting
// anything. The kiosk uses it to show a live breakdown before checkout.
func (s *DefaultService) FinePreview(ctx context.Context, userID string) (*models.FinePreviewResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	settings, err := s.EffectiveSettings(ctx)
	if err != nil {
		return nil, err
	}
	rate := fines.RateForPosition(settings, user.Position)

	txns, err := s.repo.ListUserBorrowTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}

	now := time.Now().UTC()
	resp := &models.FinePreviewResponse{
		Status:    "success",
		UserID:    userID,
		TotalFine: decimal.Zero,
		Items:     []models.FinePreviewItem{},
	}

	for _, txn := range txns {
		result := fines.Calculate(txn.DueDate, now, rate)

		item := models.FinePreviewItem{
			TransactionID: txn.TransactionID,
			ItemTitle:     s.itemTitle(ctx, &txn.Transaction),
			DaysOverdue:   result.DaysOverdue,
			Fine:          result.Fine,
			FineStatus:    result.Status,
		}
		if txn.DueDate != nil {
			item.DueDate = txn.DueDate.Format(time.RFC3339)
		}

		resp.Items = append(resp.Items, item)
		resp.TotalFine = resp.TotalFine.Add(result.Fine)
	}

	return resp, nil
}

func mailerReceipt(penalty *models.Penalty, name string) mailer.ReceiptData {
	return mailer.ReceiptData{
		Name:          name,
		PenaltyID:     penalty.PenaltyID,
		Amount:        penalty.Fine.StringFixed(2),
		PaymentMethod: penalty.PaymentMethod.String,
		PaidAt:        penalty.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *DefaultService) itemTitle(ctx context.Context, txn *models.Transaction) string {
	if txn.BookID.Valid {
		if book, err := s.repo.GetBookByID(ctx, txn.BookID.String); err == nil && book != nil {
			return book.Title
		}
	}
	if txn.ResearchPaperID.Valid {
		if paper, err := s.repo.GetResearchPaperByID(ctx, txn.ResearchPaperID.String); err == nil && paper != nil {
			return paper.Title
		}
	}
	return ""
}
