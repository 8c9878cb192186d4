package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/shopspring/decimal"
)

// ReconcilePenalty converges the penalties table toward one active
// (non-Paid) row per (transaction_id, user_id) pair, carrying the freshly
// computed fine. The whole read-decide-write sequence runs in a single
// serializable transaction so two concurrent runs for the same key cannot
// both insert, and the delete-of-older-rows step cannot race a concurrent
// insert.
func (r *PostgresRepository) ReconcilePenalty(
	ctx context.Context,
	transactionID string,
	userID string,
	fine decimal.Decimal,
) (*ReconcileResult, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Latest row for the key regardless of status drives the decision.
	var latestID int64
	var latestStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT penalty_id, status FROM penalties
		WHERE transaction_id = $1 AND user_id = $2
		ORDER BY updated_at DESC, penalty_id DESC
		LIMIT 1`,
		transactionID, userID).Scan(&latestID, &latestStatus)

	now := time.Now().UTC()
	result := &ReconcileResult{}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// No history at all. Clear any stray non-paid rows before inserting
		// so drifted data cannot leave two active rows behind.
		_, err = tx.ExecContext(ctx,
			`DELETE FROM penalties WHERE transaction_id = $1 AND user_id = $2 AND status != $3`,
			transactionID, userID, models.PenaltyPaid)
		if err != nil {
			return nil, err
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO penalties (transaction_id, user_id, fine, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			RETURNING penalty_id`,
			transactionID, userID, fine, models.PenaltyPending, now).Scan(&result.PenaltyID)
		if err != nil {
			return nil, err
		}
		result.Created = true

	case err != nil:
		return nil, err

	case latestStatus == models.PenaltyPaid:
		// Paid history is immutable once reached.
		result.Skipped = true
		result.PenaltyID = latestID

	default:
		// Latest row is still active: refresh its fine in place, then drop
		// any older non-paid duplicates accumulated by earlier runs.
		_, err = tx.ExecContext(ctx,
			`UPDATE penalties SET fine = $1, updated_at = $2 WHERE penalty_id = $3`,
			fine, now, latestID)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx,
			`DELETE FROM penalties
			WHERE transaction_id = $1 AND user_id = $2 AND status != $3 AND penalty_id != $4`,
			transactionID, userID, models.PenaltyPaid, latestID)
		if err != nil {
			return nil, err
		}
		result.Updated = true
		result.PenaltyID = latestID
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetActivePenalty returns the single non-Paid row for a key, or nil when
// the key has no active penalty. All read paths that need "the" penalty for
// a transaction go through this accessor rather than re-deriving the
// invariant in their own SQL.
func (r *PostgresRepository) GetActivePenalty(ctx context.Context, transactionID, userID string) (*models.Penalty, error) {
	query := `
		SELECT * FROM penalties
		WHERE transaction_id = $1 AND user_id = $2 AND status != $3
		ORDER BY penalty_id DESC
		LIMIT 1
	`

	var penalty models.Penalty
	err := r.db.GetContext(ctx, &penalty, query, transactionID, userID, models.PenaltyPaid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No active penalty
		}
		return nil, err
	}

	return &penalty, nil
}

func (r *PostgresRepository) GetPenaltyByID(ctx context.Context, penaltyID int64) (*models.Penalty, error) {
	query := `SELECT * FROM penalties WHERE penalty_id = $1`

	var penalty models.Penalty
	err := r.db.GetContext(ctx, &penalty, query, penaltyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Penalty not found
		}
		return nil, err
	}

	return &penalty, nil
}

// ListPenalties returns penalty rows matching the filter plus a total row
// count for pagination. Without a status filter it projects the active view:
// for each key, the newest non-Paid row.
func (r *PostgresRepository) ListPenalties(ctx context.Context, filter PenaltyFilter) ([]models.Penalty, int64, error) {
	where := `WHERE p.status != '` + models.PenaltyPaid + `'
		AND p.penalty_id = (
			SELECT MAX(p2.penalty_id) FROM penalties p2
			WHERE p2.transaction_id = p.transaction_id
			AND p2.user_id = p.user_id
			AND p2.status != '` + models.PenaltyPaid + `'
		)`
	args := []interface{}{}

	if filter.Status == models.PenaltyPaid {
		where = `WHERE p.status = '` + models.PenaltyPaid + `'`
	} else if filter.Status != "" {
		where += fmt.Sprintf(` AND p.status = $%d`, len(args)+1)
		args = append(args, filter.Status)
	}

	if filter.UserID != "" {
		where += fmt.Sprintf(` AND p.user_id = $%d`, len(args)+1)
		args = append(args, filter.UserID)
	}
	if filter.TransactionID != "" {
		where += fmt.Sprintf(` AND p.transaction_id = $%d`, len(args)+1)
		args = append(args, filter.TransactionID)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM penalties p ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := `SELECT p.* FROM penalties p ` + where +
		fmt.Sprintf(` ORDER BY p.updated_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var penalties []models.Penalty
	if err := r.db.SelectContext(ctx, &penalties, query, args...); err != nil {
		return nil, 0, err
	}

	return penalties, total, nil
}

// ListUserPenalties returns all of a user's penalty rows (active view plus
// Paid history) together with the sum of fines still owed.
func (r *PostgresRepository) ListUserPenalties(ctx context.Context, userID string) ([]models.Penalty, decimal.Decimal, error) {
	query := `
		SELECT p.* FROM penalties p
		WHERE p.user_id = $1
		AND (
			p.status = $2
			OR p.penalty_id = (
				SELECT MAX(p2.penalty_id) FROM penalties p2
				WHERE p2.transaction_id = p.transaction_id
				AND p2.user_id = p.user_id
				AND p2.status != $2
			)
		)
		ORDER BY p.updated_at DESC
	`

	var penalties []models.Penalty
	err := r.db.SelectContext(ctx, &penalties, query, userID, models.PenaltyPaid)
	if err != nil {
		return nil, decimal.Zero, err
	}

	total := decimal.Zero
	for _, p := range penalties {
		if p.Status == models.PenaltyPending {
			total = total.Add(p.Fine)
		}
	}

	return penalties, total, nil
}

// MarkPenaltyPaid is a direct, terminal status transition keyed by
// penalty_id; it never touches the fine amount.
func (r *PostgresRepository) MarkPenaltyPaid(ctx context.Context, penaltyID int64, paymentMethod, notes string) (*models.Penalty, error) {
	query := `
		UPDATE penalties
		SET status = $1, payment_method = $2, notes = $3, updated_at = $4
		WHERE penalty_id = $5 AND status = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		models.PenaltyPaid, paymentMethod, notes, time.Now().UTC(),
		penaltyID, models.PenaltyPending)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		existing, err := r.GetPenaltyByID(ctx, penaltyID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ErrNotFound
		}
		return nil, ErrConflict // Already paid or waived
	}

	return r.GetPenaltyByID(ctx, penaltyID)
}

// WaivePenalty is the terminal waive transition, recording who waived the
// fine and why.
func (r *PostgresRepository) WaivePenalty(ctx context.Context, penaltyID int64, waiveReason, waivedBy string) (*models.Penalty, error) {
	query := `
		UPDATE penalties
		SET status = $1, waive_reason = $2, waived_by = $3, updated_at = $4
		WHERE penalty_id = $5 AND status = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		models.PenaltyWaived, waiveReason, waivedBy, time.Now().UTC(),
		penaltyID, models.PenaltyPending)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		existing, err := r.GetPenaltyByID(ctx, penaltyID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ErrNotFound
		}
		return nil, ErrConflict // Already paid or waived
	}

	return r.GetPenaltyByID(ctx, penaltyID)
}

// CleanupDuplicatePenalties deletes every non-Paid row shadowed by a newer
// non-Paid row for the same key. Safe to run repeatedly; an already clean
// table deletes nothing.
func (r *PostgresRepository) CleanupDuplicatePenalties(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM penalties p
		WHERE p.status != $1
		AND EXISTS (
			SELECT 1 FROM penalties p2
			WHERE p2.transaction_id = p.transaction_id
			AND p2.user_id = p.user_id
			AND p2.status != $1
			AND p2.penalty_id > p.penalty_id
		)
	`

	result, err := r.db.ExecContext(ctx, query, models.PenaltyPaid)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
