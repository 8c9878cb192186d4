package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/shopspring/decimal"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserStatus(ctx context.Context, userID, status string) error
	UpdateUserProfileImage(ctx context.Context, userID, imagePath string) error
	ListUsersByStatus(ctx context.Context, status string) ([]models.User, error)

	// Book operations
	CreateBook(ctx context.Context, book *models.Book) error
	GetBookByID(ctx context.Context, id string) (*models.Book, error)
	ListBooks(ctx context.Context, search string) ([]models.Book, error)
	UpdateBookCover(ctx context.Context, bookID, coverPath string) error

	// Research paper operations
	CreateResearchPaper(ctx context.Context, paper *models.ResearchPaper) error
	GetResearchPaperByID(ctx context.Context, id string) (*models.ResearchPaper, error)
	ListResearchPapers(ctx context.Context, search string) ([]models.ResearchPaper, error)

	// Transaction operations
	CreateBorrowTransaction(ctx context.Context, txn *models.Transaction) error
	ReturnTransaction(ctx context.Context, transactionID string) (*models.Transaction, error)
	GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error)
	ListOverdueBorrowTransactions(ctx context.Context, asOf time.Time) ([]models.OverdueTransaction, error)
	ListUserBorrowTransactions(ctx context.Context, userID string) ([]models.OverdueTransaction, error)

	// Penalty operations
	ReconcilePenalty(ctx context.Context, transactionID, userID string, fine decimal.Decimal) (*ReconcileResult, error)
	GetActivePenalty(ctx context.Context, transactionID, userID string) (*models.Penalty, error)
	GetPenaltyByID(ctx context.Context, penaltyID int64) (*models.Penalty, error)
	ListPenalties(ctx context.Context, filter PenaltyFilter) ([]models.Penalty, int64, error)
	ListUserPenalties(ctx context.Context, userID string) ([]models.Penalty, decimal.Decimal, error)
	MarkPenaltyPaid(ctx context.Context, penaltyID int64, paymentMethod, notes string) (*models.Penalty, error)
	WaivePenalty(ctx context.Context, penaltyID int64, waiveReason, waivedBy string) (*models.Penalty, error)
	CleanupDuplicatePenalties(ctx context.Context) (int64, error)

	// Settings operations
	GetSettings(ctx context.Context) (*models.SystemSettings, error)
	UpdateSettings(ctx context.Context, settings *models.SystemSettings) error

	// Activity log operations
	InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error
	ListActivityLogs(ctx context.Context, limit int) ([]models.ActivityLog, error)
}

// PenaltyFilter narrows ListPenalties results
type PenaltyFilter struct {
	Status        string
	UserID        string
	TransactionID string
	Page          int
	PageSize      int
}

// ReconcileResult describes what a reconciliation run did for one key
type ReconcileResult struct {
	Created   bool
	Updated   bool
	Skipped   bool
	PenaltyID int64
}

// ErrNotFound is returned when a row targeted by an update does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a status transition is not allowed
var ErrConflict = errors.New("conflict")

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, school_id, email, name, password, position, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	// Generate a new UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Position == "" {
		user.Position = models.PositionStudent
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Status == "" {
		user.Status = models.UserStatusPending
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.SchoolID, user.Email, user.Name, user.Password,
		user.Position, user.Role, user.Status, user.CreatedAt, user.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT * FROM users WHERE email = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) UpdateUserStatus(ctx context.Context, userID, status string) error {
	query := `UPDATE users SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) UpdateUserProfileImage(ctx context.Context, userID, imagePath string) error {
	query := `UPDATE users SET profile_image = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, imagePath, time.Now().UTC(), userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) ListUsersByStatus(ctx context.Context, status string) ([]models.User, error) {
	query := `SELECT * FROM users WHERE status = $1 ORDER BY created_at ASC`

	var users []models.User
	err := r.db.SelectContext(ctx, &users, query, status)
	if err != nil {
		return nil, err
	}

	return users, nil
}

// Book repository methods
func (r *PostgresRepository) CreateBook(ctx context.Context, book *models.Book) error {
	query := `
		INSERT INTO books (id, title, author, isbn, category, cover_image, total_copies, available_copies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	if book.TotalCopies == 0 {
		book.TotalCopies = 1
	}
	book.AvailableCopies = book.TotalCopies

	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		book.ID, book.Title, book.Author, book.ISBN, book.Category, book.CoverImage,
		book.TotalCopies, book.AvailableCopies, book.CreatedAt, book.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetBookByID(ctx context.Context, id string) (*models.Book, error) {
	query := `SELECT * FROM books WHERE id = $1`

	var book models.Book
	err := r.db.GetContext(ctx, &book, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Book not found
		}
		return nil, err
	}

	return &book, nil
}

func (r *PostgresRepository) ListBooks(ctx context.Context, search string) ([]models.Book, error) {
	query := `SELECT * FROM books`
	args := []interface{}{}

	if search != "" {
		query += ` WHERE title ILIKE $1 OR author ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	query += ` ORDER BY title ASC`

	var books []models.Book
	err := r.db.SelectContext(ctx, &books, query, args...)
	if err != nil {
		return nil, err
	}

	return books, nil
}

func (r *PostgresRepository) UpdateBookCover(ctx context.Context, bookID, coverPath string) error {
	query := `UPDATE books SET cover_image = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, coverPath, time.Now().UTC(), bookID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Research paper repository methods
func (r *PostgresRepository) CreateResearchPaper(ctx context.Context, paper *models.ResearchPaper) error {
	query := `
		INSERT INTO research_papers (id, title, authors, year, department, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if paper.ID == "" {
		paper.ID = uuid.New().String()
	}
	paper.Available = true

	now := time.Now().UTC()
	paper.CreatedAt = now
	paper.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		paper.ID, paper.Title, paper.Authors, paper.Year, paper.Department,
		paper.Available, paper.CreatedAt, paper.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetResearchPaperByID(ctx context.Context, id string) (*models.ResearchPaper, error) {
	query := `SELECT * FROM research_papers WHERE id = $1`

	var paper models.ResearchPaper
	err := r.db.GetContext(ctx, &paper, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Paper not found
		}
		return nil, err
	}

	return &paper, nil
}

func (r *PostgresRepository) ListResearchPapers(ctx context.Context, search string) ([]models.ResearchPaper, error) {
	query := `SELECT * FROM research_papers`
	args := []interface{}{}

	if search != "" {
		query += ` WHERE title ILIKE $1 OR authors ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	query += ` ORDER BY title ASC`

	var papers []models.ResearchPaper
	err := r.db.SelectContext(ctx, &papers, query, args...)
	if err != nil {
		return nil, err
	}

	return papers, nil
}

// Transaction repository methods
func (r *PostgresRepository) CreateBorrowTransaction(ctx context.Context, txn *models.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if txn.TransactionID == "" {
		txn.TransactionID = uuid.New().String()
	}

	now := time.Now().UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	txn.TransactionType = models.TransactionBorrow
	txn.Status = "active"

	// Claim the copy before recording the transaction so an unavailable
	// item fails the whole borrow.
	if txn.BookID.Valid {
		var result sql.Result
		result, err = tx.ExecContext(ctx,
			`UPDATE books SET available_copies = available_copies - 1, updated_at = $1
			WHERE id = $2 AND available_copies > 0`,
			now, txn.BookID.String)
		if err != nil {
			return err
		}
		var rows int64
		rows, err = result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			err = ErrConflict
			return err
		}
	} else if txn.ResearchPaperID.Valid {
		var result sql.Result
		result, err = tx.ExecContext(ctx,
			`UPDATE research_papers SET available = FALSE, updated_at = $1
			WHERE id = $2 AND available = TRUE`,
			now, txn.ResearchPaperID.String)
		if err != nil {
			return err
		}
		var rows int64
		rows, err = result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			err = ErrConflict
			return err
		}
	}

	query := `
		INSERT INTO transactions (transaction_id, user_id, book_id, research_paper_id, transaction_type, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = tx.ExecContext(ctx, query,
		txn.TransactionID, txn.UserID, txn.BookID, txn.ResearchPaperID,
		txn.TransactionType, txn.Status, txn.DueDate, txn.CreatedAt, txn.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) ReturnTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var txn models.Transaction
	err = tx.QueryRowContext(ctx,
		`SELECT transaction_id, user_id, book_id, research_paper_id, transaction_type, status, due_date, returned_at, created_at, updated_at
		FROM transactions WHERE transaction_id = $1 FOR UPDATE`,
		transactionID).Scan(
		&txn.TransactionID, &txn.UserID, &txn.BookID, &txn.ResearchPaperID,
		&txn.TransactionType, &txn.Status, &txn.DueDate, &txn.ReturnedAt,
		&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return nil, err
	}

	if txn.TransactionType != models.TransactionBorrow || txn.ReturnedAt != nil {
		err = ErrConflict
		return nil, err
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE transactions SET transaction_type = $1, status = 'returned', returned_at = $2, updated_at = $2
		WHERE transaction_id = $3`,
		models.TransactionReturn, now, transactionID)
	if err != nil {
		return nil, err
	}

	if txn.BookID.Valid {
		_, err = tx.ExecContext(ctx,
			`UPDATE books SET available_copies = available_copies + 1, updated_at = $1 WHERE id = $2`,
			now, txn.BookID.String)
		if err != nil {
			return nil, err
		}
	} else if txn.ResearchPaperID.Valid {
		_, err = tx.ExecContext(ctx,
			`UPDATE research_papers SET available = TRUE, updated_at = $1 WHERE id = $2`,
			now, txn.ResearchPaperID.String)
		if err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	txn.TransactionType = models.TransactionReturn
	txn.Status = "returned"
	txn.ReturnedAt = &now
	txn.UpdatedAt = now
	return &txn, nil
}

func (r *PostgresRepository) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	query := `SELECT * FROM transactions WHERE transaction_id = $1`

	var txn models.Transaction
	err := r.db.GetContext(ctx, &txn, query, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Transaction not found
		}
		return nil, err
	}

	return &txn, nil
}

func (r *PostgresRepository) ListOverdueBorrowTransactions(ctx context.Context, asOf time.Time) ([]models.OverdueTransaction, error) {
	query := `
		SELECT t.*, u.position FROM transactions t
		JOIN users u ON u.id = t.user_id
		WHERE t.transaction_type = $1 AND t.due_date IS NOT NULL AND t.due_date < $2
		ORDER BY t.due_date ASC
	`

	var txns []models.OverdueTransaction
	err := r.db.SelectContext(ctx, &txns, query, models.TransactionBorrow, asOf)
	if err != nil {
		return nil, err
	}

	return txns, nil
}

func (r *PostgresRepository) ListUserBorrowTransactions(ctx context.Context, userID string) ([]models.OverdueTransaction, error) {
	query := `
		SELECT t.*, u.position FROM transactions t
		JOIN users u ON u.id = t.user_id
		WHERE t.user_id = $1 AND t.transaction_type = $2
		ORDER BY t.due_date ASC
	`

	var txns []models.OverdueTransaction
	err := r.db.SelectContext(ctx, &txns, query, userID, models.TransactionBorrow)
	if err != nil {
		return nil, err
	}

	return txns, nil
}

// Settings repository methods
func (r *PostgresRepository) GetSettings(ctx context.Context) (*models.SystemSettings, error) {
	query := `SELECT * FROM system_settings WHERE id = 1`

	var settings models.SystemSettings
	err := r.db.GetContext(ctx, &settings, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Settings row not seeded yet
		}
		return nil, err
	}

	return &settings, nil
}

func (r *PostgresRepository) UpdateSettings(ctx context.Context, settings *models.SystemSettings) error {
	query := `
		INSERT INTO system_settings (id, student_daily_fine, faculty_daily_fine, student_borrow_days, faculty_borrow_days, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			student_daily_fine = EXCLUDED.student_daily_fine,
			faculty_daily_fine = EXCLUDED.faculty_daily_fine,
			student_borrow_days = EXCLUDED.student_borrow_days,
			faculty_borrow_days = EXCLUDED.faculty_borrow_days,
			updated_at = EXCLUDED.updated_at
	`

	settings.ID = 1
	settings.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		settings.StudentDailyFine, settings.FacultyDailyFine,
		settings.StudentBorrowDays, settings.FacultyBorrowDays, settings.UpdatedAt)

	return err
}

// Activity log repository methods
func (r *PostgresRepository) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (actor_id, action, details, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.ActorID, entry.Action, entry.Details, entry.CreatedAt)

	return err
}

func (r *PostgresRepository) ListActivityLogs(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT * FROM activity_logs ORDER BY created_at DESC LIMIT $1`

	var logs []models.ActivityLog
	err := r.db.SelectContext(ctx, &logs, query, limit)
	if err != nil {
		return nil, err
	}

	return logs, nil
}
