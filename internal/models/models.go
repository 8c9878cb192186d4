package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// User positions. Anything other than an empty string or PositionStudent is
// treated as faculty when selecting fine rates and borrow periods.
const (
	PositionStudent = "Student"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User account statuses
const (
	UserStatusPending  = "pending"
	UserStatusApproved = "approved"
	UserStatusRejected = "rejected"
)

// Transaction types
const (
	TransactionBorrow = "borrow"
	TransactionReturn = "return"
)

// Penalty statuses form a closed set; a row never carries a NULL status.
const (
	PenaltyPending = "Pending Payment"
	PenaltyPaid    = "Paid"
	PenaltyWaived  = "Waived"
)

// User represents a library patron or admin
type User struct {
	ID           string         `db:"id" json:"id"`
	SchoolID     string         `db:"school_id" json:"schoolId"`
	Email        string         `db:"email" json:"email"`
	Name         string         `db:"name" json:"name"`
	Password     string         `db:"password" json:"-"` // Password hash, not returned in JSON
	Position     string         `db:"position" json:"position"`
	Role         string         `db:"role" json:"role"`
	Status       string         `db:"status" json:"status"`
	ProfileImage sql.NullString `db:"profile_image" json:"profileImage,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
}

// IsFaculty reports whether the user is charged at the faculty rate.
func (u *User) IsFaculty() bool {
	return u.Position != "" && u.Position != PositionStudent
}

// Book represents a catalog book
type Book struct {
	ID              string         `db:"id" json:"id"`
	Title           string         `db:"title" json:"title"`
	Author          string         `db:"author" json:"author"`
	ISBN            sql.NullString `db:"isbn" json:"isbn,omitempty"`
	Category        sql.NullString `db:"category" json:"category,omitempty"`
	CoverImage      sql.NullString `db:"cover_image" json:"coverImage,omitempty"`
	TotalCopies     int            `db:"total_copies" json:"totalCopies"`
	AvailableCopies int            `db:"available_copies" json:"availableCopies"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
}

// ResearchPaper represents an archived research paper available for borrowing
type ResearchPaper struct {
	ID         string         `db:"id" json:"id"`
	Title      string         `db:"title" json:"title"`
	Authors    string         `db:"authors" json:"authors"`
	Year       sql.NullInt64  `db:"year" json:"year,omitempty"`
	Department sql.NullString `db:"department" json:"department,omitempty"`
	Available  bool           `db:"available" json:"available"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updatedAt"`
}

// Transaction represents one borrowed item by one user. Created on borrow,
// mutated on return, never deleted in normal flow.
type Transaction struct {
	TransactionID   string         `db:"transaction_id" json:"transactionId"`
	UserID          string         `db:"user_id" json:"userId"`
	BookID          sql.NullString `db:"book_id" json:"bookId,omitempty"`
	ResearchPaperID sql.NullString `db:"research_paper_id" json:"researchPaperId,omitempty"`
	TransactionType string         `db:"transaction_type" json:"transactionType"`
	Status          string         `db:"status" json:"status"`
	DueDate         *time.Time     `db:"due_date" json:"dueDate,omitempty"`
	ReturnedAt      *time.Time     `db:"returned_at" json:"returnedAt,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
}

// Penalty represents an assessed fine tied to one transaction/user pair.
// At most one row per (transaction_id, user_id) may have a status other
// than Paid; Paid rows accumulate as an audit trail.
type Penalty struct {
	PenaltyID     int64           `db:"penalty_id" json:"penaltyId"`
	TransactionID string          `db:"transaction_id" json:"transactionId"`
	UserID        string          `db:"user_id" json:"userId"`
	Fine          decimal.Decimal `db:"fine" json:"fine"`
	Status        string          `db:"status" json:"status"`
	PaymentMethod sql.NullString  `db:"payment_method" json:"paymentMethod,omitempty"`
	Notes         sql.NullString  `db:"notes" json:"notes,omitempty"`
	WaiveReason   sql.NullString  `db:"waive_reason" json:"waiveReason,omitempty"`
	WaivedBy      sql.NullString  `db:"waived_by" json:"waivedBy,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// OverdueTransaction is a borrow transaction joined with the borrower's
// position, used by the batch penalty drivers to pick the daily rate.
type OverdueTransaction struct {
	Transaction
	Position string `db:"position" json:"position"`
}

// SystemSettings is the process-wide configuration singleton (row id 1).
type SystemSettings struct {
	ID                int             `db:"id" json:"id"`
	StudentDailyFine  decimal.Decimal `db:"student_daily_fine" json:"studentDailyFine"`
	FacultyDailyFine  decimal.Decimal `db:"faculty_daily_fine" json:"facultyDailyFine"`
	StudentBorrowDays int             `db:"student_borrow_days" json:"studentBorrowDays"`
	FacultyBorrowDays int             `db:"faculty_borrow_days" json:"facultyBorrowDays"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

// ActivityLog is an append-only audit row
type ActivityLog struct {
	ID        int64          `db:"id" json:"id"`
	ActorID   sql.NullString `db:"actor_id" json:"actorId,omitempty"`
	Action    string         `db:"action" json:"action"`
	Details   sql.NullString `db:"details" json:"details,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}
