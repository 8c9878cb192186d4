package models

import "github.com/shopspring/decimal"

// Request models
type RegisterRequest struct {
	SchoolID string `json:"schoolId" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Position string `json:"position"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ApproveUserRequest struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}

type BorrowRequest struct {
	BookID          string `json:"bookId"`
	ResearchPaperID string `json:"researchPaperId"`
}

type PayPenaltyRequest struct {
	PaymentMethod string `json:"paymentMethod" binding:"required"`
	Notes         string `json:"notes"`
}

type WaivePenaltyRequest struct {
	WaiveReason string `json:"waiveReason" binding:"required"`
}

type UpdateSettingsRequest struct {
	StudentDailyFine  *decimal.Decimal `json:"studentDailyFine"`
	FacultyDailyFine  *decimal.Decimal `json:"facultyDailyFine"`
	StudentBorrowDays *int             `json:"studentBorrowDays"`
	FacultyBorrowDays *int             `json:"facultyBorrowDays"`
}

type ChatbotRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message" binding:"required"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Token     string `json:"token,omitempty"`
	Role      string `json:"role,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalRows  int64 `json:"totalRows"`
	TotalPages int   `json:"totalPages"`
}

type PenaltyListResponse struct {
	Status     string     `json:"status"`
	Penalties  []Penalty  `json:"penalties"`
	Pagination Pagination `json:"pagination"`
}

type UserPenaltiesResponse struct {
	Status     string          `json:"status"`
	UserID     string          `json:"userId"`
	TotalCount int             `json:"totalCount"`
	TotalFines decimal.Decimal `json:"totalFines"`
	Penalties  []Penalty       `json:"penalties"`
}

type BatchPenaltyResponse struct {
	Status           string       `json:"status"`
	TotalProcessed   int          `json:"totalProcessed"`
	PenaltiesCreated int          `json:"penaltiesCreated"`
	PenaltiesUpdated int          `json:"penaltiesUpdated"`
	PenaltiesSkipped int          `json:"penaltiesSkipped"`
	Errors           []BatchError `json:"errors"`
}

type BatchError struct {
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
}

type CleanupResponse struct {
	Status         string `json:"status"`
	RecordsDeleted int64  `json:"recordsDeleted"`
}

type FinePreviewItem struct {
	TransactionID string          `json:"transactionId"`
	ItemTitle     string          `json:"itemTitle"`
	DueDate       string          `json:"dueDate,omitempty"`
	DaysOverdue   int             `json:"daysOverdue"`
	Fine          decimal.Decimal `json:"fine"`
	FineStatus    string          `json:"fineStatus"`
}

type FinePreviewResponse struct {
	Status    string            `json:"status"`
	UserID    string            `json:"userId"`
	TotalFine decimal.Decimal   `json:"totalFine"`
	Items     []FinePreviewItem `json:"items"`
}

type TransactionResponse struct {
	Status      string       `json:"status"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

type ChatbotResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
