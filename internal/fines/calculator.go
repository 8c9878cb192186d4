package fines

import (
	"time"

	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/shopspring/decimal"
)

// Fine statuses returned by Calculate
const (
	StatusNoDueDate = "no_due_date"
	StatusOnTime    = "on_time"
	StatusOverdue   = "overdue"
)

// Result holds the outcome of a fine calculation
type Result struct {
	Fine        decimal.Decimal
	DaysOverdue int
	Status      string
}

// Calculate computes the fine owed for an item against its due date.
// A nil due date yields StatusNoDueDate; an item due today (or later) is
// on time. Days overdue are rounded up, so one hour past due counts as a
// full day. No cap is applied to the product.
func Calculate(dueDate *time.Time, now time.Time, dailyRate decimal.Decimal) Result {
	if dueDate == nil {
		return Result{Fine: decimal.Zero, DaysOverdue: 0, Status: StatusNoDueDate}
	}

	overdue := now.Sub(*dueDate)
	daysOverdue := int(overdue.Hours() / 24)
	if overdue > 0 && overdue%(24*time.Hour) != 0 {
		daysOverdue++
	}

	if daysOverdue <= 0 {
		return Result{Fine: decimal.Zero, DaysOverdue: 0, Status: StatusOnTime}
	}

	fine := dailyRate.Mul(decimal.NewFromInt(int64(daysOverdue)))
	return Result{Fine: fine, DaysOverdue: daysOverdue, Status: StatusOverdue}
}

// RateForPosition selects the daily rate for a borrower. An empty position
// or the literal "Student" is charged at the student rate; any other value
// is treated as faculty.
func RateForPosition(settings *models.SystemSettings, position string) decimal.Decimal {
	if position == "" || position == models.PositionStudent {
		return settings.StudentDailyFine
	}
	return settings.FacultyDailyFine
}

// BorrowDaysForPosition selects the borrow period length for a borrower.
func BorrowDaysForPosition(settings *models.SystemSettings, position string) int {
	if position == "" || position == models.PositionStudent {
		return settings.StudentBorrowDays
	}
	return settings.FacultyBorrowDays
}
