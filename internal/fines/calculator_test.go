package fines_test

import (
	"testing"
	"time"

	"github.com/libtrack/libtrack-server/internal/fines"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateNoDueDate(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	result := fines.Calculate(nil, now, decimal.NewFromInt(5))

	assert.Equal(t, fines.StatusNoDueDate, result.Status)
	assert.True(t, result.Fine.IsZero())
	assert.Equal(t, 0, result.DaysOverdue)
}

func TestCalculateDueTodayIsOnTime(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	due := now

	result := fines.Calculate(&due, now, decimal.NewFromInt(5))

	assert.Equal(t, fines.StatusOnTime, result.Status)
	assert.True(t, result.Fine.IsZero())
	assert.Equal(t, 0, result.DaysOverdue)
}

func TestCalculateDueInFuture(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(72 * time.Hour)

	result := fines.Calculate(&due, now, decimal.NewFromInt(5))

	assert.Equal(t, fines.StatusOnTime, result.Status)
	assert.True(t, result.Fine.IsZero())
}

func TestCalculateFiveDaysOverdue(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(-5 * 24 * time.Hour)

	result := fines.Calculate(&due, now, decimal.NewFromInt(5))

	assert.Equal(t, fines.StatusOverdue, result.Status)
	assert.Equal(t, 5, result.DaysOverdue)
	assert.True(t, result.Fine.Equal(decimal.NewFromInt(25)),
		"expected fine 25, got %s", result.Fine)
}

func TestCalculatePartialDayRoundsUp(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(-1 * time.Hour)

	result := fines.Calculate(&due, now, decimal.NewFromInt(5))

	assert.Equal(t, fines.StatusOverdue, result.Status)
	assert.Equal(t, 1, result.DaysOverdue)
	assert.True(t, result.Fine.Equal(decimal.NewFromInt(5)))
}

func TestCalculateDecimalRate(t *testing.T) {
	now := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	due := now.Add(-3 * 24 * time.Hour)
	rate := decimal.RequireFromString("2.50")

	result := fines.Calculate(&due, now, rate)

	assert.Equal(t, 3, result.DaysOverdue)
	assert.True(t, result.Fine.Equal(decimal.RequireFromString("7.50")))
}

func TestCalculateIsIdempotent(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(-10 * 24 * time.Hour)
	rate := decimal.NewFromInt(11)

	first := fines.Calculate(&due, now, rate)
	second := fines.Calculate(&due, now, rate)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.DaysOverdue, second.DaysOverdue)
	assert.True(t, first.Fine.Equal(second.Fine))
}

func TestRateForPosition(t *testing.T) {
	settings := &models.SystemSettings{
		StudentDailyFine: decimal.NewFromInt(5),
		FacultyDailyFine: decimal.NewFromInt(11),
	}

	assert.True(t, fines.RateForPosition(settings, "").Equal(decimal.NewFromInt(5)))
	assert.True(t, fines.RateForPosition(settings, "Student").Equal(decimal.NewFromInt(5)))
	assert.True(t, fines.RateForPosition(settings, "Professor").Equal(decimal.NewFromInt(11)))
	assert.True(t, fines.RateForPosition(settings, "Librarian").Equal(decimal.NewFromInt(11)))
}

func TestBorrowDaysForPosition(t *testing.T) {
	settings := &models.SystemSettings{
		StudentBorrowDays: 7,
		FacultyBorrowDays: 14,
	}

	assert.Equal(t, 7, fines.BorrowDaysForPosition(settings, "Student"))
	assert.Equal(t, 14, fines.BorrowDaysForPosition(settings, "Dean"))
}
