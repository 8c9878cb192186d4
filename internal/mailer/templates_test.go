package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAccountApproved(t *testing.T) {
	body, err := renderAccountApproved("Maria Santos")
	require.NoError(t, err)
	assert.Contains(t, body, "Maria Santos")
	assert.Contains(t, body, "approved")
}

func TestRenderAccountRejected(t *testing.T) {
	body, err := renderAccountRejected("Maria Santos")
	require.NoError(t, err)
	assert.Contains(t, body, "Maria Santos")
	assert.Contains(t, body, "front desk")
}

func TestRenderOverdueNotice(t *testing.T) {
	body, err := renderOverdueNotice(OverdueNoticeData{
		Name:        "Maria Santos",
		ItemTitle:   "Introduction to Algorithms",
		DueDate:     "2025-08-20",
		DaysOverdue: 5,
		Fine:        "25.00",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Introduction to Algorithms")
	assert.Contains(t, body, "2025-08-20")
	assert.Contains(t, body, "5 day(s) overdue")
	assert.Contains(t, body, "₱25.00")
}

func TestRenderOverdueNoticeEscapesHTML(t *testing.T) {
	body, err := renderOverdueNotice(OverdueNoticeData{
		Name:      "<script>alert(1)</script>",
		ItemTitle: "Safe Title",
	})
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestRenderPaymentReceipt(t *testing.T) {
	body, err := renderPaymentReceipt(ReceiptData{
		Name:          "Maria Santos",
		PenaltyID:     7,
		Amount:        "25.00",
		PaymentMethod: "gcash",
		PaidAt:        "2025-08-25 10:30",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "#7")
	assert.Contains(t, body, "₱25.00")
	assert.Contains(t, body, "gcash")
}
