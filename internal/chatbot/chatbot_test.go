package chatbot_test

import (
	"context"
	"errors"
	"testing"

	"github.com/libtrack/libtrack-server/internal/chatbot"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type stubLookup struct {
	total decimal.Decimal
	err   error
}

func (s *stubLookup) ListUserPenalties(ctx context.Context, userID string) ([]models.Penalty, decimal.Decimal, error) {
	return nil, s.total, s.err
}

func TestReplyKeepsSessionAcrossTurns(t *testing.T) {
	bot := chatbot.New(&stubLookup{})

	sessionID, reply := bot.Reply(context.Background(), "", "", "hello")
	assert.NotEmpty(t, sessionID)
	assert.Contains(t, reply, "Hello")

	secondID, _ := bot.Reply(context.Background(), sessionID, "", "what are your hours?")
	assert.Equal(t, sessionID, secondID)
	assert.Equal(t, 1, bot.SessionCount())
}

func TestReplyHoursAndBorrowRules(t *testing.T) {
	bot := chatbot.New(&stubLookup{})

	_, reply := bot.Reply(context.Background(), "", "", "When do you open?")
	assert.Contains(t, reply, "8:00 AM")

	_, reply = bot.Reply(context.Background(), "", "", "how long can I borrow a book")
	assert.Contains(t, reply, "7 days")
	assert.Contains(t, reply, "14 days")
}

func TestFinesAnswerWithoutLogin(t *testing.T) {
	bot := chatbot.New(&stubLookup{})

	_, reply := bot.Reply(context.Background(), "", "", "how much is the fine?")
	assert.Contains(t, reply, "₱5")
	assert.Contains(t, reply, "₱11")
}

func TestFinesAnswerForLoggedInUser(t *testing.T) {
	bot := chatbot.New(&stubLookup{total: decimal.RequireFromString("35.00")})

	_, reply := bot.Reply(context.Background(), "", "user-1", "do I owe any penalties?")
	assert.Contains(t, reply, "₱35.00")
}

func TestFinesAnswerNoDebt(t *testing.T) {
	bot := chatbot.New(&stubLookup{total: decimal.Zero})

	_, reply := bot.Reply(context.Background(), "", "user-1", "do I have fines")
	assert.Contains(t, reply, "no outstanding fines")
}

func TestFinesAnswerLookupFailure(t *testing.T) {
	bot := chatbot.New(&stubLookup{err: errors.New("db down")})

	_, reply := bot.Reply(context.Background(), "", "user-1", "my fines please")
	assert.Contains(t, reply, "try again")
}

func TestUnknownMessageFallsBack(t *testing.T) {
	bot := chatbot.New(&stubLookup{})

	_, reply := bot.Reply(context.Background(), "", "", "quantum entanglement")
	assert.Contains(t, reply, "not sure")
}
