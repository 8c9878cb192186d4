package chatbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// PenaltyLookup is the slice of the repository the bot needs
type PenaltyLookup interface {
	ListUserPenalties(ctx context.Context, userID string) ([]models.Penalty, decimal.Decimal, error)
}

// Session tracks a short-lived conversation so follow-up questions can
// reuse context (for example the user id given earlier). Sessions expire
// from the cache after idle timeout; the store is bounded by TTL eviction
// rather than growing forever.
type Session struct {
	ID       string
	UserID   string
	LastSeen time.Time
}

// Bot answers library questions from a fixed set of keyword rules
type Bot struct {
	repo     PenaltyLookup
	sessions *cache.Cache
}

// New creates a bot with a 30 minute idle session TTL
func New(repo PenaltyLookup) *Bot {
	return &Bot{
		repo:     repo,
		sessions: cache.New(30*time.Minute, 10*time.Minute),
	}
}

// Reply answers one message. An empty sessionID starts a new session; the
// returned session id should be echoed back by the client on the next turn.
func (b *Bot) Reply(ctx context.Context, sessionID, userID, message string) (string, string) {
	session := b.getOrCreateSession(sessionID, userID)

	reply := b.answer(ctx, session, strings.ToLower(strings.TrimSpace(message)))

	session.LastSeen = time.Now().UTC()
	b.sessions.SetDefault(session.ID, session)

	return session.ID, reply
}

// SessionCount reports how many sessions are alive, for the admin dashboard
func (b *Bot) SessionCount() int {
	return b.sessions.ItemCount()
}

func (b *Bot) getOrCreateSession(sessionID, userID string) *Session {
	if sessionID != "" {
		if cached, ok := b.sessions.Get(sessionID); ok {
			session := cached.(*Session)
			if userID != "" {
				session.UserID = userID
			}
			return session
		}
	}

	return &Session{
		ID:     uuid.New().String(),
		UserID: userID,
	}
}

func (b *Bot) answer(ctx context.Context, session *Session, message string) string {
	switch {
	case containsAny(message, "hello", "hi", "good morning", "good afternoon"):
		return "Hello! I can help you with borrowing rules, library hours, fines, and your current penalties. What would you like to know?"

	case containsAny(message, "hour", "open", "close"):
		return "The library is open Monday to Friday, 8:00 AM to 8:00 PM, and Saturday 9:00 AM to 5:00 PM."

	case containsAny(message, "borrow", "how many", "limit"):
		return "Students may borrow items for 7 days and faculty for 14 days. Research papers are borrowed the same way as books."

	case containsAny(message, "fine", "penalty", "overdue", "owe"):
		return b.answerFines(ctx, session)

	case containsAny(message, "renew", "extend"):
		return "Renewals are handled at the front desk. Overdue items cannot be renewed until their fines are settled."

	case containsAny(message, "pay", "payment"):
		return "Fines can be paid at the library kiosk or the front desk. You will receive an email receipt once the payment is recorded."

	case containsAny(message, "thank"):
		return "You're welcome! Is there anything else I can help with?"

	default:
		return "I'm not sure I understood that. You can ask me about library hours, borrowing limits, renewals, or your fines."
	}
}

func (b *Bot) answerFines(ctx context.Context, session *Session) string {
	if session.UserID == "" {
		return "Fines accrue daily once an item is overdue: ₱5 per day for students and ₱11 per day for faculty. Log in and ask again to see your own balance."
	}

	_, total, err := b.repo.ListUserPenalties(ctx, session.UserID)
	if err != nil {
		return "I couldn't look up your penalties right now. Please try again in a moment."
	}

	if total.IsZero() {
		return "Good news! You have no outstanding fines."
	}

	return fmt.Sprintf("You currently owe ₱%s in pending fines. You can settle them at the kiosk or the front desk.", total.StringFixed(2))
}

func containsAny(message string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	return false
}
