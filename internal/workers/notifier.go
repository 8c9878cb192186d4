package workers

import (
	"context"
	"time"

	"github.com/libtrack/libtrack-server/internal/fines"
	"github.com/libtrack/libtrack-server/internal/mailer"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/libtrack/libtrack-server/internal/repository"
	"github.com/libtrack/libtrack-server/internal/service"
	"github.com/libtrack/libtrack-server/internal/utils"
)

// Notifier periodically reconciles overdue penalties and emails borrowers
// whose items are late. One notice per overdue item per run.
type Notifier struct {
	repo     repository.Repository
	svc      service.Service
	mail     mailer.Mailer
	logger   *utils.Logger
	interval time.Duration
}

// NewNotifier creates a notifier that runs every interval
func NewNotifier(repo repository.Repository, svc service.Service, mail mailer.Mailer, logger *utils.Logger, interval time.Duration) *Notifier {
	return &Notifier{
		repo:     repo,
		svc:      svc,
		mail:     mail,
		logger:   logger,
		interval: interval,
	}
}

// Start launches the worker loop. The first check runs immediately.
func (n *Notifier) Start(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	go func() {
		defer ticker.Stop()
		n.Check(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.Check(ctx)
			}
		}
	}()
}

// Check runs one reconcile-and-notify pass
func (n *Notifier) Check(ctx context.Context) {
	n.logger.Info("Worker: reconciling overdue penalties")

	batch, err := n.svc.ProcessOverdue(ctx)
	if err != nil {
		n.logger.Error("Worker: penalty reconciliation failed: %v", err)
		return
	}
	n.logger.Info("Worker: processed=%d created=%d updated=%d errors=%d",
		batch.TotalProcessed, batch.PenaltiesCreated, batch.PenaltiesUpdated, len(batch.Errors))

	settings, err := n.svc.EffectiveSettings(ctx)
	if err != nil {
		n.logger.Error("Worker: failed to load settings: %v", err)
		return
	}

	now := time.Now().UTC()
	overdue, err := n.repo.ListOverdueBorrowTransactions(ctx, now)
	if err != nil {
		n.logger.Error("Worker: failed to list overdue transactions: %v", err)
		return
	}

	for _, txn := range overdue {
		user, err := n.repo.GetUserByID(ctx, txn.UserID)
		if err != nil || user == nil {
			continue
		}

		rate := fines.RateForPosition(settings, txn.Position)
		result := fines.Calculate(txn.DueDate, now, rate)
		if result.Status != fines.StatusOverdue {
			continue
		}

		notice := mailer.OverdueNoticeData{
			Name:        user.Name,
			ItemTitle:   n.itemTitle(ctx, txn),
			DueDate:     txn.DueDate.Format("02 Jan 2006"),
			DaysOverdue: result.DaysOverdue,
			Fine:        result.Fine.StringFixed(2),
		}
		if err := n.mail.SendOverdueNotice(user.Email, notice); err != nil {
			n.logger.Warn("Worker: failed to mail overdue notice to %s: %v", user.Email, err)
		}
	}
}

func (n *Notifier) itemTitle(ctx context.Context, txn models.OverdueTransaction) string {
	if txn.BookID.Valid {
		if book, err := n.repo.GetBookByID(ctx, txn.BookID.String); err == nil && book != nil {
			return book.Title
		}
	}
	if txn.ResearchPaperID.Valid {
		if paper, err := n.repo.GetResearchPaperByID(ctx, txn.ResearchPaperID.String); err == nil && paper != nil {
			return paper.Title
		}
	}
	return "Library item"
}
