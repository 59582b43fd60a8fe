package reconciliation

import (
	"context"
	"time"

	"cashdesk-watcher/internal/gateway"
	"cashdesk-watcher/internal/models"
	"cashdesk-watcher/internal/services/notification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RequestStore is the shared pending-request ledger. All mutations are
// single-row, guard-conditioned updates.
type RequestStore interface {
	FindMatchCandidate(amount decimal.Decimal, since time.Time) (*models.DepositRequest, error)
	GetByID(id uuid.UUID) (*models.DepositRequest, error)
	MarkBankReceived(id uuid.UUID, at time.Time) (bool, error)
	MarkCompleted(id uuid.UUID, at time.Time) (bool, error)
	SetAccountID(id uuid.UUID, accountID string) error
	ListStalled(olderThan time.Time) ([]models.DepositRequest, error)
}

// ProfileStore resolves a user's saved bookmaker account id.
type ProfileStore interface {
	AccountID(userID int64, bookmaker string) (string, error)
}

// Gateway executes the deposit against the bookmaker cashdesk.
type Gateway interface {
	DepositExecute(ctx context.Context, bookmaker, accountID string, amount decimal.Decimal) (*gateway.DepositResult, error)
}

// Notifier delivers the user notification and edits the operator-facing
// message once a request auto-completes.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, text string) error
	EditOperatorMessage(ctx context.Context, chatID int64, messageID int, text string) error
}

// AdminSync mirrors the completed status to the external admin record.
type AdminSync interface {
	SyncCompleted(ctx context.Context, requestID uuid.UUID) error
}

// Recorder is the append-only audit trail plus liveness store.
type Recorder interface {
	LogAttempt(bank string, amount decimal.Decimal, matched bool, note string, details map[string]interface{})
	UpdateHealth(key string)
}

// Outcome tags the result of one processing step. Expected misses are
// outcomes, not errors.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeBankReceived
	OutcomeDuplicate
	OutcomeNoMatch
	OutcomeAccountUnresolved
	OutcomeNotReady
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeBankReceived:
		return "bank_received"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeAccountUnresolved:
		return "account_unresolved"
	case OutcomeNotReady:
		return "not_ready"
	default:
		return "error"
	}
}

// LeavesUnseen reports whether the source email must stay unread:
// misses wait for manual follow-up or a later-created request, and
// errored messages must be rescanned once the store recovers. The
// bank_received guard makes that reprocessing safe.
func (o Outcome) LeavesUnseen() bool {
	return o == OutcomeNoMatch || o == OutcomeAccountUnresolved || o == OutcomeError
}

// Service owns the matching and confirmation halves of reconciliation.
type Service struct {
	requests  RequestStore
	profiles  ProfileStore
	gateway   Gateway
	notifier  Notifier
	adminSync AdminSync
	recorder  Recorder
	bank      string
	log       *zap.Logger

	now            func() time.Time
	gatewayTimeout time.Duration
}

func NewService(
	requests RequestStore,
	profiles ProfileStore,
	gw Gateway,
	notifier Notifier,
	adminSync AdminSync,
	recorder Recorder,
	bank string,
	log *zap.Logger,
) *Service {
	return &Service{
		requests:       requests,
		profiles:       profiles,
		gateway:        gw,
		notifier:       notifier,
		adminSync:      adminSync,
		recorder:       recorder,
		bank:           bank,
		log:            log,
		now:            time.Now,
		gatewayTimeout: 30 * time.Second,
	}
}

// HandleNotification runs the full per-notification pipeline: match,
// confirm, audit. It never returns an error; every outcome is audited
// and the caller only needs the tag to decide seen-marking.
func (s *Service) HandleNotification(ctx context.Context, n *notification.BankNotification) Outcome {
	defer s.recorder.UpdateHealth("last_processed_at")

	match, miss, err := s.FindMatch(n.Amount)
	if err != nil {
		s.log.Error("match lookup failed",
			zap.String("amount", n.Amount.StringFixed(2)),
			zap.Error(err))
		s.recorder.LogAttempt(n.Bank, n.Amount, false, "store_error", nil)
		return OutcomeError
	}
	if match == nil {
		s.recorder.LogAttempt(n.Bank, n.Amount, false, miss.String(), map[string]interface{}{
			"occurred_at": n.OccurredAt,
		})
		return miss
	}

	outcome, note := s.Confirm(ctx, match.Request, match.AccountID, n.Amount)
	s.recorder.LogAttempt(n.Bank, n.Amount, true, note, map[string]interface{}{
		"request_id": match.Request.ID.String(),
		"user_id":    match.Request.UserID,
		"bookmaker":  match.Request.Bookmaker,
	})
	return outcome
}
