package reconciliation

import (
	"context"
	"fmt"

	"cashdesk-watcher/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Confirm drives the two-phase completion for a matched request. The
// first phase flips bank_received exactly once; the second runs only if
// the user's receipt already arrived. Returns the outcome and the audit
// note.
func (s *Service) Confirm(ctx context.Context, req *models.DepositRequest, accountID string, amount decimal.Decimal) (Outcome, string) {
	acquired, err := s.requests.MarkBankReceived(req.ID, s.now())
	if err != nil {
		s.log.Error("bank_received update failed",
			zap.String("request_id", req.ID.String()), zap.Error(err))
		return OutcomeError, "store_error"
	}
	if !acquired {
		// repeat delivery of the same notification
		return OutcomeDuplicate, "duplicate"
	}

	fresh, err := s.requests.GetByID(req.ID)
	if err != nil {
		// the flag is set; the receipt handler or the sweep will finish
		s.log.Error("request re-read failed after bank_received",
			zap.String("request_id", req.ID.String()), zap.Error(err))
		return OutcomeBankReceived, "bank_received"
	}
	if !fresh.ReceiptReceived {
		return OutcomeBankReceived, "bank_received"
	}

	return s.complete(ctx, fresh, accountID, amount)
}

// CompleteIfReady is the receipt-arrived side of the two-phase race,
// also used by the manual retry endpoint: if money already arrived and
// the receipt is in, run the completion phase.
func (s *Service) CompleteIfReady(ctx context.Context, id uuid.UUID) (Outcome, string, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return OutcomeError, "store_error", err
	}
	if req.Status != models.StatusBankReceived || !req.ReceiptReceived {
		return OutcomeNotReady, "not_ready", nil
	}

	accountID, err := s.resolveAccountID(req)
	if err != nil {
		return OutcomeError, "store_error", err
	}
	if accountID == "" {
		return OutcomeAccountUnresolved, "account_unresolved", nil
	}

	outcome, note := s.complete(ctx, req, accountID, req.Amount)
	return outcome, note, nil
}

// complete executes the deposit and finishes the request. The gateway
// call is the only blocking prerequisite; notification, admin sync and
// the operator-message edit are independently best-effort. A gateway
// failure leaves the request in bank_received for a later retry.
func (s *Service) complete(ctx context.Context, req *models.DepositRequest, accountID string, amount decimal.Decimal) (Outcome, string) {
	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	res, err := s.gateway.DepositExecute(gctx, req.Bookmaker, accountID, amount)
	if err != nil || res == nil || !res.Success {
		s.log.Error("deposit execute failed",
			zap.String("request_id", req.ID.String()),
			zap.String("bookmaker", req.Bookmaker),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err))
		return OutcomeBankReceived, "gateway_failed"
	}

	now := s.now()
	completed, err := s.requests.MarkCompleted(req.ID, now)
	if err != nil {
		s.log.Error("completion update failed",
			zap.String("request_id", req.ID.String()), zap.Error(err))
		return OutcomeBankReceived, "store_error"
	}
	if !completed {
		// a concurrent retry path won the status transition
		return OutcomeDuplicate, "duplicate"
	}

	elapsed := int(now.Sub(req.CreatedAt).Seconds())

	if err := s.notifier.NotifyUser(ctx, req.UserID,
		fmt.Sprintf("Deposit of %s confirmed and credited automatically in %d s.", amount.StringFixed(2), elapsed)); err != nil {
		s.log.Warn("user notification failed",
			zap.String("request_id", req.ID.String()), zap.Error(err))
	}
	if err := s.adminSync.SyncCompleted(ctx, req.ID); err != nil {
		s.log.Warn("admin status sync failed",
			zap.String("request_id", req.ID.String()), zap.Error(err))
	}
	if req.AdminChatID != nil && req.AdminMessageID != nil {
		badge := fmt.Sprintf("✅ auto-completed in %d s", elapsed)
		if err := s.notifier.EditOperatorMessage(ctx, *req.AdminChatID, *req.AdminMessageID, badge); err != nil {
			s.log.Warn("operator message edit failed",
				zap.String("request_id", req.ID.String()), zap.Error(err))
		}
	}

	return OutcomeCompleted, "completed"
}
