package reconciliation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// stallAge keeps the sweep off requests the watcher is still working on.
const stallAge = time.Minute

// RetryStalled re-drives the completion phase for requests stuck in
// bank_received with a receipt on file (earlier gateway failure or
// timeout). Completion stays guarded on status, so racing the watcher
// or the receipt hook is safe.
func (s *Service) RetryStalled(ctx context.Context) {
	defer s.recorder.UpdateHealth("last_sweep_at")

	stalled, err := s.requests.ListStalled(s.now().Add(-stallAge))
	if err != nil {
		s.log.Error("stalled request listing failed", zap.Error(err))
		return
	}

	for i := range stalled {
		req := &stalled[i]

		accountID, err := s.resolveAccountID(req)
		if err != nil {
			s.log.Error("account resolution failed during sweep",
				zap.String("request_id", req.ID.String()), zap.Error(err))
			continue
		}
		if accountID == "" {
			s.log.Warn("stalled request has no resolvable account id",
				zap.String("request_id", req.ID.String()))
			continue
		}

		outcome, note := s.complete(ctx, req, accountID, req.Amount)
		s.recorder.LogAttempt(s.bank, req.Amount, true, "retry_"+note, map[string]interface{}{
			"request_id": req.ID.String(),
			"user_id":    req.UserID,
			"bookmaker":  req.Bookmaker,
		})
		s.log.Info("stalled request retried",
			zap.String("request_id", req.ID.String()),
			zap.String("outcome", outcome.String()))
	}
}
