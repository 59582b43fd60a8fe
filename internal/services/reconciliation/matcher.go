package reconciliation

import (
	"strconv"
	"time"

	"cashdesk-watcher/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MatchWindow bounds how old a pending request may be to qualify.
const MatchWindow = 24 * time.Hour

// Match is a candidate request together with its resolved account id.
type Match struct {
	Request   *models.DepositRequest
	AccountID string
}

// FindMatch selects the pending request for a confirmed amount:
// status=pending, created within the last 24h, amount equal at two
// decimal places. Among several exact matches the most recently created
// wins; bookmaker and user id are not consulted in the tie-break.
// A nil Match carries the miss outcome (no_match or account_unresolved).
func (s *Service) FindMatch(amount decimal.Decimal) (*Match, Outcome, error) {
	amount = amount.Round(2)
	since := s.now().Add(-MatchWindow)

	req, err := s.requests.FindMatchCandidate(amount, since)
	if err != nil {
		return nil, OutcomeError, err
	}
	if req == nil {
		return nil, OutcomeNoMatch, nil
	}

	accountID, err := s.resolveAccountID(req)
	if err != nil {
		return nil, OutcomeError, err
	}
	if accountID == "" {
		s.log.Warn("match candidate has no resolvable account id",
			zap.String("request_id", req.ID.String()),
			zap.Int64("user_id", req.UserID),
			zap.String("bookmaker", req.Bookmaker))
		return nil, OutcomeAccountUnresolved, nil
	}

	return &Match{Request: req, AccountID: accountID}, OutcomeCompleted, nil
}

// resolveAccountID returns the request's account id, falling back to the
// user's saved profile when the field is empty or still holds the raw
// user-id placeholder left by the conversational flow. "" means
// unresolved.
func (s *Service) resolveAccountID(req *models.DepositRequest) (string, error) {
	placeholder := strconv.FormatInt(req.UserID, 10)
	if req.AccountID != nil && *req.AccountID != "" && *req.AccountID != placeholder {
		return *req.AccountID, nil
	}

	saved, err := s.profiles.AccountID(req.UserID, req.Bookmaker)
	if err != nil {
		return "", err
	}
	if saved == "" || saved == placeholder {
		return "", nil
	}
	if err := s.requests.SetAccountID(req.ID, saved); err != nil {
		s.log.Warn("resolved account id not persisted",
			zap.String("request_id", req.ID.String()), zap.Error(err))
	}
	return saved, nil
}
