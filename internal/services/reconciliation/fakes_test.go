package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cashdesk-watcher/internal/gateway"
	"cashdesk-watcher/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeRequestStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*models.DepositRequest
}

func newFakeRequestStore(reqs ...*models.DepositRequest) *fakeRequestStore {
	s := &fakeRequestStore{requests: make(map[uuid.UUID]*models.DepositRequest)}
	for _, r := range reqs {
		s.requests[r.ID] = r
	}
	return s
}

func (s *fakeRequestStore) FindMatchCandidate(amount decimal.Decimal, since time.Time) (*models.DepositRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.DepositRequest
	for _, r := range s.requests {
		if r.Status != models.StatusPending || !r.Amount.Round(2).Equal(amount.Round(2)) {
			continue
		}
		if r.CreatedAt.Before(since) {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (s *fakeRequestStore) GetByID(id uuid.UUID) (*models.DepositRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (s *fakeRequestStore) MarkBankReceived(id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.BankReceived {
		return false, nil
	}
	r.BankReceived = true
	r.BankReceivedAt = &at
	r.Status = models.StatusBankReceived
	r.UpdatedAt = at
	return true, nil
}

func (s *fakeRequestStore) MarkCompleted(id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.Status != models.StatusBankReceived {
		return false, nil
	}
	r.Status = models.StatusCompleted
	r.ProcessedAt = &at
	r.UpdatedAt = at
	return true, nil
}

func (s *fakeRequestStore) SetAccountID(id uuid.UUID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.requests[id]; ok {
		r.AccountID = &accountID
	}
	return nil
}

func (s *fakeRequestStore) ListStalled(olderThan time.Time) ([]models.DepositRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DepositRequest
	for _, r := range s.requests {
		if r.Status == models.StatusBankReceived && r.ReceiptReceived &&
			r.BankReceivedAt != nil && !r.BankReceivedAt.After(olderThan) {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeProfileStore struct {
	accounts map[string]string
	err      error
}

func (s *fakeProfileStore) AccountID(userID int64, bookmaker string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.accounts[fmt.Sprintf("%d|%s", userID, bookmaker)], nil
}

type gatewayCall struct {
	bookmaker string
	accountID string
	amount    decimal.Decimal
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []gatewayCall
	fail  bool
	// hang makes the call block until the context expires, simulating a
	// gateway that exceeds its deadline.
	hang bool
}

func (g *fakeGateway) DepositExecute(ctx context.Context, bookmaker, accountID string, amount decimal.Decimal) (*gateway.DepositResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, gatewayCall{bookmaker: bookmaker, accountID: accountID, amount: amount})
	g.mu.Unlock()
	if g.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.fail {
		return &gateway.DepositResult{Success: false, Raw: `{"success":false}`}, nil
	}
	return &gateway.DepositResult{Success: true, Raw: `{"success":true}`}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeNotifier struct {
	userMessages []string
	edits        []string
}

func (n *fakeNotifier) NotifyUser(ctx context.Context, userID int64, text string) error {
	n.userMessages = append(n.userMessages, text)
	return nil
}

func (n *fakeNotifier) EditOperatorMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	n.edits = append(n.edits, text)
	return nil
}

type fakeAdminSync struct {
	synced []uuid.UUID
	err    error
}

func (a *fakeAdminSync) SyncCompleted(ctx context.Context, requestID uuid.UUID) error {
	a.synced = append(a.synced, requestID)
	return a.err
}

type auditAttempt struct {
	bank    string
	amount  decimal.Decimal
	matched bool
	note    string
}

type fakeRecorder struct {
	attempts []auditAttempt
	health   []string
}

func (r *fakeRecorder) LogAttempt(bank string, amount decimal.Decimal, matched bool, note string, details map[string]interface{}) {
	r.attempts = append(r.attempts, auditAttempt{bank: bank, amount: amount, matched: matched, note: note})
}

func (r *fakeRecorder) UpdateHealth(key string) {
	r.health = append(r.health, key)
}

type serviceFixture struct {
	svc      *Service
	store    *fakeRequestStore
	profiles *fakeProfileStore
	gateway  *fakeGateway
	notifier *fakeNotifier
	sync     *fakeAdminSync
	recorder *fakeRecorder
}

func newFixture(reqs ...*models.DepositRequest) *serviceFixture {
	f := &serviceFixture{
		store:    newFakeRequestStore(reqs...),
		profiles: &fakeProfileStore{accounts: make(map[string]string)},
		gateway:  &fakeGateway{},
		notifier: &fakeNotifier{},
		sync:     &fakeAdminSync{},
		recorder: &fakeRecorder{},
	}
	f.svc = NewService(f.store, f.profiles, f.gateway, f.notifier, f.sync, f.recorder, "kaspi", zap.NewNop())
	return f
}

func pendingRequest(amount string, createdAt time.Time) *models.DepositRequest {
	account := "acc-777"
	return &models.DepositRequest{
		ID:        uuid.New(),
		UserID:    42,
		Bookmaker: "1xbet",
		AccountID: &account,
		Amount:    decimal.RequireFromString(amount),
		Status:    models.StatusPending,
		CreatedAt: createdAt,
	}
}
