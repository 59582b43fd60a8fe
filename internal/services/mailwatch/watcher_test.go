package mailwatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cashdesk-watcher/internal/services/notification"
	"cashdesk-watcher/internal/services/reconciliation"

	"go.uber.org/zap"
)

func kaspiEmail(amount string) []byte {
	return []byte("From: Kaspi Bank <noreply@kaspi.kz>\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Kaspi Gold: перевод на сумму " + amount + " ₸")
}

type idleResult struct {
	pushed bool
	err    error
}

type fakeSession struct {
	mu        sync.Mutex
	unseen    [][]uint32
	raws      map[uint32][]byte
	seen      []uint32
	idle      []idleResult
	idleCalls int
	closed    bool
}

func (s *fakeSession) SearchUnseen() ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.unseen) == 0 {
		return nil, nil
	}
	ids := s.unseen[0]
	s.unseen = s.unseen[1:]
	return ids, nil
}

func (s *fakeSession) FetchRaw(seq uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.raws[seq]
	if !ok {
		return nil, errors.New("unknown message")
	}
	return raw, nil
}

func (s *fakeSession) MarkSeen(seq uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, seq)
	return nil
}

func (s *fakeSession) IdleWait(ctx context.Context, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	if s.idleCalls < len(s.idle) {
		res := s.idle[s.idleCalls]
		s.idleCalls++
		s.mu.Unlock()
		return res.pushed, res.err
	}
	s.mu.Unlock()
	<-ctx.Done()
	return false, ctx.Err()
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) seenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

type fakeDialer struct {
	mu       sync.Mutex
	sessions []*fakeSession
	dials    int
}

func (d *fakeDialer) dial(Config) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dials >= len(d.sessions) {
		return nil, errors.New("dial: no session available")
	}
	s := d.sessions[d.dials]
	d.dials++
	return s, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type staticConfig struct {
	cfg Config
}

func (s staticConfig) Load() (Config, error) {
	return s.cfg, nil
}

type fakeProcessor struct {
	mu            sync.Mutex
	outcome       reconciliation.Outcome
	notifications []*notification.BankNotification
}

func (p *fakeProcessor) HandleNotification(ctx context.Context, n *notification.BankNotification) reconciliation.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, n)
	return p.outcome
}

func (p *fakeProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.notifications)
}

type fakeHealth struct {
	mu   sync.Mutex
	keys []string
}

func (h *fakeHealth) UpdateHealth(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys = append(h.keys, key)
}

func enabledConfig() Config {
	return Config{
		Enabled:     true,
		Host:        "imap.example.com",
		Email:       "desk@example.com",
		Password:    "secret",
		Folder:      "INBOX",
		Bank:        notification.BankKaspi,
		Interval:    5 * time.Second,
		IdleEnabled: true,
		Keepalive:   time.Hour,
	}
}

func newTestWatcher(cfg Config, dialer *fakeDialer, proc *fakeProcessor) *Watcher {
	w := New(staticConfig{cfg: cfg}, proc, &fakeHealth{}, zap.NewNop())
	w.dial = dialer.dial
	w.backoff = 10 * time.Millisecond
	w.recheck = 10 * time.Millisecond
	return w
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func stopWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("watcher did not stop: %v", err)
	}
}

func TestWatcherProcessesUnseenAndMarksSeen(t *testing.T) {
	sess := &fakeSession{
		unseen: [][]uint32{{3}},
		raws:   map[uint32][]byte{3: kaspiEmail("503,37")},
	}
	dialer := &fakeDialer{sessions: []*fakeSession{sess}}
	proc := &fakeProcessor{outcome: reconciliation.OutcomeCompleted}

	w := newTestWatcher(enabledConfig(), dialer, proc)
	w.Start()

	waitFor(t, "message processing", func() bool { return proc.count() == 1 })
	waitFor(t, "seen flag", func() bool { return sess.seenCount() == 1 })

	n := proc.notifications[0]
	if n.Amount.StringFixed(2) != "503.37" {
		t.Fatalf("amount=%s, want 503.37", n.Amount)
	}

	stopWatcher(t, w)
	if !sess.closed {
		t.Fatal("session must be closed on stop")
	}
}

func TestWatcherLeavesUnmatchedMailUnseen(t *testing.T) {
	sess := &fakeSession{
		unseen: [][]uint32{{1}},
		raws:   map[uint32][]byte{1: kaspiEmail("75,10")},
	}
	dialer := &fakeDialer{sessions: []*fakeSession{sess}}
	proc := &fakeProcessor{outcome: reconciliation.OutcomeNoMatch}

	w := newTestWatcher(enabledConfig(), dialer, proc)
	w.Start()

	waitFor(t, "message processing", func() bool { return proc.count() == 1 })
	stopWatcher(t, w)

	if sess.seenCount() != 0 {
		t.Fatal("unmatched notification must stay unread for manual follow-up")
	}
}

func TestWatcherLeavesMailUnseenOnProcessingError(t *testing.T) {
	sess := &fakeSession{
		unseen: [][]uint32{{4}},
		raws:   map[uint32][]byte{4: kaspiEmail("503,37")},
	}
	dialer := &fakeDialer{sessions: []*fakeSession{sess}}
	proc := &fakeProcessor{outcome: reconciliation.OutcomeError}

	w := newTestWatcher(enabledConfig(), dialer, proc)
	w.Start()

	waitFor(t, "message processing", func() bool { return proc.count() == 1 })
	stopWatcher(t, w)

	// a transient store failure must not consume the payment signal;
	// the message stays unread so the next cycle retries it
	if sess.seenCount() != 0 {
		t.Fatal("errored notification must stay unread for reprocessing")
	}
}

func TestWatcherMarksNonNotificationMailSeen(t *testing.T) {
	sess := &fakeSession{
		unseen: [][]uint32{{1}},
		raws: map[uint32][]byte{1: []byte("From: shop@example.com\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n\r\nВаш заказ отправлен")},
	}
	dialer := &fakeDialer{sessions: []*fakeSession{sess}}
	proc := &fakeProcessor{}

	w := newTestWatcher(enabledConfig(), dialer, proc)
	w.Start()

	waitFor(t, "seen flag", func() bool { return sess.seenCount() == 1 })
	stopWatcher(t, w)

	if proc.count() != 0 {
		t.Fatal("parse misses must not reach the reconciliation pipeline")
	}
}

func TestWatcherFallsBackToPollWhenIdleDrops(t *testing.T) {
	idleSess := &fakeSession{
		idle: []idleResult{{err: errors.New("connection reset mid-IDLE")}},
	}
	pollSess := &fakeSession{
		unseen: [][]uint32{{7}},
		raws:   map[uint32][]byte{7: kaspiEmail("66,60")},
	}
	resumeSess := &fakeSession{}
	dialer := &fakeDialer{sessions: []*fakeSession{idleSess, pollSess, resumeSess}}
	proc := &fakeProcessor{outcome: reconciliation.OutcomeCompleted}

	w := newTestWatcher(enabledConfig(), dialer, proc)
	w.Start()

	// the dropped IDLE connection triggers one poll cycle, then IDLE resumes
	waitFor(t, "poll fallback processing", func() bool { return proc.count() == 1 })
	waitFor(t, "idle resume", func() bool { return dialer.dialCount() >= 3 })
	stopWatcher(t, w)

	if !idleSess.closed || !pollSess.closed {
		t.Fatal("every connection must be closed after its cycle")
	}
	if pollSess.seenCount() != 1 {
		t.Fatal("poll fallback must process and mark the message")
	}
}

func TestWatcherPushTriggersProcessing(t *testing.T) {
	sess := &fakeSession{
		unseen: [][]uint32{nil, {5}}, // nothing at connect, one after the push
		raws:   map[uint32][]byte{5: kaspiEmail("100,00")},
		idle:   []idleResult{{pushed: true}},
	}
	dialer := &fakeDialer{sessions: []*fakeSession{sess}}
	proc := &fakeProcessor{outcome: reconciliation.OutcomeBankReceived}

	w := newTestWatcher(enabledConfig(), dialer, proc)
	w.Start()

	waitFor(t, "push processing", func() bool { return proc.count() == 1 })
	stopWatcher(t, w)

	if sess.seenCount() != 1 {
		t.Fatal("bank_received outcome must mark the message seen")
	}
}
