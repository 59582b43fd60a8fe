package mailwatch

import (
	"context"
	"sync"
	"time"

	"cashdesk-watcher/internal/services/notification"
	"cashdesk-watcher/internal/services/reconciliation"

	"go.uber.org/zap"
)

const (
	disabledRecheck = 30 * time.Second
	errorBackoff    = 10 * time.Second
)

// ConfigSource resolves the watcher configuration once per cycle.
type ConfigSource interface {
	Load() (Config, error)
}

// Processor runs the per-notification reconciliation pipeline.
type Processor interface {
	HandleNotification(ctx context.Context, n *notification.BankNotification) reconciliation.Outcome
}

// HealthRecorder upserts liveness keys.
type HealthRecorder interface {
	UpdateHealth(key string)
}

// Watcher owns the mailbox session lifecycle: connect, IDLE or poll,
// process unseen messages, reconnect. Transient IMAP or network errors
// never terminate the loop; only Stop does.
type Watcher struct {
	config   ConfigSource
	recon    Processor
	recorder HealthRecorder
	dial     DialFunc
	log      *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	backoff time.Duration
	recheck time.Duration
}

func New(config ConfigSource, recon Processor, recorder HealthRecorder, log *zap.Logger) *Watcher {
	return &Watcher{
		config:   config,
		recon:    recon,
		recorder: recorder,
		dial:     DialIMAP,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		backoff:  errorBackoff,
		recheck:  disabledRecheck,
	}
}

// Start launches the background loop.
func (w *Watcher) Start() {
	go w.run()
}

// Stop signals cancellation and waits for the loop to exit. The mailbox
// connection is closed before done is signalled on every exit path.
func (w *Watcher) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stop) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Watcher) run() {
	defer close(w.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-w.stop
		cancel()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		cfg, err := w.config.Load()
		if err != nil {
			w.log.Error("settings load failed", zap.Error(err))
			if !w.sleep(ctx, w.backoff) {
				return
			}
			continue
		}

		if !cfg.Enabled || !cfg.CredentialsOK() {
			if !w.sleep(ctx, w.recheck) {
				return
			}
			continue
		}

		w.recorder.UpdateHealth("last_cycle_at")

		if cfg.IdleEnabled {
			if err := w.idleCycle(ctx, cfg); err != nil && ctx.Err() == nil {
				w.log.Error("idle cycle failed, falling back to one poll", zap.Error(err))
				if err := w.pollOnce(ctx, cfg); err != nil && ctx.Err() == nil {
					w.log.Error("poll fallback failed", zap.Error(err))
				}
				if !w.sleep(ctx, w.backoff) {
					return
				}
			}
			continue
		}

		if err := w.pollOnce(ctx, cfg); err != nil && ctx.Err() == nil {
			w.log.Error("poll cycle failed", zap.Error(err))
			if !w.sleep(ctx, w.backoff) {
				return
			}
			continue
		}
		if !w.sleep(ctx, cfg.Interval) {
			return
		}
	}
}

// idleCycle holds one connection through keepalive-bounded IDLE waits.
// Returning nil asks the outer loop to reconnect immediately, which
// keeps sessions younger than the server's IDLE timeout.
func (w *Watcher) idleCycle(ctx context.Context, cfg Config) error {
	sess, err := w.dial(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	// catch up on mail that arrived while disconnected
	if err := w.processUnseen(ctx, sess, cfg); err != nil {
		return err
	}

	connectedAt := time.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}

		pushed, err := sess.IdleWait(ctx, cfg.Keepalive)
		w.recorder.UpdateHealth("last_idle_at")
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if pushed {
			if err := w.processUnseen(ctx, sess, cfg); err != nil {
				return err
			}
		}
		if time.Since(connectedAt) >= cfg.Keepalive {
			return nil
		}
	}
}

func (w *Watcher) pollOnce(ctx context.Context, cfg Config) error {
	sess, err := w.dial(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	w.recorder.UpdateHealth("last_poll_at")
	return w.processUnseen(ctx, sess, cfg)
}

// processUnseen handles unseen messages strictly sequentially in
// mailbox order: parse, match, confirm, audit. Messages that missed
// matching stay unread for manual follow-up; everything else is marked
// seen.
func (w *Watcher) processUnseen(ctx context.Context, sess Session, cfg Config) error {
	ids, err := sess.SearchUnseen()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	parser, err := notification.NewParser(cfg.Bank)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return nil
		}

		raw, err := sess.FetchRaw(id)
		if err != nil {
			return err
		}

		n, err := parser.Parse(raw, time.Now())
		if n == nil {
			if err != nil {
				w.log.Info("message body not parseable", zap.Uint32("seq", id), zap.Error(err))
			} else {
				w.log.Info("message not recognized as bank notification", zap.Uint32("seq", id))
			}
			// non-notification mail would otherwise be rescanned every cycle
			if err := sess.MarkSeen(id); err != nil {
				w.log.Warn("mark seen failed", zap.Uint32("seq", id), zap.Error(err))
			}
			continue
		}

		outcome := w.recon.HandleNotification(ctx, n)
		if outcome.LeavesUnseen() {
			continue
		}
		if err := sess.MarkSeen(id); err != nil {
			w.log.Warn("mark seen failed", zap.Uint32("seq", id), zap.Error(err))
		}
	}
	return nil
}

func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
