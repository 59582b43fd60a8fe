package mailwatch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Session is one authenticated, folder-selected mailbox connection.
type Session interface {
	SearchUnseen() ([]uint32, error)
	FetchRaw(seq uint32) ([]byte, error)
	MarkSeen(seq uint32) error
	// IdleWait blocks until the server pushes a mailbox change, the
	// timeout elapses, or ctx is cancelled. pushed=true on a change.
	IdleWait(ctx context.Context, timeout time.Duration) (pushed bool, err error)
	Close() error
}

// DialFunc opens a Session for the given configuration.
type DialFunc func(cfg Config) (Session, error)

// DialIMAP connects over TLS, authenticates and selects the folder.
func DialIMAP(cfg Config) (Session, error) {
	addr := cfg.Host
	if !strings.Contains(addr, ":") {
		addr += ":993"
	}
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, err
	}
	if err := c.Login(cfg.Email, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, err
	}
	if _, err := c.Select(cfg.Folder, false); err != nil {
		_ = c.Logout()
		return nil, err
	}
	return &imapSession{c: c}, nil
}

type imapSession struct {
	c *client.Client
}

func (s *imapSession) SearchUnseen() ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	return s.c.Search(criteria)
}

// FetchRaw downloads the full message without setting \Seen; the caller
// decides whether the message may be marked read.
func (s *imapSession) FetchRaw(seq uint32) ([]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(seq)
	section := &imap.BodySectionName{Peek: true}

	ch := make(chan *imap.Message, 1)
	if err := s.c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, ch); err != nil {
		return nil, err
	}
	msg := <-ch
	if msg == nil {
		return nil, fmt.Errorf("imap: message %d not returned", seq)
	}
	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("imap: message %d has no body section", seq)
	}
	return io.ReadAll(body)
}

func (s *imapSession) MarkSeen(seq uint32) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(seq)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return s.c.Store(seqset, item, []interface{}{imap.SeenFlag}, nil)
}

func (s *imapSession) IdleWait(ctx context.Context, timeout time.Duration) (bool, error) {
	updates := make(chan client.Update, 16)
	s.c.Updates = updates
	defer func() { s.c.Updates = nil }()

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.c.Idle(stop, nil) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var pushed bool
	var ctxErr error
	select {
	case upd := <-updates:
		if _, ok := upd.(*client.MailboxUpdate); ok {
			pushed = true
		}
	case <-timer.C:
	case <-ctx.Done():
		ctxErr = ctx.Err()
	case err := <-done:
		// connection dropped mid-IDLE
		return false, err
	}

	// send DONE and drain unilateral updates until the tagged response
	close(stop)
	for {
		select {
		case <-updates:
		case err := <-done:
			if ctxErr != nil {
				return false, ctxErr
			}
			return pushed, err
		}
	}
}

func (s *imapSession) Close() error {
	return s.c.Logout()
}
