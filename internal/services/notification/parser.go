package notification

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Parser turns a raw email into a BankNotification, or nothing when the
// message is not a recognizable payment notification.
type Parser struct {
	bank string
}

func NewParser(bank string) (*Parser, error) {
	if _, ok := ExtractorFor(bank); !ok {
		return nil, fmt.Errorf("notification: no extractor registered for bank %q", bank)
	}
	return &Parser{bank: bank}, nil
}

// Parse extracts the message body (first non-attachment text/plain part,
// falling back to the first text/html part), runs the bank extractor and
// returns (nil, nil) when the format is not recognized. Charset decode
// problems are tolerated; the raw bytes are used instead.
func (p *Parser) Parse(raw []byte, receivedAt time.Time) (*BankNotification, error) {
	ent, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, err
	}

	var plain, html string
	collectTextParts(ent, &plain, &html)
	body := plain
	if body == "" {
		body = html
	}
	if body == "" {
		return nil, nil
	}

	extract, _ := ExtractorFor(p.bank)
	amount, ok := extract(body)
	if !ok {
		return nil, nil
	}

	occurredAt := receivedAt
	hdr := mail.Header{Header: ent.Header}
	if date, err := hdr.Date(); err == nil && !date.IsZero() {
		occurredAt = date
	}

	return &BankNotification{
		Bank:       p.bank,
		Amount:     amount.Round(2),
		RawText:    body,
		OccurredAt: occurredAt,
		ReceivedAt: receivedAt,
	}, nil
}

// collectTextParts walks the MIME tree depth-first and keeps the first
// text/plain and first text/html non-attachment bodies it sees.
func collectTextParts(ent *message.Entity, plain, html *string) {
	if ent == nil {
		return
	}

	if mr := ent.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return
			}
			if err != nil && !message.IsUnknownCharset(err) {
				return
			}
			collectTextParts(part, plain, html)
			if *plain != "" {
				return
			}
		}
	}

	if disp, _, _ := ent.Header.ContentDisposition(); disp == "attachment" {
		return
	}

	ctype, _, _ := ent.Header.ContentType()
	if ctype != "" && ctype != "text/plain" && ctype != "text/html" {
		return
	}

	b, err := io.ReadAll(ent.Body)
	if err != nil && len(b) == 0 {
		return
	}

	if ctype == "text/html" {
		if *html == "" {
			*html = string(b)
		}
		return
	}
	if *plain == "" {
		*plain = string(b)
	}
}
