package notification

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankNotification is the typed result of parsing one payment
// notification email. Derived per message; only the audit log keeps a
// trace of it.
type BankNotification struct {
	Bank       string
	Amount     decimal.Decimal
	RawText    string
	OccurredAt time.Time
	ReceivedAt time.Time
}

// ExtractFunc pattern-matches a decoded email body and yields the paid
// amount. ok=false means the bank's signature text was not recognized.
type ExtractFunc func(text string) (amount decimal.Decimal, ok bool)

var extractors = map[string]ExtractFunc{
	BankKaspi: extractKaspi,
}

// ExtractorFor returns the registered extractor for a bank code.
// Supporting another bank means registering another extractor; the
// connector and orchestrator stay untouched.
func ExtractorFor(bank string) (ExtractFunc, bool) {
	fn, ok := extractors[bank]
	return fn, ok
}
