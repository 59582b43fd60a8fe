package notification

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// BankKaspi is the only bank supported today: Kaspi Gold transfer
// notification emails.
const BankKaspi = "kaspi"

// Matches the amount in phrases like "Пополнение Kaspi Gold на сумму
// 503,37 ₸" or "Вам перевели 1 200,00 KZT". Thousands may be separated
// by spaces or NBSP; the decimal separator may be a comma.
var kaspiAmountRe = regexp.MustCompile(
	`(?i)(?:перевод|перевели|пополнение|зачислен[оиа]?|на сумму)[^\d]{0,60}` +
		`(\d[\d\s\x{00A0}]*(?:[.,]\d{1,2})?)\s*(?:₸|KZT|тг)`)

var kaspiAmountCleaner = strings.NewReplacer(" ", "", "\u00a0", "", ",", ".")

func extractKaspi(text string) (decimal.Decimal, bool) {
	if !strings.Contains(strings.ToLower(text), "kaspi") {
		return decimal.Decimal{}, false
	}
	m := kaspiAmountRe.FindStringSubmatch(text)
	if m == nil {
		return decimal.Decimal{}, false
	}
	amount, err := decimal.NewFromString(kaspiAmountCleaner.Replace(m[1]))
	if err != nil || amount.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	return amount.Round(2), true
}
