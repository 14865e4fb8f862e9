package usecase

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"inbox-triage/internal/activity/domain"
	inboxdomain "inbox-triage/internal/inbox/domain"
)

// AccountingFields are the best-effort values pulled from a receipt.
type AccountingFields struct {
	Vendor   *string
	Amount   *float64
	Currency *string
}

const currencyCodes = `usd|eur|gbp|cad|aud|jpy|chf|inr|sgd|nzd|sek|nok|dkk`

var (
	amountNumber = `(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`

	prefixedAmountRe = regexp.MustCompile(`(?i)(?:([$€£¥])\s?|\b(` + currencyCodes + `)\s?)` + amountNumber)
	suffixedAmountRe = regexp.MustCompile(`(?i)` + amountNumber + `\s?(` + currencyCodes + `)\b`)
	amountKeywordRe  = regexp.MustCompile(`(?i)\b(?:total|amount paid|amount due|amount charged|charged|payment of|you paid)\b`)
)

var currencySymbols = map[string]string{"$": "USD", "€": "EUR", "£": "GBP", "¥": "JPY"}

// ParseAccounting extracts vendor, amount and currency from msg. Amounts next
// to a total/paid/due keyword win over the first amount in the text. Any
// field that cannot be read stays nil.
func ParseAccounting(msg inboxdomain.InboundMessage) AccountingFields {
	var out AccountingFields
	if vendor := vendorOf(msg); vendor != "" {
		out.Vendor = &vendor
	}

	text := strings.Join([]string{msg.Subject, msg.Snippet, msg.BodyText}, "\n")
	var amount float64
	var currency string
	var ok bool
	for _, loc := range amountKeywordRe.FindAllStringIndex(text, -1) {
		end := loc[1] + 60
		if end > len(text) {
			end = len(text)
		}
		if amount, currency, ok = findAmount(text[loc[1]:end]); ok {
			break
		}
	}
	if !ok {
		amount, currency, ok = findAmount(text)
	}
	if ok {
		out.Amount = &amount
		if currency != "" {
			out.Currency = &currency
		}
	}
	return out
}

// NewAccountingEntry builds the ledger row for a receipt activity.
func NewAccountingEntry(activity *domain.Activity, msg inboxdomain.InboundMessage) *domain.AccountingEntry {
	fields := ParseAccounting(msg)
	return &domain.AccountingEntry{
		SourceKey:  msg.SourceKey,
		ActivityID: activity.ID,
		Mailbox:    msg.Mailbox,
		Subject:    msg.Subject,
		Vendor:     fields.Vendor,
		Amount:     fields.Amount,
		Currency:   fields.Currency,
		ReceivedAt: msg.ReceivedAt.UTC(),
	}
}

func findAmount(text string) (float64, string, bool) {
	type candidate struct {
		at       int
		number   string
		currency string
	}
	var best *candidate

	if m := prefixedAmountRe.FindStringSubmatchIndex(text); m != nil {
		c := candidate{at: m[0], number: text[m[6]:m[7]]}
		if m[2] >= 0 {
			c.currency = currencySymbols[text[m[2]:m[3]]]
		} else {
			c.currency = strings.ToUpper(text[m[4]:m[5]])
		}
		best = &c
	}
	if m := suffixedAmountRe.FindStringSubmatchIndex(text); m != nil && (best == nil || m[0] < best.at) {
		best = &candidate{at: m[0], number: text[m[2]:m[3]], currency: strings.ToUpper(text[m[4]:m[5]])}
	}
	if best == nil {
		return 0, "", false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(best.number, ",", ""), 64)
	if err != nil {
		return 0, "", false
	}
	return math.Round(value*100) / 100, best.currency, true
}

// vendorOf prefers the display name and falls back to the sender's
// registrable domain.
func vendorOf(msg inboxdomain.InboundMessage) string {
	email, name := inboxdomain.ParseSender(msg.Sender)
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	labels := strings.Split(email[at+1:], ".")
	if len(labels) > 2 {
		labels = labels[len(labels)-2:]
	}
	return strings.Join(labels, ".")
}
