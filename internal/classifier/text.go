package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// normalizeText lower-cases s, folds typographic quotes and dashes, strips
// combining marks and collapses whitespace so phrase tables match the way the
// message reads rather than how it was encoded.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		switch r {
		case '‘', '’', 'ʼ':
			r = '\''
		case '“', '”':
			r = '"'
		case '‐', '‑', '‒', '–', '—':
			r = '-'
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// splitAddress returns the local part and domain of a lower-cased address.
func splitAddress(email string) (local, domain string) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email, ""
	}
	return email[:at], email[at+1:]
}

// localPartTokens splits "weekly.news+promo" into its word tokens.
func localPartTokens(local string) []string {
	return strings.FieldsFunc(local, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// domainMatches reports whether domain equals one of the listed domains or
// is a subdomain of one.
func domainMatches(domain string, list []string) bool {
	if domain == "" {
		return false
	}
	for _, d := range list {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
