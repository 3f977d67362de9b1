// Package emailcheck normalizes and validates subject email addresses for
// one-time-code issuance.
package emailcheck

import (
	"errors"
	"net/mail"
	"strings"
)

const maxEmailLength = 254

// ErrInvalid is returned for addresses that fail syntax checks.
var ErrInvalid = errors.New("invalid email address")

// disposableDomains lists throwaway-mailbox providers. Matching is exact on
// the domain or any parent domain.
var disposableDomains = map[string]struct{}{
	"10minutemail.com":  {},
	"33mail.com":        {},
	"discard.email":     {},
	"dispostable.com":   {},
	"emailondeck.com":   {},
	"fakeinbox.com":     {},
	"getnada.com":       {},
	"guerrillamail.com": {},
	"guerrillamail.net": {},
	"mailcatch.com":     {},
	"maildrop.cc":       {},
	"mailinator.com":    {},
	"mailnesia.com":     {},
	"mintemail.com":     {},
	"mohmal.com":        {},
	"sharklasers.com":   {},
	"spamgourmet.com":   {},
	"temp-mail.org":     {},
	"tempmail.com":      {},
	"tempmailo.com":     {},
	"throwawaymail.com": {},
	"trashmail.com":     {},
	"yopmail.com":       {},
}

// Normalize trims surrounding whitespace and lower-cases the address.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate normalizes email and checks it is a bare addr-spec with a
// dotted domain. Display names and angle brackets are rejected.
func Validate(email string) (string, error) {
	normalized := Normalize(email)
	if normalized == "" || len(normalized) > maxEmailLength {
		return "", ErrInvalid
	}

	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized || addr.Name != "" {
		return "", ErrInvalid
	}

	at := strings.LastIndexByte(normalized, '@')
	if at <= 0 || at == len(normalized)-1 {
		return "", ErrInvalid
	}
	domain := normalized[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", ErrInvalid
	}

	return normalized, nil
}

// Domain returns the part after the last '@', or "" when absent.
func Domain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return ""
	}
	return email[at+1:]
}

// IsDisposable reports whether the address belongs to a known throwaway
// provider, including subdomains of one.
func IsDisposable(email string) bool {
	domain := Domain(Normalize(email))
	for domain != "" {
		if _, ok := disposableDomains[domain]; ok {
			return true
		}
		dot := strings.IndexByte(domain, '.')
		if dot < 0 {
			break
		}
		domain = domain[dot+1:]
	}
	return false
}
