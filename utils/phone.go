package utils

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

func digitsOnly(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// ToE164Digits returns a digits-only E.164-like string without '+'. Numbers
// are expected to be stored with their country code (e.g. "447..."); a local
// UK-looking number (leading 0, 11 digits) is passed through unchanged with a
// warning rather than guessing a country code.
func ToE164Digits(whatsappNumber string) string {
	d := digitsOnly(whatsappNumber)
	if strings.HasPrefix(d, "0") && len(d) == 11 {
		log.Warnf("whatsapp number looks local (starts with 0), store as E.164 without '+': %s", d)
	}
	return d
}
