package util

import (
	"net/mail"
	"strings"

	"github.com/keyrelay/go-keyrelay-server/types"
)

const handleLength = 8
const handleCollisionPrefix = 6

// ValidateEmail parses and normalizes an email address. Addresses are
// lowercased so the same mailbox always digests to the same document ID.
func ValidateEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", types.ErrInvalidEmail
	}
	normalized := strings.ToLower(addr.Address)
	if !strings.Contains(normalized, "@") {
		return "", types.ErrInvalidEmail
	}
	return normalized, nil
}

// ParseAddressHeader parses a single RFC 5322 address header value
// ("Name <box@domain>" or bare "box@domain").
func ParseAddressHeader(value string) (*mail.Address, error) {
	return mail.ParseAddress(value)
}

// MaskEmail hides most of the local part of an address for display in
// public lookup responses (e.g. "jo***@example.com").
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local := email[:at]
	visible := 2
	if len(local) < visible {
		visible = len(local)
	}
	return local[:visible] + "***" + email[at:]
}

// DeriveAliasHandle derives the canonical alias handle from a base58
// public key: non-alphanumerics stripped, first 8 characters, lowercased.
func DeriveAliasHandle(b58PublicKey string) string {
	var sb strings.Builder
	for _, r := range b58PublicKey {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	clean := strings.ToLower(sb.String())
	if len(clean) > handleLength {
		clean = clean[:handleLength]
	}
	return clean
}

// PerturbAliasHandle builds a collision fallback handle: the first 6
// characters of the canonical handle plus 2 random lowercase alphanumerics.
func PerturbAliasHandle(handle string) string {
	prefix := handle
	if len(prefix) > handleCollisionPrefix {
		prefix = prefix[:handleCollisionPrefix]
	}
	return prefix + GenerateHandleSuffix(handleLength-len(prefix))
}
