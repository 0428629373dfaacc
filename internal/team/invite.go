package team

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// inviteAlphabet excludes visually ambiguous characters (0/O, 1/I/L) so codes
// survive being read aloud or retyped.
const inviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	inviteGroups    = 3
	inviteGroupSize = 4
)

// GenerateInviteCode produces a code of three 4-character groups, e.g.
// "K3NF-8WQP-T2XZ". Each call mints a distinct code; reuse is the caller's
// concern (query ActiveInvite first).
func GenerateInviteCode() (string, error) {
	b := make([]byte, inviteGroups*inviteGroupSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating invite code: %w", err)
	}

	var sb strings.Builder
	for i, rb := range b {
		if i > 0 && i%inviteGroupSize == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(inviteAlphabet[int(rb)%len(inviteAlphabet)])
	}
	return sb.String(), nil
}

// NormalizeInviteCode uppercases a code and strips surrounding whitespace so
// user-entered codes match stored ones.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
