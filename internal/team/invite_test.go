package team

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateInviteCodeFormat(t *testing.T) {
	code, err := GenerateInviteCode()
	if err != nil {
		t.Fatalf("GenerateInviteCode failed: %v", err)
	}

	groups := strings.Split(code, "-")
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d (%q)", len(groups), code)
	}
	for _, g := range groups {
		if len(g) != 4 {
			t.Errorf("expected 4-character group, got %q", g)
		}
		for _, c := range g {
			if !strings.ContainsRune(inviteAlphabet, c) {
				t.Errorf("character %q not in invite alphabet", c)
			}
		}
	}
}

func TestGenerateInviteCodeExcludesAmbiguous(t *testing.T) {
	for _, c := range "0O1IL" {
		if strings.ContainsRune(inviteAlphabet, c) {
			t.Errorf("ambiguous character %q present in alphabet", c)
		}
	}
}

func TestGenerateInviteCodeDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateInviteCode()
		if err != nil {
			t.Fatal(err)
		}
		if seen[code] {
			t.Fatalf("duplicate code generated: %q", code)
		}
		seen[code] = true
	}
}

func TestNormalizeInviteCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"k3nf-8wqp-t2xz", "K3NF-8WQP-T2XZ"},
		{"  K3NF-8WQP-T2XZ  ", "K3NF-8WQP-T2XZ"},
		{"K3NF-8WQP-T2XZ", "K3NF-8WQP-T2XZ"},
	}
	for _, tt := range tests {
		if got := NormalizeInviteCode(tt.in); got != tt.want {
			t.Errorf("NormalizeInviteCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInviteExpired(t *testing.T) {
	now := time.Now()
	inv := &Invite{ExpiresAt: now.Add(time.Hour)}

	if inv.Expired(now) {
		t.Error("invite should not be expired before expires_at")
	}
	if !inv.Expired(now.Add(2 * time.Hour)) {
		t.Error("invite should be expired after expires_at")
	}
}
