package site

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example-com"},
		{"www.example.co.uk", "www-example-co-uk"},
		{"Sub.Domain.IO", "sub-domain-io"},
		{"  spaced.com  ", "spaced-com"},
		{"dash--heavy..com", "dash-heavy-com"},
		{"trailing.com.", "trailing-com"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// Sites may exist without a team; the payload drops teamId entirely then.
func TestSiteTeamIsOptional(t *testing.T) {
	orphan, err := json.Marshal(&Site{ID: "s1", Domain: "example.com"})
	if err != nil {
		t.Fatalf("marshaling site: %v", err)
	}
	if strings.Contains(string(orphan), "teamId") {
		t.Errorf("teamless site payload carries teamId: %s", orphan)
	}

	teamID := "t1"
	owned, err := json.Marshal(&Site{ID: "s2", Domain: "example.com", TeamID: &teamID})
	if err != nil {
		t.Fatalf("marshaling site: %v", err)
	}
	if !strings.Contains(string(owned), `"teamId":"t1"`) {
		t.Errorf("owned site payload missing teamId: %s", owned)
	}
}
