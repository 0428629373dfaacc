package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testUser() *User {
	return &User{
		ID:    "u-1",
		Email: "dev@example.com",
		Name:  "Dev",
		Teams: []TeamMembership{
			{TeamID: "t-1", Role: RoleOwner},
			{TeamID: "t-2", Role: RoleMember},
		},
	}
}

func TestRoleCapabilities(t *testing.T) {
	tests := []struct {
		name string
		role Role
		cap  Capability
		want bool
	}{
		{"owner manages billing", RoleOwner, CapManageBilling, true},
		{"owner removes members", RoleOwner, CapRemoveMember, true},
		{"member creates reports", RoleMember, CapCreateReport, true},
		{"member invites", RoleMember, CapInviteMember, true},
		{"member cannot manage billing", RoleMember, CapManageBilling, false},
		{"member cannot remove members", RoleMember, CapRemoveMember, false},
		{"unknown role has nothing", Role("ghost"), CapComment, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleCan(tt.role, tt.cap); got != tt.want {
				t.Errorf("RoleCan(%q, %q) = %v, want %v", tt.role, tt.cap, got, tt.want)
			}
		})
	}
}

func TestUserCan(t *testing.T) {
	u := testUser()

	if !u.Can(CapManageBilling, "t-1") {
		t.Error("owner of t-1 should manage billing")
	}
	if u.Can(CapManageBilling, "t-2") {
		t.Error("member of t-2 should not manage billing")
	}
	if u.Can(CapComment, "t-3") {
		t.Error("non-member should hold no capabilities")
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole("owner"); !ok || r != RoleOwner {
		t.Errorf("ParseRole(owner) = %v, %v", r, ok)
	}
	if r, ok := ParseRole("member"); !ok || r != RoleMember {
		t.Errorf("ParseRole(member) = %v, %v", r, ok)
	}
	if r, ok := ParseRole("admin"); ok || r != RoleMember {
		t.Errorf("ParseRole(admin) = %v, %v; want member, false", r, ok)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	signed, err := tokens.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	got, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got.ID != "u-1" || got.Email != "dev@example.com" || got.Name != "Dev" {
		t.Errorf("unexpected identity: %+v", got)
	}
	if len(got.Teams) != 2 {
		t.Fatalf("expected 2 team memberships, got %d", len(got.Teams))
	}
	if got.Teams[0].TeamID != "t-1" || got.Teams[0].Role != RoleOwner {
		t.Errorf("unexpected first membership: %+v", got.Teams[0])
	}
}

func TestTokenExpiry(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	base := time.Now()
	tokens.now = func() time.Time { return base }

	signed, err := tokens.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tokens.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := tokens.Verify(signed); err != ErrExpiredToken {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	other := NewTokens("other-secret", time.Hour)

	signed, err := tokens.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := other.Verify(signed); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	signed, err := tokens.Issue(testUser())
	if err != nil {
		t.Fatal(err)
	}

	var gotUser *User
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(tokens)(inner)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + signed, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusOK {
				if gotUser == nil || gotUser.ID != "u-1" {
					t.Errorf("expected user in context, got %+v", gotUser)
				}
				return
			}

			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body.Error.Code == "" {
				t.Error("expected an error code in the response")
			}
		})
	}
}

func TestMiddlewareExpiredTokenIsForbidden(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	base := time.Now()
	tokens.now = func() time.Time { return base }
	signed, err := tokens.Issue(testUser())
	if err != nil {
		t.Fatal(err)
	}
	tokens.now = func() time.Time { return base.Add(2 * time.Hour) }

	handler := Middleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for expired token, got %d", rec.Code)
	}
}
