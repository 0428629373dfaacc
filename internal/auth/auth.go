package auth

// Role is a team-scoped role. It is a closed type: handlers never compare
// raw strings, they ask the capability table via Can.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// ParseRole maps a wire string to a Role, defaulting to member.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleOwner:
		return RoleOwner, true
	case RoleMember:
		return RoleMember, true
	}
	return RoleMember, false
}

// Capability names an action a role may perform within a team.
type Capability string

const (
	CapCreateReport  Capability = "report:create"
	CapEditReport    Capability = "report:edit"
	CapDeleteReport  Capability = "report:delete"
	CapComment       Capability = "comment:create"
	CapInviteMember  Capability = "team:invite"
	CapRemoveMember  Capability = "team:remove_member"
	CapManageBilling Capability = "team:billing"
	CapUpdateTeam    Capability = "team:update"
)

// capabilities is the role → permitted-actions table. There is exactly one
// place in the codebase that answers "may this role do that".
var capabilities = map[Role]map[Capability]bool{
	RoleOwner: {
		CapCreateReport:  true,
		CapEditReport:    true,
		CapDeleteReport:  true,
		CapComment:       true,
		CapInviteMember:  true,
		CapRemoveMember:  true,
		CapManageBilling: true,
		CapUpdateTeam:    true,
	},
	RoleMember: {
		CapCreateReport: true,
		CapEditReport:   true,
		CapDeleteReport: true,
		CapComment:      true,
		CapInviteMember: true,
	},
}

// RoleCan reports whether the given role holds the capability.
func RoleCan(role Role, cap Capability) bool {
	return capabilities[role][cap]
}

// TeamMembership is a user's membership in a team, as carried in the token.
type TeamMembership struct {
	TeamID string `json:"teamId"`
	Role   Role   `json:"role"`
}

// User is the authenticated principal extracted from a bearer token.
type User struct {
	ID    string
	Email string
	Name  string
	Teams []TeamMembership
}

// TeamIDs returns the ids of the teams the user belongs to.
func (u *User) TeamIDs() []string {
	ids := make([]string, len(u.Teams))
	for i, tm := range u.Teams {
		ids[i] = tm.TeamID
	}
	return ids
}

// InTeam reports whether the user is a member of the given team.
func (u *User) InTeam(teamID string) bool {
	for _, tm := range u.Teams {
		if tm.TeamID == teamID {
			return true
		}
	}
	return false
}

// RoleIn returns the user's role in the given team. ok is false when the user
// is not a member.
func (u *User) RoleIn(teamID string) (Role, bool) {
	for _, tm := range u.Teams {
		if tm.TeamID == teamID {
			return tm.Role, true
		}
	}
	return "", false
}

// Can reports whether the user holds the capability within the given team.
// Non-members hold no capabilities.
func (u *User) Can(cap Capability, teamID string) bool {
	role, ok := u.RoleIn(teamID)
	if !ok {
		return false
	}
	return RoleCan(role, cap)
}

// FirstTeamID returns the user's first team membership, used when an
// operation does not name a team explicitly.
func (u *User) FirstTeamID() string {
	if len(u.Teams) == 0 {
		return ""
	}
	return u.Teams[0].TeamID
}
