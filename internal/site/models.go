package site

import (
	"strings"
	"time"
)

// Site is a project/domain grouping of reports, optionally tied to a team.
type Site struct {
	ID        string    `json:"id"`
	TeamID    *string   `json:"teamId,omitempty"`
	Domain    string    `json:"domain"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateSiteInput holds the fields required to create a site.
type CreateSiteInput struct {
	TeamID *string `json:"teamId,omitempty"`
	Domain string  `json:"domain"`
	Name   string  `json:"name"`
}

// Slugify derives a URL-safe slug from a domain: lowercase, dots and other
// separators collapsed to single dashes.
func Slugify(domain string) string {
	s := strings.ToLower(strings.TrimSpace(domain))
	var sb strings.Builder
	lastDash := true // suppress a leading dash
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			sb.WriteRune(c)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
