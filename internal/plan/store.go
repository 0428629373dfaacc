package plan

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store computes usage counts directly from the relational store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a usage store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CountUsage returns the team's current report, member, and site counts in a
// single round trip. Reports are counted across all of the team's sites.
func (s *Store) CountUsage(ctx context.Context, teamID string) (Usage, error) {
	var u Usage
	err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM reports r JOIN sites si ON r.site_id = si.id WHERE si.team_id = $1),
			(SELECT COUNT(*) FROM team_members WHERE team_id = $1),
			(SELECT COUNT(*) FROM sites WHERE team_id = $1)`,
		teamID,
	).Scan(&u.Reports, &u.Members, &u.Sites)
	if err != nil {
		return Usage{}, fmt.Errorf("counting team usage: %w", err)
	}
	return u, nil
}
