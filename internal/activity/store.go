package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for activities.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Log records an activity. Actions a user takes on their own report are
// dropped silently, and unknown types are rejected before they reach the
// database.
func (s *Store) Log(ctx context.Context, rec Record) error {
	if rec.ActorID == rec.OwnerID {
		return nil
	}
	if !ValidType(rec.Type) {
		return fmt.Errorf("unknown activity type %q", rec.Type)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO activities (report_id, actor_id, owner_id, type, detail)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ReportID, rec.ActorID, rec.OwnerID, rec.Type, rec.Detail)
	if err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

const activityQuery = `SELECT a.id, a.report_id, COALESCE(r.title, ''), a.actor_id,
	COALESCE(u.name, ''), a.owner_id, a.type, a.detail, a.read_at, a.created_at
	FROM activities a
	LEFT JOIN reports r ON a.report_id = r.id
	LEFT JOIN users u ON a.actor_id = u.id`

func (s *Store) queryActivities(ctx context.Context, query string, args ...any) ([]*Activity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		a := &Activity{}
		err := rows.Scan(&a.ID, &a.ReportID, &a.ReportTitle, &a.ActorID, &a.ActorName,
			&a.OwnerID, &a.Type, &a.Detail, &a.ReadAt, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning activity row: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// ListForOwner returns activities targeted at a user, newest first.
func (s *Store) ListForOwner(ctx context.Context, ownerID string, limit int) ([]*Activity, error) {
	return s.queryActivities(ctx,
		activityQuery+` WHERE a.owner_id = $1 ORDER BY a.created_at DESC LIMIT $2`,
		ownerID, limit)
}

// ListForTeams returns activities on reports belonging to the given teams'
// sites, newest first.
func (s *Store) ListForTeams(ctx context.Context, teamIDs []string, limit int) ([]*Activity, error) {
	return s.queryActivities(ctx,
		activityQuery+` JOIN sites si ON r.site_id = si.id
		 WHERE si.team_id = ANY($1) ORDER BY a.created_at DESC LIMIT $2`,
		teamIDs, limit)
}

// MarkRead stamps read_at on all of a user's unread activities.
func (s *Store) MarkRead(ctx context.Context, ownerID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE activities SET read_at = now() WHERE owner_id = $1 AND read_at IS NULL`,
		ownerID)
	if err != nil {
		return fmt.Errorf("marking activities read: %w", err)
	}
	return nil
}
