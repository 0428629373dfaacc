package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for reports, comments, and attachments.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new report store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const reportColumns = `id, site_id, user_id, url, title, comment, x, y, priority, type,
	status, image_key, due_at, resolved_at, archived, archived_at, duration_minutes, created_at`

func scanReport(scan func(dest ...any) error) (*Report, error) {
	r := &Report{}
	err := scan(&r.ID, &r.SiteID, &r.UserID, &r.URL, &r.Title, &r.Comment, &r.X, &r.Y,
		&r.Priority, &r.Type, &r.Status, &r.ImageKey, &r.DueAt, &r.ResolvedAt,
		&r.Archived, &r.ArchivedAt, &r.DurationMinutes, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	// Rows resolved without a stored duration (imported data) get it derived
	// from the timestamps.
	if r.DurationMinutes == nil && r.ResolvedAt != nil {
		mins := durationMinutes(r.CreatedAt, *r.ResolvedAt)
		r.DurationMinutes = &mins
	}
	return r, nil
}

// Create inserts a new report with status "new".
func (s *Store) Create(ctx context.Context, in CreateReportInput) (*Report, error) {
	r, err := scanReport(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO reports (site_id, user_id, url, title, comment, x, y, priority, type, status, image_key)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING `+reportColumns,
			in.SiteID, in.UserID, in.URL, in.Title, in.Comment, in.X, in.Y,
			in.Priority, in.Type, StatusNew, in.ImageKey,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating report: %w", err)
	}
	return r, nil
}

// GetByID retrieves a report by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Report, error) {
	r, err := scanReport(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+reportColumns+` FROM reports WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting report by id: %w", err)
	}
	return r, nil
}

// List returns reports visible to a user: reports on the user's teams' sites
// plus the user's own reports, newest first. Query is a substring filter.
func (s *Store) List(ctx context.Context, params ListParams) ([]*Report, error) {
	query := `SELECT r.` + joinedReportColumns() + `
		FROM reports r JOIN sites si ON r.site_id = si.id
		WHERE (si.team_id = ANY($1) OR r.user_id = $2)`
	args := []any{params.TeamIDs, params.UserID}

	if !params.IncludeArchived {
		query += ` AND NOT r.archived`
	}
	if params.Query != "" {
		args = append(args, "%"+params.Query+"%")
		n := len(args)
		query += fmt.Sprintf(` AND (r.title ILIKE $%d OR r.comment ILIKE $%d OR r.url ILIKE $%d)`, n, n, n)
	}
	query += ` ORDER BY r.created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		r, err := scanReport(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func joinedReportColumns() string {
	return `id, r.site_id, r.user_id, r.url, r.title, r.comment, r.x, r.y, r.priority, r.type,
	r.status, r.image_key, r.due_at, r.resolved_at, r.archived, r.archived_at, r.duration_minutes, r.created_at`
}

// SetStatus updates a report's status. The first transition to done stamps
// resolved_at and computes duration_minutes from the creation time; later
// writes of done leave both untouched.
func (s *Store) SetStatus(ctx context.Context, id, status string) (*Report, error) {
	r, err := scanReport(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE reports SET
				status = $2,
				resolved_at = CASE WHEN $2 = $3 AND resolved_at IS NULL THEN now() ELSE resolved_at END,
				duration_minutes = CASE WHEN $2 = $3 AND resolved_at IS NULL
					THEN ROUND(EXTRACT(EPOCH FROM (now() - created_at)) / 60)::int
					ELSE duration_minutes END
			 WHERE id = $1
			 RETURNING `+reportColumns,
			id, status, StatusDone,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("setting report status: %w", err)
	}
	return r, nil
}

// SetPriority updates a report's priority.
func (s *Store) SetPriority(ctx context.Context, id, priority string) (*Report, error) {
	r, err := scanReport(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE reports SET priority = $2 WHERE id = $1 RETURNING `+reportColumns,
			id, priority,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("setting report priority: %w", err)
	}
	return r, nil
}

// SetDueDate updates a report's due date. A nil due clears it.
func (s *Store) SetDueDate(ctx context.Context, id string, due *time.Time) (*Report, error) {
	r, err := scanReport(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE reports SET due_at = $2 WHERE id = $1 RETURNING `+reportColumns,
			id, due,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("setting report due date: %w", err)
	}
	return r, nil
}

// SetArchived flips the archived flag, stamping archived_at on archive and
// clearing it on un-archive.
func (s *Store) SetArchived(ctx context.Context, id string, archived bool) (*Report, error) {
	r, err := scanReport(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE reports SET
				archived = $2,
				archived_at = CASE WHEN $2 THEN now() ELSE NULL END
			 WHERE id = $1
			 RETURNING `+reportColumns,
			id, archived,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("archiving report: %w", err)
	}
	return r, nil
}

// DeleteResult describes what a transactional delete removed. ObjectKeys are
// the storage keys the caller must clean up afterwards.
type DeleteResult struct {
	SiteDeleted bool
	ObjectKeys  []string
}

// Delete removes a report in a single transaction. Comments and attachments
// go with it via cascade; when the report was the last one on its site, the
// now-empty site is removed too. The report row is locked so concurrent
// deletes of siblings agree on who removes the site.
func (s *Store) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var siteID, imageKey string
	err = tx.QueryRow(ctx,
		`SELECT site_id, image_key FROM reports WHERE id = $1 FOR UPDATE`, id,
	).Scan(&siteID, &imageKey)
	if err != nil {
		return nil, fmt.Errorf("locking report: %w", err)
	}

	result := &DeleteResult{}
	if imageKey != "" {
		result.ObjectKeys = append(result.ObjectKeys, imageKey)
	}

	// Collect attachment keys before the cascade wipes the rows.
	rows, err := tx.Query(ctx,
		`SELECT a.object_key, a.thumb_key FROM attachments a
		 JOIN comments c ON a.comment_id = c.id WHERE c.report_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("listing attachment keys: %w", err)
	}
	for rows.Next() {
		var objectKey, thumbKey string
		if err := rows.Scan(&objectKey, &thumbKey); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning attachment keys: %w", err)
		}
		result.ObjectKeys = append(result.ObjectKeys, objectKey)
		if thumbKey != "" {
			result.ObjectKeys = append(result.ObjectKeys, thumbKey)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attachment keys: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("deleting report: %w", err)
	}

	var remaining int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM reports WHERE site_id = $1`, siteID,
	).Scan(&remaining)
	if err != nil {
		return nil, fmt.Errorf("counting remaining reports: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM sites WHERE id = $1`, siteID); err != nil {
			return nil, fmt.Errorf("deleting empty site: %w", err)
		}
		result.SiteDeleted = true
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing report deletion: %w", err)
	}
	return result, nil
}

// DueBefore returns the user's open reports whose due date lies strictly
// before t, most overdue first.
func (s *Store) DueBefore(ctx context.Context, userID string, t time.Time) ([]*Report, error) {
	return s.queryDue(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE user_id = $1 AND due_at IS NOT NULL AND due_at < $2
		   AND status <> $3 AND NOT archived
		 ORDER BY due_at ASC`,
		userID, t, StatusDone)
}

// DueBetween returns the user's open reports whose due date falls within
// [from, to), soonest first.
func (s *Store) DueBetween(ctx context.Context, userID string, from, to time.Time) ([]*Report, error) {
	return s.queryDue(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE user_id = $1 AND due_at IS NOT NULL AND due_at >= $2 AND due_at < $3
		   AND status <> $4 AND NOT archived
		 ORDER BY due_at ASC`,
		userID, from, to, StatusDone)
}

func (s *Store) queryDue(ctx context.Context, query string, args ...any) ([]*Report, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying due reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		r, err := scanReport(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

const commentColumns = `id, report_id, parent_id, user_id, body, created_at`

func scanComment(scan func(dest ...any) error) (*Comment, error) {
	c := &Comment{}
	if err := scan(&c.ID, &c.ReportID, &c.ParentID, &c.UserID, &c.Body, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateComment inserts a comment on a report.
func (s *Store) CreateComment(ctx context.Context, in CreateCommentInput) (*Comment, error) {
	c, err := scanComment(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO comments (report_id, parent_id, user_id, body)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+commentColumns,
			in.ReportID, in.ParentID, in.UserID, in.Body,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}
	c.Attachments = []*Attachment{}
	return c, nil
}

// ListComments returns a report's comments oldest first, attachments included.
func (s *Store) ListComments(ctx context.Context, reportID string) ([]*Comment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+commentColumns+` FROM comments
		 WHERE report_id = $1 ORDER BY created_at ASC`, reportID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var comments []*Comment
	byID := map[string]*Comment{}
	for rows.Next() {
		c, err := scanComment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning comment row: %w", err)
		}
		c.Attachments = []*Attachment{}
		comments = append(comments, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return []*Comment{}, nil
	}

	arows, err := s.pool.Query(ctx,
		`SELECT a.id, a.comment_id, a.object_key, a.thumb_key, a.created_at
		 FROM attachments a JOIN comments c ON a.comment_id = c.id
		 WHERE c.report_id = $1 ORDER BY a.created_at ASC`, reportID)
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	defer arows.Close()

	for arows.Next() {
		a := &Attachment{}
		if err := arows.Scan(&a.ID, &a.CommentID, &a.ObjectKey, &a.ThumbKey, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning attachment row: %w", err)
		}
		if c, ok := byID[a.CommentID]; ok {
			c.Attachments = append(c.Attachments, a)
		}
	}
	return comments, arows.Err()
}

// AddAttachment records an uploaded attachment against a comment.
func (s *Store) AddAttachment(ctx context.Context, commentID, objectKey, thumbKey string) (*Attachment, error) {
	a := &Attachment{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO attachments (comment_id, object_key, thumb_key)
		 VALUES ($1, $2, $3)
		 RETURNING id, comment_id, object_key, thumb_key, created_at`,
		commentID, objectKey, thumbKey,
	).Scan(&a.ID, &a.CommentID, &a.ObjectKey, &a.ThumbKey, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("adding attachment: %w", err)
	}
	return a, nil
}
