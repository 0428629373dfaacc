package site

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for sites and pins.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new site store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const siteColumns = `id, team_id, domain, slug, name, created_at`

func scanSite(scan func(dest ...any) error) (*Site, error) {
	s := &Site{}
	if err := scan(&s.ID, &s.TeamID, &s.Domain, &s.Slug, &s.Name, &s.CreatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new site. The domain and derived slug are unique; a
// duplicate surfaces as a constraint violation for the caller to map to a
// conflict response.
func (s *Store) Create(ctx context.Context, in CreateSiteInput) (*Site, error) {
	site, err := scanSite(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO sites (team_id, domain, slug, name)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+siteColumns,
			in.TeamID, in.Domain, Slugify(in.Domain), in.Name,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating site: %w", err)
	}
	return site, nil
}

// GetByID retrieves a site by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Site, error) {
	site, err := scanSite(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+siteColumns+` FROM sites WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting site by id: %w", err)
	}
	return site, nil
}

// GetByDomain retrieves a site by its unique domain. Returns pgx.ErrNoRows
// (wrapped) when absent.
func (s *Store) GetByDomain(ctx context.Context, domain string) (*Site, error) {
	site, err := scanSite(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+siteColumns+` FROM sites WHERE domain = $1`, domain,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting site by domain: %w", err)
	}
	return site, nil
}

// FindOrCreate returns the site for the domain, creating it when new.
func (s *Store) FindOrCreate(ctx context.Context, in CreateSiteInput) (*Site, bool, error) {
	site, err := s.GetByDomain(ctx, in.Domain)
	if err == nil {
		return site, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	created, err := s.Create(ctx, in)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// ListByTeams returns all sites owned by the given teams, newest first.
func (s *Store) ListByTeams(ctx context.Context, teamIDs []string) ([]*Site, error) {
	if len(teamIDs) == 0 {
		return []*Site{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+siteColumns+` FROM sites
		 WHERE team_id = ANY($1) ORDER BY created_at DESC`, teamIDs)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	defer rows.Close()

	var sites []*Site
	for rows.Next() {
		site, err := scanSite(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning site row: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// Pin records a user's pin on a site. Pinning twice is a no-op.
func (s *Store) Pin(ctx context.Context, userID, siteID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO site_pins (user_id, site_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, site_id) DO NOTHING`,
		userID, siteID)
	if err != nil {
		return fmt.Errorf("pinning site: %w", err)
	}
	return nil
}

// Unpin removes a user's pin on a site.
func (s *Store) Unpin(ctx context.Context, userID, siteID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM site_pins WHERE user_id = $1 AND site_id = $2`,
		userID, siteID)
	if err != nil {
		return fmt.Errorf("unpinning site: %w", err)
	}
	return nil
}

// PinnedSiteIDs returns the ids of the sites the user has pinned.
func (s *Store) PinnedSiteIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT site_id FROM site_pins WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing pinned sites: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning pin row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
