package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/snagtrack/snagtrack/internal/auth"
)

const inviteValidity = 7 * 24 * time.Hour

// Errors returned by invite redemption and membership operations.
var (
	ErrInviteNotFound = errors.New("invite code not found")
	ErrInviteExpired  = errors.New("invite code has expired")
	ErrInviteUsed     = errors.New("invite code has already been used")
	ErrNotMember      = errors.New("user is not a member of the team")
	ErrLastOwner      = errors.New("cannot remove the last owner of a team")
)

// Store provides database operations for teams, members, and invites.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time // injectable clock for testing expiry logic
}

// NewStore creates a new team store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

const teamColumns = `id, name, logo_key, plan, stripe_customer_id, created_at`

func scanTeam(scan func(dest ...any) error) (*Team, error) {
	t := &Team{}
	if err := scan(&t.ID, &t.Name, &t.LogoKey, &t.Plan, &t.StripeCustomerID, &t.CreatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new team and makes the creating user its owner, in a
// single transaction.
func (s *Store) Create(ctx context.Context, in CreateTeamInput, ownerID string) (*Team, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := s.CreateTx(ctx, tx, in, ownerID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing team creation: %w", err)
	}
	return t, nil
}

// CreateTx inserts a team and its owner membership inside the caller's
// transaction.
func (s *Store) CreateTx(ctx context.Context, tx pgx.Tx, in CreateTeamInput, ownerID string) (*Team, error) {
	t, err := scanTeam(func(dest ...any) error {
		return tx.QueryRow(ctx,
			`INSERT INTO teams (name, logo_key, plan)
			 VALUES ($1, $2, 'free')
			 RETURNING `+teamColumns,
			in.Name, in.LogoKey,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating team: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, $3)`,
		t.ID, ownerID, auth.RoleOwner,
	)
	if err != nil {
		return nil, fmt.Errorf("creating owner membership: %w", err)
	}
	return t, nil
}

// GetByID retrieves a team by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Team, error) {
	t, err := scanTeam(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+teamColumns+` FROM teams WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting team by id: %w", err)
	}
	return t, nil
}

// SetStripeCustomer records the team's billing customer id.
func (s *Store) SetStripeCustomer(ctx context.Context, teamID, customerID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE teams SET stripe_customer_id = $2 WHERE id = $1`, teamID, customerID)
	if err != nil {
		return fmt.Errorf("setting stripe customer: %w", err)
	}
	return nil
}

// TeamIDByStripeCustomer resolves a billing customer id to a team id, or ""
// when no team carries it.
func (s *Store) TeamIDByStripeCustomer(ctx context.Context, customerID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM teams WHERE stripe_customer_id = $1`, customerID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolving stripe customer: %w", err)
	}
	return id, nil
}

// Update performs a partial update on the team with the given id.
func (s *Store) Update(ctx context.Context, id string, in UpdateTeamInput) (*Team, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	if in.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, *in.Name)
		argIdx++
	}
	if in.LogoKey != nil {
		setClauses = append(setClauses, fmt.Sprintf("logo_key = $%d", argIdx))
		args = append(args, *in.LogoKey)
		argIdx++
	}
	if in.Plan != nil {
		setClauses = append(setClauses, fmt.Sprintf("plan = $%d", argIdx))
		args = append(args, *in.Plan)
		argIdx++
	}
	if in.StripeCustomerID != nil {
		setClauses = append(setClauses, fmt.Sprintf("stripe_customer_id = $%d", argIdx))
		args = append(args, *in.StripeCustomerID)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE teams SET %s WHERE id = $%d RETURNING `+teamColumns,
		strings.Join(setClauses, ", "), argIdx,
	)

	t, err := scanTeam(func(dest ...any) error {
		return s.pool.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating team: %w", err)
	}
	return t, nil
}

const memberColumns = `id, team_id, user_id, role, created_at`

func scanMember(scan func(dest ...any) error) (*Member, error) {
	m := &Member{}
	if err := scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMembershipsByUser returns the user's memberships ordered by join time,
// oldest first. The first entry is the user's default team.
func (s *Store) ListMembershipsByUser(ctx context.Context, userID string) ([]*Member, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM team_members
		 WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning membership row: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListMembers returns all memberships of a team, oldest first.
func (s *Store) ListMembers(ctx context.Context, teamID string) ([]*Member, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM team_members
		 WHERE team_id = $1 ORDER BY created_at ASC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// RemoveMember deletes a membership. Removing the last owner is refused.
func (s *Store) RemoveMember(ctx context.Context, teamID, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var role auth.Role
	err = tx.QueryRow(ctx,
		`SELECT role FROM team_members WHERE team_id = $1 AND user_id = $2 FOR UPDATE`,
		teamID, userID,
	).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotMember
	}
	if err != nil {
		return fmt.Errorf("getting membership: %w", err)
	}

	if role == auth.RoleOwner {
		var owners int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM team_members WHERE team_id = $1 AND role = $2`,
			teamID, auth.RoleOwner,
		).Scan(&owners)
		if err != nil {
			return fmt.Errorf("counting owners: %w", err)
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("removing member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing member removal: %w", err)
	}
	return nil
}

const inviteColumns = `id, team_id, code, role, email, expires_at, used, created_at`

func scanInvite(scan func(dest ...any) error) (*Invite, error) {
	i := &Invite{}
	if err := scan(&i.ID, &i.TeamID, &i.Code, &i.Role, &i.Email, &i.ExpiresAt, &i.Used, &i.CreatedAt); err != nil {
		return nil, err
	}
	return i, nil
}

// CreateInvite mints and persists a fresh invite code for the team. Repeated
// calls mint distinct codes.
func (s *Store) CreateInvite(ctx context.Context, teamID string, role auth.Role, email string) (*Invite, error) {
	code, err := GenerateInviteCode()
	if err != nil {
		return nil, err
	}

	inv, err := scanInvite(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO team_invites (team_id, code, role, email, expires_at)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+inviteColumns,
			teamID, code, role, email, s.now().Add(inviteValidity),
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating invite: %w", err)
	}
	return inv, nil
}

// ActiveInvite returns the most recent unexpired, unused invite for the team
// and role, or pgx.ErrNoRows when none exists. Callers wanting link reuse
// check here before minting.
func (s *Store) ActiveInvite(ctx context.Context, teamID string, role auth.Role) (*Invite, error) {
	inv, err := scanInvite(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+inviteColumns+` FROM team_invites
			 WHERE team_id = $1 AND role = $2 AND email = '' AND NOT used AND expires_at > $3
			 ORDER BY created_at DESC LIMIT 1`,
			teamID, role, s.now(),
		).Scan(dest...)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetInviteByCode retrieves an invite by its normalized code.
func (s *Store) GetInviteByCode(ctx context.Context, code string) (*Invite, error) {
	inv, err := scanInvite(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+inviteColumns+` FROM team_invites WHERE code = $1`,
			NormalizeInviteCode(code),
		).Scan(dest...)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting invite by code: %w", err)
	}
	return inv, nil
}

// RedeemInvite redeems an invite code for the given user. The invite row is
// locked for the duration, so concurrent redemptions of the same code resolve
// to exactly one membership insert and one used-flag flip. Redemption by a
// user who already holds a membership in the target team succeeds without
// touching the invite or creating a duplicate row.
func (s *Store) RedeemInvite(ctx context.Context, code, userID string) (*Member, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := scanInvite(func(dest ...any) error {
		return tx.QueryRow(ctx,
			`SELECT `+inviteColumns+` FROM team_invites WHERE code = $1 FOR UPDATE`,
			NormalizeInviteCode(code),
		).Scan(dest...)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking invite: %w", err)
	}

	if inv.Expired(s.now()) {
		return nil, ErrInviteExpired
	}
	if inv.Used {
		return nil, ErrInviteUsed
	}

	// Existing membership: succeed idempotently, leave the invite redeemable.
	existing, err := scanMember(func(dest ...any) error {
		return tx.QueryRow(ctx,
			`SELECT `+memberColumns+` FROM team_members WHERE team_id = $1 AND user_id = $2`,
			inv.TeamID, userID,
		).Scan(dest...)
	})
	if err == nil {
		if cerr := tx.Commit(ctx); cerr != nil {
			return nil, fmt.Errorf("committing idempotent redemption: %w", cerr)
		}
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("checking existing membership: %w", err)
	}

	m, err := scanMember(func(dest ...any) error {
		return tx.QueryRow(ctx,
			`INSERT INTO team_members (team_id, user_id, role)
			 VALUES ($1, $2, $3)
			 RETURNING `+memberColumns,
			inv.TeamID, userID, inv.Role,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating membership: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE team_invites SET used = true WHERE id = $1`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("marking invite used: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing redemption: %w", err)
	}
	return m, nil
}
