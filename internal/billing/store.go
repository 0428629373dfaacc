package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snagtrack/snagtrack/internal/plan"
)

// Subscription is the locally cached view of a team's Stripe subscription.
// Teams without a row are on the free plan.
type Subscription struct {
	TeamID               string     `json:"teamId"`
	Plan                 plan.Plan  `json:"plan"`
	Status               string     `json:"status"`
	Interval             string     `json:"interval,omitempty"`
	PriceID              string     `json:"-"`
	StripeSubscriptionID string     `json:"-"`
	CurrentPeriodEnd     *time.Time `json:"currentPeriodEnd,omitempty"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// Store caches subscription state pushed to us by Stripe webhooks.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Upsert writes the latest known subscription state for a team.
func (s *Store) Upsert(ctx context.Context, sub Subscription) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions (team_id, plan, status, interval, price_id,
			stripe_subscription_id, current_period_end, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (team_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			interval = EXCLUDED.interval,
			price_id = EXCLUDED.price_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = now()`,
		sub.TeamID, string(sub.Plan), sub.Status, sub.Interval, sub.PriceID,
		sub.StripeSubscriptionID, sub.CurrentPeriodEnd)
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

// Delete removes a team's cached subscription, dropping it back to free.
func (s *Store) Delete(ctx context.Context, teamID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM subscriptions WHERE team_id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return nil
}

// GetByTeam returns the cached subscription for a team, or nil when the team
// has never subscribed.
func (s *Store) GetByTeam(ctx context.Context, teamID string) (*Subscription, error) {
	sub := &Subscription{}
	var planName string
	err := s.pool.QueryRow(ctx,
		`SELECT team_id, plan, status, interval, price_id, stripe_subscription_id,
			current_period_end, updated_at
		 FROM subscriptions WHERE team_id = $1`, teamID,
	).Scan(&sub.TeamID, &planName, &sub.Status, &sub.Interval, &sub.PriceID,
		&sub.StripeSubscriptionID, &sub.CurrentPeriodEnd, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting subscription: %w", err)
	}
	sub.Plan = plan.Parse(planName)
	return sub, nil
}

// SubscriptionState implements plan.SubscriptionSource. Absent rows mean free
// and in good standing.
func (s *Store) SubscriptionState(ctx context.Context, teamID string) (plan.SubscriptionState, error) {
	sub, err := s.GetByTeam(ctx, teamID)
	if err != nil {
		return plan.SubscriptionState{}, err
	}
	if sub == nil {
		return plan.SubscriptionState{Plan: plan.Free, Status: "active"}, nil
	}
	return plan.SubscriptionState{Plan: sub.Plan, Status: sub.Status}, nil
}
