package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/snagtrack/snagtrack/internal/config"
	"github.com/snagtrack/snagtrack/internal/plan"
)

// TeamUpdater is the slice of the team store the billing service needs.
type TeamUpdater interface {
	SetStripeCustomer(ctx context.Context, teamID, customerID string) error
	TeamIDByStripeCustomer(ctx context.Context, customerID string) (string, error)
}

// Service bridges teams to Stripe: it starts checkout sessions and folds
// webhook events back into the local subscription cache.
type Service struct {
	store  *Store
	teams  TeamUpdater
	cfg    config.StripeConfig
	logger *slog.Logger
}

func NewService(store *Store, teams TeamUpdater, cfg config.StripeConfig, logger *slog.Logger) *Service {
	stripe.Key = cfg.SecretKey
	return &Service{store: store, teams: teams, cfg: cfg, logger: logger}
}

// Checkout creates a Stripe Checkout session that upgrades a team to the given
// plan and returns the hosted payment page URL. The team ID travels in the
// session and subscription metadata so webhook events can find their way back.
func (s *Service) Checkout(ctx context.Context, teamID string, target plan.Plan, customerID string) (string, error) {
	priceID, ok := s.cfg.Prices[string(target)]
	if !ok {
		return "", fmt.Errorf("no price configured for plan %q", target)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"team_id": teamID, "plan": string(target)},
		},
	}
	params.Context = ctx
	params.AddMetadata("team_id", teamID)
	params.AddMetadata("plan", string(target))
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}
	return sess.URL, nil
}

// ParseEvent verifies a webhook payload against its signature header.
func (s *Service) ParseEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, s.cfg.WebhookSecret)
}

// HandleEvent applies a verified Stripe event to local state. Unknown event
// types are acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("decoding checkout session: %w", err)
		}
		return s.handleCheckoutCompleted(ctx, &sess)
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decoding subscription: %w", err)
		}
		return s.handleSubscriptionChanged(ctx, &sub)
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decoding subscription: %w", err)
		}
		return s.handleSubscriptionDeleted(ctx, &sub)
	}
	s.logger.Debug("ignoring stripe event", slog.String("type", string(event.Type)))
	return nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	teamID := sess.Metadata["team_id"]
	if teamID == "" {
		s.logger.Warn("checkout session without team metadata", slog.String("session", sess.ID))
		return nil
	}
	if sess.Customer != nil {
		if err := s.teams.SetStripeCustomer(ctx, teamID, sess.Customer.ID); err != nil {
			return fmt.Errorf("recording stripe customer: %w", err)
		}
	}
	target := plan.Parse(sess.Metadata["plan"])
	sub := Subscription{TeamID: teamID, Plan: target, Status: "active"}
	if sess.Subscription != nil {
		sub.StripeSubscriptionID = sess.Subscription.ID
	}
	return s.store.Upsert(ctx, sub)
}

func (s *Service) handleSubscriptionChanged(ctx context.Context, sub *stripe.Subscription) error {
	teamID, err := s.resolveTeam(ctx, sub)
	if err != nil {
		return err
	}
	if teamID == "" {
		s.logger.Warn("subscription event for unknown team", slog.String("subscription", sub.ID))
		return nil
	}
	row := Subscription{
		TeamID:               teamID,
		Plan:                 s.planForSubscription(sub),
		Status:               string(sub.Status),
		StripeSubscriptionID: sub.ID,
	}
	if item := firstItem(sub); item != nil {
		if item.Price != nil {
			row.PriceID = item.Price.ID
			if item.Price.Recurring != nil {
				row.Interval = string(item.Price.Recurring.Interval)
			}
		}
		if item.CurrentPeriodEnd > 0 {
			end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			row.CurrentPeriodEnd = &end
		}
	}
	return s.store.Upsert(ctx, row)
}

func firstItem(sub *stripe.Subscription) *stripe.SubscriptionItem {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return sub.Items.Data[0]
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	teamID, err := s.resolveTeam(ctx, sub)
	if err != nil {
		return err
	}
	if teamID == "" {
		return nil
	}
	return s.store.Delete(ctx, teamID)
}

// resolveTeam finds the team an event belongs to, preferring the metadata we
// stamped at checkout and falling back to the stored customer mapping.
func (s *Service) resolveTeam(ctx context.Context, sub *stripe.Subscription) (string, error) {
	if teamID := sub.Metadata["team_id"]; teamID != "" {
		return teamID, nil
	}
	if sub.Customer == nil {
		return "", nil
	}
	teamID, err := s.teams.TeamIDByStripeCustomer(ctx, sub.Customer.ID)
	if err != nil {
		return "", fmt.Errorf("resolving team for customer %s: %w", sub.Customer.ID, err)
	}
	return teamID, nil
}

// planForSubscription maps the subscription's price back to a plan name. The
// metadata plan wins when present since it was written by our own checkout.
func (s *Service) planForSubscription(sub *stripe.Subscription) plan.Plan {
	if name := sub.Metadata["plan"]; name != "" {
		return plan.Parse(name)
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			for name, priceID := range s.cfg.Prices {
				if priceID == item.Price.ID {
					return plan.Parse(name)
				}
			}
		}
	}
	return plan.Free
}
