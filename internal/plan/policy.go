package plan

import (
	"context"
	"errors"
	"fmt"
)

// Enforcement errors, in gate order.
var (
	ErrPaymentRequired = errors.New("subscription is not active")
	ErrReportLimit     = errors.New("report limit reached for current plan")
	ErrMemberLimit     = errors.New("member limit reached for current plan")
	ErrSiteLimit       = errors.New("site limit reached for current plan")
)

// Usage is a team's current resource consumption, computed fresh per check.
type Usage struct {
	Reports int `json:"reports"`
	Members int `json:"members"`
	Sites   int `json:"sites"`
}

// Context is the resolved plan state attached to a request after a
// successful check.
type Context struct {
	Plan   Plan   `json:"plan"`
	Status string `json:"status"`
	Limits Limits `json:"limits"`
	Usage  Usage  `json:"usage"`
}

// Evaluate runs the enforcement gates in order, first failure wins:
// payment standing, then report ceiling, then member ceiling, then site
// ceiling. The member gate uses strict greater-than while the report and site
// gates use greater-or-equal; the asymmetry is deliberate and preserved.
func Evaluate(p Plan, status string, usage Usage) error {
	if p != Free && status != "active" {
		return ErrPaymentRequired
	}

	limits := LimitsFor(p)

	if limits.Reports != Unlimited && usage.Reports >= limits.Reports {
		return ErrReportLimit
	}
	if limits.Members != Unlimited && usage.Members > limits.Members {
		return ErrMemberLimit
	}
	if limits.Sites != Unlimited && usage.Sites >= limits.Sites {
		return ErrSiteLimit
	}
	return nil
}

// SubscriptionState is the slice of a team's cached subscription the engine
// cares about.
type SubscriptionState struct {
	Plan   Plan
	Status string
}

// SubscriptionSource resolves a team's effective subscription. Absence of a
// row means the free plan in active standing.
type SubscriptionSource interface {
	SubscriptionState(ctx context.Context, teamID string) (SubscriptionState, error)
}

// UsageSource computes a team's current usage counts.
type UsageSource interface {
	CountUsage(ctx context.Context, teamID string) (Usage, error)
}

// Engine resolves a team's plan and enforces its ceilings. Usage is never
// cached across requests; two concurrent checks near a ceiling may both pass,
// transiently exceeding the limit by one — accepted, not corrected.
type Engine struct {
	subs  SubscriptionSource
	usage UsageSource
}

// NewEngine creates a policy engine over the given sources.
func NewEngine(subs SubscriptionSource, usage UsageSource) *Engine {
	return &Engine{subs: subs, usage: usage}
}

// Check resolves the team's plan and usage and runs the gates. On success it
// returns the resolved Context for downstream handlers; on gate failure the
// Context is returned alongside the enforcement error so callers can report
// the offending numbers.
func (e *Engine) Check(ctx context.Context, teamID string) (*Context, error) {
	state, err := e.subs.SubscriptionState(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("resolving subscription: %w", err)
	}

	usage, err := e.usage.CountUsage(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("computing usage: %w", err)
	}

	pc := &Context{
		Plan:   state.Plan,
		Status: state.Status,
		Limits: LimitsFor(state.Plan),
		Usage:  usage,
	}
	if err := Evaluate(state.Plan, state.Status, usage); err != nil {
		return pc, err
	}
	return pc, nil
}

type contextKey int

const planContextKey contextKey = iota

// ContextWith returns a new context carrying the resolved plan context.
func ContextWith(ctx context.Context, pc *Context) context.Context {
	return context.WithValue(ctx, planContextKey, pc)
}

// FromContext extracts the plan context, or nil if not present.
func FromContext(ctx context.Context) *Context {
	pc, _ := ctx.Value(planContextKey).(*Context)
	return pc
}
