package plan

import (
	"context"
	"errors"
	"testing"
)

func TestLimitsFor(t *testing.T) {
	if l := LimitsFor(Free); l.Reports != 50 || l.Members != 3 || l.Sites != 3 {
		t.Errorf("unexpected free limits: %+v", l)
	}
	if l := LimitsFor(Starter); l.Reports != 1000 || l.Members != 10 || l.Sites != 5 {
		t.Errorf("unexpected starter limits: %+v", l)
	}
	if l := LimitsFor(Team); l.Reports != 5000 || l.Members != 50 || l.Sites != Unlimited {
		t.Errorf("unexpected team limits: %+v", l)
	}
	if l := LimitsFor(Agency); l.Reports != Unlimited || l.Members != Unlimited || l.Sites != Unlimited {
		t.Errorf("unexpected agency limits: %+v", l)
	}
	if l := LimitsFor(Plan("mystery")); l != LimitsFor(Free) {
		t.Errorf("unknown plan should fall back to free, got %+v", l)
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		status  string
		usage   Usage
		wantErr error
	}{
		{"free under limits", Free, "active", Usage{Reports: 10, Members: 2, Sites: 1}, nil},
		{"free 49 reports passes", Free, "active", Usage{Reports: 49, Members: 2, Sites: 1}, nil},
		{"free 50 reports rejected", Free, "active", Usage{Reports: 50, Members: 2, Sites: 1}, ErrReportLimit},
		{"free 51 reports rejected", Free, "active", Usage{Reports: 51, Members: 2, Sites: 1}, ErrReportLimit},

		// Member ceiling is strict greater-than: at the ceiling still passes.
		{"free members at ceiling pass", Free, "active", Usage{Reports: 0, Members: 3, Sites: 1}, nil},
		{"free members over ceiling rejected", Free, "active", Usage{Reports: 0, Members: 4, Sites: 1}, ErrMemberLimit},

		// Site ceiling is greater-or-equal: at the ceiling rejects.
		{"free sites at ceiling rejected", Free, "active", Usage{Reports: 0, Members: 1, Sites: 3}, ErrSiteLimit},
		{"free sites under ceiling pass", Free, "active", Usage{Reports: 0, Members: 1, Sites: 2}, nil},

		// Gate order: payment standing first, then reports, members, sites.
		{"paid inactive rejected first", Starter, "canceled", Usage{Reports: 9999, Members: 99, Sites: 99}, ErrPaymentRequired},
		{"free ignores status", Free, "canceled", Usage{Reports: 0, Members: 1, Sites: 0}, nil},
		{"report gate before member gate", Free, "active", Usage{Reports: 50, Members: 10, Sites: 10}, ErrReportLimit},
		{"member gate before site gate", Free, "active", Usage{Reports: 0, Members: 10, Sites: 10}, ErrMemberLimit},

		{"starter active under limits", Starter, "active", Usage{Reports: 999, Members: 10, Sites: 4}, nil},
		{"starter report ceiling", Starter, "active", Usage{Reports: 1000, Members: 1, Sites: 1}, ErrReportLimit},
		{"team unlimited sites", Team, "active", Usage{Reports: 0, Members: 1, Sites: 500}, nil},
		{"agency unlimited everything", Agency, "active", Usage{Reports: 99999, Members: 999, Sites: 999}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Evaluate(tt.plan, tt.status, tt.usage)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Evaluate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

type fakeSubs struct {
	state SubscriptionState
	err   error
}

func (f *fakeSubs) SubscriptionState(_ context.Context, _ string) (SubscriptionState, error) {
	return f.state, f.err
}

type fakeUsage struct {
	usage Usage
	err   error
	calls int
}

func (f *fakeUsage) CountUsage(_ context.Context, _ string) (Usage, error) {
	f.calls++
	return f.usage, f.err
}

func TestEngineCheck(t *testing.T) {
	subs := &fakeSubs{state: SubscriptionState{Plan: Free, Status: "active"}}
	usage := &fakeUsage{usage: Usage{Reports: 49, Members: 2, Sites: 1}}
	engine := NewEngine(subs, usage)

	pc, err := engine.Check(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if pc.Plan != Free || pc.Limits.Reports != 50 || pc.Usage.Reports != 49 {
		t.Errorf("unexpected plan context: %+v", pc)
	}
}

func TestEngineCheckLimitReached(t *testing.T) {
	subs := &fakeSubs{state: SubscriptionState{Plan: Free, Status: "active"}}
	usage := &fakeUsage{usage: Usage{Reports: 50, Members: 2, Sites: 1}}
	engine := NewEngine(subs, usage)

	pc, err := engine.Check(context.Background(), "t-1")
	if !errors.Is(err, ErrReportLimit) {
		t.Fatalf("expected ErrReportLimit, got %v", err)
	}
	if pc == nil || pc.Usage.Reports != 50 {
		t.Errorf("expected plan context alongside gate failure, got %+v", pc)
	}
}

func TestEngineCheckRecomputesUsage(t *testing.T) {
	subs := &fakeSubs{state: SubscriptionState{Plan: Free, Status: "active"}}
	usage := &fakeUsage{usage: Usage{}}
	engine := NewEngine(subs, usage)

	for i := 0; i < 3; i++ {
		if _, err := engine.Check(context.Background(), "t-1"); err != nil {
			t.Fatal(err)
		}
	}
	if usage.calls != 3 {
		t.Errorf("expected usage computed per check, got %d calls", usage.calls)
	}
}

func TestPlanContextRoundTrip(t *testing.T) {
	pc := &Context{Plan: Starter, Status: "active"}
	ctx := ContextWith(context.Background(), pc)
	if got := FromContext(ctx); got != pc {
		t.Errorf("FromContext = %+v, want %+v", got, pc)
	}
	if got := FromContext(context.Background()); got != nil {
		t.Errorf("FromContext on empty context = %+v, want nil", got)
	}
}
