package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/snagtrack/snagtrack/internal/activity"
	"github.com/snagtrack/snagtrack/internal/auth"
	"github.com/snagtrack/snagtrack/internal/config"
	"github.com/snagtrack/snagtrack/internal/report"
	"github.com/snagtrack/snagtrack/internal/site"
	"github.com/snagtrack/snagtrack/internal/team"
	"github.com/snagtrack/snagtrack/internal/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a demo account, team, site, and reports",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

var demoReports = []struct {
	title    string
	comment  string
	priority string
	kind     string
	x, y     float64
}{
	{
		title:    "Header overlaps hero copy on mobile",
		comment:  "At 375px wide the sticky header covers the first line of the hero headline.",
		priority: "high",
		kind:     "bug",
		x:        0.5, y: 0.08,
	},
	{
		title:    "Pricing table misaligned in Safari",
		comment:  "The middle column sits 12px lower than its neighbours. Flexbox gap issue?",
		priority: "medium",
		kind:     "bug",
		x:        0.48, y: 0.61,
	},
	{
		title:    "Swap the footer CTA copy",
		comment:  "Marketing wants \"Start tracking bugs\" instead of \"Sign up now\".",
		priority: "low",
		kind:     "suggestion",
		x:        0.5, y: 0.95,
	},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	userStore := user.NewStore(pool)
	teamStore := team.NewStore(pool)
	siteStore := site.NewStore(pool)
	reportStore := report.NewStore(pool)
	activityStore := activity.NewStore(pool)

	const demoEmail = "demo@snagtrack.test"
	if existing, err := userStore.GetByEmail(ctx, demoEmail); err == nil && existing != nil {
		slog.Info("demo data already exists, skipping seed")
		return nil
	}

	u, err := userStore.Create(ctx, user.CreateUserInput{
		Email:    demoEmail,
		Password: "demo-password",
		Name:     "Demo User",
	})
	if err != nil {
		return fmt.Errorf("creating demo user: %w", err)
	}

	t, err := teamStore.Create(ctx, team.CreateTeamInput{Name: "Demo Team"}, u.ID)
	if err != nil {
		return fmt.Errorf("creating demo team: %w", err)
	}

	s, err := siteStore.Create(ctx, site.CreateSiteInput{
		TeamID: &t.ID,
		Domain: "demo.snagtrack.test",
		Name:   "Snagtrack Demo",
	})
	if err != nil {
		return fmt.Errorf("creating demo site: %w", err)
	}

	var first *report.Report
	for _, d := range demoReports {
		rep, err := reportStore.Create(ctx, report.CreateReportInput{
			SiteID:   s.ID,
			UserID:   u.ID,
			URL:      "https://demo.snagtrack.test/",
			Title:    d.title,
			Comment:  d.comment,
			X:        d.x,
			Y:        d.y,
			Priority: d.priority,
			Type:     d.kind,
		})
		if err != nil {
			return fmt.Errorf("creating report %q: %w", d.title, err)
		}
		if first == nil {
			first = rep
		}
		slog.Info("created report", "title", rep.Title, "id", rep.ID)
	}

	// A second member joining through the invite flow gives the demo user a
	// populated notification feed.
	mate, err := userStore.Create(ctx, user.CreateUserInput{
		Email:    "teammate@snagtrack.test",
		Password: "demo-password",
		Name:     "Demo Teammate",
	})
	if err != nil {
		return fmt.Errorf("creating demo teammate: %w", err)
	}
	inv, err := teamStore.CreateInvite(ctx, t.ID, auth.RoleMember, mate.Email)
	if err != nil {
		return fmt.Errorf("creating teammate invite: %w", err)
	}
	if _, err := teamStore.RedeemInvite(ctx, inv.Code, mate.ID); err != nil {
		return fmt.Errorf("redeeming teammate invite: %w", err)
	}

	mateID := mate.ID
	if _, err := reportStore.CreateComment(ctx, report.CreateCommentInput{
		ReportID: first.ID,
		UserID:   &mateID,
		Body:     "Repros for me on Safari as well.",
	}); err != nil {
		return fmt.Errorf("creating demo comment: %w", err)
	}

	mateReport, err := reportStore.Create(ctx, report.CreateReportInput{
		SiteID:   s.ID,
		UserID:   mate.ID,
		URL:      "https://demo.snagtrack.test/pricing",
		Title:    "Annual toggle resets on reload",
		Comment:  "Switching to annual billing and refreshing flips the toggle back to monthly.",
		X:        0.72,
		Y:        0.33,
		Priority: "medium",
		Type:     "bug",
	})
	if err != nil {
		return fmt.Errorf("creating teammate report: %w", err)
	}

	for _, rec := range []activity.Record{
		{ReportID: first.ID, ActorID: mate.ID, OwnerID: u.ID, Type: activity.TypeComment},
		{ReportID: first.ID, ActorID: mate.ID, OwnerID: u.ID, Type: activity.TypeAssignment},
		{ReportID: mateReport.ID, ActorID: mate.ID, OwnerID: u.ID, Type: activity.TypeCreated},
	} {
		if err := activityStore.Log(ctx, rec); err != nil {
			return fmt.Errorf("logging demo activity: %w", err)
		}
	}

	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("User:     %s / demo-password\n", demoEmail)
	fmt.Printf("Teammate: %s / demo-password\n", mate.Email)
	fmt.Printf("Team:     %s (%s)\n", t.Name, t.ID)
	fmt.Printf("Site:     %s\n", s.Domain)
	fmt.Printf("Reports:  %d\n", len(demoReports)+1)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -X POST http://localhost:8080/api/v1/auth/login -d '{\"email\":\"%s\",\"password\":\"demo-password\"}'\n", demoEmail)
	fmt.Printf("  curl -H 'Authorization: Bearer <token>' http://localhost:8080/api/v1/reports\n")

	return nil
}
