package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/arbiterhq/arbiter/internal/domain"
	"github.com/arbiterhq/arbiter/pkg/adapters/metrics/noop"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Run one analysis and print the decision",
		Long: `Run a single deliberation for a stock symbol and print progress and
the final decision to stdout.
Example: arbiter analyze AAPL --date 2024-03-15 --depth 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			depth, _ := cmd.Flags().GetInt("depth")
			lookback, _ := cmd.Flags().GetInt("lookback")
			analysts, _ := cmd.Flags().GetString("analysts")
			return runAnalyze(args[0], date, depth, lookback, analysts)
		},
	}

	cmd.Flags().String("date", time.Now().UTC().Format("2006-01-02"), "Analysis date in YYYY-MM-DD format")
	cmd.Flags().Int("depth", 1, "Research debate depth (rounds)")
	cmd.Flags().Int("lookback", 30, "Data lookback window in days")
	cmd.Flags().String("analysts", "", "Comma-separated analyst roster (default: all)")

	return cmd
}

func runAnalyze(symbol, date string, depth, lookback int, analysts string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := initLogger("warn")
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	a, err := buildApp(ctx, cfg, noop.NewCollector(), logger)
	if err != nil {
		return err
	}
	if err := a.pool.Start(); err != nil {
		return err
	}

	roster := domain.AnalystRoles
	if analysts != "" {
		roster = nil
		for _, s := range strings.Split(analysts, ",") {
			roster = append(roster, domain.Role(strings.TrimSpace(s)))
		}
	}

	sessionID, err := a.engine.StartAnalysis(ctx, &domain.AnalyzeRequest{
		Symbol:        symbol,
		AsOfDate:      date,
		AnalystRoster: roster,
		ResearchDepth: depth,
		LookbackDays:  lookback,
	})
	if err != nil {
		return err
	}
	fmt.Printf("session %s started for %s as of %s\n\n", sessionID, symbol, date)

	sub, err := a.eventBus.Subscribe(sessionID)
	if err != nil {
		return err
	}
	defer sub.Close()

	go func() {
		for ev := range sub.Events() {
			switch ev.Kind {
			case domain.EventStageStarted:
				fmt.Printf("== %s\n", ev.Stage)
			case domain.EventAgentStatus:
				if ev.Agent != nil && ev.Agent.Status != "running" {
					fmt.Printf("   %-22s %s\n", ev.Agent.Role, ev.Agent.Status)
				}
			case domain.EventSubscriberOverflow:
				fmt.Printf("   (%d events dropped)\n", ev.Dropped)
			}
		}
	}()

	snap, err := waitForTerminal(ctx, a, sessionID)
	if err != nil {
		return err
	}

	fmt.Printf("\nstatus: %s\n", snap.Session.Status)
	switch snap.Session.Status {
	case domain.SessionStatusFailed:
		return fmt.Errorf("analysis failed (%s): %s", snap.Session.FailedKind, snap.Session.Error)
	case domain.SessionStatusCancelled:
		return fmt.Errorf("analysis was cancelled")
	}

	for i := len(snap.Artifacts) - 1; i >= 0; i-- {
		art := snap.Artifacts[i]
		if art.Kind == domain.ArtifactFinalDecision && art.Decision != nil {
			fmt.Printf("\n=== FINAL DECISION ===\n")
			fmt.Printf("action:     %s\n", strings.ToUpper(string(art.Decision.Action)))
			fmt.Printf("confidence: %.2f\n\n", art.Decision.Confidence)
			fmt.Println(art.Content)
			break
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownTimeout)
	defer cancel()
	a.close(shutdownCtx)
	return nil
}

// waitForTerminal polls the archive until the session reaches a terminal
// state. Polling instead of watching the bus avoids missing a terminal
// event published before the subscription existed.
func waitForTerminal(ctx context.Context, a *app, sessionID string) (*domain.SessionSnapshot, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			snap, err := a.engine.GetSnapshot(ctx, sessionID)
			if err != nil {
				return nil, err
			}
			if snap.Session.Status.Terminal() {
				return snap, nil
			}
		}
	}
}
