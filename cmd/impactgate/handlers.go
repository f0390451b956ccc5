package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/elonfeng/impactgate/internal/config"
	"github.com/elonfeng/impactgate/internal/scheduler"
	"github.com/elonfeng/impactgate/internal/store"
	"github.com/elonfeng/impactgate/pkg/alert"
	"github.com/elonfeng/impactgate/pkg/cluster"
	"github.com/elonfeng/impactgate/pkg/impact"
	"github.com/elonfeng/impactgate/pkg/ingest"
	"github.com/elonfeng/impactgate/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildEngine(cfg *config.Config, db store.Store) *impact.Engine {
	var shadow *impact.ShadowScorer
	if cfg.Shadow.Enabled && cfg.Shadow.APIKey != "" {
		shadow = impact.NewShadowScorer(
			cfg.Shadow.Provider,
			cfg.Shadow.Model,
			cfg.Shadow.APIKey,
			cfg.Shadow.BaseURL,
		)
		fmt.Fprintf(os.Stderr, "shadow scorer: %s/%s\n", cfg.Shadow.Provider, cfg.Shadow.Model)
	}
	return impact.NewEngine(db, shadow)
}

func buildSources(cfg *config.Config) []ingest.Source {
	var sources []ingest.Source
	filter := ingest.NewFilter(cfg.Ingest.Filter.ExtraKeywords, cfg.Ingest.Filter.ExcludeKeywords)

	if len(cfg.Ingest.Feeds) > 0 {
		feeds := make([]ingest.Feed, len(cfg.Ingest.Feeds))
		for i, f := range cfg.Ingest.Feeds {
			feeds[i] = ingest.Feed{Name: f.Name, URL: f.URL}
		}
		sources = append(sources, ingest.NewRSS(feeds, filter, cfg.Ingest.ParseMaxAge()))
	}
	if cfg.Ingest.ArXiv.Enabled {
		sources = append(sources, ingest.NewArXiv(cfg.Ingest.ArXiv.Categories, cfg.Ingest.ArXiv.MaxResults))
	}
	if cfg.Ingest.HackerNews.Enabled {
		sources = append(sources, ingest.NewHackerNews(cfg.Ingest.HackerNews.Limit, filter))
	}

	return sources
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func runIngest() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sources := buildSources(cfg)
	items, clusters, err := ingest.Run(context.Background(), sources, db, cfg.Topics)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\ntotal: %d items into %d clusters from %d sources\n", items, clusters, len(sources))
	return nil
}

func runScore(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine := buildEngine(cfg, db)
	outcomes, err := engine.Rescore(context.Background())
	if err != nil {
		return fmt.Errorf("rescore: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	}

	if len(outcomes) == 0 {
		fmt.Println("no clusters to score (try ingesting first: impactgate ingest)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tFINAL\tTHRESHOLD\tBUCKET\tCONF\tTITLE")
	for _, o := range outcomes {
		final := "-"
		if o.Assessment.Result.Final != nil {
			final = fmt.Sprintf("%.3f", *o.Assessment.Result.Final)
		}
		label := ""
		if o.Assessment.HighImpact {
			label = "HIGH"
		}
		fmt.Fprintf(w, "%s\t%s\t%.3f\t%s\t%.2f\t%s\n",
			label, final,
			o.Assessment.Resolution.Threshold, o.Assessment.Resolution.Bucket,
			o.Assessment.Result.Confidence, o.Cluster.Title)
	}
	return w.Flush()
}

func runReport(jsonOutput bool, limit int, eligibleOnly bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	reporter := impact.NewReporter(db)
	passes, nearMisses, err := reporter.DebugReport(context.Background(), limit, eligibleOnly)
	if err != nil {
		return fmt.Errorf("debug report: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"passes": passes, "near_misses": nearMisses})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	printRows := func(heading string, rows []cluster.DebugRow) {
		fmt.Fprintf(w, "%s\n", heading)
		fmt.Fprintln(w, "DELTA\tFINAL\tTHR\tCONF\tN/T/E\tGATES\tTITLE")
		for _, row := range rows {
			fmt.Fprintf(w, "%+.3f\t%.3f\t%.3f\t%.2f\t%.2f/%.2f/%.2f\t%s\t%s\n",
				row.ThresholdDelta, row.FinalScore, row.Threshold, row.Confidence,
				row.Novelty, row.Translation, row.Evidence,
				gateFlags(row), row.Title)
		}
		fmt.Fprintln(w)
	}

	printRows("CLEAR PASSES", passes)
	printRows("NEAR MISSES", nearMisses)
	return w.Flush()
}

// gateFlags renders the three gate-pass flags as a compact T/C/E string.
func gateFlags(row cluster.DebugRow) string {
	flags := []byte("---")
	if row.PassedThreshold {
		flags[0] = 'T'
	}
	if row.PassedConfidence {
		flags[1] = 'C'
	}
	if row.PassedEvidence {
		flags[2] = 'E'
	}
	return string(flags)
}

func runGuardrail(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	monitor := impact.NewMonitor(db)
	rates, err := monitor.RateWindows(context.Background(), cfg.Guardrail.Windows)
	if err != nil {
		return fmt.Errorf("rate windows: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rates)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WINDOW\tELIGIBLE\tLABELED\tRATE\tIN BAND")
	for _, r := range rates {
		fmt.Fprintf(w, "%dd\t%d\t%d\t%.4f\t%v\n", r.Days, r.Eligible, r.Labeled, r.Rate, r.InBand)
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine := buildEngine(cfg, db)
	sources := buildSources(cfg)

	srv := server.New(db, engine, sources, cfg.Topics, port)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine := buildEngine(cfg, db)
	sources := buildSources(cfg)
	alertMgr := buildAlertManager(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(db, sources, cfg.Topics, engine, alertMgr,
		cfg.Guardrail.Windows,
		cfg.Schedule.ParseIngestInterval(),
		cfg.Schedule.ParseScoreInterval(),
	)

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		}
	}()

	srv := server.New(db, engine, sources, cfg.Topics, port)
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	return srv.ListenAndServe()
}
