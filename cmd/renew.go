package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/flowdesk/mailsync/internal/config"
	"github.com/flowdesk/mailsync/internal/logging"
	"github.com/flowdesk/mailsync/internal/provider/google"
	"github.com/flowdesk/mailsync/internal/store"
	"github.com/flowdesk/mailsync/internal/tokens"
	"github.com/flowdesk/mailsync/internal/watch"
)

// RenewCommand returns the renew command
func RenewCommand() *cli.Command {
	return &cli.Command{
		Name:  "renew",
		Usage: "Run one watch renewal batch and print the report",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent accounts to process (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Human-readable log output",
			},
		},
		Action: runRenew,
	}
}

func runRenew(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Log.Level, c.Bool("pretty"))

	db, err := connectDB(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	creds := store.NewCredentialStore(db)

	client := google.NewClient(google.Options{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		TopicName:    cfg.Google.TopicName,
		TokenURL:     cfg.Google.TokenURL,
		APIBaseURL:   cfg.Google.APIBaseURL,
		Timeout:      time.Duration(cfg.Google.TimeoutSecs) * time.Second,
		QPS:          float64(cfg.Google.QPS),
	})

	refresher := tokens.NewRefresher(creds, client)

	scheduler := watch.NewScheduler(creds, client, refresher)
	scheduler.SetRenewalLead(time.Duration(cfg.Watch.RenewalLeadHours) * time.Hour)
	if c.Int("workers") > 0 {
		scheduler.SetWorkers(c.Int("workers"))
	} else {
		scheduler.SetWorkers(cfg.Watch.Workers)
	}

	report, err := scheduler.RunOnce(c.Context)
	if err != nil {
		return fmt.Errorf("renewal batch failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to print report: %w", err)
	}

	// Non-zero exit when any account failed, so cron alerting catches it.
	if report.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d account(s) failed renewal", report.Failed), 1)
	}

	return nil
}
