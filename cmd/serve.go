package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/flowdesk/mailsync/internal/api"
	"github.com/flowdesk/mailsync/internal/compose"
	"github.com/flowdesk/mailsync/internal/config"
	"github.com/flowdesk/mailsync/internal/database"
	"github.com/flowdesk/mailsync/internal/logging"
	"github.com/flowdesk/mailsync/internal/provider/google"
	"github.com/flowdesk/mailsync/internal/retry"
	"github.com/flowdesk/mailsync/internal/store"
	"github.com/flowdesk/mailsync/internal/tokens"
	"github.com/flowdesk/mailsync/internal/watch"
)

// ServeCommand returns the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the integration API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Human-readable log output",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
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

	port := cfg.Server.Port
	if c.Int("port") > 0 {
		port = c.Int("port")
	}

	creds := store.NewCredentialStore(db)
	messages := store.NewMessageStore(db)

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
	scheduler.SetWorkers(cfg.Watch.Workers)

	composer := compose.NewComposer(creds, messages, refresher, client)

	server := api.NewServer(port, cfg.Server.JWTSecret, creds, messages, composer, scheduler, client)

	log.Info().Int("port", port).Msg("Starting mailsync API server")

	return server.Start()
}

// connectDB opens the database with startup retries; the database container
// may still be coming up when the service starts.
func connectDB(ctx context.Context) (*sql.DB, error) {
	var db *sql.DB
	result := retry.RetryWithBackoff(ctx, retry.DatabaseRetryConfig(), func() error {
		var err error
		db, err = database.NewDB()
		return err
	}, log.Logger)
	if !result.Success {
		return nil, fmt.Errorf("failed to connect to database: %w", result.LastError)
	}
	return db, nil
}
