package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/flowdesk/mailsync/internal/store"
)

// SetupCommand returns the setup command
func SetupCommand() *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the database schema",
		Action: runSetup,
	}
}

func runSetup(c *cli.Context) error {
	db, err := connectDB(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(c.Context, db); err != nil {
		return fmt.Errorf("failed to set up schema: %w", err)
	}

	fmt.Println("Database schema is up to date")
	return nil
}
