/*
main.go - Application entry point

PURPOSE:
  Command line for the birthday role bot. Loads configuration, prepares the
  database and wires the chat client, command router, reconciliation
  scheduler and optional admin HTTP server.

COMMANDS:
  birthday-bot run      Start the bot (default config: config.json)
  birthday-bot schema   Print the DDL of every registered table

STARTUP SEQUENCE (run):
  1. Load config (file, .env, BIRTHDAY_* env)
  2. Open SQLite and create tables; any failure aborts startup
  3. Connect to Discord and register commands
  4. Start the reconciliation scheduler
  5. Start the admin HTTP server if http_addr is set
  6. Wait for SIGINT/SIGTERM

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (an in-flight cycle finishes)
  2. Shut down the HTTP server
  3. Close the gateway and the database

EXAMPLES:
  ./birthday-bot run --config ./config.json
  BIRTHDAY_DEBUG=true ./birthday-bot run
  ./birthday-bot schema

SEE ALSO:
  - config/config.go: configuration keys
  - bot/: commands and scheduler
  - discord/: gateway adapter
*/
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "birthday-bot",
		Short:        "Discord bot that hands out a birthday role",
		SilenceUsage: true,
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newSchemaCommand())
	return cmd
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
