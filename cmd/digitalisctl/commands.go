package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/digitalis/digitalis/internal/auth"
	"github.com/digitalis/digitalis/internal/config"
	"github.com/digitalis/digitalis/internal/database"
	"github.com/digitalis/digitalis/internal/models"
	"github.com/digitalis/digitalis/internal/repositories"
)

// defaultTimeout bounds every CLI operation
const defaultTimeout = 5 * time.Minute

// app carries what the commands need; tests replace the constructors
type app struct {
	loadConfig func() (*config.Config, error)
	openDB     func(cfg *config.Config, logger *slog.Logger) (*database.DB, error)
	logger     *slog.Logger
}

func defaultApp() *app {
	return &app{
		loadConfig: config.Load,
		openDB: func(cfg *config.Config, logger *slog.Logger) (*database.DB, error) {
			return database.NewConnection(&cfg.Database, logger)
		},
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
}

// withDB loads configuration, opens the pool and runs fn
func (a *app) withDB(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, db *database.DB) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	db, err := a.openDB(cfg, a.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
	defer cancel()

	return fn(ctx, cfg, db)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "digitalisctl",
		Short:         "Operate the Digitalis web-service backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().Bool("json", false, "Output in JSON format")

	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newTokenCmd(a))
	root.AddCommand(newEventsCmd(a))

	return root
}

func newMigrateCmd(a *app) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				if err := db.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				return db.MigrationStatus(ctx)
			})
		},
	})

	return migrateCmd
}

func newTokenCmd(a *app) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage web-service tokens",
	}

	var (
		userID int64
		expiry time.Duration
	)

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				tm := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenExpiry)
				token, err := issueToken(ctx, tm, repositories.NewUserRepository(db), userID, expiry)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	issueCmd.Flags().Int64Var(&userID, "user-id", 0, "User the token authenticates as")
	issueCmd.Flags().DurationVar(&expiry, "expiry", 0, "Token lifetime (defaults to TOKEN_EXPIRY)")
	_ = issueCmd.MarkFlagRequired("user-id")

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}

// issueToken signs a token for an active user
func issueToken(ctx context.Context, tm *auth.TokenManager, users auth.UserRepository, userID int64, expiry time.Duration) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("--user-id must be positive")
	}

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user %d: %w", userID, err)
	}
	if user.Deleted || user.Suspended {
		return "", fmt.Errorf("user %d is not active", userID)
	}

	return tm.GenerateToken(user.ID, user.Username, expiry)
}

func newEventsCmd(a *app) *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the event log",
	}

	var (
		userID int64
		limit  int
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List events about a user, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return a.withDB(cmd, func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				events, err := repositories.NewEventLogRepository(db).ListByRelatedUser(ctx, userID, limit)
				if err != nil {
					return err
				}
				return printEvents(cmd.OutOrStdout(), events, asJSON)
			})
		},
	}
	listCmd.Flags().Int64Var(&userID, "user-id", 0, "Related user")
	listCmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")
	_ = listCmd.MarkFlagRequired("user-id")

	eventsCmd.AddCommand(listCmd)
	return eventsCmd
}

func printEvents(out io.Writer, events []*models.LogEvent, asJSON bool) error {
	if asJSON {
		if events == nil {
			events = []*models.LogEvent{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		fmt.Fprintln(out, "no events")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tEVENT\tCOURSE\tOBJECT\tBY")
	for _, e := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s:%d\t%d\n",
			e.ID, e.TimeCreated.UTC().Format(time.RFC3339), e.EventName, e.CourseID, e.ObjectTable, e.ObjectID, e.UserID)
	}
	return tw.Flush()
}
