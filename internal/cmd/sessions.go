package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ankitpatel990/neuvox/internal/config"
	"github.com/ankitpatel990/neuvox/internal/session"
)

var (
	sessionsLimit int
	sessionsJSON  bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored honeypot sessions",
	RunE:  runSessions,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a single session with its accumulated intelligence",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 50, "max sessions to list")
	sessionsCmd.Flags().BoolVar(&sessionsJSON, "json", false, "output JSON")
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openStore() (*session.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := session.NewStore(cfg.SessionsDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return store, nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "sessions.list")
	defer span.End()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.List(ctx, sessionsLimit)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if sessionsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		fmt.Println("No sessions stored.")
		return nil
	}
	fmt.Printf("%-38s %-6s %-16s %-6s %s\n", "SESSION", "TURNS", "PHASE", "CONF", "UPDATED")
	for _, s := range summaries {
		fmt.Printf("%-38s %-6d %-16s %-6.2f %s\n",
			s.ID, s.TurnCount, s.Phase, s.Confidence, s.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "sessions.show")
	defer span.End()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.Get(ctx, args[0])
	if errors.Is(err, session.ErrSessionNotFound) {
		return fmt.Errorf("session %s not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sess)
}
