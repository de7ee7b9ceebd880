package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/julian/internal/config"
	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/extract"
	"github.com/hammamikhairi/julian/internal/logger"
	"github.com/hammamikhairi/julian/internal/storage"
)

// --- extract ---

func newExtractCmd(cfgFile *string) *cobra.Command {
	var voice bool
	cmd := &cobra.Command{
		Use:   "extract <text>",
		Short: "Print the facts Julian would learn from text, as JSON",
		Long: `Run the extraction rules over text without touching the profile.

Examples:
  julian extract "my name is Sam and my favorite color is blue"
  julian extract --voice "language code: en-US, speaking rate: 1.5"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			ex, err := buildExtractor(cfg, quietLog(cfg))
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			var res extract.Result
			if voice {
				res, err = ex.ExtractVoice(text)
			} else {
				res, err = ex.ExtractPersonal(text)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&voice, "voice", false, "use the voice preference rules")
	return cmd
}

// buildExtractor returns the built-in extractor, extended with the rules
// file from the config when there is one.
func buildExtractor(cfg *config.Config, log *logger.Logger) (*extract.Extractor, error) {
	if cfg.Rules == "" {
		return extract.New(log), nil
	}
	rules, err := extract.LoadRulesFile(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("loading rules %s: %w", cfg.Rules, err)
	}
	log.Info("loaded %d extra extraction rules from %s (%d personal, %d voice)",
		rules.Len(), cfg.Rules, len(rules.Personal), len(rules.Voice))
	return extract.New(log, rules.Options()...), nil
}

// --- profile ---

type profileJSON struct {
	Name        string         `json:"name"`
	Language    string         `json:"language"`
	Preferences map[string]any `json:"preferences"`
}

func newProfileCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect or reset the stored profile",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the profile as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			store, err := storage.OpenSQLite(cfg.DataDir, quietLog(cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.LoadProfile(cmd.Context(), cfg.User)
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("no profile stored for %q", cfg.User)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), profileJSON{
				Name:        rec.Name,
				Language:    rec.Language,
				Preferences: rec.Preferences,
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget everything stored for the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			store, err := storage.OpenSQLite(cfg.DataDir, quietLog(cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			err = store.DeleteProfile(cmd.Context(), cfg.User)
			if errors.Is(err, domain.ErrNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "No profile stored for %q.\n", cfg.User)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile %q reset.\n", cfg.User)
			return nil
		},
	}

	cmd.AddCommand(show, reset)
	return cmd
}

// --- history ---

func newHistoryCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the conversation history",
	}

	var all bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			h := storage.NewHistoryFile(historyPath(cfg), quietLog(cfg))
			msgs, err := h.Load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			n := 0
			for _, m := range msgs {
				if m.Role == domain.RoleSystem && !all {
					continue
				}
				fmt.Fprintf(out, "%s: %s\n", m.Role, m.Content)
				n++
			}
			if n == 0 {
				fmt.Fprintln(out, "No conversation yet.")
			}
			return nil
		},
	}
	show.Flags().BoolVar(&all, "all", false, "include system messages")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			h := storage.NewHistoryFile(historyPath(cfg), quietLog(cfg))
			if err := h.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}

	cmd.AddCommand(show, clearCmd)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
