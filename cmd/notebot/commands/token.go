package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"

	"github.com/jholhewres/notebot/pkg/notebot/config"
)

// newTokenCmd creates `notebot token` for managing the bot token in the
// OS keyring.
func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the Discord bot token in the OS keyring",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set",
			Short: "Store the bot token (hidden input)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				token, err := config.ReadSecret("Discord bot token: ")
				if err != nil {
					return err
				}
				if token == "" {
					return errors.New("empty token")
				}
				if err := config.StoreKeyring(config.KeyringDiscordToken, token); err != nil {
					return fmt.Errorf("storing token in keyring: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Token stored in the OS keyring.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the bot token from the keyring",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				err := config.DeleteKeyring(config.KeyringDiscordToken)
				if errors.Is(err, keyring.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "No token stored.")
					return nil
				}
				if err != nil {
					return fmt.Errorf("deleting token: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Token removed from the OS keyring.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show where the bot token would be loaded from",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, err := resolveConfig(cmd)
				if err != nil {
					return err
				}
				switch config.ResolveToken(cfg, nil) {
				case "keyring":
					fmt.Fprintln(cmd.OutOrStdout(), "Token: OS keyring")
				case "env":
					fmt.Fprintln(cmd.OutOrStdout(), "Token: environment")
				case "config":
					fmt.Fprintln(cmd.OutOrStdout(), "Token: config file (plain text, consider 'notebot token set')")
				default:
					fmt.Fprintln(cmd.OutOrStdout(), "Token: not found")
				}
				return nil
			},
		},
	)
	return cmd
}
