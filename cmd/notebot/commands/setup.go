package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jholhewres/notebot/pkg/notebot/config"
	"github.com/jholhewres/notebot/pkg/notebot/dailynote"
)

// newSetupCmd creates the `notebot setup` wizard.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard that writes config.yaml.
The bot token is stored in the OS keyring, never in the file.

Examples:
  notebot setup
  notebot setup --config ./configs/config.yaml`,
		Args: cobra.NoArgs,
		RunE: runSetup,
	}
}

// setupAnswers mirrors the wizard fields.
type setupAnswers struct {
	guildID       string
	notesChannel  string
	newsChannel   string
	echoChannel   string
	backend       string
	vaultPath     string
	utcOffset     string
	autoExport    bool
	token         string
	enableGateway bool
}

func runSetup(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		overwrite := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("%s already exists. Overwrite it?", path)).
			Value(&overwrite).
			Run()
		if err != nil {
			return setupErr(err)
		}
		if !overwrite {
			fmt.Fprintln(cmd.OutOrStdout(), "Setup cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	a := setupAnswers{
		backend:    cfg.Notes.Backend,
		vaultPath:  cfg.Notes.VaultPath,
		utcOffset:  cfg.Notes.UTCOffset,
		autoExport: cfg.Notes.AutoExport,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server (guild) ID").
				Description("The only server the bot acts in.").
				Value(&a.guildID).
				Validate(requireSnowflake),
			huh.NewInput().
				Title("Notes channel ID").
				Description("Messages here are collected into daily notes.").
				Value(&a.notesChannel).
				Validate(requireSnowflake),
			huh.NewInput().
				Title("News channel ID").
				Description("Scheduled news is posted here. Leave empty to disable.").
				Value(&a.newsChannel).
				Validate(optionalSnowflake),
			huh.NewInput().
				Title("Echo channel ID").
				Description("Optional.").
				Value(&a.echoChannel).
				Validate(optionalSnowflake),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Note storage").
				Options(
					huh.NewOption("memory (lost on restart, export on demand)", config.BackendMemory),
					huh.NewOption("file (Markdown vault tree)", config.BackendFile),
					huh.NewOption("sqlite (single database file)", config.BackendSQLite),
				).
				Value(&a.backend),
			huh.NewInput().
				Title("Vault path").
				Description("Used by the file backend.").
				Value(&a.vaultPath),
			huh.NewInput().
				Title("UTC offset for dates").
				Value(&a.utcOffset).
				Validate(func(s string) error {
					_, err := dailynote.ParseOffset(s)
					return err
				}),
			huh.NewConfirm().
				Title("Post the day's note back to the channel after the first message?").
				Value(&a.autoExport),
			huh.NewConfirm().
				Title("Enable the local HTTP gateway?").
				Value(&a.enableGateway),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Discord bot token").
				Description("Stored in the OS keyring. Leave empty to use " + config.EnvDiscordToken + ".").
				EchoMode(huh.EchoModePassword).
				Value(&a.token),
		),
	)
	if err := form.Run(); err != nil {
		return setupErr(err)
	}

	a.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid answers: %w", err)
	}
	if err := config.SaveConfigToFile(cfg, path); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s\n", path)
	if token := strings.TrimSpace(a.token); token != "" {
		if err := config.StoreKeyring(config.KeyringDiscordToken, token); err != nil {
			fmt.Fprintf(out, "Could not store the token in the OS keyring (%v).\nSet %s instead.\n", err, config.EnvDiscordToken)
		} else {
			fmt.Fprintln(out, "Token stored in the OS keyring.")
		}
	}
	fmt.Fprintln(out, "Start the bot with: notebot serve")
	return nil
}

func (a setupAnswers) apply(cfg *config.Config) {
	cfg.Discord.GuildID = strings.TrimSpace(a.guildID)
	cfg.Discord.NotesChannelIDs = []string{strings.TrimSpace(a.notesChannel)}
	if id := strings.TrimSpace(a.newsChannel); id != "" {
		cfg.Discord.NewsChannelID = id
	} else {
		cfg.News.Enabled = false
	}
	if id := strings.TrimSpace(a.echoChannel); id != "" {
		cfg.Discord.EchoChannelIDs = []string{id}
	}
	cfg.Notes.Backend = a.backend
	cfg.Notes.VaultPath = a.vaultPath
	cfg.Notes.UTCOffset = a.utcOffset
	cfg.Notes.AutoExport = a.autoExport
	cfg.Gateway.Enabled = a.enableGateway
	if a.enableGateway {
		cfg.Gateway.AuthToken = "${" + config.EnvGatewayToken + "}"
	}
}

func setupErr(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return errors.New("setup aborted")
	}
	return err
}

// requireSnowflake accepts a Discord numeric ID.
func requireSnowflake(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("required")
	}
	return optionalSnowflake(s)
}

func optionalSnowflake(s string) error {
	for _, r := range strings.TrimSpace(s) {
		if r < '0' || r > '9' {
			return errors.New("IDs are numeric (enable Developer Mode and use Copy ID)")
		}
	}
	return nil
}
