package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "notebot"

	// KeyringDiscordToken is the key holding the bot token.
	KeyringDiscordToken = "discord_token"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring, or "".
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// ResolveToken sets cfg.Discord.Token using the priority chain
// keyring, environment, config value. It reports where the token came
// from, or "" when none was found.
func ResolveToken(cfg *Config, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	if val := GetKeyring(KeyringDiscordToken); val != "" {
		cfg.Discord.Token = val
		logger.Debug("discord token loaded from OS keyring")
		return "keyring"
	}
	if val := firstEnv(EnvDiscordToken, EnvLegacyToken); val != "" {
		cfg.Discord.Token = val
		logger.Debug("discord token loaded from environment")
		return "env"
	}
	if cfg.Discord.Token != "" && !IsEnvReference(cfg.Discord.Token) {
		logger.Warn("discord token is stored in plain text in the config file",
			"hint", "run: notebot token set")
		return "config"
	}
	return ""
}

// ReadSecret prompts for a secret without echo when stdin is a terminal.
func ReadSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
