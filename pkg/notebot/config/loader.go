package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches environment variable patterns in config values:
//   - ${VAR_NAME}          - simple variable
//   - ${VAR_NAME:-default} - default value if not set
//   - ${VAR_NAME:?error}   - error message if not set
//
// Capture groups: 1 variable name, 2 modifier ("-" or "?"), 3 default
// value or error message.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}`)

// Environment variables consulted after the config file.
const (
	EnvDiscordToken = "NOTEBOT_DISCORD_TOKEN"
	EnvGuildID      = "NOTEBOT_GUILD_ID"
	EnvNotesChannel = "NOTEBOT_NOTES_CHANNEL_ID"
	EnvNewsChannel  = "NOTEBOT_NEWS_CHANNEL_ID"
	EnvBackend      = "NOTEBOT_BACKEND"
	EnvVaultPath    = "NOTEBOT_VAULT_PATH"
	EnvGatewayToken = "NOTEBOT_GATEWAY_TOKEN"
	EnvLegacyToken  = "DISCORD_TOKEN"
)

// Load reads the config at path, or only defaults and environment when
// path is empty. .env files are loaded first so they can feed expansion.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded, err := expandEnvVars(string(data))
		if err != nil {
			return nil, fmt.Errorf("expanding environment variables: %w", err)
		}
		cfg, err = ParseConfig([]byte(expanded))
		if err != nil {
			return nil, err
		}
		resolveRelativePaths(cfg, path)
		checkFilePermissions(path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ParseConfig parses YAML bytes into a Config, starting from defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("mapping config: %w", err)
	}

	// A section that is present but omits a default-true switch would
	// otherwise zero it.
	defaults := DefaultConfig()
	if notes, ok := raw["notes"].(map[string]any); ok {
		if _, set := notes["auto_export"]; !set {
			cfg.Notes.AutoExport = defaults.Notes.AutoExport
		}
	}
	if newsRaw, ok := raw["news"].(map[string]any); ok {
		if _, set := newsRaw["enabled"]; !set {
			cfg.News.Enabled = defaults.News.Enabled
		}
	}

	return cfg, nil
}

// SaveConfigToFile writes cfg as YAML with owner-only permissions. The
// token is never written; an existing file is kept as path.bak.
func SaveConfigToFile(cfg *Config, path string) error {
	sanitized := *cfg
	sanitized.Discord.Token = ""
	if sanitized.Gateway.AuthToken != "" && !IsEnvReference(sanitized.Gateway.AuthToken) {
		sanitized.Gateway.AuthToken = "${" + EnvGatewayToken + "}"
	}

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if existing, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(path+".bak", existing, 0o600)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile searches for config files in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"notebot.yaml",
		"notebot.yml",
		"configs/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// IsEnvReference reports whether s is an unexpanded ${VAR} reference.
func IsEnvReference(s string) bool {
	return strings.HasPrefix(s, "${")
}

// ---------- Internal ----------

// loadEnvFiles loads .env files without overwriting existing variables.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR}, ${VAR:-default} and ${VAR:?error}. Unset
// plain references are kept; an unset ${VAR:?error} fails.
func expandEnvVars(input string) (string, error) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		name, modifier, value := sub[1], sub[2], sub[3]

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		switch modifier {
		case "-":
			return value
		case "?":
			if value == "" {
				value = "required environment variable not set"
			}
			missing = append(missing, name+": "+value)
			return ""
		}
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("config error: %s", strings.Join(missing, "; "))
	}
	return out, nil
}

// applyEnvOverrides fills values from NOTEBOT_* variables. Non-empty
// variables win over the file.
func applyEnvOverrides(cfg *Config) {
	if cfg.Discord.Token == "" || IsEnvReference(cfg.Discord.Token) {
		cfg.Discord.Token = firstEnv(EnvDiscordToken, EnvLegacyToken)
	}
	if v := os.Getenv(EnvGuildID); v != "" {
		cfg.Discord.GuildID = v
	}
	if v := os.Getenv(EnvNotesChannel); v != "" {
		cfg.Discord.NotesChannelIDs = splitList(v)
	}
	if v := os.Getenv(EnvNewsChannel); v != "" {
		cfg.Discord.NewsChannelID = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		cfg.Notes.Backend = v
	}
	if v := os.Getenv(EnvVaultPath); v != "" {
		cfg.Notes.VaultPath = v
	}
	if cfg.Gateway.AuthToken == "" || IsEnvReference(cfg.Gateway.AuthToken) {
		cfg.Gateway.AuthToken = os.Getenv(EnvGatewayToken)
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolveRelativePaths makes storage paths relative to the config file.
func resolveRelativePaths(cfg *Config, configPath string) {
	dir := filepath.Dir(configPath)
	cfg.Notes.VaultPath = resolvePathFromConfig(cfg.Notes.VaultPath, dir)
	cfg.Notes.DatabasePath = resolvePathFromConfig(cfg.Notes.DatabasePath, dir)
}

// resolvePathFromConfig expands ~ and anchors relative paths at configDir.
func resolvePathFromConfig(path, configDir string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		path = filepath.Join(home, path[2:])
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}

// checkFilePermissions warns if the config file is group or world readable.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if mode := info.Mode().Perm(); mode&0o044 != 0 {
		slog.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"fix", fmt.Sprintf("chmod 600 %s", path),
		)
	}
}
