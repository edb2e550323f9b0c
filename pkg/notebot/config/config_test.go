package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/jholhewres/notebot/pkg/notebot/dailynote"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvDiscordToken, EnvLegacyToken, EnvGuildID, EnvNotesChannel,
		EnvNewsChannel, EnvBackend, EnvVaultPath, EnvGatewayToken,
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
notes:
  backend: file
  numbered: true
news:
  keywords: [headlines]
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Notes.Backend != BackendFile || !cfg.Notes.Numbered {
		t.Errorf("notes = %+v", cfg.Notes)
	}
	if !cfg.Notes.AutoExport {
		t.Error("auto_export should default to true when omitted")
	}
	if !cfg.News.Enabled {
		t.Error("news.enabled should default to true when omitted")
	}
	if cfg.Notes.UTCOffset != "+09:00" {
		t.Errorf("utc_offset = %q", cfg.Notes.UTCOffset)
	}
	if len(cfg.News.Keywords) != 1 || cfg.News.Keywords[0] != "headlines" {
		t.Errorf("keywords = %v", cfg.News.Keywords)
	}
	if len(cfg.News.Feeds) != 3 {
		t.Errorf("feeds = %d, want defaults", len(cfg.News.Feeds))
	}
}

func TestParseConfigExplicitFalse(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
notes:
  auto_export: false
news:
  enabled: false
  fetch_timeout: 5s
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Notes.AutoExport || cfg.News.Enabled {
		t.Errorf("explicit false ignored: auto_export=%v news.enabled=%v", cfg.Notes.AutoExport, cfg.News.Enabled)
	}
	if cfg.News.FetchTimeout != 5*time.Second {
		t.Errorf("fetch_timeout = %v", cfg.News.FetchTimeout)
	}
}

func TestParseConfigInvalidYAML(t *testing.T) {
	if _, err := ParseConfig([]byte("notes: [unclosed")); err == nil {
		t.Fatal("expected error")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("NOTEBOT_TEST_SET", "value")
	t.Setenv("NOTEBOT_TEST_UNSET", "")
	os.Unsetenv("NOTEBOT_TEST_UNSET")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"set", "a: ${NOTEBOT_TEST_SET}", "a: value", false},
		{"default used", "a: ${NOTEBOT_TEST_UNSET:-fallback}", "a: fallback", false},
		{"default ignored", "a: ${NOTEBOT_TEST_SET:-fallback}", "a: value", false},
		{"unset kept", "a: ${NOTEBOT_TEST_UNSET}", "a: ${NOTEBOT_TEST_UNSET}", false},
		{"required missing", "a: ${NOTEBOT_TEST_UNSET:?token needed}", "", true},
		{"no references", "a: b", "a: b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDiscordToken, "env-token")
	t.Setenv("NOTEBOT_TEST_GUILD", "42")

	path := writeConfig(t, `
discord:
  guild_id: ${NOTEBOT_TEST_GUILD}
  notes_channel_ids: ["100"]
notes:
  backend: file
  vault_path: vault
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Discord.GuildID != "42" {
		t.Errorf("guild_id = %q", cfg.Discord.GuildID)
	}
	if cfg.Discord.Token != "env-token" {
		t.Errorf("token = %q", cfg.Discord.Token)
	}
	want := filepath.Join(filepath.Dir(path), "vault")
	if cfg.Notes.VaultPath != want {
		t.Errorf("vault_path = %q, want %q", cfg.Notes.VaultPath, want)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvNotesChannel, "1, 2 ,")
	t.Setenv(EnvBackend, "sqlite")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(cfg.Discord.NotesChannelIDs, ","); got != "1,2" {
		t.Errorf("notes channels = %q", got)
	}
	if cfg.Notes.Backend != BackendSQLite {
		t.Errorf("backend = %q", cfg.Notes.Backend)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file: expected error")
	}
	if _, err := Load(writeConfig(t, "notes:\n  backend: postgres\n")); err == nil {
		t.Error("unknown backend: expected error")
	}
	if _, err := Load(writeConfig(t, "discord:\n  token: ${NOTEBOT_TEST_NOPE:?set it}\n")); err == nil {
		t.Error("required env: expected error")
	}
}

func TestValidateCollectsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Notes.Layout = "tabular"
	cfg.Notes.UTCOffset = "nine"
	cfg.News.Feeds = append(cfg.News.Feeds, cfg.News.Feeds[0])
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"notes.layout", "notes.utc_offset", "duplicate name", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestNotebookConfig(t *testing.T) {
	n := DefaultConfig().Notes
	if got := n.NotebookConfig().Style; got != dailynote.StylePlain {
		t.Errorf("style = %v", got)
	}
	n.Numbered = true
	if got := n.NotebookConfig().Style; got != dailynote.StyleNumbered {
		t.Errorf("style = %v", got)
	}
	off, err := n.Offset()
	if err != nil || off != 9*time.Hour {
		t.Errorf("offset = %v, %v", off, err)
	}
}

func TestSaveConfigToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Discord.Token = "secret"
	cfg.Discord.GuildID = "7"

	if err := SaveConfigToFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	if err := SaveConfigToFile(cfg, path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("token written to disk")
	}
	info, _ := os.Stat(path)
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o", perm)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Errorf("backup missing: %v", err)
	}
	if cfg.Discord.Token != "secret" {
		t.Error("caller's config mutated")
	}

	back, err := ParseConfig(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Discord.GuildID != "7" {
		t.Errorf("guild_id = %q", back.Discord.GuildID)
	}
}

func TestResolveToken(t *testing.T) {
	keyring.MockInit()
	clearEnv(t)

	cfg := DefaultConfig()
	if src := ResolveToken(cfg, nil); src != "" {
		t.Errorf("source = %q, want none", src)
	}

	cfg.Discord.Token = "plain"
	if src := ResolveToken(cfg, nil); src != "config" {
		t.Errorf("source = %q, want config", src)
	}

	t.Setenv(EnvDiscordToken, "from-env")
	if src := ResolveToken(cfg, nil); src != "env" || cfg.Discord.Token != "from-env" {
		t.Errorf("source = %q token = %q", src, cfg.Discord.Token)
	}

	if err := StoreKeyring(KeyringDiscordToken, "from-keyring"); err != nil {
		t.Fatal(err)
	}
	if src := ResolveToken(cfg, nil); src != "keyring" || cfg.Discord.Token != "from-keyring" {
		t.Errorf("source = %q token = %q", src, cfg.Discord.Token)
	}

	if err := DeleteKeyring(KeyringDiscordToken); err != nil {
		t.Fatal(err)
	}
	if got := GetKeyring(KeyringDiscordToken); got != "" {
		t.Errorf("after delete = %q", got)
	}
}
