package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jholhewres/notebot/pkg/notebot/config"
	"github.com/jholhewres/notebot/pkg/notebot/dailynote"
	"github.com/jholhewres/notebot/pkg/notebot/database"
)

// resolveConfig loads the --config file, or the first file found in the
// standard locations, or defaults plus environment.
func resolveConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		if path != "" {
			return nil, path, fmt.Errorf("loading config from %s: %w", path, err)
		}
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// newLogger builds the slog logger selected by config and --verbose.
func newLogger(cmd *cobra.Command, cfg *config.Config, w io.Writer) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	level := slog.LevelInfo
	switch {
	case verbose || cfg.Logging.Level == "debug":
		level = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		level = slog.LevelWarn
	case cfg.Logging.Level == "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// openBackend returns the configured note backend and a function that
// releases it.
func openBackend(cfg *config.Config, logger *slog.Logger) (dailynote.Backend, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Notes.Backend {
	case config.BackendFile:
		if err := os.MkdirAll(cfg.Notes.VaultPath, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating vault %s: %w", cfg.Notes.VaultPath, err)
		}
		return dailynote.NewFileBackend(cfg.Notes.VaultPath, cfg.Notes.Extension, logger), noop, nil
	case config.BackendSQLite:
		db, err := database.OpenSQLite(database.SQLiteConfig{Path: cfg.Notes.DatabasePath})
		if err != nil {
			return nil, nil, err
		}
		return dailynote.NewSQLiteBackend(db, cfg.Notes.DatabasePath), db.Close, nil
	default:
		return dailynote.NewMemoryBackend(), noop, nil
	}
}

// newEngine builds the notebook and exporter over backend.
func newEngine(cfg *config.Config, backend dailynote.Backend, logger *slog.Logger) (*dailynote.Notebook, *dailynote.Exporter, error) {
	offset, err := cfg.Notes.Offset()
	if err != nil {
		return nil, nil, err
	}
	nb := dailynote.New(backend, cfg.Notes.NotebookConfig(), logger)
	ex := dailynote.NewExporter(nb, dailynote.NewSendGuard(), dailynote.ExporterConfig{
		MaxBytes:  cfg.Notes.MaxExportBytes,
		Extension: cfg.Notes.Extension,
		Offset:    offset,
	}, logger)
	return nb, ex, nil
}
