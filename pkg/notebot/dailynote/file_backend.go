package dailynote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileBackend stores each daily note as a Markdown file in a vault tree:
// <root>/YYYY/MM/DD/YYYY-MM-DD<ext>. The file is the source of truth across
// restarts and may be edited by hand.
type FileBackend struct {
	root   string
	ext    string
	logger *slog.Logger
}

// NewFileBackend creates a vault-backed store rooted at root.
func NewFileBackend(root, ext string, logger *slog.Logger) *FileBackend {
	if logger == nil {
		logger = slog.Default()
	}
	if ext == "" {
		ext = ".md"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &FileBackend{
		root:   root,
		ext:    ext,
		logger: logger.With("component", "vault"),
	}
}

// Root returns the vault root directory.
func (b *FileBackend) Root() string { return b.root }

// EnsureDir creates the vault root if missing.
func (b *FileBackend) EnsureDir() error {
	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return fmt.Errorf("creating vault directory %s: %w", b.root, err)
	}
	return nil
}

// Path returns the document path for date.
func (b *FileBackend) Path(date string) (string, error) {
	return DocumentPath(b.root, date, b.ext)
}

func (b *FileBackend) Load(_ context.Context, date string) (*StoredDocument, error) {
	path, err := b.Path(date)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &StoredDocument{
		Date:      date,
		Body:      string(data),
		CreatedAt: info.ModTime(),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Save writes the body through a temp file and rename so a crash never
// leaves a half-written note.
func (b *FileBackend) Save(_ context.Context, doc *StoredDocument) error {
	path, err := b.Path(doc.Date)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+doc.Date+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(doc.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		b.logger.Debug("chmod failed", "path", tmpName, "error", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// List walks the vault. Only files named YYYY-MM-DD<ext> count; README and
// other hand-made notes are skipped. A missing root lists as empty.
// Filesystems do not expose a portable creation time, so CreatedAt is the
// modification time here.
func (b *FileBackend) List(_ context.Context) ([]DocumentInfo, error) {
	var infos []DocumentInfo
	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == b.root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), b.ext) {
			return nil
		}
		date := strings.TrimSuffix(d.Name(), b.ext)
		if ValidateDateKey(date) != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		infos = append(infos, DocumentInfo{
			Date:      date,
			Entries:   CountEntries(string(data)),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing vault %s: %w", b.root, err)
	}
	return infos, nil
}

func (b *FileBackend) Describe() string { return "file:" + b.root }
