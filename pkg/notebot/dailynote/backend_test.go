package dailynote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jholhewres/notebot/pkg/notebot/database"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	db, err := database.OpenSQLite(database.SQLiteConfig{Path: filepath.Join(t.TempDir(), "notes.db")})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   NewFileBackend(t.TempDir(), ".md", testLogger()),
		"sqlite": NewSQLiteBackend(db, "notes.db"),
	}
}

func TestBackends_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := b.Load(ctx, "2025-07-25"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Load missing = %v, want ErrNotFound", err)
			}

			now := time.Date(2025, 7, 25, 1, 0, 0, 0, time.UTC)
			doc := &StoredDocument{
				Date:      "2025-07-25",
				Body:      "# 2025-07-25\n**09:00** *A*: x\n",
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := b.Save(ctx, doc); err != nil {
				t.Fatalf("Save: %v", err)
			}
			doc.Body += "**09:01** *A*: y\n"
			if err := b.Save(ctx, doc); err != nil {
				t.Fatalf("Save overwrite: %v", err)
			}

			got, err := b.Load(ctx, "2025-07-25")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got.Body != doc.Body {
				t.Errorf("Body = %q, want %q", got.Body, doc.Body)
			}

			infos, err := b.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(infos) != 1 || infos[0].Date != "2025-07-25" || infos[0].Entries != 2 {
				t.Errorf("List = %+v", infos)
			}
			if infos[0].Size != int64(len(doc.Body)) {
				t.Errorf("Size = %d, want %d", infos[0].Size, len(doc.Body))
			}
			if b.Describe() == "" {
				t.Error("Describe is empty")
			}
		})
	}
}

func TestFileBackend_ListIgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(dir, ".md", testLogger())
	ctx := context.Background()

	if err := b.Save(ctx, &StoredDocument{Date: "2025-07-25", Body: "# 2025-07-25\n"}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "2025", "07", "25", "scratch.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	infos, err := b.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Errorf("List = %+v, want one note", infos)
	}
}

func TestFileBackend_ListMissingRoot(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "absent"), ".md", testLogger())
	infos, err := b.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("List = %+v, want empty", infos)
	}
}

func TestFileBackend_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(dir, ".md", testLogger())
	for i := 0; i < 3; i++ {
		if err := b.Save(context.Background(), &StoredDocument{Date: "2025-07-25", Body: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(filepath.Join(dir, "2025", "07", "25"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "2025-07-25.md" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents = %v", names)
	}
}
