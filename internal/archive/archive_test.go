package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"attic/internal/classify"
)

func writeFile(t *testing.T, path string, content string, mod time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !mod.IsZero() {
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
}

func TestRunMovesByDate(t *testing.T) {
	root := t.TempDir()
	today := time.Now()
	yesterday := today.AddDate(0, 0, -1)

	writeFile(t, filepath.Join(root, "a.png"), "a", today)
	writeFile(t, filepath.Join(root, "sub", "b.png"), "b", yesterday)

	engine := NewEngine(nil)
	outcome, err := engine.Run(root, classify.DefaultRules())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if outcome.Moved != 2 || outcome.Skipped != 0 || outcome.Errors != 0 {
		t.Fatalf("outcome = %+v, want moved=2 skipped=0 errors=0", outcome)
	}

	wantA := filepath.Join(root, "Archive", classify.DateFolder(today), "a.png")
	wantB := filepath.Join(root, "Archive", classify.DateFolder(yesterday), "sub", "b.png")
	for _, p := range []string{wantA, wantB} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected archived file at %s: %v", p, err)
		}
	}
	for _, p := range []string{filepath.Join(root, "a.png"), filepath.Join(root, "sub", "b.png")} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("original %s should be gone", p)
		}
	}

	// sub/ was emptied by the move and should be pruned.
	if _, err := os.Stat(filepath.Join(root, "sub")); !os.IsNotExist(err) {
		t.Error("emptied sub directory should have been removed")
	}
	if outcome.RemovedDirs != 1 {
		t.Errorf("removedDirs = %d, want 1", outcome.RemovedDirs)
	}
}

func TestRunNeverOverwrites(t *testing.T) {
	root := t.TempDir()
	today := time.Now()

	dest := filepath.Join(root, "Archive", classify.DateFolder(today), "a.png")
	writeFile(t, dest, "already archived", time.Time{})
	writeFile(t, filepath.Join(root, "a.png"), "fresh content", today)

	engine := NewEngine(nil)
	outcome, err := engine.Run(root, classify.DefaultRules())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if outcome.Moved != 0 || outcome.Skipped != 1 {
		t.Fatalf("outcome = %+v, want moved=0 skipped=1", outcome)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(got) != "already archived" {
		t.Errorf("destination content changed: %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "a.png")); err != nil {
		t.Error("source should remain in place when destination exists")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.png"), "a", time.Now())
	writeFile(t, filepath.Join(root, "sub", "b.png"), "b", time.Now())

	engine := NewEngine(nil)
	first, err := engine.Run(root, classify.DefaultRules())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Moved != 2 {
		t.Fatalf("first run moved = %d, want 2", first.Moved)
	}

	second, err := engine.Run(root, classify.DefaultRules())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Moved != 0 || second.Errors != 0 {
		t.Errorf("second run = %+v, want moved=0 errors=0", second)
	}
}

func TestRunLeavesExcludedFoldersAlone(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "_staging", "wip.png"), "wip", time.Now())
	writeFile(t, filepath.Join(root, "database", "db.png"), "db", time.Now())
	writeFile(t, filepath.Join(root, "keep.png"), "keep", time.Now())

	rules := classify.DefaultRules()
	rules.SkipFolderNames = classify.ParseFolderList("database")

	outcome, err := NewEngine(nil).Run(root, rules)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if outcome.Moved != 1 {
		t.Fatalf("moved = %d, want 1", outcome.Moved)
	}
	for _, p := range []string{
		filepath.Join(root, "_staging", "wip.png"),
		filepath.Join(root, "database", "db.png"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("excluded file %s should be untouched: %v", p, err)
		}
	}
}

func TestRunSkipRules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden"), "h", time.Now())
	writeFile(t, filepath.Join(root, "script.py"), "s", time.Now())
	writeFile(t, filepath.Join(root, "img.png"), "i", time.Now())

	outcome, err := NewEngine(nil).Run(root, classify.DefaultRules())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.Moved != 1 || outcome.Skipped != 2 {
		t.Errorf("outcome = %+v, want moved=1 skipped=2", outcome)
	}
}

func TestRunRootMissing(t *testing.T) {
	_, err := NewEngine(nil).Run(filepath.Join(t.TempDir(), "absent"), classify.DefaultRules())
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestTrigger(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.png"), "a", time.Now())

	engine := NewEngine(nil)

	disabled := engine.Trigger("tok", root, classify.DefaultRules(), false)
	if disabled.Status != "Archiving is disabled." {
		t.Errorf("disabled status = %q", disabled.Status)
	}
	if disabled.Token != "tok" {
		t.Error("token should pass through unchanged")
	}
	if _, err := os.Stat(filepath.Join(root, "a.png")); err != nil {
		t.Error("disabled trigger must not touch the filesystem")
	}

	result := engine.Trigger(42, root, classify.DefaultRules(), true)
	if !strings.HasPrefix(result.Status, "Archive complete. Moved: 1,") {
		t.Errorf("status = %q", result.Status)
	}
	if result.Token != 42 {
		t.Error("token should pass through unchanged")
	}
}
