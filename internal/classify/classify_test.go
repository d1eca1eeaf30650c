package classify

import (
	"path/filepath"
	"testing"
	"time"
)

func TestShouldExcludeDir(t *testing.T) {
	rules := DefaultRules()
	rules.SkipFolderNames = ParseFolderList("database, work in progress")

	cases := []struct {
		name    string
		exclude bool
	}{
		{"Archive", true},
		{"archive", false},
		{"_private", true},
		{"_", true},
		{"database", true},
		{"work in progress", true},
		{"Database", false},
		{"renders", false},
	}
	for _, tc := range cases {
		if got := rules.ShouldExcludeDir(tc.name); got != tc.exclude {
			t.Errorf("ShouldExcludeDir(%q) = %v, want %v", tc.name, got, tc.exclude)
		}
	}
}

func TestShouldSkipFile(t *testing.T) {
	rules := DefaultRules()

	cases := []struct {
		name string
		skip bool
	}{
		{".hidden", true},
		{"run.PY", true},
		{"notes.json", true},
		{"image.png", false},
		{"image.PNG", false},
		{"README", false},
	}
	for _, tc := range cases {
		if got := rules.ShouldSkipFile(tc.name); got != tc.skip {
			t.Errorf("ShouldSkipFile(%q) = %v, want %v", tc.name, got, tc.skip)
		}
	}

	rules.SkipHiddenFiles = false
	if rules.ShouldSkipFile(".hidden") {
		t.Error("hidden files should not be skipped when SkipHiddenFiles is off")
	}
}

func TestDestination(t *testing.T) {
	rules := DefaultRules()
	mod := time.Date(2026, 3, 14, 23, 59, 0, 0, time.Local)

	got := rules.Destination("/out", "a.png", mod)
	want := filepath.Join("/out", "Archive", "2026-03-14", "a.png")
	if got != want {
		t.Errorf("root file: got %q, want %q", got, want)
	}

	got = rules.Destination("/out", filepath.Join("sub", "deep", "b.png"), mod)
	want = filepath.Join("/out", "Archive", "2026-03-14", "sub", "deep", "b.png")
	if got != want {
		t.Errorf("nested file: got %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	rules := DefaultRules()
	if err := rules.Validate(); err != nil {
		t.Fatalf("default rules should validate: %v", err)
	}

	rules.ArchiveFolderName = ""
	if err := rules.Validate(); err == nil {
		t.Error("empty archive folder name should fail validation")
	}

	rules.ArchiveFolderName = "a/b"
	if err := rules.Validate(); err == nil {
		t.Error("path separator in archive folder name should fail validation")
	}
}

func TestParseList(t *testing.T) {
	set := ParseList(" .PY, .js ,, .bat ")
	for _, want := range []string{".py", ".js", ".bat"} {
		if !set[want] {
			t.Errorf("expected %q in parsed set %v", want, set)
		}
	}
	if len(set) != 3 {
		t.Errorf("expected 3 entries, got %v", set)
	}
}
