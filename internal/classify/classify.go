// Package classify holds the pure decision logic for archiving: which
// directories are pruned from the walk, which files are left alone, and
// where a qualifying file ends up.
package classify

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Rules configures one archive run. Immutable once built.
type Rules struct {
	ArchiveFolderName string
	SkipHiddenFiles   bool
	SkipExtensions    map[string]bool // lowercase, leading dot included
	SkipFolderNames   map[string]bool // exact, case-sensitive
}

// DefaultSkipExtensions mirrors the extensions generated alongside
// images that should never be archived.
const DefaultSkipExtensions = ".py,.js,.bat,.sh,.json,.yaml,.yml"

// DefaultRules returns the rule set used when the caller supplies nothing.
func DefaultRules() Rules {
	return Rules{
		ArchiveFolderName: "Archive",
		SkipHiddenFiles:   true,
		SkipExtensions:    ParseList(DefaultSkipExtensions),
	}
}

// ParseList splits a comma-separated list into a lowercase set,
// dropping empty entries.
func ParseList(raw string) map[string]bool {
	set := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		set[strings.ToLower(part)] = true
	}
	return set
}

// ParseFolderList splits a comma-separated list of folder names,
// preserving case (folder matching is exact).
func ParseFolderList(raw string) map[string]bool {
	set := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		set[part] = true
	}
	return set
}

// Validate rejects rule sets that cannot produce a sane archive layout.
func (r Rules) Validate() error {
	name := r.ArchiveFolderName
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("archive folder name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("archive folder name %q must not contain path separators", name)
	}
	return nil
}

// ShouldExcludeDir reports whether a directory (and everything beneath
// it) is pruned from the walk. The archive folder itself is always
// excluded, which is what keeps repeated runs from re-archiving.
func (r Rules) ShouldExcludeDir(name string) bool {
	if name == r.ArchiveFolderName {
		return true
	}
	if strings.HasPrefix(name, "_") {
		return true
	}
	return r.SkipFolderNames[name]
}

// ShouldSkipFile reports whether a file is counted as skipped and left
// in place.
func (r Rules) ShouldSkipFile(name string) bool {
	if r.SkipHiddenFiles && strings.HasPrefix(name, ".") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	return r.SkipExtensions[ext]
}

// DateFolder formats the dated archive subfolder for a modification
// time. The local calendar date is used, matching how the files were
// stamped when the host wrote them.
func DateFolder(modTime time.Time) string {
	return modTime.Local().Format("2006-01-02")
}

// Destination computes the archive path for a file found at relPath
// (relative to the scan root): root/<archive>/<YYYY-MM-DD>/<rel dirs>/<name>.
// Intermediate directories between the root and the file are preserved,
// so two files modified the same day land under one date folder with
// their original nesting intact.
func (r Rules) Destination(root, relPath string, modTime time.Time) string {
	dated := filepath.Join(root, r.ArchiveFolderName, DateFolder(modTime))
	relDir := filepath.Dir(relPath)
	if relDir == "." {
		return filepath.Join(dated, filepath.Base(relPath))
	}
	return filepath.Join(dated, relDir, filepath.Base(relPath))
}
