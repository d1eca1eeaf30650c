// Package archive moves files from a live output tree into dated
// archive folders and prunes the directories it empties.
package archive

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"attic/internal/classify"
)

// Outcome summarizes one archive run.
type Outcome struct {
	Moved           int
	Skipped         int
	Errors          int
	RemovedDirs     int
	ArchiveLocation string
}

type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

type candidate struct {
	path    string // absolute
	relPath string // relative to the scan root
}

// Run archives every qualifying file under root. It fails only on
// root-level problems (missing root, unwritable archive folder);
// per-file failures are counted in the outcome and the loop continues.
func (e *Engine) Run(root string, rules classify.Rules) (Outcome, error) {
	outcome := Outcome{}

	if err := rules.Validate(); err != nil {
		return outcome, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return outcome, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return outcome, err
	}
	if !info.IsDir() {
		return outcome, fmt.Errorf("%s is not a directory", absRoot)
	}

	archiveBase := filepath.Join(absRoot, rules.ArchiveFolderName)
	if err := os.MkdirAll(archiveBase, 0o755); err != nil {
		return outcome, fmt.Errorf("create archive folder: %w", err)
	}
	outcome.ArchiveLocation = archiveBase

	e.logger.Info("archive run started",
		slog.String("root", absRoot),
		slog.String("archive", archiveBase))

	candidates, visitedDirs, err := e.collect(absRoot, rules, &outcome)
	if err != nil {
		return outcome, err
	}

	for _, c := range candidates {
		e.moveOne(absRoot, c, rules, &outcome)
	}

	e.removeEmptyDirs(visitedDirs, &outcome)

	e.logger.Info("archive run finished",
		slog.Int("moved", outcome.Moved),
		slog.Int("skipped", outcome.Skipped),
		slog.Int("errors", outcome.Errors),
		slog.Int("removed_dirs", outcome.RemovedDirs))

	return outcome, nil
}

// collect walks the tree once, pruning excluded subtrees. Excluded
// directories are never entered, so nothing beneath them can move and
// the archive folder never feeds back into itself. Skip-rule hits are
// counted here; everything else becomes a move candidate.
func (e *Engine) collect(absRoot string, rules classify.Rules, outcome *Outcome) ([]candidate, []string, error) {
	var candidates []candidate
	var visitedDirs []string

	fsys := os.DirFS(absRoot)
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == "." {
				return walkErr
			}
			outcome.Errors++
			return nil
		}
		if d.IsDir() {
			if path == "." {
				return nil
			}
			if rules.ShouldExcludeDir(d.Name()) {
				return fs.SkipDir
			}
			visitedDirs = append(visitedDirs, filepath.Join(absRoot, path))
			return nil
		}
		if !d.Type().IsRegular() {
			outcome.Skipped++
			return nil
		}
		if rules.ShouldSkipFile(d.Name()) {
			outcome.Skipped++
			return nil
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(absRoot, path),
			relPath: path,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return candidates, visitedDirs, nil
}

func (e *Engine) moveOne(absRoot string, c candidate, rules classify.Rules, outcome *Outcome) {
	info, err := os.Stat(c.path)
	if err != nil {
		// Vanished since the walk; nothing to move.
		outcome.Skipped++
		return
	}

	dest := rules.Destination(absRoot, c.relPath, info.ModTime())

	if _, err := os.Stat(dest); err == nil {
		// Never overwrite an existing archive entry.
		outcome.Skipped++
		return
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		e.logger.Warn("create destination folder failed",
			slog.String("path", filepath.Dir(dest)),
			slog.String("error", err.Error()))
		outcome.Errors++
		return
	}

	if err := os.Rename(c.path, dest); err != nil {
		e.logger.Warn("move failed",
			slog.String("source", c.path),
			slog.String("error", err.Error()))
		outcome.Errors++
		return
	}

	e.logger.Debug("moved", slog.String("source", c.path), slog.String("dest", dest))
	outcome.Moved++
}

// removeEmptyDirs removes now-empty directories deepest-first. The scan
// root and the archive subtree were never collected, so neither can be
// removed. Removal failures (non-empty, permissions) leave the
// directory in place without counting as errors.
func (e *Engine) removeEmptyDirs(dirs []string, outcome *Outcome) {
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(os.PathSeparator)) > strings.Count(dirs[j], string(os.PathSeparator))
	})
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			continue
		}
		e.logger.Debug("removed empty directory", slog.String("path", dir))
		outcome.RemovedDirs++
	}
}
