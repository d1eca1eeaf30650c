package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"attic/internal/archive"
	"attic/internal/classify"
	"attic/internal/compress"
	"attic/internal/history"
)

type archiveRequest struct {
	ArchiveFolderName *string `json:"archive_folder_name"`
	SkipHiddenFiles   *bool   `json:"skip_hidden_files"`
	SkipExtensions    *string `json:"skip_extensions"`
	SkipFolders       *string `json:"skip_folders"`
}

func (s *Server) handleArchiveExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rules := s.cfg.Rules()
	if req.ArchiveFolderName != nil {
		rules.ArchiveFolderName = *req.ArchiveFolderName
	}
	if req.SkipHiddenFiles != nil {
		rules.SkipHiddenFiles = *req.SkipHiddenFiles
	}
	if req.SkipExtensions != nil {
		rules.SkipExtensions = classify.ParseList(*req.SkipExtensions)
	}
	if req.SkipFolders != nil {
		rules.SkipFolderNames = classify.ParseFolderList(*req.SkipFolders)
	}

	if !s.archiveMu.TryLock() {
		s.writeError(w, http.StatusConflict, "archive already in progress")
		return
	}
	defer s.archiveMu.Unlock()

	started := time.Now()
	outcome, err := s.engine.Run(s.cfg.OutputDir, rules)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.recordArchive(outcome, started)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"moved":            outcome.Moved,
		"skipped":          outcome.Skipped,
		"errors":           outcome.Errors,
		"removed_dirs":     outcome.RemovedDirs,
		"archive_location": outcome.ArchiveLocation,
	})
}

func (s *Server) handleArchiveStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	count, _, err := s.countOutside(s.cfg.Rules().ArchiveFolderName, func(string) bool { return true })
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"output_directory": s.cfg.OutputDir,
		"file_count":       count,
	})
}

type compressRequest struct {
	Quality         *int    `json:"quality"`
	OutputFormat    *string `json:"output_format"`
	DeleteOriginal  *bool   `json:"delete_original"`
	Recursive       *bool   `json:"recursive"`
	TargetDirectory *string `json:"target_directory"`
}

func (s *Server) handleCompressExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req compressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	defaults := s.cfg.Compression
	opts := compress.Options{
		Quality:        defaults.Quality,
		Recursive:      defaults.Recursive,
		DeleteOriginal: defaults.DeleteOriginal,
	}
	format, err := compress.ParseFormat(defaults.OutputFormat)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	opts.Format = format

	if req.Quality != nil {
		opts.Quality = *req.Quality
	}
	if req.OutputFormat != nil {
		format, err := compress.ParseFormat(*req.OutputFormat)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Format = format
	}
	if req.DeleteOriginal != nil {
		opts.DeleteOriginal = *req.DeleteOriginal
	}
	if req.Recursive != nil {
		opts.Recursive = *req.Recursive
	}
	opts.TargetDir = s.resolveTarget(req.TargetDirectory)

	if err := s.manager.Start(opts); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, compress.ErrAlreadyRunning) {
			status = http.StatusConflict
		}
		s.writeError(w, status, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Compression started",
		"poll_progress": true,
	})
}

// resolveTarget maps an optional request directory onto the filesystem:
// absolute paths pass through, relative ones anchor at the output dir,
// absence means the output dir itself.
func (s *Server) resolveTarget(raw *string) string {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return s.cfg.OutputDir
	}
	target := strings.TrimSpace(*raw)
	if filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(s.cfg.OutputDir, target)
}

func (s *Server) handleCompressProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	job := s.manager.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":               true,
		"state":                 job.State.String(),
		"is_running":            job.Active(),
		"cancel_requested":      job.State == compress.StateCancelRequested,
		"current":               job.Current,
		"total":                 job.Total,
		"percent":               job.Percent(),
		"current_file":          job.CurrentFile,
		"compressed":            job.Compressed,
		"errors":                job.Errors,
		"total_original_size":   job.TotalOriginalBytes,
		"total_compressed_size": job.TotalCompressedBytes,
		"savings_bytes":         job.SavingsBytes(),
		"savings_percent":       job.SavingsPercent(),
		"metadata_full":         job.MetadataFull,
		"metadata_partial":      job.MetadataPartial,
		"metadata_none":         job.MetadataNone,
	})
}

func (s *Server) handleCompressCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.manager.RequestCancel() {
		s.writeError(w, http.StatusBadRequest, "no compression in progress")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Cancellation requested",
	})
}

func (s *Server) handleCompressStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	count, bytes, err := s.countOutside(s.cfg.Rules().ArchiveFolderName, func(name string) bool {
		return strings.EqualFold(filepath.Ext(name), ".png")
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"png_count":            count,
		"total_png_size_bytes": bytes,
		"output_directory":     s.cfg.OutputDir,
	})
}

// countOutside tallies files under the output dir that match, skipping
// the archive subtree and hidden files.
func (s *Server) countOutside(archiveFolder string, match func(name string) bool) (int, int64, error) {
	var count int
	var total int64

	root := s.cfg.OutputDir
	err := fs.WalkDir(os.DirFS(root), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == "." {
				return walkErr
			}
			return nil
		}
		if d.IsDir() {
			if path != "." && d.Name() == archiveFolder {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !match(d.Name()) {
			return nil
		}
		count++
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return count, total, nil
}

func (s *Server) recordArchive(outcome archive.Outcome, started time.Time) {
	if s.store == nil {
		return
	}
	rec := history.Record{
		Kind:        history.KindArchive,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		Location:    outcome.ArchiveLocation,
		Moved:       outcome.Moved,
		Skipped:     outcome.Skipped,
		Errors:      outcome.Errors,
		RemovedDirs: outcome.RemovedDirs,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Record(ctx, rec); err != nil {
		s.logger.Warn("record archive run", slog.String("error", err.Error()))
	}
}
