// Package compress transcodes PNG output into smaller formats while
// carrying generation metadata across, as a single cancellable
// background job with pollable progress.
package compress

import (
	"fmt"
	"strings"
)

// Format is the transcoding target.
type Format int

const (
	FormatJPEG Format = iota
	FormatWEBP
)

// ParseFormat accepts the wire names "JPEG" and "WEBP" (any case).
func ParseFormat(raw string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "JPEG", "":
		return FormatJPEG, nil
	case "WEBP":
		return FormatWEBP, nil
	default:
		return FormatJPEG, fmt.Errorf("unknown output format %q", raw)
	}
}

func (f Format) String() string {
	if f == FormatWEBP {
		return "WEBP"
	}
	return "JPEG"
}

// Extension is the suffix substituted for ".png" on output files.
func (f Format) Extension() string {
	if f == FormatWEBP {
		return ".webp"
	}
	return ".jpg"
}

// Options configures one compression job.
type Options struct {
	// TargetDir is the directory whose PNG files are transcoded. No
	// folder exclusions apply here; the caller has already chosen a
	// safe scope.
	TargetDir string

	// Recursive includes PNGs in subdirectories instead of only
	// direct children.
	Recursive bool

	// Quality in [1,100] drives the lossy JPEG encode. The WebP
	// target is lossless and ignores it.
	Quality int

	Format Format

	// DeleteOriginal removes the source PNG, but only after its
	// output file has been fully written.
	DeleteOriginal bool
}

func (o Options) validate() error {
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("invalid quality %d: must be between 1 and 100", o.Quality)
	}
	if o.Format != FormatJPEG && o.Format != FormatWEBP {
		return fmt.Errorf("unknown output format")
	}
	if strings.TrimSpace(o.TargetDir) == "" {
		return fmt.Errorf("target directory must not be empty")
	}
	return nil
}
