package compress

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HugoSmits86/nativewebp"

	"attic/internal/metadata"
	"attic/pkg/imgutil"
)

// run is the single worker loop. All transcoding is serialized through
// it; cancellation is honored only between files, so an in-progress
// write is never interrupted. There is no per-file timeout: a
// pathologically slow decode stalls the job, a known limitation of the
// single-worker design.
func (m *Manager) run(files []string, opts Options) {
	for _, path := range files {
		if m.cancelRequested() {
			break
		}

		result, err := processFile(path, opts)

		m.mu.Lock()
		job := m.job
		job.Current++
		job.CurrentFile = path
		if err != nil {
			job.Errors++
		} else {
			job.Compressed++
			job.TotalOriginalBytes += result.originalBytes
			job.TotalCompressedBytes += result.compressedBytes
			switch result.tier {
			case metadata.TierFull:
				job.MetadataFull++
			case metadata.TierWorkflowOnly:
				job.MetadataPartial++
			default:
				job.MetadataNone++
			}
		}
		m.mu.Unlock()

		if err != nil {
			m.logger.Warn("compression failed",
				slog.String("file", path),
				slog.String("error", err.Error()))
		}
	}

	m.mu.Lock()
	job := m.job
	job.State = StateCompleted
	job.FinishedAt = time.Now()
	done := *job
	hook := m.onDone
	m.mu.Unlock()

	m.logger.Info("compression finished",
		slog.String("job", done.ID),
		slog.Int("compressed", done.Compressed),
		slog.Int("errors", done.Errors),
		slog.Int64("savings_bytes", done.SavingsBytes()))

	if hook != nil {
		hook(done)
	}
}

// enumeratePNGs lists the PNG files in scope, lexically ordered. Unlike
// the archive walk there are no folder exclusions.
func enumeratePNGs(dir string, recursive bool) ([]string, error) {
	var files []string

	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && isPNGName(entry.Name()) {
				files = append(files, filepath.Join(dir, entry.Name()))
			}
		}
		return files, nil
	}

	err := fs.WalkDir(os.DirFS(dir), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && d.Type().IsRegular() && isPNGName(d.Name()) {
			files = append(files, filepath.Join(dir, path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func isPNGName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".png")
}

type fileResult struct {
	outputPath      string
	originalBytes   int64
	compressedBytes int64
	tier            metadata.Tier
}

// processFile transcodes one PNG. Any failure leaves the source file
// untouched and writes no output; the original is deleted only after
// the output has been durably written.
func processFile(path string, opts Options) (fileResult, error) {
	result := fileResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("read: %w", err)
	}
	result.originalBytes = int64(len(data))

	if kind, err := imgutil.SniffReader(bytes.NewReader(data)); err != nil || kind != imgutil.KindPNG {
		return result, fmt.Errorf("not a PNG file")
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return result, fmt.Errorf("decode: %w", err)
	}

	// A source with broken text chunks still compresses; it just
	// carries nothing across.
	payload, err := metadata.Extract(bytes.NewReader(data))
	if err != nil {
		payload = metadata.Payload{}
	}

	encoded, targetKind, err := encodeImage(img, opts)
	if err != nil {
		return result, fmt.Errorf("encode: %w", err)
	}

	final, tier := metadata.Embed(encoded, targetKind, payload)
	result.tier = tier
	result.compressedBytes = int64(len(final))

	outputPath := strings.TrimSuffix(path, filepath.Ext(path)) + opts.Format.Extension()
	if err := writeDurably(outputPath, final); err != nil {
		return result, fmt.Errorf("write: %w", err)
	}
	result.outputPath = outputPath

	if opts.DeleteOriginal {
		// Output is fully on disk at this point, so losing the
		// original is safe. A failed delete leaves a harmless extra.
		_ = os.Remove(path)
	}

	return result, nil
}

func encodeImage(img image.Image, opts Options) ([]byte, imgutil.Kind, error) {
	var buf bytes.Buffer
	switch opts.Format {
	case FormatWEBP:
		err := nativewebp.Encode(&buf, toNRGBA(img), &nativewebp.Options{UseExtendedFormat: true})
		if err != nil {
			return nil, imgutil.KindUnknown, err
		}
		return buf.Bytes(), imgutil.KindWebP, nil
	default:
		err := jpeg.Encode(&buf, flattenToWhite(img), &jpeg.Options{Quality: opts.Quality})
		if err != nil {
			return nil, imgutil.KindUnknown, err
		}
		return buf.Bytes(), imgutil.KindJPEG, nil
	}
}

// flattenToWhite composites the image over a white background; JPEG has
// no alpha channel.
func flattenToWhite(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, bounds, img, bounds.Min, draw.Over)
	return out
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)
	return out
}

// writeDurably writes to a temp file in the destination directory,
// syncs it, and renames it into place, so a crash mid-write cannot
// leave a truncated visible output.
func writeDurably(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".attic-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err == nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
