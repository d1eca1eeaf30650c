package metadata

import (
	"fmt"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"

	"attic/pkg/imgutil"
)

// Payload framing inside EXIF IFD0: the workflow document rides in the
// Make tag, the prompt document in the Model tag, each prefixed with
// its own name so a reader can tell them apart without guessing.
const (
	workflowTagName = "Make"
	promptTagName   = "Model"
	workflowPrefix  = "workflow:"
	promptPrefix    = "prompt:"
)

// Embed writes as much of payload as the target container can hold and
// returns the final image bytes with the achieved tier. The ladder is
// full payload, then workflow only, then nothing; the image itself is
// always returned intact. Capacity is checked against the concrete
// container: the JPEG APP1 segment's 16-bit length field, or the WebP
// RIFF chunk's 32-bit one.
func Embed(encoded []byte, kind imgutil.Kind, payload Payload) ([]byte, Tier) {
	if payload.Empty() {
		return encoded, TierNone
	}

	if payload.Workflow != "" && payload.Prompt != "" {
		if out, ok := tryEmbed(encoded, kind, payload.Workflow, payload.Prompt); ok {
			return out, TierFull
		}
	} else if payload.Prompt != "" && payload.Workflow == "" {
		// Prompt-only sources either fit whole or carry nothing; the
		// middle rung of the ladder only exists for workflow documents.
		if out, ok := tryEmbed(encoded, kind, "", payload.Prompt); ok {
			return out, TierFull
		}
		return encoded, TierNone
	}

	if payload.Workflow != "" {
		if out, ok := tryEmbed(encoded, kind, payload.Workflow, ""); ok {
			if payload.Prompt == "" {
				return out, TierFull
			}
			return out, TierWorkflowOnly
		}
	}

	return encoded, TierNone
}

func tryEmbed(encoded []byte, kind imgutil.Kind, workflow, prompt string) ([]byte, bool) {
	blob, err := buildExif(workflow, prompt)
	if err != nil {
		return nil, false
	}

	switch kind {
	case imgutil.KindJPEG:
		if !jpegExifFits(blob) {
			return nil, false
		}
		out, err := insertJPEGExif(encoded, blob)
		if err != nil {
			return nil, false
		}
		return out, true
	case imgutil.KindWebP:
		if !webpExifFits(blob) {
			return nil, false
		}
		out, err := insertWebPExif(encoded, blob)
		if err != nil {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

// buildExif serializes the given documents into a standalone EXIF block
// (TIFF header plus IFD0), big-endian per the encoder default.
func buildExif(workflow, prompt string) ([]byte, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("ifd mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	ib := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)

	if workflow != "" {
		if err := ib.AddStandardWithName(workflowTagName, workflowPrefix+workflow); err != nil {
			return nil, fmt.Errorf("add workflow tag: %w", err)
		}
	}
	if prompt != "" {
		if err := ib.AddStandardWithName(promptTagName, promptPrefix+prompt); err != nil {
			return nil, fmt.Errorf("add prompt tag: %w", err)
		}
	}

	ibe := exif.NewIfdByteEncoder()
	blob, err := ibe.EncodeToExif(ib)
	if err != nil {
		return nil, fmt.Errorf("encode exif: %w", err)
	}
	return blob, nil
}
