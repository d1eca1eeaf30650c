package metadata

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	exif "github.com/dsoprea/go-exif/v3"

	"attic/pkg/imgutil"
)

func buildPNG(t *testing.T, chunks ...[]byte) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	data := buf.Bytes()
	insertAt := len(data) - 12 // before IEND

	out := append([]byte{}, data[:insertAt]...)
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return append(out, data[insertAt:]...)
}

func buildChunk(chunkType string, data []byte) []byte {
	body := append([]byte(chunkType), data...)
	crc := crc32.ChecksumIEEE(body)

	chunk := make([]byte, 0, 12+len(data))
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(data)))
	chunk = append(chunk, body...)
	return binary.BigEndian.AppendUint32(chunk, crc)
}

func textChunk(key, value string) []byte {
	return buildChunk("tEXt", append(append([]byte(key), 0), value...))
}

func TestExtractTextChunks(t *testing.T) {
	data := buildPNG(t,
		textChunk("workflow", `{"nodes":[1,2]}`),
		textChunk("prompt", `{"3":{"seed":42}}`),
		textChunk("unrelated", "ignored"),
	)

	payload, err := Extract(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if payload.Workflow != `{"nodes":[1,2]}` {
		t.Errorf("workflow = %q", payload.Workflow)
	}
	if payload.Prompt != `{"3":{"seed":42}}` {
		t.Errorf("prompt = %q", payload.Prompt)
	}
}

func TestExtractZTXt(t *testing.T) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write([]byte(`{"deflated":true}`)); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	body := append(append([]byte("workflow"), 0, 0), compressed.Bytes()...)
	data := buildPNG(t, buildChunk("zTXt", body))

	payload, err := Extract(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if payload.Workflow != `{"deflated":true}` {
		t.Errorf("workflow = %q", payload.Workflow)
	}
}

func TestExtractNoMetadata(t *testing.T) {
	payload, err := Extract(bytes.NewReader(buildPNG(t)))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !payload.Empty() {
		t.Errorf("expected empty payload, got %+v", payload)
	}
}

func TestExtractRejectsNonPNG(t *testing.T) {
	if _, err := Extract(bytes.NewReader([]byte("definitely not a PNG file"))); err == nil {
		t.Fatal("expected error for non-PNG input")
	}
}

func buildJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func readEmbedded(t *testing.T, data []byte) map[string]string {
	t.Helper()
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		t.Fatalf("search exif: %v", err)
	}
	tags, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		t.Fatalf("flat exif: %v", err)
	}
	values := make(map[string]string)
	for _, tag := range tags {
		if s, ok := tag.Value.(string); ok {
			values[tag.TagName] = s
		}
	}
	return values
}

func TestEmbedJPEGFull(t *testing.T) {
	payload := Payload{Workflow: `{"nodes":[]}`, Prompt: `{"seed":7}`}

	out, tier := Embed(buildJPEG(t), imgutil.KindJPEG, payload)
	if tier != TierFull {
		t.Fatalf("tier = %v, want full", tier)
	}

	values := readEmbedded(t, out)
	if values["Make"] != "workflow:"+payload.Workflow {
		t.Errorf("Make = %q", values["Make"])
	}
	if values["Model"] != "prompt:"+payload.Prompt {
		t.Errorf("Model = %q", values["Model"])
	}

	if kind, err := imgutil.SniffReader(bytes.NewReader(out)); err != nil || kind != imgutil.KindJPEG {
		t.Errorf("output no longer sniffs as JPEG: %v %v", kind, err)
	}
}

func TestEmbedJPEGDropsPromptOnOverflow(t *testing.T) {
	payload := Payload{
		Workflow: `{"small":true}`,
		Prompt:   strings.Repeat("p", maxJPEGSegmentPayload+1),
	}

	out, tier := Embed(buildJPEG(t), imgutil.KindJPEG, payload)
	if tier != TierWorkflowOnly {
		t.Fatalf("tier = %v, want workflow_only", tier)
	}

	values := readEmbedded(t, out)
	if values["Make"] != "workflow:"+payload.Workflow {
		t.Errorf("Make = %q", values["Make"])
	}
	if _, ok := values["Model"]; ok {
		t.Error("prompt should have been dropped")
	}
}

func TestEmbedJPEGGivesUpWhenWorkflowOverflows(t *testing.T) {
	src := buildJPEG(t)
	payload := Payload{Workflow: strings.Repeat("w", maxJPEGSegmentPayload+1)}

	out, tier := Embed(src, imgutil.KindJPEG, payload)
	if tier != TierNone {
		t.Fatalf("tier = %v, want none", tier)
	}
	if !bytes.Equal(out, src) {
		t.Error("image bytes should be untouched when nothing fits")
	}
}

func TestEmbedEmptyPayload(t *testing.T) {
	src := buildJPEG(t)
	out, tier := Embed(src, imgutil.KindJPEG, Payload{})
	if tier != TierNone || !bytes.Equal(out, src) {
		t.Errorf("empty payload should be a no-op, tier=%v", tier)
	}
}

func buildWebP(withVP8X bool) []byte {
	// Minimal 1x1 lossless container; the VP8L payload past the header
	// is opaque to the chunk surgery under test.
	vp8l := []byte{0x2f, 0x00, 0x00, 0x00, 0x00, 0xaa, 0xbb}

	chunks := []riffChunk{}
	if withVP8X {
		vp8x := make([]byte, vp8xChunkSize)
		chunks = append(chunks, riffChunk{fourCC: "VP8X", data: vp8x})
	}
	chunks = append(chunks, riffChunk{fourCC: "VP8L", data: vp8l})
	return assembleRIFF(chunks)
}

func TestEmbedWebP(t *testing.T) {
	for _, withVP8X := range []bool{true, false} {
		payload := Payload{Workflow: `{"nodes":[]}`, Prompt: `{"seed":7}`}
		out, tier := Embed(buildWebP(withVP8X), imgutil.KindWebP, payload)
		if tier != TierFull {
			t.Fatalf("withVP8X=%v: tier = %v, want full", withVP8X, tier)
		}

		if kind, err := imgutil.SniffReader(bytes.NewReader(out)); err != nil || kind != imgutil.KindWebP {
			t.Fatalf("withVP8X=%v: output no longer sniffs as WebP", withVP8X)
		}

		chunks, err := parseRIFFChunks(out[12:])
		if err != nil {
			t.Fatalf("withVP8X=%v: parse output: %v", withVP8X, err)
		}
		if chunks[0].fourCC != "VP8X" || chunks[0].data[0]&vp8xExifFlag == 0 {
			t.Errorf("withVP8X=%v: VP8X chunk missing or EXIF flag unset", withVP8X)
		}

		last := chunks[len(chunks)-1]
		if last.fourCC != "EXIF" {
			t.Fatalf("withVP8X=%v: expected trailing EXIF chunk, got %q", withVP8X, last.fourCC)
		}
		tags, _, err := exif.GetFlatExifData(last.data, nil)
		if err != nil {
			t.Fatalf("withVP8X=%v: parse embedded exif: %v", withVP8X, err)
		}
		found := false
		for _, tag := range tags {
			if tag.TagName == "Make" {
				found = true
			}
		}
		if !found {
			t.Errorf("withVP8X=%v: workflow tag missing from EXIF chunk", withVP8X)
		}

		// The declared RIFF size must match the rebuilt container.
		declared := binary.LittleEndian.Uint32(out[4:8])
		if int(declared) != len(out)-8 {
			t.Errorf("withVP8X=%v: RIFF size %d, want %d", withVP8X, declared, len(out)-8)
		}
	}
}

func TestTierString(t *testing.T) {
	if TierFull.String() != "full" || TierWorkflowOnly.String() != "workflow_only" || TierNone.String() != "none" {
		t.Error("tier strings diverge from recorded statuses")
	}
}
