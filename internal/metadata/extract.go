package metadata

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"io"
)

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

// Extract walks the PNG chunk stream and collects the "workflow" and
// "prompt" text entries. Chunks of type tEXt, zTXt, and iTXt are all
// understood. A structurally broken file returns an error; callers
// treat that as "no metadata available" rather than failing the file.
func Extract(r io.Reader) (Payload, error) {
	payload := Payload{}

	br := bufio.NewReader(r)

	sig := make([]byte, 8)
	if _, err := io.ReadFull(br, sig); err != nil {
		return payload, err
	}
	if !bytes.Equal(sig, pngSignature) {
		return payload, errors.New("invalid PNG signature")
	}

	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			if err == io.EOF {
				return payload, nil
			}
			return payload, err
		}
		length := binary.BigEndian.Uint32(lenBuf)

		chunkType := make([]byte, 4)
		if _, err := io.ReadFull(br, chunkType); err != nil {
			return payload, err
		}
		chunkName := string(chunkType)

		switch chunkName {
		case "tEXt", "zTXt", "iTXt":
			data := make([]byte, length)
			if _, err := io.ReadFull(br, data); err != nil {
				return payload, err
			}
			if _, err := io.CopyN(io.Discard, br, 4); err != nil {
				return payload, err
			}
			key, text := decodeTextChunk(chunkName, data)
			switch key {
			case "workflow":
				payload.Workflow = text
			case "prompt":
				payload.Prompt = text
			}
		default:
			if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
				return payload, err
			}
		}

		if chunkName == "IEND" {
			return payload, nil
		}
	}
}

// decodeTextChunk returns the keyword and text of a PNG text chunk, or
// empty strings if the chunk body cannot be decoded.
func decodeTextChunk(chunkName string, data []byte) (string, string) {
	idx := bytes.IndexByte(data, 0)
	if idx <= 0 {
		return "", ""
	}
	key := string(data[:idx])
	rest := data[idx+1:]

	switch chunkName {
	case "tEXt":
		return key, string(rest)
	case "zTXt":
		// One method byte, then zlib-compressed text.
		if len(rest) < 1 || rest[0] != 0 {
			return "", ""
		}
		text, err := inflate(rest[1:])
		if err != nil {
			return "", ""
		}
		return key, text
	case "iTXt":
		// Compression flag, compression method, language tag NUL,
		// translated keyword NUL, then the text.
		if len(rest) < 2 {
			return "", ""
		}
		compressed := rest[0] == 1
		rest = rest[2:]
		for i := 0; i < 2; i++ {
			n := bytes.IndexByte(rest, 0)
			if n < 0 {
				return "", ""
			}
			rest = rest[n+1:]
		}
		if compressed {
			text, err := inflate(rest)
			if err != nil {
				return "", ""
			}
			return key, text
		}
		return key, string(rest)
	}
	return "", ""
}

func inflate(data []byte) (string, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer zr.Close()
	text, err := io.ReadAll(zr)
	if err != nil {
		return "", err
	}
	return string(text), nil
}
