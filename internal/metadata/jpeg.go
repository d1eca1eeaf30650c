package metadata

import (
	"encoding/binary"
	"fmt"
)

var jpegExifHeader = []byte("Exif\x00\x00")

// The APP1 length field is 16 bits and covers itself, so the payload
// (Exif header plus EXIF block) tops out just under 64 KiB. This limit
// belongs to the segment, not to the codec.
const maxJPEGSegmentPayload = 0xFFFF - 2

func jpegExifFits(blob []byte) bool {
	return len(jpegExifHeader)+len(blob) <= maxJPEGSegmentPayload
}

// insertJPEGExif splices an APP1 Exif segment directly after the SOI
// marker, ahead of whatever segments the encoder emitted.
func insertJPEGExif(jpg, blob []byte) ([]byte, error) {
	if len(jpg) < 2 || jpg[0] != 0xff || jpg[1] != 0xd8 {
		return nil, fmt.Errorf("invalid JPEG SOI")
	}

	payloadLen := len(jpegExifHeader) + len(blob)
	if payloadLen > maxJPEGSegmentPayload {
		return nil, fmt.Errorf("exif payload %d exceeds APP1 capacity %d", payloadLen, maxJPEGSegmentPayload)
	}

	out := make([]byte, 0, len(jpg)+4+payloadLen)
	out = append(out, jpg[:2]...)
	out = append(out, 0xff, 0xe1)

	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(payloadLen+2))
	out = append(out, lenBuf...)
	out = append(out, jpegExifHeader...)
	out = append(out, blob...)
	out = append(out, jpg[2:]...)

	return out, nil
}
