package usbmon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Decode parses a little-endian mon_bin header. buf must hold at least
// HeaderSizeRead bytes; the iso fields are decoded when 64 bytes are present.
func Decode(buf []byte) (Header, error) {
	if len(buf) < HeaderSizeRead {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortRecord, len(buf))
	}

	le := binary.LittleEndian
	h := Header{
		ID:           le.Uint64(buf[0:8]),
		Type:         buf[8],
		TransferType: TransferType(buf[9]),
		Endpoint:     buf[10],
		Device:       buf[11],
		Bus:          le.Uint16(buf[12:14]),
		FlagSetup:    int8(buf[14]),
		FlagData:     int8(buf[15]),
		TSSec:        int64(le.Uint64(buf[16:24])),
		TSUsec:       int32(le.Uint32(buf[24:28])),
		Status:       int32(le.Uint32(buf[28:32])),
		Length:       le.Uint32(buf[32:36]),
		LenCap:       le.Uint32(buf[36:40]),
	}
	copy(h.Setup[:], buf[40:48])

	if len(buf) >= HeaderSizeExtended {
		h.Interval = int32(le.Uint32(buf[48:52]))
		h.StartFrame = int32(le.Uint32(buf[52:56]))
		h.XferFlags = le.Uint32(buf[56:60])
		h.NDesc = le.Uint32(buf[60:64])
	}

	return h, nil
}

// Encode is the inverse of Decode, writing size (48 or 64) bytes.
func Encode(h Header, size int) []byte {
	buf := make([]byte, size)
	le := binary.LittleEndian
	le.PutUint64(buf[0:8], h.ID)
	buf[8] = h.Type
	buf[9] = byte(h.TransferType)
	buf[10] = h.Endpoint
	buf[11] = h.Device
	le.PutUint16(buf[12:14], h.Bus)
	buf[14] = byte(h.FlagSetup)
	buf[15] = byte(h.FlagData)
	le.PutUint64(buf[16:24], uint64(h.TSSec))
	le.PutUint32(buf[24:28], uint32(h.TSUsec))
	le.PutUint32(buf[28:32], uint32(h.Status))
	le.PutUint32(buf[32:36], h.Length)
	le.PutUint32(buf[36:40], h.LenCap)
	copy(buf[40:48], h.Setup[:])
	if size >= HeaderSizeExtended {
		le.PutUint32(buf[48:52], uint32(h.Interval))
		le.PutUint32(buf[52:56], uint32(h.StartFrame))
		le.PutUint32(buf[56:60], h.XferFlags)
		le.PutUint32(buf[60:64], h.NDesc)
	}
	return buf
}

// Reader frames records out of a usbmon byte stream: a fixed-size header
// followed by LenCap captured payload bytes.
type Reader struct {
	r          io.Reader
	headerSize int
	buf        []byte
}

// NewReader creates a record reader. headerSize is HeaderSizeRead or
// HeaderSizeExtended; anything else falls back to HeaderSizeRead.
func NewReader(r io.Reader, headerSize int) *Reader {
	if headerSize != HeaderSizeExtended {
		headerSize = HeaderSizeRead
	}
	return &Reader{r: r, headerSize: headerSize, buf: make([]byte, headerSize)}
}

// Next reads one record. It returns ErrSourceClosed on a clean EOF,
// ErrShortRecord (wrapped) when the stream ends mid-header and
// ErrMalformedRecord (wrapped, with the decoded header) for out of range
// addresses. Payload bytes of well-formed records are consumed.
func (r *Reader) Next() (Header, error) {
	n, err := io.ReadFull(r.r, r.buf)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return Header{}, ErrSourceClosed
		case errors.Is(err, io.ErrUnexpectedEOF):
			return Header{}, fmt.Errorf("%w: %d of %d bytes", ErrShortRecord, n, r.headerSize)
		default:
			return Header{}, fmt.Errorf("read usbmon header: %w", err)
		}
	}

	h, err := Decode(r.buf)
	if err != nil {
		return Header{}, err
	}

	if err := h.Validate(); err != nil {
		return h, err
	}

	if h.LenCap > 0 {
		drain := int64(h.LenCap)
		if drain > maxCapture {
			drain = maxCapture
		}
		if _, err := io.CopyN(io.Discard, r.r, drain); err != nil {
			if errors.Is(err, io.EOF) {
				return h, fmt.Errorf("%w: payload truncated", ErrShortRecord)
			}
			return h, fmt.Errorf("read usbmon payload: %w", err)
		}
	}

	return h, nil
}
