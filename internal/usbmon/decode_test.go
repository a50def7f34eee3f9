package usbmon

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(bus uint16, dev uint8, payload []byte, size int) []byte {
	h := Header{
		ID:           0xdeadbeef,
		Type:         'C',
		TransferType: TransferInterrupt,
		Endpoint:     0x81,
		Device:       dev,
		Bus:          bus,
		TSSec:        1700000000,
		TSUsec:       42,
		Length:       uint32(len(payload)),
		LenCap:       uint32(len(payload)),
	}
	return append(Encode(h, size), payload...)
}

func TestDecode_Fields(t *testing.T) {
	buf := record(3, 7, nil, HeaderSizeExtended)
	buf[48] = 8 // interval

	h, err := Decode(buf)
	require.NoError(t, err)

	assert.Equal(t, uint64(0xdeadbeef), h.ID)
	assert.Equal(t, byte('C'), h.Type)
	assert.Equal(t, TransferInterrupt, h.TransferType)
	assert.Equal(t, uint8(0x81), h.Endpoint)
	assert.Equal(t, uint16(3), h.Bus)
	assert.Equal(t, uint8(7), h.Device)
	assert.Equal(t, int64(1700000000), h.TSSec)
	assert.Equal(t, int32(42), h.TSUsec)
	assert.Equal(t, int32(8), h.Interval)
}

func TestDecode_Short(t *testing.T) {
	_, err := Decode(make([]byte, 20))
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestHeader_Validate(t *testing.T) {
	tests := []struct {
		name    string
		bus     uint16
		dev     uint8
		wantErr bool
	}{
		{"normal", 1, 2, false},
		{"max values", 255, 127, false},
		{"bus too large", 256, 2, true},
		{"device too large", 1, 128, true},
		{"zero is valid but unaddressed", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Header{Bus: tt.bus, Device: tt.dev}.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRecord)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHeader_Addressed(t *testing.T) {
	assert.True(t, Header{Bus: 1, Device: 1}.Addressed())
	assert.False(t, Header{Bus: 0, Device: 1}.Addressed())
	assert.False(t, Header{Bus: 1, Device: 0}.Addressed())
}

func TestTransferType_String(t *testing.T) {
	assert.Equal(t, "ISO", TransferISO.String())
	assert.Equal(t, "Interrupt", TransferInterrupt.String())
	assert.Equal(t, "Control", TransferControl.String())
	assert.Equal(t, "Bulk", TransferBulk.String())
	assert.Equal(t, "Unknown", TransferType(9).String())
}

func TestReader_FramesPayload(t *testing.T) {
	for _, size := range []int{HeaderSizeRead, HeaderSizeExtended} {
		var stream bytes.Buffer
		stream.Write(record(1, 2, []byte{1, 2, 3, 4, 5}, size))
		stream.Write(record(4, 9, nil, size))

		r := NewReader(&stream, size)

		h, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, uint16(1), h.Bus)

		h, err = r.Next()
		require.NoError(t, err, "payload of first record must be consumed")
		assert.Equal(t, uint16(4), h.Bus)
		assert.Equal(t, uint8(9), h.Device)

		_, err = r.Next()
		assert.ErrorIs(t, err, ErrSourceClosed)
	}
}

func TestReader_ShortHeader(t *testing.T) {
	r := NewReader(bytes.NewReader(make([]byte, 10)), HeaderSizeRead)
	_, err := r.Next()
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestReader_TruncatedPayload(t *testing.T) {
	buf := record(1, 2, []byte{1, 2, 3}, HeaderSizeRead)
	r := NewReader(bytes.NewReader(buf[:len(buf)-2]), HeaderSizeRead)
	_, err := r.Next()
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestReader_Malformed(t *testing.T) {
	r := NewReader(bytes.NewReader(record(300, 2, nil, HeaderSizeRead)), HeaderSizeRead)
	h, err := r.Next()
	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.Equal(t, uint16(300), h.Bus)
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestReader_IOError(t *testing.T) {
	boom := errors.New("device gone")
	r := NewReader(failingReader{err: boom}, HeaderSizeRead)
	_, err := r.Next()
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrSourceClosed)
}

func TestNewReader_DefaultsHeaderSize(t *testing.T) {
	r := NewReader(io.LimitReader(nil, 0), 17)
	assert.Equal(t, HeaderSizeRead, r.headerSize)
}
