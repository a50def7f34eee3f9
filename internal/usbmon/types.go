// Package usbmon turns the kernel's binary usbmon stream into activity events.
package usbmon

import (
	"errors"
	"fmt"
	"time"
)

const (
	// HeaderSizeRead is the header length returned by read(2) on /dev/usbmonN.
	HeaderSizeRead = 48
	// HeaderSizeExtended is the full mon_bin header including iso fields.
	HeaderSizeExtended = 64

	// MaxBus and MaxDevice bound plausible addresses; larger values mean
	// the stream is misaligned or the record is corrupt.
	MaxBus    = 255
	MaxDevice = 127

	// maxCapture bounds how many payload bytes are drained for one record.
	maxCapture = 1200 * 1024
)

var (
	// ErrSourceClosed is returned when the event source reaches a clean EOF.
	ErrSourceClosed = errors.New("usbmon source closed")
	// ErrShortRecord reports a record shorter than the header size.
	ErrShortRecord = errors.New("short usbmon record")
	// ErrMalformedRecord reports out of range bus or device numbers.
	ErrMalformedRecord = errors.New("malformed usbmon record")
)

// TransferType is the USB transfer type of a record
type TransferType uint8

// Transfer types as encoded by usbmon.
const (
	TransferISO       TransferType = 0
	TransferInterrupt TransferType = 1
	TransferControl   TransferType = 2
	TransferBulk      TransferType = 3
)

func (t TransferType) String() string {
	switch t {
	case TransferISO:
		return "ISO"
	case TransferInterrupt:
		return "Interrupt"
	case TransferControl:
		return "Control"
	case TransferBulk:
		return "Bulk"
	default:
		return "Unknown"
	}
}

// Header is a decoded mon_bin packet header. Fields past Setup are only
// populated for 64-byte headers.
type Header struct {
	ID           uint64
	Type         byte
	TransferType TransferType
	Endpoint     uint8
	Device       uint8
	Bus          uint16
	FlagSetup    int8
	FlagData     int8
	TSSec        int64
	TSUsec       int32
	Status       int32
	Length       uint32
	LenCap       uint32
	Setup        [8]byte
	Interval     int32
	StartFrame   int32
	XferFlags    uint32
	NDesc        uint32
}

// Validate rejects addresses outside the USB numbering range.
func (h Header) Validate() error {
	if h.Bus > MaxBus || h.Device > MaxDevice {
		return fmt.Errorf("%w: bus %d device %d", ErrMalformedRecord, h.Bus, h.Device)
	}
	return nil
}

// Addressed reports whether the record names a concrete bus and device.
// Bus 0 or device 0 records carry no attributable activity.
func (h Header) Addressed() bool {
	return h.Bus > 0 && h.Device > 0
}

// ActivityEvent is one observed USB transfer on a monitored bus
type ActivityEvent struct {
	Timestamp time.Time
	Bus       int
	Device    int
}
