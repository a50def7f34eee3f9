package usbmon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"idlepower/internal/logging"
)

// Namer resolves a bus/device pair to a display name
type Namer interface {
	Name(ctx context.Context, bus, device int) string
}

// Stats counts what the sampler has seen
type Stats struct {
	Records  uint64
	Matched  uint64
	Skipped  uint64
	Filtered uint64
}

// Sampler reads usbmon records and emits ActivityEvents for monitored buses
type Sampler struct {
	reader *Reader
	filter BusFilter
	namer  Namer
	logger *logging.Logger
	now    func() time.Time

	activityLog  rate.Sometimes
	malformedLog rate.Sometimes

	records  atomic.Uint64
	matched  atomic.Uint64
	skipped  atomic.Uint64
	filtered atomic.Uint64
}

// SamplerOption customizes a Sampler
type SamplerOption func(*Sampler)

// WithNamer attaches a device namer used for activity debug lines
func WithNamer(n Namer) SamplerOption {
	return func(s *Sampler) { s.namer = n }
}

// WithClock overrides the event timestamp source
func WithClock(now func() time.Time) SamplerOption {
	return func(s *Sampler) { s.now = now }
}

// WithHeaderSize selects the header framing of the source
func WithHeaderSize(size int) SamplerOption {
	return func(s *Sampler) { s.reader = NewReader(s.reader.r, size) }
}

// NewSampler creates a sampler over src
func NewSampler(src io.Reader, filter BusFilter, logger *logging.Logger, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		reader:       NewReader(src, HeaderSizeRead),
		filter:       filter,
		logger:       logger,
		now:          time.Now,
		activityLog:  rate.Sometimes{Interval: time.Minute},
		malformedLog: rate.Sometimes{First: 5, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks reading records until the source fails or ctx is cancelled.
// Cancelling ctx does not interrupt a blocked read; callers close the
// source to unblock it. A clean EOF returns ErrSourceClosed.
func (s *Sampler) Run(ctx context.Context, out chan<- ActivityEvent) error {
	s.logger.Info("usbmon.sampler.started", "USB activity sampler started", map[string]interface{}{
		"header_bytes": s.reader.headerSize,
		"all_buses":    s.filter.All(),
	})
	defer s.logger.Info("usbmon.sampler.stopped", "USB activity sampler stopped", s.statsPayload())

	for {
		h, err := s.reader.Next()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			switch {
			case errors.Is(err, ErrSourceClosed):
				s.logger.Error("usbmon.source.closed", "USB monitor source reached end of stream", nil)
				return ErrSourceClosed
			case errors.Is(err, ErrMalformedRecord), errors.Is(err, ErrShortRecord):
				s.skipped.Add(1)
				s.malformedLog.Do(func() {
					s.logger.Warn("usbmon.record.malformed", "Skipping malformed USB record", map[string]interface{}{
						"error":   err.Error(),
						"skipped": s.skipped.Load(),
					})
				})
				continue
			default:
				return fmt.Errorf("usbmon: %w", err)
			}
		}

		s.records.Add(1)

		if !h.Addressed() {
			continue
		}
		if !s.filter.Match(int(h.Bus)) {
			s.filtered.Add(1)
			continue
		}

		ev := ActivityEvent{
			Timestamp: s.now(),
			Bus:       int(h.Bus),
			Device:    int(h.Device),
		}
		s.matched.Add(1)
		s.logActivity(ctx, h)

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Sampler) logActivity(ctx context.Context, h Header) {
	s.activityLog.Do(func() {
		device := fmt.Sprintf("Bus %03d Device %03d", h.Bus, h.Device)
		if s.namer != nil {
			device = s.namer.Name(ctx, int(h.Bus), int(h.Device))
		}
		s.logger.Debug("usbmon.activity", "USB activity", map[string]interface{}{
			"device":   device,
			"transfer": h.TransferType.String(),
			"endpoint": fmt.Sprintf("%02x", h.Endpoint),
		})
	})
}

// Stats returns a snapshot of the sampler counters
func (s *Sampler) Stats() Stats {
	return Stats{
		Records:  s.records.Load(),
		Matched:  s.matched.Load(),
		Skipped:  s.skipped.Load(),
		Filtered: s.filtered.Load(),
	}
}

func (s *Sampler) statsPayload() map[string]interface{} {
	st := s.Stats()
	return map[string]interface{}{
		"records":  st.Records,
		"matched":  st.Matched,
		"skipped":  st.Skipped,
		"filtered": st.Filtered,
	}
}
