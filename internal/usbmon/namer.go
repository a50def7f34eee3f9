package usbmon

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"idlepower/internal/command"
)

const (
	nameCacheTTL  = 60 * time.Second
	lsusbTimeout  = 2 * time.Second
	lsusbFieldSep = ": "
)

type deviceKey struct {
	bus, device int
}

// DeviceNamer resolves USB addresses with lsusb, caching results and
// dropping the cache every minute so replugged devices are picked up.
type DeviceNamer struct {
	runner command.Runner
	now    func() time.Time

	mu        sync.Mutex
	cache     map[deviceKey]string
	clearedAt time.Time
}

// NewDeviceNamer creates a namer backed by runner
func NewDeviceNamer(runner command.Runner) *DeviceNamer {
	return &DeviceNamer{
		runner: runner,
		now:    time.Now,
		cache:  make(map[deviceKey]string),
	}
}

// Name returns "Bus 005 Dev 003: ID 046d:c52b Logitech, Inc. ..." when
// lsusb knows the device and "Bus 005 Device 003" otherwise.
func (n *DeviceNamer) Name(ctx context.Context, bus, device int) string {
	n.mu.Lock()
	now := n.now()
	if now.Sub(n.clearedAt) > nameCacheTTL {
		n.cache = make(map[deviceKey]string)
		n.clearedAt = now
	}
	key := deviceKey{bus: bus, device: device}
	if name, ok := n.cache[key]; ok {
		n.mu.Unlock()
		return name
	}
	n.mu.Unlock()

	name := n.lookup(ctx, bus, device)

	n.mu.Lock()
	n.cache[key] = name
	n.mu.Unlock()
	return name
}

func (n *DeviceNamer) lookup(ctx context.Context, bus, device int) string {
	fallback := fmt.Sprintf("Bus %03d Device %03d", bus, device)

	ctx, cancel := context.WithTimeout(ctx, lsusbTimeout)
	defer cancel()

	out, err := n.runner.Run(ctx, "lsusb", "-s", fmt.Sprintf("%d:%d", bus, device))
	if err != nil {
		return fallback
	}

	// Bus 005 Device 003: ID 046d:c52b Logitech, Inc. Unifying Receiver
	// the vendor:product pair has no space after its colon
	_, info, ok := strings.Cut(strings.TrimSpace(string(out)), lsusbFieldSep)
	info = strings.TrimSpace(info)
	if !ok || info == "" {
		return fallback
	}
	return fmt.Sprintf("Bus %03d Dev %03d: %s", bus, device, info)
}
