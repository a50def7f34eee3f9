package usbmon

import (
	"strconv"
	"strings"
)

// BusFilter decides which buses count as activity
type BusFilter struct {
	all   bool
	buses map[int]struct{}
}

// NewBusFilter builds a filter from configured bus strings. An empty list,
// "0" or "*" anywhere in the list matches every bus.
func NewBusFilter(buses []string) BusFilter {
	f := BusFilter{buses: make(map[int]struct{})}
	if len(buses) == 0 {
		f.all = true
		return f
	}

	for _, b := range buses {
		b = strings.TrimSpace(b)
		if b == "" || b == "0" || b == "*" {
			f.all = true
			continue
		}
		if n, err := strconv.Atoi(b); err == nil {
			f.buses[n] = struct{}{}
		}
	}

	if len(f.buses) == 0 {
		f.all = true
	}
	return f
}

// Match reports whether bus is monitored
func (f BusFilter) Match(bus int) bool {
	if f.all {
		return true
	}
	_, ok := f.buses[bus]
	return ok
}

// All reports whether the filter matches every bus
func (f BusFilter) All() bool {
	return f.all
}
