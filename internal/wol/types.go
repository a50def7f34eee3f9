// Package wol arms Wake-on-LAN on the host NIC before a suspend and sends
// magic packets to wake a suspended machine.
package wol

import (
	"fmt"
	"net"
	"strings"
)

// DefaultMode is the ethtool mode for magic-packet wake
const DefaultMode = "g"

// ethtool Wake-on letters: p=PHY, u=unicast, m=multicast, b=broadcast,
// a=ARP, g=magic packet, s=SecureOn, d=disabled
const validModes = "pumbagsd"

// Status is the Wake-on-LAN state of one interface as reported by ethtool
type Status struct {
	Interface string   `json:"interface"`
	MAC       string   `json:"mac,omitempty"`
	Supported []string `json:"supported"`
	Current   string   `json:"current"`
}

// Supports reports whether every letter of mode is a supported wake mode
func (s Status) Supports(mode string) bool {
	if mode == "" {
		return false
	}
	for _, r := range mode {
		if r == 'd' {
			continue
		}
		found := false
		for _, m := range s.Supported {
			if m == string(r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Armed reports whether the interface wakes on magic packets
func (s Status) Armed() bool {
	return strings.Contains(s.Current, DefaultMode)
}

// ValidateMode checks an ethtool wol mode string
func ValidateMode(mode string) error {
	if mode == "" {
		return fmt.Errorf("empty wol mode")
	}
	for _, r := range mode {
		if !strings.ContainsRune(validModes, r) {
			return fmt.Errorf("invalid wol mode %q: letters must be from %q", mode, validModes)
		}
	}
	if strings.Contains(mode, "d") && len(mode) > 1 {
		return fmt.Errorf("invalid wol mode %q: d cannot be combined", mode)
	}
	return nil
}

// ParseMAC accepts colon, dash or bare 12-digit hex notation
func ParseMAC(mac string) (net.HardwareAddr, error) {
	s := strings.TrimSpace(mac)
	if len(s) == 12 && !strings.ContainsAny(s, ":-") {
		var b strings.Builder
		for i := 0; i < 12; i += 2 {
			if i > 0 {
				b.WriteByte(':')
			}
			b.WriteString(s[i : i+2])
		}
		s = b.String()
	}

	hw, err := net.ParseMAC(s)
	if err != nil {
		return nil, fmt.Errorf("invalid MAC address %q: %w", mac, err)
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("invalid MAC address %q: expected 6 bytes, got %d", mac, len(hw))
	}
	return hw, nil
}

// BroadcastAddr derives the IPv4 broadcast address of iface
func BroadcastAddr(iface string) (string, error) {
	netIface, err := net.InterfaceByName(iface)
	if err != nil {
		return "", fmt.Errorf("failed to get interface %s: %w", iface, err)
	}

	addrs, err := netIface.Addrs()
	if err != nil {
		return "", fmt.Errorf("failed to get addresses for %s: %w", iface, err)
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if b := broadcastOf(ipNet); b != nil {
			return b.String(), nil
		}
	}

	return "", fmt.Errorf("no IPv4 address found on interface %s", iface)
}

func broadcastOf(ipNet *net.IPNet) net.IP {
	ip4 := ipNet.IP.To4()
	if ip4 == nil || len(ipNet.Mask) < 4 {
		return nil
	}
	mask := ipNet.Mask[len(ipNet.Mask)-4:]
	broadcast := make(net.IP, 4)
	for i := 0; i < 4; i++ {
		broadcast[i] = ip4[i] | ^mask[i]
	}
	return broadcast
}
