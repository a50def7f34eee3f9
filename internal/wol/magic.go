package wol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"idlepower/internal/logging"
)

const magicPacketLen = 102

// DefaultPorts are the conventional magic packet UDP ports
var DefaultPorts = []int{7, 9}

// Sender sends Wake-on-LAN magic packets
type Sender struct {
	logger *logging.Logger
	dialer net.Dialer
}

// NewSender creates a magic packet sender
func NewSender(logger *logging.Logger) *Sender {
	return &Sender{logger: logger}
}

// Send broadcasts a magic packet for mac on every port. An empty
// broadcast means 255.255.255.255. It fails only if no port succeeded.
func (s *Sender) Send(ctx context.Context, mac, broadcast string, ports ...int) error {
	hw, err := ParseMAC(mac)
	if err != nil {
		return err
	}
	if broadcast == "" {
		broadcast = "255.255.255.255"
	}
	if len(ports) == 0 {
		ports = DefaultPorts
	}

	packet := MagicPacket(hw)
	var errs []error
	for _, port := range ports {
		addr := net.JoinHostPort(broadcast, strconv.Itoa(port))
		if err := s.sendUDP(ctx, addr, packet); err != nil {
			s.logger.Warn("wol.send.port_failed", "Failed to send magic packet", map[string]interface{}{
				"address": addr,
				"error":   err.Error(),
			})
			errs = append(errs, err)
			continue
		}
		s.logger.Info("wol.send.success", "Magic packet sent", map[string]interface{}{
			"mac":     hw.String(),
			"address": addr,
		})
	}

	if len(errs) == len(ports) {
		return fmt.Errorf("send magic packet to %s: %w", hw, errors.Join(errs...))
	}
	return nil
}

func (s *Sender) sendUDP(ctx context.Context, addr string, packet []byte) error {
	conn, err := s.dialer.DialContext(ctx, "udp4", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	n, err := conn.Write(packet)
	if err != nil {
		return fmt.Errorf("write %s: %w", addr, err)
	}
	if n != len(packet) {
		return fmt.Errorf("short write to %s: %d of %d bytes", addr, n, len(packet))
	}
	return nil
}

// MagicPacket builds 6 bytes of 0xFF followed by 16 copies of mac
func MagicPacket(mac net.HardwareAddr) []byte {
	packet := make([]byte, 0, magicPacketLen)
	packet = append(packet, bytes.Repeat([]byte{0xFF}, 6)...)
	for i := 0; i < 16; i++ {
		packet = append(packet, mac...)
	}
	return packet
}

// ValidateMagicPacket checks packet framing and returns the target MAC
func ValidateMagicPacket(packet []byte) (net.HardwareAddr, error) {
	if len(packet) != magicPacketLen {
		return nil, fmt.Errorf("invalid packet length: expected %d bytes, got %d", magicPacketLen, len(packet))
	}
	if !bytes.Equal(packet[:6], bytes.Repeat([]byte{0xFF}, 6)) {
		return nil, fmt.Errorf("invalid packet header")
	}

	mac := packet[6:12]
	for i := 1; i < 16; i++ {
		start := 6 + i*6
		if !bytes.Equal(packet[start:start+6], mac) {
			return nil, fmt.Errorf("MAC repetition %d does not match", i)
		}
	}
	return net.HardwareAddr(bytes.Clone(mac)), nil
}
