package wol

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlepower/internal/logging"
)

func TestParseMAC(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"colons", "aa:bb:cc:dd:ee:ff", "aa:bb:cc:dd:ee:ff", false},
		{"dashes", "AA-BB-CC-DD-EE-FF", "aa:bb:cc:dd:ee:ff", false},
		{"bare", "aabbccddeeff", "aa:bb:cc:dd:ee:ff", false},
		{"too short", "aa:bb:cc", "", true},
		{"not hex", "zz:bb:cc:dd:ee:ff", "", true},
		{"eui64", "aa:bb:cc:dd:ee:ff:00:11", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hw, err := ParseMAC(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, hw.String())
		})
	}
}

func TestValidateMode(t *testing.T) {
	assert.NoError(t, ValidateMode("g"))
	assert.NoError(t, ValidateMode("pumbg"))
	assert.NoError(t, ValidateMode("d"))
	assert.Error(t, ValidateMode(""))
	assert.Error(t, ValidateMode("x"))
	assert.Error(t, ValidateMode("gd"))
}

func TestMagicPacketRoundTrip(t *testing.T) {
	hw, err := ParseMAC("01:23:45:67:89:ab")
	require.NoError(t, err)

	packet := MagicPacket(hw)
	require.Len(t, packet, 102)

	got, err := ValidateMagicPacket(packet)
	require.NoError(t, err)
	assert.Equal(t, hw, got)

	packet[50] ^= 0xFF
	_, err = ValidateMagicPacket(packet)
	assert.Error(t, err)

	_, err = ValidateMagicPacket(packet[:20])
	assert.Error(t, err)
}

func TestBroadcastOf(t *testing.T) {
	_, ipNet, err := net.ParseCIDR("192.168.10.7/24")
	require.NoError(t, err)
	ipNet.IP = net.ParseIP("192.168.10.7")
	assert.Equal(t, "192.168.10.255", broadcastOf(ipNet).String())

	_, v6, err := net.ParseCIDR("fd00::1/64")
	require.NoError(t, err)
	assert.Nil(t, broadcastOf(v6))
}

func TestSender_Send(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	sender := NewSender(logging.NewNopLogger())
	require.NoError(t, sender.Send(context.Background(), "aabbccddeeff", "127.0.0.1", port))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 256)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)

	mac, err := ValidateMagicPacket(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", mac.String())
}

func TestSender_InvalidMAC(t *testing.T) {
	sender := NewSender(logging.NewNopLogger())
	assert.Error(t, sender.Send(context.Background(), "nope", "127.0.0.1", 9))
}
