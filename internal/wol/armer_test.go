package wol

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlepower/internal/command"
	"idlepower/internal/logging"
)

const ethtoolOutput = `Settings for eno1:
	Supported ports: [ TP ]
	Supported link modes:   10baseT/Half 10baseT/Full
	Speed: 1000Mb/s
	Supports Wake-on: pumbg
	Wake-on: d
	Current message level: 0x00000007 (7)
	Link detected: yes
`

type ethtoolFake struct {
	current string
	calls   []string
	setErr  error
}

func (f *ethtoolFake) runner() command.Runner {
	return command.RunnerFunc(func(_ context.Context, name string, args ...string) ([]byte, error) {
		f.calls = append(f.calls, name+" "+strings.Join(args, " "))
		if len(args) == 1 {
			return []byte(strings.Replace(ethtoolOutput, "Wake-on: d", "Wake-on: "+f.current, 1)), nil
		}
		if f.setErr != nil {
			return nil, f.setErr
		}
		f.current = args[len(args)-1]
		return nil, nil
	})
}

func TestParseEthtool(t *testing.T) {
	status := parseEthtool([]byte(ethtoolOutput))
	assert.Equal(t, []string{"p", "u", "m", "b", "g"}, status.Supported)
	assert.Equal(t, "d", status.Current)
	assert.False(t, status.Armed())
	assert.True(t, status.Supports("g"))
	assert.True(t, status.Supports("pg"))
	assert.False(t, status.Supports("s"))
}

func TestParseEthtool_NoWakeSupport(t *testing.T) {
	status := parseEthtool([]byte("Settings for wlan0:\n\tLink detected: yes\n"))
	assert.Empty(t, status.Supported)
	assert.Equal(t, "d", status.Current)
	assert.False(t, status.Supports("g"))
}

func TestArmer_ArmsDisabledInterface(t *testing.T) {
	fake := &ethtoolFake{current: "d"}
	armer := NewArmer(fake.runner(), logging.NewNopLogger(), "eno1", "")

	require.NoError(t, armer.Arm(context.Background()))
	assert.Equal(t, []string{"ethtool eno1", "ethtool -s eno1 wol g"}, fake.calls)

	status, err := armer.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Armed())
	assert.Equal(t, "eno1", status.Interface)
}

func TestArmer_AlreadyArmedIsNoop(t *testing.T) {
	fake := &ethtoolFake{current: "g"}
	armer := NewArmer(fake.runner(), logging.NewNopLogger(), "eno1", "g")

	require.NoError(t, armer.Arm(context.Background()))
	assert.Equal(t, []string{"ethtool eno1"}, fake.calls)
}

func TestArmer_UnsupportedMode(t *testing.T) {
	fake := &ethtoolFake{current: "d"}
	armer := NewArmer(fake.runner(), logging.NewNopLogger(), "eno1", "s")

	err := armer.Arm(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support")
	assert.Len(t, fake.calls, 1)
}

func TestArmer_SetFailure(t *testing.T) {
	fake := &ethtoolFake{current: "d", setErr: errors.New("operation not permitted")}
	armer := NewArmer(fake.runner(), logging.NewNopLogger(), "eno1", "g")

	err := armer.Arm(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation not permitted")
}

func TestArmer_StatusError(t *testing.T) {
	runner := command.RunnerFunc(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("ethtool: not found")
	})
	armer := NewArmer(runner, logging.NewNopLogger(), "eno1", "g")

	_, err := armer.Status(context.Background())
	require.Error(t, err)
	assert.Equal(t, "eno1", armer.Interface())
}
