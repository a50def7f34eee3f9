//go:build linux

package suspend

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

func TestSystemctlSuspender(t *testing.T) {
	var calls []string
	runner := command.RunnerFunc(func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, name+" "+strings.Join(args, " "))
		if args[0] == "can-suspend" {
			return []byte("no\n"), errors.New("exit status 1")
		}
		return nil, nil
	})

	s := NewSystemctlSuspender(runner, logging.NewNopLogger(), false)
	require.NoError(t, s.SuspendHost(context.Background()))
	assert.Error(t, s.CheckCanSuspend(context.Background()))
	assert.Equal(t, []string{"systemctl suspend", "systemctl can-suspend"}, calls)
}

func TestSystemctlSuspender_DryRun(t *testing.T) {
	runner := command.RunnerFunc(func(context.Context, string, ...string) ([]byte, error) {
		t.Fatal("dry run must not execute commands")
		return nil, nil
	})

	s := NewSystemctlSuspender(runner, logging.NewNopLogger(), true)
	assert.NoError(t, s.SuspendHost(context.Background()))
}

func TestSystemctlSuspender_CommandFailure(t *testing.T) {
	runner := command.RunnerFunc(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("Access denied")
	})

	s := NewSystemctlSuspender(runner, logging.NewNopLogger(), false)
	err := s.SuspendHost(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestSystemctlSuspender_PrepareRunsFirst(t *testing.T) {
	var calls []string
	runner := command.RunnerFunc(func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, name+" "+strings.Join(args, " "))
		return nil, nil
	})

	s := NewSystemctlSuspender(runner, logging.NewNopLogger(), false,
		WithPrepare("wol", func(context.Context) error {
			calls = append(calls, "prepare wol")
			return nil
		}),
		WithPrepare("broken", func(context.Context) error {
			calls = append(calls, "prepare broken")
			return errors.New("nic gone")
		}),
	)

	require.NoError(t, s.SuspendHost(context.Background()))
	assert.Equal(t, []string{"prepare wol", "prepare broken", "systemctl suspend"}, calls)
}

func TestSystemctlSuspender_PrepareRunsInDryRun(t *testing.T) {
	prepared := false
	runner := command.RunnerFunc(func(context.Context, string, ...string) ([]byte, error) {
		t.Fatal("dry run must not execute commands")
		return nil, nil
	})

	s := NewSystemctlSuspender(runner, logging.NewNopLogger(), true,
		WithPrepare("wol", func(context.Context) error {
			prepared = true
			return nil
		}))
	require.NoError(t, s.SuspendHost(context.Background()))
	assert.True(t, prepared)
}
