package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlepower/internal/logging"
)

func TestEnsureStateDirectory(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "creates new directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "newdir")
			},
		},
		{
			name: "creates nested directories",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "a", "b", "c")
			},
		},
		{
			name: "succeeds on existing directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
		},
		{
			name: "fails when path is a file",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "file")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
				return filepath.Join(path, "child")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)
			err := EnsureStateDirectory(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			info, statErr := os.Stat(path)
			require.NoError(t, statErr)
			assert.True(t, info.IsDir())
		})
	}
}

func TestAtomicWriteFile(t *testing.T) {
	logger := logging.NewNopLogger()
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), DefaultFilePermissions, logger))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), DefaultFilePermissions, logger))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not remain")
}

func TestWriteAndReadJSON(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	path := filepath.Join(t.TempDir(), "nested", "payload.json")
	require.NoError(t, WriteJSONAtomic(path, payload{Name: "a", Count: 3}, logging.NewNopLogger()))

	var got payload
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, payload{Name: "a", Count: 3}, got)
}

func TestReadJSON_Missing(t *testing.T) {
	var v map[string]interface{}
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &v)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestReadJSON_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	var v map[string]interface{}
	err := ReadJSON(path, &v)
	require.Error(t, err)
	assert.False(t, errors.Is(err, fs.ErrNotExist))
}

func TestCloseWithError(t *testing.T) {
	called := false
	CloseWithError(func() error {
		called = true
		return errors.New("boom")
	}, logging.NewNopLogger(), "thing")
	assert.True(t, called)
}
