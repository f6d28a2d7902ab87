package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/downlink/internal/config"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		force     bool
		setupFunc func(string)
		wantErr   bool
	}{
		{
			name:      "fresh initialization",
			setupFunc: func(dir string) {},
		},
		{
			name:      "creates missing directory",
			setupFunc: func(dir string) {
				os.RemoveAll(dir)
			},
		},
		{
			name:      "refuses to overwrite without force",
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, ConfigFile), []byte("old content"), 0644)
			},
			wantErr: true,
		},
		{
			name:      "force replaces existing configuration",
			force:     true,
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, ConfigFile), []byte("old content"), 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "station")
			require.NoError(t, os.MkdirAll(dir, 0755))
			tt.setupFunc(dir)

			err := Initialize(dir, tt.force)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "downlink init --force")
				return
			}
			require.NoError(t, err)

			path := filepath.Join(dir, ConfigFile)
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

			cfg, err := config.Load(path)
			require.NoError(t, err)
			assert.Equal(t, "example", cfg.Name)
			assert.Len(t, cfg.Pipeline, 4)
			assert.Equal(t, "-", cfg.Streams[0].Input)
		})
	}
}

func TestCheckExisting(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, CheckExisting(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), nil, 0644))
	err := CheckExisting(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration already exists")
}
