package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFiles(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "opencv", cfg.DetectorBackend)
	assert.Equal(t, 30*time.Second, cfg.SampleFlushInterval)
	assert.Equal(t, 0.20, cfg.Defaults.Confidence)
	assert.Equal(t, 0.45, cfg.Defaults.IoU)
	assert.Equal(t, 1280, cfg.Defaults.ImageSize)
	assert.Equal(t, 75, cfg.Defaults.BlurKernel)
	assert.Equal(t, "half", cfg.Defaults.Precision)
	assert.Equal(t, "faces_blurred.mp4", cfg.Defaults.OutputPath)
	assert.True(t, filepath.IsAbs(cfg.Roots.Input))
	assert.Equal(t, "output", filepath.Base(cfg.Roots.Output))
}

func TestLoadDotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEFAULT_BLUR_KERNEL=31\nDETECTOR_BACKEND=onnxruntime\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("DEFAULT_BLUR_KERNEL")
		os.Unsetenv("DETECTOR_BACKEND")
	})

	cfg, err := LoadFiles(path)
	require.NoError(t, err)
	assert.Equal(t, 31, cfg.Defaults.BlurKernel)
	assert.Equal(t, "onnxruntime", cfg.DetectorBackend)
}

func TestEnvironmentOverridesDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=9000\n"), 0o644))
	t.Setenv("PORT", "9100")

	cfg, err := LoadFiles(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("DETECTOR_BACKEND", "tensorflow")

	_, err := LoadFiles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DETECTOR_BACKEND")
}

func TestLoadRejectsMalformedNumber(t *testing.T) {
	t.Setenv("SAMPLE_LIMIT", "seven")

	_, err := LoadFiles()
	assert.Error(t, err)
}

func TestLoadRejectsBadSampleSettings(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"negative limit", "SAMPLE_LIMIT", "-1"},
		{"zero interval", "SAMPLE_FLUSH_INTERVAL", "0s"},
		{"negative interval", "SAMPLE_FLUSH_INTERVAL", "-5s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadFiles()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
