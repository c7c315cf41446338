package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonexit/FaceShield/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Port:                freePort(t),
		APIToken:            "token",
		LogDirectory:        filepath.Join(dir, "logs"),
		LogLevel:            "info",
		DatabasePath:        filepath.Join(dir, "data", "faceshield.db"),
		ImageDirectory:      filepath.Join(dir, "images"),
		SampleLimit:         4,
		SampleFlushInterval: time.Second,
		PreviewInterval:     5,
		DetectorBackend:     "opencv",
		Device:              "cpu",
		ModelClasses:        1,
		ObserverBuffer:      8,
		ProgressRate:        2,
		Roots: config.Roots{
			Input:  filepath.Join(dir, "media", "input"),
			Output: filepath.Join(dir, "media", "output"),
			Model:  filepath.Join(dir, "models"),
		},
		Defaults: config.JobDefaults{
			ModelPath: filepath.Join(dir, "missing.onnx"), OutputPath: "out.mp4",
			Confidence: 0.2, IoU: 0.45, ImageSize: 640, BlurKernel: 75, Precision: "half",
		},
	}
}

func TestAppServesAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/api/runs/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, base+"/api/runs", strings.NewReader(`{"input_path":"missing.mp4"}`))
	req.Header.Set("Authorization", "Bearer token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "input_path")

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "go_goroutines")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}
