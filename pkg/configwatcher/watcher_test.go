package configwatcher

import (
	"context"
	"os"
	"partner_hub_backend/internal/config"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, timeout string) {
	t.Helper()
	body := []byte("server:\n  mode: debug\npartner:\n  sync_enabled: false\n  request_timeout: " + timeout + "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0644))
}

func TestWatchConfig_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "10s")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- WatchConfig(ctx, filepath.Join(dir, "config.yaml"), func(cfg *config.Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// 等待 watcher 就绪
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "3s")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 3*time.Second, cfg.Partner.RequestTimeout)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	assert.NoError(t, <-done)
}
