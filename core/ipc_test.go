package core

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestIPCInspect(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sock := filepath.Join(t.TempDir(), "weft.sock")
	calls := 0
	require.NoError(t, ServeIPC(ctx, slog.Default(), sock, func() (string, error) {
		calls++
		if calls > 1 {
			return "", errors.New("node stopped")
		}
		return "node 0x0001\n", nil
	}))

	out, err := IPCGet(sock)
	require.NoError(t, err)
	assert.Equal(t, "node 0x0001\n", out)

	out, err = IPCGet(sock)
	require.NoError(t, err)
	assert.Equal(t, "error: node stopped\n", out)

	cancel()
	assert.Eventually(t, func() bool {
		_, err := IPCGet(sock)
		return err != nil
	}, time.Second, 10*time.Millisecond)
}
