package rodbrowser

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/ui-verification-go/pkg/verify/verifytest"
)

func TestRodDriver(t *testing.T) {
	verifytest.RunDriverSuite(t, NewLauncher())
}

func TestLaunchHonorsContext(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script as browser binary")
	}

	// A "browser" that starts but never prints its DevTools URL
	bin := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nsleep 30\n"), 0755))

	l := &Launcher{Headless: true, Bin: bin}

	t.Run("deadline during startup", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := l.Launch(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("already canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := l.Launch(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
