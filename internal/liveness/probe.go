package liveness

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// filesystemProbe is the default probe: it validates the root's shape,
// confirms it is a directory, and opens a listing handle to exercise read
// permission. The attempt is abandoned when ctx expires; the straggling
// goroutine finishes on its own.
func filesystemProbe(ctx context.Context, root string) error {
	done := make(chan error, 1)
	go func() { done <- checkRoot(root) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("liveness: probe timed out: %w", ctx.Err())
	case err := <-done:
		return err
	}
}

func checkRoot(root string) error {
	if root == "" {
		return fmt.Errorf("liveness: network root not configured")
	}
	if !wellFormedRoot(root) {
		return fmt.Errorf("liveness: network root %q lacks a leading double separator", root)
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("liveness: stat network root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("liveness: network root %q is not a directory", root)
	}

	dir, err := os.Open(root) //nolint:gosec // G304: root comes from configuration
	if err != nil {
		return fmt.Errorf("liveness: open network root: %w", err)
	}
	defer dir.Close()

	// A single-entry listing is enough to prove read permission.
	if _, err := dir.Readdirnames(1); err != nil && err != io.EOF {
		return fmt.Errorf("liveness: list network root: %w", err)
	}
	return nil
}

// wellFormedRoot checks the root's shape before touching the filesystem.
// UNC-style roots must carry their mandatory leading double separator; any
// backslash path without it is malformed. Forward-slash absolute paths pass
// as locally-mounted shares, the same shapes the resolver's root
// normalization leaves untouched.
func wellFormedRoot(root string) bool {
	if strings.HasPrefix(root, `\\`) || strings.HasPrefix(root, "//") {
		return true
	}
	if strings.ContainsRune(root, '\\') {
		return false
	}
	return filepath.IsAbs(root)
}
