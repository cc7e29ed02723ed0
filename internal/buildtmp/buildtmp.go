// Package buildtmp manages the scratch directory of one build.
package buildtmp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/specialistvlad/kernlib/internal/ctxlog"
)

// Dir is a scratch directory below <output>/build_tmp, unique per build.
type Dir struct {
	Path string
	keep bool
}

// Acquire creates the scratch directory of a build writing to output. When
// keep is set, Release leaves it in place.
func Acquire(ctx context.Context, output string, keep bool) (*Dir, error) {
	name := strings.ToUpper(filepath.Base(filepath.Clean(output))) + "-" + uuid.NewString()
	path := filepath.Join(output, "build_tmp", name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create build directory: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Created build directory.", "file", path)
	return &Dir{Path: path, keep: keep}, nil
}

// Release removes the directory and its parent when the parent is left
// empty. Failure to remove is logged, never returned. Release is safe to call
// more than once.
func (d *Dir) Release(ctx context.Context) {
	if d == nil || d.keep || d.Path == "" {
		return
	}
	logger := ctxlog.FromContext(ctx)
	if err := os.RemoveAll(d.Path); err != nil {
		logger.Warn("Failed to remove build directory.", "file", d.Path, "error", err)
		return
	}
	// only succeeds when no other build is using build_tmp
	_ = os.Remove(filepath.Dir(d.Path))
	d.Path = ""
}
