package usecase

import (
	"context"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// workspace holds the local paths one build writes to. All of them are
// removed when the workspace is acquired and again when it is released, so
// nothing leaks into the next invocation of a reused execution environment.
type workspace struct {
	cloneDir    string
	buildDir    string
	archivePath string
}

func acquireWorkspace(ctx context.Context, cfg BuildConfig) (*workspace, error) {
	ws := &workspace{
		cloneDir:    cfg.CloneDir,
		buildDir:    cfg.BuildDir,
		archivePath: cfg.ArchivePath,
	}

	for _, path := range ws.paths() {
		if err := os.RemoveAll(path); err != nil {
			return nil, goerr.Wrap(err, "failed to clear workspace path", goerr.V("path", path))
		}
	}

	if err := os.MkdirAll(ws.buildDir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create build directory", goerr.V("path", ws.buildDir))
	}

	ctxlog.From(ctx).Debug("Acquired workspace",
		"clone_dir", ws.cloneDir,
		"build_dir", ws.buildDir,
		"archive_path", ws.archivePath,
	)

	return ws, nil
}

func (ws *workspace) paths() []string {
	return []string{ws.cloneDir, ws.buildDir, ws.archivePath}
}

// release removes every workspace path. Failures are logged, not returned,
// because release runs on error paths as well.
func (ws *workspace) release(ctx context.Context) {
	logger := ctxlog.From(ctx)

	for _, path := range ws.paths() {
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("Failed to clean up workspace path",
				"path", path,
				"error", err,
			)
			continue
		}
		logger.Debug("Cleaned up workspace path", "path", path)
	}
}
