package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/playpack/pkg/domain/types"
)

type closeFailWriter struct {
	bytes.Buffer
	closeErr error
	closed   int
}

func (w *closeFailWriter) Close() error {
	w.closed++
	return w.closeErr
}

func TestWriteZip_CloseError(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "dev.json"), []byte(`{"env":"dev"}`), 0644)).Required()

	t.Run("close failure fails the archive", func(t *testing.T) {
		w := &closeFailWriter{closeErr: errors.New("no space left on device")}

		_, err := writeZip(w, dir, "/tmp/build.zip")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagArchive))
		gt.String(t, err.Error()).Contains("failed to close archive")
		gt.Equal(t, w.closed, 1)
	})

	t.Run("successful close", func(t *testing.T) {
		w := &closeFailWriter{}

		files, err := writeZip(w, dir, "/tmp/build.zip")
		gt.NoError(t, err)
		gt.Equal(t, files, 1)
		gt.Equal(t, w.closed, 1)
		gt.True(t, w.Len() > 0)
	})
}

func TestArchive_RemovesFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "dev.json"), []byte("{}"), 0644)).Required()
	gt.NoError(t, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "dangling"))).Required()

	dst := filepath.Join(t.TempDir(), "build.zip")
	_, err := NewZip().Archive(t.Context(), dir, dst)
	gt.Error(t, err)

	_, statErr := os.Stat(dst)
	gt.True(t, os.IsNotExist(statErr))
}
