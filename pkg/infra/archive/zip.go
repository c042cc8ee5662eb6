package archive

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/domain/model"
	"github.com/m-mizutani/playpack/pkg/domain/types"
)

// Entries get a fixed timestamp so that identical trees produce identical
// archives. 1980-01-01 is the earliest time the zip format can represent.
var entryTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Zip writes deflate-compressed zip archives
type Zip struct{}

// NewZip creates a Zip archiver
func NewZip() *Zip {
	return &Zip{}
}

// Archive writes the contents of srcDir (not srcDir itself) to dstPath. An
// existing file at dstPath is replaced.
func (z *Zip) Archive(ctx context.Context, srcDir, dstPath string) (*model.Archive, error) {
	logger := ctxlog.From(ctx)

	info, err := os.Stat(srcDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat build directory", goerr.T(types.ErrTagArchive), goerr.V("dir", srcDir))
	}
	if !info.IsDir() {
		return nil, goerr.New("build path is not a directory", goerr.T(types.ErrTagArchive), goerr.V("dir", srcDir))
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create archive directory", goerr.T(types.ErrTagArchive), goerr.V("path", dstPath))
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create archive file", goerr.T(types.ErrTagArchive), goerr.V("path", dstPath))
	}

	files, err := writeZip(out, srcDir, dstPath)
	if err != nil {
		_ = os.Remove(dstPath)
		return nil, err
	}

	stat, err := os.Stat(dstPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat archive", goerr.T(types.ErrTagArchive), goerr.V("path", dstPath))
	}

	logger.Debug("Created archive", "path", dstPath, "files", files, "size", stat.Size())

	return &model.Archive{
		Path:  dstPath,
		Files: files,
		Size:  stat.Size(),
	}, nil
}

// writeZip writes the tree below srcDir to out and closes out. The archive is
// complete only if both the zip trailer and the close succeed.
func writeZip(out io.WriteCloser, srcDir, dstPath string) (int, error) {
	zw := zip.NewWriter(out)
	files, err := addTree(zw, srcDir, dstPath)
	if err != nil {
		_ = zw.Close()
		_ = out.Close()
		return 0, err
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return 0, goerr.Wrap(err, "failed to finish archive", goerr.T(types.ErrTagArchive), goerr.V("path", dstPath))
	}
	if err := out.Close(); err != nil {
		return 0, goerr.Wrap(err, "failed to close archive", goerr.T(types.ErrTagArchive), goerr.V("path", dstPath))
	}

	return files, nil
}

// addTree adds every directory and regular file below root in lexical order.
// Symlinks to files are stored with the target's content, symlinks to
// directories are skipped. skipPath excludes the archive itself when it is
// written inside the tree.
func addTree(zw *zip.Writer, root, skipPath string) (int, error) {
	absSkip, _ := filepath.Abs(skipPath)
	var files int

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == absSkip {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			hdr := &zip.FileHeader{Name: name + "/", Modified: entryTime}
			hdr.SetMode(info.Mode())
			_, err := zw.CreateHeader(hdr)
			return err
		}

		if d.Type()&fs.ModeSymlink != 0 && info.IsDir() {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: entryTime}
		hdr.SetMode(info.Mode())
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		if err := copyFile(w, path); err != nil {
			return err
		}
		files++
		return nil
	})
	if err != nil {
		return files, goerr.Wrap(err, "failed to add files to archive", goerr.T(types.ErrTagArchive), goerr.V("dir", root))
	}

	return files, nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
