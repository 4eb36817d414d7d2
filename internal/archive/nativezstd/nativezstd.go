// Package nativezstd implements archive.Archiver by packaging members
// in-process with archive/tar and github.com/DataDog/zstd for a higher
// compression ratio. The archive is written to Request.Target exactly as
// given; the compressor worker names its targets with a ".tar.gz"
// extension whichever archiver is configured.
package nativezstd

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"

	"github.com/DataDog/zstd"
	"github.com/pkg/errors"

	"github.com/DataDog/segrotd/internal/archive"
)

// Archiver packages a Request into a zstd-compressed tar.
type Archiver struct {
	// Level is the zstd compression level; zero uses the library default.
	Level int
}

// New returns a ready-to-use Archiver.
func New() *Archiver { return &Archiver{} }

// Archive implements archive.Archiver.
func (a *Archiver) Archive(req archive.Request) (err error) {
	out, err := os.OpenFile(req.Target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create archive %q", req.Target)
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	var zw *zstd.Writer
	if a.Level > 0 {
		zw = zstd.NewWriterLevel(out, a.Level)
	} else {
		zw = zstd.NewWriter(out)
	}
	defer func() {
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	}()

	tw := tar.NewWriter(zw)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
	}()

	for _, member := range req.Members {
		if err := addMember(tw, req.Dir, member); err != nil {
			return err
		}
	}
	return nil
}

func addMember(tw *tar.Writer, dir, member string) error {
	path := filepath.Join(dir, member)
	fi, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "stat member %q", path)
	}

	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return errors.Wrapf(err, "build tar header for %q", member)
	}
	hdr.Name = member

	if err := tw.WriteHeader(hdr); err != nil {
		return errors.Wrapf(err, "write tar header for %q", member)
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open member %q", path)
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return errors.Wrapf(err, "copy member %q into archive", member)
	}
	return nil
}
