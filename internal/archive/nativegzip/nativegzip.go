// Package nativegzip implements archive.Archiver by packaging members
// in-process with archive/tar and a parallel gzip writer, avoiding a
// subprocess dependency on an external tar binary.
package nativegzip

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"

	"github.com/DataDog/segrotd/internal/archive"
)

// Archiver packages a Request into a gzip-compressed tar using
// klauspost/pgzip for parallel compression on multi-core hosts.
type Archiver struct {
	// BlockSize controls pgzip's internal block size; zero uses the
	// library default.
	BlockSize int
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

	zw := pgzip.NewWriter(out)
	if a.BlockSize > 0 {
		if serr := zw.SetConcurrency(a.BlockSize, 4); serr != nil {
			return errors.Wrap(serr, "configure pgzip concurrency")
		}
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
